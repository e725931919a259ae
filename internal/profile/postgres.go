package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS player_profiles (
	seat_id    TEXT PRIMARY KEY,
	wins       INTEGER NOT NULL DEFAULT 0,
	losses     INTEGER NOT NULL DEFAULT 0,
	earnings   DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres stores profiles in a single table.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres wraps a pool. Call Migrate once before use.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the profile table if it is missing.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate profiles: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, seatID string) (Profile, error) {
	query := `
		SELECT seat_id, wins, losses, earnings, updated_at
		FROM player_profiles WHERE seat_id = $1
	`
	var p Profile
	err := s.db.QueryRow(ctx, query, seatID).Scan(&p.SeatID, &p.Wins, &p.Losses, &p.Earnings, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile %s: %w", seatID, err)
	}
	return p, nil
}

func (s *Postgres) Record(ctx context.Context, results ...Result) error {
	query := `
		INSERT INTO player_profiles (seat_id, wins, losses, earnings, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (seat_id) DO UPDATE SET
			wins = player_profiles.wins + EXCLUDED.wins,
			losses = player_profiles.losses + EXCLUDED.losses,
			earnings = player_profiles.earnings + EXCLUDED.earnings,
			updated_at = now()
	`
	batch := &pgx.Batch{}
	for _, r := range results {
		wins, losses := 0, 1
		if r.Won {
			wins, losses = 1, 0
		}
		batch.Queue(query, r.SeatID, wins, losses, r.Earnings)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("record results: %w", err)
	}
	return nil
}
