// Package profile keeps per-seat career stats across matches.
package profile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lox/dominoes/internal/game"
)

var ErrNotFound = errors.New("profile not found")

// Profile is a player's cumulative record.
type Profile struct {
	SeatID    string    `json:"seatId"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	Earnings  float64   `json:"earnings"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Result is one seat's outcome of a finished match.
type Result struct {
	SeatID   string
	Won      bool
	Earnings float64
}

// Store persists profiles.
type Store interface {
	Get(ctx context.Context, seatID string) (Profile, error)
	Record(ctx context.Context, results ...Result) error
}

// Results derives the outcome for every human seat of a finished match. AI
// seats and deserters are left out. Winners split the pot.
func Results(m *game.Match) []Result {
	if m.Phase != game.PhaseGameOver {
		return nil
	}
	var winners, humans []string
	for _, id := range m.SeatIDs() {
		p := m.Players[id]
		if p.IsAI || m.IsDeserter(id) {
			continue
		}
		humans = append(humans, id)
		if p.Team == m.MatchWinner {
			winners = append(winners, id)
		}
	}
	share := 0.0
	if len(winners) > 0 {
		share = m.Pot() / float64(len(winners))
	}
	out := make([]Result, 0, len(humans))
	for _, id := range humans {
		r := Result{SeatID: id}
		if m.Players[id].Team == m.MatchWinner {
			r.Won = true
			r.Earnings = share
		} else if m.Bet != nil {
			r.Earnings = -m.Bet.Amount
		}
		out = append(out, r)
	}
	return out
}

// Memory is an in-process Store.
type Memory struct {
	mu       sync.Mutex
	now      func() time.Time
	profiles map[string]Profile
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{now: time.Now, profiles: make(map[string]Profile)}
}

func (s *Memory) Get(_ context.Context, seatID string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[seatID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (s *Memory) Record(_ context.Context, results ...Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		p := s.profiles[r.SeatID]
		p.SeatID = r.SeatID
		if r.Won {
			p.Wins++
		} else {
			p.Losses++
		}
		p.Earnings += r.Earnings
		p.UpdatedAt = s.now()
		s.profiles[r.SeatID] = p
	}
	return nil
}
