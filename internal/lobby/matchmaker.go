package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/matchid"
	"github.com/lox/dominoes/internal/store"
)

// FindOrCreate seats a player for a room. An unfinished match the seat
// already belongs to wins, then any public waiting match of the room with a
// free seat, then a fresh match.
func (l *Lobby) FindOrCreate(ctx context.Context, room game.Room, seat game.Player) (*game.Match, error) {
	room = room.WithDefaults()
	if err := room.Validate(); err != nil {
		return nil, fmt.Errorf("room %s: %w", room.ID, err)
	}

	if m, err := l.FindReconnect(ctx, seat.ID); err == nil && m.Variant == room.Variant {
		l.logger.Info("Returning seat to its match", "seat", seat.ID, "match", m.ID)
		return m, nil
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	matches, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	for _, m := range matches {
		if m.RoomID != room.ID || m.RoomCode != "" || m.Phase != game.PhaseWaiting {
			continue
		}
		if n := m.ActiveCount(); n == 0 || n >= m.MaxPlayers {
			continue
		}
		admitted, err := l.Admit(ctx, m.ID, seat)
		if errors.Is(err, ErrAdmissionRejected) || errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return admitted, nil
	}

	return l.create(ctx, room, seat)
}

// CreatePrivate opens a code-protected match for room.
func (l *Lobby) CreatePrivate(ctx context.Context, room game.Room, seat game.Player) (*game.Match, error) {
	room.Private = true
	room.CreatedBy = seat.ID
	room.AccessCode = l.ids.RoomCode()
	room = room.WithDefaults()
	if err := room.Validate(); err != nil {
		return nil, fmt.Errorf("room %s: %w", room.ID, err)
	}
	return l.create(ctx, room, seat)
}

func (l *Lobby) create(ctx context.Context, room game.Room, seat game.Player) (*game.Match, error) {
	m := game.NewMatch(l.ids.Generate(), room)
	seat.IsConnected = true
	seat.Left = false
	m.Players[seat.ID] = seat
	if err := l.store.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	l.logger.Info("Created match", "match", m.ID, "room", room.ID, "seat", seat.ID, "private", room.Private)
	return m, nil
}

// Admit inserts seat into a waiting match. The insert is conditional on the
// active seat count, so concurrent joins never overfill a table.
func (l *Lobby) Admit(ctx context.Context, matchID string, seat game.Player) (*game.Match, error) {
	m, err := l.store.Update(ctx, matchID, func(m *game.Match) error {
		if m.Phase != game.PhaseWaiting {
			return fmt.Errorf("%w: match is %s", ErrAdmissionRejected, m.Phase)
		}
		if m.IsDeserter(seat.ID) {
			return fmt.Errorf("%w: seat deserted this match", ErrAdmissionRejected)
		}
		if p, ok := m.Players[seat.ID]; ok && !p.Left {
			p.IsConnected = true
			m.Players[seat.ID] = p
			return nil
		}
		if m.ActiveCount() >= m.MaxPlayers {
			return fmt.Errorf("%w: %d of %d seats taken", ErrAdmissionRejected, m.ActiveCount(), m.MaxPlayers)
		}
		seat.IsConnected = true
		seat.Left = false
		m.Players[seat.ID] = seat
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("Admitted seat", "match", matchID, "seat", seat.ID, "seats", m.ActiveCount(), "max", m.MaxPlayers)
	return m, nil
}

// JoinWithCode admits seat into the private match sharing code.
func (l *Lobby) JoinWithCode(ctx context.Context, code string, seat game.Player) (*game.Match, error) {
	matches, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	for _, m := range matches {
		if code == "" || m.RoomCode != code {
			continue
		}
		if m.Phase != game.PhaseWaiting && !m.HasSeat(seat.ID) {
			return nil, ErrRoomInUse
		}
		if m.HasSeat(seat.ID) && m.Phase != game.PhaseWaiting {
			return m, nil
		}
		return l.Admit(ctx, m.ID, seat)
	}
	return nil, fmt.Errorf("room code %s: %w", code, store.ErrNotFound)
}

// FindReconnect returns the seat's unfinished match it has not deserted.
func (l *Lobby) FindReconnect(ctx context.Context, seatID string) (*game.Match, error) {
	matches, err := store.FindBySeat(ctx, l.store, seatID)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if m.Phase == game.PhaseGameOver || m.IsDeserter(seatID) || m.Players[seatID].Left {
			continue
		}
		return m, nil
	}
	return nil, store.ErrNotFound
}

// Decline records that a returning seat will not resume its match.
func (l *Lobby) Decline(ctx context.Context, matchID, seatID string) error {
	m, err := l.store.Get(ctx, matchID)
	if err != nil {
		return err
	}
	if m.Phase == game.PhaseWaiting {
		return l.Exit(ctx, matchID, seatID)
	}
	_, err = l.store.Update(ctx, matchID, func(m *game.Match) error {
		if !m.HasSeat(seatID) {
			return store.ErrAborted
		}
		desert(m, seatID)
		return nil
	})
	if errors.Is(err, store.ErrAborted) {
		return nil
	}
	if err == nil {
		l.logger.Info("Seat deserted", "match", matchID, "seat", seatID)
	}
	return err
}

// desert gives a seat up for the rest of the match. The fallback strategy
// plays its turns from then on.
func desert(m *game.Match, seatID string) {
	m.MarkDeserted(seatID)
	p := m.Players[seatID]
	p.Left = true
	p.IsConnected = false
	m.Players[seatID] = p
}

// Exit leaves a match. A waiting room with fewer than two active seats is
// dropped entirely; otherwise the seat is marked as left. During play the
// seat becomes a deserter and the fallback strategy takes over its turns.
func (l *Lobby) Exit(ctx context.Context, matchID, seatID string) error {
	var deleted bool
	_, err := l.store.Update(ctx, matchID, func(m *game.Match) error {
		deleted = false
		p, ok := m.Players[seatID]
		if !ok {
			return store.ErrAborted
		}
		switch m.Phase {
		case game.PhaseWaiting:
			if m.ActiveCount() < 2 {
				deleted = true
				return store.ErrRemove
			}
			p.Left = true
			p.IsConnected = false
			m.Players[seatID] = p
			if m.ActiveCount() < 2 {
				m.MatchmakingDeadline = time.Time{}
			}
		case game.PhasePlaying, game.PhaseRoundOver:
			desert(m, seatID)
		default:
			p.IsConnected = false
			m.Players[seatID] = p
		}
		return nil
	})
	if errors.Is(err, store.ErrAborted) || errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	l.logger.Info("Seat left match", "match", matchID, "seat", seatID, "deleted", deleted)
	return nil
}

// NewLocalMatch starts a match between one human and fallback seats. The
// human is the only connected seat, so it holds authority.
func (l *Lobby) NewLocalMatch(ctx context.Context, room game.Room, humanID string) (*game.Match, error) {
	if room.Mode == "" {
		room.Mode = game.Mode1v1
	}
	room.Bet = nil
	room.Kind = game.KindFree
	room.MaxPlayers = 1 + game.AISeatsFor(room.Mode)
	room = room.WithDefaults()
	if err := room.Validate(); err != nil {
		return nil, fmt.Errorf("room %s: %w", room.ID, err)
	}

	m := game.NewMatch(l.ids.Generate(), room)
	m.Players[humanID] = game.Player{ID: humanID, Address: humanID, IsConnected: true}
	for i := 1; i <= game.AISeatsFor(room.Mode); i++ {
		id := matchid.AISeatID(i)
		m.Players[id] = game.Player{ID: id, Address: "AI Opponent", IsAI: true}
	}
	events, err := m.Start(l.nextRand())
	if err != nil {
		return nil, err
	}
	if err := l.store.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create local match: %w", err)
	}
	l.logger.Info("Started local match", "match", m.ID, "mode", room.Mode, "seat", humanID)
	l.publish(m.ID, events)
	return m, nil
}
