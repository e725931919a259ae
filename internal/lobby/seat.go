package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/dominoes/internal/bot"
	"github.com/lox/dominoes/internal/domino"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/profile"
	"github.com/lox/dominoes/internal/store"
)

const (
	timerCountdown = "countdown"
	timerAI        = "ai"
	timerTurn      = "turn"
	timerNewRound  = "new-round"
)

type armed struct {
	key   string
	timer *quartz.Timer
	fired bool
}

// Seat is one connected player's controller for a match. Every seat reacts to
// the shared record; whichever seat is host also runs the match-wide duties:
// starting, fallback turns, round transitions and settlement.
type Seat struct {
	lobby    *Lobby
	matchID  string
	seatID   string
	session  string
	logger   *log.Logger
	onChange func(*game.Match)

	mu       sync.Mutex
	timers   map[string]*armed
	current  *game.Match
	finished bool
}

// Attach connects seatID to matchID for the given session. The seat is marked
// disconnected again when the session drops. onChange, if set, receives every
// snapshot Run observes and nil once the match is gone.
func (l *Lobby) Attach(ctx context.Context, matchID, seatID, session string, onChange func(*game.Match)) (*Seat, error) {
	m, err := l.store.Update(ctx, matchID, func(m *game.Match) error {
		if !m.HasSeat(seatID) {
			return fmt.Errorf("%w: %s has no seat", ErrAdmissionRejected, seatID)
		}
		if m.IsDeserter(seatID) {
			return fmt.Errorf("%w: seat deserted this match", ErrAdmissionRejected)
		}
		m.SetConnected(seatID, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.store.OnDisconnect(session, matchID, func(ctx context.Context, s store.Store) error {
		_, err := s.Update(ctx, matchID, func(m *game.Match) error { return markOffline(m, seatID) })
		return err
	})
	l.logger.Info("Seat attached", "match", matchID, "seat", seatID, "host", m.HostID() == seatID)
	return &Seat{
		lobby:    l,
		matchID:  matchID,
		seatID:   seatID,
		session:  session,
		logger:   l.logger.WithPrefix("seat").With("match", matchID, "seat", seatID),
		onChange: onChange,
		timers:   make(map[string]*armed),
		current:  m,
	}, nil
}

// markOffline clears a seat's connection. The last seat to leave a room that
// never started takes the room with it.
func markOffline(m *game.Match, seatID string) error {
	if !m.SetConnected(seatID, false) {
		return store.ErrAborted
	}
	if m.Phase == game.PhaseWaiting && m.ConnectedCount() == 0 {
		return store.ErrRemove
	}
	return nil
}

// MatchID returns the match this seat is attached to.
func (s *Seat) MatchID() string { return s.matchID }

// SeatID returns the seat this controller plays for.
func (s *Seat) SeatID() string { return s.seatID }

// Snapshot returns the latest record the seat has observed.
func (s *Seat) Snapshot() *game.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.Clone()
}

// Detach disconnects the seat gracefully and stops its timers.
func (s *Seat) Detach(ctx context.Context) error {
	s.lobby.store.CancelDisconnect(s.session, s.matchID)
	s.stopAll()
	_, err := s.lobby.store.Update(ctx, s.matchID, func(m *game.Match) error { return markOffline(m, s.seatID) })
	if errors.Is(err, store.ErrAborted) || errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// Run follows the match until ctx is cancelled or the match is deleted.
func (s *Seat) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.stopAll()

	changes, err := s.lobby.store.Subscribe(ctx, s.matchID)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.matchID, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
			if c.Deleted || c.Match == nil {
				s.logger.Info("Match removed")
				s.notify(nil)
				return nil
			}
			s.notify(c.Match)
			s.react(ctx, c.Match)
		}
	}
}

func (s *Seat) notify(m *game.Match) {
	if s.onChange != nil {
		s.onChange(m)
	}
}

// react arms and disarms timers for snapshot m. Store writes happen outside
// the seat lock.
func (s *Seat) react(ctx context.Context, m *game.Match) {
	host := m.HostID() == s.seatID
	var actions []func()

	s.mu.Lock()
	s.current = m
	if !host {
		s.stop(timerCountdown, timerAI, timerNewRound)
	}
	switch m.Phase {
	case game.PhaseWaiting:
		s.stop(timerAI, timerTurn, timerNewRound)
		if host {
			actions = s.hostWaiting(ctx, m)
		}
	case game.PhasePlaying:
		s.stop(timerCountdown, timerNewRound)
		s.armTurn(ctx, m)
		switch {
		case !host:
		case m.EndRoundRequest != nil:
			s.stop(timerAI)
			actions = append(actions, func() { s.resolveRequest(ctx) })
		default:
			s.armAI(ctx, m)
		}
	case game.PhaseRoundOver:
		s.stop(timerCountdown, timerAI, timerTurn)
		if host {
			round := m.Round
			s.arm(timerNewRound, fmt.Sprint(round), s.lobby.cfg.NewRoundDelay, func() error {
				return s.nextRound(ctx, round)
			})
		}
	case game.PhaseGameOver:
		s.stop(timerCountdown, timerAI, timerTurn, timerNewRound)
		if host {
			actions = append(actions, func() { s.finish(ctx, m) })
		}
	}
	s.mu.Unlock()

	for _, a := range actions {
		a()
	}
}

// hostWaiting runs the matchmaking countdown. Must be called with s.mu held.
func (s *Seat) hostWaiting(ctx context.Context, m *game.Match) []func() {
	connected := 0
	for _, p := range m.ActiveSeats() {
		if p.IsConnected {
			connected++
		}
	}
	switch {
	case connected >= m.MaxPlayers:
		s.stop(timerCountdown)
		return []func(){func() { s.startFull(ctx) }}
	case m.ActiveCount() >= game.MinSeats:
		if m.MatchmakingDeadline.IsZero() {
			return []func(){func() { s.openCountdown(ctx) }}
		}
		wait := m.MatchmakingDeadline.Sub(s.lobby.clock.Now())
		if wait < 0 {
			wait = 0
		}
		s.arm(timerCountdown, m.MatchmakingDeadline.String(), wait, func() error {
			return s.countdownExpired(ctx)
		})
	default:
		s.stop(timerCountdown)
		if !m.MatchmakingDeadline.IsZero() {
			return []func(){func() { s.clearCountdown(ctx) }}
		}
	}
	return nil
}

func turnKey(m *game.Match) string {
	return fmt.Sprintf("%d/%d/%s/%d", m.Round, len(m.Board), m.CurrentSeatID, m.ConsecutivePasses)
}

func aiKey(m *game.Match) string {
	return fmt.Sprintf("%s/%d", turnKey(m), len(m.Boneyard))
}

// armTurn runs the seat's own turn clock. Must be called with s.mu held.
func (s *Seat) armTurn(ctx context.Context, m *game.Match) {
	if m.EndRoundRequest != nil || m.CurrentSeatID != s.seatID || m.AIControlled(s.seatID) {
		s.stop(timerTurn)
		return
	}
	key := turnKey(m)
	s.arm(timerTurn, key, s.lobby.cfg.TurnTimeout, func() error {
		return s.timeoutTurn(ctx, key)
	})
}

// armAI schedules the fallback move for AI and disconnected seats. Must be
// called with s.mu held.
func (s *Seat) armAI(ctx context.Context, m *game.Match) {
	if !m.AIControlled(m.CurrentSeatID) {
		s.stop(timerAI)
		return
	}
	key := aiKey(m)
	s.arm(timerAI, key, s.lobby.cfg.AIThinkTime, func() error {
		return s.playAI(ctx, key)
	})
}

// arm schedules fn under name unless a timer for the same key already exists.
// A failed fn forgets its key so the next snapshot can re-arm it. Must be
// called with s.mu held.
func (s *Seat) arm(name, key string, d time.Duration, fn func() error) {
	if a, ok := s.timers[name]; ok {
		if a.key == key {
			return
		}
		a.timer.Stop()
	}
	a := &armed{key: key}
	a.timer = s.lobby.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if s.timers[name] != a {
			s.mu.Unlock()
			return
		}
		a.fired = true
		s.mu.Unlock()

		if err := fn(); err != nil {
			s.logger.Error("Timer action failed", "timer", name, "error", err)
			s.mu.Lock()
			if s.timers[name] == a {
				delete(s.timers, name)
			}
			s.mu.Unlock()
		}
	}, name)
	s.timers[name] = a
}

// stop cancels the named timers. Must be called with s.mu held.
func (s *Seat) stop(names ...string) {
	for _, name := range names {
		if a, ok := s.timers[name]; ok {
			a.timer.Stop()
			delete(s.timers, name)
		}
	}
}

func (s *Seat) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, a := range s.timers {
		a.timer.Stop()
		delete(s.timers, name)
	}
}

// pending reports whether a named timer is scheduled and has not fired.
func (s *Seat) pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.timers[name]
	return ok && !a.fired
}

// mutate applies op to the match. When op leaves an end-round request and
// this seat is host, the request is scored in the same write. Events are
// published once the write commits.
func (s *Seat) mutate(ctx context.Context, op func(m *game.Match) ([]game.Event, error)) (*game.Match, error) {
	var events []game.Event
	m, err := s.lobby.store.Update(ctx, s.matchID, func(m *game.Match) error {
		events = nil
		ev, err := op(m)
		if err != nil {
			return err
		}
		if m.EndRoundRequest != nil && m.HostID() == s.seatID {
			_, more, _, err := m.ResolveEndRoundRequest()
			if err != nil {
				s.logger.Warn("Dropped stale end-round request", "error", err)
			}
			ev = append(ev, more...)
		}
		if err := m.CheckTiles(); err != nil {
			return err
		}
		events = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.lobby.publish(s.matchID, events)
	return m, nil
}

// Play places tile on the given end for this seat.
func (s *Seat) Play(ctx context.Context, tile domino.Tile, end domino.Placement) error {
	_, err := s.mutate(ctx, func(m *game.Match) ([]game.Event, error) {
		return m.Play(s.seatID, tile, end)
	})
	return err
}

// Pass gives up this seat's turn.
func (s *Seat) Pass(ctx context.Context) error {
	_, err := s.mutate(ctx, func(m *game.Match) ([]game.Event, error) {
		return m.Pass(s.seatID)
	})
	return err
}

// Draw takes a random tile from the boneyard.
func (s *Seat) Draw(ctx context.Context) error {
	rng := s.lobby.nextRand()
	_, err := s.mutate(ctx, func(m *game.Match) ([]game.Event, error) {
		var tile domino.Tile
		if len(m.Boneyard) > 0 {
			tile = m.Boneyard[rng.IntN(len(m.Boneyard))]
		}
		return m.Draw(s.seatID, tile)
	})
	return err
}

// EndRound scores the current round. Only the host may score directly; any
// other seat's call is filed as a request for the host to resolve.
func (s *Seat) EndRound(ctx context.Context, method game.Method, winningSeatID string) error {
	_, err := s.mutate(ctx, func(m *game.Match) ([]game.Event, error) {
		if m.HostID() != s.seatID {
			s.logger.Warn("End round from non-host seat, relaying to host", "host", m.HostID(), "method", method)
			return nil, m.RequestEndRound(method, winningSeatID)
		}
		_, events, err := m.EndRound(method, winningSeatID)
		return events, err
	})
	return err
}

func (s *Seat) resolveRequest(ctx context.Context) {
	_, err := s.mutate(ctx, func(m *game.Match) ([]game.Event, error) {
		if m.EndRoundRequest == nil || m.HostID() != s.seatID {
			return nil, store.ErrAborted
		}
		return nil, nil
	})
	if err != nil && !errors.Is(err, store.ErrAborted) {
		s.logger.Error("Failed to resolve end-round request", "error", err)
	}
}

func (s *Seat) playAI(ctx context.Context, key string) error {
	_, err := s.mutate(ctx, func(m *game.Match) ([]game.Event, error) {
		if m.Phase != game.PhasePlaying || m.EndRoundRequest != nil || aiKey(m) != key {
			return nil, store.ErrAborted
		}
		seat := m.CurrentSeatID
		if !m.AIControlled(seat) {
			return nil, store.ErrAborted
		}
		d := s.lobby.decide(m, seat)
		s.logger.Debug("Fallback move", "for", seat, "decision", d.String())
		return bot.Apply(m, seat, d)
	})
	if errors.Is(err, store.ErrAborted) {
		return nil
	}
	return err
}

func (s *Seat) timeoutTurn(ctx context.Context, key string) error {
	_, err := s.mutate(ctx, func(m *game.Match) ([]game.Event, error) {
		if m.Phase != game.PhasePlaying || m.EndRoundRequest != nil || m.CurrentSeatID != s.seatID || turnKey(m) != key {
			return nil, store.ErrAborted
		}
		return m.Pass(s.seatID)
	})
	if errors.Is(err, store.ErrAborted) {
		return nil
	}
	if err == nil {
		s.logger.Info("Turn timed out, passing")
	}
	return err
}

func (s *Seat) openCountdown(ctx context.Context) {
	deadline := s.lobby.clock.Now().Add(s.lobby.cfg.MatchmakingTimeout)
	_, err := s.lobby.store.Update(ctx, s.matchID, func(m *game.Match) error {
		if m.Phase != game.PhaseWaiting || !m.MatchmakingDeadline.IsZero() || m.ActiveCount() < game.MinSeats {
			return store.ErrAborted
		}
		m.MatchmakingDeadline = deadline
		return nil
	})
	if err == nil {
		s.logger.Info("Matchmaking countdown started", "deadline", deadline)
	} else if !errors.Is(err, store.ErrAborted) && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("Failed to start countdown", "error", err)
	}
}

func (s *Seat) clearCountdown(ctx context.Context) {
	_, err := s.lobby.store.Update(ctx, s.matchID, func(m *game.Match) error {
		if m.Phase != game.PhaseWaiting || m.MatchmakingDeadline.IsZero() || m.ActiveCount() >= game.MinSeats {
			return store.ErrAborted
		}
		m.MatchmakingDeadline = time.Time{}
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrAborted) && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("Failed to clear countdown", "error", err)
	}
}

func (s *Seat) countdownExpired(ctx context.Context) error {
	rng := s.lobby.nextRand()
	m, err := s.mutate(ctx, func(m *game.Match) ([]game.Event, error) {
		if m.Phase != game.PhaseWaiting {
			return nil, store.ErrAborted
		}
		if m.ActiveCount() < game.MinSeats {
			m.MatchmakingDeadline = time.Time{}
			return nil, nil
		}
		return m.Start(rng)
	})
	if errors.Is(err, store.ErrAborted) {
		return nil
	}
	if err == nil && m.Phase == game.PhasePlaying {
		s.logger.Info("Countdown expired, starting match", "seats", len(m.TurnOrder))
	}
	return err
}

func (s *Seat) startFull(ctx context.Context) {
	rng := s.lobby.nextRand()
	_, err := s.mutate(ctx, func(m *game.Match) ([]game.Event, error) {
		if m.Phase != game.PhaseWaiting {
			return nil, store.ErrAborted
		}
		return m.Start(rng)
	})
	switch {
	case err == nil:
		s.logger.Info("Table full, starting match")
	case errors.Is(err, store.ErrAborted), errors.Is(err, store.ErrNotFound):
	default:
		s.logger.Error("Failed to start match", "error", err)
	}
}

func (s *Seat) nextRound(ctx context.Context, round int) error {
	rng := s.lobby.nextRand()
	_, err := s.mutate(ctx, func(m *game.Match) ([]game.Event, error) {
		if m.Phase != game.PhaseRoundOver || m.Round != round {
			return nil, store.ErrAborted
		}
		return m.NextRound(rng)
	})
	if errors.Is(err, store.ErrAborted) {
		return nil
	}
	return err
}

// finish settles a finished match: the pot goes to the treasury and results
// are added to player profiles. Each happens at most once per match.
func (s *Seat) finish(ctx context.Context, m *game.Match) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.mu.Unlock()

	if m.Bet != nil && m.Bet.Amount > 0 && !m.PayoutAttempted && !m.PayoutProcessed {
		s.payout(ctx, m)
	}
	if s.lobby.profiles != nil && !m.ResultsRecorded {
		s.recordResults(ctx)
	}
}

func (s *Seat) payout(ctx context.Context, m *game.Match) {
	// The claim is written before the transfer. A host that drops mid-transfer
	// leaves the claim behind, and the next host skips the payout.
	_, err := s.lobby.store.Update(ctx, s.matchID, func(m *game.Match) error {
		if m.Phase != game.PhaseGameOver || !m.ClaimPayout() {
			return store.ErrAborted
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, store.ErrAborted) {
			s.logger.Error("Failed to claim payout", "error", err)
		}
		return
	}

	pot := m.Pot()
	tx, err := s.lobby.settle.Transfer(ctx, s.lobby.cfg.Treasury, pot, m.Bet.Currency)
	if err != nil {
		s.logger.Error("Payout failed", "pot", pot, "currency", m.Bet.Currency, "error", err)
		reason := err.Error()
		if _, uerr := s.lobby.store.Update(ctx, s.matchID, func(m *game.Match) error {
			m.RecordPayoutFailure(reason)
			return nil
		}); uerr != nil {
			s.logger.Error("Failed to record payout failure", "error", uerr)
		}
		return
	}
	_, err = s.lobby.store.Update(ctx, s.matchID, func(m *game.Match) error {
		if !m.RecordPayout(tx) {
			return store.ErrAborted
		}
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrAborted) {
		s.logger.Error("Failed to record payout", "tx", tx, "error", err)
		return
	}
	s.logger.Info("Payout sent", "pot", pot, "currency", m.Bet.Currency, "tx", tx)
}

func (s *Seat) recordResults(ctx context.Context) {
	m, err := s.lobby.store.Update(ctx, s.matchID, func(m *game.Match) error {
		if m.ResultsRecorded || m.Phase != game.PhaseGameOver {
			return store.ErrAborted
		}
		m.ResultsRecorded = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, store.ErrAborted) {
			s.logger.Error("Failed to claim results", "error", err)
		}
		return
	}
	results := profile.Results(m)
	if err := s.lobby.profiles.Record(ctx, results...); err != nil {
		s.logger.Error("Failed to record results", "error", err)
		return
	}
	s.logger.Info("Recorded results", "seats", len(results))
}
