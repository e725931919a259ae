package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/dominoes/internal/bot"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/matchid"
	"github.com/lox/dominoes/internal/randutil"
	"github.com/lox/dominoes/internal/statistics"
)

const (
	StrategyGreedy = "greedy"
	StrategyRandom = "random"

	// maxActions bounds a single match so a rules bug cannot spin forever.
	maxActions = 100_000
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Config holds configuration for running simulations
type Config struct {
	Matches  int
	Room     game.Room
	Strategy string // strategy of the tracked seat
	Opponent string // strategy of every other seat
	Seed     int64
	Timeout  time.Duration // per match, zero for none
	Workers  int
	Logger   *log.Logger
}

// Simulator plays bot-only matches through the same state machine the lobby
// drives.
type Simulator struct {
	config Config
}

// New creates a simulator, filling unset fields with defaults.
func New(config Config) (*Simulator, error) {
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Strategy == "" {
		config.Strategy = StrategyGreedy
	}
	if config.Opponent == "" {
		config.Opponent = StrategyGreedy
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if config.Room.ID == "" {
		config.Room.ID = "simulation"
	}
	config.Room = config.Room.WithDefaults()
	if err := config.Room.Validate(); err != nil {
		return nil, fmt.Errorf("room: %w", err)
	}
	for _, name := range []string{config.Strategy, config.Opponent} {
		if _, err := NewStrategy(name, randutil.New(1), config.Logger); err != nil {
			return nil, err
		}
	}
	return &Simulator{config: config}, nil
}

// NewStrategy returns the named bot strategy.
func NewStrategy(name string, rng *rand.Rand, logger *log.Logger) (bot.Strategy, error) {
	switch name {
	case StrategyGreedy:
		return bot.NewGreedy(rng, logger), nil
	case StrategyRandom:
		return bot.NewRandom(rng, logger), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownStrategy, name)
	}
}

// Run plays every match and aggregates the tracked seat's results. The
// tracked seat rotates through the table to cancel out seating bias. Each
// match derives its own seed, so results do not depend on worker count.
func (s *Simulator) Run(ctx context.Context) (*statistics.Statistics, error) {
	results := make([]statistics.MatchResult, s.config.Matches)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i := range s.config.Matches {
		g.Go(func() error {
			seed := randutil.Derive(s.config.Seed, i)
			result, err := s.playMatch(ctx, seed, i%s.config.Room.MaxPlayers)
			if err != nil {
				return fmt.Errorf("match %d (seed %d): %w", i+1, seed, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &statistics.Statistics{}
	for _, r := range results {
		stats.Add(r)
	}
	if err := stats.Validate(); err != nil {
		return nil, fmt.Errorf("statistics validation failed: %w", err)
	}
	return stats, nil
}

// PlayRound deals a match from seed and plays its first round, returning the
// match with the finished board still on the table.
func (s *Simulator) PlayRound(ctx context.Context, seed int64) (*game.Match, error) {
	m, strategies, _, err := s.table(seed, 0)
	if err != nil {
		return nil, err
	}
	err = s.play(ctx, m, strategies, func(game.RoundResult) bool { return true })
	return m, err
}

func (s *Simulator) playMatch(ctx context.Context, seed int64, position int) (statistics.MatchResult, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	m, strategies, tracked, err := s.table(seed, position)
	if err != nil {
		return statistics.MatchResult{}, err
	}

	result := statistics.MatchResult{
		Seed:     seed,
		Position: position,
		Methods:  make(map[game.Method]int),
	}
	err = s.play(ctx, m, strategies, func(r game.RoundResult) bool {
		result.Rounds++
		result.Methods[r.Method]++
		if r.Team == m.Players[tracked].Team {
			result.RoundsWon++
		}
		return false
	})
	if err != nil {
		return statistics.MatchResult{}, err
	}

	team := m.Players[tracked].Team
	best := 0
	for other, score := range m.TeamScores {
		if other != team && score > best {
			best = score
		}
	}
	result.Won = m.MatchWinner == team
	result.Margin = m.TeamScores[team] - best

	s.config.Logger.Debug("Match simulated", "seed", seed, "position", position,
		"rounds", result.Rounds, "won", result.Won, "margin", result.Margin)
	return result, nil
}

// table seats one bot per chair. The seat at index tracked plays the tracked
// strategy.
func (s *Simulator) table(seed int64, tracked int) (*game.Match, map[string]bot.Strategy, string, error) {
	m := game.NewMatch(fmt.Sprintf("sim-%d", seed), s.config.Room)
	m.Seed = seed

	strategies := make(map[string]bot.Strategy, s.config.Room.MaxPlayers)
	var trackedID string
	for i := range s.config.Room.MaxPlayers {
		id := matchid.AISeatID(i + 1)
		m.Players[id] = game.Player{ID: id, Address: id, IsAI: true, IsConnected: true}

		name := s.config.Opponent
		if i == tracked {
			name = s.config.Strategy
			trackedID = id
		}
		strategy, err := NewStrategy(name, randutil.New(randutil.Derive(seed, i+1)), s.config.Logger)
		if err != nil {
			return nil, nil, "", err
		}
		strategies[id] = strategy
	}
	return m, strategies, trackedID, nil
}

// play drives m until the match is over or onRound returns true.
func (s *Simulator) play(ctx context.Context, m *game.Match, strategies map[string]bot.Strategy, onRound func(game.RoundResult) bool) error {
	rng := randutil.New(m.Seed)
	if _, err := m.Start(rng); err != nil {
		return err
	}

	for range maxActions {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch m.Phase {
		case game.PhaseGameOver:
			return nil

		case game.PhaseRoundOver:
			if _, err := m.NextRound(rng); err != nil {
				return err
			}

		case game.PhasePlaying:
			result, _, ok, err := m.ResolveEndRoundRequest()
			if err != nil {
				return err
			}
			if ok {
				if onRound(result) {
					return nil
				}
				continue
			}

			seat := m.CurrentSeatID
			d := strategies[seat].Decide(m, seat)
			if _, err := bot.Apply(m, seat, d); err != nil {
				return fmt.Errorf("seat %s %s: %w", seat, d, err)
			}
			if err := m.CheckTiles(); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unexpected phase %s", m.Phase)
		}
	}
	return fmt.Errorf("no result after %d actions", maxActions)
}
