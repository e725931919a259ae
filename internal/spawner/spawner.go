// Package spawner runs fleets of strategy bots against a match server.
package spawner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/dominoes/internal/bot"
	"github.com/lox/dominoes/internal/client"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/randutil"
	"github.com/lox/dominoes/internal/server"
	"github.com/lox/dominoes/internal/simulator"
)

// DefaultConnectTimeout bounds each dial to the server.
const DefaultConnectTimeout = 10 * time.Second

// BotSpawner manages the lifecycle of in-process bots.
type BotSpawner struct {
	serverURL string
	logger    *log.Logger
	seed      int64 // Base seed, each bot derives its own
	timeout   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu     sync.RWMutex
	bots   map[string]*Bot
	botSeq int
}

// BotSpec defines bots to spawn.
type BotSpec struct {
	Strategy string // greedy or random
	Room     string
	Count    int // Number to spawn
	Matches  int // Matches each bot plays

	// Address is the wallet address to play as. With more than one bot it
	// is a prefix; an empty address uses the bot ID.
	Address string
	Token   string

	// Done decides when a match is finished for the bot. Defaults to game
	// over.
	Done func(server.MatchView) bool
}

// Bot is one spawned player.
type Bot struct {
	ID      string
	Address string

	mu      sync.Mutex
	running bool
	results []server.MatchView
	err     error
}

// Results returns the final view of every match the bot finished.
func (b *Bot) Results() []server.MatchView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]server.MatchView(nil), b.results...)
}

// Err returns the error that stopped the bot, if any.
func (b *Bot) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// IsAlive reports whether the bot is still playing.
func (b *Bot) IsAlive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// New creates a BotSpawner.
func New(ctx context.Context, serverURL string, logger *log.Logger) *BotSpawner {
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	return &BotSpawner{
		serverURL: serverURL,
		logger:    logger.WithPrefix("spawner"),
		timeout:   DefaultConnectTimeout,
		ctx:       ctx,
		cancel:    cancel,
		group:     group,
		bots:      make(map[string]*Bot),
	}
}

// NewWithSeed creates a BotSpawner with a base seed for deterministic bots.
func NewWithSeed(ctx context.Context, serverURL string, logger *log.Logger, seed int64) *BotSpawner {
	s := New(ctx, serverURL, logger)
	s.seed = seed
	return s
}

// WithConnectTimeout overrides DefaultConnectTimeout.
func (s *BotSpawner) WithConnectTimeout(d time.Duration) *BotSpawner {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Spawn starts the bots described by spec. The first bot error cancels
// the rest.
func (s *BotSpawner) Spawn(spec BotSpec) ([]*Bot, error) {
	if spec.Count <= 0 {
		spec.Count = 1
	}
	if spec.Matches <= 0 {
		spec.Matches = 1
	}
	if spec.Done == nil {
		spec.Done = func(v server.MatchView) bool { return v.Phase == game.PhaseGameOver }
	}
	if _, err := simulator.NewStrategy(spec.Strategy, randutil.New(1), s.logger); err != nil {
		return nil, err
	}

	s.logger.Info("Spawning bots", "strategy", spec.Strategy, "room", spec.Room, "count", spec.Count, "matches", spec.Matches)

	bots := make([]*Bot, 0, spec.Count)
	for i := range spec.Count {
		s.mu.Lock()
		s.botSeq++
		seq := s.botSeq
		b := &Bot{ID: fmt.Sprintf("bot-%d", seq), running: true}
		b.Address = address(spec.Address, b.ID, spec.Count, i)
		s.bots[b.ID] = b
		s.mu.Unlock()

		seed := randutil.Derive(s.seed, seq)
		s.group.Go(func() error {
			err := s.run(b, spec, seed)
			b.mu.Lock()
			b.running = false
			b.err = err
			b.mu.Unlock()
			if err != nil {
				return fmt.Errorf("%s: %w", b.ID, err)
			}
			return nil
		})
		bots = append(bots, b)
	}
	return bots, nil
}

func address(base, id string, count, i int) string {
	switch {
	case base == "":
		return id
	case count == 1:
		return base
	default:
		return fmt.Sprintf("%s-%d", base, i+1)
	}
}

// run plays the bot's matches, connecting afresh for each so the lobby
// seats it at a new table.
func (s *BotSpawner) run(b *Bot, spec BotSpec, seed int64) error {
	logger := s.logger.With("bot", b.ID)
	for n := 1; n <= spec.Matches; n++ {
		strategy, err := simulator.NewStrategy(spec.Strategy, randutil.New(randutil.Derive(seed, n)), logger)
		if err != nil {
			return err
		}
		v, err := s.playMatch(b, spec, strategy, logger)
		if err != nil {
			return fmt.Errorf("match %d: %w", n, err)
		}
		logger.Info("Match finished", "match", v.ID, "phase", v.Phase, "winner", v.MatchWinner)
		b.mu.Lock()
		b.results = append(b.results, v)
		b.mu.Unlock()
	}
	return nil
}

func (s *BotSpawner) playMatch(b *Bot, spec BotSpec, strategy bot.Strategy, logger *log.Logger) (server.MatchView, error) {
	conn := client.NewClient(s.serverURL, logger)
	dialCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	if err := conn.Connect(dialCtx); err != nil {
		return server.MatchView{}, err
	}
	defer func() { _ = conn.Disconnect() }()

	player := client.NewPlayer(conn, strategy, spec.Room, logger).WithToken(spec.Token)
	return player.Run(s.ctx, b.Address, spec.Done)
}

// Bots returns every bot spawned so far.
func (s *BotSpawner) Bots() []*Bot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bots := make([]*Bot, 0, len(s.bots))
	for _, b := range s.bots {
		bots = append(bots, b)
	}
	return bots
}

// ActiveCount returns the number of bots still playing.
func (s *BotSpawner) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, b := range s.bots {
		if b.IsAlive() {
			count++
		}
	}
	return count
}

// Wait waits for all bots to finish and returns the first failure.
func (s *BotSpawner) Wait() error {
	return s.group.Wait()
}

// StopAll stops all bots and waits for them to exit.
func (s *BotSpawner) StopAll() {
	s.logger.Info("Stopping all bots")
	s.cancel()
	_ = s.group.Wait()
}
