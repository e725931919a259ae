// Package lobby admits seats into matches and drives each match forward:
// host election, matchmaking countdowns, AI turns, turn timeouts, round
// transitions, and settlement.
package lobby

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/dominoes/internal/bot"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/matchid"
	"github.com/lox/dominoes/internal/profile"
	"github.com/lox/dominoes/internal/randutil"
	"github.com/lox/dominoes/internal/settlement"
	"github.com/lox/dominoes/internal/store"
)

var (
	// ErrAdmissionRejected means the match is full, already started, or the
	// seat deserted it.
	ErrAdmissionRejected = errors.New("admission rejected")
	// ErrRoomInUse means a private room's match is already under way.
	ErrRoomInUse = errors.New("room is already in use")
)

// Config holds the lobby's fixed durations.
type Config struct {
	TurnTimeout        time.Duration
	AIThinkTime        time.Duration
	MatchmakingTimeout time.Duration
	NewRoundDelay      time.Duration
	Treasury           string
}

// DefaultConfig returns the standard table timings.
func DefaultConfig() Config {
	return Config{
		TurnTimeout:        30 * time.Second,
		AIThinkTime:        1500 * time.Millisecond,
		MatchmakingTimeout: 30 * time.Second,
		NewRoundDelay:      5 * time.Second,
		Treasury:           settlement.TreasuryAddress,
	}
}

// Options wires a Lobby's collaborators. Store is required; everything else
// has a usable default.
type Options struct {
	Store      store.Store
	Settlement settlement.Client
	Profiles   profile.Store
	Strategy   bot.Strategy
	Bus        *game.EventBus
	Clock      quartz.Clock
	Seed       int64
	Config     Config
	Logger     *log.Logger
}

// Lobby is shared by every seat controller of a process.
type Lobby struct {
	store    store.Store
	settle   settlement.Client
	profiles profile.Store
	bus      *game.EventBus
	clock    quartz.Clock
	cfg      Config
	ids      *matchid.Generator
	logger   *log.Logger

	mu       sync.Mutex
	rng      *rand.Rand
	strategy bot.Strategy
}

// New creates a lobby.
func New(opts Options) *Lobby {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Config == (Config{}) {
		opts.Config = DefaultConfig()
	}
	if opts.Config.Treasury == "" {
		opts.Config.Treasury = settlement.TreasuryAddress
	}
	if opts.Settlement == nil {
		opts.Settlement = settlement.NewLedger()
	}
	if opts.Bus == nil {
		opts.Bus = game.NewEventBus()
	}
	seed := randutil.Seed(opts.Seed)
	rng := randutil.New(seed)
	if opts.Strategy == nil {
		opts.Strategy = bot.NewGreedy(randutil.New(randutil.Derive(seed, 1)), opts.Logger)
	}
	return &Lobby{
		store:    opts.Store,
		settle:   opts.Settlement,
		profiles: opts.Profiles,
		bus:      opts.Bus,
		clock:    opts.Clock,
		cfg:      opts.Config,
		ids:      matchid.NewGenerator(nil),
		logger:   opts.Logger.WithPrefix("lobby"),
		rng:      rng,
		strategy: opts.Strategy,
	}
}

// Store returns the backing match store.
func (l *Lobby) Store() store.Store { return l.store }

// Bus returns the event bus every transition is published on.
func (l *Lobby) Bus() *game.EventBus { return l.bus }

// Config returns the lobby timings.
func (l *Lobby) Config() Config { return l.cfg }

// nextRand hands out an independent generator for one deal or draw.
func (l *Lobby) nextRand() *rand.Rand {
	l.mu.Lock()
	defer l.mu.Unlock()
	return randutil.New(l.rng.Int64())
}

func (l *Lobby) decide(m *game.Match, seatID string) bot.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.strategy.Decide(m, seatID)
}

func (l *Lobby) publish(matchID string, events []game.Event) {
	for _, e := range events {
		l.logger.Debug("Match event", "match", matchID, "type", e.EventType(), "event", e.String())
	}
	l.bus.Publish(matchID, events...)
}
