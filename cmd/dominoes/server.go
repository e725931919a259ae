package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/lox/dominoes/internal/lobby"
	"github.com/lox/dominoes/internal/profile"
	"github.com/lox/dominoes/internal/server"
	"github.com/lox/dominoes/internal/settlement"
	"github.com/lox/dominoes/internal/store"
)

// ServerCmd runs the WebSocket match server
type ServerCmd struct {
	Config   string `short:"c" default:"dominoes.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	Seed     *int64 `help:"Deterministic RNG seed (overrides config)"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.Addr != "" {
		host, port, err := splitAddr(c.Addr)
		if err != nil {
			return err
		}
		cfg.Server.Address, cfg.Server.Port = host, port
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Seed != nil {
		cfg.Server.Seed = *c.Seed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Level())
	ctx := signalContext(logger)
	clock := quartz.NewReal()

	st, closeStore, err := openStore(ctx, cfg.Store, clock, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	profiles, closeProfiles, err := openProfiles(ctx, cfg.Profiles)
	if err != nil {
		return err
	}
	defer closeProfiles()

	var settle settlement.Client = settlement.NewLedger()
	if cfg.Settlement.Endpoint != "" {
		settle = settlement.NewHTTPClient(cfg.Settlement.Endpoint, cfg.SettlementTimeout(), logger)
	}

	lobbyCfg, err := cfg.LobbyConfig()
	if err != nil {
		return err
	}
	lb := lobby.New(lobby.Options{
		Store:      st,
		Settlement: settle,
		Profiles:   profiles,
		Clock:      clock,
		Seed:       cfg.Server.Seed,
		Config:     lobbyCfg,
		Logger:     logger,
	})

	rooms := cfg.RoomList()
	srv := server.NewServer(cfg.Addr(), lb, rooms, logger)
	srv.SetAuth(cfg.AuthValidator(), cfg.Auth.FailOpen)

	logger.Info("Starting dominoes server",
		"addr", cfg.Addr(),
		"store", cfg.Store.Backend,
		"nats", cfg.Store.NATSURL != "",
		"profiles", cfg.Profiles.PostgresURL != "",
		"settlement", cfg.Settlement.Endpoint != "",
		"rooms", len(rooms))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	return g.Wait()
}

// openStore connects the configured match store, optionally fanning changes
// out over NATS.
func openStore(ctx context.Context, cfg *server.StoreSettings, clock quartz.Clock, logger *log.Logger) (store.Store, func(), error) {
	var (
		st      store.Store
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Backend {
	case server.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		closers = append(closers, func() { _ = client.Close() })
		st = store.NewRedis(client, cfg.Prefix, clock, logger)
	default:
		st = store.NewMemory(clock)
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("dominoes"))
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connecting to nats at %s: %w", cfg.NATSURL, err)
		}
		closers = append(closers, func() { _ = nc.Drain() })
		st = store.NewNATS(st, nc, cfg.Prefix, logger)
	}
	return st, closeAll, nil
}

// openProfiles returns the Postgres profile store when configured, memory
// otherwise.
func openProfiles(ctx context.Context, cfg *server.ProfileSettings) (profile.Store, func(), error) {
	if cfg.PostgresURL == "" {
		return profile.NewMemory(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	pg := profile.NewPostgres(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrating profiles: %w", err)
	}
	return pg, pool.Close, nil
}

// splitAddr parses a host:port override. An empty host keeps all interfaces.
func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	return host, port, nil
}
