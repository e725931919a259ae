package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/dominoes/internal/auth"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/lobby"
	"github.com/lox/dominoes/internal/settlement"
)

// Config represents the complete server configuration
type Config struct {
	Server     *ServerSettings     `hcl:"server,block"`
	Timers     *TimerSettings      `hcl:"timers,block"`
	Store      *StoreSettings      `hcl:"store,block"`
	Profiles   *ProfileSettings    `hcl:"profiles,block"`
	Settlement *SettlementSettings `hcl:"settlement,block"`
	Auth       *AuthSettings       `hcl:"auth,block"`
	Rooms      []RoomConfig        `hcl:"room,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	Seed     int64  `hcl:"seed,optional"`
}

// TimerSettings holds the table timings as duration strings ("30s").
type TimerSettings struct {
	Turn        string `hcl:"turn,optional"`
	AIThink     string `hcl:"ai_think,optional"`
	Matchmaking string `hcl:"matchmaking,optional"`
	NewRound    string `hcl:"new_round,optional"`
}

// StoreSettings selects where match records live.
type StoreSettings struct {
	Backend   string `hcl:"backend,optional"`
	RedisAddr string `hcl:"redis_addr,optional"`
	RedisDB   int    `hcl:"redis_db,optional"`
	Prefix    string `hcl:"prefix,optional"`
	NATSURL   string `hcl:"nats_url,optional"`
}

// ProfileSettings points at the profile database. Empty keeps profiles in
// memory.
type ProfileSettings struct {
	PostgresURL string `hcl:"postgres_url,optional"`
}

// SettlementSettings configures payouts. Without an endpoint payouts go to an
// in-memory ledger.
type SettlementSettings struct {
	Endpoint string `hcl:"endpoint,optional"`
	Treasury string `hcl:"treasury,optional"`
	Timeout  string `hcl:"timeout,optional"`
}

// AuthSettings points at an external session verifier. Without a URL any
// claimed address is trusted.
type AuthSettings struct {
	URL         string `hcl:"url,optional"`
	AdminSecret string `hcl:"admin_secret,optional"`
	Timeout     string `hcl:"timeout,optional"`
	FailOpen    bool   `hcl:"fail_open,optional"`
}

// RoomConfig defines a room template
type RoomConfig struct {
	ID          string  `hcl:"id,label"`
	Name        string  `hcl:"name,optional"`
	Type        string  `hcl:"type,optional"`
	Variant     string  `hcl:"variant,optional"`
	Mode        string  `hcl:"mode,optional"`
	MaxPlayers  int     `hcl:"max_players,optional"`
	ScoreToWin  int     `hcl:"score_to_win,optional"`
	HandSize    int     `hcl:"hand_size,optional"`
	BetAmount   float64 `hcl:"bet_amount,optional"`
	BetCurrency string  `hcl:"bet_currency,optional"`
	Private     bool    `hcl:"private,optional"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig loads configuration from an HCL file. A missing file yields the
// defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	defaults := lobby.DefaultConfig()
	if c.Timers == nil {
		c.Timers = &TimerSettings{}
	}
	if c.Timers.Turn == "" {
		c.Timers.Turn = defaults.TurnTimeout.String()
	}
	if c.Timers.AIThink == "" {
		c.Timers.AIThink = defaults.AIThinkTime.String()
	}
	if c.Timers.Matchmaking == "" {
		c.Timers.Matchmaking = defaults.MatchmakingTimeout.String()
	}
	if c.Timers.NewRound == "" {
		c.Timers.NewRound = defaults.NewRoundDelay.String()
	}

	if c.Store == nil {
		c.Store = &StoreSettings{}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.Prefix == "" {
		c.Store.Prefix = "dominoes"
	}

	if c.Profiles == nil {
		c.Profiles = &ProfileSettings{}
	}

	if c.Settlement == nil {
		c.Settlement = &SettlementSettings{}
	}
	if c.Settlement.Treasury == "" {
		c.Settlement.Treasury = settlement.TreasuryAddress
	}
	if c.Settlement.Timeout == "" {
		c.Settlement.Timeout = "10s"
	}

	if c.Auth == nil {
		c.Auth = &AuthSettings{}
	}
	if c.Auth.Timeout == "" {
		c.Auth.Timeout = auth.DefaultTimeout.String()
	}
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Server.Port))
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if _, err := c.LobbyConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseDuration("settlement timeout", c.Settlement.Timeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseDuration("auth timeout", c.Auth.Timeout); err != nil {
		errs = append(errs, err)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store: redis backend needs redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("store: unknown backend %q", c.Store.Backend))
	}

	seen := make(map[string]bool)
	for _, rc := range c.Rooms {
		if seen[rc.ID] {
			errs = append(errs, fmt.Errorf("room %s: defined twice", rc.ID))
		}
		seen[rc.ID] = true
		if err := rc.Room().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("room %s: %w", rc.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// Level returns the configured log level, falling back to info.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.Server.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// LobbyConfig converts the timer block into lobby timings.
func (c *Config) LobbyConfig() (lobby.Config, error) {
	var (
		cfg lobby.Config
		err error
	)
	if cfg.TurnTimeout, err = parseDuration("timers turn", c.Timers.Turn); err != nil {
		return cfg, err
	}
	if cfg.AIThinkTime, err = parseDuration("timers ai_think", c.Timers.AIThink); err != nil {
		return cfg, err
	}
	if cfg.MatchmakingTimeout, err = parseDuration("timers matchmaking", c.Timers.Matchmaking); err != nil {
		return cfg, err
	}
	if cfg.NewRoundDelay, err = parseDuration("timers new_round", c.Timers.NewRound); err != nil {
		return cfg, err
	}
	cfg.Treasury = c.Settlement.Treasury
	return cfg, nil
}

// SettlementTimeout returns the payout request timeout.
func (c *Config) SettlementTimeout() time.Duration {
	d, err := parseDuration("settlement timeout", c.Settlement.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// AuthValidator returns the session verifier the auth block describes.
func (c *Config) AuthValidator() auth.Validator {
	if c.Auth.URL == "" {
		return auth.NewNoopValidator()
	}
	timeout, _ := parseDuration("auth timeout", c.Auth.Timeout)
	return auth.NewHTTPValidator(c.Auth.URL, c.Auth.AdminSecret, timeout)
}

// RoomList returns the configured rooms, or the built-in catalogue when none
// are configured.
func (c *Config) RoomList() []game.Room {
	if len(c.Rooms) == 0 {
		return game.DefaultRooms()
	}
	rooms := make([]game.Room, 0, len(c.Rooms))
	for _, rc := range c.Rooms {
		rooms = append(rooms, rc.Room())
	}
	return rooms
}

// Room converts the block into a room template with defaults applied.
func (rc RoomConfig) Room() game.Room {
	r := game.Room{
		ID:         rc.ID,
		Name:       rc.Name,
		Kind:       game.Kind(rc.Type),
		Variant:    game.Variant(rc.Variant),
		Mode:       game.Mode(rc.Mode),
		MaxPlayers: rc.MaxPlayers,
		ScoreToWin: rc.ScoreToWin,
		HandSize:   rc.HandSize,
		Private:    rc.Private,
	}
	if rc.BetAmount != 0 {
		currency := rc.BetCurrency
		if currency == "" {
			currency = "USDC"
		}
		r.Bet = &game.Bet{Amount: rc.BetAmount, Currency: currency}
	}
	return r.WithDefaults()
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", name, value)
	}
	return d, nil
}
