package game

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Variant is the rule family a room plays.
type Variant string

const (
	Internacional Variant = "internacional"
	Cubano        Variant = "cubano"
	Dominicano    Variant = "dominicano"
	Mexicano      Variant = "mexicano"
)

// Mode is the seating arrangement.
type Mode string

const (
	Mode1v1  Mode = "1v1"
	Mode2v2  Mode = "2v2"
	ModeFree Mode = "free"
)

// Kind separates staked matches from free ones.
type Kind string

const (
	KindCash Kind = "cash"
	KindFree Kind = "free"
)

const (
	DefaultHandSize = 5
	MinScoreToWin   = 50
	MaxScoreToWin   = 500
	MaxRoomName     = 20
)

// DefaultScoreToWin returns the target score a variant plays to.
func DefaultScoreToWin(v Variant) int {
	switch v {
	case Cubano:
		return 150
	case Dominicano:
		return 200
	default:
		return 100
	}
}

// SeatsFor returns the table capacity for a mode.
func SeatsFor(m Mode) int {
	if m == Mode1v1 {
		return 2
	}
	return 4
}

// AISeatsFor returns how many fallback seats a local match adds next to the
// single human.
func AISeatsFor(m Mode) int {
	switch m {
	case Mode1v1:
		return 1
	case Mode2v2:
		return 3
	default:
		return 2
	}
}

// Room is a table template players match into.
type Room struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Kind       Kind    `json:"type"`
	Variant    Variant `json:"variant"`
	Mode       Mode    `json:"mode"`
	MaxPlayers int     `json:"maxPlayers"`
	ScoreToWin int     `json:"scoreToWin"`
	HandSize   int     `json:"handSize"`
	Bet        *Bet    `json:"bet,omitempty"`
	Private    bool    `json:"private,omitempty"`
	AccessCode string  `json:"accessCode,omitempty"`
	CreatedBy  string  `json:"createdBy,omitempty"`
}

// WithDefaults fills unset fields from the variant and mode.
func (r Room) WithDefaults() Room {
	if r.Name == "" {
		r.Name = r.ID
	}
	if r.Variant == "" {
		r.Variant = Internacional
	}
	if r.Mode == "" {
		r.Mode = Mode1v1
	}
	if r.MaxPlayers == 0 {
		r.MaxPlayers = SeatsFor(r.Mode)
	}
	if r.ScoreToWin == 0 {
		r.ScoreToWin = DefaultScoreToWin(r.Variant)
	}
	if r.HandSize == 0 {
		r.HandSize = DefaultHandSize
	}
	if r.Kind == "" {
		if r.Bet != nil && r.Bet.Amount > 0 {
			r.Kind = KindCash
		} else {
			r.Kind = KindFree
		}
	}
	return r
}

// Validate checks the template can host a game.
func (r Room) Validate() error {
	var errs []error
	if r.ID == "" {
		errs = append(errs, errors.New("room id is required"))
	}
	if utf8.RuneCountInString(r.Name) > MaxRoomName {
		errs = append(errs, fmt.Errorf("room name %q longer than %d characters", r.Name, MaxRoomName))
	}
	switch r.Variant {
	case Internacional, Cubano, Dominicano:
	case Mexicano:
		errs = append(errs, fmt.Errorf("variant %q is not supported", r.Variant))
	default:
		errs = append(errs, fmt.Errorf("unknown variant %q", r.Variant))
	}
	switch r.Mode {
	case Mode1v1, Mode2v2, ModeFree:
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", r.Mode))
	}
	if r.MaxPlayers < 2 || r.MaxPlayers > 4 {
		errs = append(errs, fmt.Errorf("max players must be between 2 and 4, got %d", r.MaxPlayers))
	}
	if r.Mode == Mode1v1 && r.MaxPlayers != 2 {
		errs = append(errs, fmt.Errorf("1v1 rooms seat exactly 2 players, got %d", r.MaxPlayers))
	}
	if r.Mode == Mode2v2 && r.MaxPlayers != 4 {
		errs = append(errs, fmt.Errorf("2v2 rooms seat exactly 4 players, got %d", r.MaxPlayers))
	}
	if r.ScoreToWin < MinScoreToWin || r.ScoreToWin > MaxScoreToWin {
		errs = append(errs, fmt.Errorf("score to win must be between %d and %d, got %d", MinScoreToWin, MaxScoreToWin, r.ScoreToWin))
	}
	if r.HandSize < 1 || r.HandSize*r.MaxPlayers >= 28 {
		errs = append(errs, fmt.Errorf("hand size %d cannot be dealt to %d seats", r.HandSize, r.MaxPlayers))
	}
	if r.Kind == KindCash && (r.Bet == nil || r.Bet.Amount <= 0) {
		errs = append(errs, errors.New("cash rooms need a positive bet"))
	}
	if r.Bet != nil && r.Bet.Amount < 0 {
		errs = append(errs, errors.New("bet amount cannot be negative"))
	}
	return errors.Join(errs...)
}

// DefaultRooms is the lobby's built-in catalogue.
func DefaultRooms() []Room {
	rooms := []Room{
		{ID: "free-1v1", Name: "Free 1v1", Variant: Internacional, Mode: Mode1v1},
		{ID: "free-2v2", Name: "Free 2v2", Variant: Internacional, Mode: Mode2v2},
		{ID: "free-ffa", Name: "Free for all", Variant: Internacional, Mode: ModeFree},
		{ID: "cubano-2v2", Name: "Cubano 2v2", Variant: Cubano, Mode: Mode2v2},
		{ID: "cash-1v1", Name: "Cash 1v1", Variant: Dominicano, Mode: Mode1v1, Kind: KindCash, Bet: &Bet{Amount: 1, Currency: "USDC"}},
	}
	for i := range rooms {
		rooms[i] = rooms[i].WithDefaults()
	}
	return rooms
}
