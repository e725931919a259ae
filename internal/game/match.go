package game

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/lox/dominoes/internal/domino"
)

// Phase is the lifecycle state of a match.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhasePlaying   Phase = "playing"
	PhaseRoundOver Phase = "roundOver"
	PhaseGameOver  Phase = "gameOver"
)

// Method is how a round ended.
type Method string

const (
	MethodDomino  Method = "domino"
	MethodBlocked Method = "blocked"
)

// Player is a seat at the table. Seats are never removed while the match
// exists; Left marks a soft exit from the waiting room or a desertion
// during play.
type Player struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	Team        string `json:"team"`
	IsAI        bool   `json:"isAI"`
	IsConnected bool   `json:"isConnected"`
	Left        bool   `json:"left,omitempty"`
}

// Bet is the stake each seat puts in a cash match.
type Bet struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// RoundResult records who took a round and for how much.
type RoundResult struct {
	Team   string `json:"team"`
	SeatID string `json:"seatId,omitempty"`
	Score  int    `json:"score"`
	Method Method `json:"method"`
}

// EndRoundRequest is the single-slot mailbox a non-authoritative seat uses to
// ask the host to score the round.
type EndRoundRequest struct {
	Method        Method `json:"method"`
	WinningSeatID string `json:"winningSeatId,omitempty"`
}

// Match is the shared record for one table. It is the aggregate root every
// operation in this package mutates.
type Match struct {
	ID         string  `json:"id"`
	RoomID     string  `json:"roomTemplateId"`
	RoomName   string  `json:"roomName"`
	RoomCode   string  `json:"roomCode,omitempty"`
	Kind       Kind    `json:"type"`
	Variant    Variant `json:"variant"`
	Mode       Mode    `json:"mode"`
	MaxPlayers int     `json:"maxPlayers"`
	ScoreToWin int     `json:"scoreToWin"`
	HandSize   int     `json:"handSize"`
	Bet        *Bet    `json:"bet,omitempty"`

	Players  map[string]Player      `json:"players"`
	Hands    map[string]domino.Hand `json:"hands,omitempty"`
	Boneyard domino.Hand            `json:"boneyard,omitempty"`

	Phase             Phase          `json:"phase"`
	Round             int            `json:"round"`
	Board             domino.Board   `json:"board"`
	BoardEnds         [2]int         `json:"boardEnds"`
	CurrentSeatID     string         `json:"currentPlayerId,omitempty"`
	TurnOrder         []string       `json:"playerOrder"`
	ConsecutivePasses int            `json:"passes"`
	TeamScores        map[string]int `json:"teamScores"`
	RoundWinner       *RoundResult   `json:"roundWinnerInfo,omitempty"`
	MatchWinner       string         `json:"matchWinner,omitempty"`

	MatchmakingDeadline time.Time        `json:"matchmakingTimerEnd,omitzero"`
	DesertedSeatIDs     []string         `json:"desertorsAddress,omitempty"`
	EndRoundRequest     *EndRoundRequest `json:"endRoundRequest,omitempty"`
	PayoutAttempted     bool             `json:"payoutAttempted,omitempty"`
	PayoutProcessed     bool             `json:"payoutProcessed,omitempty"`
	PayoutTx            string           `json:"payoutTx,omitempty"`
	PayoutError         string           `json:"payoutError,omitempty"`
	ResultsRecorded     bool             `json:"resultsRecorded,omitempty"`

	Seed      int64     `json:"seed,omitempty"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// NewMatch opens a waiting match for a room.
func NewMatch(id string, room Room) *Match {
	return &Match{
		ID:         id,
		RoomID:     room.ID,
		RoomName:   room.Name,
		RoomCode:   room.AccessCode,
		Kind:       room.Kind,
		Variant:    room.Variant,
		Mode:       room.Mode,
		MaxPlayers: room.MaxPlayers,
		ScoreToWin: room.ScoreToWin,
		HandSize:   room.HandSize,
		Bet:        room.Bet,
		Players:    make(map[string]Player),
		Phase:      PhaseWaiting,
		TeamScores: make(map[string]int),
	}
}

// Clone returns a deep copy. Stores hand out clones so subscribers never share
// mutable state.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Players = maps.Clone(m.Players)
	if m.Hands != nil {
		c.Hands = make(map[string]domino.Hand, len(m.Hands))
		for id, h := range m.Hands {
			c.Hands[id] = slices.Clone(h)
		}
	}
	c.Boneyard = slices.Clone(m.Boneyard)
	c.Board = slices.Clone(m.Board)
	c.TurnOrder = slices.Clone(m.TurnOrder)
	c.TeamScores = maps.Clone(m.TeamScores)
	c.DesertedSeatIDs = slices.Clone(m.DesertedSeatIDs)
	if m.Bet != nil {
		b := *m.Bet
		c.Bet = &b
	}
	if m.RoundWinner != nil {
		r := *m.RoundWinner
		c.RoundWinner = &r
	}
	if m.EndRoundRequest != nil {
		r := *m.EndRoundRequest
		c.EndRoundRequest = &r
	}
	return &c
}

// SeatIDs returns every seat id in ascending order.
func (m *Match) SeatIDs() []string {
	ids := slices.Collect(maps.Keys(m.Players))
	sort.Strings(ids)
	return ids
}

// ActiveSeats returns the seats that have not left, in ascending id order.
func (m *Match) ActiveSeats() []Player {
	var out []Player
	for _, id := range m.SeatIDs() {
		if p := m.Players[id]; !p.Left {
			out = append(out, p)
		}
	}
	return out
}

// ActiveCount is the number of seats that count against capacity.
func (m *Match) ActiveCount() int {
	return len(m.ActiveSeats())
}

// ConnectedCount is the number of seats with a live connection.
func (m *Match) ConnectedCount() int {
	n := 0
	for _, p := range m.Players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

// HostID returns the lowest sorted connected seat, or "" when nobody is
// connected. Authority migrates as soon as that seat drops.
func (m *Match) HostID() string {
	for _, id := range m.SeatIDs() {
		if m.Players[id].IsConnected {
			return id
		}
	}
	return ""
}

// HasSeat reports whether id holds a seat in the match.
func (m *Match) HasSeat(id string) bool {
	_, ok := m.Players[id]
	return ok
}

// IsDeserter reports whether id declined to return to this match.
func (m *Match) IsDeserter(id string) bool {
	return slices.Contains(m.DesertedSeatIDs, id)
}

// MarkDeserted records a desertion once.
func (m *Match) MarkDeserted(id string) bool {
	if m.IsDeserter(id) {
		return false
	}
	m.DesertedSeatIDs = append(m.DesertedSeatIDs, id)
	return true
}

// SetConnected toggles a seat's connection flag.
func (m *Match) SetConnected(id string, connected bool) bool {
	p, ok := m.Players[id]
	if !ok {
		return false
	}
	p.IsConnected = connected
	m.Players[id] = p
	return true
}

// AIControlled reports whether the seat's turns are taken by the fallback
// strategy: AI seats and humans without a connection.
func (m *Match) AIControlled(id string) bool {
	p, ok := m.Players[id]
	return ok && (p.IsAI || !p.IsConnected)
}

// TileCount returns hands + boneyard + board. While a round is live it is
// always domino.SetSize.
func (m *Match) TileCount() int {
	n := len(m.Boneyard) + len(m.Board)
	for _, h := range m.Hands {
		n += len(h)
	}
	return n
}

// Pot is the total stake of a cash match.
func (m *Match) Pot() float64 {
	if m.Bet == nil {
		return 0
	}
	return m.Bet.Amount * float64(len(m.Players))
}

// Teams returns the team ids in play, sorted.
func (m *Match) Teams() []string {
	seen := make(map[string]bool)
	var teams []string
	for _, id := range m.TurnOrder {
		t := m.Players[id].Team
		if !seen[t] {
			seen[t] = true
			teams = append(teams, t)
		}
	}
	sort.Strings(teams)
	return teams
}

func (m *Match) nextSeat(id string) string {
	i := slices.Index(m.TurnOrder, id)
	return m.TurnOrder[(i+1)%len(m.TurnOrder)]
}
