package server

import (
	"time"

	"github.com/lox/dominoes/internal/domino"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/layout"
)

// SeatView is what every client may know about a seat.
type SeatView struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	Team        string `json:"team,omitempty"`
	IsAI        bool   `json:"isAI"`
	IsConnected bool   `json:"isConnected"`
	Left        bool   `json:"left,omitempty"`
	Deserted    bool   `json:"deserted,omitempty"`
	Tiles       int    `json:"tiles"`
}

// MatchView is a match as seen from one seat: other hands are reduced to
// tile counts and the board comes with its projected layout.
type MatchView struct {
	ID                  string            `json:"id"`
	RoomName            string            `json:"roomName"`
	RoomCode            string            `json:"roomCode,omitempty"`
	Kind                game.Kind         `json:"type"`
	Variant             game.Variant      `json:"variant"`
	Mode                game.Mode         `json:"mode"`
	MaxPlayers          int               `json:"maxPlayers"`
	ScoreToWin          int               `json:"scoreToWin"`
	Bet                 *game.Bet         `json:"bet,omitempty"`
	Pot                 float64           `json:"pot,omitempty"`
	Phase               game.Phase        `json:"phase"`
	Round               int               `json:"round"`
	HostID              string            `json:"hostId,omitempty"`
	Seats               []SeatView        `json:"seats"`
	Hand                domino.Hand       `json:"hand,omitempty"`
	Board               domino.Board      `json:"board"`
	BoardEnds           [2]int            `json:"boardEnds"`
	Boneyard            int               `json:"boneyard"`
	CurrentSeatID       string            `json:"currentPlayerId,omitempty"`
	TeamScores          map[string]int    `json:"teamScores"`
	RoundWinner         *game.RoundResult `json:"roundWinnerInfo,omitempty"`
	MatchWinner         string            `json:"matchWinner,omitempty"`
	MatchmakingDeadline time.Time         `json:"matchmakingTimerEnd,omitzero"`
	PayoutTx            string            `json:"payoutTx,omitempty"`
	PayoutError         string            `json:"payoutError,omitempty"`
	Layout              []layout.Placed   `json:"layout,omitempty"`
	Canvas              layout.Canvas     `json:"canvas"`
	LayoutError         string            `json:"layoutError,omitempty"`
	Version             int64             `json:"version"`
}

// NewMatchView projects m for seatID. A layout failure only affects the
// projection; the tiles placed before it are still returned.
func NewMatchView(m *game.Match, seatID string, cache *layout.Cache, canvas layout.Canvas) MatchView {
	v := MatchView{
		ID:                  m.ID,
		RoomName:            m.RoomName,
		RoomCode:            m.RoomCode,
		Kind:                m.Kind,
		Variant:             m.Variant,
		Mode:                m.Mode,
		MaxPlayers:          m.MaxPlayers,
		ScoreToWin:          m.ScoreToWin,
		Bet:                 m.Bet,
		Pot:                 m.Pot(),
		Phase:               m.Phase,
		Round:               m.Round,
		HostID:              m.HostID(),
		Hand:                m.Hands[seatID],
		Board:               m.Board,
		BoardEnds:           m.BoardEnds,
		Boneyard:            len(m.Boneyard),
		CurrentSeatID:       m.CurrentSeatID,
		TeamScores:          m.TeamScores,
		RoundWinner:         m.RoundWinner,
		MatchWinner:         m.MatchWinner,
		MatchmakingDeadline: m.MatchmakingDeadline,
		PayoutTx:            m.PayoutTx,
		PayoutError:         m.PayoutError,
		Canvas:              canvas,
		Version:             m.Version,
	}
	for _, id := range m.SeatIDs() {
		p := m.Players[id]
		v.Seats = append(v.Seats, SeatView{
			ID:          p.ID,
			Address:     p.Address,
			Team:        p.Team,
			IsAI:        p.IsAI,
			IsConnected: p.IsConnected,
			Left:        p.Left,
			Deserted:    m.IsDeserter(id),
			Tiles:       len(m.Hands[id]),
		})
	}
	if len(m.Board) > 0 {
		placed, err := cache.Layout(m.Board, canvas)
		v.Layout = placed
		if err != nil {
			v.LayoutError = err.Error()
		}
	}
	return v
}
