package game

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/lox/dominoes/internal/domino"
)

// MinSeats is the smallest table a round can be dealt to.
const MinSeats = 2

// Start deals the first round to every seat that has not left.
func (m *Match) Start(rng *rand.Rand) ([]Event, error) {
	if m.Phase != PhaseWaiting {
		return nil, illegal("", "cannot start a match in phase %s", m.Phase)
	}
	var ids []string
	for _, p := range m.ActiveSeats() {
		ids = append(ids, p.ID)
	}
	if len(ids) < MinSeats {
		return nil, illegal("", "need %d seats to start, have %d", MinSeats, len(ids))
	}
	m.MatchmakingDeadline = time.Time{}
	m.TeamScores = nil
	return m.deal(ids, rng)
}

// NextRound deals a new round to the current seat set, carrying scores over.
func (m *Match) NextRound(rng *rand.Rand) ([]Event, error) {
	if m.Phase != PhaseRoundOver {
		return nil, illegal("", "cannot start a new round in phase %s", m.Phase)
	}
	return m.deal(m.TurnOrder, rng)
}

func (m *Match) deal(ids []string, rng *rand.Rand) ([]Event, error) {
	d, err := Setup(ids, SetupOptions{
		Variant:    m.Variant,
		Mode:       m.Mode,
		HandSize:   m.HandSize,
		TeamScores: m.TeamScores,
		Rand:       rng,
	})
	if err != nil {
		return nil, err
	}
	for id, team := range d.Teams {
		p := m.Players[id]
		p.Team = team
		m.Players[id] = p
	}
	m.Hands = d.Hands
	m.Boneyard = d.Boneyard
	m.Board = domino.Board{{Tile: d.StartTile, Placement: domino.PlaceStart}}
	m.BoardEnds = [2]int{d.StartTile.Left, d.StartTile.Right}
	m.TurnOrder = d.TurnOrder
	m.CurrentSeatID = d.CurrentSeatID
	m.ConsecutivePasses = 0
	m.TeamScores = d.TeamScores
	m.RoundWinner = nil
	m.EndRoundRequest = nil
	m.Phase = PhasePlaying
	m.Round++

	events := []Event{RoundStartEvent{
		Round:       m.Round,
		StartSeatID: d.StartSeatID,
		StartTile:   d.StartTile,
		TurnOrder:   d.TurnOrder,
		NextSeatID:  d.CurrentSeatID,
	}}
	return append(events, m.autoPass()...), nil
}

// checkTurn validates the phase and turn for an intent from seatID.
func (m *Match) checkTurn(seatID string) error {
	if m.Phase != PhasePlaying {
		return illegal(seatID, "match is %s, not playing", m.Phase)
	}
	if m.EndRoundRequest != nil {
		return illegal(seatID, "round is ending")
	}
	if m.CurrentSeatID != seatID {
		return illegal(seatID, "not your turn, waiting on %s", m.CurrentSeatID)
	}
	return nil
}

// Play places tile from seatID's hand on the given end. Emptying the hand
// queues a domino end-round request; no further move is accepted until it
// has been scored.
func (m *Match) Play(seatID string, tile domino.Tile, end domino.Placement) ([]Event, error) {
	if err := m.checkTurn(seatID); err != nil {
		return nil, err
	}
	if end != domino.PlaceLeft && end != domino.PlaceRight {
		return nil, illegal(seatID, "unknown end %q", end)
	}
	hand, ok := m.Hands[seatID].Without(tile)
	if !ok {
		return nil, illegal(seatID, "%s is not in hand", tile)
	}
	idx := 0
	if end == domino.PlaceRight {
		idx = 1
	}
	open := m.BoardEnds[idx]
	if !tile.Matches(open) {
		return nil, illegal(seatID, "%s does not match the %s end (%d)", tile, end, open)
	}

	m.Hands[seatID] = hand
	m.Board = append(m.Board, domino.Play{Tile: tile, Placement: end})
	m.BoardEnds[idx] = tile.Other(open)
	m.ConsecutivePasses = 0

	events := []Event{TilePlayedEvent{SeatID: seatID, Tile: tile, Placement: end, Ends: m.BoardEnds}}
	if len(hand) == 0 {
		return append(events, m.queueEndRound(MethodDomino, seatID)), nil
	}
	m.CurrentSeatID = m.nextSeat(seatID)
	return append(events, m.autoPass()...), nil
}

// Pass gives up the turn. A full cycle of passes blocks the round.
func (m *Match) Pass(seatID string) ([]Event, error) {
	if err := m.checkTurn(seatID); err != nil {
		return nil, err
	}
	events := m.pass(seatID, false)
	return append(events, m.autoPass()...), nil
}

// Draw moves tile from the boneyard into seatID's hand. The turn does not
// advance.
func (m *Match) Draw(seatID string, tile domino.Tile) ([]Event, error) {
	if err := m.checkTurn(seatID); err != nil {
		return nil, err
	}
	if len(m.Boneyard) == 0 {
		return nil, illegal(seatID, "boneyard is empty")
	}
	if m.Hands[seatID].CanPlay(m.BoardEnds[0], m.BoardEnds[1]) {
		return nil, illegal(seatID, "cannot draw while holding a playable tile")
	}
	boneyard, ok := m.Boneyard.Without(tile)
	if !ok {
		return nil, illegal(seatID, "%s is not in the boneyard", tile)
	}
	m.Boneyard = boneyard
	m.Hands[seatID] = m.Hands[seatID].With(tile)

	events := []Event{TileDrawnEvent{SeatID: seatID, Tile: tile, Boneyard: len(boneyard)}}
	return append(events, m.autoPass()...), nil
}

// CanMove reports whether seatID holds a tile matching either open end.
func (m *Match) CanMove(seatID string) bool {
	return m.Hands[seatID].CanPlay(m.BoardEnds[0], m.BoardEnds[1])
}

func (m *Match) pass(seatID string, auto bool) []Event {
	m.ConsecutivePasses++
	events := []Event{PassedEvent{SeatID: seatID, Auto: auto, Passes: m.ConsecutivePasses}}
	if m.ConsecutivePasses >= len(m.TurnOrder) {
		return append(events, m.queueEndRound(MethodBlocked, ""))
	}
	m.CurrentSeatID = m.nextSeat(seatID)
	return events
}

// autoPass passes for every seat in turn that is stuck with an empty boneyard.
func (m *Match) autoPass() []Event {
	var events []Event
	for m.Phase == PhasePlaying && m.EndRoundRequest == nil &&
		len(m.Boneyard) == 0 && !m.CanMove(m.CurrentSeatID) {
		events = append(events, m.pass(m.CurrentSeatID, true)...)
	}
	return events
}

func (m *Match) queueEndRound(method Method, seatID string) Event {
	req := EndRoundRequest{Method: method, WinningSeatID: seatID}
	m.EndRoundRequest = &req
	return RoundEndQueuedEvent{Request: req}
}

// CheckTiles verifies that no tile has been lost or duplicated during a live
// round.
func (m *Match) CheckTiles() error {
	if m.Phase != PhasePlaying {
		return nil
	}
	if n := m.TileCount(); n != domino.SetSize {
		return fmt.Errorf("match %s holds %d tiles, want %d", m.ID, n, domino.SetSize)
	}
	return nil
}
