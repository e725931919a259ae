package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/dominoes/internal/bot"
	"github.com/lox/dominoes/internal/domino"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/server"
)

// ErrMatchRemoved is returned by Player.Run when the server deletes the match
// the player was following.
var ErrMatchRemoved = errors.New("match removed")

// Player drives one seat over the wire with a bot strategy. It acts on
// snapshots only: whenever a new version shows its own turn it decides from
// the visible state and sends the move.
type Player struct {
	client   *Client
	strategy bot.Strategy
	logger   *log.Logger
	room     string
	token    string

	mu      sync.Mutex
	matchID string
	acted   int64
	views   chan server.MatchView
	failed  chan error
}

// NewPlayer wires a strategy to a client. Handlers are registered here, so
// create the player before authenticating.
func NewPlayer(client *Client, strategy bot.Strategy, room string, logger *log.Logger) *Player {
	p := &Player{
		client:   client,
		strategy: strategy,
		logger:   logger.WithPrefix("player"),
		room:     room,
		acted:    -1,
		views:    make(chan server.MatchView, 64),
		failed:   make(chan error, 1),
	}

	client.AddEventHandler(server.MessageTypeAuthResponse, p.handleAuthResponse)
	client.AddEventHandler(server.MessageTypeReconnectOffer, p.handleReconnectOffer)
	client.AddEventHandler(server.MessageTypeMatchJoined, p.handleMatchJoined)
	client.AddEventHandler(server.MessageTypeMatchRemoved, p.handleMatchRemoved)
	client.AddEventHandler(server.MessageTypeSnapshot, p.handleSnapshot)
	client.AddEventHandler(server.MessageTypeError, p.handleError)
	client.AddEventHandler(server.MessageTypeEvent, p.handleEvent)

	return p
}

// WithToken sets the session token sent on authentication.
func (p *Player) WithToken(token string) *Player {
	p.token = token
	return p
}

// MatchID returns the match the player is seated in, if any.
func (p *Player) MatchID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matchID
}

// Run authenticates as address and plays until done reports true for a
// snapshot, returning that snapshot.
func (p *Player) Run(ctx context.Context, address string, done func(server.MatchView) bool) (server.MatchView, error) {
	if err := p.client.Auth(address, p.token); err != nil {
		return server.MatchView{}, err
	}
	for {
		select {
		case v := <-p.views:
			if done(v) {
				return v, nil
			}
		case err := <-p.failed:
			return server.MatchView{}, err
		case <-p.client.Done():
			return server.MatchView{}, fmt.Errorf("connection closed")
		case <-ctx.Done():
			return server.MatchView{}, ctx.Err()
		}
	}
}

func (p *Player) fail(err error) {
	select {
	case p.failed <- err:
	default:
	}
}

func (p *Player) handleAuthResponse(msg *server.Message) {
	var data server.AuthResponseData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		p.fail(fmt.Errorf("decoding auth response: %w", err))
		return
	}
	if !data.Success {
		p.fail(fmt.Errorf("authentication failed: %s", data.Error))
		return
	}
	p.logger.Info("Authenticated", "seat", data.SeatID)
	if err := p.client.Join(p.room); err != nil {
		p.fail(err)
	}
}

// A bot always resumes the match it was seated in.
func (p *Player) handleReconnectOffer(msg *server.Message) {
	var data server.ReconnectOfferData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	p.logger.Info("Resuming match", "match", data.MatchID, "phase", data.Phase)
	if err := p.client.Rejoin(data.MatchID); err != nil {
		p.fail(err)
	}
}

func (p *Player) handleMatchJoined(msg *server.Message) {
	var data server.MatchJoinedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	p.mu.Lock()
	if p.matchID != data.MatchID {
		p.acted = -1
	}
	p.matchID = data.MatchID
	p.mu.Unlock()
	p.logger.Info("Joined match", "match", data.MatchID, "seat", data.SeatID)
}

func (p *Player) handleMatchRemoved(msg *server.Message) {
	var data server.MatchData
	_ = json.Unmarshal(msg.Data, &data)
	p.logger.Info("Match removed", "match", data.MatchID)
	p.fail(fmt.Errorf("%w: %s", ErrMatchRemoved, data.MatchID))
}

func (p *Player) handleError(msg *server.Message) {
	var data server.ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	switch data.Code {
	case "illegal_move", "move_rejected":
		// The next snapshot retriggers the decision.
		p.logger.Debug("Move rejected", "error", data.Message)
	default:
		p.logger.Warn("Server error", "code", data.Code, "error", data.Message)
		if data.Code == "room_not_found" || data.Code == "join_failed" {
			p.fail(fmt.Errorf("%s: %s", data.Code, data.Message))
		}
	}
}

func (p *Player) handleEvent(msg *server.Message) {
	var data server.EventData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return
	}
	p.logger.Debug(data.Summary, "match", data.MatchID, "type", data.Type)
}

func (p *Player) handleSnapshot(msg *server.Message) {
	var v server.MatchView
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		p.logger.Warn("Bad snapshot", "error", err)
		return
	}

	seat := p.client.Address()
	if v.Phase == game.PhasePlaying && v.CurrentSeatID == seat && p.claim(v.Version) {
		d := p.strategy.Decide(visibleMatch(v, seat), seat)
		p.logger.Debug("Acting", "match", v.ID, "version", v.Version, "decision", d.String(), "reasoning", d.Reasoning)
		if err := p.send(d); err != nil {
			p.logger.Warn("Failed to send move", "error", err)
		}
	}

	select {
	case p.views <- v:
	default:
		p.logger.Debug("Dropping snapshot, reader is behind", "version", v.Version)
	}
}

// claim reports whether version has not been acted on yet.
func (p *Player) claim(version int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if version <= p.acted {
		return false
	}
	p.acted = version
	return true
}

func (p *Player) send(d bot.Decision) error {
	switch d.Action {
	case bot.Play:
		return p.client.Play(d.Tile, d.Placement)
	case bot.Draw:
		return p.client.Draw()
	default:
		return p.client.Pass()
	}
}

// visibleMatch rebuilds what a seat can see as a match for the strategies.
// The boneyard holds placeholder tiles: only its size is known, and the
// server chooses the tile on a draw.
func visibleMatch(v server.MatchView, seat string) *game.Match {
	m := &game.Match{
		ID:            v.ID,
		Variant:       v.Variant,
		Mode:          v.Mode,
		Phase:         v.Phase,
		Round:         v.Round,
		Board:         v.Board,
		BoardEnds:     v.BoardEnds,
		CurrentSeatID: v.CurrentSeatID,
		Hands:         map[string]domino.Hand{seat: v.Hand},
		Boneyard:      make(domino.Hand, v.Boneyard),
		Players:       make(map[string]game.Player, len(v.Seats)),
		TeamScores:    v.TeamScores,
	}
	for _, s := range v.Seats {
		m.Players[s.ID] = game.Player{ID: s.ID, Address: s.Address, Team: s.Team, IsAI: s.IsAI, IsConnected: s.IsConnected, Left: s.Left}
	}
	return m
}
