package game

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/lox/dominoes/internal/domino"
)

// EventType identifies a game event.
type EventType string

const (
	EventTypeRoundStart     EventType = "round_start"
	EventTypeTilePlayed     EventType = "tile_played"
	EventTypeTileDrawn      EventType = "tile_drawn"
	EventTypePassed         EventType = "passed"
	EventTypeRoundEndQueued EventType = "round_end_queued"
	EventTypeRoundEnd       EventType = "round_end"
	EventTypeMatchOver      EventType = "match_over"
)

func (et EventType) String() string {
	return string(et)
}

// Event is anything the state machine reports after a transition.
type Event interface {
	EventType() EventType
	String() string
}

// RoundStartEvent is emitted once a round has been dealt and opened.
type RoundStartEvent struct {
	Round       int
	StartSeatID string
	StartTile   domino.Tile
	TurnOrder   []string
	NextSeatID  string
}

func (e RoundStartEvent) EventType() EventType { return EventTypeRoundStart }
func (e RoundStartEvent) String() string {
	return fmt.Sprintf("round %d: %s opens with %s, %s to play", e.Round, e.StartSeatID, e.StartTile, e.NextSeatID)
}

// TilePlayedEvent is emitted when a seat places a tile.
type TilePlayedEvent struct {
	SeatID    string
	Tile      domino.Tile
	Placement domino.Placement
	Ends      [2]int
}

func (e TilePlayedEvent) EventType() EventType { return EventTypeTilePlayed }
func (e TilePlayedEvent) String() string {
	return fmt.Sprintf("%s: plays %s on the %s (ends %d/%d)", e.SeatID, e.Tile, e.Placement, e.Ends[0], e.Ends[1])
}

// TileDrawnEvent is emitted when a seat takes a tile from the boneyard.
type TileDrawnEvent struct {
	SeatID   string
	Tile     domino.Tile
	Boneyard int
}

func (e TileDrawnEvent) EventType() EventType { return EventTypeTileDrawn }
func (e TileDrawnEvent) String() string {
	return fmt.Sprintf("%s: draws (%d left in the boneyard)", e.SeatID, e.Boneyard)
}

// PassedEvent is emitted for voluntary and automatic passes.
type PassedEvent struct {
	SeatID string
	Auto   bool
	Passes int
}

func (e PassedEvent) EventType() EventType { return EventTypePassed }
func (e PassedEvent) String() string {
	if e.Auto {
		return fmt.Sprintf("%s: has no move and passes automatically (%d in a row)", e.SeatID, e.Passes)
	}
	return fmt.Sprintf("%s: passes (%d in a row)", e.SeatID, e.Passes)
}

// RoundEndQueuedEvent is emitted when a move finishes the round and scoring
// is waiting on the authority.
type RoundEndQueuedEvent struct {
	Request EndRoundRequest
}

func (e RoundEndQueuedEvent) EventType() EventType { return EventTypeRoundEndQueued }
func (e RoundEndQueuedEvent) String() string {
	if e.Request.Method == MethodDomino {
		return fmt.Sprintf("%s: dominoes", e.Request.WinningSeatID)
	}
	return "round is blocked"
}

// RoundEndEvent is emitted when a round has been scored.
type RoundEndEvent struct {
	Result     RoundResult
	TeamScores map[string]int
	Phase      Phase
}

func (e RoundEndEvent) EventType() EventType { return EventTypeRoundEnd }
func (e RoundEndEvent) String() string {
	return fmt.Sprintf("team %s takes the round by %s for %d points (%s)", e.Result.Team, e.Result.Method, e.Result.Score, formatScores(e.TeamScores))
}

// MatchOverEvent is emitted when a team reaches the target score.
type MatchOverEvent struct {
	Winner     string
	TeamScores map[string]int
}

func (e MatchOverEvent) EventType() EventType { return EventTypeMatchOver }
func (e MatchOverEvent) String() string {
	return fmt.Sprintf("team %s wins the match (%s)", e.Winner, formatScores(e.TeamScores))
}

func formatScores(scores map[string]int) string {
	parts := make([]string, 0, len(scores))
	for _, team := range slices.Sorted(maps.Keys(scores)) {
		parts = append(parts, fmt.Sprintf("%s=%d", team, scores[team]))
	}
	return strings.Join(parts, " ")
}

// EventSubscriber receives published events.
type EventSubscriber interface {
	OnEvent(matchID string, event Event)
}

// EventSubscriberFunc adapts a function to EventSubscriber.
type EventSubscriberFunc func(matchID string, event Event)

func (f EventSubscriberFunc) OnEvent(matchID string, event Event) { f(matchID, event) }

// EventBus fans events out to subscribers.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []EventSubscriber
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe adds a subscriber to receive events
func (bus *EventBus) Subscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subscribers = append(bus.subscribers, subscriber)
}

// Publish sends events to all subscribers in order.
func (bus *EventBus) Publish(matchID string, events ...Event) {
	if bus == nil {
		return
	}
	bus.mu.RLock()
	subs := slices.Clone(bus.subscribers)
	bus.mu.RUnlock()
	for _, event := range events {
		for _, sub := range subs {
			sub.OnEvent(matchID, event)
		}
	}
}
