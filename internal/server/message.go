package server

import (
	"encoding/json"
	"time"

	"github.com/lox/dominoes/internal/domino"
	"github.com/lox/dominoes/internal/game"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type AuthData struct {
	Address string `json:"address"`
	Token   string `json:"token,omitempty"`
}

type JoinData struct {
	RoomID string `json:"roomId"`
}

type CreatePrivateData struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name,omitempty"`
}

type JoinCodeData struct {
	Code string `json:"code"`
}

type MatchData struct {
	MatchID string `json:"matchId"`
}

type PlayData struct {
	Tile      domino.Tile      `json:"tile"`
	Placement domino.Placement `json:"placement"`
}

type EndRoundData struct {
	Method        game.Method `json:"method"`
	WinningSeatID string      `json:"winningSeatId,omitempty"`
}

type CanvasData struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Server → Client Messages

type AuthResponseData struct {
	Success bool   `json:"success"`
	SeatID  string `json:"seatId,omitempty"`
	Name    string `json:"name,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomListData struct {
	Rooms []game.Room `json:"rooms"`
}

type MatchJoinedData struct {
	MatchID  string `json:"matchId"`
	SeatID   string `json:"seatId"`
	RoomCode string `json:"roomCode,omitempty"`
}

type ReconnectOfferData struct {
	MatchID  string     `json:"matchId"`
	RoomName string     `json:"roomName"`
	Phase    game.Phase `json:"phase"`
}

type EventData struct {
	MatchID string         `json:"matchId"`
	Type    game.EventType `json:"type"`
	Summary string         `json:"summary"`
}
