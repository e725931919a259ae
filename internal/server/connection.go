package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/dominoes/internal/auth"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/layout"
	"github.com/lox/dominoes/internal/lobby"
	"github.com/lox/dominoes/internal/store"
)

// Connection represents a WebSocket connection to a client. Each connection
// is one store session: when it drops, the store runs its disconnect hooks.
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	session   string
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	server    *Server
	layouts   *layout.Cache

	mu         sync.RWMutex
	seatID     string
	seat       *lobby.Seat
	seatCancel context.CancelFunc
	canvas     layout.Canvas
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, server *Server) *Connection {
	ctx, cancel := context.WithCancel(server.ctx)
	session := uuid.NewString()

	return &Connection{
		conn:    conn,
		send:    make(chan *Message, 256),
		session: session,
		logger:  server.logger.WithPrefix("conn").With("session", session),
		ctx:     ctx,
		cancel:  cancel,
		server:  server,
		layouts: layout.NewCache(),
		canvas:  layout.CanvasFor(960, 540),
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// Session returns the store session id of this connection.
func (c *Connection) Session() string { return c.session }

// GetSeat returns the authenticated seat id
func (c *Connection) GetSeat() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seatID
}

// GetMatch returns the match this connection is attached to, if any
func (c *Connection) GetMatch() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.seat == nil {
		return ""
	}
	return c.seat.MatchID()
}

func (c *Connection) currentSeat() *lobby.Seat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seat
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = errors.New("connection closed")

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func decode[T any](c *Connection, msg *Message) (T, bool) {
	var data T
	if len(msg.Data) == 0 {
		return data, true
	}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.sendError("invalid_message", "Failed to parse "+msg.Type.String()+" data")
		return data, false
	}
	return data, true
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "seat", c.GetSeat())

	if msg.Type != MessageTypeAuth && msg.Type != MessageTypeListRooms && c.GetSeat() == "" {
		c.sendError("not_authenticated", "Must authenticate first")
		return
	}

	switch msg.Type {
	case MessageTypeAuth:
		if data, ok := decode[AuthData](c, msg); ok {
			c.handleAuth(data)
		}
	case MessageTypeListRooms:
		c.reply(MessageTypeRoomList, RoomListData{Rooms: c.server.rooms})
	case MessageTypeJoin:
		if data, ok := decode[JoinData](c, msg); ok {
			c.handleJoin(data)
		}
	case MessageTypeCreatePrivate:
		if data, ok := decode[CreatePrivateData](c, msg); ok {
			c.handleCreatePrivate(data)
		}
	case MessageTypeJoinCode:
		if data, ok := decode[JoinCodeData](c, msg); ok {
			c.enter(c.server.lobby.JoinWithCode(c.ctx, data.Code, c.player()))
		}
	case MessageTypeLocal:
		if data, ok := decode[JoinData](c, msg); ok {
			c.handleLocal(data)
		}
	case MessageTypeRejoin:
		if data, ok := decode[MatchData](c, msg); ok {
			c.handleRejoin(data)
		}
	case MessageTypeDecline:
		if data, ok := decode[MatchData](c, msg); ok {
			c.handleDecline(data)
		}
	case MessageTypeLeave:
		c.handleLeave()
	case MessageTypePlay:
		if data, ok := decode[PlayData](c, msg); ok {
			c.intent(func(s *lobby.Seat) error { return s.Play(c.ctx, data.Tile, data.Placement) })
		}
	case MessageTypePass:
		c.intent(func(s *lobby.Seat) error { return s.Pass(c.ctx) })
	case MessageTypeDraw:
		c.intent(func(s *lobby.Seat) error { return s.Draw(c.ctx) })
	case MessageTypeEndRound:
		if data, ok := decode[EndRoundData](c, msg); ok {
			c.intent(func(s *lobby.Seat) error { return s.EndRound(c.ctx, data.Method, data.WinningSeatID) })
		}
	case MessageTypeCanvas:
		if data, ok := decode[CanvasData](c, msg); ok {
			c.handleCanvas(data)
		}
	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) reply(t MessageType, data any) {
	msg, err := NewMessage(t, data)
	if err != nil {
		c.logger.Error("Failed to create message", "type", t, "error", err)
		return
	}
	_ = c.SendMessage(msg)
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	c.reply(MessageTypeError, ErrorData{Code: code, Message: message})
}

func (c *Connection) player() game.Player {
	id := c.GetSeat()
	return game.Player{ID: id, Address: id}
}

func (c *Connection) handleAuth(data AuthData) {
	if data.Address == "" {
		c.sendError("invalid_auth", "Address required")
		return
	}
	if c.GetSeat() != "" && c.GetSeat() != data.Address {
		c.sendError("invalid_auth", "Already authenticated as "+c.GetSeat())
		return
	}

	validator, failOpen := c.server.authenticator()
	identity, err := validator.Validate(c.ctx, data.Address, data.Token)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUnavailable) && failOpen:
		c.logger.Warn("Auth service unavailable, trusting claimed address", "address", data.Address, "error", err)
		identity = &auth.Identity{Address: data.Address}
	default:
		c.logger.Warn("Authentication failed", "address", data.Address, "error", err)
		c.reply(MessageTypeAuthResponse, AuthResponseData{Success: false, Error: err.Error()})
		return
	}

	c.mu.Lock()
	c.seatID = data.Address
	c.mu.Unlock()
	c.logger.Info("Authenticated", "seat", data.Address)
	c.reply(MessageTypeAuthResponse, AuthResponseData{Success: true, SeatID: data.Address, Name: identity.Name})

	m, err := c.server.lobby.FindReconnect(c.ctx, data.Address)
	if err == nil {
		c.reply(MessageTypeReconnectOffer, ReconnectOfferData{MatchID: m.ID, RoomName: m.RoomName, Phase: m.Phase})
	} else if !errors.Is(err, store.ErrNotFound) {
		c.logger.Error("Reconnect lookup failed", "error", err)
	}
}

func (c *Connection) handleJoin(data JoinData) {
	room, ok := c.server.room(data.RoomID)
	if !ok {
		c.sendError("room_not_found", "Unknown room "+data.RoomID)
		return
	}
	c.enter(c.server.lobby.FindOrCreate(c.ctx, room, c.player()))
}

func (c *Connection) handleCreatePrivate(data CreatePrivateData) {
	room, ok := c.server.room(data.RoomID)
	if !ok {
		c.sendError("room_not_found", "Unknown room "+data.RoomID)
		return
	}
	if data.Name != "" {
		room.Name = data.Name
	}
	c.enter(c.server.lobby.CreatePrivate(c.ctx, room, c.player()))
}

func (c *Connection) handleLocal(data JoinData) {
	room, ok := c.server.room(data.RoomID)
	if !ok {
		c.sendError("room_not_found", "Unknown room "+data.RoomID)
		return
	}
	c.enter(c.server.lobby.NewLocalMatch(c.ctx, room, c.GetSeat()))
}

func (c *Connection) handleRejoin(data MatchData) {
	if data.MatchID == "" {
		m, err := c.server.lobby.FindReconnect(c.ctx, c.GetSeat())
		c.enter(m, err)
		return
	}
	m, err := c.server.lobby.Store().Get(c.ctx, data.MatchID)
	c.enter(m, err)
}

func (c *Connection) handleDecline(data MatchData) {
	if err := c.server.lobby.Decline(c.ctx, data.MatchID, c.GetSeat()); err != nil {
		c.sendFailure("decline_failed", err)
		return
	}
	c.reply(MessageTypeMatchLeft, MatchData{MatchID: data.MatchID})
}

func (c *Connection) handleLeave() {
	matchID := c.GetMatch()
	if matchID == "" {
		c.sendError("not_in_match", "Not attached to a match")
		return
	}
	c.release()
	c.server.lobby.Store().CancelDisconnect(c.session, matchID)
	if err := c.server.lobby.Exit(c.ctx, matchID, c.GetSeat()); err != nil {
		c.sendFailure("leave_failed", err)
		return
	}
	c.reply(MessageTypeMatchLeft, MatchData{MatchID: matchID})
}

func (c *Connection) handleCanvas(data CanvasData) {
	c.mu.Lock()
	c.canvas = layout.CanvasFor(data.Width, data.Height)
	c.mu.Unlock()
	if s := c.currentSeat(); s != nil {
		if m := s.Snapshot(); m != nil {
			c.sendSnapshot(m)
		}
	}
}

// enter attaches the connection to m and starts following it.
func (c *Connection) enter(m *game.Match, err error) {
	if err != nil {
		c.sendFailure("join_failed", err)
		return
	}
	if prev := c.currentSeat(); prev != nil && prev.MatchID() != m.ID {
		c.release()
		// The old match must see this seat go offline so its host moves on.
		if err := prev.Detach(c.ctx); err != nil {
			c.logger.Warn("Failed to detach previous seat", "match", prev.MatchID(), "error", err)
		}
	}

	seat, err := c.server.lobby.Attach(c.ctx, m.ID, c.GetSeat(), c.session, c.sendSnapshot)
	if err != nil {
		c.sendFailure("join_failed", err)
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.mu.Lock()
	if c.seatCancel != nil {
		c.seatCancel()
	}
	c.seat, c.seatCancel = seat, cancel
	c.mu.Unlock()

	c.reply(MessageTypeMatchJoined, MatchJoinedData{MatchID: m.ID, SeatID: c.GetSeat(), RoomCode: m.RoomCode})
	go func() {
		if err := seat.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("Seat stopped", "match", m.ID, "error", err)
		}
	}()
}

// release stops following the current match without touching the store.
func (c *Connection) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seatCancel != nil {
		c.seatCancel()
	}
	c.seat, c.seatCancel = nil, nil
}

func (c *Connection) intent(fn func(s *lobby.Seat) error) {
	s := c.currentSeat()
	if s == nil {
		c.sendError("not_in_match", "Not attached to a match")
		return
	}
	if err := fn(s); err != nil {
		c.sendFailure("move_rejected", err)
	}
}

func (c *Connection) sendFailure(code string, err error) {
	switch {
	case errors.Is(err, game.ErrIllegalMove):
		code = "illegal_move"
	case errors.Is(err, lobby.ErrAdmissionRejected):
		code = "admission_rejected"
	case errors.Is(err, lobby.ErrRoomInUse):
		code = "room_in_use"
	case errors.Is(err, store.ErrNotFound):
		code = "not_found"
	default:
		c.logger.Warn("Request failed", "code", code, "error", err)
	}
	c.sendError(code, err.Error())
}

func (c *Connection) sendSnapshot(m *game.Match) {
	if m == nil {
		matchID := c.GetMatch()
		c.release()
		c.reply(MessageTypeMatchRemoved, MatchData{MatchID: matchID})
		return
	}
	c.mu.RLock()
	canvas := c.canvas
	c.mu.RUnlock()
	c.reply(MessageTypeSnapshot, NewMatchView(m, c.GetSeat(), c.layouts, canvas))
}
