// Package server exposes the lobby to browser and terminal clients over
// WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/dominoes/internal/auth"
	"github.com/lox/dominoes/internal/game"
	"github.com/lox/dominoes/internal/lobby"
)

// Server represents the WebSocket server
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	lobby       *lobby.Lobby
	rooms       []game.Room
	logger      *log.Logger
	http        *http.Server
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.RWMutex
	connections map[*Connection]bool

	auth         auth.Validator
	authFailOpen bool
}

// NewServer creates a new WebSocket server for lb. rooms is the public room
// catalogue.
func NewServer(addr string, lb *lobby.Lobby, rooms []game.Room, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Browser clients are served from other origins.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		lobby:       lb,
		rooms:       rooms,
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
		connections: make(map[*Connection]bool),
		auth:        auth.NewNoopValidator(),
	}
	s.http = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	lb.Bus().Subscribe(game.EventSubscriberFunc(s.forwardEvent))
	return s
}

// SetAuth installs a session verifier. With failOpen, clients are admitted on
// their claimed address while the verifier is unavailable.
func (s *Server) SetAuth(v auth.Validator, failOpen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = v
	s.authFailOpen = failOpen
}

func (s *Server) authenticator() (auth.Validator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth, s.authFailOpen
}

// Handler returns the HTTP routes served by the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/rooms", s.handleRooms)
	return mux
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.Info("Starting WebSocket server", "addr", s.addr, "rooms", len(s.rooms))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes every connection and shuts the listener down
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	return s.http.Shutdown(ctx)
}

func (s *Server) room(id string) (game.Room, bool) {
	for _, r := range s.rooms {
		if r.ID == id {
			return r, true
		}
	}
	return game.Room{}, false
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s)
	s.register(client)
	client.Start()

	go func() {
		<-client.ctx.Done()
		s.unregister(client)
	}()
}

func (s *Server) register(c *Connection) {
	s.mu.Lock()
	s.connections[c] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "session", c.session, "total", total)
}

// unregister drops a connection and runs its session's disconnect hooks, so
// the seat shows as offline and authority migrates.
func (s *Server) unregister(c *Connection) {
	s.mu.Lock()
	_, ok := s.connections[c]
	delete(s.connections, c)
	total := len(s.connections)
	s.mu.Unlock()
	if !ok {
		return
	}

	c.release()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.lobby.Store().Disconnect(ctx, c.session); err != nil {
		s.logger.Error("Disconnect hooks failed", "session", c.session, "error", err)
	}
	s.logger.Info("Client disconnected", "session", c.session, "seat", c.GetSeat(), "total", total)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(RoomListData{Rooms: s.rooms}); err != nil {
		s.logger.Error("Failed to encode rooms", "error", err)
	}
}

// forwardEvent relays a state machine event to every connection following
// the match.
func (s *Server) forwardEvent(matchID string, e game.Event) {
	msg, err := NewMessage(MessageTypeEvent, EventData{MatchID: matchID, Type: e.EventType(), Summary: e.String()})
	if err != nil {
		s.logger.Error("Failed to create event message", "error", err)
		return
	}
	s.BroadcastToMatch(matchID, msg)
}

// BroadcastToMatch sends a message to all connections attached to a match
func (s *Server) BroadcastToMatch(matchID string, msg *Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for conn := range s.connections {
		if conn.GetMatch() == matchID {
			if err := conn.SendMessage(msg); err == nil {
				count++
			}
		}
	}
	s.logger.Debug("Broadcast to match", "match", matchID, "type", msg.Type, "recipients", count)
}

// ConnectedSeats returns the authenticated seat ids of every connection
func (s *Server) ConnectedSeats() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var seats []string
	for conn := range s.connections {
		if id := conn.GetSeat(); id != "" {
			seats = append(seats, id)
		}
	}
	return seats
}
