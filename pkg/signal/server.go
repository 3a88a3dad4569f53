// Package signal implements the relay that replicates presence records,
// live-state flags and inking strokes between the participants of a room,
// plus the client transports that talk to it over websockets or in-process.
package signal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tomaslejdung/stagesync/pkg/codec"
	"github.com/tomaslejdung/stagesync/pkg/presence"
)

const sendBuffer = 256

// Client represents a connection attached to a room. conn is nil for
// in-process clients.
type Client struct {
	id            string
	conn          *websocket.Conn
	room          string
	participantID string
	joined        *Room
	codec         codec.Codec
	send          chan Message
	done          chan struct{}
	closeOnce     sync.Once
	server        *Server
	logger        *slog.Logger
}

// enqueue queues msg without blocking. Messages for a full or closed
// client are dropped.
func (c *Client) enqueue(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("send buffer full, dropping message", slog.String("type", msg.Type))
		return false
	}
}

// kick stops the client's writer and, for websocket clients, its reader
func (c *Client) kick() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Server manages websocket connections and room routing
type Server struct {
	rooms    map[string]*Room
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	echo     *echo.Echo
	logger   *slog.Logger
}

// NewServer creates a new relay server
func NewServer(logger *slog.Logger) *Server {
	s := &Server{
		rooms: make(map[string]*Room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With(slog.String("component", "relay")),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			)
			return nil
		},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/ws/:room", s.HandleWebSocket)
	e.GET("/rooms/:room", s.HandleRoomStatus)
	s.echo = e

	return s
}

// Handler returns the HTTP handler serving every relay route
func (s *Server) Handler() http.Handler {
	return s.echo
}

// StartServer serves the relay on addr until Shutdown
func (s *Server) StartServer(addr string) error {
	s.logger.Info("relay starting", slog.String("addr", addr))
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and closes every client
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	for _, room := range s.rooms {
		room.mu.RLock()
		for c := range room.clients {
			c.kick()
		}
		room.mu.RUnlock()
	}
	s.mu.RUnlock()
	return s.echo.Shutdown(ctx)
}

// attach adds a client to its room, creating the room if needed. The room
// lock is held on return; the caller must unlock it.
func (s *Server) attach(client *Client) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[client.room]
	if !exists {
		room = newRoom(client.room)
		s.rooms[client.room] = room
		s.logger.Info("room opened", slog.String("room", client.room))
	}

	room.mu.Lock()
	room.clients[client] = true
	return room
}

func (s *Server) getRoom(code string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[NormalizeRoomCode(code)]
	return room, ok
}

func (s *Server) newClient(roomCode string, cd codec.Codec, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		conn:   conn,
		room:   roomCode,
		codec:  cd,
		send:   make(chan Message, sendBuffer),
		done:   make(chan struct{}),
		server: s,
		logger: s.logger.With(slog.String("room", roomCode), slog.String("conn", id)),
	}
}

// removeClient detaches a client from its room. The participant it was
// bound to goes Offline and the flags it raised are lowered. Empty rooms
// are deleted.
func (s *Server) removeClient(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[client.room]
	if !exists {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	delete(room.clients, client)
	if client.participantID != "" && room.members[client.participantID] == client {
		delete(room.members, client.participantID)
		if rec, ok := room.presence[client.participantID]; ok {
			rec.State = presence.Offline
			rec.Seq++
			room.presence[client.participantID] = rec
			room.broadcast(Message{Type: TypePresence, Presence: &rec}, nil)
		}
		if released := room.releaseFlags(client.participantID); len(released) > 0 {
			client.logger.Info("released flags of departed writer",
				slog.String("participantID", client.participantID),
				slog.Any("keys", released),
			)
		}
		client.logger.Info("participant left", slog.String("participantID", client.participantID))
	}

	if len(room.clients) == 0 {
		delete(s.rooms, client.room)
		s.logger.Info("room closed", slog.String("room", client.room))
	}
}

// HandleWebSocket upgrades GET /ws/:room and starts the client pumps
func (s *Server) HandleWebSocket(c echo.Context) error {
	roomCode := NormalizeRoomCode(c.Param("room"))
	if roomCode == "" || !ValidateRoomCode(roomCode) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid room code")
	}

	cd, err := codec.ByName(c.QueryParam("codec"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return nil
	}

	client := s.newClient(roomCode, cd, conn)
	client.logger.Debug("connection opened", slog.String("codec", cd.Name()))

	go client.writePump()
	go client.readPump()
	return nil
}

// HandleRoomStatus serves GET /rooms/:room
func (s *Server) HandleRoomStatus(c echo.Context) error {
	status, ok := s.RoomStatus(c.Param("room"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "room not found")
	}
	return c.JSON(http.StatusOK, status)
}

// RoomStatus reports who is in a room and the current flag values
func (s *Server) RoomStatus(roomCode string) (RoomStatus, bool) {
	room, ok := s.getRoom(roomCode)
	if !ok {
		return RoomStatus{}, false
	}

	room.mu.RLock()
	defer room.mu.RUnlock()

	snap := room.snapshot()
	return RoomStatus{
		Room:         room.code,
		Connections:  len(room.clients),
		Participants: snap.Presence,
		Flags:        snap.States,
	}, true
}

// GetParticipantCount returns how many participants are connected to a room
func (s *Server) GetParticipantCount(roomCode string) int {
	room, ok := s.getRoom(roomCode)
	if !ok {
		return 0
	}

	room.mu.RLock()
	defer room.mu.RUnlock()
	return len(room.members)
}
