package signal

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomaslejdung/stagesync/pkg/codec"
)

// RemoteClient is a Conn over a websocket to a relay server
type RemoteClient struct {
	*Replica

	conn         *websocket.Conn
	codec        codec.Codec
	outgoing     chan Message
	done         chan struct{}
	onDisconnect func()
	closed       bool
	closeMu      sync.Mutex
	logger       *slog.Logger
}

// RelayURL builds the websocket URL of a room. server may be given as
// host:port, http(s)://host or ws(s)://host.
func RelayURL(server, room string, cd codec.Codec) (string, error) {
	if !strings.Contains(server, "://") {
		server = "ws://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/" + NormalizeRoomCode(room)
	q := u.Query()
	q.Set("codec", cd.Name())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial connects to a relay room and performs the join handshake before
// returning. No retry is attempted.
func Dial(ctx context.Context, server, room, participantID string, cd codec.Codec, logger *slog.Logger) (*RemoteClient, error) {
	if cd == nil {
		cd = codec.Default
	}
	endpoint, err := RelayURL(server, room, cd)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	rc := &RemoteClient{
		conn:     conn,
		codec:    cd,
		outgoing: make(chan Message, sendBuffer),
		done:     make(chan struct{}),
		logger:   logger.With(slog.String("component", "relay-client"), slog.String("room", NormalizeRoomCode(room))),
	}
	rc.Replica = newReplica(participantID, rc.enqueue, rc.logger)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	if err := rc.write(Message{Type: TypeJoin, ParticipantID: participantID}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}
	reply, err := rc.read()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read join reply: %w", err)
	}
	if reply.Type != TypeJoined {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrJoinRejected, reply.Error)
	}
	_ = conn.SetReadDeadline(time.Time{})

	rc.loadSnapshot(reply)
	rc.logger.Info("joined relay room", slog.String("participantID", participantID), slog.String("codec", cd.Name()))

	go rc.readLoop()
	go rc.writeLoop()
	return rc, nil
}

func (rc *RemoteClient) read() (Message, error) {
	var msg Message
	_, data, err := rc.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	err = rc.codec.Unmarshal(data, &msg)
	return msg, err
}

func (rc *RemoteClient) write(msg Message) error {
	data, err := rc.codec.Marshal(msg)
	if err != nil {
		return err
	}
	frameType := websocket.TextMessage
	if rc.codec.Binary() {
		frameType = websocket.BinaryMessage
	}
	return rc.conn.WriteMessage(frameType, data)
}

func (rc *RemoteClient) readLoop() {
	defer func() {
		rc.closeMu.Lock()
		handler := rc.onDisconnect
		closed := rc.closed
		rc.closeMu.Unlock()
		if handler != nil && !closed {
			handler()
		}
	}()

	for {
		msg, err := rc.read()
		if err != nil {
			select {
			case <-rc.done:
			default:
				rc.logger.Warn("relay read failed", slog.Any("error", err))
			}
			return
		}
		rc.apply(msg)
	}
}

func (rc *RemoteClient) writeLoop() {
	for {
		select {
		case msg := <-rc.outgoing:
			if err := rc.write(msg); err != nil {
				rc.logger.Warn("relay write failed", slog.String("type", msg.Type), slog.Any("error", err))
				return
			}
		case <-rc.done:
			return
		}
	}
}

// enqueue hands msg to the write loop without waiting for delivery
func (rc *RemoteClient) enqueue(msg Message) error {
	rc.closeMu.Lock()
	closed := rc.closed
	rc.closeMu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case rc.outgoing <- msg:
		return nil
	default:
		rc.logger.Warn("outgoing buffer full, dropping message", slog.String("type", msg.Type))
		return nil
	}
}

// SetDisconnectHandler sets callback for when connection is lost
func (rc *RemoteClient) SetDisconnectHandler(handler func()) {
	rc.closeMu.Lock()
	rc.onDisconnect = handler
	rc.closeMu.Unlock()
}

// Close leaves the room
func (rc *RemoteClient) Close() error {
	rc.closeMu.Lock()
	defer rc.closeMu.Unlock()
	if rc.closed {
		return nil
	}
	rc.closed = true
	close(rc.done)
	_ = rc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return rc.conn.Close()
}
