package signal

import (
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/tomaslejdung/stagesync/pkg/livestate"
	"github.com/tomaslejdung/stagesync/pkg/presence"
)

// readPump reads frames from the websocket until it fails
func (c *Client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.kick()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", slog.Any("error", err))
			}
			return
		}

		var msg Message
		if err := c.codec.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("invalid message format", slog.Any("error", err))
			continue
		}

		c.handleMessage(msg)
	}
}

// writePump encodes queued messages with the client's codec
func (c *Client) writePump() {
	defer c.conn.Close()

	frameType := websocket.TextMessage
	if c.codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case msg := <-c.send:
			data, err := c.codec.Marshal(msg)
			if err != nil {
				c.logger.Error("encode failed", slog.String("type", msg.Type), slog.Any("error", err))
				continue
			}
			if err := c.conn.WriteMessage(frameType, data); err != nil {
				c.logger.Warn("websocket write failed", slog.Any("error", err))
				return
			}
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage processes one client message
func (c *Client) handleMessage(msg Message) {
	if msg.Type != TypeJoin && c.joined == nil {
		c.sendError("join required before " + msg.Type)
		return
	}

	switch msg.Type {
	case TypeJoin:
		c.handleJoin(msg)
	case TypePresence:
		c.handlePresence(msg)
	case TypeInit:
		c.handleInit(msg)
	case TypeState:
		c.handleState(msg)
	case TypeInk:
		c.handleInk(msg)
	default:
		c.logger.Warn("unknown message type", slog.String("type", msg.Type))
	}
}

func (c *Client) sendError(text string) {
	c.enqueue(Message{Type: TypeError, Error: text})
}

// handleJoin binds the connection to a participant and answers with the
// room snapshot. A second connection for the same participant replaces the
// first.
func (c *Client) handleJoin(msg Message) {
	if c.joined != nil {
		c.sendError("already joined")
		return
	}
	if msg.ParticipantID == "" {
		c.sendError("participantId required")
		return
	}

	room := c.server.attach(c)
	defer room.mu.Unlock()

	if old, ok := room.members[msg.ParticipantID]; ok && old != c {
		c.logger.Info("participant reconnecting, closing old connection",
			slog.String("participantID", msg.ParticipantID))
		delete(room.clients, old)
		old.kick()
	}

	c.participantID = msg.ParticipantID
	c.joined = room
	room.members[c.participantID] = c

	c.enqueue(Message{
		Type:          TypeJoined,
		Room:          room.code,
		ParticipantID: c.participantID,
		Snapshot:      room.snapshot(),
	})

	if rec, ok := room.presence[c.participantID]; ok && rec.State != presence.Online {
		rec.State = presence.Online
		rec.Seq++
		room.presence[c.participantID] = rec
		room.broadcast(Message{Type: TypePresence, Presence: &rec}, c)
	}

	c.logger.Info("participant joined",
		slog.String("participantID", c.participantID),
		slog.Int("connections", len(room.clients)),
	)
}

// handlePresence merges a partial record into the sender's own record,
// stamps the next sequence number and fans it out
func (c *Client) handlePresence(msg Message) {
	if msg.Presence == nil {
		c.sendError("presence payload required")
		return
	}
	if id := msg.Presence.ParticipantID; id != "" && id != c.participantID {
		c.logger.Warn("rejected write to foreign presence record",
			slog.String("participantID", c.participantID),
			slog.String("target", id),
		)
		c.sendError("presence record owned by another participant")
		return
	}

	room := c.joined
	room.mu.Lock()
	defer room.mu.Unlock()

	prev := room.presence[c.participantID]
	merged := prev.Merge(*msg.Presence)
	merged.ParticipantID = c.participantID
	merged.State = presence.Online
	merged.Seq = prev.Seq + 1
	room.presence[c.participantID] = merged

	room.broadcast(Message{Type: TypePresence, Presence: &merged}, c)
}

// handleInit creates a flag with its default value unless it exists
func (c *Client) handleInit(msg Message) {
	if msg.State == nil || msg.State.Key == "" {
		c.sendError("state key required")
		return
	}

	room := c.joined
	room.mu.Lock()
	defer room.mu.Unlock()

	if _, ok := room.states[msg.State.Key]; ok {
		return
	}
	room.states[msg.State.Key] = livestate.State{Key: msg.State.Key, Value: msg.State.Value}
}

// handleState accepts a flag write. The relay stamps the next revision and
// the writer, then sends the accepted state to every client including the
// writer, which uses it as acknowledgement.
func (c *Client) handleState(msg Message) {
	if msg.State == nil || msg.State.Key == "" {
		c.sendError("state key required")
		return
	}

	room := c.joined
	room.mu.Lock()
	defer room.mu.Unlock()

	prev := room.states[msg.State.Key]
	accepted := prev
	accepted.Key = msg.State.Key
	accepted.Value = msg.State.Value
	accepted.Revision = prev.Revision + 1
	accepted.Writer = c.participantID
	room.states[accepted.Key] = accepted

	c.logger.Debug("flag written",
		slog.String("key", accepted.Key),
		slog.Bool("value", accepted.Value),
		slog.Uint64("revision", accepted.Revision),
	)
	room.broadcast(Message{Type: TypeState, State: &accepted}, nil)
}

// handleInk fans a stroke out to the other clients
func (c *Client) handleInk(msg Message) {
	if msg.Stroke == nil {
		c.sendError("stroke payload required")
		return
	}

	stroke := *msg.Stroke
	stroke.ParticipantID = c.participantID

	room := c.joined
	room.mu.RLock()
	defer room.mu.RUnlock()
	room.broadcast(Message{Type: TypeInk, Stroke: &stroke}, c)
}
