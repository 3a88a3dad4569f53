package signal

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tomaslejdung/stagesync/pkg/codec"
)

// LocalClient is a Conn to an in-process Server, used when the relay runs
// embedded and in tests
type LocalClient struct {
	*Replica

	server       *Server
	client       *Client
	onDisconnect func()
	closed       bool
	mu           sync.Mutex
	wg           sync.WaitGroup
}

// JoinLocal joins a room on an in-process server
func JoinLocal(server *Server, room, participantID string, logger *slog.Logger) (*LocalClient, error) {
	code := NormalizeRoomCode(room)
	if !ValidateRoomCode(code) {
		return nil, fmt.Errorf("%w: invalid room code %q", ErrJoinRejected, room)
	}

	lc := &LocalClient{
		server: server,
		client: server.newClient(code, codec.Default, nil),
	}
	lc.Replica = newReplica(participantID, lc.deliver,
		logger.With(slog.String("component", "relay-client"), slog.String("room", code)))

	lc.client.handleMessage(Message{Type: TypeJoin, ParticipantID: participantID})
	reply := <-lc.client.send
	if reply.Type != TypeJoined {
		return nil, fmt.Errorf("%w: %s", ErrJoinRejected, reply.Error)
	}
	lc.loadSnapshot(reply)

	lc.wg.Add(1)
	go lc.pump()
	return lc, nil
}

// deliver sends a message straight into the server's handler
func (lc *LocalClient) deliver(msg Message) error {
	lc.mu.Lock()
	closed := lc.closed
	lc.mu.Unlock()
	if closed {
		return ErrClosed
	}
	lc.client.handleMessage(msg)
	return nil
}

// pump applies relay messages until the client is closed or kicked
func (lc *LocalClient) pump() {
	defer lc.wg.Done()
	for {
		select {
		case msg := <-lc.client.send:
			lc.apply(msg)
		case <-lc.client.done:
			lc.mu.Lock()
			handler := lc.onDisconnect
			closed := lc.closed
			lc.mu.Unlock()
			if handler != nil && !closed {
				handler()
			}
			return
		}
	}
}

// SetDisconnectHandler sets callback for when the server drops the client
func (lc *LocalClient) SetDisconnectHandler(handler func()) {
	lc.mu.Lock()
	lc.onDisconnect = handler
	lc.mu.Unlock()
}

// Close leaves the room. The participant goes Offline for everyone else.
func (lc *LocalClient) Close() error {
	lc.mu.Lock()
	if lc.closed {
		lc.mu.Unlock()
		return nil
	}
	lc.closed = true
	lc.mu.Unlock()

	lc.server.removeClient(lc.client)
	lc.client.kick()
	lc.wg.Wait()
	return nil
}
