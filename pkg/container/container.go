// Package container joins the shared objects a meeting needs: the presence
// store, the live-state flags and the inking stroke store.
package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tomaslejdung/stagesync/pkg/codec"
	"github.com/tomaslejdung/stagesync/pkg/ink"
	"github.com/tomaslejdung/stagesync/pkg/livestate"
	"github.com/tomaslejdung/stagesync/pkg/presence"
	"github.com/tomaslejdung/stagesync/pkg/signal"
)

// ErrJoin wraps every join failure. It is fatal for the session.
var ErrJoin = errors.New("container join failed")

// Schema lists the shared objects to join
type Schema struct {
	Presence bool
	Flags    []string
	Ink      bool
}

// DefaultSchema is what a stage session needs
func DefaultSchema() Schema {
	return Schema{
		Presence: true,
		Flags:    []string{livestate.TakeControl, livestate.ToggleInking},
		Ink:      true,
	}
}

// Validate checks that the schema can be joined
func (s Schema) Validate() error {
	if !s.Presence {
		return errors.New("schema must include presence")
	}
	seen := make(map[string]bool, len(s.Flags))
	for _, key := range s.Flags {
		if key == "" {
			return errors.New("empty flag key")
		}
		if seen[key] {
			return fmt.Errorf("duplicate flag key %q", key)
		}
		seen[key] = true
	}
	return nil
}

// Host is where the shared objects live
type Host interface {
	Connect(ctx context.Context, participantID string) (signal.Conn, error)
	String() string
}

// RemoteHost is a relay reached over websockets
type RemoteHost struct {
	URL    string
	Room   string
	Codec  codec.Codec
	Logger *slog.Logger
}

func (h RemoteHost) Connect(ctx context.Context, participantID string) (signal.Conn, error) {
	return signal.Dial(ctx, h.URL, h.Room, participantID, h.Codec, h.Logger)
}

func (h RemoteHost) String() string {
	return h.URL + "/" + signal.NormalizeRoomCode(h.Room)
}

// LocalHost is a relay running in this process
type LocalHost struct {
	Server *signal.Server
	Room   string
	Logger *slog.Logger
}

func (h LocalHost) Connect(_ context.Context, participantID string) (signal.Conn, error) {
	return signal.JoinLocal(h.Server, h.Room, participantID, h.Logger)
}

func (h LocalHost) String() string {
	return "local/" + signal.NormalizeRoomCode(h.Room)
}

// Container is a joined set of shared objects
type Container struct {
	conn   signal.Conn
	schema Schema
}

// Join connects to host and initializes every flag in schema with false.
// There is no retry; any failure is wrapped in ErrJoin.
func Join(ctx context.Context, host Host, participantID string, schema Schema, logger *slog.Logger) (*Container, error) {
	logger = logger.With(slog.String("component", "container"))

	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJoin, err)
	}

	conn, err := host.Connect(ctx, participantID)
	if err != nil {
		logger.Error("join failed", slog.String("host", host.String()), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %s: %w", ErrJoin, host, err)
	}

	for _, key := range schema.Flags {
		if err := conn.Flags().Initialize(key, false); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: initialize %s: %w", ErrJoin, key, err)
		}
	}

	logger.Info("container joined",
		slog.String("host", host.String()),
		slog.String("room", conn.Room()),
		slog.String("participantID", participantID),
	)
	return &Container{conn: conn, schema: schema}, nil
}

// Room returns the joined room code
func (c *Container) Room() string {
	return c.conn.Room()
}

// ParticipantID returns the local participant id
func (c *Container) ParticipantID() string {
	return c.conn.ParticipantID()
}

// Presence returns the presence store
func (c *Container) Presence() presence.Store {
	return c.conn.Presence()
}

// Flags returns the flag store
func (c *Container) Flags() livestate.Store {
	return c.conn.Flags()
}

// Ink returns the stroke store, or nil when the schema did not ask for it
func (c *Container) Ink() ink.Store {
	if !c.schema.Ink {
		return nil
	}
	return c.conn.Ink()
}

// OnDisconnect registers a callback for when the host drops the connection
func (c *Container) OnDisconnect(fn func()) {
	c.conn.SetDisconnectHandler(fn)
}

// Close leaves the container
func (c *Container) Close() error {
	return c.conn.Close()
}
