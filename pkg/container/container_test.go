package container

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaslejdung/stagesync/pkg/livestate"
	"github.com/tomaslejdung/stagesync/pkg/signal"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingHost struct{ calls int }

func (h *failingHost) Connect(context.Context, string) (signal.Conn, error) {
	h.calls++
	return nil, errors.New("connection refused")
}

func (h *failingHost) String() string { return "nowhere" }

func TestJoinInitializesFlags(t *testing.T) {
	server := signal.NewServer(discard())
	host := LocalHost{Server: server, Room: "calm-stage-07", Logger: discard()}

	c, err := Join(context.Background(), host, "alice", DefaultSchema(), discard())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "CALM-STAGE-07", c.Room())
	assert.Equal(t, "alice", c.ParticipantID())
	assert.NotNil(t, c.Ink())

	for _, key := range []string{livestate.TakeControl, livestate.ToggleInking} {
		s, ok := c.Flags().Get(key)
		require.True(t, ok, key)
		assert.False(t, s.Value)
	}

	status, ok := server.RoomStatus("calm-stage-07")
	require.True(t, ok)
	assert.Len(t, status.Flags, 2)
}

func TestJoinKeepsExistingFlagValues(t *testing.T) {
	server := signal.NewServer(discard())
	host := LocalHost{Server: server, Room: "calm-stage-07", Logger: discard()}

	first, err := Join(context.Background(), host, "alice", DefaultSchema(), discard())
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, first.Flags().Set(livestate.TakeControl, true))

	second, err := Join(context.Background(), host, "bob", DefaultSchema(), discard())
	require.NoError(t, err)
	defer second.Close()

	s, ok := second.Flags().Get(livestate.TakeControl)
	require.True(t, ok)
	assert.True(t, s.Value)
	assert.Equal(t, "alice", s.Writer)
}

func TestJoinFailureIsWrappedAndNotRetried(t *testing.T) {
	host := &failingHost{}

	_, err := Join(context.Background(), host, "alice", DefaultSchema(), discard())
	require.ErrorIs(t, err, ErrJoin)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, host.calls)
}

func TestSchemaValidation(t *testing.T) {
	require.NoError(t, DefaultSchema().Validate())
	require.Error(t, Schema{}.Validate())
	require.Error(t, Schema{Presence: true, Flags: []string{""}}.Validate())
	require.Error(t, Schema{Presence: true, Flags: []string{"a", "a"}}.Validate())

	_, err := Join(context.Background(), &failingHost{}, "alice", Schema{}, discard())
	require.ErrorIs(t, err, ErrJoin)
}

func TestInkOmittedFromSchema(t *testing.T) {
	server := signal.NewServer(discard())
	host := LocalHost{Server: server, Room: "calm-stage-07", Logger: discard()}

	c, err := Join(context.Background(), host, "alice", Schema{Presence: true}, discard())
	require.NoError(t, err)
	defer c.Close()
	assert.Nil(t, c.Ink())
}
