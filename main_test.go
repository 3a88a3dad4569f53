package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaslejdung/stagesync/pkg/codec"
	"github.com/tomaslejdung/stagesync/pkg/presence"
	sig "github.com/tomaslejdung/stagesync/pkg/signal"
	"github.com/tomaslejdung/stagesync/pkg/settings"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestLocalRelayAcceptsRemoteParticipants(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	port := freePort(t)
	config, err := parseFlags([]string{"--local", "--port", fmt.Sprint(port), "--room", "calm-stage-07", "--name", "Alice"})
	require.NoError(t, err)

	stage, _ := resolveStage(config, settings.DefaultSettings())
	conn := newConnector(stage, logger)
	defer conn.shutdown()

	sess, err := conn.connect(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	var bob *sig.RemoteClient
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		bob, err = sig.Dial(ctx, fmt.Sprintf("ws://127.0.0.1:%d", port), "calm-stage-07", "bob", codec.JSON{}, logger)
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)
	defer bob.Close()

	rec, ok := bob.Presence().LastKnown(stage.participantID)
	require.True(t, ok)
	assert.Equal(t, presence.Online, rec.State)
	assert.Equal(t, "Alice", rec.DisplayName)
}

func TestLocalRelayWithoutPortStaysInProcess(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	config, err := parseFlags([]string{"--local", "--port", "0", "--room", "calm-stage-07"})
	require.NoError(t, err)

	stage, _ := resolveStage(config, settings.DefaultSettings())
	conn := newConnector(stage, logger)
	assert.True(t, conn.isLocal())
	assert.False(t, conn.serving)
	conn.shutdown()
}
