package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tomaslejdung/stagesync/pkg/clock"
	"github.com/tomaslejdung/stagesync/pkg/codec"
	"github.com/tomaslejdung/stagesync/pkg/container"
	"github.com/tomaslejdung/stagesync/pkg/presence"
	"github.com/tomaslejdung/stagesync/pkg/scene"
	"github.com/tomaslejdung/stagesync/pkg/session"
	"github.com/tomaslejdung/stagesync/pkg/settings"
	sig "github.com/tomaslejdung/stagesync/pkg/signal"
)

// joinTimeout bounds the relay handshake
const joinTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	config, err := parseFlags(args)
	if err != nil {
		return err
	}

	if config.Help {
		printHelp()
		return nil
	}

	level, err := parseLogLevel(config.LogLevel)
	if err != nil {
		return err
	}

	// Server-only mode
	if config.ServeMode {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return runSignalServer(config.Port, logger)
	}

	manager, err := settings.NewManager("")
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	saved, err := manager.Load()
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}

	stage, changed := resolveStage(config, saved)
	if changed {
		// a failed save only loses the identity for next time
		_ = manager.Save(stage.settings)
	}
	stage.level = level
	stage.save = manager.Save

	return RunTUI(stage)
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, fmt.Errorf("invalid --log-level %q", s)
	}
	return level, nil
}

func runSignalServer(port int, logger *slog.Logger) error {
	server := sig.NewServer(logger)
	addr := fmt.Sprintf(":%d", port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Starting relay on http://localhost%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// stageConfig is everything needed to join a room and build a session
type stageConfig struct {
	settings      settings.UserSettings
	preset        scene.Preset
	room          string
	participantID string
	signalURL     string
	local         bool
	port          int
	codec         codec.Codec
	level         slog.Level
	save          func(settings.UserSettings) error
}

// resolveStage merges flags over saved settings. It reports whether the
// settings changed and should be saved.
func resolveStage(config Config, saved settings.UserSettings) (stageConfig, bool) {
	s := saved
	changed := s.EnsureIdentity()

	if config.IsSet("name") && config.Name != "" && config.Name != s.DisplayName {
		s.DisplayName = config.Name
		changed = true
	}
	if config.IsSet("scene") && config.Scene != "" {
		s.Scene = scene.PresetByName(config.Scene).Name
		changed = true
	}
	if config.IsSet("fps") {
		s.FPS = config.FPS
	}
	if config.IsSet("rate") {
		s.SampleIntervalMs = int(config.Rate / time.Millisecond)
	}
	if config.IsSet("codec") {
		s.Codec = config.Codec
	}

	cd, err := codec.ByName(s.Codec)
	if err != nil {
		cd = codec.Default
	}

	signalURL := config.SignalURL
	if signalURL == "" {
		signalURL = s.Signal
	}
	if signalURL == "" {
		signalURL = DefaultSignalServer
	}

	room := sig.NormalizeRoomCode(config.Room)
	if room == "" {
		room = sig.GenerateRoomCode()
	}

	return stageConfig{
		settings:      s,
		preset:        scene.PresetByName(s.Scene),
		room:          room,
		participantID: uuid.NewString(),
		signalURL:     signalURL,
		local:         config.LocalMode,
		port:          config.Port,
		codec:         cd,
	}, changed
}

// sessionConfig converts the stage settings into a session config
func (st stageConfig) sessionConfig() session.Config {
	return session.Config{
		Metadata: presence.Metadata{
			DisplayName: st.settings.DisplayName,
			Picture:     st.settings.Picture,
		},
		Spawn:          st.preset.Spawn,
		FPS:            float64(st.settings.FPS),
		SampleInterval: time.Duration(st.settings.SampleIntervalMs) * time.Millisecond,
		PenColor:       st.settings.PenColor,
	}
}

// connector joins the room and builds a session. An embedded relay is
// kept across reconnects and also listens on the configured port so others
// can join it.
type connector struct {
	stage   stageConfig
	server  *sig.Server
	serving bool
	logger  *slog.Logger
}

func newConnector(stage stageConfig, logger *slog.Logger) *connector {
	c := &connector{stage: stage, logger: logger}
	if stage.local {
		c.server = sig.NewServer(logger)
		if stage.port > 0 {
			c.serve(fmt.Sprintf(":%d", stage.port))
		}
	}
	return c
}

func (c *connector) serve(addr string) {
	c.serving = true
	go func() {
		// the embedded relay still works in-process when the port is taken
		if err := c.server.StartServer(addr); err != nil {
			c.logger.Warn("embedded relay not listening", slog.String("addr", addr), slog.Any("error", err))
		}
	}()
}

// shutdown stops the embedded relay listener, if any
func (c *connector) shutdown() {
	if !c.serving {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.server.Shutdown(ctx); err != nil {
		c.logger.Debug("embedded relay shutdown", slog.Any("error", err))
	}
}

// saveSettings persists the current stage settings
func (c *connector) saveSettings() {
	if c.stage.save == nil {
		return
	}
	if err := c.stage.save(c.stage.settings); err != nil {
		c.logger.Warn("saving settings", slog.Any("error", err))
	}
}

func (c *connector) host() container.Host {
	if c.server != nil {
		return container.LocalHost{Server: c.server, Room: c.stage.room, Logger: c.logger}
	}
	return container.RemoteHost{URL: c.stage.signalURL, Room: c.stage.room, Codec: c.stage.codec, Logger: c.logger}
}

func (c *connector) connect(ctx context.Context) (*session.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	cont, err := container.Join(ctx, c.host(), c.stage.participantID, container.DefaultSchema(), c.logger)
	if err != nil {
		return nil, err
	}

	surface := scene.NewHeadless(c.stage.preset.Spawn)
	sess, err := session.New(cont, surface, clock.Real(), c.stage.sessionConfig(), c.logger)
	if err != nil {
		if cerr := cont.Close(); cerr != nil && !errors.Is(cerr, sig.ErrClosed) {
			c.logger.Warn("leave after failed session", slog.Any("error", cerr))
		}
		return nil, err
	}
	return sess, nil
}

func (c *connector) isLocal() bool {
	return c.server != nil
}
