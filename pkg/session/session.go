// Package session owns everything one participant's stage runs on: the
// joined container, the render surface, the presence core and the event
// dispatcher that serializes all of it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tomaslejdung/stagesync/pkg/avatar"
	"github.com/tomaslejdung/stagesync/pkg/clock"
	"github.com/tomaslejdung/stagesync/pkg/container"
	"github.com/tomaslejdung/stagesync/pkg/control"
	"github.com/tomaslejdung/stagesync/pkg/ink"
	"github.com/tomaslejdung/stagesync/pkg/livestate"
	"github.com/tomaslejdung/stagesync/pkg/pose"
	"github.com/tomaslejdung/stagesync/pkg/presence"
	"github.com/tomaslejdung/stagesync/pkg/scene"
)

// DefaultSweepInterval is how often Offline avatars are removed
const DefaultSweepInterval = 2 * time.Second

// DefaultFPS is the frame rate assumed when none is configured
const DefaultFPS = 60

// Config tunes a session
type Config struct {
	Metadata       presence.Metadata
	Spawn          scene.Pose
	FPS            float64
	SampleInterval time.Duration
	SweepInterval  time.Duration
	PenColor       string
}

func (c *Config) applyDefaults() {
	if c.FPS <= 0 {
		c.FPS = DefaultFPS
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = pose.DefaultInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
}

// Session is one participant's running stage
type Session struct {
	cfg       Config
	self      string
	room      string
	clock     clock.Clock
	logger    *slog.Logger
	container *container.Container
	surface   *scene.Headless

	channel     *presence.Channel
	follower    *pose.Follower
	sampler     *pose.Sampler
	avatars     *avatar.Registry
	controlFlag *livestate.Flag
	inkingFlag  *livestate.Flag
	arbiter     *control.Arbiter
	inking      *ink.Coordinator

	dispatcher   *Dispatcher
	framePending atomic.Bool
	disconnected bool
	retime       chan time.Duration
	view         atomic.Pointer[View]
	onUpdate     atomic.Pointer[func()]
}

// New wires the presence core on top of a joined container and registers
// the local participant
func New(c *container.Container, surface *scene.Headless, clk clock.Clock, cfg Config, logger *slog.Logger) (*Session, error) {
	cfg.applyDefaults()
	self := c.ParticipantID()

	s := &Session{
		cfg:       cfg,
		self:      self,
		room:      c.Room(),
		clock:     clk,
		logger:    logger.With(slog.String("component", "session"), slog.String("participantID", self)),
		container: c,
		surface:   surface,
		retime:    make(chan time.Duration, 1),
	}
	s.dispatcher = NewDispatcher(s.handle)

	s.channel = presence.NewChannel(c.Presence(), self, logger)
	s.follower = pose.NewFollower(surface, cfg.SampleInterval, cfg.FPS)
	s.sampler = pose.NewSampler(s.channel, clk, cfg.SampleInterval, logger)
	s.avatars = avatar.NewRegistry(surface, s.follower, s.channel, cfg.Spawn, logger)

	surface.AttachControl()
	s.controlFlag = livestate.NewFlag(c.Flags(), livestate.TakeControl, self, logger)
	s.inkingFlag = livestate.NewFlag(c.Flags(), livestate.ToggleInking, self, logger)
	s.arbiter = control.NewArbiter(self, surface, s.controlFlag, s.sampler, s.channel, logger)

	canvas := ink.NewCanvas()
	if cfg.PenColor != "" {
		if err := canvas.SetPenColor(cfg.PenColor); err != nil {
			s.logger.Warn("ignoring pen color", slog.Any("error", err))
		}
	}
	strokes := c.Ink()
	if strokes == nil {
		strokes = noStrokes{}
	}
	s.inking = ink.NewCoordinator(self, s.inkingFlag, canvas, s.arbiter, strokes, logger)
	s.arbiter.SetInking(s.inking)

	s.channel.OnChange(func(rec presence.Record, local bool) {
		if local {
			return
		}
		s.avatars.Apply(rec)
		s.arbiter.HandlePresence(rec)
	})
	surface.OnCameraChanged(func(p scene.Pose) {
		s.sampler.Observe(p)
	})

	if err := s.channel.Initialize(cfg.Metadata); err != nil {
		return nil, fmt.Errorf("initialize presence: %w", err)
	}
	s.sampler.Observe(surface.CameraPose())

	c.Presence().Subscribe(func(rec presence.Record) {
		s.dispatcher.Post(PresenceEvent{Record: rec})
	})
	c.Flags().Subscribe(func(st livestate.State) {
		s.dispatcher.Post(FlagEvent{State: st})
	})
	if inkStore := c.Ink(); inkStore != nil {
		inkStore.SubscribeStrokes(func(st ink.Stroke) {
			s.dispatcher.Post(StrokeEvent{Stroke: st})
		})
	}
	c.OnDisconnect(func() {
		s.dispatcher.Post(DisconnectEvent{})
	})

	s.publishView()
	s.logger.Info("session started",
		slog.String("room", s.room),
		slog.Float64("fps", cfg.FPS),
		slog.Duration("sampleInterval", cfg.SampleInterval),
	)
	return s, nil
}

// Input queues a local user action
func (s *Session) Input(ev InputEvent) bool {
	return s.dispatcher.Post(ev)
}

// SetTiming queues a frame rate and sampling interval change. Non-positive
// values keep the current setting.
func (s *Session) SetTiming(fps float64, sampleInterval time.Duration) bool {
	return s.dispatcher.Post(TimingEvent{FPS: fps, SampleInterval: sampleInterval})
}

// SetPenColor queues a pen colour change
func (s *Session) SetPenColor(hex string) bool {
	return s.dispatcher.Post(PenColorEvent{Color: hex})
}

// OnUpdate registers a callback fired on the dispatcher goroutine after
// every handled event
func (s *Session) OnUpdate(fn func()) {
	s.onUpdate.Store(&fn)
}

// RunPending handles every queued event on the calling goroutine. It is
// for driving a session without Run.
func (s *Session) RunPending() int {
	return s.dispatcher.RunPending()
}

// Run starts the render and sweep tickers and runs the dispatcher until
// ctx is done or Close is called
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := s.clock.NewTicker(frameInterval(s.cfg.FPS))
	sweeps := s.clock.NewTicker(s.cfg.SweepInterval)
	defer sweeps.Stop()

	go func() {
		defer func() { frames.Stop() }()
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-s.retime:
				frames.Stop()
				frames = s.clock.NewTicker(d)
			case at := <-frames.C():
				// frames coalesce while one is still queued
				if s.framePending.CompareAndSwap(false, true) {
					s.dispatcher.Post(FrameEvent{At: at})
				}
			case at := <-sweeps.C():
				s.dispatcher.Post(SweepEvent{At: at})
			}
		}
	}()

	err := s.dispatcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close tears the session down: avatars are disposed and the container is
// left. Call it once Run has returned.
func (s *Session) Close() error {
	s.dispatcher.Close()
	s.avatars.Clear()
	s.logger.Info("session closed")
	return s.container.Close()
}

func (s *Session) handle(ev Event) {
	switch ev := ev.(type) {
	case PresenceEvent:
		s.channel.Receive(ev.Record)
	case FlagEvent:
		s.controlFlag.Receive(ev.State)
		s.inkingFlag.Receive(ev.State)
	case StrokeEvent:
		s.inking.Receive(ev.Stroke)
	case FrameEvent:
		s.framePending.Store(false)
		s.surface.Step()
	case SweepEvent:
		if n := s.avatars.Sweep(); n > 0 {
			s.logger.Debug("sweep removed avatars", slog.Int("count", n))
		}
	case DisconnectEvent:
		s.disconnected = true
		s.logger.Warn("relay connection lost")
	case InputEvent:
		s.handleInput(ev)
	case TimingEvent:
		s.handleTiming(ev)
	case PenColorEvent:
		if err := s.inking.Canvas().SetPenColor(ev.Color); err != nil {
			s.logger.Warn("ignoring pen color", slog.Any("error", err))
		}
	}

	s.publishView()
	if fn := s.onUpdate.Load(); fn != nil {
		(*fn)()
	}
}

func (s *Session) handleInput(ev InputEvent) {
	var err error
	switch ev.Action {
	case ActionMove:
		s.surface.MoveCamera(ev.Move)
	case ActionToggleControl:
		err = s.arbiter.Toggle()
	case ActionToggleInking:
		err = s.inking.Toggle()
	case ActionDraw:
		err = s.inking.Draw(ev.Points...)
	}
	if err != nil {
		s.logger.Debug("input rejected", slog.Int("action", int(ev.Action)), slog.Any("error", err))
	}
}

func (s *Session) handleTiming(ev TimingEvent) {
	if ev.FPS > 0 && ev.FPS != s.cfg.FPS {
		s.cfg.FPS = ev.FPS
		// the latest rate wins if Run has not picked up the previous one
		select {
		case <-s.retime:
		default:
		}
		s.retime <- frameInterval(ev.FPS)
	}
	if ev.SampleInterval > 0 {
		s.cfg.SampleInterval = ev.SampleInterval
		s.sampler.SetInterval(ev.SampleInterval)
	}
	s.follower.SetTiming(s.cfg.SampleInterval, s.cfg.FPS)
	s.logger.Info("timing changed",
		slog.Float64("fps", s.cfg.FPS),
		slog.Duration("sampleInterval", s.cfg.SampleInterval),
		slog.Float64("frames", s.follower.Frames()),
	)
}

func frameInterval(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / fps)
}

type noStrokes struct{}

func (noStrokes) Broadcast(ink.Stroke) error        { return nil }
func (noStrokes) SubscribeStrokes(func(ink.Stroke)) {}
