// Package control negotiates who drives the shared camera. Control is
// advisory: any participant may take it and the last accepted write wins.
package control

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tomaslejdung/stagesync/pkg/livestate"
	"github.com/tomaslejdung/stagesync/pkg/presence"
	"github.com/tomaslejdung/stagesync/pkg/scene"
)

// ErrRemoteOwns is returned by Toggle while another participant drives
var ErrRemoteOwns = errors.New("camera controlled by another participant")

// Mode is the local participant's view of camera ownership
type Mode int

const (
	Unowned Mode = iota
	LocalOwns
	RemoteOwns
)

func (m Mode) String() string {
	switch m {
	case Unowned:
		return "unowned"
	case LocalOwns:
		return "local"
	case RemoteOwns:
		return "remote"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Suppressor pauses pose sampling. pose.Sampler satisfies it.
type Suppressor interface {
	Suppress(on bool)
}

// Records resolves presence records. presence.Channel satisfies it.
type Records interface {
	Record(participantID string) presence.Record
}

// Inking is the overlay toggle that is switched off when local control is
// released
type Inking interface {
	Enabled() bool
	SetEnabled(on bool) error
}

// Arbiter drives the control state machine. It is not safe for concurrent
// use; the session dispatcher owns it.
type Arbiter struct {
	self    string
	surface scene.Surface
	flag    *livestate.Flag
	sampler Suppressor
	records Records
	inking  Inking
	logger  *slog.Logger

	mode       Mode
	controller string
	snapshot   scene.Pose
	handlers   []func(Mode)
}

// NewArbiter creates an arbiter bound to the takeControl flag and applies
// the flag's current value
func NewArbiter(self string, surface scene.Surface, flag *livestate.Flag, sampler Suppressor, records Records, logger *slog.Logger) *Arbiter {
	a := &Arbiter{
		self:    self,
		surface: surface,
		flag:    flag,
		sampler: sampler,
		records: records,
		logger:  logger.With(slog.String("component", "control")),
	}
	flag.OnChange(a.HandleFlag)
	if flag.Value() {
		a.HandleFlag(flag.State())
	}
	return a
}

// SetInking wires the inking toggle released together with control
func (a *Arbiter) SetInking(i Inking) {
	a.inking = i
}

// Mode returns the current ownership mode
func (a *Arbiter) Mode() Mode {
	return a.mode
}

// OwnsControl reports whether the local participant drives the camera
func (a *Arbiter) OwnsControl() bool {
	return a.mode == LocalOwns
}

// Controller returns the participant driving the camera, if any
func (a *Arbiter) Controller() string {
	return a.controller
}

// CanToggle reports whether the take/release action is available
func (a *Arbiter) CanToggle() bool {
	return a.mode != RemoteOwns
}

// OnModeChange registers a callback fired after every mode transition
func (a *Arbiter) OnModeChange(fn func(Mode)) {
	a.handlers = append(a.handlers, fn)
}

// Toggle is the local take/release action
func (a *Arbiter) Toggle() error {
	switch a.mode {
	case RemoteOwns:
		a.logger.Debug("toggle ignored while remote participant drives", slog.String("controller", a.controller))
		return ErrRemoteOwns
	case Unowned:
		return a.flag.Set(true)
	}

	if err := a.flag.Set(false); err != nil {
		return err
	}
	// releasing control also hides inking; taking control never shows it
	if a.inking != nil && a.inking.Enabled() {
		if err := a.inking.SetEnabled(false); err != nil {
			return fmt.Errorf("disable inking: %w", err)
		}
	}
	return nil
}

// HandleFlag applies a takeControl state
func (a *Arbiter) HandleFlag(s livestate.State) {
	switch {
	case !s.Value:
		a.release()
	case s.Writer == a.self:
		a.takeLocal()
	default:
		a.cede(s.Writer)
	}
}

// HandlePresence mirrors the controller's pose onto the local camera
func (a *Arbiter) HandlePresence(rec presence.Record) {
	if a.mode != RemoteOwns || rec.ParticipantID != a.controller || rec.Pose == nil {
		return
	}
	a.surface.SetCameraPose(*rec.Pose)
}

func (a *Arbiter) takeLocal() {
	switch a.mode {
	case LocalOwns:
		return
	case RemoteOwns:
		a.restore()
	}
	a.controller = a.self
	a.setMode(LocalOwns)
}

func (a *Arbiter) cede(writer string) {
	if a.mode == RemoteOwns {
		if a.controller != writer {
			a.logger.Info("control passed", slog.String("from", a.controller), slog.String("to", writer))
			a.controller = writer
			a.mirrorLastKnown()
		}
		return
	}

	a.snapshot = a.surface.CameraPose()
	a.surface.DetachControl()
	a.sampler.Suppress(true)
	a.controller = writer
	a.setMode(RemoteOwns)
	a.mirrorLastKnown()
}

func (a *Arbiter) release() {
	switch a.mode {
	case Unowned:
		return
	case RemoteOwns:
		a.restore()
	}
	a.controller = ""
	a.setMode(Unowned)
}

// restore lifts suppression first so the restored pose is sampled
func (a *Arbiter) restore() {
	a.sampler.Suppress(false)
	a.surface.AttachControl()
	a.surface.SetCameraPose(a.snapshot)
}

func (a *Arbiter) mirrorLastKnown() {
	if a.records == nil {
		return
	}
	a.HandlePresence(a.records.Record(a.controller))
}

func (a *Arbiter) setMode(m Mode) {
	a.logger.Info("control mode changed",
		slog.String("from", a.mode.String()),
		slog.String("to", m.String()),
		slog.String("controller", a.controller),
	)
	a.mode = m
	for _, fn := range a.handlers {
		fn(m)
	}
}
