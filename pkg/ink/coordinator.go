package ink

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tomaslejdung/stagesync/pkg/livestate"
)

var (
	// ErrNotController is returned when inking is enabled without owning
	// camera control
	ErrNotController = errors.New("inking requires camera control")
	// ErrHidden is returned when drawing on a hidden canvas
	ErrHidden = errors.New("inking canvas hidden")
)

// ControlOwner reports whether the local participant drives the camera.
// control.Arbiter satisfies it.
type ControlOwner interface {
	OwnsControl() bool
}

// Store replicates strokes between participants
type Store interface {
	Broadcast(s Stroke) error
	SubscribeStrokes(fn func(Stroke))
}

// Coordinator keeps the canvas in step with the toggleInking flag. It is
// not safe for concurrent use; the session dispatcher owns it.
type Coordinator struct {
	self   string
	flag   *livestate.Flag
	canvas *Canvas
	owner  ControlOwner
	store  Store
	logger *slog.Logger
}

// NewCoordinator binds the canvas to the inking flag and applies the flag's
// current value
func NewCoordinator(self string, flag *livestate.Flag, canvas *Canvas, owner ControlOwner, store Store, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		self:   self,
		flag:   flag,
		canvas: canvas,
		owner:  owner,
		store:  store,
		logger: logger.With(slog.String("component", "ink")),
	}
	flag.OnChange(c.HandleFlag)
	c.HandleFlag(flag.State())
	return c
}

// Canvas returns the canvas the coordinator drives
func (c *Coordinator) Canvas() *Canvas {
	return c.canvas
}

// Enabled reports whether the overlay is visible
func (c *Coordinator) Enabled() bool {
	return c.canvas.Visible()
}

// CanToggle reports whether the local inking action is available
func (c *Coordinator) CanToggle() bool {
	return c.owner.OwnsControl()
}

// Toggle is the local inking action
func (c *Coordinator) Toggle() error {
	return c.SetEnabled(!c.Enabled())
}

// SetEnabled publishes a new inking state. Enabling requires control;
// disabling is always allowed.
func (c *Coordinator) SetEnabled(on bool) error {
	if on && !c.owner.OwnsControl() {
		return ErrNotController
	}
	if on == c.Enabled() {
		return nil
	}
	return c.flag.Set(on)
}

// HandleFlag flips the canvas when the replicated state differs from it
func (c *Coordinator) HandleFlag(s livestate.State) {
	if s.Value == c.canvas.Visible() {
		return
	}
	c.canvas.SetVisible(s.Value)
	c.logger.Info("inking toggled", slog.Bool("visible", s.Value), slog.String("writer", s.Writer))
}

// Draw adds a local stroke in the current pen colour and replicates it
func (c *Coordinator) Draw(points ...Point) error {
	if !c.canvas.Visible() {
		return ErrHidden
	}
	s := Stroke{
		ParticipantID: c.self,
		Color:         c.canvas.PenColor(),
		Points:        points,
	}
	if !c.canvas.Add(s) {
		return nil
	}
	if err := c.store.Broadcast(s); err != nil {
		return fmt.Errorf("broadcast stroke: %w", err)
	}
	return nil
}

// Receive applies a remote stroke
func (c *Coordinator) Receive(s Stroke) {
	if s.ParticipantID == c.self {
		return
	}
	if !c.canvas.Add(s) {
		c.logger.Debug("stroke dropped", slog.String("participantID", s.ParticipantID))
	}
}
