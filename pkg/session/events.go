package session

import (
	"time"

	"github.com/tomaslejdung/stagesync/pkg/ink"
	"github.com/tomaslejdung/stagesync/pkg/livestate"
	"github.com/tomaslejdung/stagesync/pkg/presence"
	"github.com/tomaslejdung/stagesync/pkg/scene"
)

// Event is anything the dispatcher runs
type Event interface {
	event()
}

// PresenceEvent carries a record delivered by the presence store
type PresenceEvent struct {
	Record presence.Record
}

// FlagEvent carries a flag state delivered by the flag store
type FlagEvent struct {
	State livestate.State
}

// StrokeEvent carries a remote inking stroke
type StrokeEvent struct {
	Stroke ink.Stroke
}

// FrameEvent is one render frame
type FrameEvent struct {
	At time.Time
}

// SweepEvent triggers the offline avatar sweep
type SweepEvent struct {
	At time.Time
}

// DisconnectEvent reports that the relay dropped the connection
type DisconnectEvent struct{}

// TimingEvent changes the render frame rate and the sampling interval
type TimingEvent struct {
	FPS            float64
	SampleInterval time.Duration
}

// PenColorEvent changes the local pen colour
type PenColorEvent struct {
	Color string
}

// Action is a local user action
type Action int

const (
	ActionMove Action = iota
	ActionToggleControl
	ActionToggleInking
	ActionDraw
)

// InputEvent is a local user action. Move is a camera delta for ActionMove;
// Points are the stroke for ActionDraw.
type InputEvent struct {
	Action Action
	Move   scene.Pose
	Points []ink.Point
}

func (PresenceEvent) event()   {}
func (FlagEvent) event()       {}
func (StrokeEvent) event()     {}
func (FrameEvent) event()      {}
func (SweepEvent) event()      {}
func (DisconnectEvent) event() {}
func (TimingEvent) event()     {}
func (PenColorEvent) event()   {}
func (InputEvent) event()      {}
