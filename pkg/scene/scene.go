// Package scene describes the render surface the presence core drives and
// provides a headless implementation of it. The headless scene keeps node
// poses and frame-stepped animations in memory; it draws nothing.
package scene

import (
	"math"

	"cogentcore.org/core/math32"
)

// Pose is a camera or mesh position plus Euler rotation
type Pose struct {
	Position math32.Vector3 `json:"position"`
	Rotation math32.Vector3 `json:"rotation"`
}

// Handle identifies a node in the scene. Camera is the active camera.
type Handle uint64

// Camera addresses the active camera in Animate, NodePose and SetNodePose
const Camera Handle = 0

// Kind is the type of a mesh node
type Kind int

const (
	// KindBody is the cylinder standing in for an avatar's body
	KindBody Kind = iota
	// KindHead is the textured cube on top of the body
	KindHead
	// KindLabel is a screen-space name tag linked to another node
	KindLabel
)

func (k Kind) String() string {
	switch k {
	case KindBody:
		return "body"
	case KindHead:
		return "head"
	case KindLabel:
		return "label"
	default:
		return "unknown"
	}
}

// Property selects which vector of a pose an animation drives
type Property int

const (
	Position Property = iota
	Rotation
)

// MeshSpec describes a node to create
type MeshSpec struct {
	Kind Kind
	Name string
	Pose Pose

	// Label fields
	Text        string
	LinkedTo    Handle
	LinkOffsetY int
}

// Surface is the render surface the core calls into. Implementations are
// driven from a single goroutine; only read accessors used by views need
// to be safe for concurrent use.
type Surface interface {
	CameraPose() Pose
	SetCameraPose(p Pose)

	// AttachControl lets local input move the camera; DetachControl stops it
	AttachControl()
	DetachControl()
	ControlAttached() bool

	// OnCameraChanged registers a callback fired on every camera mutation
	OnCameraChanged(fn func(Pose))

	CreateMesh(spec MeshSpec) Handle
	NodePose(h Handle) (Pose, bool)
	SetNodePose(h Handle, p Pose)
	ApplyTexture(h Handle, ref string)

	// Animate moves one property of a node from its current value to "to"
	// over the given number of render frames. Starting a new animation on
	// the same node and property replaces the running one.
	Animate(h Handle, prop Property, to math32.Vector3, frames float64)

	// Dispose removes a node. Returns false if it did not exist.
	Dispose(h Handle) bool
}

// FramesToCompensate returns how many render frames fit in one sampling
// interval at the given frame rate, plus one: 1 + intervalMs/(1000/fps).
// At 100 ms and 60 fps this is 7.
func FramesToCompensate(intervalMs, fps float64) float64 {
	return 1 + intervalMs*fps/1000
}

// frameCount is the number of whole frames an animation of the given length
// runs for before landing on its target.
func frameCount(frames float64) int {
	n := int(math.Ceil(frames))
	if n < 1 {
		return 1
	}
	return n
}
