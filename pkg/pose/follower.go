package pose

import (
	"time"

	"cogentcore.org/core/math32"

	"github.com/tomaslejdung/stagesync/pkg/scene"
)

// BodyOffsetY is how far the body sits below the camera it stands in for
const BodyOffsetY = 0.7

// Follower moves an avatar's body and head toward the latest remote pose
type Follower struct {
	surface scene.Surface
	frames  float64
}

// NewFollower creates a follower whose animations span one sampling
// interval at the given frame rate.
func NewFollower(surface scene.Surface, interval time.Duration, fps float64) *Follower {
	ms := float64(interval) / float64(time.Millisecond)
	return &Follower{
		surface: surface,
		frames:  scene.FramesToCompensate(ms, fps),
	}
}

// SetTiming recomputes the animation length. Running animations keep
// their old length.
func (f *Follower) SetTiming(interval time.Duration, fps float64) {
	ms := float64(interval) / float64(time.Millisecond)
	f.frames = scene.FramesToCompensate(ms, fps)
}

// Frames returns the animation length in render frames
func (f *Follower) Frames() float64 {
	return f.frames
}

// BodyPosition returns where the body stands for a camera position
func BodyPosition(camera math32.Vector3) math32.Vector3 {
	return camera.Sub(math32.Vec3(0, BodyOffsetY, 0))
}

// Follow animates from the rendered pose toward target. A running
// animation is replaced, so motion restarts from wherever the avatar is now.
func (f *Follower) Follow(body, head scene.Handle, target scene.Pose) {
	f.surface.Animate(body, scene.Position, BodyPosition(target.Position), f.frames)
	f.surface.Animate(head, scene.Position, target.Position, f.frames)
	f.surface.Animate(head, scene.Rotation, target.Rotation, f.frames)
}

// Place moves the avatar to target immediately
func (f *Follower) Place(body, head scene.Handle, target scene.Pose) {
	bodyPose, _ := f.surface.NodePose(body)
	bodyPose.Position = BodyPosition(target.Position)
	f.surface.SetNodePose(body, bodyPose)
	f.surface.SetNodePose(head, target)
}
