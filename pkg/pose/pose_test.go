package pose

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaslejdung/stagesync/pkg/clock"
	"github.com/tomaslejdung/stagesync/pkg/scene"
)

type recorder struct {
	initialized bool
	poses       []scene.Pose
	err         error
}

func (r *recorder) IsInitialized() bool { return r.initialized }

func (r *recorder) Update(p scene.Pose) error {
	if r.err != nil {
		return r.err
	}
	r.poses = append(r.poses, p)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSamplerRateBound(t *testing.T) {
	for _, step := range []time.Duration{time.Millisecond, 7 * time.Millisecond, 33 * time.Millisecond, 250 * time.Millisecond} {
		t.Run(step.String(), func(t *testing.T) {
			clk := clock.NewFake(time.Unix(0, 0))
			rec := &recorder{initialized: true}
			s := NewSampler(rec, clk, DefaultInterval, discard())

			window := 2 * time.Second
			for elapsed := time.Duration(0); elapsed <= window; elapsed += step {
				s.Observe(scene.Pose{Position: math32.Vec3(float32(elapsed.Milliseconds()), 0, 0)})
				clk.Advance(step)
			}

			bound := int(window/DefaultInterval) + 1
			assert.LessOrEqual(t, len(rec.poses), bound)
			assert.Equal(t, uint64(len(rec.poses)), s.Published())
		})
	}
}

func TestSamplerPublishesAtIntervalBoundary(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{initialized: true}
	s := NewSampler(rec, clk, DefaultInterval, discard())

	assert.True(t, s.Observe(scene.Pose{}))
	clk.Advance(99 * time.Millisecond)
	assert.False(t, s.Observe(scene.Pose{}))
	clk.Advance(time.Millisecond)
	assert.True(t, s.Observe(scene.Pose{}))
	assert.Len(t, rec.poses, 2)
}

func TestSamplerDropsWhileSuppressed(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{initialized: true}
	s := NewSampler(rec, clk, DefaultInterval, discard())

	s.Suppress(true)
	assert.False(t, s.Observe(scene.Pose{}))
	s.Suppress(false)
	assert.True(t, s.Observe(scene.Pose{}))
	assert.Len(t, rec.poses, 1)
}

func TestSamplerRequiresInitializedChannel(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{}
	s := NewSampler(rec, clk, 0, discard())

	assert.Equal(t, DefaultInterval, s.Interval())
	assert.False(t, s.Observe(scene.Pose{}))
	rec.initialized = true
	assert.True(t, s.Observe(scene.Pose{}))
}

func TestSamplerPublishErrorDoesNotConsumeInterval(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{initialized: true, err: errors.New("closed")}
	s := NewSampler(rec, clk, DefaultInterval, discard())

	assert.False(t, s.Observe(scene.Pose{}))
	rec.err = nil
	assert.True(t, s.Observe(scene.Pose{}))
}

func newAvatar(surface *scene.Headless, at scene.Pose) (body, head scene.Handle) {
	body = surface.CreateMesh(scene.MeshSpec{Kind: scene.KindBody, Pose: scene.Pose{Position: BodyPosition(at.Position)}})
	head = surface.CreateMesh(scene.MeshSpec{Kind: scene.KindHead, Pose: at})
	return body, head
}

func TestFollowerConvergesOnTarget(t *testing.T) {
	surface := scene.NewHeadless(scene.Pose{})
	f := NewFollower(surface, DefaultInterval, 60)
	require.InDelta(t, 7.0, f.Frames(), 1e-9)

	start := scene.Pose{Position: math32.Vec3(0, 1.2, 0)}
	target := scene.Pose{Position: math32.Vec3(1, 1.2, 0), Rotation: math32.Vec3(0, 0.5, 0)}
	body, head := newAvatar(surface, start)

	f.Follow(body, head, target)

	surface.Step()
	p, ok := surface.NodePose(head)
	require.True(t, ok)
	assert.Greater(t, p.Position.X, float32(0))
	assert.Less(t, p.Position.X, float32(1))

	for i := 0; i < 6; i++ {
		surface.Step()
	}
	p, _ = surface.NodePose(head)
	assert.Equal(t, target, p)

	b, _ := surface.NodePose(body)
	assert.Equal(t, BodyPosition(target.Position), b.Position)
	assert.InDelta(t, 0.5, b.Position.Y, 1e-6)
	assert.False(t, surface.Animating())
}

func TestFollowerRestartsFromCurrentPose(t *testing.T) {
	surface := scene.NewHeadless(scene.Pose{})
	f := NewFollower(surface, DefaultInterval, 60)

	body, head := newAvatar(surface, scene.Pose{})
	f.Follow(body, head, scene.Pose{Position: math32.Vec3(1, 0, 0)})
	surface.Step()
	surface.Step()
	mid, _ := surface.NodePose(head)

	second := scene.Pose{Position: math32.Vec3(-1, 0, 0)}
	f.Follow(body, head, second)
	surface.Step()
	p, _ := surface.NodePose(head)
	// the first frame of the new leg moves away from mid, not from the origin
	assert.Less(t, p.Position.X, mid.Position.X)
	assert.Greater(t, p.Position.X, float32(-1))

	for surface.Animating() {
		surface.Step()
	}
	p, _ = surface.NodePose(head)
	assert.Equal(t, second, p)
}

func TestFollowerPlaceTeleports(t *testing.T) {
	surface := scene.NewHeadless(scene.Pose{})
	f := NewFollower(surface, DefaultInterval, 30)
	assert.InDelta(t, 4.0, f.Frames(), 1e-9)

	body, head := newAvatar(surface, scene.Pose{})
	target := scene.Pose{Position: math32.Vec3(3, 1.2, -2), Rotation: math32.Vec3(0, 1, 0)}
	f.Place(body, head, target)

	p, _ := surface.NodePose(head)
	assert.Equal(t, target, p)
	b, _ := surface.NodePose(body)
	assert.Equal(t, BodyPosition(target.Position), b.Position)
	assert.False(t, surface.Animating())
}

func TestSamplerSetInterval(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	rec := &recorder{initialized: true}
	s := NewSampler(rec, clk, DefaultInterval, discard())

	s.SetInterval(200 * time.Millisecond)
	assert.Equal(t, 200*time.Millisecond, s.Interval())
	assert.True(t, s.Observe(scene.Pose{}))
	clk.Advance(150 * time.Millisecond)
	assert.False(t, s.Observe(scene.Pose{}))

	s.SetInterval(0)
	assert.Equal(t, DefaultInterval, s.Interval())
	assert.True(t, s.Observe(scene.Pose{}))
}

func TestFollowerSetTiming(t *testing.T) {
	f := NewFollower(scene.NewHeadless(scene.Pose{}), DefaultInterval, 60)
	assert.InDelta(t, 7.0, f.Frames(), 1e-9)

	f.SetTiming(200*time.Millisecond, 30)
	assert.InDelta(t, 7.0, f.Frames(), 1e-9)

	f.SetTiming(DefaultInterval, 30)
	assert.InDelta(t, 4.0, f.Frames(), 1e-9)
}
