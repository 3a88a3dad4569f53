package avatar

import (
	"io"
	"log/slog"
	"testing"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaslejdung/stagesync/pkg/pose"
	"github.com/tomaslejdung/stagesync/pkg/presence"
	"github.com/tomaslejdung/stagesync/pkg/scene"
)

type countingSurface struct {
	*scene.Headless
	created  int
	disposed int
}

func (c *countingSurface) CreateMesh(spec scene.MeshSpec) scene.Handle {
	c.created++
	return c.Headless.CreateMesh(spec)
}

func (c *countingSurface) Dispose(h scene.Handle) bool {
	c.disposed++
	return c.Headless.Dispose(h)
}

type records map[string]presence.Record

func (r records) Record(id string) presence.Record {
	if rec, ok := r[id]; ok {
		return rec
	}
	return presence.Record{ParticipantID: id, State: presence.Offline}
}

var spawn = scene.Pose{Position: math32.Vec3(0, 1.2, 0)}

func newRegistry() (*Registry, *countingSurface, records) {
	surface := &countingSurface{Headless: scene.NewHeadless(spawn)}
	follower := pose.NewFollower(surface, pose.DefaultInterval, 60)
	recs := records{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(surface, follower, recs, spawn, logger), surface, recs
}

func TestFirstRecordCreatesOneEntityAtSpawn(t *testing.T) {
	reg, surface, _ := newRegistry()

	reg.Apply(presence.Record{ParticipantID: "bob", State: presence.Online, DisplayName: "Bob", Picture: "bob.png"})
	reg.Apply(presence.Record{ParticipantID: "bob", State: presence.Online})

	require.Equal(t, 1, reg.Len())
	assert.Equal(t, 3, surface.created)

	e, ok := reg.Get("bob")
	require.True(t, ok)
	head, _ := surface.NodePose(e.Head)
	assert.Equal(t, spawn, head)

	var label scene.NodeView
	for _, v := range surface.Snapshot() {
		if v.Handle == e.Label {
			label = v
		}
		if v.Handle == e.Head {
			assert.Equal(t, "bob.png", v.Texture)
		}
	}
	assert.Equal(t, "Bob", label.Text)
	assert.Equal(t, e.Head, label.Linked)
}

func TestFirstPoseIsAppliedWithoutInterpolation(t *testing.T) {
	reg, surface, _ := newRegistry()

	at := scene.Pose{Position: math32.Vec3(4, 1.2, -3), Rotation: math32.Vec3(0, 1, 0)}
	reg.Apply(presence.Record{ParticipantID: "bob", State: presence.Online, Pose: &at})

	e, _ := reg.Get("bob")
	head, _ := surface.NodePose(e.Head)
	assert.Equal(t, at, head)
	assert.Equal(t, at, e.LastApplied)
	assert.False(t, surface.Animating())
}

func TestFirstPoseAfterPoselessRecordTeleports(t *testing.T) {
	reg, surface, _ := newRegistry()

	reg.Apply(presence.Record{ParticipantID: "bob", State: presence.Online})
	at := scene.Pose{Position: math32.Vec3(2, 1.2, 2)}
	reg.Apply(presence.Record{ParticipantID: "bob", State: presence.Online, Pose: &at})

	e, _ := reg.Get("bob")
	head, _ := surface.NodePose(e.Head)
	assert.Equal(t, at, head)
	assert.False(t, surface.Animating())
}

func TestLaterPosesInterpolate(t *testing.T) {
	reg, surface, _ := newRegistry()

	first := scene.Pose{Position: math32.Vec3(0, 1.2, 0)}
	next := scene.Pose{Position: math32.Vec3(1, 1.2, 0)}
	reg.Apply(presence.Record{ParticipantID: "bob", State: presence.Online, Pose: &first})
	reg.Apply(presence.Record{ParticipantID: "bob", State: presence.Online, Pose: &next})

	e, _ := reg.Get("bob")
	assert.True(t, surface.Animating())

	surface.Step()
	head, _ := surface.NodePose(e.Head)
	assert.Greater(t, head.Position.X, float32(0))
	assert.Less(t, head.Position.X, float32(1))

	for i := 0; i < 6; i++ {
		surface.Step()
	}
	head, _ = surface.NodePose(e.Head)
	assert.Equal(t, next, head)
}

func TestOfflineWaitsForSweep(t *testing.T) {
	reg, surface, recs := newRegistry()

	recs["bob"] = presence.Record{ParticipantID: "bob", State: presence.Online}
	reg.Apply(recs["bob"])

	recs["bob"] = presence.Record{ParticipantID: "bob", State: presence.Offline}
	reg.Apply(recs["bob"])
	assert.Equal(t, 1, reg.Len())

	// flapped back before the sweep ran
	recs["bob"] = presence.Record{ParticipantID: "bob", State: presence.Online}
	assert.Zero(t, reg.Sweep())
	assert.Equal(t, 1, reg.Len())

	recs["bob"] = presence.Record{ParticipantID: "bob", State: presence.Offline}
	assert.Equal(t, 1, reg.Sweep())
	assert.Zero(t, reg.Len())
	assert.Equal(t, 3, surface.disposed)
}

func TestSweepIsIdempotent(t *testing.T) {
	reg, surface, recs := newRegistry()

	recs["bob"] = presence.Record{ParticipantID: "bob", State: presence.Offline}
	reg.Apply(recs["bob"])

	assert.Equal(t, 1, reg.Sweep())
	assert.Zero(t, reg.Sweep())
	assert.False(t, reg.RemoveIfOffline("bob"))
	assert.False(t, reg.RemoveIfOffline("nobody"))
	assert.Equal(t, 3, surface.disposed)
	assert.Zero(t, surface.NodeCount())
}

func TestClearRemovesEverything(t *testing.T) {
	reg, surface, _ := newRegistry()

	reg.Apply(presence.Record{ParticipantID: "bob", State: presence.Online})
	reg.Apply(presence.Record{ParticipantID: "carol", State: presence.Online})
	assert.Equal(t, []string{"bob", "carol"}, reg.IDs())

	reg.Clear()
	assert.Zero(t, reg.Len())
	assert.Zero(t, surface.NodeCount())
}
