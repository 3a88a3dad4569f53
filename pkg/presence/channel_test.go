package presence

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaslejdung/stagesync/pkg/scene"
)

type memStore struct {
	registered map[string]Record
	published  []Record
	lastKnown  map[string]Record
	failWith   error
}

func newMemStore() *memStore {
	return &memStore{
		registered: make(map[string]Record),
		lastKnown:  make(map[string]Record),
	}
}

func (m *memStore) Register(id string, rec Record) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.registered[id] = rec
	return nil
}

func (m *memStore) Publish(id string, partial Record) error {
	m.published = append(m.published, partial)
	return nil
}

func (m *memStore) Subscribe(func(Record)) {}

func (m *memStore) LastKnown(id string) (Record, bool) {
	rec, ok := m.lastKnown[id]
	return rec, ok
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type event struct {
	rec   Record
	local bool
}

func TestUpdateBeforeInitialize(t *testing.T) {
	store := newMemStore()
	ch := NewChannel(store, "alice", discard())

	err := ch.Update(scene.Pose{})
	require.ErrorIs(t, err, ErrNotInitialized)
	assert.Empty(t, store.published)
}

func TestInitializeTwice(t *testing.T) {
	store := newMemStore()
	ch := NewChannel(store, "alice", discard())

	var events []event
	ch.OnChange(func(rec Record, local bool) { events = append(events, event{rec, local}) })

	require.NoError(t, ch.Initialize(Metadata{DisplayName: "Alice", Picture: "alice.png"}))
	require.ErrorIs(t, ch.Initialize(Metadata{DisplayName: "Other"}), ErrAlreadyInitialized)

	require.Len(t, events, 1)
	assert.True(t, events[0].local)
	assert.Equal(t, Online, events[0].rec.State)
	assert.Nil(t, events[0].rec.Pose)
	assert.Equal(t, "Alice", store.registered["alice"].DisplayName)
	assert.Equal(t, "Alice", ch.Local().DisplayName)
}

func TestInitializeRegisterFailure(t *testing.T) {
	store := newMemStore()
	store.failWith = errors.New("closed")
	ch := NewChannel(store, "alice", discard())

	require.Error(t, ch.Initialize(Metadata{}))
	assert.False(t, ch.IsInitialized())
	require.ErrorIs(t, ch.Update(scene.Pose{}), ErrNotInitialized)
}

func TestUpdatePublishesFullPose(t *testing.T) {
	store := newMemStore()
	ch := NewChannel(store, "alice", discard())
	require.NoError(t, ch.Initialize(Metadata{Picture: "alice.png"}))

	var events []event
	ch.OnChange(func(rec Record, local bool) { events = append(events, event{rec, local}) })

	pose := scene.Pose{Position: math32.Vec3(1, 1.2, 3), Rotation: math32.Vec3(0, 0.5, 0)}
	require.NoError(t, ch.Update(pose))

	require.Len(t, store.published, 1)
	require.NotNil(t, store.published[0].Pose)
	assert.Equal(t, pose, *store.published[0].Pose)
	assert.Equal(t, "alice.png", store.published[0].Picture)

	require.Len(t, events, 1)
	assert.True(t, events[0].local)
	assert.Equal(t, Online, events[0].rec.State)
	assert.Equal(t, pose, *events[0].rec.Pose)
}

func TestReceiveDropsStaleRecords(t *testing.T) {
	ch := NewChannel(newMemStore(), "alice", discard())

	var events []event
	ch.OnChange(func(rec Record, local bool) { events = append(events, event{rec, local}) })

	first := scene.Pose{Position: math32.Vec3(1, 0, 0)}
	second := scene.Pose{Position: math32.Vec3(2, 0, 0)}

	ch.Receive(Record{ParticipantID: "bob", State: Online, Pose: &first, Seq: 1})
	ch.Receive(Record{ParticipantID: "bob", State: Online, Pose: &second, Seq: 2})
	// duplicate and reordered deliveries
	ch.Receive(Record{ParticipantID: "bob", State: Online, Pose: &second, Seq: 2})
	ch.Receive(Record{ParticipantID: "bob", State: Online, Pose: &first, Seq: 1})

	require.Len(t, events, 2)
	assert.False(t, events[1].local)
	assert.Equal(t, second, *ch.Record("bob").Pose)
	assert.Equal(t, uint64(2), ch.Record("bob").Seq)
}

func TestReceiveMergesPartialRecords(t *testing.T) {
	ch := NewChannel(newMemStore(), "alice", discard())

	pose := scene.Pose{Position: math32.Vec3(1, 0, 0)}
	ch.Receive(Record{ParticipantID: "bob", State: Online, DisplayName: "Bob", Seq: 1})
	ch.Receive(Record{ParticipantID: "bob", Pose: &pose, Seq: 2})
	ch.Receive(Record{ParticipantID: "bob", State: Offline, Seq: 3})

	rec := ch.Record("bob")
	assert.Equal(t, "Bob", rec.DisplayName)
	assert.Equal(t, Offline, rec.State)
	require.NotNil(t, rec.Pose)
	assert.Equal(t, pose, *rec.Pose)
}

func TestReceiveIgnoresLocalID(t *testing.T) {
	ch := NewChannel(newMemStore(), "alice", discard())
	require.NoError(t, ch.Initialize(Metadata{}))

	called := 0
	ch.OnChange(func(Record, bool) { called++ })
	ch.Receive(Record{ParticipantID: "alice", State: Offline, Seq: 9})

	assert.Zero(t, called)
	assert.Equal(t, Online, ch.Record("alice").State)
}

func TestRecordUnknownIsOfflinePlaceholder(t *testing.T) {
	store := newMemStore()
	store.lastKnown["carol"] = Record{ParticipantID: "carol", State: Online}
	ch := NewChannel(store, "alice", discard())

	assert.Equal(t, Record{ParticipantID: "dave", State: Offline}, ch.Record("dave"))
	assert.Equal(t, Online, ch.Record("carol").State)
	assert.Empty(t, ch.Participants())
}
