// Package avatar keeps one visual avatar per remote participant: a body, a
// textured head and a floating name label.
package avatar

import (
	"log/slog"
	"sort"

	"github.com/tomaslejdung/stagesync/pkg/pose"
	"github.com/tomaslejdung/stagesync/pkg/presence"
	"github.com/tomaslejdung/stagesync/pkg/scene"
)

// LabelOffsetY is the label's screen-space offset from the head, in pixels
const LabelOffsetY = -50

// Entity is the local visual state of one remote participant
type Entity struct {
	ParticipantID string
	Body          scene.Handle
	Head          scene.Handle
	Label         scene.Handle
	LastApplied   scene.Pose

	placed bool
}

// Records resolves a participant's last known presence record.
// presence.Channel satisfies it.
type Records interface {
	Record(participantID string) presence.Record
}

// Registry maps participants to their avatars. It is not safe for
// concurrent use; the session dispatcher owns it.
type Registry struct {
	surface  scene.Surface
	follower *pose.Follower
	records  Records
	spawn    scene.Pose
	logger   *slog.Logger

	entities map[string]*Entity
}

// NewRegistry creates an empty registry spawning avatars at spawn
func NewRegistry(surface scene.Surface, follower *pose.Follower, records Records, spawn scene.Pose, logger *slog.Logger) *Registry {
	return &Registry{
		surface:  surface,
		follower: follower,
		records:  records,
		spawn:    spawn,
		logger:   logger.With(slog.String("component", "avatars")),
		entities: make(map[string]*Entity),
	}
}

// Apply reacts to a remote presence change
func (r *Registry) Apply(rec presence.Record) {
	e, created := r.Ensure(rec)
	if created {
		return
	}
	if rec.State == presence.Offline {
		// removal waits for the sweep so a single stale flap does not
		// tear the avatar down
		return
	}
	if rec.Pose == nil {
		return
	}

	if !e.placed {
		r.place(e, *rec.Pose)
		return
	}
	r.follower.Follow(e.Body, e.Head, *rec.Pose)
	e.LastApplied = *rec.Pose
}

// Ensure returns the participant's entity, creating it at the spawn pose
// if it does not exist yet. A new entity takes the record's pose
// immediately when it carries one.
func (r *Registry) Ensure(rec presence.Record) (*Entity, bool) {
	if e, ok := r.entities[rec.ParticipantID]; ok {
		return e, false
	}

	name := rec.DisplayName
	if name == "" {
		name = rec.ParticipantID
	}

	body := r.surface.CreateMesh(scene.MeshSpec{
		Kind: scene.KindBody,
		Name: rec.ParticipantID + "-body",
		Pose: scene.Pose{Position: pose.BodyPosition(r.spawn.Position)},
	})
	head := r.surface.CreateMesh(scene.MeshSpec{
		Kind: scene.KindHead,
		Name: rec.ParticipantID + "-head",
		Pose: r.spawn,
	})
	if rec.Picture != "" {
		r.surface.ApplyTexture(head, rec.Picture)
	}
	label := r.surface.CreateMesh(scene.MeshSpec{
		Kind:        scene.KindLabel,
		Name:        rec.ParticipantID + "-label",
		Text:        name,
		LinkedTo:    head,
		LinkOffsetY: LabelOffsetY,
	})

	e := &Entity{
		ParticipantID: rec.ParticipantID,
		Body:          body,
		Head:          head,
		Label:         label,
		LastApplied:   r.spawn,
	}
	r.entities[rec.ParticipantID] = e

	if rec.Pose != nil {
		r.place(e, *rec.Pose)
	}
	r.logger.Info("avatar created",
		slog.String("participantID", rec.ParticipantID),
		slog.String("name", name),
		slog.Bool("placed", e.placed),
	)
	return e, true
}

func (r *Registry) place(e *Entity, p scene.Pose) {
	r.follower.Place(e.Body, e.Head, p)
	e.LastApplied = p
	e.placed = true
}

// RemoveIfOffline disposes the participant's avatar when their last known
// state is Offline. Unknown ids are a no-op.
func (r *Registry) RemoveIfOffline(participantID string) bool {
	if _, ok := r.entities[participantID]; !ok {
		return false
	}
	if r.records.Record(participantID).State != presence.Offline {
		return false
	}
	return r.Remove(participantID)
}

// Remove disposes the participant's avatar unconditionally
func (r *Registry) Remove(participantID string) bool {
	e, ok := r.entities[participantID]
	if !ok {
		return false
	}
	delete(r.entities, participantID)

	r.surface.Dispose(e.Label)
	r.surface.Dispose(e.Head)
	r.surface.Dispose(e.Body)
	r.logger.Info("avatar removed", slog.String("participantID", participantID))
	return true
}

// Sweep removes every avatar whose participant is Offline and returns how
// many were removed
func (r *Registry) Sweep() int {
	removed := 0
	for _, id := range r.IDs() {
		if r.RemoveIfOffline(id) {
			removed++
		}
	}
	return removed
}

// Clear removes every avatar
func (r *Registry) Clear() {
	for _, id := range r.IDs() {
		r.Remove(id)
	}
}

// Get returns a copy of the participant's entity
func (r *Registry) Get(participantID string) (Entity, bool) {
	e, ok := r.entities[participantID]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Len returns the number of live avatars
func (r *Registry) Len() int {
	return len(r.entities)
}

// IDs returns the participants with a live avatar, sorted
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
