// Package presence tracks every participant's replicated live state: camera
// pose, connection state and display metadata. Each participant writes only
// its own record; everyone reads all of them.
package presence

import (
	"github.com/tomaslejdung/stagesync/pkg/scene"
)

// State is a participant's connection state as surfaced by the relay
type State string

const (
	Online  State = "online"
	Offline State = "offline"
)

// Record is one participant's presence entry
type Record struct {
	ParticipantID string      `json:"participantId"`
	State         State       `json:"state,omitempty"`
	Pose          *scene.Pose `json:"pose,omitempty"`
	DisplayName   string      `json:"displayName,omitempty"`
	Picture       string      `json:"picture,omitempty"`

	// Seq is stamped by the relay on every accepted mutation, increasing
	// per participant. Zero means unsequenced.
	Seq uint64 `json:"seq,omitempty"`
}

// Merge returns r with every set field of partial applied on top. Fields
// are last-writer-wins; Seq only moves forward.
func (r Record) Merge(partial Record) Record {
	if partial.ParticipantID != "" {
		r.ParticipantID = partial.ParticipantID
	}
	if partial.State != "" {
		r.State = partial.State
	}
	if partial.Pose != nil {
		pose := *partial.Pose
		r.Pose = &pose
	}
	if partial.DisplayName != "" {
		r.DisplayName = partial.DisplayName
	}
	if partial.Picture != "" {
		r.Picture = partial.Picture
	}
	if partial.Seq > r.Seq {
		r.Seq = partial.Seq
	}
	return r
}

// IsOnline reports whether the record is Online
func (r Record) IsOnline() bool {
	return r.State == Online
}

// Metadata is the local participant's display information
type Metadata struct {
	DisplayName string `json:"displayName" yaml:"displayName"`
	Picture     string `json:"picture" yaml:"picture"`
}

// Store is the replicated presence store the channel publishes through.
// Subscribers receive remote mutations only; the store never echoes the
// local participant's own writes.
type Store interface {
	Register(participantID string, initial Record) error
	Publish(participantID string, partial Record) error
	Subscribe(fn func(rec Record))
	LastKnown(participantID string) (Record, bool)
}
