package signal

import (
	"github.com/tomaslejdung/stagesync/pkg/ink"
	"github.com/tomaslejdung/stagesync/pkg/livestate"
	"github.com/tomaslejdung/stagesync/pkg/presence"
)

// Message types
const (
	TypeJoin     = "join"     // client → relay: bind the connection to a participant
	TypeJoined   = "joined"   // relay → client: join accepted, carries the room snapshot
	TypePresence = "presence" // both ways: a presence record (partial from clients, merged from relay)
	TypeInit     = "init"     // client → relay: create a flag with a default if it does not exist
	TypeState    = "state"    // both ways: a flag write (client) or an accepted flag state (relay)
	TypeInk      = "ink"      // both ways: one inking stroke
	TypeError    = "error"    // relay → client
)

// Message is the relay wire envelope. Type selects which payload is set.
type Message struct {
	Type          string           `json:"type"`
	Room          string           `json:"room,omitempty"`
	ParticipantID string           `json:"participantId,omitempty"`
	Presence      *presence.Record `json:"presence,omitempty"`
	State         *livestate.State `json:"state,omitempty"`
	Stroke        *ink.Stroke      `json:"stroke,omitempty"`
	Snapshot      *Snapshot        `json:"snapshot,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// Snapshot is the replicated content of a room at join time
type Snapshot struct {
	Presence []presence.Record `json:"presence"`
	States   []livestate.State `json:"states"`
}

// RoomStatus is returned by GET /rooms/:room
type RoomStatus struct {
	Room         string            `json:"room"`
	Connections  int               `json:"connections"`
	Participants []presence.Record `json:"participants"`
	Flags        []livestate.State `json:"flags"`
}
