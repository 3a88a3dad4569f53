package signal

import (
	"github.com/tomaslejdung/stagesync/pkg/ink"
	"github.com/tomaslejdung/stagesync/pkg/livestate"
	"github.com/tomaslejdung/stagesync/pkg/presence"
)

// Conn is a joined connection to a relay room.
// RemoteClient and LocalClient implement this interface.
type Conn interface {
	// ParticipantID is the participant the connection joined as
	ParticipantID() string

	// Room is the normalized room code
	Room() string

	Presence() presence.Store
	Flags() livestate.Store
	Ink() ink.Store

	// SetDisconnectHandler sets callback for when connection is lost
	SetDisconnectHandler(handler func())

	// Close leaves the room
	Close() error
}

var (
	_ Conn = (*RemoteClient)(nil)
	_ Conn = (*LocalClient)(nil)
)
