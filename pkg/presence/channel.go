package presence

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tomaslejdung/stagesync/pkg/scene"
)

var (
	// ErrNotInitialized is returned by operations attempted before Initialize
	ErrNotInitialized = errors.New("presence channel not initialized")
	// ErrAlreadyInitialized is returned when Initialize is called twice
	ErrAlreadyInitialized = errors.New("presence channel already initialized")
)

// Handler is invoked once per applied mutation. local is true for the
// local participant's own writes.
type Handler func(rec Record, local bool)

// Channel is the local view of the presence store. It is not safe for
// concurrent use; the session dispatcher owns it.
type Channel struct {
	store  Store
	self   string
	logger *slog.Logger

	initialized bool
	local       Record
	known       map[string]Record
	handlers    []Handler
}

// NewChannel creates a channel for the local participant. Remote records
// enter through Receive.
func NewChannel(store Store, self string, logger *slog.Logger) *Channel {
	return &Channel{
		store:  store,
		self:   self,
		logger: logger.With(slog.String("component", "presence")),
		known:  make(map[string]Record),
	}
}

// Self returns the local participant id
func (c *Channel) Self() string {
	return c.self
}

// IsInitialized reports whether the local participant has been registered
func (c *Channel) IsInitialized() bool {
	return c.initialized
}

// Initialize registers the local participant Online with no pose yet
func (c *Channel) Initialize(meta Metadata) error {
	if c.initialized {
		c.logger.Warn("initialize called twice, ignoring", slog.String("participantID", c.self))
		return ErrAlreadyInitialized
	}

	rec := Record{
		ParticipantID: c.self,
		State:         Online,
		DisplayName:   meta.DisplayName,
		Picture:       meta.Picture,
	}
	if err := c.store.Register(c.self, rec); err != nil {
		return fmt.Errorf("register %s: %w", c.self, err)
	}

	c.initialized = true
	c.local = rec
	c.logger.Debug("local participant registered", slog.String("participantID", c.self))
	c.emit(c.local, true)
	return nil
}

// Update merges a new pose into the local record and broadcasts it
func (c *Channel) Update(p scene.Pose) error {
	if !c.initialized {
		c.logger.Debug("update before initialize dropped")
		return ErrNotInitialized
	}

	partial := Record{
		ParticipantID: c.self,
		Pose:          &p,
		Picture:       c.local.Picture,
	}
	c.local = c.local.Merge(partial)
	if err := c.store.Publish(c.self, partial); err != nil {
		// fire-and-forget: the next sample carries the full pose again
		c.logger.Warn("publish failed", slog.Any("error", err))
	}
	c.emit(c.local, true)
	return nil
}

// OnChange registers a change handler
func (c *Channel) OnChange(h Handler) {
	c.handlers = append(c.handlers, h)
}

// Receive applies a record delivered by the store. Records that are not
// newer than the last applied one for that participant are dropped, as are
// records claiming to be the local participant.
func (c *Channel) Receive(rec Record) {
	if rec.ParticipantID == "" {
		return
	}
	if rec.ParticipantID == c.self {
		c.logger.Debug("ignoring relayed copy of local record", slog.Uint64("seq", rec.Seq))
		return
	}

	prev, seen := c.known[rec.ParticipantID]
	if seen && rec.Seq != 0 && rec.Seq <= prev.Seq {
		c.logger.Debug("dropping stale presence",
			slog.String("participantID", rec.ParticipantID),
			slog.Uint64("seq", rec.Seq),
			slog.Uint64("lastSeq", prev.Seq),
		)
		return
	}

	merged := prev.Merge(rec)
	c.known[rec.ParticipantID] = merged
	c.emit(merged, false)
}

// Record returns the last known snapshot of a participant, or an Offline
// placeholder when nothing is known.
func (c *Channel) Record(participantID string) Record {
	if participantID == c.self && c.initialized {
		return c.local
	}
	if rec, ok := c.known[participantID]; ok {
		return rec
	}
	if rec, ok := c.store.LastKnown(participantID); ok {
		return rec
	}
	return Record{ParticipantID: participantID, State: Offline}
}

// Local returns the local participant's record
func (c *Channel) Local() Record {
	return c.local
}

// Participants returns the ids of all remote participants seen so far
func (c *Channel) Participants() []string {
	ids := make([]string, 0, len(c.known))
	for id := range c.known {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Channel) emit(rec Record, local bool) {
	for _, h := range c.handlers {
		h(rec, local)
	}
}
