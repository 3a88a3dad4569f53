package signal

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tomaslejdung/stagesync/pkg/ink"
	"github.com/tomaslejdung/stagesync/pkg/livestate"
	"github.com/tomaslejdung/stagesync/pkg/presence"
)

var (
	// ErrClosed is returned when sending on a closed connection
	ErrClosed = errors.New("relay connection closed")
	// ErrJoinRejected is returned when the relay refuses a join
	ErrJoinRejected = errors.New("relay rejected join")
	// ErrNotOwner is returned when writing another participant's record
	ErrNotOwner = errors.New("presence record owned by another participant")
)

// Replica is the client-side cache of a relay room. Both transports feed it
// relay messages and expose it through the presence, flag and ink stores.
// Subscribers run on the transport's reader goroutine.
type Replica struct {
	self   string
	send   func(Message) error
	logger *slog.Logger

	mu           sync.RWMutex
	room         string
	presence     map[string]presence.Record
	states       map[string]livestate.State
	presenceSubs []func(presence.Record)
	stateSubs    []func(livestate.State)
	strokeSubs   []func(ink.Stroke)
}

func newReplica(self string, send func(Message) error, logger *slog.Logger) *Replica {
	return &Replica{
		self:     self,
		send:     send,
		logger:   logger,
		presence: make(map[string]presence.Record),
		states:   make(map[string]livestate.State),
	}
}

// ParticipantID returns the participant this replica joined as
func (r *Replica) ParticipantID() string {
	return r.self
}

// Room returns the normalized room code
func (r *Replica) Room() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.room
}

// Presence returns the replicated presence store
func (r *Replica) Presence() presence.Store {
	return presenceStore{r}
}

// Flags returns the replicated flag store
func (r *Replica) Flags() livestate.Store {
	return flagStore{r}
}

// Ink returns the stroke store
func (r *Replica) Ink() ink.Store {
	return strokeStore{r}
}

// loadSnapshot installs the joined snapshot
func (r *Replica) loadSnapshot(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.room = msg.Room
	if msg.Snapshot == nil {
		return
	}
	for _, rec := range msg.Snapshot.Presence {
		r.presence[rec.ParticipantID] = rec
	}
	for _, s := range msg.Snapshot.States {
		r.states[s.Key] = s
	}
}

// apply updates the cache from one relay message and notifies subscribers
func (r *Replica) apply(msg Message) {
	switch msg.Type {
	case TypePresence:
		if msg.Presence == nil {
			return
		}
		r.mu.Lock()
		prev, seen := r.presence[msg.Presence.ParticipantID]
		if seen && msg.Presence.Seq != 0 && msg.Presence.Seq <= prev.Seq {
			r.mu.Unlock()
			return
		}
		rec := prev.Merge(*msg.Presence)
		r.presence[rec.ParticipantID] = rec
		subs := r.presenceSubs
		r.mu.Unlock()

		for _, fn := range subs {
			fn(rec)
		}

	case TypeState:
		if msg.State == nil {
			return
		}
		s := *msg.State
		r.mu.Lock()
		if prev, ok := r.states[s.Key]; ok && s.Revision != 0 && s.Revision <= prev.Revision {
			r.mu.Unlock()
			return
		}
		r.states[s.Key] = s
		subs := r.stateSubs
		r.mu.Unlock()

		for _, fn := range subs {
			fn(s)
		}

	case TypeInk:
		if msg.Stroke == nil {
			return
		}
		r.mu.RLock()
		subs := r.strokeSubs
		r.mu.RUnlock()

		for _, fn := range subs {
			fn(*msg.Stroke)
		}

	case TypeError:
		r.logger.Warn("relay error", slog.String("error", msg.Error))

	default:
		r.logger.Debug("ignoring message", slog.String("type", msg.Type))
	}
}

type presenceStore struct{ r *Replica }

func (p presenceStore) Register(participantID string, initial presence.Record) error {
	return p.Publish(participantID, initial)
}

func (p presenceStore) Publish(participantID string, partial presence.Record) error {
	if participantID != p.r.self {
		return fmt.Errorf("%w: %s", ErrNotOwner, participantID)
	}
	partial.ParticipantID = participantID
	partial.Seq = 0

	p.r.mu.Lock()
	p.r.presence[participantID] = p.r.presence[participantID].Merge(partial)
	p.r.mu.Unlock()

	return p.r.send(Message{Type: TypePresence, Presence: &partial})
}

// Subscribe registers fn for remote records and replays every cached
// remote record to it
func (p presenceStore) Subscribe(fn func(presence.Record)) {
	p.r.mu.Lock()
	p.r.presenceSubs = append(p.r.presenceSubs, fn)
	replay := make([]presence.Record, 0, len(p.r.presence))
	for id, rec := range p.r.presence {
		if id != p.r.self {
			replay = append(replay, rec)
		}
	}
	p.r.mu.Unlock()

	for _, rec := range replay {
		fn(rec)
	}
}

func (p presenceStore) LastKnown(participantID string) (presence.Record, bool) {
	p.r.mu.RLock()
	defer p.r.mu.RUnlock()
	rec, ok := p.r.presence[participantID]
	return rec, ok
}

type flagStore struct{ r *Replica }

func (f flagStore) Initialize(key string, def bool) error {
	f.r.mu.Lock()
	if _, ok := f.r.states[key]; !ok {
		f.r.states[key] = livestate.State{Key: key, Value: def}
	}
	f.r.mu.Unlock()

	return f.r.send(Message{Type: TypeInit, State: &livestate.State{Key: key, Value: def}})
}

func (f flagStore) Set(key string, value bool) error {
	return f.r.send(Message{Type: TypeState, State: &livestate.State{Key: key, Value: value}})
}

func (f flagStore) Get(key string) (livestate.State, bool) {
	f.r.mu.RLock()
	defer f.r.mu.RUnlock()
	s, ok := f.r.states[key]
	return s, ok
}

// Subscribe registers fn for flag states and replays every cached state the
// relay has stamped. Unstamped defaults are skipped.
func (f flagStore) Subscribe(fn func(livestate.State)) {
	f.r.mu.Lock()
	f.r.stateSubs = append(f.r.stateSubs, fn)
	replay := make([]livestate.State, 0, len(f.r.states))
	for _, s := range f.r.states {
		if s.Revision > 0 {
			replay = append(replay, s)
		}
	}
	f.r.mu.Unlock()

	sort.Slice(replay, func(i, j int) bool { return replay[i].Key < replay[j].Key })
	for _, s := range replay {
		fn(s)
	}
}

type strokeStore struct{ r *Replica }

func (s strokeStore) Broadcast(stroke ink.Stroke) error {
	return s.r.send(Message{Type: TypeInk, Stroke: &stroke})
}

func (s strokeStore) SubscribeStrokes(fn func(ink.Stroke)) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.strokeSubs = append(s.r.strokeSubs, fn)
}
