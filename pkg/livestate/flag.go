// Package livestate holds the replicated boolean flags shared by a meeting:
// who has taken camera control and whether the inking overlay is shown.
package livestate

import (
	"fmt"
	"log/slog"
)

// Well-known flag keys
const (
	TakeControl  = "takeControl"
	ToggleInking = "toggleInking"
)

// State is one accepted value of a flag. Revision is stamped by the relay
// and increases per key; Writer is the participant that wrote it.
type State struct {
	Key      string `json:"key"`
	Value    bool   `json:"value"`
	Revision uint64 `json:"revision,omitempty"`
	Writer   string `json:"writer,omitempty"`

	// Local is set on states produced by the local participant's writes
	Local bool `json:"-"`
}

// Store is the replicated flag store. Subscribers receive every state the
// relay accepted for the room, including the acknowledgement of local
// writes carrying their stamped revision.
type Store interface {
	Initialize(key string, def bool) error
	Set(key string, value bool) error
	Get(key string) (State, bool)
	Subscribe(fn func(State))
}

// Flag is the local view of one replicated flag. It is not safe for
// concurrent use; the session dispatcher owns it.
type Flag struct {
	key    string
	self   string
	store  Store
	logger *slog.Logger

	current  State
	pending  int
	handlers []func(State)
}

// NewFlag creates a view of key seeded from the store's current value
func NewFlag(store Store, key, self string, logger *slog.Logger) *Flag {
	f := &Flag{
		key:    key,
		self:   self,
		store:  store,
		logger: logger.With(slog.String("component", "livestate"), slog.String("key", key)),
	}
	f.current = State{Key: key}
	if s, ok := store.Get(key); ok {
		f.current = s
		f.current.Local = s.Writer == self
	}
	return f
}

// Key returns the flag key
func (f *Flag) Key() string {
	return f.key
}

// Value returns the last applied value
func (f *Flag) Value() bool {
	return f.current.Value
}

// State returns the last applied state
func (f *Flag) State() State {
	return f.current
}

// OnChange registers a handler invoked whenever the applied value or its
// writer changes
func (f *Flag) OnChange(fn func(State)) {
	f.handlers = append(f.handlers, fn)
}

// Set writes a local value. The change is applied and emitted immediately;
// the relay acknowledgement later only advances the revision.
func (f *Flag) Set(value bool) error {
	if err := f.store.Set(f.key, value); err != nil {
		return fmt.Errorf("set %s: %w", f.key, err)
	}
	f.pending++
	changed := f.current.Value != value
	f.current.Value = value
	f.current.Writer = f.self
	f.current.Local = true
	if changed {
		f.emit()
	}
	return nil
}

// Receive applies a state delivered by the store. States whose revision is
// not newer than the last applied one are dropped.
func (f *Flag) Receive(s State) {
	if s.Key != f.key {
		return
	}
	if s.Revision != 0 && s.Revision <= f.current.Revision {
		f.logger.Debug("dropping stale flag state",
			slog.Uint64("revision", s.Revision),
			slog.Uint64("applied", f.current.Revision),
		)
		return
	}

	if s.Writer == f.self && f.self != "" {
		if f.pending > 0 {
			f.pending--
		}
		f.current.Revision = s.Revision
		if f.pending > 0 {
			// a later local write is still in flight and will supersede this one
			return
		}
	}

	changed := f.current.Value != s.Value || f.current.Writer != s.Writer
	f.current = s
	f.current.Local = s.Writer == f.self && f.self != ""
	if changed {
		f.emit()
	}
}

func (f *Flag) emit() {
	s := f.current
	for _, fn := range f.handlers {
		fn(s)
	}
}
