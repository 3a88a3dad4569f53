package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherFIFO(t *testing.T) {
	var got []Action
	d := NewDispatcher(func(ev Event) {
		got = append(got, ev.(InputEvent).Action)
	})

	d.Post(InputEvent{Action: ActionMove})
	d.Post(InputEvent{Action: ActionToggleControl})
	d.Post(InputEvent{Action: ActionDraw})
	assert.Equal(t, 3, d.Len())

	assert.Equal(t, 3, d.RunPending())
	assert.Equal(t, []Action{ActionMove, ActionToggleControl, ActionDraw}, got)
	assert.Zero(t, d.RunPending())
}

func TestDispatcherRunsEventsPostedByHandlers(t *testing.T) {
	var d *Dispatcher
	count := 0
	d = NewDispatcher(func(ev Event) {
		count++
		if count < 3 {
			d.Post(SweepEvent{})
		}
	})
	d.Post(SweepEvent{})
	assert.Equal(t, 3, d.RunPending())
}

func TestDispatcherRunUntilClose(t *testing.T) {
	var mu sync.Mutex
	handled := 0
	d := NewDispatcher(func(Event) {
		mu.Lock()
		handled++
		mu.Unlock()
	})

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	for i := 0; i < 10; i++ {
		require.True(t, d.Post(FrameEvent{}))
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return handled == 10
	}, time.Second, time.Millisecond)

	d.Close()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
	assert.False(t, d.Post(FrameEvent{}))
}

func TestDispatcherRunStopsOnContext(t *testing.T) {
	d := NewDispatcher(func(Event) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, d.Run(ctx), context.Canceled)
}
