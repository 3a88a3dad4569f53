package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeAdvanceMovesNow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	c.Advance(150 * time.Millisecond)
	require.Equal(t, start.Add(150*time.Millisecond), c.Now())
}

func TestFakeTickerFiresOnDeadline(t *testing.T) {
	c := NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ticker := c.NewTicker(2 * time.Second)

	c.Advance(time.Second)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire at its deadline")
	}
}

func TestFakeTickerStopped(t *testing.T) {
	c := NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ticker := c.NewTicker(time.Second)
	ticker.Stop()

	c.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}
