// Package pose turns local camera movement into rate-limited presence
// updates and remote presence updates into smooth avatar motion.
package pose

import (
	"log/slog"
	"time"

	"github.com/tomaslejdung/stagesync/pkg/clock"
	"github.com/tomaslejdung/stagesync/pkg/scene"
)

// DefaultInterval is the minimum time between two published samples
const DefaultInterval = 100 * time.Millisecond

// Publisher receives accepted samples. presence.Channel satisfies it.
type Publisher interface {
	IsInitialized() bool
	Update(p scene.Pose) error
}

// Sampler publishes the local camera pose at most once per interval.
// Samples that arrive too early are dropped, never buffered.
type Sampler struct {
	pub      Publisher
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger

	last       time.Time
	sampled    bool
	suppressed bool
	published  uint64
}

// NewSampler creates a sampler. A non-positive interval selects DefaultInterval.
func NewSampler(pub Publisher, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		pub:      pub,
		clock:    clk,
		interval: interval,
		logger:   logger.With(slog.String("component", "sampler")),
	}
}

// Interval returns the sampling interval
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// SetInterval changes the sampling interval. A non-positive interval
// selects DefaultInterval.
func (s *Sampler) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s.interval = interval
}

// Suppress stops (or resumes) publishing while a remote participant drives
// the camera
func (s *Sampler) Suppress(on bool) {
	if s.suppressed != on {
		s.logger.Debug("suppression changed", slog.Bool("suppressed", on))
	}
	s.suppressed = on
}

// Suppressed reports whether sampling is suppressed
func (s *Sampler) Suppressed() bool {
	return s.suppressed
}

// Published returns how many samples have been published
func (s *Sampler) Published() uint64 {
	return s.published
}

// Observe handles one camera-changed notification and reports whether the
// pose was published.
func (s *Sampler) Observe(p scene.Pose) bool {
	if s.suppressed || !s.pub.IsInitialized() {
		return false
	}

	now := s.clock.Now()
	if s.sampled && now.Sub(s.last) < s.interval {
		return false
	}

	if err := s.pub.Update(p); err != nil {
		s.logger.Warn("publish sample failed", slog.Any("error", err))
		return false
	}
	s.last = now
	s.sampled = true
	s.published++
	return true
}
