package main

import (
	"strconv"
	"strings"
	"time"
)

// RatePreset defines how often the local camera pose is published
type RatePreset struct {
	Name        string
	Interval    time.Duration
	Description string // short description for UI
}

// Rate presets from most to least frequent
var RatePresets = []RatePreset{
	{Name: "Fast", Interval: 50 * time.Millisecond, Description: "20 updates/s"},
	{Name: "Normal", Interval: 100 * time.Millisecond, Description: "10 updates/s"},
	{Name: "Low", Interval: 200 * time.Millisecond, Description: "5 updates/s"},
	{Name: "Minimal", Interval: 500 * time.Millisecond, Description: "2 updates/s"},
}

// DefaultRateIndex returns the index of the default rate preset (Normal)
func DefaultRateIndex() int {
	return 1 // Normal
}

// RateByName finds a rate preset by name (case-insensitive)
func RateByName(name string) *RatePreset {
	name = strings.ToLower(name)
	for i := range RatePresets {
		if strings.ToLower(RatePresets[i].Name) == name {
			return &RatePresets[i]
		}
	}
	return nil
}

// ParseRateFlag parses the --rate flag value. It accepts a preset name, a
// Go duration or a bare number of milliseconds.
func ParseRateFlag(value string) time.Duration {
	value = strings.ToLower(strings.TrimSpace(value))

	if preset := RateByName(value); preset != nil {
		return preset.Interval
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}

	return RatePresets[DefaultRateIndex()].Interval
}

// RateIndexForInterval returns the index of the preset with the given
// interval, or the default index if not found
func RateIndexForInterval(d time.Duration) int {
	for i, preset := range RatePresets {
		if preset.Interval == d {
			return i
		}
	}
	return DefaultRateIndex()
}
