package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseFPSFlag(t *testing.T) {
	assert.Equal(t, 30, ParseFPSFlag("30"))
	assert.Equal(t, 45, ParseFPSFlag(" 45 "))
	assert.Equal(t, 60, ParseFPSFlag("fast"))
	assert.Equal(t, 60, ParseFPSFlag("0"))
	assert.Equal(t, 60, ParseFPSFlag("1000"))
}

func TestFPSIndexForValue(t *testing.T) {
	assert.Equal(t, 0, FPSIndexForValue(15))
	assert.Equal(t, DefaultFPSIndex(), FPSIndexForValue(45))
	assert.Nil(t, FPSByValue(45))
	assert.Equal(t, "smooth", FPSByValue(60).Description)
}

func TestParseRateFlag(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"fast", 50 * time.Millisecond},
		{"LOW", 200 * time.Millisecond},
		{"250ms", 250 * time.Millisecond},
		{"75", 75 * time.Millisecond},
		{"-1s", 100 * time.Millisecond},
		{"whenever", 100 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRateFlag(tt.in))
		})
	}
}

func TestRateIndexForInterval(t *testing.T) {
	assert.Equal(t, 3, RateIndexForInterval(500*time.Millisecond))
	assert.Equal(t, DefaultRateIndex(), RateIndexForInterval(time.Second))
}
