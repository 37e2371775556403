package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate_PlausibleSession(t *testing.T) {
	start := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
	v := Validate(start, start.Add(8*time.Hour), DefaultMaxHours)

	assert.True(t, v.Valid)
	assert.False(t, v.TimeTravel)
	assert.InDelta(t, 8.0, v.Hours, 1e-9)
	assert.Zero(t, v.ExceedsByHours)
}

func TestValidate_OverlongSession(t *testing.T) {
	// A forgotten clock-out: 57 hours exceeds the 14h threshold by 43.
	start := time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)
	v := Validate(start, start.Add(57*time.Hour), DefaultMaxHours)

	assert.False(t, v.Valid)
	assert.False(t, v.TimeTravel, "overlong is a soft flag, not a block")
	assert.InDelta(t, 57.0, v.Hours, 1e-9)
	assert.InDelta(t, 43.0, v.ExceedsByHours, 1e-9)
}

func TestValidate_ExactlyAtThresholdIsValid(t *testing.T) {
	start := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	v := Validate(start, start.Add(14*time.Hour), DefaultMaxHours)

	assert.True(t, v.Valid, "the threshold itself is allowed; only beyond it flags")
}

func TestValidate_TimeTravel(t *testing.T) {
	start := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)

	v := Validate(start, start.Add(-time.Minute), DefaultMaxHours)
	assert.False(t, v.Valid)
	assert.True(t, v.TimeTravel)

	v = Validate(start, start, DefaultMaxHours)
	assert.True(t, v.TimeTravel, "equal start and end is blocked, not zero-duration")
}

func TestValidate_ZeroMaxFallsBackToDefault(t *testing.T) {
	start := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	v := Validate(start, start.Add(15*time.Hour), 0)
	assert.False(t, v.Valid)
	assert.InDelta(t, 1.0, v.ExceedsByHours, 1e-9)
}

func TestValidate_CustomThreshold(t *testing.T) {
	start := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	v := Validate(start, start.Add(10*time.Hour), 8)
	assert.False(t, v.Valid)
	assert.InDelta(t, 2.0, v.ExceedsByHours, 1e-9)
}
