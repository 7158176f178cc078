package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	c := NewFixed(at)

	assert.True(t, c.Now().Equal(at))
	assert.Equal(t, time.UTC, c.Now().Location())
}

func TestManualClock(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewManual(at)

	assert.Equal(t, at.Add(time.Minute), c.Advance(time.Minute))
	assert.Equal(t, at.Add(time.Minute), c.Now())

	c.Set(at)
	assert.Equal(t, at, c.Now())
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, NewSystem().Now().Location())
}
