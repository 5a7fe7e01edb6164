package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerTripsOnceAtThreshold(t *testing.T) {
	b := NewBreaker()
	now := time.Now()
	window := 30 * time.Minute

	for i := 0; i < 4; i++ {
		assert.False(t, b.Record(now.Add(time.Duration(i)*time.Second), window, 5))
	}
	assert.True(t, b.Record(now.Add(5*time.Second), window, 5), "fifth failure must trip")
	assert.True(t, b.Tripped())

	// Further failures while tripped never re-fire.
	assert.False(t, b.Record(now.Add(6*time.Second), window, 5))
	assert.False(t, b.Record(now.Add(7*time.Second), window, 5))
}

func TestBreakerWindowExpiresOldFailures(t *testing.T) {
	b := NewBreaker()
	base := time.Now()
	window := 10 * time.Minute

	for i := 0; i < 4; i++ {
		b.Record(base.Add(time.Duration(i)*time.Second), window, 5)
	}
	// The fifth failure lands after the first four have aged out.
	assert.False(t, b.Record(base.Add(11*time.Minute), window, 5))
	assert.False(t, b.Tripped())
}

func TestBreakerReset(t *testing.T) {
	b := NewBreaker()
	now := time.Now()

	for i := 0; i < 5; i++ {
		b.Record(now, time.Hour, 5)
	}
	assert.True(t, b.Tripped())

	b.Reset()
	assert.False(t, b.Tripped())

	// After reset the full threshold applies again.
	for i := 0; i < 4; i++ {
		assert.False(t, b.Record(now, time.Hour, 5))
	}
	assert.True(t, b.Record(now, time.Hour, 5))
}
