package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManual(start)

	assert.Equal(t, start, c.Now())

	next := c.Advance(250 * time.Millisecond)
	assert.Equal(t, start.Add(250*time.Millisecond), next)
	assert.Equal(t, next, c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestSystemIsMonotonic(t *testing.T) {
	var c Clock = System{}
	a := c.Now()
	b := c.Now()
	assert.False(t, b.Before(a))
}
