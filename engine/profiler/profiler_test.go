package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickLogsOncePerInterval(t *testing.T) {
	p := NewProfiler()
	p.updateInterval = time.Hour

	assert.False(t, p.Tick(2*time.Millisecond))
	assert.False(t, p.Tick(5*time.Millisecond))
	assert.Equal(t, 2, p.Frames())
	assert.Equal(t, 5*time.Millisecond, p.slowest)

	p.lastTime = time.Now().Add(-2 * time.Hour)
	assert.True(t, p.Tick(time.Millisecond))
	assert.Equal(t, 0, p.Frames())
	assert.Zero(t, p.slowest)
	assert.Zero(t, p.busy)
}
