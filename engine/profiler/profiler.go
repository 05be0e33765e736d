package profiler

import (
	"fmt"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	busy           time.Duration // summed frame work time of the interval
	slowest        time.Duration
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		frameCount:     0,
		lastTime:       time.Now(),
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
	}
}

// Frames returns the frames counted since stats were last logged.
//
// Returns:
//   - int: the frame count of the current interval
func (p *Profiler) Frames() int {
	return p.frameCount
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, mean and slowest frame work time, heap usage,
// allocation rate, GC count/pause times, total memory.
//
// Parameters:
//   - frameTime: the time spent updating and rendering the frame, excluding frame limiting
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(frameTime time.Duration) bool {
	p.frameCount++
	p.busy += frameTime
	p.slowest = max(p.slowest, frameTime)
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed >= p.updateInterval {
		fps := float64(p.frameCount) / elapsed.Seconds()

		runtime.ReadMemStats(&p.memStats)
		// Alloc: Bytes of allocated heap objects (live memory)
		// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
		// Sys: Total bytes of memory obtained from the OS (actual process footprint)
		allocMB := float64(p.memStats.Alloc) / 1024 / 1024
		sysMB := float64(p.memStats.Sys) / 1024 / 1024

		// Calculate allocation rate (MB/sec)
		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

		// Calculate GC pause stats (last pause and max recent pause)
		gcCount := p.memStats.NumGC
		var lastPauseUs, maxPauseUs uint64
		if gcCount > 0 {
			// PauseNs is a circular buffer of last 256 GC pauses
			lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

			// Find max pause since last tick
			startIdx := p.lastGCCount
			if gcCount-startIdx > 256 {
				startIdx = gcCount - 256
			}
			for i := startIdx; i < gcCount; i++ {
				pause := p.memStats.PauseNs[i%256] / 1000
				if pause > maxPauseUs {
					maxPauseUs = pause
				}
			}
		}

		log.WithFields(log.Fields{
			"component":     "profiler",
			"fps":           fmt.Sprintf("%.2f", fps),
			"frame_mean":    p.busy / time.Duration(p.frameCount),
			"frame_max":     p.slowest,
			"heap_mb":       fmt.Sprintf("%.2f", allocMB),
			"alloc_rate_mb": fmt.Sprintf("%.2f", allocRateMB),
			"gc":            gcCount,
			"gc_last_us":    lastPauseUs,
			"gc_max_us":     maxPauseUs,
			"sys_mb":        fmt.Sprintf("%.2f", sysMB),
		}).Info("frame stats")

		p.frameCount = 0
		p.busy = 0
		p.slowest = 0
		p.lastTime = currentTime
		p.lastGCCount = gcCount
		p.lastTotalAlloc = p.memStats.TotalAlloc
		return true
	}

	return false
}
