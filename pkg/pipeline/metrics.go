package pipeline

import (
	"sync"
	"time"
)

// Metrics is a snapshot of pipeline activity across all sessions.
type Metrics struct {
	// Counts
	FramesProcessed int64 // frames accepted into processing
	Exchanges       int64 // completed reply exchanges
	StageFailures   int64 // sessions terminated by a stage error
	Timeouts        int64 // sessions closed by idle timeout

	// Cumulative stage time, for averaging
	TranscribeTime time.Duration
	GenerateTime   time.Duration
	SynthesizeTime time.Duration
}

// AverageExchangeLatency returns the mean transcribe+generate+synthesize
// time per completed exchange.
func (m Metrics) AverageExchangeLatency() time.Duration {
	if m.Exchanges == 0 {
		return 0
	}
	total := m.TranscribeTime + m.GenerateTime + m.SynthesizeTime
	return total / time.Duration(m.Exchanges)
}

// Collector aggregates pipeline metrics. It is goroutine-safe and shared by
// all concurrent session runs.
type Collector struct {
	mu      sync.Mutex
	current Metrics
}

// NewCollector creates an empty metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) frameProcessed() {
	c.mu.Lock()
	c.current.FramesProcessed++
	c.mu.Unlock()
}

func (c *Collector) exchangeDone(transcribe, generate, synthesize time.Duration) {
	c.mu.Lock()
	c.current.Exchanges++
	c.current.TranscribeTime += transcribe
	c.current.GenerateTime += generate
	c.current.SynthesizeTime += synthesize
	c.mu.Unlock()
}

func (c *Collector) stageFailed() {
	c.mu.Lock()
	c.current.StageFailures++
	c.mu.Unlock()
}

func (c *Collector) timedOut() {
	c.mu.Lock()
	c.current.Timeouts++
	c.mu.Unlock()
}

// Snapshot returns a copy of the current metrics.
func (c *Collector) Snapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
