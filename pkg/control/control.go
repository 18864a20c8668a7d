// Package control holds the closed-loop controller that trades image
// fidelity against rectangle volume to keep a pipeline near its target
// frame rate.
package control

import (
	"time"
)

// Config tunes the adaptive threshold controller.
type Config struct {
	// Min and Max bound the diff threshold. The current threshold is
	// clamped into [Min, Max] at every update.
	Min int
	Max int

	// StepUp is added to the threshold when the pipeline falls behind;
	// StepDown is subtracted when it runs ahead. Falling behind is
	// penalized faster, so StepUp is typically the larger of the two.
	StepUp   int
	StepDown int

	// TargetFPS is the frame rate the controller steers toward.
	TargetFPS float64

	// Hysteresis is the relative dead band around TargetFPS within which
	// the threshold is left alone.
	Hysteresis float64

	// HistorySize is the number of per-frame processing durations the
	// measured rate is averaged over. No adjustments happen until the
	// history is full.
	HistorySize int
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		Min:         5,
		Max:         220,
		StepUp:      10,
		StepDown:    5,
		TargetFPS:   15,
		Hysteresis:  0.1,
		HistorySize: 10,
	}
}

// Controller adapts the diff threshold from observed frame processing
// durations. One controller exists per pipeline, owned by its consumer
// goroutine; it is not safe for concurrent use.
type Controller struct {
	cfg     Config
	current int

	history []time.Duration
	next    int
	count   int
	sum     time.Duration
	fps     float64
}

// New creates a controller starting at the minimum threshold (maximum
// fidelity), matching the fresh-session state.
func New(cfg Config) *Controller {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultConfig().HistorySize
	}
	if cfg.Max < cfg.Min {
		cfg.Max = cfg.Min
	}
	return &Controller{
		cfg:     cfg,
		current: cfg.Min,
		history: make([]time.Duration, cfg.HistorySize),
	}
}

// Threshold returns the current diff threshold.
func (c *Controller) Threshold() int {
	return c.current
}

// MeasuredFPS returns the rate computed from the last full history window,
// or 0 before the window fills.
func (c *Controller) MeasuredFPS() float64 {
	return c.fps
}

// Reset clears the history and returns the threshold to the minimum, as at
// the start of a client session.
func (c *Controller) Reset() {
	c.next = 0
	c.count = 0
	c.sum = 0
	c.fps = 0
	c.current = c.cfg.Min
}

// Observe records one frame's total processing duration and, once the
// history window is full, nudges the threshold toward the target rate:
// below the dead band the threshold rises (less data, faster frames),
// above it the threshold falls (more fidelity).
func (c *Controller) Observe(d time.Duration) {
	if c.count == len(c.history) {
		c.sum -= c.history[c.next]
	} else {
		c.count++
	}
	c.history[c.next] = d
	c.sum += d
	c.next = (c.next + 1) % len(c.history)

	if c.count < len(c.history) || c.sum <= 0 {
		return
	}
	c.fps = float64(c.count) / c.sum.Seconds()

	switch {
	case c.fps < c.cfg.TargetFPS*(1-c.cfg.Hysteresis):
		c.current = min(c.cfg.Max, c.current+c.cfg.StepUp)
	case c.fps > c.cfg.TargetFPS*(1+c.cfg.Hysteresis):
		c.current = max(c.cfg.Min, c.current-c.cfg.StepDown)
	}
}
