// Package drift watches the wall clock for discontinuities such as NTP steps, DST changes,
// manual clock changes and suspend/resume.
package drift

import (
	"context"
	"time"

	"github.com/belphemur/athan-scheduler/internal/clock"
	"github.com/belphemur/athan-scheduler/internal/logging"
	"github.com/belphemur/athan-scheduler/internal/signals"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Monitor samples the wall clock every interval and reports a drift when the elapsed wall time
// differs from the interval by more than the threshold.
type Monitor struct {
	clock     clock.Clock
	interval  time.Duration
	threshold time.Duration
	notify    func(ctx context.Context, data signals.ClockDriftData)
	logger    zerolog.Logger

	samples  atomic.Int64
	detected atomic.Int64
	last     atomic.Time
}

// New creates a drift monitor. A non-positive threshold defaults to half the interval.
func New(clk clock.Clock, interval, threshold time.Duration) *Monitor {
	if threshold <= 0 {
		threshold = interval / 2
	}
	return &Monitor{
		clock:     clk,
		interval:  interval,
		threshold: threshold,
		notify:    signals.EmitClockDrift,
		logger:    logging.GetLogger("drift"),
	}
}

// Samples returns how many wall clock samples were compared
func (m *Monitor) Samples() int64 {
	return m.samples.Load()
}

// Detected returns how many drifts were reported
func (m *Monitor) Detected() int64 {
	return m.detected.Load()
}

// LastDrift returns when the last drift was reported, zero if none
func (m *Monitor) LastDrift() time.Time {
	return m.last.Load()
}

// Run samples until ctx is done
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	prev := m.clock.Now()
	m.logger.Info().Dur("interval", m.interval).Dur("threshold", m.threshold).Msg("Clock drift monitor started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			// Round(0) strips the monotonic reading so the wall clocks are compared
			now := m.clock.Now()
			actual := now.Round(0).Sub(prev.Round(0))
			prev = now
			m.check(ctx, actual, now)
			m.samples.Inc()
		}
	}
}

func (m *Monitor) check(ctx context.Context, actual time.Duration, now time.Time) {
	diff := actual - m.interval
	if diff < 0 {
		diff = -diff
	}
	if diff <= m.threshold {
		return
	}

	m.detected.Inc()
	m.last.Store(now)
	m.logger.Warn().
		Dur("expected", m.interval).
		Dur("actual", actual).
		Dur("drift", actual-m.interval).
		Msg("Wall clock jumped, re-arming triggers")
	m.notify(ctx, signals.ClockDriftData{
		Expected: m.interval,
		Actual:   actual,
		At:       now,
	})
}
