package system

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

// minTickDelay is the floor for the adaptive delay between two ticks.
const minTickDelay = time.Millisecond

// timingLogInterval is how often Run logs per-phase timings at debug level.
const timingLogInterval = 250

// Runner executes systems in phase order each tick.
type Runner struct {
	systems []System
	sorted  bool
	ticks   uint64
	timings map[Phase]time.Duration
	log     *zap.Logger
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
		timings: make(map[Phase]time.Duration, 16),
		log:     log,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick advances the simulation by one tick. Systems of the same phase run
// in registration order.
func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for k := range r.timings {
		delete(r.timings, k)
	}
	for _, s := range r.systems {
		start := time.Now()
		s.Update(dt)
		r.timings[s.Phase()] += time.Since(start)
	}
	r.ticks++
}

// TickPhase runs only the systems registered for phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

// Ticks returns the number of completed ticks.
func (r *Runner) Ticks() uint64 { return r.ticks }

// Timing returns how long phase took during the last tick.
func (r *Runner) Timing(phase Phase) time.Duration { return r.timings[phase] }

// Run ticks at roughly rate until ctx is done. When adaptive is set the
// delay before the next tick shrinks by the time the last tick took, so a
// slow tick does not push the whole schedule back.
func (r *Runner) Run(ctx context.Context, rate time.Duration, adaptive bool) {
	timer := time.NewTimer(rate)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		start := time.Now()
		r.Tick(rate)
		elapsed := time.Since(start)
		if elapsed > rate {
			r.log.Debug("tick overran budget",
				zap.Uint64("tick", r.ticks),
				zap.Duration("elapsed", elapsed),
				zap.Duration("budget", rate),
			)
		}
		if r.ticks%timingLogInterval == 0 && r.log.Core().Enabled(zap.DebugLevel) {
			r.logTimings()
		}
		delay := rate
		if adaptive {
			delay = NextDelay(rate, elapsed)
		}
		timer.Reset(delay)
	}
}

// NextDelay returns the wait before the next tick given the duration of the
// previous one.
func NextDelay(rate, elapsed time.Duration) time.Duration {
	d := rate - elapsed
	if d < minTickDelay {
		return minTickDelay
	}
	return d
}

func (r *Runner) logTimings() {
	fields := make([]zap.Field, 0, len(r.timings)+1)
	fields = append(fields, zap.Uint64("tick", r.ticks))
	for p := PhaseNotify; p <= PhasePersist; p++ {
		if d, ok := r.timings[p]; ok {
			fields = append(fields, zap.Duration(p.String(), d))
		}
	}
	r.log.Debug("phase timings", fields...)
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
