// Package engine provides the region world orchestrator and the cycle loop that drives it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/regionsim/internal/world"
)

// Runner drives a World forward one cycle at a time.
type Runner struct {
	World       *World
	Cycles      int           // Cycles to run; 0 runs until the context is cancelled
	ReportEvery int           // Cycles between OnReport calls; 0 disables reports
	Interval    time.Duration // Minimum wall time per cycle; 0 runs flat out

	// StepFunc advances the world by one cycle. Defaults to stepping with no decisions.
	StepFunc func(w *World) CycleLog
	// OnCycle runs after every cycle. A non-nil error stops the run.
	OnCycle func(log CycleLog) error
	// OnReport runs every ReportEvery cycles and once more at the end.
	OnReport func(s Summary)
}

// NewRunner creates a runner for w with default settings.
func NewRunner(w *World, cycles int) *Runner {
	return &Runner{
		World:  w,
		Cycles: cycles,
		StepFunc: func(w *World) CycleLog {
			return w.Step(map[string]world.Action{})
		},
	}
}

// Run steps the world until the cycle budget is spent, a callback fails, or ctx
// is cancelled. Cancellation is only observed between cycles, so the world is
// always left at a cycle boundary.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("simulation started", "seed", r.World.Seed, "cycle", r.World.Cycle, "cycles", r.Cycles)
	start := r.World.Cycle
	reported := -1

	for r.Cycles == 0 || r.World.Cycle-start < r.Cycles {
		if err := ctx.Err(); err != nil {
			slog.Info("simulation stopped", "cycle", r.World.Cycle, "reason", err)
			r.report()
			return err
		}

		began := time.Now()
		log := r.StepFunc(r.World)

		if r.OnCycle != nil {
			if err := r.OnCycle(log); err != nil {
				return fmt.Errorf("cycle %d: %w", log.Cycle, err)
			}
		}
		if r.ReportEvery > 0 && log.Cycle%r.ReportEvery == 0 {
			r.report()
			reported = log.Cycle
		}

		if r.Interval > 0 {
			if wait := r.Interval - time.Since(began); wait > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(wait):
				}
			}
		}
	}

	slog.Info("simulation finished", "cycle", r.World.Cycle)
	if reported != r.World.Cycle {
		r.report()
	}
	return nil
}

func (r *Runner) report() {
	if r.OnReport != nil {
		r.OnReport(r.World.Summary())
	}
}

// Report logs a summary the way the run loop reports progress.
func Report(s Summary) {
	slog.Info("cycle report",
		"cycle", s.Cycle,
		"alive", len(s.AliveRegions),
		"collapsed", len(s.CollapsedRegions),
		"population", fmt.Sprintf("%.1f", s.TotalPopulation),
		"trades", s.TotalTrades,
		"events", s.TotalEvents,
		"stress", fmt.Sprintf("%.4f", s.ClimateStress),
	)
}
