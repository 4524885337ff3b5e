package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"pilot/internal/logging"
	"pilot/internal/oracle"
	"pilot/internal/types"
)

// ErrMaxRepairsExceeded marks a test case whose artifact still failed
// after the full repair budget.
var ErrMaxRepairsExceeded = errors.New("max repair attempts exceeded")

// RunAndRepair verifies the execution's artifact and, on failure, runs
// the bounded repair loop. Runner infrastructure errors spend the budget
// like test failures do. When the budget runs out, every fingerprint
// recorded this run is invalidated so the next run re-derives decisions
// from scratch.
func (o *Orchestrator) RunAndRepair(ctx context.Context, exec types.TestExecution, keys []string) (types.TestExecution, error) {
	attempts := o.cfg.MaxRepairAttempts

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := o.runner.Run(ctx, exec.Artifact)
		if err != nil {
			logging.RepairWarn("attempt %d/%d: runner error: %v", attempt, attempts, err)
			result = types.RunResult{Success: false, Message: err.Error()}
		}
		exec.Result = result

		if result.Success {
			if attempt > 1 {
				logging.Repair("%q repaired on attempt %d", exec.Title, attempt)
			}
			path, perr := o.persister.Persist(exec.Title, exec.Artifact)
			if perr != nil {
				return exec, fmt.Errorf("persist %q: %w", exec.Title, perr)
			}
			exec.SavedTo = path
			return exec, nil
		}

		if attempt == attempts {
			break
		}

		logging.Repair("attempt %d/%d failed for %q: %s", attempt, attempts, exec.Title, result.Message)
		repaired, rerr := o.generator.Repair(ctx, exec.Artifact, o.diagnostics(ctx, result))
		if rerr != nil {
			logging.RepairWarn("repair oracle failed: %v", rerr)
			continue
		}
		exec.Artifact = repaired
	}

	logging.RepairWarn("%q failed after %d attempts, invalidating %d cached decisions",
		exec.Title, attempts, len(keys))
	o.cache.Invalidate(ctx, keys)
	return exec, fmt.Errorf("%q: %w after %d attempts: %s",
		exec.Title, ErrMaxRepairsExceeded, attempts, exec.Result.Message)
}

// diagnostics assembles the repair evidence: runner output plus a fresh
// full-fidelity snapshot of the live page. Snapshot failures degrade to
// output-only diagnostics.
func (o *Orchestrator) diagnostics(ctx context.Context, result types.RunResult) oracle.Diagnostics {
	diag := oracle.Diagnostics{
		Message:    result.Message,
		StackTrace: result.StackTrace,
		Screenshot: result.Screenshot,
		TracePath:  result.TracePath,
	}

	if dom, err := o.driver.FullSnapshot(ctx); err != nil {
		logging.RepairWarn("full snapshot for diagnostics failed: %v", err)
	} else {
		diag.DOM = dom
	}
	if state, err := o.driver.CaptureState(ctx); err == nil {
		diag.URL = state.URL
		if len(diag.Screenshot) == 0 {
			diag.Screenshot = state.Screenshot
		}
	}
	return diag
}
