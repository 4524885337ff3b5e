// Package executor applies instructions to the live page and records the
// outcome. It never retries and never masks failures; the repair loop
// owns recovery policy.
package executor

import (
	"context"
	"time"

	"pilot/internal/browser"
	"pilot/internal/logging"
	"pilot/internal/types"
)

// Executor turns instructions into step records against one driver.
type Executor struct {
	driver browser.Driver
}

// New builds an executor on the given driver.
func New(driver browser.Driver) *Executor {
	return &Executor{driver: driver}
}

// Execute applies the instruction and returns exactly one record. The
// duration covers only the action itself, not the post-state capture.
// State capture after a failed action is best-effort: its own failure is
// logged and never replaces the action's error.
func (e *Executor) Execute(ctx context.Context, in types.Instruction, step types.Step) types.StepRecord {
	rec := types.StepRecord{
		StepIndex:   step.Index,
		Description: step.Description,
		Instruction: in,
	}

	start := time.Now()
	err := e.driver.Execute(ctx, in)
	rec.Duration = time.Since(start)

	if err != nil {
		rec.Err = err.Error()
		logging.ExecutorError("step %d failed: %s %s: %v", step.Index, in.Action, in.Locator, err)
	} else {
		rec.Success = true
		logging.Executor("step %d ok: %s %s (%v)", step.Index, in.Action, in.Locator, rec.Duration)
	}

	after, capErr := e.driver.CaptureState(ctx)
	if capErr != nil {
		logging.ExecutorError("post-step capture failed for step %d: %v", step.Index, capErr)
	} else {
		rec.After = after
	}

	return rec
}
