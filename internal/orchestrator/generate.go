package orchestrator

import (
	"context"
	"fmt"

	"pilot/internal/logging"
	"pilot/internal/oracle"
	"pilot/internal/types"
)

// Generate dispatches one request to the strategy its mode selects.
func (o *Orchestrator) Generate(ctx context.Context, req types.GenerationRequest) (types.TestExecution, error) {
	tc := types.NewTestCase(req.Title, req.Steps)
	if len(tc.Steps) == 0 {
		return types.TestExecution{Title: req.Title}, fmt.Errorf("%q has no steps", req.Title)
	}

	switch mode := req.Mode.Effective(); mode {
	case types.ModeStepByStep:
		return o.ProcessTestCase(ctx, tc, req.URL)
	case types.ModeFast:
		return o.generateFast(ctx, tc, req.URL)
	default:
		return types.TestExecution{Title: req.Title}, fmt.Errorf("unknown generation mode %q", mode)
	}
}

// generateFast synthesizes the whole test from a single page snapshot,
// skipping per-step execution. Cheaper and faster, but the artifact is
// unvalidated against intermediate states, so it leans harder on the
// repair loop.
func (o *Orchestrator) generateFast(ctx context.Context, tc types.TestCase, startURL string) (types.TestExecution, error) {
	timer := logging.StartTimer(logging.CategoryOrchestrator, "fast "+tc.Title)
	defer timer.Stop()

	exec := types.TestExecution{Title: tc.Title}

	plan, err := o.AnalyzeOnly(ctx, tc, startURL)
	if err != nil {
		return exec, fmt.Errorf("plan %q: %w", tc.Title, err)
	}

	// Planned instructions become synthetic records so synthesis sees the
	// same shape as a step-by-step run.
	records := make([]types.StepRecord, 0, len(plan))
	for i, in := range plan {
		records = append(records, types.StepRecord{
			StepIndex:   tc.Steps[i].Index,
			Description: tc.Steps[i].Description,
			Instruction: in,
			Success:     true,
		})
	}
	exec.Records = records

	artifact, err := o.generator.Synthesize(ctx, oracle.CaseMeta{Title: tc.Title, URL: startURL}, records)
	if err != nil {
		return exec, fmt.Errorf("synthesize %q: %w", tc.Title, err)
	}
	exec.Artifact = artifact

	return o.RunAndRepair(ctx, exec, nil)
}
