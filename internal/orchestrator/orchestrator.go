// Package orchestrator drives the step state machine: capture, cache
// lookup, oracle consult, execute, record, synthesize, verify, repair.
package orchestrator

import (
	"context"
	"fmt"

	"pilot/internal/browser"
	"pilot/internal/cache"
	"pilot/internal/config"
	"pilot/internal/executor"
	"pilot/internal/logging"
	"pilot/internal/oracle"
	"pilot/internal/runner"
	"pilot/internal/types"
)

// Analyzer is the decision oracle consulted on cache misses.
type Analyzer interface {
	Analyze(ctx context.Context, sc types.StepContext) (types.Instruction, error)
}

// Generator is the synthesis oracle producing and repairing artifacts.
type Generator interface {
	Synthesize(ctx context.Context, meta oracle.CaseMeta, records []types.StepRecord) (types.TestArtifact, error)
	Repair(ctx context.Context, artifact types.TestArtifact, diag oracle.Diagnostics) (types.TestArtifact, error)
}

// Orchestrator runs test cases through one driver. Not safe for
// concurrent use; the pool gives each worker its own instance.
type Orchestrator struct {
	cfg       config.ExecutionConfig
	driver    browser.Driver
	cache     *cache.StepCache
	analyzer  Analyzer
	generator Generator
	runner    runner.Runner
	persister runner.Persister
}

// New wires an orchestrator from its collaborators.
func New(
	cfg config.ExecutionConfig,
	driver browser.Driver,
	stepCache *cache.StepCache,
	analyzer Analyzer,
	generator Generator,
	run runner.Runner,
	persister runner.Persister,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		driver:    driver,
		cache:     stepCache,
		analyzer:  analyzer,
		generator: generator,
		runner:    run,
		persister: persister,
	}
}

// ProcessTestCase runs the full pipeline for one test case: navigate,
// walk the steps, synthesize an artifact, verify it, repair if needed.
// Navigation failure aborts before any step is attempted. A failed step
// is recorded and the walk continues unless fail-fast is configured.
func (o *Orchestrator) ProcessTestCase(ctx context.Context, tc types.TestCase, startURL string) (types.TestExecution, error) {
	timer := logging.StartTimer(logging.CategoryOrchestrator, "process "+tc.Title)
	defer timer.Stop()

	exec := types.TestExecution{Title: tc.Title}

	if err := o.driver.Navigate(ctx, startURL); err != nil {
		logging.OrchestratorError("navigate failed for %q: %v", tc.Title, err)
		return exec, fmt.Errorf("navigate to %s: %w", startURL, err)
	}

	records, keys := o.walkSteps(ctx, tc)
	exec.Records = records

	artifact, err := o.generator.Synthesize(ctx, oracle.CaseMeta{Title: tc.Title, URL: startURL}, records)
	if err != nil {
		return exec, fmt.Errorf("synthesize %q: %w", tc.Title, err)
	}
	exec.Artifact = artifact

	return o.RunAndRepair(ctx, exec, keys)
}

// walkSteps executes the per-step state machine and returns the records
// plus the fingerprint keys touched this run, in step order. The keys
// feed cache invalidation if repair is later exhausted.
func (o *Orchestrator) walkSteps(ctx context.Context, tc types.TestCase) ([]types.StepRecord, []string) {
	stepExec := executor.New(o.driver)
	records := make([]types.StepRecord, 0, len(tc.Steps))
	keys := make([]string, 0, len(tc.Steps))
	previous := make([]types.Instruction, 0, len(tc.Steps))
	skipRemaining := false

	for _, step := range tc.Steps {
		if skipRemaining {
			records = append(records, types.StepRecord{
				StepIndex:   step.Index,
				Description: step.Description,
				Err:         "skipped: earlier step failed",
			})
			continue
		}

		rec, key := o.runStep(ctx, stepExec, tc, step, previous)
		records = append(records, rec)
		if key != "" {
			keys = append(keys, key)
		}
		if rec.Success {
			previous = append(previous, rec.Instruction)
		} else if o.cfg.FailFast {
			logging.Orchestrator("fail-fast: skipping remaining steps of %q", tc.Title)
			skipRemaining = true
		}
	}
	return records, keys
}

// runStep resolves one step to an instruction (cache or oracle) and
// executes it. The returned key is the step's fingerprint, empty when
// state capture or fingerprinting failed.
func (o *Orchestrator) runStep(ctx context.Context, stepExec *executor.Executor, tc types.TestCase, step types.Step, previous []types.Instruction) (types.StepRecord, string) {
	state, err := o.driver.CaptureState(ctx)
	if err != nil {
		logging.OrchestratorError("capture failed at step %d: %v", step.Index, err)
		return types.StepRecord{
			StepIndex:   step.Index,
			Description: step.Description,
			Err:         fmt.Sprintf("capture page state: %v", err),
		}, ""
	}

	in, key, hit := o.cache.Lookup(ctx, step.Description, state.URL, state.DOM)
	if !hit {
		in, err = o.analyzer.Analyze(ctx, types.StepContext{
			Step:       step,
			TotalSteps: len(tc.Steps),
			CaseTitle:  tc.Title,
			State:      state,
			Previous:   previous,
		})
		if err != nil {
			logging.OrchestratorError("oracle failed at step %d: %v", step.Index, err)
			return types.StepRecord{
				StepIndex:   step.Index,
				Description: step.Description,
				Err:         err.Error(),
			}, key
		}
		o.cache.Store(ctx, key, in)
	}

	return stepExec.Execute(ctx, in, step), key
}

// AnalyzeOnly plans instructions for every step without executing them.
// The page is navigated and observed, but never mutated, so later steps
// are planned against the start state.
func (o *Orchestrator) AnalyzeOnly(ctx context.Context, tc types.TestCase, startURL string) ([]types.Instruction, error) {
	if err := o.driver.Navigate(ctx, startURL); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", startURL, err)
	}

	state, err := o.driver.CaptureState(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture page state: %w", err)
	}

	plan := make([]types.Instruction, 0, len(tc.Steps))
	for _, step := range tc.Steps {
		in, key, hit := o.cache.Lookup(ctx, step.Description, state.URL, state.DOM)
		if !hit {
			in, err = o.analyzer.Analyze(ctx, types.StepContext{
				Step:       step,
				TotalSteps: len(tc.Steps),
				CaseTitle:  tc.Title,
				State:      state,
				Previous:   plan,
			})
			if err != nil {
				return plan, fmt.Errorf("analyze step %d: %w", step.Index, err)
			}
			o.cache.Store(ctx, key, in)
		}
		plan = append(plan, in)
	}
	return plan, nil
}
