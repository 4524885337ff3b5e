package oracle

import (
	"context"
	"fmt"
	"strings"

	"pilot/internal/logging"
	"pilot/internal/types"
)

const generatorSystemPrompt = `You are a senior test automation engineer. You write complete,
self-contained Go test files driving a browser through the go-rod
library. Output only the Go source code, no commentary and no markdown
fences. The file must:
  - declare package generated
  - contain exactly one test function named TestGenerated
  - launch its own headless browser and close it with defer
  - fail via t.Fatalf with a message naming the step that failed`

// CaseMeta describes the test case being synthesized.
type CaseMeta struct {
	Title string
	URL   string
}

// Diagnostics is the failure evidence handed to Repair: the runner
// output plus whatever page state could still be captured. Any field may
// be empty; repair works with what it gets.
type Diagnostics struct {
	Message    string
	StackTrace string
	DOM        string
	URL        string
	Screenshot []byte
	TracePath  string
}

// CodeGenerator is the synthesis oracle: it turns a recorded instruction
// trail into a runnable test artifact, and rewrites failing artifacts
// from runtime evidence.
type CodeGenerator struct {
	client Client
}

// NewCodeGenerator builds a generator on the given completion client.
func NewCodeGenerator(client Client) *CodeGenerator {
	return &CodeGenerator{client: client}
}

// Synthesize produces a test artifact from the per-step records. Failed
// steps are included as annotations so the artifact documents the gap
// instead of silently skipping it.
func (g *CodeGenerator) Synthesize(ctx context.Context, meta CaseMeta, records []types.StepRecord) (types.TestArtifact, error) {
	timer := logging.StartTimer(logging.CategoryOracle, "synthesize")
	defer timer.Stop()

	var b strings.Builder
	fmt.Fprintf(&b, "Test case: %s\n", meta.Title)
	fmt.Fprintf(&b, "Target URL: %s\n\n", meta.URL)
	b.WriteString("Recorded steps, in execution order:\n")
	for _, r := range records {
		if r.Success {
			fmt.Fprintf(&b, "  %d. [ok]   %s -> %s locator=%q value=%q\n",
				r.StepIndex, r.Description, r.Instruction.Action, r.Instruction.Locator, r.Instruction.Value)
		} else {
			fmt.Fprintf(&b, "  %d. [FAIL] %s (error: %s)\n", r.StepIndex, r.Description, r.Err)
		}
	}
	b.WriteString("\nWrite the complete Go test file reproducing the successful steps.\n")
	b.WriteString("For each failed step add a comment at the matching point noting the\n")
	b.WriteString("step description and that it could not be automated.")

	source, err := g.client.CompleteWithSystem(ctx, generatorSystemPrompt, b.String())
	if err != nil {
		return types.TestArtifact{}, fmt.Errorf("synthesize test: %w", err)
	}

	source = stripFences(source)
	if strings.TrimSpace(source) == "" {
		return types.TestArtifact{}, fmt.Errorf("synthesize test: empty artifact")
	}
	logging.Oracle("synthesized artifact (%d bytes)", len(source))
	return types.TestArtifact{Source: source}, nil
}

// Repair rewrites a failing artifact using runtime evidence from the
// failed verification run.
func (g *CodeGenerator) Repair(ctx context.Context, artifact types.TestArtifact, diag Diagnostics) (types.TestArtifact, error) {
	timer := logging.StartTimer(logging.CategoryOracle, "repair")
	defer timer.Stop()

	var b strings.Builder
	b.WriteString("The following generated test failed when executed.\n\n")
	b.WriteString("Failure message:\n")
	b.WriteString(diag.Message)
	b.WriteString("\n")
	if diag.StackTrace != "" {
		b.WriteString("\nOutput:\n")
		b.WriteString(diag.StackTrace)
		b.WriteString("\n")
	}
	if diag.URL != "" {
		fmt.Fprintf(&b, "\nPage URL at failure: %s\n", diag.URL)
	}
	if diag.TracePath != "" {
		fmt.Fprintf(&b, "\nExecution trace saved at: %s\n", diag.TracePath)
	}
	if len(diag.Screenshot) > 0 {
		fmt.Fprintf(&b, "\nA failure screenshot was captured (%d bytes, not inlined).\n", len(diag.Screenshot))
	}
	if diag.DOM != "" {
		b.WriteString("\nPage HTML at failure:\n")
		b.WriteString(diag.DOM)
		b.WriteString("\n")
	}
	b.WriteString("\nCurrent test source:\n")
	b.WriteString(artifact.Source)
	b.WriteString("\n\nFix the test so it passes against the real page. Keep the same\n")
	b.WriteString("package and test function name. Output the complete corrected file.")

	source, err := g.client.CompleteWithSystem(ctx, generatorSystemPrompt, b.String())
	if err != nil {
		return types.TestArtifact{}, fmt.Errorf("repair test: %w", err)
	}

	source = stripFences(source)
	if strings.TrimSpace(source) == "" {
		return types.TestArtifact{}, fmt.Errorf("repair test: empty artifact")
	}
	logging.Oracle("repaired artifact (%d bytes)", len(source))
	return types.TestArtifact{Source: source}, nil
}
