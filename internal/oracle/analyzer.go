package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pilot/internal/logging"
	"pilot/internal/types"
)

const analyzerSystemPrompt = `You are a UI test automation expert. You translate one natural-language
test step into exactly one browser instruction, grounded in the page
snapshot you are given.

Respond with a single JSON object and nothing else:
{"action": "<kind>", "locator": "<css selector>", "value": "<text>", "description": "<short summary>"}

Allowed action kinds:
  click, double_click, fill, type, navigate, wait, wait_time, hover,
  select, press, assert_text, assert_visible, assert_url, scroll,
  clear, check, uncheck, focus, screenshot

Locator rules, in order of preference:
  1. id attribute (#login-button)
  2. data-testid or similar test attributes ([data-testid="submit"])
  3. name attribute ([name="email"])
  4. unambiguous CSS path (form.signup > button[type="submit"])
Never invent locators: only reference elements present in the snapshot.

Field rules:
  - fill/type/select/assert_text need both locator and value
  - navigate/assert_url/press/wait_time need only value
  - screenshot needs neither
  - wait_time value is milliseconds`

// StepAnalyzer is the decision oracle: one step plus observed page state
// in, one executable instruction out.
type StepAnalyzer struct {
	client Client
}

// NewStepAnalyzer builds an analyzer on the given completion client.
func NewStepAnalyzer(client Client) *StepAnalyzer {
	return &StepAnalyzer{client: client}
}

// Analyze asks the model for the instruction realizing the step. The
// response must parse as a valid instruction; anything else is an error
// and the step fails without touching the page.
func (a *StepAnalyzer) Analyze(ctx context.Context, sc types.StepContext) (types.Instruction, error) {
	timer := logging.StartTimer(logging.CategoryOracle, fmt.Sprintf("analyze step %d", sc.Step.Index))
	defer timer.Stop()

	prompt := a.buildPrompt(sc)
	raw, err := a.client.CompleteWithSystem(ctx, analyzerSystemPrompt, prompt)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("analyze step %d: %w", sc.Step.Index, err)
	}

	in, err := ParseInstruction(raw)
	if err != nil {
		logging.OracleError("unparseable response for step %d: %v", sc.Step.Index, err)
		return types.Instruction{}, fmt.Errorf("parse instruction for step %d: %w", sc.Step.Index, err)
	}

	logging.Oracle("step %d -> %s %s", sc.Step.Index, in.Action, in.Locator)
	return in, nil
}

func (a *StepAnalyzer) buildPrompt(sc types.StepContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Test case: %s\n", sc.CaseTitle)
	fmt.Fprintf(&b, "Step %d of %d: %s\n\n", sc.Step.Index, sc.TotalSteps, sc.Step.Description)
	fmt.Fprintf(&b, "Current URL: %s\n\n", sc.State.URL)

	if len(sc.Previous) > 0 {
		b.WriteString("Actions already executed this run:\n")
		for i, prev := range sc.Previous {
			fmt.Fprintf(&b, "  %d. %s %s %s\n", i+1, prev.Action, prev.Locator, prev.Value)
		}
		b.WriteString("\n")
	}

	b.WriteString("Page snapshot:\n")
	b.WriteString(sc.State.DOM)
	b.WriteString("\n\nReturn the JSON instruction for this step.")

	return b.String()
}

// ParseInstruction decodes a model response into a validated instruction.
// Markdown code fences around the JSON are tolerated; everything else
// about the contract is strict.
func ParseInstruction(raw string) (types.Instruction, error) {
	cleaned := stripFences(raw)

	var in types.Instruction
	if err := json.Unmarshal([]byte(cleaned), &in); err != nil {
		return types.Instruction{}, fmt.Errorf("decode json: %w", err)
	}
	if _, ok := types.KnownAction(string(in.Action)); !ok {
		return types.Instruction{}, fmt.Errorf("unknown action kind %q", in.Action)
	}
	if err := in.Validate(); err != nil {
		return types.Instruction{}, err
	}
	return in, nil
}

// stripFences removes a surrounding markdown code fence, if present. The
// opening fence line is dropped whole, so language tags like "```json"
// or "```go" are handled uniformly.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
