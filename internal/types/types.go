// Package types holds the shared domain model for UI test generation.
// Everything here is plain data: the orchestrator, cache, and oracles
// exchange these values but never mutate them after construction.
package types

import (
	"fmt"
	"time"
)

// Step is one natural-language action inside a test case.
// Index is 1-based and defines execution order.
type Step struct {
	Index       int    `json:"index" yaml:"index"`
	Description string `json:"description" yaml:"description"`
}

// TestCase is an ordered list of natural-language steps with a title.
type TestCase struct {
	Title string `json:"title" yaml:"title"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// NewTestCase builds a TestCase from raw step descriptions, assigning
// 1-based indices in input order.
func NewTestCase(title string, steps []string) TestCase {
	tc := TestCase{Title: title, Steps: make([]Step, 0, len(steps))}
	for i, s := range steps {
		tc.Steps = append(tc.Steps, Step{Index: i + 1, Description: s})
	}
	return tc
}

// PageState is the browser state observed at one moment: pruned DOM
// snapshot, screenshot bytes, and the current URL. All three fields are
// captured together.
type PageState struct {
	DOM        string    `json:"dom"`
	Screenshot []byte    `json:"-"`
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"captured_at"`
}

// ActionType is the closed set of browser actions an instruction may name.
type ActionType string

const (
	ActionClick         ActionType = "click"
	ActionDoubleClick   ActionType = "double_click"
	ActionFill          ActionType = "fill"
	ActionType_         ActionType = "type"
	ActionNavigate      ActionType = "navigate"
	ActionWait          ActionType = "wait"
	ActionWaitTime      ActionType = "wait_time"
	ActionHover         ActionType = "hover"
	ActionSelect        ActionType = "select"
	ActionPress         ActionType = "press"
	ActionAssertText    ActionType = "assert_text"
	ActionAssertVisible ActionType = "assert_visible"
	ActionAssertURL     ActionType = "assert_url"
	ActionScroll        ActionType = "scroll"
	ActionClear         ActionType = "clear"
	ActionCheck         ActionType = "check"
	ActionUncheck       ActionType = "uncheck"
	ActionFocus         ActionType = "focus"
	ActionScreenshot    ActionType = "screenshot"
)

// actionTraits records which instruction fields each action kind requires.
var actionTraits = map[ActionType]struct {
	needsLocator bool
	needsValue   bool
}{
	ActionClick:         {needsLocator: true},
	ActionDoubleClick:   {needsLocator: true},
	ActionFill:          {needsLocator: true, needsValue: true},
	ActionType_:         {needsLocator: true, needsValue: true},
	ActionNavigate:      {needsValue: true},
	ActionWait:          {needsLocator: true},
	ActionWaitTime:      {needsValue: true},
	ActionHover:         {needsLocator: true},
	ActionSelect:        {needsLocator: true, needsValue: true},
	ActionPress:         {needsValue: true},
	ActionAssertText:    {needsLocator: true, needsValue: true},
	ActionAssertVisible: {needsLocator: true},
	ActionAssertURL:     {needsValue: true},
	ActionScroll:        {needsLocator: true},
	ActionClear:         {needsLocator: true},
	ActionCheck:         {needsLocator: true},
	ActionUncheck:       {needsLocator: true},
	ActionFocus:         {needsLocator: true},
	ActionScreenshot:    {},
}

// KnownAction reports whether s names an action in the closed enumeration.
func KnownAction(s string) (ActionType, bool) {
	a := ActionType(s)
	_, ok := actionTraits[a]
	return a, ok
}

// Instruction is one concrete, executable browser action. Locator and
// Value are optional depending on the action kind; Validate enforces the
// combination rules.
type Instruction struct {
	Action      ActionType `json:"action"`
	Locator     string     `json:"locator,omitempty"`
	Value       string     `json:"value,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Validate checks the action kind against the closed enumeration and the
// locator/value requirements for that kind.
func (in Instruction) Validate() error {
	traits, ok := actionTraits[in.Action]
	if !ok {
		return fmt.Errorf("unknown action kind %q", in.Action)
	}
	if traits.needsLocator && in.Locator == "" {
		return fmt.Errorf("action %q requires a locator", in.Action)
	}
	if traits.needsValue && in.Value == "" {
		return fmt.Errorf("action %q requires a value", in.Action)
	}
	return nil
}

// StepRecord is the immutable outcome of attempting one step. Exactly one
// record exists per attempted step, appended in step order.
type StepRecord struct {
	StepIndex   int           `json:"step_index"`
	Description string        `json:"description"`
	Instruction Instruction   `json:"instruction"`
	Success     bool          `json:"success"`
	After       PageState     `json:"after"`
	Err         string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// StepContext carries everything the decision oracle needs to turn one
// step into an instruction: the step, its position, the observed page
// state, and the instructions already executed this run.
type StepContext struct {
	Step       Step
	TotalSteps int
	CaseTitle  string
	State      PageState
	Previous   []Instruction
}

// TestArtifact is the synthesized test program source. Opaque to the
// orchestrator besides pass/fail verification.
type TestArtifact struct {
	Source string `json:"source"`
}

// RunResult is the outcome of compiling and running an artifact. On
// failure the diagnostic fields are populated best-effort; absence of a
// screenshot or trace never blocks the repair loop.
type RunResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	StackTrace string `json:"stack_trace,omitempty"`
	Screenshot []byte `json:"-"`
	TracePath  string `json:"trace_path,omitempty"`
}

// GenerationMode selects the generation strategy.
type GenerationMode string

const (
	ModeStepByStep GenerationMode = "step-by-step"
	ModeFast       GenerationMode = "fast"
	ModeAuto       GenerationMode = "auto"
)

// Effective resolves ModeAuto to the step-by-step strategy.
func (m GenerationMode) Effective() GenerationMode {
	if m == "" || m == ModeAuto {
		return ModeStepByStep
	}
	return m
}

// GenerationRequest is one unit of work for the pool: a test case, a
// target URL, and a strategy.
type GenerationRequest struct {
	Title string         `json:"title" yaml:"title"`
	Steps []string       `json:"steps" yaml:"steps"`
	URL   string         `json:"url" yaml:"url"`
	Mode  GenerationMode `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// TestExecution is the terminal result of one test-case run.
type TestExecution struct {
	Title    string       `json:"title"`
	Artifact TestArtifact `json:"artifact"`
	Result   RunResult    `json:"result"`
	Records  []StepRecord `json:"records,omitempty"`
	SavedTo  string       `json:"saved_to,omitempty"`
}
