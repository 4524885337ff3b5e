package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestCaseIndexesSteps(t *testing.T) {
	tc := NewTestCase("login works", []string{"open the page", "click login"})

	require.Len(t, tc.Steps, 2)
	assert.Equal(t, 1, tc.Steps[0].Index)
	assert.Equal(t, "open the page", tc.Steps[0].Description)
	assert.Equal(t, 2, tc.Steps[1].Index)
}

func TestInstructionValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      Instruction
		wantErr string
	}{
		{"click with locator", Instruction{Action: ActionClick, Locator: "#btn"}, ""},
		{"click without locator", Instruction{Action: ActionClick}, "requires a locator"},
		{"fill complete", Instruction{Action: ActionFill, Locator: "#email", Value: "a@b.c"}, ""},
		{"fill without value", Instruction{Action: ActionFill, Locator: "#email"}, "requires a value"},
		{"navigate with value", Instruction{Action: ActionNavigate, Value: "https://example.com"}, ""},
		{"navigate without value", Instruction{Action: ActionNavigate}, "requires a value"},
		{"press with value", Instruction{Action: ActionPress, Value: "enter"}, ""},
		{"screenshot bare", Instruction{Action: ActionScreenshot}, ""},
		{"assert_text complete", Instruction{Action: ActionAssertText, Locator: "h1", Value: "Welcome"}, ""},
		{"unknown kind", Instruction{Action: "drag", Locator: "#x"}, "unknown action kind"},
		{"empty kind", Instruction{}, "unknown action kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestKnownAction(t *testing.T) {
	for _, s := range []string{
		"click", "double_click", "fill", "type", "navigate", "wait",
		"wait_time", "hover", "select", "press", "assert_text",
		"assert_visible", "assert_url", "scroll", "clear", "check",
		"uncheck", "focus", "screenshot",
	} {
		_, ok := KnownAction(s)
		assert.True(t, ok, "expected %q to be known", s)
	}

	_, ok := KnownAction("drag")
	assert.False(t, ok)
}

func TestGenerationModeEffective(t *testing.T) {
	assert.Equal(t, ModeStepByStep, GenerationMode("").Effective())
	assert.Equal(t, ModeStepByStep, ModeAuto.Effective())
	assert.Equal(t, ModeStepByStep, ModeStepByStep.Effective())
	assert.Equal(t, ModeFast, ModeFast.Effective())
}
