package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/internal/types"
)

// scriptedClient returns canned responses in order.
type scriptedClient struct {
	responses []string
	err       error
	prompts   []string
	systems   []string
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *scriptedClient) CompleteWithSystem(_ context.Context, system, prompt string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.systems = append(c.systems, system)
	c.prompts = append(c.prompts, prompt)
	resp := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return resp, nil
}

func TestParseInstruction(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    types.Instruction
		wantErr string
	}{
		{
			name: "plain json",
			raw:  `{"action":"click","locator":"#login","description":"click login"}`,
			want: types.Instruction{Action: types.ActionClick, Locator: "#login", Description: "click login"},
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"action\":\"fill\",\"locator\":\"#email\",\"value\":\"a@b.c\"}\n```",
			want: types.Instruction{Action: types.ActionFill, Locator: "#email", Value: "a@b.c"},
		},
		{
			name: "bare fence",
			raw:  "```\n{\"action\":\"screenshot\"}\n```",
			want: types.Instruction{Action: types.ActionScreenshot},
		},
		{
			name:    "unknown action",
			raw:     `{"action":"drag","locator":"#x"}`,
			wantErr: "unknown action kind",
		},
		{
			name:    "missing locator",
			raw:     `{"action":"click"}`,
			wantErr: "requires a locator",
		},
		{
			name:    "not json",
			raw:     "I would click the login button",
			wantErr: "decode json",
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: "decode json",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInstruction(tt.raw)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyzeBuildsGroundedPrompt(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"action":"click","locator":"#login"}`}}
	analyzer := NewStepAnalyzer(client)

	in, err := analyzer.Analyze(context.Background(), types.StepContext{
		Step:       types.Step{Index: 2, Description: "click the login button"},
		TotalSteps: 3,
		CaseTitle:  "login works",
		State: types.PageState{
			DOM: `{"tag":"BUTTON","attrs":{"id":"login"}}`,
			URL: "https://example.com/login",
		},
		Previous: []types.Instruction{
			{Action: types.ActionFill, Locator: "#email", Value: "a@b.c"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, types.ActionClick, in.Action)

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Contains(t, prompt, "Step 2 of 3")
	assert.Contains(t, prompt, "click the login button")
	assert.Contains(t, prompt, "https://example.com/login")
	assert.Contains(t, prompt, `"id":"login"`)
	assert.Contains(t, prompt, "fill #email")
	assert.Contains(t, client.systems[0], "single JSON object")
}

func TestAnalyzeClientError(t *testing.T) {
	analyzer := NewStepAnalyzer(&scriptedClient{err: errors.New("rate limited")})

	_, err := analyzer.Analyze(context.Background(), types.StepContext{
		Step: types.Step{Index: 1, Description: "click"},
	})
	assert.ErrorContains(t, err, "rate limited")
}

func TestAnalyzeUnparseableResponse(t *testing.T) {
	analyzer := NewStepAnalyzer(&scriptedClient{responses: []string{"sure, I would click it"}})

	_, err := analyzer.Analyze(context.Background(), types.StepContext{
		Step: types.Step{Index: 1, Description: "click"},
	})
	assert.ErrorContains(t, err, "parse instruction")
}

func TestSynthesizeIncludesFailedSteps(t *testing.T) {
	client := &scriptedClient{responses: []string{"package generated\n\nfunc TestGenerated(t *testing.T) {}\n"}}
	gen := NewCodeGenerator(client)

	artifact, err := gen.Synthesize(context.Background(),
		CaseMeta{Title: "login works", URL: "https://example.com"},
		[]types.StepRecord{
			{StepIndex: 1, Description: "open page", Success: true,
				Instruction: types.Instruction{Action: types.ActionNavigate, Value: "https://example.com"}},
			{StepIndex: 2, Description: "click missing thing", Err: "element not found"},
		})
	require.NoError(t, err)
	assert.Contains(t, artifact.Source, "TestGenerated")

	prompt := client.prompts[0]
	assert.Contains(t, prompt, "[ok]")
	assert.Contains(t, prompt, "[FAIL]")
	assert.Contains(t, prompt, "element not found")
}

func TestRepairCarriesDiagnostics(t *testing.T) {
	client := &scriptedClient{responses: []string{"package generated\n"}}
	gen := NewCodeGenerator(client)

	_, err := gen.Repair(context.Background(),
		types.TestArtifact{Source: "package generated // old"},
		Diagnostics{
			Message:    "test exited with code 1",
			StackTrace: "assertion failed at step 2",
			DOM:        "<html><body>after</body></html>",
			URL:        "https://example.com/dashboard",
		})
	require.NoError(t, err)

	prompt := client.prompts[0]
	assert.Contains(t, prompt, "test exited with code 1")
	assert.Contains(t, prompt, "assertion failed at step 2")
	assert.Contains(t, prompt, "<html><body>after</body></html>")
	assert.Contains(t, prompt, "https://example.com/dashboard")
	assert.Contains(t, prompt, "package generated // old")
}

func TestSynthesizeStripsFences(t *testing.T) {
	client := &scriptedClient{responses: []string{"```go\npackage generated\n```"}}
	gen := NewCodeGenerator(client)

	artifact, err := gen.Synthesize(context.Background(), CaseMeta{Title: "t"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "package generated", artifact.Source)
}
