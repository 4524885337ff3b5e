package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/internal/types"
)

// fakeDriver scripts Execute and CaptureState outcomes.
type fakeDriver struct {
	execErr    error
	captureErr error
	execCalls  int
	state      types.PageState
}

func (d *fakeDriver) Navigate(context.Context, string) error { return nil }

func (d *fakeDriver) CaptureState(context.Context) (types.PageState, error) {
	if d.captureErr != nil {
		return types.PageState{}, d.captureErr
	}
	return d.state, nil
}

func (d *fakeDriver) FullSnapshot(context.Context) (string, error) { return d.state.DOM, nil }

func (d *fakeDriver) Execute(context.Context, types.Instruction) error {
	d.execCalls++
	return d.execErr
}

func (d *fakeDriver) Close() error { return nil }

var clickLogin = types.Instruction{Action: types.ActionClick, Locator: "#login"}

func TestExecuteSuccess(t *testing.T) {
	driver := &fakeDriver{state: types.PageState{DOM: "<button>", URL: "https://example.com"}}
	rec := New(driver).Execute(context.Background(), clickLogin, types.Step{Index: 3, Description: "click login"})

	assert.True(t, rec.Success)
	assert.Empty(t, rec.Err)
	assert.Equal(t, 3, rec.StepIndex)
	assert.Equal(t, "click login", rec.Description)
	assert.Equal(t, clickLogin, rec.Instruction)
	assert.Equal(t, "https://example.com", rec.After.URL)
	assert.Equal(t, 1, driver.execCalls)
}

func TestExecuteFailureRecordsError(t *testing.T) {
	driver := &fakeDriver{execErr: errors.New("element not found")}
	rec := New(driver).Execute(context.Background(), clickLogin, types.Step{Index: 1, Description: "click login"})

	assert.False(t, rec.Success)
	assert.Contains(t, rec.Err, "element not found")
}

func TestExecuteFailedCaptureKeepsActionOutcome(t *testing.T) {
	driver := &fakeDriver{captureErr: errors.New("page crashed")}
	rec := New(driver).Execute(context.Background(), clickLogin, types.Step{Index: 1, Description: "click login"})

	// Action succeeded; a failed post-state capture must not turn it into
	// a step failure.
	assert.True(t, rec.Success)
	assert.Empty(t, rec.Err)
	assert.Empty(t, rec.After.URL)
}

func TestExecuteFailedActionAndCapture(t *testing.T) {
	driver := &fakeDriver{
		execErr:    errors.New("click rejected"),
		captureErr: errors.New("page crashed"),
	}
	rec := New(driver).Execute(context.Background(), clickLogin, types.Step{Index: 1, Description: "click login"})

	require.False(t, rec.Success)
	assert.Contains(t, rec.Err, "click rejected", "the action error must win over the capture error")
}

func TestExecuteNeverRetries(t *testing.T) {
	driver := &fakeDriver{execErr: errors.New("flaky")}
	New(driver).Execute(context.Background(), clickLogin, types.Step{Index: 1})

	assert.Equal(t, 1, driver.execCalls)
}
