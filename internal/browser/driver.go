// Package browser implements the page driver on go-rod. Each Driver owns
// one incognito browser context, used exclusively by one test-case worker.
package browser

import (
	"context"

	"pilot/internal/types"
)

// Driver is the contract the orchestration core consumes. Implementations
// mutate a live browser session; callers must not share one Driver across
// workers.
type Driver interface {
	// Navigate loads the given URL. Failure is fatal for the run.
	Navigate(ctx context.Context, url string) error

	// CaptureState returns the pruned DOM snapshot, a screenshot, and the
	// current URL, captured together.
	CaptureState(ctx context.Context) (types.PageState, error)

	// FullSnapshot returns the raw page HTML, used for repair diagnostics
	// where the pruned snapshot loses too much.
	FullSnapshot(ctx context.Context) (string, error)

	// Execute applies one instruction to the live page.
	Execute(ctx context.Context, in types.Instruction) error

	// Close tears down the browser context.
	Close() error
}
