package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pilot/internal/logging"
	"pilot/internal/types"
)

// Factory builds one orchestrator per worker. Each call must return an
// orchestrator with its own exclusive Driver; only the cache may be
// shared underneath. The cleanup func releases the driver.
type Factory func(ctx context.Context) (*Orchestrator, func(), error)

// Pool fans generation requests out over a fixed number of workers.
type Pool struct {
	concurrency int
	caseTimeout time.Duration
	factory     Factory
}

// NewPool builds a pool. Concurrency below one is clamped to one.
func NewPool(concurrency int, caseTimeout time.Duration, factory Factory) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{concurrency: concurrency, caseTimeout: caseTimeout, factory: factory}
}

// Run processes all requests and returns one execution per request, in
// request order. A failed case occupies its slot with the failure
// recorded; it never stops the other workers. The returned error is the
// first case error observed, for exit-code purposes.
func (p *Pool) Run(ctx context.Context, requests []types.GenerationRequest) ([]types.TestExecution, error) {
	results := make([]types.TestExecution, len(requests))
	var firstErr error
	var errOnce sync.Once
	fail := func(err error) { errOnce.Do(func() { firstErr = err }) }

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	logging.Orchestrator("pool: %d requests across %d workers", len(requests), p.concurrency)

	for i, req := range requests {
		g.Go(func() error {
			caseCtx := gctx
			if p.caseTimeout > 0 {
				var cancel context.CancelFunc
				caseCtx, cancel = context.WithTimeout(gctx, p.caseTimeout)
				defer cancel()
			}

			orch, cleanup, err := p.factory(caseCtx)
			if err != nil {
				results[i] = types.TestExecution{
					Title:  req.Title,
					Result: types.RunResult{Message: err.Error()},
				}
				fail(err)
				return nil
			}
			defer cleanup()

			exec, err := orch.Generate(caseCtx, req)
			if err != nil {
				logging.OrchestratorError("case %q failed: %v", req.Title, err)
				if exec.Result.Message == "" {
					exec.Result.Message = err.Error()
				}
				fail(err)
			}
			results[i] = exec
			return nil
		})
	}

	_ = g.Wait()
	return results, firstErr
}
