package discovery

import (
	"context"
	"sync"

	"github.com/FrenchMajesty/hue-discovery/pkg/types"
)

// Runner serializes discoveries driven by changing parameters: starting a new
// run cancels the one still in flight, which then returns ErrCancelled.
type Runner struct {
	engine *Engine

	mu         sync.Mutex
	cancel     context.CancelCauseFunc
	generation uint64
}

// NewRunner creates a Runner over engine
func NewRunner(engine *Engine) *Runner {
	return &Runner{engine: engine}
}

// Run cancels any in-flight run and discovers labels for the new parameters
func (r *Runner) Run(ctx context.Context, paramA, paramB int) ([]types.ClassificationResult, error) {
	runCtx, cancel := context.WithCancelCause(ctx)

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel(ErrSuperseded)
	}
	r.cancel = cancel
	r.generation++
	generation := r.generation
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if r.generation == generation {
			r.cancel = nil
		}
		r.mu.Unlock()
		cancel(nil)
	}()

	return r.engine.Discover(runCtx, paramA, paramB)
}

// Cancel stops the in-flight run, if any
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel(context.Canceled)
		r.cancel = nil
	}
}
