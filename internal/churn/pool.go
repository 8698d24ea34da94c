package churn

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/semaphore"
)

// InferencePool bounds how many model inferences run at once across all
// requests.
type InferencePool struct {
	sem *semaphore.Weighted
}

// NewInferencePool allows workers concurrent inferences (at least one).
func NewInferencePool(workers int64) *InferencePool {
	if workers < 1 {
		workers = 1
	}
	return &InferencePool{sem: semaphore.NewWeighted(workers)}
}

// Infer runs fn once a slot is free. It gives up if ctx ends first.
func Infer[T any](ctx context.Context, p *InferencePool, fn func(ctx context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		var zero T
		return zero, eris.Wrap(err, "churn: wait for inference slot")
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
