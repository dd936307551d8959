package processor

import (
	"context"

	"photobridge/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.ImageProcessor = (*limitedProcessor)(nil)

type limitedProcessor struct {
	inner adapter.ImageProcessor
	sem   chan struct{}
}

// NewLimitedProcessor caps in-flight submissions. A caller whose context ends
// while waiting for a slot gets ctx.Err().
func NewLimitedProcessor(inner adapter.ImageProcessor, maxConcurrent int) adapter.ImageProcessor {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedProcessor{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedProcessor) Dispatch(ctx context.Context, req adapter.DispatchRequest) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Dispatch(ctx, req)
}
