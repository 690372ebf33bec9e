package simulation

import (
	"context"

	"github.com/banshee-data/ejecta.report/internal/monitoring"
)

// IterationObserver receives the diagnostics of every completed iteration,
// in order, from the goroutine running the loop.
type IterationObserver interface {
	ObserveIteration(ctx context.Context, d IterationDiagnostics) error
}

// ObserverFunc adapts a function to IterationObserver.
type ObserverFunc func(ctx context.Context, d IterationDiagnostics) error

// ObserveIteration calls f.
func (f ObserverFunc) ObserveIteration(ctx context.Context, d IterationDiagnostics) error {
	return f(ctx, d)
}

// notify hands d to every observer. Observer failures are logged and do not
// stop the run.
func (s *Simulation) notify(ctx context.Context, d IterationDiagnostics) {
	for _, o := range s.observers {
		if err := o.ObserveIteration(ctx, d); err != nil {
			monitoring.Logf("[simulation] observer failed for iteration %d: %v", d.Iteration, err)
		}
	}
}
