package store

import (
	"context"

	"github.com/banshee-data/ejecta.report/internal/simulation"
)

// Recorder stores every iteration of a run as it completes.
type Recorder struct {
	store *Store
	runID string
}

// NewRecorder returns an iteration observer writing into runID.
func NewRecorder(s *Store, runID string) *Recorder {
	return &Recorder{store: s, runID: runID}
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string { return r.runID }

// ObserveIteration implements simulation.IterationObserver.
func (r *Recorder) ObserveIteration(ctx context.Context, d simulation.IterationDiagnostics) error {
	return r.store.RecordIteration(ctx, r.runID, d)
}

var _ simulation.IterationObserver = (*Recorder)(nil)
