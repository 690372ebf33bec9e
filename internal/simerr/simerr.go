// Package simerr defines the error kinds shared by the simulation core.
//
// Configuration and atomic-data errors are fatal and surface before any
// transport work begins. Sampling errors are fatal for the run that hit them.
// Convergence problems are recorded as warnings and never abort a run.
// Numerical degeneracies are resolved per packet where possible and only
// escalate when they indicate solver divergence.
package simerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for programmatic handling.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindAtomicData    Kind = "atomic_data"
	KindSampling      Kind = "sampling"
	KindConvergence   Kind = "convergence"
	KindNumerical     Kind = "numerical_degeneracy"
)

// Sentinel errors, one per kind. Use errors.Is to test a returned error.
var (
	// ErrConfiguration indicates invalid or missing run parameters.
	ErrConfiguration = errors.New("configuration error")
	// ErrAtomicData indicates missing species or line data needed by the run.
	ErrAtomicData = errors.New("atomic data error")
	// ErrSampling indicates a packet source could not produce the requested count.
	ErrSampling = errors.New("sampling error")
	// ErrConvergence indicates a solver did not converge within its cap.
	ErrConvergence = errors.New("convergence warning")
	// ErrNumericalDegeneracy indicates NaN/Inf or otherwise unusable numbers.
	ErrNumericalDegeneracy = errors.New("numerical degeneracy")
)

var sentinels = map[Kind]error{
	KindConfiguration: ErrConfiguration,
	KindAtomicData:    ErrAtomicData,
	KindSampling:      ErrSampling,
	KindConvergence:   ErrConvergence,
	KindNumerical:     ErrNumericalDegeneracy,
}

// Error records a classified failure with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string // e.g. "config.Validate", "packet.CreatePackets"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// New builds a classified error from a formatted message.
func New(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsFatal reports whether err must abort a run. Convergence warnings are the
// only non-fatal kind.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrConvergence)
}
