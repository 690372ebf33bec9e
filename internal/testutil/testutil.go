// Package testutil provides shared test utilities.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"path/filepath"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// RelDiff returns |got-want|/|want|, or |got| when want is zero.
func RelDiff(got, want float64) float64 {
	if want == 0 {
		return math.Abs(got)
	}
	return math.Abs(got-want) / math.Abs(want)
}

// AssertRelClose fails the test if got differs from want by more than rtol
// relative to want.
func AssertRelClose(t *testing.T, got, want, rtol float64, what string) {
	t.Helper()
	if math.IsNaN(got) || RelDiff(got, want) > rtol {
		t.Errorf("%s = %g, want %g (rtol %g)", what, got, want, rtol)
	}
}

// TempDBPath returns a sqlite file path inside a per-test temp directory.
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "runs.db")
}
