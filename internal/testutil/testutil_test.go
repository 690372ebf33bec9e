package testutil

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func TestAssertNoError(t *testing.T) {
	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	AssertError(t, errors.New("boom"))
}

func TestRelDiff(t *testing.T) {
	testCases := []struct {
		name      string
		got, want float64
		expected  float64
	}{
		{"equal", 2, 2, 0},
		{"ten_percent", 1.1, 1, 0.1},
		{"zero_want", 0.5, 0, 0.5},
		{"negative", -2, -1, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if d := RelDiff(tc.got, tc.want); math.Abs(d-tc.expected) > 1e-12 {
				t.Errorf("RelDiff(%g, %g) = %g, want %g", tc.got, tc.want, d, tc.expected)
			}
		})
	}
}

func TestAssertRelClose(t *testing.T) {
	AssertRelClose(t, 1.0001, 1.0, 1e-3, "value")
}

func TestTempDBPath(t *testing.T) {
	p := TempDBPath(t)
	if filepath.Base(p) != "runs.db" {
		t.Errorf("unexpected db name %q", p)
	}
	if !strings.HasPrefix(p, filepath.Dir(p)) {
		t.Errorf("path %q not inside temp dir", p)
	}
}
