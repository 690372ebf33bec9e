package simerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	testCases := []struct {
		name   string
		kind   Kind
		target error
	}{
		{"configuration", KindConfiguration, ErrConfiguration},
		{"atomic_data", KindAtomicData, ErrAtomicData},
		{"sampling", KindSampling, ErrSampling},
		{"convergence", KindConvergence, ErrConvergence},
		{"numerical", KindNumerical, ErrNumericalDegeneracy},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := New(tc.kind, "test.Op", "value %d out of range", 3)
			assert.ErrorIs(t, err, tc.target)
			assert.Equal(t, tc.kind, KindOf(err))

			wrapped := fmt.Errorf("outer: %w", err)
			assert.ErrorIs(t, wrapped, tc.target)
			assert.Equal(t, tc.kind, KindOf(wrapped))
		})
	}
}

func TestErrorIs_OtherKindDoesNotMatch(t *testing.T) {
	err := New(KindSampling, "", "boom")
	assert.False(t, errors.Is(err, ErrConfiguration))
	assert.Equal(t, "sampling: boom", err.Error())
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(KindAtomicData, "op", nil))

	base := errors.New("missing line")
	err := Wrap(KindAtomicData, "atomdata.Lookup", base)
	assert.ErrorIs(t, err, base)
	assert.ErrorIs(t, err, ErrAtomicData)
	assert.Contains(t, err.Error(), "atomdata.Lookup")
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(New(KindConvergence, "plasma", "shell 3")))
	assert.True(t, IsFatal(New(KindConfiguration, "config", "bad")))
	assert.True(t, IsFatal(errors.New("plain")))
}
