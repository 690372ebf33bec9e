package packet

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ejecta.report/internal/config"
	"github.com/banshee-data/ejecta.report/internal/simerr"
	"github.com/banshee-data/ejecta.report/internal/testutil"
	"github.com/banshee-data/ejecta.report/internal/units"
)

func mean(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

func TestSourcesReturnExactCount(t *testing.T) {
	sources := map[string]Source{
		"blackbody":           NewBlackBodySource(1),
		"truncated blackbody": NewTruncatedBlackBodySource(1, 1e14, 0),
		"band limited":        NewTruncatedBlackBodySource(1, 3e14, 1.5e15),
	}
	for name, src := range sources {
		for _, n := range []int{1, 7, 1000, 4097} {
			packets, err := src.CreatePackets(10000, n)
			require.NoError(t, err, "%s n=%d", name, n)
			require.NoError(t, packets.Validate(n), "%s n=%d", name, n)
			assert.Equal(t, n, packets.Len())
			assert.InDelta(t, 1.0, packets.Energies[0]*float64(n), 1e-12)
		}
	}
}

func TestBlackBodyMoments(t *testing.T) {
	const n = 200000
	const temperature = 10000.0
	src := NewBlackBodySource(23111963)

	packets, err := src.CreatePackets(temperature, n)
	require.NoError(t, err)

	testutil.AssertRelClose(t, mean(packets.Nus), MeanFrequency(temperature), 0.01, "mean frequency")
	assert.InDelta(t, 2.0/3.0, mean(packets.Mus), 0.01, "mean direction cosine with zero limb darkening")

	total := 0.0
	for _, e := range packets.Energies {
		total += e
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestBlackBodyIsDeterministicPerSeed(t *testing.T) {
	a, err := NewBlackBodySource(42).CreatePackets(8000, 500)
	require.NoError(t, err)
	b, err := NewBlackBodySource(42).CreatePackets(8000, 500)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different packets (-a +b):\n%s", diff)
	}

	c, err := NewBlackBodySource(43).CreatePackets(8000, 500)
	require.NoError(t, err)
	assert.NotEqual(t, a.Nus, c.Nus)

	// successive calls advance the generator
	src := NewBlackBodySource(42)
	first, _ := src.CreatePackets(8000, 500)
	second, _ := src.CreatePackets(8000, 500)
	assert.NotEqual(t, first.Nus, second.Nus)
}

func TestTruncatedSourceRespectsWindow(t *testing.T) {
	const temperature = 9000.0
	lo := 2 * units.Boltzmann * temperature / units.Planck
	hi := 6 * units.Boltzmann * temperature / units.Planck
	src := NewTruncatedBlackBodySource(7, lo, hi)

	packets, err := src.CreatePackets(temperature, 5000)
	require.NoError(t, err)
	require.Equal(t, 5000, packets.Len())
	for i, nu := range packets.Nus {
		if nu < lo || nu > hi {
			t.Fatalf("packet %d frequency %g outside [%g, %g]", i, nu, lo, hi)
		}
	}

	lowOnly := NewTruncatedBlackBodySource(7, lo, 0)
	packets, err = lowOnly.CreatePackets(temperature, 5000)
	require.NoError(t, err)
	for _, nu := range packets.Nus {
		require.GreaterOrEqual(t, nu, lo)
	}
}

func TestTruncatedSourceFailures(t *testing.T) {
	const temperature = 10000.0
	kth := units.Boltzmann * temperature / units.Planck

	testCases := []struct {
		name   string
		src    *TruncatedBlackBodySource
		count  int
		errMsg string
	}{
		{"inverted window", NewTruncatedBlackBodySource(1, 2e15, 1e15), 10, "empty frequency window"},
		{"window beyond the Wien tail", NewTruncatedBlackBodySource(1, 80*kth, 0), 10, "fraction"},
		{"batches exhausted", func() *TruncatedBlackBodySource {
			s := NewTruncatedBlackBodySource(1, 21*kth, 0)
			s.MaxBatches = 1
			return s
		}(), 10, "after 1 batches"},
		{"zero count", NewTruncatedBlackBodySource(1, 0, 0), 0, "count"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.src.CreatePackets(temperature, tc.count)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
			assert.True(t, errors.Is(err, simerr.ErrSampling))
		})
	}
}

func TestBlackBodyRejectsInvalidRequests(t *testing.T) {
	src := NewBlackBodySource(1)
	_, err := src.CreatePackets(10000, 0)
	assert.True(t, errors.Is(err, simerr.ErrSampling))
	_, err = src.CreatePackets(-5, 10)
	assert.True(t, errors.Is(err, simerr.ErrSampling))
	_, err = src.CreatePackets(math.NaN(), 10)
	assert.True(t, errors.Is(err, simerr.ErrSampling))
}

func TestPlanckFraction(t *testing.T) {
	const temperature = 10000.0
	kth := units.Boltzmann * temperature / units.Planck

	testCases := []struct {
		name string
		lo   float64
		hi   float64
		want float64
	}{
		{"whole spectrum", 0, math.Inf(1), 1},
		{"x below 1", 0, kth, 0.0346177},
		{"x below 3", 0, 3 * kth, 0.3930154},
		{"Wien tail above 21", 21 * kth, math.Inf(1), 1.25124e-6},
		{"empty", 2 * kth, kth, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := PlanckFraction(temperature, tc.lo, tc.hi)
			if tc.want == 0 {
				assert.Equal(t, 0.0, got)
				return
			}
			testutil.AssertRelClose(t, got, tc.want, 1e-4, tc.name)
		})
	}
}

func TestValidateRejectsMalformedEnsembles(t *testing.T) {
	good := Packets{Nus: []float64{1e15}, Mus: []float64{0.5}, Energies: []float64{1}}
	require.NoError(t, good.Validate(1))

	assert.Error(t, good.Validate(2))
	assert.Error(t, Packets{Nus: []float64{0}, Mus: []float64{0.5}, Energies: []float64{1}}.Validate(1))
	assert.Error(t, Packets{Nus: []float64{1e15}, Mus: []float64{1.5}, Energies: []float64{1}}.Validate(1))
	assert.Error(t, Packets{Nus: []float64{1e15}, Mus: []float64{0.5}, Energies: []float64{0}}.Validate(1))
}

func TestFromConfig(t *testing.T) {
	mc := config.DefaultRunConfig().MonteCarlo

	src, err := FromConfig(mc)
	require.NoError(t, err)
	bb, ok := src.(*BlackBodySource)
	require.True(t, ok)
	assert.Equal(t, mc.GetSeed(), bb.Seed)

	typ := config.SourceTruncatedBB
	trunc := 1e14
	batches := 7
	mc.PacketSource.Type = &typ
	mc.PacketSource.TruncationFrequency = &trunc
	mc.PacketSource.MaxBatches = &batches
	src, err = FromConfig(mc)
	require.NoError(t, err)
	tb, ok := src.(*TruncatedBlackBodySource)
	require.True(t, ok)
	assert.Equal(t, trunc, tb.MinFrequency)
	assert.Equal(t, batches, tb.MaxBatches)

	unknown := "isotropic"
	mc.PacketSource.Type = &unknown
	_, err = FromConfig(mc)
	assert.ErrorIs(t, err, simerr.ErrConfiguration)
}
