package fourier

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/cwbudde/varmapfit/internal/spectral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomArray(nI, nJ, nK int, seed int64) *spectral.Array {
	rng := rand.New(rand.NewSource(seed))
	a := spectral.New(nI, nJ, nK)
	for i := range a.Data {
		a.Data[i] = rng.NormFloat64()*2 + 5
	}
	return a
}

func TestForwardInverseRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		nI, nJ, nK int
	}{
		{"2D even", 8, 6, 1},
		{"2D odd", 7, 5, 1},
		{"3D", 4, 6, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := randomArray(tt.nI, tt.nJ, tt.nK, 1)
			n := float64(a.Len())

			back := Inverse(Forward(a), tt.nI, tt.nJ, tt.nK)
			for i, c := range back {
				assert.InDelta(t, a.Data[i], real(c)/n, 1e-9)
				assert.InDelta(t, 0, imag(c)/n, 1e-9)
			}
		})
	}
}

func TestForwardConstant(t *testing.T) {
	a := spectral.NewFilled(4, 4, 1, 3)
	coeffs := Forward(a)

	assert.InDelta(t, 48, real(coeffs[0]), 1e-12)
	for _, c := range coeffs[1:] {
		assert.InDelta(t, 0, real(c), 1e-12)
		assert.InDelta(t, 0, imag(c), 1e-12)
	}
}

func TestVarmapZeroLagIsVariance(t *testing.T) {
	raw := randomArray(16, 12, 1, 7)
	vm := Varmap(raw)

	var mean, variance float64
	for _, v := range raw.Data {
		mean += v
	}
	mean /= float64(raw.Len())
	for _, v := range raw.Data {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(raw.Len())

	assert.InDelta(t, variance, vm.At(8, 6, 0), 1e-9)
	assert.InDelta(t, variance, vm.Max(), 1e-9, "zero lag carries the largest covariance")
}

func TestVarmapIsPointSymmetric(t *testing.T) {
	raw := randomArray(16, 16, 1, 11)
	vm := Varmap(raw)

	for j := 1; j < 16; j++ {
		for i := 1; i < 16; i++ {
			assert.InDelta(t, vm.At(i, j, 0), vm.At(16-i, 16-j, 0), 1e-9)
		}
	}
}

func TestReconstructRecoversData(t *testing.T) {
	raw := randomArray(16, 8, 1, 3)
	mean := raw.Sum() / float64(raw.Len())

	field := Reconstruct(Varmap(raw), PhaseMap(raw))

	for i, v := range raw.Data {
		assert.InDelta(t, v-mean, field.Data[i], 1e-6)
	}
}

func TestReconstructShapeMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		Reconstruct(spectral.New(4, 4, 1), spectral.New(4, 2, 1))
	})
}

func TestConcurrentTransformsAreSerialised(t *testing.T) {
	a := randomArray(32, 32, 1, 5)
	want := Forward(a)
	before := Calls()

	const workers = 8
	var wg sync.WaitGroup
	results := make([][]complex128, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			results[w] = Forward(a)
		}(w)
	}
	wg.Wait()

	require.Equal(t, int64(workers), Calls()-before)
	for _, got := range results {
		for i := range want {
			assert.Equal(t, want[i], got[i])
		}
	}
}

func TestPhaseMapRange(t *testing.T) {
	pm := PhaseMap(randomArray(8, 8, 1, 9))
	for _, p := range pm.Data {
		assert.True(t, p >= -math.Pi && p <= math.Pi)
	}
}
