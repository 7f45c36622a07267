// Package fourier wraps the gonum FFT behind a single process-wide lock and
// provides the phase map, Fourier-Integral reconstruction and experimental
// variogram map computations built on it.
package fourier

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/cwbudde/varmapfit/internal/spectral"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// transformMu serialises every call into a gonum plan. A CmplxFFT keeps
// internal work buffers and must not be used from two goroutines at once.
var (
	transformMu sync.Mutex
	plans       = map[int]*fourier.CmplxFFT{}
)

// calls counts transforms executed, for tests and diagnostics
var calls int64

func plan(n int) *fourier.CmplxFFT {
	p, ok := plans[n]
	if !ok {
		p = fourier.NewCmplxFFT(n)
		plans[n] = p
	}
	return p
}

// Forward returns the unnormalized N-dimensional DFT of a
func Forward(a *spectral.Array) []complex128 {
	c := make([]complex128, a.Len())
	for i, v := range a.Data {
		c[i] = complex(v, 0)
	}
	transform(c, a.NI, a.NJ, a.NK, false)
	return c
}

// Inverse returns the unnormalized inverse N-dimensional DFT of coeffs.
// Inverse(Forward(a)) equals a scaled by the number of cells.
func Inverse(coeffs []complex128, nI, nJ, nK int) []complex128 {
	c := make([]complex128, len(coeffs))
	copy(c, coeffs)
	transform(c, nI, nJ, nK, true)
	return c
}

// Calls returns the number of transforms executed since process start
func Calls() int64 {
	transformMu.Lock()
	defer transformMu.Unlock()
	return calls
}

// transform runs the separable 1-D transforms along i, j and k in place.
// The lock covers only the transform itself.
func transform(c []complex128, nI, nJ, nK int, inverse bool) {
	transformMu.Lock()
	defer transformMu.Unlock()
	calls++

	axis := func(n, stride int, starts func(yield func(int))) {
		if n < 2 {
			return
		}
		p := plan(n)
		line := make([]complex128, n)
		out := make([]complex128, n)
		starts(func(start int) {
			for t := 0; t < n; t++ {
				line[t] = c[start+t*stride]
			}
			if inverse {
				p.Sequence(out, line)
			} else {
				p.Coefficients(out, line)
			}
			for t := 0; t < n; t++ {
				c[start+t*stride] = out[t]
			}
		})
	}

	// along i
	axis(nI, 1, func(yield func(int)) {
		for k := 0; k < nK; k++ {
			for j := 0; j < nJ; j++ {
				yield(nI * (j + nJ*k))
			}
		}
	})
	// along j
	axis(nJ, nI, func(yield func(int)) {
		for k := 0; k < nK; k++ {
			for i := 0; i < nI; i++ {
				yield(i + nI*nJ*k)
			}
		}
	})
	// along k
	axis(nK, nI*nJ, func(yield func(int)) {
		for j := 0; j < nJ; j++ {
			for i := 0; i < nI; i++ {
				yield(i + nI*j)
			}
		}
	})
}

// PhaseMap forward-transforms raw and returns the phase of every coefficient
func PhaseMap(raw *spectral.Array) *spectral.Array {
	coeffs := Forward(raw)
	out := spectral.New(raw.NI, raw.NJ, raw.NK)
	for i, c := range coeffs {
		out.Data[i] = cmplx.Phase(c)
	}
	return out
}

// Reconstruct performs the Fourier-Integral Method: the covariance surface,
// centred on the lag-origin cell, is moved to the corner, its amplitude
// spectrum is combined with the given phase and the result is transformed
// back to the data domain.
func Reconstruct(covariance, phase *spectral.Array) *spectral.Array {
	if !covariance.SameShape(phase) {
		panic("covariance and phase maps must have the same dimensions")
	}
	n := float64(covariance.Len())

	corner := covariance.ShiftByHalf().Scale(n)
	coeffs := Forward(corner)

	for i, c := range coeffs {
		amplitude := math.Sqrt(cmplx.Abs(c))
		coeffs[i] = cmplx.Rect(amplitude, phase.Data[i])
	}

	field := Inverse(coeffs, covariance.NI, covariance.NJ, covariance.NK)
	out := spectral.New(covariance.NI, covariance.NJ, covariance.NK)
	for i, c := range field {
		out.Data[i] = real(c) / n
	}
	return out
}

// Varmap computes the experimental covariance map of raw: the circular
// autocovariance of the mean-removed data, with lag zero at the grid centre.
func Varmap(raw *spectral.Array) *spectral.Array {
	n := float64(raw.Len())
	mean := stat.Mean(raw.Data, nil)

	centered := spectral.New(raw.NI, raw.NJ, raw.NK)
	for i, v := range raw.Data {
		centered.Data[i] = v - mean
	}

	coeffs := Forward(centered)
	for i, c := range coeffs {
		a := cmplx.Abs(c)
		coeffs[i] = complex(a*a, 0)
	}

	acov := Inverse(coeffs, raw.NI, raw.NJ, raw.NK)
	corner := spectral.New(raw.NI, raw.NJ, raw.NK)
	for i, c := range acov {
		corner.Data[i] = real(c) / (n * n)
	}
	return corner.UnshiftByHalf()
}
