// Package spectral provides the dense grid-shaped numeric array shared by the
// transform, objective and reporting code.
package spectral

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Array is a dense nI x nJ x nK array of float64 values.
// Data is laid out with i varying fastest, then j, then k.
type Array struct {
	NI, NJ, NK int
	Data       []float64
}

// New creates a zero-filled array with the given dimensions
func New(nI, nJ, nK int) *Array {
	return &Array{
		NI:   nI,
		NJ:   nJ,
		NK:   nK,
		Data: make([]float64, nI*nJ*nK),
	}
}

// NewFilled creates an array with every element set to value
func NewFilled(nI, nJ, nK int, value float64) *Array {
	a := New(nI, nJ, nK)
	for i := range a.Data {
		a.Data[i] = value
	}
	return a
}

// FromSlice wraps data in an array without copying it.
// len(data) must equal nI*nJ*nK.
func FromSlice(nI, nJ, nK int, data []float64) (*Array, error) {
	if len(data) != nI*nJ*nK {
		return nil, fmt.Errorf("data length %d does not match dimensions %dx%dx%d", len(data), nI, nJ, nK)
	}
	return &Array{NI: nI, NJ: nJ, NK: nK, Data: data}, nil
}

// Len returns the number of elements
func (a *Array) Len() int {
	return len(a.Data)
}

// Index returns the linear offset of cell (i,j,k)
func (a *Array) Index(i, j, k int) int {
	return i + a.NI*(j+a.NJ*k)
}

// At returns the value at cell (i,j,k)
func (a *Array) At(i, j, k int) float64 {
	return a.Data[a.Index(i, j, k)]
}

// Set writes the value at cell (i,j,k)
func (a *Array) Set(i, j, k int, v float64) {
	a.Data[a.Index(i, j, k)] = v
}

// SameShape reports whether both arrays have identical dimensions
func (a *Array) SameShape(b *Array) bool {
	return a.NI == b.NI && a.NJ == b.NJ && a.NK == b.NK
}

// Clone returns a deep copy
func (a *Array) Clone() *Array {
	c := &Array{NI: a.NI, NJ: a.NJ, NK: a.NK, Data: make([]float64, len(a.Data))}
	copy(c.Data, a.Data)
	return c
}

// Add returns a + b
func (a *Array) Add(b *Array) *Array {
	a.mustMatch(b)
	c := a.Clone()
	floats.Add(c.Data, b.Data)
	return c
}

// Sub returns a - b
func (a *Array) Sub(b *Array) *Array {
	a.mustMatch(b)
	c := a.Clone()
	floats.Sub(c.Data, b.Data)
	return c
}

// Scale returns a * s
func (a *Array) Scale(s float64) *Array {
	c := a.Clone()
	floats.Scale(s, c.Data)
	return c
}

// AddInPlace accumulates b into a
func (a *Array) AddInPlace(b *Array) {
	a.mustMatch(b)
	floats.Add(a.Data, b.Data)
}

// Max returns the largest element
func (a *Array) Max() float64 {
	return floats.Max(a.Data)
}

// Min returns the smallest element
func (a *Array) Min() float64 {
	return floats.Min(a.Data)
}

// Sum returns the sum of all elements
func (a *Array) Sum() float64 {
	return floats.Sum(a.Data)
}

// ShiftByHalf circularly shifts every axis by half its length, so the cell at
// (nI/2, nJ/2, nK/2) moves to (0,0,0). Applying it twice restores the input
// for even dimensions.
func (a *Array) ShiftByHalf() *Array {
	c := New(a.NI, a.NJ, a.NK)
	hI, hJ, hK := a.NI/2, a.NJ/2, a.NK/2
	for k := 0; k < a.NK; k++ {
		kk := (k + hK) % a.NK
		for j := 0; j < a.NJ; j++ {
			jj := (j + hJ) % a.NJ
			for i := 0; i < a.NI; i++ {
				ii := (i + hI) % a.NI
				c.Data[c.Index(i, j, k)] = a.Data[a.Index(ii, jj, kk)]
			}
		}
	}
	return c
}

// UnshiftByHalf is the inverse of ShiftByHalf for any dimensions
func (a *Array) UnshiftByHalf() *Array {
	c := New(a.NI, a.NJ, a.NK)
	hI, hJ, hK := a.NI/2, a.NJ/2, a.NK/2
	for k := 0; k < a.NK; k++ {
		kk := (k + hK) % a.NK
		for j := 0; j < a.NJ; j++ {
			jj := (j + hJ) % a.NJ
			for i := 0; i < a.NI; i++ {
				ii := (i + hI) % a.NI
				c.Data[c.Index(ii, jj, kk)] = a.Data[a.Index(i, j, k)]
			}
		}
	}
	return c
}

func (a *Array) mustMatch(b *Array) {
	if !a.SameShape(b) {
		panic(fmt.Sprintf("array dimensions must match: %dx%dx%d vs %dx%dx%d", a.NI, a.NJ, a.NK, b.NI, b.NJ, b.NK))
	}
}
