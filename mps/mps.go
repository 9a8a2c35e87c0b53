// Package mps implements matrix product states.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
package mps

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/mpo"
	"github.com/kbidzhiev/itensors/tensor"
)

const (
	// LeftAxis is the axis of a_{l-1} in Figure 6.
	LeftAxis  = 0
	UpAxis    = 1
	RightAxis = 2

	// Machine precision.
	epsilon = 0x1p-52
)

// MPS is a matrix product state.
// Site tensors have the axes {LeftAxis, UpAxis, RightAxis}, and the first and last sites have link dimension 1 towards the outside.
type MPS []*tensor.Dense

// FromDense creates a matrix product representation of a general state.
// Site 0 is the most significant digit of the index of state.
func FromDense(state []float64, dims []int) (MPS, error) {
	vol := 1
	for _, d := range dims {
		vol *= d
	}
	if len(state) != vol {
		return nil, errors.Errorf("%d %#v", len(state), dims)
	}

	ms := make(MPS, 0, len(dims))
	r := tensor.New(slices.Clone(state), 1, vol)
	leftD := 1
	for _, physD := range dims[:len(dims)-1] {
		q, rr, err := tensor.QR(r.Reshape(leftD*physD, -1))
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		k := q.Shape()[1]
		ms = append(ms, q.Reshape(leftD, physD, k))
		leftD, r = k, rr
	}
	ms = append(ms, r.Reshape(leftD, dims[len(dims)-1], 1))
	return ms, nil
}

// ProductState returns the product state where site i is in basis state states[i].
func ProductState(dims, states []int) MPS {
	if len(dims) != len(states) {
		panic(fmt.Sprintf("%#v %#v", dims, states))
	}
	ms := make(MPS, 0, len(dims))
	for i, d := range dims {
		m := tensor.Zeros(1, d, 1)
		m.SetAt([]int{0, states[i], 0}, 1)
		ms = append(ms, m)
	}
	return ms
}

// Random creates a random matrix product state.
// maxD is the maximum bond dimension, which is D in the discussion below equation 71 in section 4.1.4, Ulrich Schollwock.
func Random(dims []int, maxD int, rng *rand.Rand) MPS {
	n := len(dims)
	// The link between sites b and b+1 is bounded by the dimensions on either side.
	links := make([]int, n+1)
	links[0], links[n] = 1, 1
	left := 1
	for b := range n - 1 {
		left = min(left*dims[b], maxD)
		links[b+1] = left
	}
	right := 1
	for b := n - 1; b >= 1; b-- {
		right = min(right*dims[b], maxD)
		links[b] = min(links[b], right)
	}

	ms := make(MPS, 0, n)
	for i, d := range dims {
		m := tensor.Zeros(links[i], d, links[i+1])
		for j := range m.Data() {
			m.Data()[j] = rng.Float64()*2 - 1
		}
		ms = append(ms, m)
	}
	return ms
}

// RandMPS creates a random matrix product state on the sites of h.
func RandMPS(h *mpo.MPO, maxD int, rng *rand.Rand) MPS {
	return Random(h.PhysDims(), maxD, rng)
}

func (ms MPS) Clone() MPS {
	c := make(MPS, 0, len(ms))
	for _, m := range ms {
		c = append(c, m.Clone())
	}
	return c
}

// LinkDims returns the dimension of each of the len(ms)-1 links.
func (ms MPS) LinkDims() []int {
	dims := make([]int, 0, len(ms))
	for _, m := range ms[:len(ms)-1] {
		dims = append(dims, m.Shape()[RightAxis])
	}
	return dims
}

func (ms MPS) MaxLinkDim() int {
	dims := ms.LinkDims()
	if len(dims) == 0 {
		return 1
	}
	return slices.Max(dims)
}

func (ms MPS) PhysDims() []int {
	dims := make([]int, 0, len(ms))
	for _, m := range ms {
		dims = append(dims, m.Shape()[UpAxis])
	}
	return dims
}

// Dense contracts the chain into the full state vector, with site 0 as the most significant digit.
func (ms MPS) Dense() []float64 {
	s0 := ms[0].Shape()
	if s0[LeftAxis] != 1 {
		panic(fmt.Sprintf("%#v", s0))
	}
	acc := ms[0].Reshape(s0[UpAxis], s0[RightAxis])
	for _, m := range ms[1:] {
		as, s := acc.Shape(), m.Shape()
		acc = tensor.Product(acc, m, [][2]int{{1, LeftAxis}}).Reshape(as[0]*s[UpAxis], s[RightAxis])
	}
	if s := acc.Shape(); s[1] != 1 {
		panic(fmt.Sprintf("%#v", s))
	}
	return acc.Data()
}

// Orthogonalize brings ms into mixed canonical form around center,
// with the sites to its left left-normalized and the sites to its right right-normalized.
func (ms MPS) Orthogonalize(center int) error {
	if center < 0 || center >= len(ms) {
		return errors.Errorf("%d %d", center, len(ms))
	}
	for i := range center {
		if err := ms.LeftNormalize(i); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", i))
		}
	}
	for i := len(ms) - 1; i > center; i-- {
		if err := ms.RightNormalize(i); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", i))
		}
	}
	return nil
}

// Normalize scales ms to unit norm and returns its previous norm.
func (ms MPS) Normalize() (float64, error) {
	norm := math.Sqrt(InnerProduct(ms, ms))
	if norm < epsilon {
		return 0, errors.Errorf("%g", norm)
	}
	ms[len(ms)-1].Scale(1 / norm)
	return norm, nil
}

// LeftNormalize makes site i left-normalized, multiplying the remainder into site i+1.
// See Section 4.4.1 Generation of a left-canonical MPS, Ulrich Schollwock.
func (ms MPS) LeftNormalize(i int) error {
	s := ms[i].Shape()
	dLeft, dUp := s[LeftAxis], s[UpAxis]

	// Decompose ms[i] = q @ r.
	q, r, err := tensor.QR(ms[i].Reshape(dLeft*dUp, s[RightAxis]))
	if err != nil {
		return errors.Wrap(err, "")
	}

	// ms[i+1] = r @ ms[i+1].
	ms[i+1] = tensor.Product(r, ms[i+1], [][2]int{{1, LeftAxis}})
	ms[i] = q.Reshape(dLeft, dUp, -1)
	return nil
}

// RightNormalize makes site i right-normalized, multiplying the remainder into site i-1.
// See Section 4.4.2 Generation of a right-canonical MPS, Ulrich Schollwock.
func (ms MPS) RightNormalize(i int) error {
	s := ms[i].Shape()
	dUp, dRight := s[UpAxis], s[RightAxis]

	// Decompose ms[i] = l @ q.T, where ms[i].T = q @ l.T.
	q, lt, err := tensor.QR(ms[i].Reshape(s[LeftAxis], dUp*dRight).Transpose(1, 0))
	if err != nil {
		return errors.Wrap(err, "")
	}

	// ms[i-1] = ms[i-1] @ l.
	ms[i-1] = tensor.Product(ms[i-1], lt, [][2]int{{RightAxis, 1}})
	ms[i] = q.Transpose(1, 0).Reshape(-1, dUp, dRight)
	return nil
}

// InnerProduct computes the inner product between x and y.
// See Section 4.2.1 Efficient evaluation of contractions, Ulrich Schollwock.
func InnerProduct(x, y MPS) float64 {
	if len(x) != len(y) {
		panic(fmt.Sprintf("%d %d", len(x), len(y)))
	}
	f := tensor.Ones(1, 1)
	for i, xi := range x {
		f = LOverlap(f, xi, y[i])
	}
	if !slices.Equal(f.Shape(), []int{1, 1}) {
		panic(fmt.Sprintf("%#v", f.Shape()))
	}
	return f.At(0, 0)
}

// Expect returns <psi|h|psi> / <psi|psi>.
func Expect(h *mpo.MPO, psi MPS) float64 {
	if h.Len() != len(psi) {
		panic(fmt.Sprintf("%d %d", h.Len(), len(psi)))
	}
	f := tensor.Ones(1, 1, 1)
	for i, w := range h.Tensors {
		f = LExpression(f, w, psi[i], psi[i])
	}
	if !slices.Equal(f.Shape(), []int{1, 1, 1}) {
		panic(fmt.Sprintf("%#v", f.Shape()))
	}
	return f.At(0, 0, 0) / InnerProduct(psi, psi)
}

// H2 returns <psi|h^2|psi> / <psi|psi>.
// See Figure 44, Section 6.4 Conventional DMRG in MPS language: the subtle differences, Ulrich Schollwock for a graphical explanation.
func H2(h *mpo.MPO, psi MPS) float64 {
	if h.Len() != len(psi) {
		panic(fmt.Sprintf("%d %d", h.Len(), len(psi)))
	}

	// fi1 is the F expression at site i-1, and is of shape {fTop, fMid2, fMid, fBot}.
	fi1 := tensor.Ones(1, 1, 1, 1)
	for i, w := range h.Tensors {
		m := psi[i]

		// fm is of shape {fTop, fMid2, fMid, mpsTop, mpsRight}.
		fm := tensor.Product(fi1, m, [][2]int{{3, LeftAxis}})

		// wfm is of shape {mpoRight, mpoUp, fTop, fMid2, mpsRight}.
		wfm := tensor.Product(w, fm, [][2]int{{mpo.DownAxis, 3}, {mpo.LeftAxis, 2}})

		// wwfm is of shape {mpoRight2, mpoUp2, mpoRight, fTop, mpsRight}.
		wwfm := tensor.Product(w, wfm, [][2]int{{mpo.DownAxis, 1}, {mpo.LeftAxis, 3}})

		// fi1 is of shape {mpsRight, mpoRight2, mpoRight, mpsRight}.
		fi1 = tensor.Product(m, wwfm, [][2]int{{LeftAxis, 3}, {UpAxis, 1}})
	}

	if !slices.Equal(fi1.Shape(), []int{1, 1, 1, 1}) {
		panic(fmt.Sprintf("%#v", fi1.Shape()))
	}
	return fi1.At(0, 0, 0, 0) / InnerProduct(psi, psi)
}

// Variance returns <h^2> - <h>^2, which vanishes for eigenstates.
func Variance(h *mpo.MPO, psi MPS) float64 {
	e := Expect(h, psi)
	return H2(h, psi) - e*e
}

// LExpression extends the left environment f of shape {bra, mpo, ket} by one site.
// See Equation 192, Section 6.2 Applying a Hamiltonian MPO to a mixed canonical state, Ulrich Schollwock.
func LExpression(f, w, bra, ket *tensor.Dense) *tensor.Dense {
	// fm is of shape {fTop, fMid, mpsTop, mpsRight}.
	fm := tensor.Product(f, ket, [][2]int{{2, LeftAxis}})

	// wfm is of shape {mpoRight, mpoUp, fTop, mpsRight}.
	wfm := tensor.Product(w, fm, [][2]int{{mpo.DownAxis, 2}, {mpo.LeftAxis, 1}})

	// The result is of shape {braRight, mpoRight, mpsRight}.
	return tensor.Product(bra, wfm, [][2]int{{LeftAxis, 2}, {UpAxis, 1}})
}

// RExpression extends the right environment f of shape {bra, mpo, ket} by one site.
// See Equation 193, Section 6.2 Applying a Hamiltonian MPO to a mixed canonical state, Ulrich Schollwock.
func RExpression(f, w, bra, ket *tensor.Dense) *tensor.Dense {
	// fm is of shape {fTop, fMid, mpsLeft, mpsTop}.
	fm := tensor.Product(f, ket, [][2]int{{2, RightAxis}})

	// wfm is of shape {mpoLeft, mpoUp, fTop, mpsLeft}.
	wfm := tensor.Product(w, fm, [][2]int{{mpo.DownAxis, 3}, {mpo.RightAxis, 1}})

	// The result is of shape {braLeft, mpoLeft, mpsLeft}.
	return tensor.Product(bra, wfm, [][2]int{{RightAxis, 2}, {UpAxis, 1}})
}

// LOverlap extends the left overlap environment f of shape {bra, ket} by one site.
func LOverlap(f, bra, ket *tensor.Dense) *tensor.Dense {
	// fk is of shape {fTop, mpsTop, mpsRight}.
	fk := tensor.Product(f, ket, [][2]int{{1, LeftAxis}})
	return tensor.Product(bra, fk, [][2]int{{LeftAxis, 0}, {UpAxis, 1}})
}

// ROverlap extends the right overlap environment f of shape {bra, ket} by one site.
func ROverlap(f, bra, ket *tensor.Dense) *tensor.Dense {
	// fk is of shape {fTop, mpsLeft, mpsTop}.
	fk := tensor.Product(f, ket, [][2]int{{1, RightAxis}})
	return tensor.Product(bra, fk, [][2]int{{RightAxis, 0}, {UpAxis, 2}})
}
