// Package mpo compiles sums of local operators into matrix product operators.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
//   - Matrix product operators, matrix product states, and ab initio density matrix renormalization group algorithms, Garnet Kin-Lic Chan et al.
package mpo

import (
	"fmt"
	"slices"

	"github.com/kbidzhiev/itensors/tensor"
)

const (
	// LeftAxis is the axis of b_{l-1} in Figure 35, Ulrich Schollwock.
	LeftAxis  = 0
	RightAxis = 1
	UpAxis    = 2
	DownAxis  = 3
)

// MPO is a matrix product operator.
// Site tensors have the axes {LeftAxis, RightAxis, UpAxis, DownAxis},
// and the first and last sites have link dimension 1 towards the outside.
// Charge conserving MPOs label their link indices with LinkQN, but store their blocks densely.
type MPO struct {
	Tensors []*tensor.Dense
	// LinkQN are the charges of the link indices between sites b and b+1, or nil if charges are not tracked.
	LinkQN [][]int
	// Flux is the charge the operator adds to a state.
	Flux int
}

func (h *MPO) Len() int { return len(h.Tensors) }

// LinkDims returns the dimension of each of the Len()-1 links.
func (h *MPO) LinkDims() []int {
	dims := make([]int, 0, len(h.Tensors))
	for _, w := range h.Tensors[:len(h.Tensors)-1] {
		dims = append(dims, w.Shape()[RightAxis])
	}
	return dims
}

func (h *MPO) MaxLinkDim() int {
	dims := h.LinkDims()
	if len(dims) == 0 {
		return 1
	}
	return slices.Max(dims)
}

// PhysDims returns the physical dimension of each site.
func (h *MPO) PhysDims() []int {
	dims := make([]int, 0, len(h.Tensors))
	for _, w := range h.Tensors {
		dims = append(dims, w.Shape()[DownAxis])
	}
	return dims
}

// Dense contracts the whole chain into a matrix acting on the full Hilbert space.
// Site 0 is the most significant digit of the row and column indices.
func (h *MPO) Dense() *tensor.Dense {
	w0 := h.Tensors[0]
	s := w0.Shape()
	if s[LeftAxis] != 1 {
		panic(fmt.Sprintf("%#v", s))
	}
	// acc is of shape {up, down, right}.
	acc := w0.Reshape(s[RightAxis], s[UpAxis], s[DownAxis]).Transpose(1, 2, 0)
	for _, w := range h.Tensors[1:] {
		as, ws := acc.Shape(), w.Shape()
		// p is of shape {up, down, mpoRight, mpoUp, mpoDown}.
		p := tensor.Product(acc, w, [][2]int{{2, LeftAxis}})
		acc = p.Transpose(0, 3, 1, 4, 2).Reshape(as[0]*ws[UpAxis], as[1]*ws[DownAxis], ws[RightAxis])
	}
	as := acc.Shape()
	if as[2] != 1 {
		panic(fmt.Sprintf("%#v", as))
	}
	return acc.Reshape(as[0], as[1])
}
