// Package exactdiag builds operator sums as dense matrices on the full Hilbert space and diagonalizes them.
// It serves as a reference for the tensor network algorithms on small chains.
package exactdiag

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/kbidzhiev/itensors/opsum"
	"github.com/kbidzhiev/itensors/sites"
	"github.com/kbidzhiev/itensors/tensor"
)

// Hamiltonian returns the matrix of os, with site 0 as the most significant digit of the basis index.
// Fermionic operators carry explicit Jordan-Wigner strings on all sites to their left,
// and the operators of each term are multiplied in the order given, without any canonicalization.
func Hamiltonian(os *opsum.OpSum, s sites.Sites) (*tensor.Dense, error) {
	dim := 1
	for _, d := range s.Dims() {
		dim *= d
	}

	h := mat.NewDense(dim, dim, nil)
	for _, t := range os.Terms() {
		if imag(t.Coef) != 0 {
			return nil, errors.Errorf("%s", t)
		}
		m := identity(dim)
		for _, o := range t.Ops {
			full, err := embed(o, s)
			if err != nil {
				return nil, errors.Wrap(err, t.String())
			}
			var p mat.Dense
			p.Mul(m, full)
			m = &p
		}
		m.Scale(real(t.Coef), m)
		h.Add(h, m)
	}
	return tensor.FromMatrix(h), nil
}

// embed returns the operator on the full Hilbert space.
func embed(o opsum.Op, s sites.Sites) (*mat.Dense, error) {
	if o.Site < 0 || o.Site >= len(s) {
		return nil, errors.Wrap(opsum.ErrSiteOutOfRange, fmt.Sprintf("%s %d", o, len(s)))
	}
	fermionic := opsum.IsFermionic(s[o.Site], o)

	full := identity(1)
	for k, site := range s {
		var f *tensor.Dense
		var err error
		switch {
		case k == o.Site && o.Matrix != nil:
			f = o.Matrix
		case k == o.Site:
			f, err = site.Op(o.Name, o.Params)
		case k < o.Site && fermionic:
			f, err = site.Op("F", nil)
		default:
			f = tensor.Eye(site.Dim())
		}
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		full = kron(full, f.Matrix())
	}
	return full, nil
}

func kron(a, b mat.Matrix) *mat.Dense {
	var k mat.Dense
	k.Kronecker(a, b)
	return &k
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := range n {
		m.Set(i, i, 1)
	}
	return m
}

// ValVec is an eigenvalue and its eigenvector.
type ValVec struct {
	Val float64
	Vec []float64
}

// Eigen returns the eigenpairs of a symmetric matrix in ascending order of eigenvalue.
func Eigen(h *tensor.Dense) ([]ValVec, error) {
	vals, vecs, err := tensor.EigenSym(h)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	n := len(vals)
	vvs := make([]ValVec, 0, n)
	for i, v := range vals {
		vec := make([]float64, 0, n)
		for j := range n {
			vec = append(vec, vecs.At(j, i))
		}
		vvs = append(vvs, ValVec{Val: v, Vec: vec})
	}
	slices.SortStableFunc(vvs, func(a, b ValVec) int { return cmp.Compare(a.Val, b.Val) })
	return vvs, nil
}

// GroundState returns the lowest eigenpair of os.
func GroundState(os *opsum.OpSum, s sites.Sites) (ValVec, error) {
	h, err := Hamiltonian(os, s)
	if err != nil {
		return ValVec{}, errors.Wrap(err, "")
	}
	vvs, err := Eigen(h)
	if err != nil {
		return ValVec{}, errors.Wrap(err, "")
	}
	return vvs[0], nil
}
