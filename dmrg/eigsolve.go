package dmrg

import (
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/tensor"
)

// Which selects the targeted eigenvalue.
type Which int

const (
	SmallestReal Which = iota
	LargestMagnitude
)

func (w Which) String() string {
	switch w {
	case SmallestReal:
		return "SR"
	case LargestMagnitude:
		return "LM"
	}
	return fmt.Sprintf("Which(%d)", int(w))
}

// ParseWhich parses "SR" or "LM".
func ParseWhich(s string) (Which, error) {
	switch strings.ToUpper(s) {
	case "SR":
		return SmallestReal, nil
	case "LM":
		return LargestMagnitude, nil
	}
	return 0, errors.Wrap(ErrBadOption, s)
}

// EigsolveParams are the parameters of the eigensolver.
type EigsolveParams struct {
	// Tol is the tolerance of the residual norm.
	Tol float64
	// KrylovDim is the maximum dimension of the Krylov subspace.
	KrylovDim int
	// MaxIter is the maximum number of Krylov subspaces built, each restarted from the previous solution.
	MaxIter   int
	Verbosity int
	Which     Which
}

// LinearMap is a self-adjoint linear map.
type LinearMap func(*tensor.Dense) *tensor.Dense

// Eigensolver finds the targeted eigenpair of a linear map, starting from x0.
// The returned eigenvector has the shape of x0 and unit norm.
type Eigensolver interface {
	Solve(apply LinearMap, x0 *tensor.Dense, p EigsolveParams) (float64, *tensor.Dense, error)
}

// Lanczos is the Lanczos eigensolver with full reorthogonalization and restarts.
// See Section 6.3 Iterative ground state search, Ulrich Schollwock.
type Lanczos struct{}

func (Lanczos) Solve(apply LinearMap, x0 *tensor.Dense, p EigsolveParams) (float64, *tensor.Dense, error) {
	x := x0.Clone()
	norm := x.Norm()
	if norm == 0 || math.IsNaN(norm) {
		return math.NaN(), nil, errors.Errorf("%f", norm)
	}
	x.Scale(1 / norm)
	kdim := min(p.KrylovDim, x.Size())

	lambda := math.NaN()
	for iter := range p.MaxIter {
		basis := []*tensor.Dense{x}
		images := []*tensor.Dense{apply(x)}
		for len(basis) < kdim {
			w := images[len(images)-1].Clone()
			// Orthogonalize twice, to keep the basis orthonormal in floating point.
			for range 2 {
				for _, q := range basis {
					w.Add(-tensor.Dot(q, w), q)
				}
			}
			beta := w.Norm()
			if beta < 1e-14 {
				// The Krylov subspace is invariant.
				break
			}
			w.Scale(1 / beta)
			basis = append(basis, w)
			images = append(images, apply(w))
		}

		// Rayleigh-Ritz in the Krylov subspace.
		m := len(basis)
		t := tensor.Zeros(m, m)
		for i, q := range basis {
			for j, aq := range images {
				t.SetAt([]int{i, j}, tensor.Dot(q, aq))
			}
		}
		vals, vecs, err := tensor.EigenSym(t)
		if err != nil {
			return math.NaN(), nil, errors.Wrap(err, fmt.Sprintf("%d", iter))
		}
		k := target(vals, p.Which)
		lambda = vals[k]

		x = tensor.Zeros(x0.Shape()...)
		ax := tensor.Zeros(x0.Shape()...)
		for i := range m {
			y := vecs.At(i, k)
			x.Add(y, basis[i])
			ax.Add(y, images[i])
		}
		xn := x.Norm()
		x.Scale(1 / xn)
		ax.Scale(1 / xn)

		residual := ax.Add(-lambda, x).Norm()
		if p.Verbosity > 0 {
			log.Printf("lanczos iter %d krylovdim %d lambda %.16f residual %.3e", iter, m, lambda, residual)
		}
		if math.IsNaN(lambda) {
			return math.NaN(), nil, errors.Errorf("%d %d", iter, m)
		}
		if residual <= p.Tol {
			break
		}
	}
	return lambda, x, nil
}

// target returns the index of the targeted eigenvalue among vals, which are in ascending order.
func target(vals []float64, which Which) int {
	switch which {
	case LargestMagnitude:
		k := 0
		for i, v := range vals {
			if math.Abs(v) > math.Abs(vals[k]) {
				k = i
			}
		}
		return k
	default:
		return 0
	}
}
