package dmrg

import (
	"fmt"
	"log"
	"math"
	"math/cmplx"

	ftensor "github.com/fumin/tensor"
	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/tensor"
)

// Arnoldi solves two-site problems with the single precision Arnoldi iteration of github.com/fumin/tensor.
// The effective matrix is built explicitly, so Arnoldi is only suitable for small link dimensions.
// The eigenvalue is refined in double precision as the Rayleigh quotient of the returned vector.
// Only the Which and Verbosity parameters apply; Tol, KrylovDim and MaxIter are ignored.
type Arnoldi struct{}

func (Arnoldi) Solve(apply LinearMap, x0 *tensor.Dense, p EigsolveParams) (float64, *tensor.Dense, error) {
	shape := x0.Shape()
	n := x0.Size()

	// Build the effective matrix column by column.
	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, n)
	}
	e := tensor.Zeros(shape...)
	for j := range n {
		e.Data()[j] = 1
		for i, v := range apply(e).Data() {
			a[i][j] = v
		}
		e.Data()[j] = 0
	}

	// Shift the spectrum to be non-positive, so that the smallest eigenvalue has the largest magnitude.
	var shift float64
	if p.Which == SmallestReal {
		for _, row := range a {
			var s float64
			for _, v := range row {
				s += math.Abs(v)
			}
			shift = max(shift, s)
		}
	}
	h := ftensor.Zeros(n, n)
	for i, row := range a {
		for j, v := range row {
			if i == j {
				v -= shift
			}
			h.SetAt([]int{i, j}, complex(float32(v), 0))
		}
	}

	eigvals, eigvecs := ftensor.Zeros(1), ftensor.Zeros(1)
	var bufs [7]*ftensor.Dense
	for i := range bufs {
		bufs[i] = ftensor.Zeros(1)
	}
	if err := ftensor.Arnoldi(eigvals, eigvecs, h, 1, bufs); err != nil {
		return math.NaN(), nil, errors.Wrap(err, fmt.Sprintf("%#v", shape))
	}

	vec := make([]complex128, 0, n)
	for _, v := range eigvecs.All() {
		vec = append(vec, complex128(v))
	}
	if len(vec) < n {
		return math.NaN(), nil, errors.Errorf("%d %d", len(vec), n)
	}
	vec = vec[:n]

	// Remove the global phase of the eigenvector.
	k := 0
	for i, v := range vec {
		if cmplx.Abs(v) > cmplx.Abs(vec[k]) {
			k = i
		}
	}
	if vec[k] == 0 {
		return math.NaN(), nil, errors.Errorf("%#v", shape)
	}
	phase := vec[k] / complex(cmplx.Abs(vec[k]), 0)
	x := tensor.Zeros(shape...)
	for i, v := range vec {
		x.Data()[i] = real(v / phase)
	}
	x.Scale(1 / x.Norm())

	lambda := tensor.Dot(x, apply(x))
	if p.Verbosity > 0 {
		log.Printf("arnoldi n %d shift %f lambda %.16f", n, shift, lambda)
	}
	return lambda, x, nil
}
