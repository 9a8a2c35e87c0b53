package dmrg

import (
	"fmt"
	"math"
	"slices"

	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/tensor"
)

// Spectrum is the spectrum of the density matrix of a factorization.
type Spectrum struct {
	// Eigs are the kept eigenvalues in descending order, normalized to sum to one before truncation.
	Eigs []float64
	// TruncErr is the discarded weight.
	TruncErr float64
}

// factorize splits the two-site tensor phi of shape {left, up1, up2, right} into two site tensors.
// For dir Left the first tensor is left-normalized, otherwise the second tensor is right-normalized.
// The non-normalized tensor is scaled to unit norm.
func factorize(phi *tensor.Dense, dir Direction, p SweepParams, mode string, noiseTerms []*tensor.Dense) (*tensor.Dense, *tensor.Dense, Spectrum, error) {
	s := phi.Shape()
	if len(s) != 4 {
		panic(fmt.Sprintf("%#v", s))
	}
	m := phi.Reshape(s[0]*s[1], s[2]*s[3])

	var u, v *tensor.Dense
	var spec Spectrum
	var err error
	switch {
	case mode == DecompSVD, mode == DecompAutomatic && p.Noise == 0:
		u, v, spec, err = factorizeSVD(m, dir, p)
	default:
		u, v, spec, err = factorizeEigen(m, dir, p, noiseTerms)
	}
	if err != nil {
		return nil, nil, Spectrum{}, errors.Wrap(err, "")
	}

	switch dir {
	case Left:
		norm := v.Norm()
		if norm == 0 {
			return nil, nil, Spectrum{}, errors.Errorf("%#v", s)
		}
		v.Scale(1 / norm)
	default:
		norm := u.Norm()
		if norm == 0 {
			return nil, nil, Spectrum{}, errors.Errorf("%#v", s)
		}
		u.Scale(1 / norm)
	}
	k := u.Shape()[1]
	return u.Reshape(s[0], s[1], k), v.Reshape(k, s[2], s[3]), spec, nil
}

// factorizeSVD factorizes m = u @ v using the singular value decomposition.
func factorizeSVD(m *tensor.Dense, dir Direction, p SweepParams) (*tensor.Dense, *tensor.Dense, Spectrum, error) {
	u, sv, vt, err := tensor.SVD(m)
	if err != nil {
		return nil, nil, Spectrum{}, errors.Wrap(err, "")
	}
	probs := make([]float64, 0, len(sv))
	for _, x := range sv {
		probs = append(probs, x*x)
	}
	spec, k := truncate(probs, p)

	u = columns(u, k)
	vt = rows(vt, k)
	// Multiply the singular values into the side that is not orthonormalized.
	switch dir {
	case Left:
		vr, vc := vt.Shape()[0], vt.Shape()[1]
		for i := range vr {
			for j := range vc {
				vt.Data()[i*vc+j] *= sv[i]
			}
		}
	default:
		ur, uc := u.Shape()[0], u.Shape()[1]
		for i := range ur {
			for j := range uc {
				u.Data()[i*uc+j] *= sv[j]
			}
		}
	}
	return u, vt, spec, nil
}

// factorizeEigen factorizes m = u @ v using the eigendecomposition of the density matrix of the orthonormalized side.
// The density matrix is perturbed by noise times the noise terms.
// See Section 6.5 Density matrix perturbation, Ulrich Schollwock.
func factorizeEigen(m *tensor.Dense, dir Direction, p SweepParams, noiseTerms []*tensor.Dense) (*tensor.Dense, *tensor.Dense, Spectrum, error) {
	// rho is the density matrix of the rows of m for Left, and of its columns otherwise.
	var rho *tensor.Dense
	switch dir {
	case Left:
		rho = tensor.Product(m, m, [][2]int{{1, 1}})
	default:
		rho = tensor.Product(m, m, [][2]int{{0, 0}})
	}
	if p.Noise > 0 {
		for _, nt := range noiseTerms {
			rho.Add(p.Noise, tensor.Product(nt, nt, [][2]int{{1, 1}}))
		}
	}

	vals, vecs, err := tensor.EigenSym(rho)
	if err != nil {
		return nil, nil, Spectrum{}, errors.Wrap(err, "")
	}
	// Reorder in descending order.
	n := len(vals)
	slices.Reverse(vals)
	order := make([]int, 0, n)
	for i := n - 1; i >= 0; i-- {
		order = append(order, i)
	}
	for i, x := range vals {
		vals[i] = max(x, 0)
	}
	var total float64
	for _, x := range vals {
		total += x
	}
	if total > 0 {
		for i := range vals {
			vals[i] /= total
		}
	}
	spec, k := truncate(vals, p)

	// basis holds the kept eigenvectors as columns.
	basis := tensor.Zeros(n, k)
	for j := range k {
		for i := range n {
			basis.SetAt([]int{i, j}, vecs.At(i, order[j]))
		}
	}
	switch dir {
	case Left:
		return basis, tensor.Product(basis, m, [][2]int{{0, 0}}), spec, nil
	default:
		return tensor.Product(m, basis, [][2]int{{1, 0}}), basis.Transpose(1, 0), spec, nil
	}
}

// truncate returns the number of weights to keep and the resulting spectrum.
// weights are in descending order. The smallest weights are discarded as long as their sum stays within the cutoff
// relative to the total weight, subject to the link dimension bounds.
func truncate(weights []float64, p SweepParams) (Spectrum, int) {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 || math.IsNaN(total) {
		total = 1
	}

	k := len(weights)
	var discarded float64
	mindim := max(p.MinDim, 1)
	for k > mindim {
		w := weights[k-1] / total
		if k <= p.MaxDim && discarded+w > p.Cutoff {
			break
		}
		discarded += w
		k--
	}

	eigs := make([]float64, 0, k)
	for _, w := range weights[:k] {
		eigs = append(eigs, w/total)
	}
	return Spectrum{Eigs: eigs, TruncErr: discarded}, k
}

func columns(a *tensor.Dense, k int) *tensor.Dense {
	s := a.Shape()
	c := tensor.Zeros(s[0], k)
	for i := range s[0] {
		copy(c.Data()[i*k:(i+1)*k], a.Data()[i*s[1]:i*s[1]+k])
	}
	return c
}

func rows(a *tensor.Dense, k int) *tensor.Dense {
	s := a.Shape()
	return tensor.New(slices.Clone(a.Data()[:k*s[1]]), k, s[1])
}
