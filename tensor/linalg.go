package tensor

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SVD computes the thin singular value decomposition a = u * diag(s) * vt of a matrix.
// Singular values are in descending order.
func SVD(a *Dense) (*Dense, []float64, *Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a.Matrix(), mat.SVDThin); !ok {
		return nil, nil, nil, errors.Errorf("%#v", a.shape)
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	return FromMatrix(&u), s, FromMatrix(v.T()), nil
}

// QR computes the thin decomposition a = q * r of a matrix, where q has orthonormal columns.
// For wide matrices, the decomposition falls back to q = u and r = diag(s) * vt of the SVD.
func QR(a *Dense) (*Dense, *Dense, error) {
	if len(a.shape) != 2 {
		panic(fmt.Sprintf("%#v", a.shape))
	}
	rows, cols := a.shape[0], a.shape[1]
	if rows < cols {
		u, s, vt, err := SVD(a)
		if err != nil {
			return nil, nil, errors.Wrap(err, "")
		}
		for i, si := range s {
			for j := range cols {
				vt.data[i*cols+j] *= si
			}
		}
		return u, vt, nil
	}

	var qr mat.QR
	qr.Factorize(a.Matrix())
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)
	return FromMatrix(q.Slice(0, rows, 0, cols)), FromMatrix(r.Slice(0, cols, 0, cols)), nil
}

// EigenSym computes the eigendecomposition of the symmetric part of a square matrix.
// Eigenvalues are in ascending order, and the columns of the returned matrix are the eigenvectors.
func EigenSym(a *Dense) ([]float64, *Dense, error) {
	if len(a.shape) != 2 || a.shape[0] != a.shape[1] {
		panic(fmt.Sprintf("%#v", a.shape))
	}
	n := a.shape[0]
	sym := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (a.data[i*n+j]+a.data[j*n+i])/2)
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, nil, errors.Errorf("%#v", a.shape)
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	return vals, FromMatrix(&vecs), nil
}
