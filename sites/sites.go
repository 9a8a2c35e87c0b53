// Package sites defines the local Hilbert spaces of a chain and the operators acting on them.
package sites

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/tensor"
)

var (
	ErrUnknownOp = errors.New("unknown operator")
	ErrComplexOp = errors.New("operator has complex matrix elements")
)

// Params are named real parameters of an operator, such as a rotation angle.
type Params map[string]float64

// Site is the basis of a single chain position.
type Site interface {
	Name() string
	Dim() int
	// Op returns the matrix of an operator, with rows indexing the outgoing state.
	// Names of the form "A * B" denote the matrix product of A and B.
	Op(name string, params Params) (*tensor.Dense, error)
	// HasFermionString reports whether the operator anticommutes with operators on other sites.
	HasFermionString(name string) bool
	// QNs returns the conserved charge of each basis state, or nil if the site conserves nothing.
	QNs() []int
}

// Sites is an ordered chain of site bases.
type Sites []Site

// HasQNs reports whether every site carries quantum numbers.
func (s Sites) HasQNs() bool {
	if len(s) == 0 {
		return false
	}
	for _, si := range s {
		if si.QNs() == nil {
			return false
		}
	}
	return true
}

// Dims returns the physical dimension of each site.
func (s Sites) Dims() []int {
	dims := make([]int, 0, len(s))
	for _, si := range s {
		dims = append(dims, si.Dim())
	}
	return dims
}

// SpinHalf returns n spin 1/2 sites. If conserveSz, basis states carry 2*Sz as their charge.
func SpinHalf(n int, conserveSz bool) Sites {
	s := make(Sites, 0, n)
	for range n {
		s = append(s, spinHalf{conserveSz: conserveSz})
	}
	return s
}

// Fermion returns n spinless fermion sites. If conserveN, basis states carry their particle number.
func Fermion(n int, conserveN bool) Sites {
	s := make(Sites, 0, n)
	for range n {
		s = append(s, fermion{conserveN: conserveN})
	}
	return s
}

// Flux returns the charge an operator adds to a state.
// ok is false if the operator mixes different charges.
func Flux(op *tensor.Dense, qns []int) (flux int, ok bool) {
	if qns == nil {
		return 0, true
	}
	found := false
	for ij, v := range op.All() {
		if v == 0 {
			continue
		}
		f := qns[ij[0]] - qns[ij[1]]
		switch {
		case !found:
			flux, found = f, true
		case f != flux:
			return 0, false
		}
	}
	return flux, true
}

type table func(name string, params Params) (*tensor.Dense, error)

// compose resolves operator names of the form "A * B * C" as matrix products.
func compose(lookup table, name string, params Params) (*tensor.Dense, error) {
	parts := strings.Split(name, "*")
	var m *tensor.Dense
	for _, p := range parts {
		p = strings.TrimSpace(p)
		op, err := lookup(p, params)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%q", name))
		}
		if m == nil {
			m = op
			continue
		}
		m = tensor.Product(m, op, [][2]int{{1, 0}})
	}
	return m, nil
}

type spinHalf struct {
	conserveSz bool
}

func (s spinHalf) Name() string { return "S=1/2" }
func (s spinHalf) Dim() int     { return 2 }

func (s spinHalf) QNs() []int {
	if !s.conserveSz {
		return nil
	}
	return []int{1, -1}
}

func (s spinHalf) HasFermionString(string) bool { return false }

func (s spinHalf) Op(name string, params Params) (*tensor.Dense, error) {
	return compose(spinHalfOp, name, params)
}

// spinHalfOp looks up operators in the basis {Up, Dn}.
func spinHalfOp(name string, params Params) (*tensor.Dense, error) {
	switch name {
	case "Id", "F":
		return tensor.Eye(2), nil
	case "Sz":
		return tensor.T2([][]float64{{0.5, 0}, {0, -0.5}}), nil
	case "S+", "Sp":
		return tensor.T2([][]float64{{0, 1}, {0, 0}}), nil
	case "S-", "Sm":
		return tensor.T2([][]float64{{0, 0}, {1, 0}}), nil
	case "Sx":
		return tensor.T2([][]float64{{0, 0.5}, {0.5, 0}}), nil
	case "iSy":
		return tensor.T2([][]float64{{0, 0.5}, {-0.5, 0}}), nil
	case "X":
		return tensor.T2([][]float64{{0, 1}, {1, 0}}), nil
	case "iY":
		return tensor.T2([][]float64{{0, 1}, {-1, 0}}), nil
	case "Z":
		return tensor.T2([][]float64{{1, 0}, {0, -1}}), nil
	case "ProjUp":
		return tensor.T2([][]float64{{1, 0}, {0, 0}}), nil
	case "ProjDn":
		return tensor.T2([][]float64{{0, 0}, {0, 1}}), nil
	case "Ry":
		theta := params["theta"]
		c, s := math.Cos(theta/2), math.Sin(theta/2)
		return tensor.T2([][]float64{{c, -s}, {s, c}}), nil
	case "Sy", "Y":
		return nil, errors.Wrap(ErrComplexOp, name)
	}
	return nil, errors.Wrap(ErrUnknownOp, fmt.Sprintf("S=1/2 %q", name))
}

type fermion struct {
	conserveN bool
}

func (s fermion) Name() string { return "Fermion" }
func (s fermion) Dim() int     { return 2 }

func (s fermion) QNs() []int {
	if !s.conserveN {
		return nil
	}
	return []int{0, 1}
}

func (s fermion) HasFermionString(name string) bool {
	switch name {
	case "C", "Cdag":
		return true
	}
	return false
}

func (s fermion) Op(name string, params Params) (*tensor.Dense, error) {
	return compose(fermionOp, name, params)
}

// fermionOp looks up operators in the basis {Emp, Occ}.
func fermionOp(name string, _ Params) (*tensor.Dense, error) {
	switch name {
	case "Id":
		return tensor.Eye(2), nil
	case "N", "n":
		return tensor.T2([][]float64{{0, 0}, {0, 1}}), nil
	case "C", "A":
		return tensor.T2([][]float64{{0, 1}, {0, 0}}), nil
	case "Cdag", "Adag":
		return tensor.T2([][]float64{{0, 0}, {1, 0}}), nil
	case "F":
		return tensor.T2([][]float64{{1, 0}, {0, -1}}), nil
	}
	return nil, errors.Wrap(ErrUnknownOp, fmt.Sprintf("Fermion %q", name))
}
