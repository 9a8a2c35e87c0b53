package opsum

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/sites"
	"github.com/kbidzhiev/itensors/tensor"
)

var (
	ErrOddParity      = errors.New("parity-odd fermionic term")
	ErrSiteOutOfRange = errors.New("operator site out of range")
)

// Canonicalize returns a copy of os in which the operators of every term are sorted by site.
// Reordering anticommuting operators flips the sign of the coefficient,
// and the local pieces of the Jordan-Wigner strings are attached as "<op> * F".
// Canonicalize is idempotent.
func Canonicalize(os *OpSum, s sites.Sites) (*OpSum, error) {
	out := &OpSum{terms: make([]Term, 0, len(os.terms))}
	for i, t := range os.terms {
		ct, err := canonicalizeTerm(t, s)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%d %s", i, t))
		}
		out.terms = append(out.terms, ct)
	}
	return out, nil
}

func canonicalizeTerm(t Term, s sites.Sites) (Term, error) {
	for _, o := range t.Ops {
		if o.Site < 0 || o.Site >= len(s) {
			return Term{}, errors.Wrap(ErrSiteOutOfRange, fmt.Sprintf("%s %d", o, len(s)))
		}
	}

	perm := make([]int, len(t.Ops))
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(a, b int) int { return cmp.Compare(t.Ops[a].Site, t.Ops[b].Site) })
	ops := make([]Op, 0, len(t.Ops))
	for _, p := range perm {
		ops = append(ops, t.Ops[p])
	}

	parity := 1
	prevSite := len(s)
	for i := len(ops) - 1; i >= 0; i-- {
		o := ops[i]
		// Put the local piece of the string emanating from fermions to the right.
		// The strings on sites without operators are put in by the MPO compiler.
		if parity == -1 && o.Site < prevSite && !hasString(o.Name) {
			so, err := withString(o, s[o.Site])
			if err != nil {
				return Term{}, errors.Wrap(err, "")
			}
			ops[i] = so
		}
		prevSite = o.Site

		switch {
		case IsFermionic(s[o.Site], o):
			parity = -parity
		default:
			perm[i] = -1
		}
	}
	if parity == -1 {
		return Term{}, errors.Wrap(ErrOddParity, t.String())
	}

	fermions := slices.DeleteFunc(perm, func(p int) bool { return p < 0 })
	return Term{Coef: t.Coef * complex(float64(permutationSign(fermions)), 0), Ops: ops}, nil
}

// IsFermionic reports whether an operator anticommutes with fermionic operators on other sites.
// A product "A * B" is fermionic if an odd number of its factors are.
func IsFermionic(s sites.Site, o Op) bool {
	if o.Matrix != nil {
		return false
	}
	fermionic := false
	for _, p := range strings.Split(o.Name, "*") {
		if s.HasFermionString(strings.TrimSpace(p)) {
			fermionic = !fermionic
		}
	}
	return fermionic
}

func hasString(name string) bool {
	parts := strings.Split(name, "*")
	return len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "F"
}

func withString(o Op, s sites.Site) (Op, error) {
	so := o
	so.Name = strings.TrimSpace(o.Name + " * F")
	if o.Matrix != nil {
		f, err := s.Op("F", nil)
		if err != nil {
			return Op{}, errors.Wrap(err, "")
		}
		so.Matrix = tensor.Product(o.Matrix, f, [][2]int{{1, 0}})
	}
	return so, nil
}

// permutationSign returns the sign of the permutation that sorts p.
func permutationSign(p []int) int {
	sign := 1
	for i := range p {
		for j := i + 1; j < len(p); j++ {
			if p[i] > p[j] {
				sign = -sign
			}
		}
	}
	return sign
}

// Merge returns a copy of os in which terms with identical operators are combined by adding their coefficients.
// Terms whose coefficients cancel are kept.
// If any operator is given as a numeric matrix, the terms are returned unmerged.
func Merge(os *OpSum) *OpSum {
	out := os.Clone()
	for _, t := range out.terms {
		for _, o := range t.Ops {
			if o.Matrix != nil {
				return out
			}
		}
	}

	slices.SortStableFunc(out.terms, compareTerms)
	merged := make([]Term, 0, len(out.terms))
	for _, t := range out.terms {
		if n := len(merged); n > 0 && compareTerms(merged[n-1], t) == 0 {
			merged[n-1].Coef += t.Coef
			continue
		}
		merged = append(merged, t)
	}
	out.terms = merged
	return out
}
