// Package opsum builds symbolic sums of products of local operators,
// and brings them into the canonical form consumed by the MPO compiler.
package opsum

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/sites"
	"github.com/kbidzhiev/itensors/tensor"
)

var (
	ErrBadTerm = errors.New("malformed term")
)

// Op is a local operator acting on a single site.
type Op struct {
	Name   string
	Site   int
	Params sites.Params
	// Matrix, if not nil, is the numeric matrix of the operator, and Name is only a label.
	Matrix *tensor.Dense
}

func (o Op) key() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(o.Site))
	b.WriteByte(':')
	b.WriteString(o.Name)
	if len(o.Params) > 0 {
		b.WriteByte('{')
		for i, k := range slices.Sorted(maps.Keys(o.Params)) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(strconv.FormatFloat(o.Params[k], 'g', -1, 64))
		}
		b.WriteByte('}')
	}
	if o.Matrix != nil {
		b.WriteString(o.Matrix.String())
	}
	return b.String()
}

func (o Op) String() string {
	return fmt.Sprintf("%s(%d)", o.Name, o.Site)
}

func compareOp(a, b Op) int {
	if c := cmp.Compare(a.Site, b.Site); c != 0 {
		return c
	}
	return cmp.Compare(a.key(), b.key())
}

// Key returns a canonical string identifying a sequence of operators.
func Key(ops []Op) string {
	keys := make([]string, 0, len(ops))
	for _, o := range ops {
		keys = append(keys, o.key())
	}
	return strings.Join(keys, " ")
}

// Term is a coefficient times an ordered product of local operators.
type Term struct {
	Coef complex128
	Ops  []Op
}

// NewTerm normalizes its arguments into a term.
// Arguments are an optional leading coefficient, followed by any number of
// operator name and site pairs (each optionally followed by sites.Params),
// Op values, numeric matrices followed by a site, or Terms whose coefficients multiply in.
func NewTerm(args ...any) (Term, error) {
	t := Term{Coef: 1}
	for i := 0; i < len(args); i++ {
		switch a := args[i].(type) {
		case int, int64, float64, float32, complex128, complex64:
			if i != 0 {
				return Term{}, errors.Wrap(ErrBadTerm, fmt.Sprintf("%d %#v", i, args))
			}
			t.Coef = toComplex(a)
		case Op:
			t.Ops = append(t.Ops, a)
		case Term:
			t.Coef *= a.Coef
			t.Ops = append(t.Ops, a.Ops...)
		case string, *tensor.Dense:
			if i+1 >= len(args) {
				return Term{}, errors.Wrap(ErrBadTerm, fmt.Sprintf("%d %#v", i, args))
			}
			site, ok := args[i+1].(int)
			if !ok {
				return Term{}, errors.Wrap(ErrBadTerm, fmt.Sprintf("%d %#v", i+1, args))
			}
			op := Op{Site: site}
			switch a := a.(type) {
			case string:
				op.Name = a
			case *tensor.Dense:
				op.Matrix = a
			}
			i++
			if i+1 < len(args) {
				if p, ok := args[i+1].(sites.Params); ok {
					op.Params = p
					i++
				}
			}
			t.Ops = append(t.Ops, op)
		default:
			return Term{}, errors.Wrap(ErrBadTerm, fmt.Sprintf("%d %#v", i, args))
		}
	}
	if len(t.Ops) == 0 {
		return Term{}, errors.Wrap(ErrBadTerm, fmt.Sprintf("%#v", args))
	}
	return t, nil
}

// Key identifies the operator content of a term, ignoring its coefficient.
func (t Term) Key() string { return Key(t.Ops) }

// Scale returns a copy of t with its coefficient multiplied by c.
func (t Term) Scale(c complex128) Term {
	return Term{Coef: t.Coef * c, Ops: slices.Clone(t.Ops)}
}

func (t Term) String() string {
	ss := make([]string, 0, len(t.Ops)+1)
	switch {
	case imag(t.Coef) == 0:
		ss = append(ss, strconv.FormatFloat(real(t.Coef), 'g', -1, 64))
	default:
		ss = append(ss, strconv.FormatComplex(t.Coef, 'g', -1, 128))
	}
	for _, o := range t.Ops {
		ss = append(ss, o.String())
	}
	return strings.Join(ss, " ")
}

func compareTerms(a, b Term) int {
	for i, o := range a.Ops {
		if i >= len(b.Ops) {
			return 1
		}
		if c := compareOp(o, b.Ops[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a.Ops), len(b.Ops))
}

// OpSum is a sum of terms.
type OpSum struct {
	terms []Term
}

func New() *OpSum {
	return &OpSum{}
}

// Add appends the term built by NewTerm(args...).
func (os *OpSum) Add(args ...any) error {
	t, err := NewTerm(args...)
	if err != nil {
		return errors.Wrap(err, "")
	}
	os.AddTerm(t)
	return nil
}

// Subtract appends the negative of the term built by NewTerm(args...).
func (os *OpSum) Subtract(args ...any) error {
	t, err := NewTerm(args...)
	if err != nil {
		return errors.Wrap(err, "")
	}
	os.SubtractTerm(t)
	return nil
}

func (os *OpSum) AddTerm(t Term) {
	os.terms = append(os.terms, t.Scale(1))
}

func (os *OpSum) SubtractTerm(t Term) {
	os.terms = append(os.terms, t.Scale(-1))
}

func (os *OpSum) Len() int { return len(os.terms) }

// Terms returns a copy of the terms.
func (os *OpSum) Terms() []Term {
	terms := make([]Term, 0, len(os.terms))
	for _, t := range os.terms {
		terms = append(terms, t.Scale(1))
	}
	return terms
}

func (os *OpSum) Clone() *OpSum {
	return &OpSum{terms: os.Terms()}
}

func (os *OpSum) String() string {
	ss := make([]string, 0, len(os.terms))
	for _, t := range os.terms {
		ss = append(ss, t.String())
	}
	return strings.Join(ss, "\n")
}

func toComplex(a any) complex128 {
	switch a := a.(type) {
	case int:
		return complex(float64(a), 0)
	case int64:
		return complex(float64(a), 0)
	case float64:
		return complex(a, 0)
	case float32:
		return complex(float64(a), 0)
	case complex64:
		return complex128(a)
	case complex128:
		return a
	}
	panic(fmt.Sprintf("%#v", a))
}
