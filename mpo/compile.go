package mpo

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/opsum"
	"github.com/kbidzhiev/itensors/sites"
	"github.com/kbidzhiev/itensors/tensor"
	"github.com/kbidzhiev/itensors/util"
)

var (
	ErrEmptyOpSum  = errors.New("empty operator sum")
	ErrComplexTerm = errors.New("complex term")
	ErrMixedFlux   = errors.New("mixed flux")
)

type qnMode int

const (
	qnAuto qnMode = iota
	qnOn
	qnOff
)

// Options are options for compiling an MPO.
type Options struct {
	qn     qnMode
	tracer util.Tracer
}

// NewOptions returns the default compile options.
func NewOptions() Options {
	return Options{qn: qnAuto, tracer: util.NopTracer{}}
}

// ConserveQNs forces the charge conserving compilation on or off.
// By default charges are conserved if all sites carry them.
func (opt Options) ConserveQNs(conserve bool) Options {
	opt.qn = qnOff
	if conserve {
		opt.qn = qnOn
	}
	return opt
}

// Tracer sets the tracer that times the compile phases.
func (opt Options) Tracer(t util.Tracer) Options {
	opt.tracer = t
	return opt
}

// group is the product of the operators of a term on a single site.
type group struct {
	site      int
	ops       []opsum.Op
	m         *tensor.Dense
	fermionic bool
	flux      int
}

// term is a canonical term split into site groups.
type term struct {
	coef   float64
	groups []group
	// suffix[j] is the key of groups[j:], fermionic[j] its fermion parity, and flux[j] its charge.
	suffix    []string
	fermionic []bool
	flux      []int
}

func (t term) first() int { return t.groups[0].site }
func (t term) last() int  { return t.groups[len(t.groups)-1].site }

// tail returns the index of the first group right of the link between sites b and b+1.
func (t term) tail(b int) int {
	j, _ := slices.BinarySearchFunc(t.groups, b+1, func(g group, site int) int { return cmp.Compare(g.site, site) })
	return j
}

// Compile compiles a sum of operators into an MPO that reproduces it exactly.
// The charge conserving variant is chosen automatically if all sites carry quantum numbers.
func Compile(os *opsum.OpSum, s sites.Sites, options ...Options) (*MPO, error) {
	opt := NewOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	if opt.tracer == nil {
		opt.tracer = util.NopTracer{}
	}
	if os.Len() == 0 {
		return nil, errors.Wrap(ErrEmptyOpSum, "")
	}
	conserve := s.HasQNs()
	switch opt.qn {
	case qnOn:
		if !conserve {
			return nil, errors.Errorf("sites do not carry quantum numbers")
		}
	case qnOff:
		conserve = false
	}

	done := opt.tracer.Start("canonicalize")
	c, err := opsum.Canonicalize(os, s)
	done()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	done = opt.tracer.Start("merge")
	merged := opsum.Merge(c)
	done()

	terms, err := splitTerms(merged, s, conserve)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if conserve {
		return compileQN(terms, s, opt.tracer)
	}
	return compileDense(terms, s, opt.tracer)
}

func splitTerms(os *opsum.OpSum, s sites.Sites, conserve bool) ([]term, error) {
	terms := make([]term, 0, os.Len())
	for _, ot := range os.Terms() {
		if imag(ot.Coef) != 0 {
			return nil, errors.Wrap(ErrComplexTerm, ot.String())
		}
		// Cancelled terms would only add link states.
		if ot.Coef == 0 {
			continue
		}
		t := term{coef: real(ot.Coef)}
		for _, o := range ot.Ops {
			m := o.Matrix
			if m == nil {
				var err error
				m, err = s[o.Site].Op(o.Name, o.Params)
				if err != nil {
					return nil, errors.Wrap(err, ot.String())
				}
			}
			fermionic := opsum.IsFermionic(s[o.Site], o)

			n := len(t.groups)
			if n > 0 && t.groups[n-1].site == o.Site {
				g := &t.groups[n-1]
				g.ops = append(g.ops, o)
				g.m = tensor.Product(g.m, m, [][2]int{{1, 0}})
				g.fermionic = g.fermionic != fermionic
				continue
			}
			t.groups = append(t.groups, group{site: o.Site, ops: []opsum.Op{o}, m: m, fermionic: fermionic})
		}

		if conserve {
			for j := range t.groups {
				g := &t.groups[j]
				flux, ok := sites.Flux(g.m, s[g.site].QNs())
				if !ok {
					return nil, errors.Wrap(ErrMixedFlux, fmt.Sprintf("%s %d", ot, g.site))
				}
				g.flux = flux
			}
		}

		k := len(t.groups)
		t.suffix = make([]string, k+1)
		t.fermionic = make([]bool, k+1)
		t.flux = make([]int, k+1)
		ops := make([]opsum.Op, 0, len(ot.Ops))
		for j := k - 1; j >= 0; j-- {
			g := t.groups[j]
			ops = append(slices.Clone(g.ops), ops...)
			t.suffix[j] = opsum.Key(ops)
			t.fermionic[j] = t.fermionic[j+1] != g.fermionic
			t.flux[j] = t.flux[j+1] + g.flux
		}
		terms = append(terms, t)
	}
	return terms, nil
}

// linkKey identifies a state of the link between two sites.
type linkKey struct {
	tail string
	qn   int
}

// tailRef points to a term whose remaining groups start at j.
type tailRef struct {
	term int
	j    int
}

// linkMap assigns dense indices to the states of the link between sites b and b+1.
// The states are the terms that are done, the terms not yet started, and the distinct tails of the terms in progress.
type linkMap struct {
	index map[linkKey]int
	tails []tailRef
	// tailIdx[i] is the index of tails[i].
	tailIdx []int
	done    int
	start   int
	dim     int
	qns     []int
}

type linkKeyFunc func(t term, j int) linkKey

// newLinkMap builds the link map of the link between sites b and b+1.
// If qnOrdered, indices are sorted by charge, where a state's charge is the flux of the operators left of the link.
func newLinkMap(terms []term, b int, key linkKeyFunc, totalFlux int, qnOrdered bool) *linkMap {
	lm := &linkMap{index: make(map[linkKey]int)}
	keys := make([]linkKey, 0)
	for i, t := range terms {
		if !(t.first() <= b && b < t.last()) {
			continue
		}
		j := t.tail(b)
		k := key(t, j)
		if _, ok := lm.index[k]; ok {
			continue
		}
		lm.index[k] = -1
		keys = append(keys, k)
		lm.tails = append(lm.tails, tailRef{term: i, j: j})
	}

	type state struct {
		qn   int
		tail int
	}
	const doneState, startState = -1, -2
	states := make([]state, 0, len(keys)+2)
	states = append(states, state{qn: totalFlux, tail: doneState})
	for i, k := range keys {
		states = append(states, state{qn: k.qn, tail: i})
	}
	states = append(states, state{qn: 0, tail: startState})
	if qnOrdered {
		slices.SortStableFunc(states, func(a, b state) int { return cmp.Compare(a.qn, b.qn) })
	}

	lm.tailIdx = make([]int, len(keys))
	for idx, st := range states {
		switch st.tail {
		case doneState:
			lm.done = idx
		case startState:
			lm.start = idx
		default:
			lm.index[keys[st.tail]] = idx
			lm.tailIdx[st.tail] = idx
		}
		if qnOrdered {
			lm.qns = append(lm.qns, st.qn)
		}
	}
	lm.dim = len(states)
	return lm
}

// leftEdge is the link left of the first site, which only holds terms not yet started.
func leftEdge() *linkMap {
	return &linkMap{index: make(map[linkKey]int), done: -1, start: 0, dim: 1}
}

// rightEdge is the link right of the last site, which only holds terms that are done.
func rightEdge() *linkMap {
	return &linkMap{index: make(map[linkKey]int), done: 0, start: -1, dim: 1}
}

func compileDense(terms []term, s sites.Sites, tracer util.Tracer) (*MPO, error) {
	key := func(t term, j int) linkKey { return linkKey{tail: t.suffix[j]} }
	return compile(terms, s, key, 0, false, tracer)
}

func compileQN(terms []term, s sites.Sites, tracer util.Tracer) (*MPO, error) {
	var totalFlux int
	if len(terms) > 0 {
		totalFlux = terms[0].flux[0]
	}
	for _, t := range terms {
		if t.flux[0] != totalFlux {
			return nil, errors.Wrap(ErrMixedFlux, fmt.Sprintf("%d %d", t.flux[0], totalFlux))
		}
	}
	key := func(t term, j int) linkKey { return linkKey{tail: t.suffix[j], qn: totalFlux - t.flux[j]} }
	h, err := compile(terms, s, key, totalFlux, true, tracer)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkBlocks(h, s); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return h, nil
}

func compile(terms []term, s sites.Sites, key linkKeyFunc, totalFlux int, qnOrdered bool, tracer util.Tracer) (*MPO, error) {
	n := len(s)
	for _, t := range terms {
		if t.last() >= n {
			return nil, errors.Errorf("%d %d", t.last(), n)
		}
	}

	done := tracer.Start("links")
	links := make([]*linkMap, 0, n+1)
	links = append(links, leftEdge())
	for b := range n - 1 {
		links = append(links, newLinkMap(terms, b, key, totalFlux, qnOrdered))
	}
	links = append(links, rightEdge())
	done()

	done = tracer.Start("tensors")
	defer done()
	h := &MPO{Tensors: make([]*tensor.Dense, 0, n), Flux: totalFlux}
	if qnOrdered {
		for _, lm := range links[1:n] {
			h.LinkQN = append(h.LinkQN, lm.qns)
		}
	}
	for site := range n {
		w, err := siteTensor(terms, s, site, links[site], links[site+1], key)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%d", site))
		}
		h.Tensors = append(h.Tensors, w)
	}
	return h, nil
}

// siteTensor builds the transitions from the states of the left link to those of the right link at site n.
func siteTensor(terms []term, s sites.Sites, n int, left, right *linkMap, key linkKeyFunc) (*tensor.Dense, error) {
	d := s[n].Dim()
	id, err := s[n].Op("Id", nil)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	w := tensor.Zeros(left.dim, right.dim, d, d)
	add := func(l, r int, m *tensor.Dense, c float64) {
		for ij, v := range m.All() {
			if v != 0 {
				w.AddAt([]int{l, r, ij[0], ij[1]}, c*v)
			}
		}
	}
	target := func(t term, j int) int {
		if j == len(t.groups) {
			return right.done
		}
		r, ok := right.index[key(t, j)]
		if !ok {
			panic(fmt.Sprintf("%d %q", n, t.suffix[j]))
		}
		return r
	}

	if left.done >= 0 && right.done >= 0 {
		add(left.done, right.done, id, 1)
	}
	if left.start >= 0 && right.start >= 0 {
		add(left.start, right.start, id, 1)
	}

	for i, ref := range left.tails {
		l := left.tailIdx[i]
		t := terms[ref.term]
		g := t.groups[ref.j]
		if g.site == n {
			add(l, target(t, ref.j+1), g.m, 1)
			continue
		}

		// The tail passes through this site, carrying the Jordan-Wigner string if it is fermionic.
		pass := id
		if t.fermionic[ref.j] {
			pass, err = s[n].Op("F", nil)
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
		}
		add(l, target(t, ref.j), pass, 1)
	}

	for _, t := range terms {
		if t.first() != n {
			continue
		}
		add(left.start, target(t, 1), t.groups[0].m, t.coef)
	}
	return w, nil
}

// checkBlocks verifies that every element of a charge conserving MPO connects link charges differing by its flux.
func checkBlocks(h *MPO, s sites.Sites) error {
	for n, w := range h.Tensors {
		qns := s[n].QNs()
		for ijkl, v := range w.All() {
			if v == 0 {
				continue
			}
			lq := 0
			if n > 0 {
				lq = h.LinkQN[n-1][ijkl[LeftAxis]]
			}
			rq := h.Flux
			if n < len(h.Tensors)-1 {
				rq = h.LinkQN[n][ijkl[RightAxis]]
			}
			if rq-lq != qns[ijkl[UpAxis]]-qns[ijkl[DownAxis]] {
				return errors.Wrap(ErrMixedFlux, fmt.Sprintf("%d %#v", n, ijkl))
			}
		}
	}
	return nil
}
