package dmrg

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/mpo"
	"github.com/kbidzhiev/itensors/mps"
	"github.com/kbidzhiev/itensors/tensor"
)

// Direction is the side whose site becomes orthonormal after a step.
type Direction int

const (
	// Left is the direction of the forward half sweep, which leaves left-normalized sites behind.
	Left Direction = iota
	// Right is the direction of the backward half sweep.
	Right
)

func (d Direction) String() string {
	if d == Left {
		return "left"
	}
	return "right"
}

// ProjectedOperator is an operator projected onto the two-site window of a state.
// Environments are cached between calls to Position,
// so between two calls the state may only change inside the window of the earlier call.
// Reset drops the cached environments, and must precede the first Position on a new state.
type ProjectedOperator interface {
	// Reset invalidates every cached environment.
	Reset()
	// Position moves the window to sites b and b+1 of psi.
	Position(psi mps.MPS, b int) error
	// Apply applies the projected operator to a two-site tensor of shape {left, up, up, right}.
	Apply(v *tensor.Dense) *tensor.Dense
	// NoiseTerms returns the perturbations of the density matrix of the side given by dir,
	// as matrices whose rows are indexed like that side of phi.
	NoiseTerms(phi *tensor.Dense, dir Direction) []*tensor.Dense
}

// ProjMPO is a single MPO projected onto a two-site window.
type ProjMPO struct {
	h *mpo.MPO
	// lenv[k] is the left environment of the sites before k, of shape {bra, mpo, ket}.
	lenv []*tensor.Dense
	// renv[k] is the right environment of the sites from k on.
	renv []*tensor.Dense
	// lenv[k] is valid for k <= lpos, and renv[k] for k >= rpos.
	lpos int
	rpos int
	b    int
}

// NewProjMPO returns h projected onto the window at the first two sites of a state yet to be positioned.
func NewProjMPO(h *mpo.MPO) *ProjMPO {
	n := h.Len()
	pm := &ProjMPO{h: h, lenv: make([]*tensor.Dense, n+1), renv: make([]*tensor.Dense, n+1), lpos: 0, rpos: n}
	pm.lenv[0] = tensor.Ones(1, 1, 1)
	pm.renv[n] = tensor.Ones(1, 1, 1)
	return pm
}

func (pm *ProjMPO) Reset() {
	n := pm.h.Len()
	pm.lpos, pm.rpos = 0, n
	clear(pm.lenv[1:n])
	clear(pm.renv[1:n])
}

func (pm *ProjMPO) Position(psi mps.MPS, b int) error {
	n := pm.h.Len()
	if len(psi) != n {
		return errors.Errorf("%d %d", len(psi), n)
	}
	if b < 0 || b+1 >= n {
		return errors.Errorf("%d %d", b, n)
	}
	for k := pm.lpos + 1; k <= b; k++ {
		pm.lenv[k] = mps.LExpression(pm.lenv[k-1], pm.h.Tensors[k-1], psi[k-1], psi[k-1])
	}
	for k := pm.rpos - 1; k >= b+2; k-- {
		pm.renv[k] = mps.RExpression(pm.renv[k+1], pm.h.Tensors[k], psi[k], psi[k])
	}
	pm.lpos, pm.rpos, pm.b = b, b+2, b
	return nil
}

// Apply contracts the environments and operator tensors of the window against v.
// See Equation 199, Section 6.2 Applying a Hamiltonian MPO to a mixed canonical state, Ulrich Schollwock.
func (pm *ProjMPO) Apply(v *tensor.Dense) *tensor.Dense {
	l, r := pm.lenv[pm.b], pm.renv[pm.b+2]
	w1, w2 := pm.h.Tensors[pm.b], pm.h.Tensors[pm.b+1]

	// lv is of shape {lTop, lMid, up1, up2, right}.
	lv := tensor.Product(l, v, [][2]int{{2, 0}})
	// wlv is of shape {mpoRight, mpoUp1, lTop, up2, right}.
	wlv := tensor.Product(w1, lv, [][2]int{{mpo.LeftAxis, 1}, {mpo.DownAxis, 2}})
	// wwlv is of shape {mpoRight2, mpoUp2, mpoUp1, lTop, right}.
	wwlv := tensor.Product(w2, wlv, [][2]int{{mpo.LeftAxis, 0}, {mpo.DownAxis, 3}})
	// rwwlv is of shape {rTop, mpoUp2, mpoUp1, lTop}.
	rwwlv := tensor.Product(r, wwlv, [][2]int{{1, 0}, {2, 4}})
	return rwwlv.Transpose(3, 2, 1, 0)
}

// NoiseTerms returns the two-site tensor with the operator of the orthonormalized side applied,
// leaving the link of the operator towards the other side open.
func (pm *ProjMPO) NoiseTerms(phi *tensor.Dense, dir Direction) []*tensor.Dense {
	s := phi.Shape()
	switch dir {
	case Left:
		l, w1 := pm.lenv[pm.b], pm.h.Tensors[pm.b]
		// lphi is of shape {lTop, lMid, up1, up2, right}.
		lphi := tensor.Product(l, phi, [][2]int{{2, 0}})
		// nt is of shape {mpoRight, mpoUp1, lTop, up2, right}.
		nt := tensor.Product(w1, lphi, [][2]int{{mpo.LeftAxis, 1}, {mpo.DownAxis, 2}})
		return []*tensor.Dense{nt.Transpose(2, 1, 0, 3, 4).Reshape(s[0]*s[1], -1)}
	default:
		r, w2 := pm.renv[pm.b+2], pm.h.Tensors[pm.b+1]
		// phir is of shape {left, up1, up2, rTop, rMid}.
		phir := tensor.Product(phi, r, [][2]int{{3, 2}})
		// nt is of shape {mpoLeft, mpoUp2, left, up1, rTop}.
		nt := tensor.Product(w2, phir, [][2]int{{mpo.RightAxis, 4}, {mpo.DownAxis, 2}})
		return []*tensor.Dense{nt.Transpose(1, 4, 0, 2, 3).Reshape(s[2]*s[3], -1)}
	}
}

// ProjMPOSum is a sum of MPOs projected onto a two-site window.
// The MPOs are applied one by one and never summed into a single MPO.
type ProjMPOSum struct {
	terms []*ProjMPO
}

func NewProjMPOSum(hs []*mpo.MPO) *ProjMPOSum {
	ps := &ProjMPOSum{terms: make([]*ProjMPO, 0, len(hs))}
	for _, h := range hs {
		ps.terms = append(ps.terms, NewProjMPO(h))
	}
	return ps
}

func (ps *ProjMPOSum) Reset() {
	for _, pm := range ps.terms {
		pm.Reset()
	}
}

func (ps *ProjMPOSum) Position(psi mps.MPS, b int) error {
	for i, pm := range ps.terms {
		if err := pm.Position(psi, b); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", i))
		}
	}
	return nil
}

func (ps *ProjMPOSum) Apply(v *tensor.Dense) *tensor.Dense {
	hv := ps.terms[0].Apply(v)
	for _, pm := range ps.terms[1:] {
		hv.Add(1, pm.Apply(v))
	}
	return hv
}

func (ps *ProjMPOSum) NoiseTerms(phi *tensor.Dense, dir Direction) []*tensor.Dense {
	nts := make([]*tensor.Dense, 0, len(ps.terms))
	for _, pm := range ps.terms {
		nts = append(nts, pm.NoiseTerms(phi, dir)...)
	}
	return nts
}

// ProjMPS is a state projected onto a two-site window of another state.
type ProjMPS struct {
	m mps.MPS
	// lenv[k] is the overlap of the sites before k, of shape {m, psi}.
	lenv []*tensor.Dense
	renv []*tensor.Dense
	lpos int
	rpos int
	// local is m contracted with the environments, of the shape of the two-site tensors of psi.
	local *tensor.Dense
}

func NewProjMPS(m mps.MPS) *ProjMPS {
	n := len(m)
	pm := &ProjMPS{m: m, lenv: make([]*tensor.Dense, n+1), renv: make([]*tensor.Dense, n+1), lpos: 0, rpos: n}
	pm.lenv[0] = tensor.Ones(1, 1)
	pm.renv[n] = tensor.Ones(1, 1)
	return pm
}

func (pm *ProjMPS) Reset() {
	n := len(pm.m)
	pm.lpos, pm.rpos = 0, n
	clear(pm.lenv[1:n])
	clear(pm.renv[1:n])
	pm.local = nil
}

func (pm *ProjMPS) Position(psi mps.MPS, b int) error {
	n := len(pm.m)
	if len(psi) != n {
		return errors.Errorf("%d %d", len(psi), n)
	}
	if b < 0 || b+1 >= n {
		return errors.Errorf("%d %d", b, n)
	}
	for k := pm.lpos + 1; k <= b; k++ {
		pm.lenv[k] = mps.LOverlap(pm.lenv[k-1], pm.m[k-1], psi[k-1])
	}
	for k := pm.rpos - 1; k >= b+2; k-- {
		pm.renv[k] = mps.ROverlap(pm.renv[k+1], pm.m[k], psi[k])
	}
	pm.lpos, pm.rpos = b, b+2

	// lm is of shape {psiLeft, up1, mRight}.
	lm := tensor.Product(pm.lenv[b], pm.m[b], [][2]int{{0, mps.LeftAxis}})
	// lmm is of shape {psiLeft, up1, up2, mRight}.
	lmm := tensor.Product(lm, pm.m[b+1], [][2]int{{2, mps.LeftAxis}})
	pm.local = tensor.Product(lmm, pm.renv[b+2], [][2]int{{3, 0}})
	return nil
}

// Overlap returns the overlap of the projected state with the two-site tensor v.
func (pm *ProjMPS) Overlap(v *tensor.Dense) float64 {
	return tensor.Dot(pm.local, v)
}

// ProjMPOPenalty is an MPO plus weighted projectors onto excluded states, projected onto a two-site window.
// It applies h + weight * sum_i |m_i><m_i|.
type ProjMPOPenalty struct {
	h      *ProjMPO
	ms     []*ProjMPS
	weight float64
}

func NewProjMPOPenalty(h *mpo.MPO, excluded []mps.MPS, weight float64) *ProjMPOPenalty {
	pp := &ProjMPOPenalty{h: NewProjMPO(h), weight: weight}
	for _, m := range excluded {
		pp.ms = append(pp.ms, NewProjMPS(m))
	}
	return pp
}

func (pp *ProjMPOPenalty) Reset() {
	pp.h.Reset()
	for _, pm := range pp.ms {
		pm.Reset()
	}
}

func (pp *ProjMPOPenalty) Position(psi mps.MPS, b int) error {
	if err := pp.h.Position(psi, b); err != nil {
		return errors.Wrap(err, "")
	}
	for i, pm := range pp.ms {
		if err := pm.Position(psi, b); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", i))
		}
	}
	return nil
}

func (pp *ProjMPOPenalty) Apply(v *tensor.Dense) *tensor.Dense {
	hv := pp.h.Apply(v)
	for _, pm := range pp.ms {
		hv.Add(pp.weight*pm.Overlap(v), pm.local)
	}
	return hv
}

func (pp *ProjMPOPenalty) NoiseTerms(phi *tensor.Dense, dir Direction) []*tensor.Dense {
	return pp.h.NoiseTerms(phi, dir)
}
