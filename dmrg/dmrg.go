// Package dmrg implements the two-site density matrix renormalization group ground state search.
//
// References:
//   - The density-matrix renormalization group in the age of matrix product states, Ulrich Schollwock
//   - Density-matrix algorithms for quantum renormalization groups, Steven R. White
//   - Density matrix renormalization group algorithms with a single center site, Steven R. White
package dmrg

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/mpo"
	"github.com/kbidzhiev/itensors/mps"
	"github.com/kbidzhiev/itensors/tensor"
	"github.com/kbidzhiev/itensors/util"
)

// Optimize searches for the ground state of h, starting from psi0.
// psi0 is owned by the optimization, which mutates it in place and returns it along with the energy.
func Optimize(h *mpo.MPO, psi0 mps.MPS, sweeps Sweeps, options ...Options) (float64, mps.MPS, error) {
	if h.Len() != len(psi0) {
		return 0, nil, errors.Errorf("%d %d", h.Len(), len(psi0))
	}
	return Run(NewProjMPO(h), psi0, sweeps, options...)
}

// OptimizeSum searches for the ground state of the sum of hs.
func OptimizeSum(hs []*mpo.MPO, psi0 mps.MPS, sweeps Sweeps, options ...Options) (float64, mps.MPS, error) {
	if len(hs) == 0 {
		return 0, nil, errors.Errorf("no operators")
	}
	for i, h := range hs {
		if h.Len() != len(psi0) {
			return 0, nil, errors.Errorf("%d %d %d", i, h.Len(), len(psi0))
		}
	}
	return Run(NewProjMPOSum(hs), psi0, sweeps, options...)
}

// OptimizePenalty searches for the ground state of h + weight * sum_i |excluded_i><excluded_i|,
// which for a large enough weight is the lowest state orthogonal to the excluded states.
func OptimizePenalty(h *mpo.MPO, excluded []mps.MPS, weight float64, psi0 mps.MPS, sweeps Sweeps, options ...Options) (float64, mps.MPS, error) {
	if h.Len() != len(psi0) {
		return 0, nil, errors.Errorf("%d %d", h.Len(), len(psi0))
	}
	for i, m := range excluded {
		if len(m) != len(psi0) {
			return 0, nil, errors.Errorf("%d %d %d", i, len(m), len(psi0))
		}
	}
	return Run(NewProjMPOPenalty(h, excluded, weight), psi0, sweeps, options...)
}

// Run sweeps over psi, optimizing each pair of neighboring sites against the projected operator pm.
// See Section 6.3 Iterative ground state search, Ulrich Schollwock.
func Run(pm ProjectedOperator, psi mps.MPS, sweeps Sweeps, options ...Options) (float64, mps.MPS, error) {
	opt := NewOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	if err := opt.validate(sweeps); err != nil {
		return 0, nil, errors.Wrap(err, "")
	}
	if len(psi) < 2 {
		return 0, nil, errors.Errorf("%d", len(psi))
	}

	if err := psi.Orthogonalize(0); err != nil {
		return 0, nil, errors.Wrap(err, "")
	}
	// The norm of a state with center 0 is the norm of its first site.
	norm := psi[0].Norm()
	if norm == 0 || math.IsNaN(norm) {
		return 0, nil, errors.Errorf("%f", norm)
	}
	psi[0].Scale(1 / norm)
	pm.Reset()
	if err := pm.Position(psi, 0); err != nil {
		return 0, nil, errors.Wrap(err, "")
	}

	s := &sweeper{pm: pm, psi: psi, opt: opt, throttler: util.NewSkipThrottler(time.Second)}
	var energy float64
	for sw := 1; sw <= sweeps.Len(); sw++ {
		start := time.Now()
		p := sweeps.At(sw - 1)
		var maxTruncErr float64
		for halfSweep := 1; halfSweep <= 2; halfSweep++ {
			for _, b := range bonds(len(psi), halfSweep) {
				var truncErr float64
				var err error
				energy, truncErr, err = s.step(b, sw, halfSweep, p)
				if err != nil {
					return 0, nil, errors.Wrap(err, fmt.Sprintf("sweep %d bond %d", sw, b))
				}
				maxTruncErr = max(maxTruncErr, truncErr)
			}
		}

		info := SweepInfo{Energy: energy, State: psi, Sweep: sw, MaxLinkDim: psi.MaxLinkDim(), MaxTruncErr: maxTruncErr, Elapsed: time.Since(start), Quiet: opt.quiet}
		if !opt.quiet && opt.outputLevel > 0 {
			log.Printf("After sweep %d energy=%.12f maxlinkdim=%d maxerr=%.2e time=%.3f", sw, energy, info.MaxLinkDim, maxTruncErr, info.Elapsed.Seconds())
		}
		if opt.observer.CheckDone(info) {
			break
		}
	}
	return energy, psi, nil
}

// bonds returns the bonds of a half sweep over n sites.
func bonds(n, halfSweep int) []int {
	bs := make([]int, 0, n-1)
	switch halfSweep {
	case 1:
		for b := 0; b <= n-2; b++ {
			bs = append(bs, b)
		}
	default:
		for b := n - 2; b >= 0; b-- {
			bs = append(bs, b)
		}
	}
	return bs
}

type sweeper struct {
	pm        ProjectedOperator
	psi       mps.MPS
	opt       Options
	throttler *util.SkipThrottler
}

// step optimizes the sites b and b+1.
func (s *sweeper) step(b, sw, halfSweep int, p SweepParams) (float64, float64, error) {
	dir := Left
	if halfSweep == 2 {
		dir = Right
	}
	psi, tracer := s.psi, s.opt.tracer

	done := tracer.Start("position")
	err := s.pm.Position(psi, b)
	done()
	if err != nil {
		return 0, 0, errors.Wrap(err, "")
	}

	done = tracer.Start("eigsolve")
	phi := tensor.Product(psi[b], psi[b+1], [][2]int{{mps.RightAxis, mps.LeftAxis}})
	energy, phi, err := s.opt.eigsolver.Solve(s.pm.Apply, phi, s.opt.eigsolve)
	done()
	if err != nil {
		return 0, 0, errors.Wrap(err, "")
	}

	var noiseTerms []*tensor.Dense
	if p.Noise > 0 {
		done = tracer.Start("noise")
		noiseTerms = s.pm.NoiseTerms(phi, dir)
		done()
	}

	done = tracer.Start("factorize")
	a, c, spec, err := factorize(phi, dir, p, s.opt.decomp, noiseTerms)
	done()
	if err != nil {
		return 0, 0, errors.Wrap(err, "")
	}
	psi[b], psi[b+1] = a, c

	done = tracer.Start("measure")
	s.opt.observer.Measure(StepInfo{Energy: energy, State: psi, Bond: b, Sweep: sw, HalfSweep: halfSweep, Direction: dir, Spectrum: spec, Quiet: s.opt.quiet})
	done()
	if !s.opt.quiet && s.opt.outputLevel > 1 && s.throttler.Ok() {
		log.Printf("sweep %d half %d bond %d energy=%.12f linkdim=%d truncerr=%.2e", sw, halfSweep, b, energy, len(spec.Eigs), spec.TruncErr)
	}
	return energy, spec.TruncErr, nil
}
