// Package itensors builds the lattice models solved by the sweep optimizer, and measures their ground states.
package itensors

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/exactdiag"
	"github.com/kbidzhiev/itensors/mpo"
	"github.com/kbidzhiev/itensors/mps"
	"github.com/kbidzhiev/itensors/opsum"
	"github.com/kbidzhiev/itensors/sites"
)

// Model is a Hamiltonian on a lattice of sites.
type Model struct {
	Name  string
	N     [2]int
	OpSum *opsum.OpSum
	Sites sites.Sites
}

// index returns the position of lattice site yx on the chain, snaking row by row.
func index(n [2]int, yx [2]int) int {
	return yx[0]*n[1] + yx[1]
}

// neighbors calls f for every bond of the lattice, each pair of sites in the order up then left.
func neighbors(n [2]int, f func(i, j int) error) error {
	for y := range n[0] {
		for x := range n[1] {
			if up := y - 1; up >= 0 {
				if err := f(index(n, [2]int{up, x}), index(n, [2]int{y, x})); err != nil {
					return errors.Wrap(err, "")
				}
			}
			if left := x - 1; left >= 0 {
				if err := f(index(n, [2]int{y, left}), index(n, [2]int{y, x})); err != nil {
					return errors.Wrap(err, "")
				}
			}
		}
	}
	return nil
}

func checkLattice(n [2]int) error {
	if n[0] < 1 || n[1] < 1 || n[0]*n[1] < 2 {
		return errors.Errorf("%#v", n)
	}
	return nil
}

// TransverseFieldIsing returns -sum_<ij> Z_i Z_j - h sum_i X_i on an n[0] by n[1] lattice.
func TransverseFieldIsing(n [2]int, h float64) (Model, error) {
	if err := checkLattice(n); err != nil {
		return Model{}, errors.Wrap(err, "")
	}
	os := opsum.New()
	err := neighbors(n, func(i, j int) error {
		return os.Add(-1, "Z", i, "Z", j)
	})
	if err != nil {
		return Model{}, errors.Wrap(err, "")
	}
	for i := range n[0] * n[1] {
		if err := os.Add(-h, "X", i); err != nil {
			return Model{}, errors.Wrap(err, "")
		}
	}
	return Model{Name: "ising", N: n, OpSum: os, Sites: sites.SpinHalf(n[0]*n[1], false)}, nil
}

// Heisenberg returns j sum_<ij> S_i . S_j on an n[0] by n[1] lattice.
func Heisenberg(n [2]int, j float64, conserveSz bool) (Model, error) {
	if err := checkLattice(n); err != nil {
		return Model{}, errors.Wrap(err, "")
	}
	os := opsum.New()
	err := neighbors(n, func(a, b int) error {
		if err := os.Add(j, "Sz", a, "Sz", b); err != nil {
			return err
		}
		if err := os.Add(j/2, "S+", a, "S-", b); err != nil {
			return err
		}
		return os.Add(j/2, "S-", a, "S+", b)
	})
	if err != nil {
		return Model{}, errors.Wrap(err, "")
	}
	return Model{Name: "heisenberg", N: n, OpSum: os, Sites: sites.SpinHalf(n[0]*n[1], conserveSz)}, nil
}

// TightBinding returns spinless fermions hopping with amplitude t and repelling with strength v between neighbors,
// -t sum_<ij> (c+_i c_j + c+_j c_i) + v sum_<ij> n_i n_j.
func TightBinding(n [2]int, t, v float64, conserveN bool) (Model, error) {
	if err := checkLattice(n); err != nil {
		return Model{}, errors.Wrap(err, "")
	}
	os := opsum.New()
	err := neighbors(n, func(i, j int) error {
		if err := os.Add(-t, "Cdag", i, "C", j); err != nil {
			return err
		}
		if err := os.Add(-t, "Cdag", j, "C", i); err != nil {
			return err
		}
		if v == 0 {
			return nil
		}
		return os.Add(v, "N", i, "N", j)
	})
	if err != nil {
		return Model{}, errors.Wrap(err, "")
	}
	return Model{Name: "tightbinding", N: n, OpSum: os, Sites: sites.Fermion(n[0]*n[1], conserveN)}, nil
}

// NewModel returns the model of the given name, with coupling being the transverse field of "ising",
// the exchange of "heisenberg", and the repulsion of "tightbinding".
func NewModel(name string, n [2]int, coupling float64, conserveQNs bool) (Model, error) {
	switch name {
	case "ising":
		return TransverseFieldIsing(n, coupling)
	case "heisenberg":
		return Heisenberg(n, coupling, conserveQNs)
	case "tightbinding":
		return TightBinding(n, 1, coupling, conserveQNs)
	}
	return Model{}, errors.Errorf("%q", name)
}

// MagnetizationZ returns sum_i Z_i.
func MagnetizationZ(numSpins int) *opsum.OpSum {
	os := opsum.New()
	for i := range numSpins {
		if err := os.Add("Z", i); err != nil {
			panic(fmt.Sprintf("%+v", err))
		}
	}
	return os
}

// StateStatistics are measurements of a matrix product state.
type StateStatistics struct {
	Energy   float64
	Variance float64
	// Magnetization is sqrt(<M^2>) per spin, where M = sum_i Z_i.
	Magnetization float64
}

// MeasureState measures psi against the Hamiltonian h and the magnetization mz.
func MeasureState(h, mz *mpo.MPO, psi mps.MPS) StateStatistics {
	var s StateStatistics
	s.Energy = mps.Expect(h, psi)
	s.Variance = mps.Variance(h, psi)
	s.Magnetization = math.Sqrt(max(mps.H2(mz, psi), 0)) / float64(len(psi))
	return s
}

// Statistics are measurements of the exact spectrum of a spin lattice.
type Statistics struct {
	EigenValue     []float64
	Magnetization  float64
	BinderCumulant float64
}

// GetStatistics measures the exact eigenstates vvs of a spin lattice, where vvs[0] is the ground state.
// The magnetization and the Binder cumulant are computed in the basis where the majority of spins is up,
// since the symmetric ground state of a finite lattice has no net magnetization.
func GetStatistics(n [2]int, vvs []exactdiag.ValVec) (Statistics, error) {
	var stats Statistics
	for _, vv := range vvs {
		stats.EigenValue = append(stats.EigenValue, vv.Val)
	}
	ground := vvs[0]
	numSpins := n[0] * n[1]
	if len(ground.Vec) != 1<<numSpins {
		return Statistics{}, errors.Errorf("%d %d", len(ground.Vec), 1<<numSpins)
	}
	// spinUpBasis is the basis where the majority of spins are up.
	spinUpBasis := make([]int8, numSpins)
	var totalProb float64
	var m2 float64
	for i, fullBasis := range bits(numSpins) {
		pickSpinUp(spinUpBasis, fullBasis)
		amplitude := ground.Vec[i]
		probability := amplitude * amplitude

		var basisM float64
		for _, spin := range spinUpBasis {
			basisM += float64(spin)
		}

		totalProb += probability
		stats.Magnetization += probability * basisM
		stats.BinderCumulant += probability * math.Pow(basisM, 4)
		m2 += probability * math.Pow(basisM, 2)
	}
	if math.Abs(totalProb-1) > 1e-6 {
		return Statistics{}, errors.Errorf("%f", totalProb)
	}

	stats.Magnetization /= float64(numSpins)
	stats.BinderCumulant /= (m2 * m2)
	stats.BinderCumulant = 1 - stats.BinderCumulant/3
	return stats, nil
}

// pickSpinUp writes the spins of state into upState, flipping all of them if most are down.
// In state, 0 is an up spin and 1 a down spin.
func pickSpinUp(upState []int8, state []byte) {
	downs := 0
	for _, b := range state {
		if b == 1 {
			downs++
		}
	}

	ups := len(state) - downs
	flip := ups < downs
	for i, b := range state {
		spin := int8(1)
		if b == 1 {
			spin = -1
		}
		if flip {
			spin = -spin
		}
		upState[i] = spin
	}
}

// indexBit writes the n binary digits of i into state, most significant first.
func indexBit(state []byte, n, i int) {
	stateStr := strconv.FormatInt(int64(i), 2)

	state = state[:0]
	// Pad zeros in front.
	for j := 0; j < n-len(stateStr); j++ {
		state = append(state, 0)
	}
	for _, bit := range []byte(stateStr) {
		state = append(state, bit-'0')
	}
}

// bits iterates over the basis states of n sites in the order of their index.
// The yielded slice is reused between iterations.
func bits(n int) func(yield func(int, []byte) bool) {
	state := make([]byte, n)
	return func(yield func(int, []byte) bool) {
		numStates := 1 << n
		for i := range numStates {
			indexBit(state, n, i)
			if !yield(i, state) {
				return
			}
		}
	}
}
