package itensors

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/kbidzhiev/itensors/dmrg"
	"github.com/kbidzhiev/itensors/exactdiag"
	"github.com/kbidzhiev/itensors/mpo"
	"github.com/kbidzhiev/itensors/mps"
	"github.com/kbidzhiev/itensors/tensor"
)

func TestTransverseFieldIsing(t *testing.T) {
	t.Parallel()
	// The chain of 4 spins at unit field.
	m, err := TransverseFieldIsing([2]int{4, 1}, 1)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	h, err := exactdiag.Hamiltonian(m.OpSum, m.Sites)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	// The diagonal counts the aligned minus the anti-aligned neighbors.
	diag := []float64{-3, -1, 1, -1, 1, 3, 1, -1, -1, 1, 3, 1, -1, 1, -1, -3}
	for i, d := range diag {
		if h.At(i, i) != d {
			t.Fatalf("%d %f %f", i, h.At(i, i), d)
		}
	}

	// A 2 by 2 lattice has 4 bonds.
	sq, err := TransverseFieldIsing([2]int{2, 2}, 0.5)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if l := len(sq.OpSum.Terms()); l != 4+4 {
		t.Fatalf("%d", l)
	}
}

func TestGetStatistics(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n             [2]int
		h             float64
		magnetization float64
		binder        float64
		tol           float64
	}{
		{n: [2]int{2, 2}, h: 1e-3, magnetization: 1, binder: 2. / 3, tol: 1e-4},
		{n: [2]int{3, 1}, h: 1e-3, magnetization: 1, binder: 2. / 3, tol: 1e-4},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%#v", test.n), func(t *testing.T) {
			t.Parallel()
			m, err := TransverseFieldIsing(test.n, test.h)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			h, err := exactdiag.Hamiltonian(m.OpSum, m.Sites)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			vvs, err := exactdiag.Eigen(h)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			stats, err := GetStatistics(test.n, vvs)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if len(stats.EigenValue) != len(vvs) || !slices.IsSorted(stats.EigenValue) {
				t.Fatalf("%#v", stats.EigenValue)
			}
			if math.Abs(stats.Magnetization-test.magnetization) > test.tol {
				t.Fatalf("%f %f", stats.Magnetization, test.magnetization)
			}
			if math.Abs(stats.BinderCumulant-test.binder) > test.tol {
				t.Fatalf("%f %f", stats.BinderCumulant, test.binder)
			}
		})
	}

	if _, err := GetStatistics([2]int{3, 1}, []exactdiag.ValVec{{Val: 0, Vec: make([]float64, 4)}}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMeasureState(t *testing.T) {
	t.Parallel()
	n := [2]int{6, 1}
	m, err := TransverseFieldIsing(n, 0.5)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	h, err := mpo.Compile(m.OpSum, m.Sites)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	mz, err := mpo.Compile(MagnetizationZ(n[0]*n[1]), m.Sites)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	rng := rand.New(rand.NewPCG(0, 1))
	opt := dmrg.NewOptions().Quiet(true).EigsolveKrylovDim(20).EigsolveMaxIter(4)
	_, psi, err := dmrg.Optimize(h, mps.RandMPS(h, 4, rng), dmrg.NewSweeps(10).MaxDim(8), opt)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	stats := MeasureState(h, mz, psi)

	gs, err := exactdiag.GroundState(m.OpSum, m.Sites)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math.Abs(stats.Energy-gs.Val) > 1e-8 {
		t.Fatalf("%f %f", stats.Energy, gs.Val)
	}
	if math.Abs(stats.Variance) > 1e-6 {
		t.Fatalf("%g", stats.Variance)
	}

	// The magnetization of the exact ground state.
	mzd, err := exactdiag.Hamiltonian(MagnetizationZ(n[0]*n[1]), m.Sites)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	v := tensor.New(gs.Vec, len(gs.Vec))
	mv := tensor.Product(mzd, v, [][2]int{{1, 0}})
	expected := math.Sqrt(tensor.Dot(mv, mv)) / float64(n[0]*n[1])
	if math.Abs(stats.Magnetization-expected) > 1e-6 {
		t.Fatalf("%f %f", stats.Magnetization, expected)
	}
}

func TestNewModel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		n     [2]int
		terms int
	}{
		{name: "ising", n: [2]int{3, 1}, terms: 2 + 3},
		{name: "heisenberg", n: [2]int{2, 2}, terms: 3 * 4},
		{name: "tightbinding", n: [2]int{4, 1}, terms: 3 * 3},
	}
	for _, test := range tests {
		m, err := NewModel(test.name, test.n, 0.5, true)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if m.Name != test.name || len(m.Sites) != test.n[0]*test.n[1] || len(m.OpSum.Terms()) != test.terms {
			t.Fatalf("%s %d %d", m.Name, len(m.Sites), len(m.OpSum.Terms()))
		}
	}

	if _, err := NewModel("hubbard", [2]int{2, 1}, 1, false); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewModel("ising", [2]int{1, 1}, 1, false); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPickSpinUp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state    []byte
		expected []int8
	}{
		{state: []byte{0, 0, 1}, expected: []int8{1, 1, -1}},
		{state: []byte{1, 1, 0}, expected: []int8{1, 1, -1}},
		{state: []byte{1, 0}, expected: []int8{-1, 1}},
	}
	for _, test := range tests {
		up := make([]int8, len(test.state))
		pickSpinUp(up, test.state)
		if !slices.Equal(up, test.expected) {
			t.Fatalf("%#v %#v %#v", test.state, up, test.expected)
		}
	}
}

func TestBits(t *testing.T) {
	t.Parallel()
	states := make([]string, 0)
	for i, state := range bits(3) {
		states = append(states, fmt.Sprintf("%d:%v", i, state))
	}
	expected := []string{"0:[0 0 0]", "1:[0 0 1]", "2:[0 1 0]", "3:[0 1 1]", "4:[1 0 0]", "5:[1 0 1]", "6:[1 1 0]", "7:[1 1 1]"}
	if !slices.Equal(states, expected) {
		t.Fatalf("%#v", states)
	}
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}
