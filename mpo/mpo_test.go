package mpo

import (
	"flag"
	"fmt"
	"log"
	"slices"
	"testing"

	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/exactdiag"
	"github.com/kbidzhiev/itensors/opsum"
	"github.com/kbidzhiev/itensors/sites"
	"github.com/kbidzhiev/itensors/tensor"
	"github.com/kbidzhiev/itensors/util"
)

func mustAdd(os *opsum.OpSum, args ...any) {
	if err := os.Add(args...); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
}

func szsz(n int) *opsum.OpSum {
	os := opsum.New()
	for i := range n - 1 {
		mustAdd(os, "Sz", i, "Sz", i+1)
	}
	return os
}

func heisenberg(n int) *opsum.OpSum {
	os := opsum.New()
	for i := range n - 1 {
		mustAdd(os, "Sz", i, "Sz", i+1)
		mustAdd(os, 0.5, "S+", i, "S-", i+1)
		mustAdd(os, 0.5, "S-", i, "S+", i+1)
	}
	return os
}

func hopping(n int) *opsum.OpSum {
	os := opsum.New()
	for i := range n - 1 {
		mustAdd(os, -1, "Cdag", i, "C", i+1)
		mustAdd(os, -1, "Cdag", i+1, "C", i)
		mustAdd(os, 0.3, "N", i, "N", i+1)
	}
	// Unsorted and long range terms.
	mustAdd(os, 0.7, "C", n-1, "Cdag", 0)
	mustAdd(os, 0.7, "C", 0, "Cdag", n-1)
	mustAdd(os, 0.2, "Cdag", 0, "N", 1, "C", n-1)
	mustAdd(os, 0.2, "Cdag", n-1, "N", 1, "C", 0)
	return os
}

func checkDense(t *testing.T, h *MPO, os *opsum.OpSum, s sites.Sites) {
	t.Helper()
	expected, err := exactdiag.Hamiltonian(os, s)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if d := h.Dense(); !tensor.EqualApprox(d, expected, 1e-12) {
		t.Fatalf("%s, expected %s", d, expected)
	}
}

func TestCompileSzSz(t *testing.T) {
	t.Parallel()
	for n := 3; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d", n), func(t *testing.T) {
			t.Parallel()
			s := sites.SpinHalf(n, false)
			h, err := Compile(szsz(n), s)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if h.Len() != n {
				t.Fatalf("%d", h.Len())
			}
			for b, d := range h.LinkDims() {
				if d != 3 {
					t.Fatalf("%d %#v", b, h.LinkDims())
				}
			}
			if h.LinkQN != nil {
				t.Fatalf("%#v", h.LinkQN)
			}
			checkDense(t, h, szsz(n), s)
		})
	}
}

func TestCompile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		os   *opsum.OpSum
		s    sites.Sites
	}{
		{name: "heisenberg", os: heisenberg(5), s: sites.SpinHalf(5, false)},
		{name: "heisenbergQN", os: heisenberg(5), s: sites.SpinHalf(5, true)},
		{name: "hopping", os: hopping(5), s: sites.Fermion(5, false)},
		{name: "hoppingQN", os: hopping(5), s: sites.Fermion(5, true)},
		{name: "hopping2", os: hopping(2), s: sites.Fermion(2, false)},
		{name: "single", os: func() *opsum.OpSum {
			os := opsum.New()
			mustAdd(os, 2, "Sx", 1)
			mustAdd(os, "Sz", 0, "Sx", 0)
			return os
		}(), s: sites.SpinHalf(3, false)},
		{name: "matrix", os: func() *opsum.OpSum {
			os := opsum.New()
			mustAdd(os, tensor.T2([][]float64{{1, 2}, {2, -1}}), 0, "Sz", 2)
			mustAdd(os, "X", 1)
			return os
		}(), s: sites.SpinHalf(3, false)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			h, err := Compile(test.os, test.s)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if test.s.HasQNs() != (h.LinkQN != nil) {
				t.Fatalf("%#v", h.LinkQN)
			}
			for b, qns := range h.LinkQN {
				if len(qns) != h.LinkDims()[b] {
					t.Fatalf("%d %#v %#v", b, qns, h.LinkDims())
				}
				if !slices.IsSorted(qns) {
					t.Fatalf("%d %#v", b, qns)
				}
			}
			checkDense(t, h, test.os, test.s)
		})
	}
}

func TestCompileQNMatchesDense(t *testing.T) {
	t.Parallel()
	s := sites.Fermion(4, true)
	qn, err := Compile(hopping(4), s)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	dense, err := Compile(hopping(4), s, NewOptions().ConserveQNs(false))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if dense.LinkQN != nil {
		t.Fatalf("%#v", dense.LinkQN)
	}
	if !slices.Equal(qn.LinkDims(), dense.LinkDims()) {
		t.Fatalf("%#v %#v", qn.LinkDims(), dense.LinkDims())
	}
	if !tensor.EqualApprox(qn.Dense(), dense.Dense(), 1e-12) {
		t.Fatalf("%s\n%s", qn.Dense(), dense.Dense())
	}
}

func TestCompileMergesDuplicates(t *testing.T) {
	t.Parallel()
	s := sites.SpinHalf(4, false)
	twice := opsum.New()
	once := opsum.New()
	for i := range 3 {
		mustAdd(twice, "Sz", i, "Sz", i+1)
		mustAdd(twice, "Sz", i, "Sz", i+1)
		mustAdd(once, 2, "Sz", i, "Sz", i+1)
	}
	h2, err := Compile(twice, s)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	h1, err := Compile(once, s)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !slices.Equal(h2.LinkDims(), h1.LinkDims()) {
		t.Fatalf("%#v %#v", h2.LinkDims(), h1.LinkDims())
	}
	if !tensor.EqualApprox(h2.Dense(), h1.Dense(), 1e-12) {
		t.Fatalf("%s\n%s", h2.Dense(), h1.Dense())
	}
}

func TestCompileCancelledTerms(t *testing.T) {
	t.Parallel()
	n := 5
	s := sites.SpinHalf(n, false)
	szsz := opsum.New()
	for i := range n - 1 {
		mustAdd(szsz, "Sz", i, "Sz", i+1)
	}
	cancelled := szsz.Clone()
	mustAdd(cancelled, "Sx", 0, "Sx", n-1)
	mustAdd(cancelled, -1, "Sx", 0, "Sx", n-1)

	h, err := Compile(szsz, s)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	hc, err := Compile(cancelled, s)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if expected := []int{3, 3, 3, 3}; !slices.Equal(hc.LinkDims(), expected) {
		t.Fatalf("%#v, expected %#v", hc.LinkDims(), expected)
	}
	if !tensor.EqualApprox(hc.Dense(), h.Dense(), 1e-12) {
		t.Fatalf("%s\n%s", hc.Dense(), h.Dense())
	}

	// A sum that cancels entirely compiles to zero.
	for _, s := range []sites.Sites{sites.SpinHalf(3, false), sites.SpinHalf(3, true)} {
		zero := opsum.New()
		mustAdd(zero, "Sz", 0, "Sz", 2)
		mustAdd(zero, -1, "Sz", 0, "Sz", 2)
		hz, err := Compile(zero, s)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if !tensor.EqualApprox(hz.Dense(), tensor.Zeros(8, 8), 1e-12) {
			t.Fatalf("%s", hz.Dense())
		}
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args [][]any
		s    sites.Sites
		opt  Options
		err  error
	}{
		{name: "empty", s: sites.SpinHalf(2, false), opt: NewOptions(), err: ErrEmptyOpSum},
		{name: "complex", args: [][]any{{1i, "Sz", 0}}, s: sites.SpinHalf(2, false), opt: NewOptions(), err: ErrComplexTerm},
		{name: "mixedOp", args: [][]any{{"Sx", 0}}, s: sites.SpinHalf(2, true), opt: NewOptions(), err: ErrMixedFlux},
		{name: "mixedTerms", args: [][]any{{"Sz", 0}, {"S+", 1}}, s: sites.SpinHalf(2, true), opt: NewOptions(), err: ErrMixedFlux},
		{name: "oddParity", args: [][]any{{"C", 0}}, s: sites.Fermion(2, false), opt: NewOptions(), err: opsum.ErrOddParity},
		{name: "outOfRange", args: [][]any{{"Sz", 2}}, s: sites.SpinHalf(2, false), opt: NewOptions(), err: opsum.ErrSiteOutOfRange},
		{name: "unknownOp", args: [][]any{{"Foo", 0}}, s: sites.SpinHalf(2, false), opt: NewOptions(), err: sites.ErrUnknownOp},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			os := opsum.New()
			for _, args := range test.args {
				mustAdd(os, args...)
			}
			if _, err := Compile(os, test.s, test.opt); !errors.Is(err, test.err) {
				t.Fatalf("%+v, expected %v", err, test.err)
			}
		})
	}

	os := opsum.New()
	mustAdd(os, "Sz", 0)
	if _, err := Compile(os, sites.SpinHalf(2, false), NewOptions().ConserveQNs(true)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCompileTracer(t *testing.T) {
	t.Parallel()
	timer := util.NewTimer()
	if _, err := Compile(heisenberg(4), sites.SpinHalf(4, false), NewOptions().Tracer(timer)); err != nil {
		t.Fatalf("%+v", err)
	}
	for _, phase := range []string{"canonicalize", "merge", "links", "tensors"} {
		if timer.Count(phase) != 1 {
			t.Fatalf("%s %s", phase, timer)
		}
	}
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}
