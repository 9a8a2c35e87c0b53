package mps

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/kbidzhiev/itensors/exactdiag"
	"github.com/kbidzhiev/itensors/mpo"
	"github.com/kbidzhiev/itensors/opsum"
	"github.com/kbidzhiev/itensors/sites"
	"github.com/kbidzhiev/itensors/tensor"
)

func heisenberg(n int) *opsum.OpSum {
	os := opsum.New()
	for i := range n - 1 {
		for _, args := range [][]any{{"Sz", i, "Sz", i + 1}, {0.5, "S+", i, "S-", i + 1}, {0.5, "S-", i, "S+", i + 1}} {
			if err := os.Add(args...); err != nil {
				panic(fmt.Sprintf("%+v", err))
			}
		}
	}
	return os
}

func isLeftNormalized(m *tensor.Dense) bool {
	s := m.Shape()
	m2 := m.Reshape(s[LeftAxis]*s[UpAxis], s[RightAxis])
	return tensor.EqualApprox(tensor.Product(m2, m2, [][2]int{{0, 0}}), tensor.Eye(s[RightAxis]), 1e-12)
}

func isRightNormalized(m *tensor.Dense) bool {
	s := m.Shape()
	m2 := m.Reshape(s[LeftAxis], s[UpAxis]*s[RightAxis])
	return tensor.EqualApprox(tensor.Product(m2, m2, [][2]int{{1, 1}}), tensor.Eye(s[LeftAxis]), 1e-12)
}

func equalVec(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestFromDense(t *testing.T) {
	t.Parallel()
	tests := []struct {
		dims []int
	}{
		{dims: []int{2, 2, 2, 2}},
		{dims: []int{3, 2, 4}},
		{dims: []int{2}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%#v", test.dims), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewPCG(1, 2))
			vol := 1
			for _, d := range test.dims {
				vol *= d
			}
			state := make([]float64, 0, vol)
			for range vol {
				state = append(state, rng.Float64()*2-1)
			}

			ms, err := FromDense(state, test.dims)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if !slices.Equal(ms.PhysDims(), test.dims) {
				t.Fatalf("%#v", ms.PhysDims())
			}
			if !equalVec(ms.Dense(), state, 1e-12) {
				t.Fatalf("%#v, expected %#v", ms.Dense(), state)
			}
			for i, m := range ms[:len(ms)-1] {
				if !isLeftNormalized(m) {
					t.Fatalf("%d %s", i, m)
				}
			}
		})
	}

	if _, err := FromDense([]float64{1, 2, 3}, []int{2, 2}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRandom(t *testing.T) {
	t.Parallel()
	tests := []struct {
		dims     []int
		maxD     int
		linkDims []int
	}{
		{dims: []int{2, 2, 2, 2}, maxD: 4, linkDims: []int{2, 4, 2}},
		{dims: []int{2, 2, 2, 2}, maxD: 3, linkDims: []int{2, 3, 2}},
		{dims: []int{2, 2, 2, 2, 2, 2}, maxD: 16, linkDims: []int{2, 4, 8, 4, 2}},
		{dims: []int{2, 2, 2, 2, 2}, maxD: 1, linkDims: []int{1, 1, 1, 1}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%#v %d", test.dims, test.maxD), func(t *testing.T) {
			t.Parallel()
			ms := Random(test.dims, test.maxD, rand.New(rand.NewPCG(3, 4)))
			if !slices.Equal(ms.LinkDims(), test.linkDims) {
				t.Fatalf("%#v, expected %#v", ms.LinkDims(), test.linkDims)
			}
			if ms.MaxLinkDim() != slices.Max(test.linkDims) {
				t.Fatalf("%d", ms.MaxLinkDim())
			}
		})
	}
}

func TestOrthogonalize(t *testing.T) {
	t.Parallel()
	for center := range 5 {
		t.Run(fmt.Sprintf("%d", center), func(t *testing.T) {
			t.Parallel()
			ms := Random([]int{2, 2, 2, 2, 2}, 3, rand.New(rand.NewPCG(5, 6)))
			state := ms.Dense()

			if err := ms.Orthogonalize(center); err != nil {
				t.Fatalf("%+v", err)
			}
			if !equalVec(ms.Dense(), state, 1e-12) {
				t.Fatalf("%#v, expected %#v", ms.Dense(), state)
			}
			for i, m := range ms {
				switch {
				case i < center && !isLeftNormalized(m):
					t.Fatalf("%d %s", i, m)
				case i > center && !isRightNormalized(m):
					t.Fatalf("%d %s", i, m)
				}
			}

			// In mixed canonical form the norm lives on the center site.
			c := ms[center]
			if math.Abs(InnerProduct(ms, ms)-tensor.Dot(c, c)) > 1e-12 {
				t.Fatalf("%f %f", InnerProduct(ms, ms), tensor.Dot(c, c))
			}

			norm, err := ms.Normalize()
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if math.Abs(norm*norm-dot(state, state)) > 1e-10 {
				t.Fatalf("%f %f", norm*norm, dot(state, state))
			}
			if math.Abs(InnerProduct(ms, ms)-1) > 1e-12 {
				t.Fatalf("%f", InnerProduct(ms, ms))
			}
		})
	}

	ms := Random([]int{2, 2}, 2, rand.New(rand.NewPCG(5, 6)))
	if err := ms.Orthogonalize(2); err == nil {
		t.Fatalf("expected error")
	}
}

func TestInnerProduct(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(7, 8))
	dims := []int{2, 3, 2, 2}
	x, y := Random(dims, 4, rng), Random(dims, 2, rng)
	if ip, expected := InnerProduct(x, y), dot(x.Dense(), y.Dense()); math.Abs(ip-expected) > 1e-12 {
		t.Fatalf("%f, expected %f", ip, expected)
	}
}

func TestExpect(t *testing.T) {
	t.Parallel()
	const n = 4
	s := sites.SpinHalf(n, false)
	h, err := mpo.Compile(heisenberg(n), s)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	hDense, err := exactdiag.Hamiltonian(heisenberg(n), s)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	// Random states agree with the dense expectation value.
	psi := RandMPS(h, 3, rand.New(rand.NewPCG(9, 10)))
	v := psi.Dense()
	hv := tensor.Product(hDense, tensor.New(slices.Clone(v), len(v)), [][2]int{{1, 0}}).Data()
	if e, expected := Expect(h, psi), dot(v, hv)/dot(v, v); math.Abs(e-expected) > 1e-12 {
		t.Fatalf("%f, expected %f", e, expected)
	}
	if h2, expected := H2(h, psi), dot(hv, hv)/dot(v, v); math.Abs(h2-expected) > 1e-12 {
		t.Fatalf("%f, expected %f", h2, expected)
	}

	// Eigenstates have no variance.
	vvs, err := exactdiag.Eigen(hDense)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	gs, err := FromDense(vvs[0].Vec, s.Dims())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if e := Expect(h, gs); math.Abs(e-vvs[0].Val) > 1e-12 {
		t.Fatalf("%f, expected %f", e, vvs[0].Val)
	}
	if v := Variance(h, gs); math.Abs(v) > 1e-10 {
		t.Fatalf("%g", v)
	}
}

func TestProductState(t *testing.T) {
	t.Parallel()
	const n = 3
	s := sites.SpinHalf(n, false)
	os := opsum.New()
	for i := range n {
		if err := os.Add("Sz", i); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	sz, err := mpo.Compile(os, s)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	// Up, Dn, Dn.
	psi := ProductState(s.Dims(), []int{0, 1, 1})
	if e := Expect(sz, psi); math.Abs(e-(-0.5)) > 1e-12 {
		t.Fatalf("%f", e)
	}
	if !slices.Equal(psi.LinkDims(), []int{1, 1}) {
		t.Fatalf("%#v", psi.LinkDims())
	}
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}
