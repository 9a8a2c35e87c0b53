package dmrg

import (
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestSweeps(t *testing.T) {
	t.Parallel()
	s := NewSweeps(5).MaxDim(10, 20, 100).MinDim(2).Cutoff(1e-8, 1e-10).Noise(1e-5, 1e-7, 0)
	expected := []SweepParams{
		{MaxDim: 10, MinDim: 2, Cutoff: 1e-8, Noise: 1e-5},
		{MaxDim: 20, MinDim: 2, Cutoff: 1e-10, Noise: 1e-7},
		{MaxDim: 100, MinDim: 2, Cutoff: 1e-10, Noise: 0},
		{MaxDim: 100, MinDim: 2, Cutoff: 1e-10, Noise: 0},
		{MaxDim: 100, MinDim: 2, Cutoff: 1e-10, Noise: 0},
	}
	if s.Len() != len(expected) {
		t.Fatalf("%d", s.Len())
	}
	for i, p := range expected {
		if s.At(i) != p {
			t.Fatalf("%d %#v, expected %#v", i, s.At(i), p)
		}
	}

	// Setters do not modify their receiver.
	base := NewSweeps(2)
	_ = base.MaxDim(3)
	if base.At(0).MaxDim != math.MaxInt {
		t.Fatalf("%#v", base.At(0))
	}

	parsed, err := ParseSweeps(strings.NewReader(s.String()))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if parsed.String() != s.String() {
		t.Fatalf("%s, expected %s", parsed, s)
	}
}

func TestParseSweeps(t *testing.T) {
	t.Parallel()
	csv := `maxdim, mindim, cutoff, noise
10, 1, 1e-6, 1e-5
20, , , 1e-7
, , 1e-10, 0
`
	s, err := ParseSweeps(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	expected := []SweepParams{
		{MaxDim: 10, MinDim: 1, Cutoff: 1e-6, Noise: 1e-5},
		{MaxDim: 20, MinDim: 1, Cutoff: 1e-6, Noise: 1e-7},
		{MaxDim: 20, MinDim: 1, Cutoff: 1e-10, Noise: 0},
	}
	if s.Len() != len(expected) {
		t.Fatalf("%d", s.Len())
	}
	for i, p := range expected {
		if s.At(i) != p {
			t.Fatalf("%d %#v, expected %#v", i, s.At(i), p)
		}
	}

	errTests := []struct {
		csv string
		err error
	}{
		{csv: "maxdim,mindim,noise,cutoff\n10,1,0,0\n", err: ErrBadOption},
		{csv: "maxdim,mindim,cutoff,noise\nten,1,0,0\n", err: ErrBadOption},
		{csv: "maxdim,mindim,cutoff,noise\n10,1,-1,0\n", err: ErrBadOption},
		{csv: "maxdim,mindim,cutoff,noise\n0,1,0,0\n", err: ErrBadOption},
	}
	for _, test := range errTests {
		if _, err := ParseSweeps(strings.NewReader(test.csv)); !errors.Is(err, test.err) {
			t.Fatalf("%q %+v", test.csv, err)
		}
	}
	if _, err := ParseSweeps(strings.NewReader("maxdim,mindim\n1,1\n")); err == nil {
		t.Fatalf("expected error")
	}
}
