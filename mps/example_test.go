package mps_test

import (
	"fmt"
	"log"
	"math"

	"github.com/kbidzhiev/itensors/exactdiag"
	"github.com/kbidzhiev/itensors/mpo"
	"github.com/kbidzhiev/itensors/mps"
	"github.com/kbidzhiev/itensors/opsum"
	"github.com/kbidzhiev/itensors/sites"
)

func Example() {
	// A two spin singlet.
	s := sites.SpinHalf(2, false)
	singlet, err := mps.FromDense([]float64{0, 1 / math.Sqrt2, -1 / math.Sqrt2, 0}, s.Dims())
	if err != nil {
		log.Fatalf("%+v", err)
	}

	// The Heisenberg coupling.
	os := opsum.New()
	for _, args := range [][]any{{"Sz", 0, "Sz", 1}, {0.5, "S+", 0, "S-", 1}, {0.5, "S-", 0, "S+", 1}} {
		if err := os.Add(args...); err != nil {
			log.Fatalf("%+v", err)
		}
	}
	h, err := mpo.Compile(os, s)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	gs, err := exactdiag.GroundState(os, s)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	fmt.Printf("Energy %.4f, exact %.4f\n", mps.Expect(h, singlet), gs.Val)
	fmt.Printf("Norm %.4f\n", mps.InnerProduct(singlet, singlet))

	// Output:
	// Energy -0.7500, exact -0.7500
	// Norm 1.0000
}
