package dmrg_test

import (
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/kbidzhiev/itensors/dmrg"
	"github.com/kbidzhiev/itensors/mpo"
	"github.com/kbidzhiev/itensors/mps"
	"github.com/kbidzhiev/itensors/opsum"
	"github.com/kbidzhiev/itensors/sites"
)

func Example() {
	// The transverse field Ising model -sum Z_i Z_{i+1} - h sum X_i.
	n, field := 4, 0.031623
	os := opsum.New()
	for i := range n - 1 {
		if err := os.Add(-1, "Z", i, "Z", i+1); err != nil {
			log.Fatalf("%+v", err)
		}
	}
	for i := range n {
		if err := os.Add(-field, "X", i); err != nil {
			log.Fatalf("%+v", err)
		}
	}
	h, err := mpo.Compile(os, sites.SpinHalf(n, false))
	if err != nil {
		log.Fatalf("%+v", err)
	}

	psi0 := mps.RandMPS(h, 4, rand.New(rand.NewPCG(0, 0)))
	sweeps := dmrg.NewSweeps(5).MaxDim(10, 20).Cutoff(1e-10)
	opt := dmrg.NewOptions().Quiet(true).EigsolveKrylovDim(20)
	energy, _, err := dmrg.Optimize(h, psi0, sweeps, opt)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	fmt.Printf("Ground energy %.4f\n", energy)

	// Output:
	// Ground energy -3.0015
}
