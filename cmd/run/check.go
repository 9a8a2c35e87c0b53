package main

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kbidzhiev/itensors/exactdiag"
	"github.com/kbidzhiev/itensors/util"
)

// maxExactSites bounds the lattices diagonalized exactly.
const maxExactSites = 12

func newCheckCmd(c *config) *cobra.Command {
	var tol float64
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the optimized ground state energy with exact diagonalization",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.newModel()
			if err != nil {
				return errors.Wrap(err, "")
			}
			if len(m.Sites) > maxExactSites {
				return errors.Errorf("%d %d", len(m.Sites), maxExactSites)
			}
			h, err := c.compile(m, util.NopTracer{})
			if err != nil {
				return errors.Wrap(err, "")
			}

			// The compiled operator must agree with the explicit Kronecker products.
			hd, err := exactdiag.Hamiltonian(m.OpSum, m.Sites)
			if err != nil {
				return errors.Wrap(err, "")
			}
			var mpoErr float64
			for i, v := range h.Dense().Data() {
				mpoErr = max(mpoErr, math.Abs(v-hd.Data()[i]))
			}
			vvs, err := exactdiag.Eigen(hd)
			if err != nil {
				return errors.Wrap(err, "")
			}

			res, err := c.ground(h, 0)
			if err != nil {
				return errors.Wrap(err, "")
			}
			diff := res.energy - vvs[0].Val

			rows := [][2]string{
				{"model", fmt.Sprintf("%s %dx%d h=%g", m.Name, c.length, c.width, c.coupling)},
				{"mpo error", fmt.Sprintf("%.3e", mpoErr)},
				{"exact", fmt.Sprintf("%.12f", vvs[0].Val)},
				{"gap", fmt.Sprintf("%.12f", vvs[1].Val-vvs[0].Val)},
				{"optimized", fmt.Sprintf("%.12f", res.energy)},
				{"difference", fmt.Sprintf("%.3e", diff)},
			}
			printf(cmd, "%s\n", summary("exact diagonalization", rows))
			if math.Abs(diff) > tol || mpoErr > tol {
				return errors.Errorf("%g %g %g", diff, mpoErr, tol)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&tol, "tol", 1e-8, "largest accepted difference")
	return cmd
}
