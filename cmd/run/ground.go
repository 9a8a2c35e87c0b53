package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kbidzhiev/itensors"
	"github.com/kbidzhiev/itensors/dmrg"
	"github.com/kbidzhiev/itensors/mpo"
	"github.com/kbidzhiev/itensors/mps"
	"github.com/kbidzhiev/itensors/record"
	"github.com/kbidzhiev/itensors/util"
)

type groundResult struct {
	energy  float64
	psi     mps.MPS
	elapsed time.Duration
	sweeps  int
	timer   *util.Timer
}

func newGroundCmd(c *config) *cobra.Command {
	var etol float64
	cmd := &cobra.Command{
		Use:   "ground",
		Short: "Search for the ground state",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.newModel()
			if err != nil {
				return errors.Wrap(err, "")
			}
			h, err := c.compile(m, util.NopTracer{})
			if err != nil {
				return errors.Wrap(err, "")
			}
			res, err := c.ground(h, etol)
			if err != nil {
				return errors.Wrap(err, "")
			}

			rows := [][2]string{
				{"model", fmt.Sprintf("%s %dx%d h=%g", m.Name, c.length, c.width, c.coupling)},
				{"energy", fmt.Sprintf("%.12f", res.energy)},
				{"variance", fmt.Sprintf("%.3e", mps.Variance(h, res.psi))},
				{"sweeps", fmt.Sprintf("%d", res.sweeps)},
				{"link dims", fmt.Sprintf("%v", res.psi.LinkDims())},
				{"time", res.elapsed.Round(time.Millisecond).String()},
			}
			if m.Name != "tightbinding" {
				mz, err := mpo.Compile(itensors.MagnetizationZ(len(m.Sites)), m.Sites)
				if err != nil {
					return errors.Wrap(err, "")
				}
				stats := itensors.MeasureState(h, mz, res.psi)
				rows = append(rows, [2]string{"magnetization", fmt.Sprintf("%.6f", stats.Magnetization)})
			}
			printf(cmd, "%s\n", summary("ground state", rows))
			printf(cmd, "%s\n", res.timer)
			return nil
		},
	}
	cmd.Flags().Float64Var(&etol, "etol", 0, "stop once the energy of a sweep changes by less than etol")
	return cmd
}

// ground optimizes a random initial state against h, recording to the database if one is given.
func (c *config) ground(h *mpo.MPO, etol float64) (groundResult, error) {
	sweeps, err := c.schedule()
	if err != nil {
		return groundResult{}, errors.Wrap(err, "")
	}
	opt, err := c.options()
	if err != nil {
		return groundResult{}, errors.Wrap(err, "")
	}

	energyObs := dmrg.NewEnergyObserver(etol, 2)
	var obs dmrg.Observer = energyObs
	var rec *record.Recorder
	if c.db != "" {
		rec, err = record.New(c.db, energyObs)
		if err != nil {
			return groundResult{}, errors.Wrap(err, "")
		}
		defer rec.Close()
		obs = rec
	}

	timer := util.NewTimer()
	start := time.Now()
	energy, psi, err := dmrg.Optimize(h, c.initialState(h), sweeps, opt.Observer(obs).Tracer(timer))
	if err != nil {
		return groundResult{}, errors.Wrap(err, "")
	}
	if rec != nil && rec.Err() != nil {
		return groundResult{}, errors.Wrap(rec.Err(), "")
	}
	res := groundResult{energy: energy, psi: psi, elapsed: time.Since(start), sweeps: len(energyObs.Energies), timer: timer}
	return res, nil
}
