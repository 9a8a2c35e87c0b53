package main

import (
	"fmt"
	"log"
	"math"
	"slices"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kbidzhiev/itensors"
	"github.com/kbidzhiev/itensors/dmrg"
	"github.com/kbidzhiev/itensors/mpo"
	"github.com/kbidzhiev/itensors/util"
)

type scanConfig struct {
	h       float64
	bondDim int
	cutoff  float64
}

type scanStatistics struct {
	cfg scanConfig
	itensors.StateStatistics
}

// newScanConfigs returns fields spread logarithmically around the critical point tc, for each bond dimension.
func newScanConfigs(tc float64, bondDims []int) []scanConfig {
	hLogs := []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 1, 1.5, 2}
	// Add negative logs, so that hLogs becomes {-2, -1, tcLog, 1, 2...}.
	hLogsLen := len(hLogs)
	for i := range hLogsLen {
		hLogs = append(hLogs, -hLogs[i])
	}
	tcLog := math.Log10(tc)
	for i := range hLogs {
		hLogs[i] += tcLog
	}
	slices.Sort(hLogs)

	configs := make([]scanConfig, 0, len(hLogs)*len(bondDims))
	for _, hl := range hLogs {
		for _, bondDim := range bondDims {
			cfg := scanConfig{h: math.Pow(10, hl), bondDim: bondDim}
			switch {
			case bondDim <= 2:
				cfg.cutoff = 1e-8
			case bondDim <= 4:
				cfg.cutoff = 1e-10
			default:
				cfg.cutoff = 1e-12
			}
			configs = append(configs, cfg)
		}
	}
	return configs
}

func newScanCmd(c *config) *cobra.Command {
	var tc float64
	var bondDims []int
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the transverse field Ising chain across its critical point, printing CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := c.options()
			if err != nil {
				return errors.Wrap(err, "")
			}
			opt = opt.Quiet(true)

			configs := newScanConfigs(tc, bondDims)
			statistics := make([]scanStatistics, 0, len(configs))
			for _, cfg := range configs {
				stat, err := c.scan(cfg, opt)
				if err != nil {
					return errors.Wrap(err, fmt.Sprintf("%#v", cfg))
				}
				statistics = append(statistics, stat)
				log.Printf("%#v", stat)
			}

			printf(cmd, "l,h,b,e0,m\n")
			for _, s := range statistics {
				printf(cmd, "%d,%f,%d,%f,%f\n", c.length, s.cfg.h, s.cfg.bondDim, s.Energy, s.Magnetization)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&tc, "tc", 1, "guess of the critical field")
	cmd.Flags().IntSliceVar(&bondDims, "bonddims", []int{2, 4, 8}, "bond dimensions")
	return cmd
}

func (c *config) scan(cfg scanConfig, opt dmrg.Options) (scanStatistics, error) {
	m, err := itensors.TransverseFieldIsing(c.lattice(), cfg.h)
	if err != nil {
		return scanStatistics{}, errors.Wrap(err, "")
	}
	h, err := c.compile(m, util.NopTracer{})
	if err != nil {
		return scanStatistics{}, errors.Wrap(err, "")
	}
	mz, err := mpo.Compile(itensors.MagnetizationZ(len(m.Sites)), m.Sites)
	if err != nil {
		return scanStatistics{}, errors.Wrap(err, "")
	}

	sweeps := dmrg.NewSweeps(c.nsweeps).MaxDim(cfg.bondDim).Cutoff(cfg.cutoff)
	_, psi, err := dmrg.Optimize(h, c.initialState(h), sweeps, opt)
	if err != nil {
		return scanStatistics{}, errors.Wrap(err, "")
	}
	return scanStatistics{cfg: cfg, StateStatistics: itensors.MeasureState(h, mz, psi)}, nil
}
