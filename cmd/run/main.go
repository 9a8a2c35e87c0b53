// Command run searches for ground states of lattice models with the sweep optimizer.
package main

import (
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kbidzhiev/itensors"
	"github.com/kbidzhiev/itensors/dmrg"
	"github.com/kbidzhiev/itensors/mpo"
	"github.com/kbidzhiev/itensors/mps"
	"github.com/kbidzhiev/itensors/util"
)

// config holds the flags shared by all subcommands.
type config struct {
	model    string
	length   int
	width    int
	coupling float64
	qn       bool

	sweepsPath string
	nsweeps    int
	maxdim     []int
	cutoff     []float64
	noise      []float64
	set        []string
	solver     string
	initDim    int
	seed       uint64
	db         string
}

func newRootCmd() *cobra.Command {
	c := &config{}
	root := &cobra.Command{
		Use:   "run",
		Short: "Ground states of lattice models with the density matrix renormalization group",
		Long: `run compiles a lattice model into a matrix product operator,
and searches for its ground state with two-site sweeps.

Examples:
  run ground --model heisenberg -n 20 --maxdim 10,20,100 --cutoff 1e-10
  run ground --model ising -n 8 --h 1 --noise 1e-6,1e-8,0 --set decomposition_mode=eigen
  run check --model tightbinding -n 8 --h 0.5 --qn
  run mpo --model heisenberg -n 4 --width 4`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.model, "model", "ising", "model: ising, heisenberg or tightbinding")
	flags.IntVarP(&c.length, "length", "n", 8, "lattice length")
	flags.IntVar(&c.width, "width", 1, "lattice width")
	flags.Float64Var(&c.coupling, "h", 1, "transverse field of ising, exchange of heisenberg, or repulsion of tightbinding")
	flags.BoolVar(&c.qn, "qn", false, "conserve quantum numbers")
	flags.StringVar(&c.sweepsPath, "sweeps", "", "CSV file of the sweep schedule, with the header maxdim,mindim,cutoff,noise")
	flags.IntVar(&c.nsweeps, "nsweeps", 10, "number of sweeps, when no schedule file is given")
	flags.IntSliceVar(&c.maxdim, "maxdim", []int{10, 20, 100}, "maximum link dimension of each sweep")
	flags.Float64SliceVar(&c.cutoff, "cutoff", []float64{1e-10}, "truncation cutoff of each sweep")
	flags.Float64SliceVar(&c.noise, "noise", []float64{0}, "noise of each sweep")
	flags.StringArrayVar(&c.set, "set", nil, "optimizer option as key=value, for example eigsolve_krylovdim=8")
	flags.StringVar(&c.solver, "solver", "", "eigensolver: lanczos or arnoldi")
	flags.IntVar(&c.initDim, "initdim", 4, "link dimension of the random initial state")
	flags.Uint64Var(&c.seed, "seed", 0, "seed of the random initial state")
	flags.StringVar(&c.db, "db", "", "SQLite file recording every step and sweep")

	root.AddCommand(newGroundCmd(c), newMPOCmd(c), newCheckCmd(c), newScanCmd(c))
	return root
}

func (c *config) lattice() [2]int {
	return [2]int{c.length, c.width}
}

func (c *config) newModel() (itensors.Model, error) {
	m, err := itensors.NewModel(c.model, c.lattice(), c.coupling, c.qn)
	if err != nil {
		return itensors.Model{}, errors.Wrap(err, "")
	}
	return m, nil
}

func (c *config) compile(m itensors.Model, tracer util.Tracer) (*mpo.MPO, error) {
	opt := mpo.NewOptions().ConserveQNs(c.qn).Tracer(tracer)
	h, err := mpo.Compile(m.OpSum, m.Sites, opt)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return h, nil
}

// schedule returns the sweep schedule from the schedule file, or else from the flags.
func (c *config) schedule() (dmrg.Sweeps, error) {
	if c.sweepsPath == "" {
		return dmrg.NewSweeps(c.nsweeps).MaxDim(c.maxdim...).Cutoff(c.cutoff...).Noise(c.noise...), nil
	}
	f, err := os.Open(c.sweepsPath)
	if err != nil {
		return dmrg.Sweeps{}, errors.Wrap(err, "")
	}
	defer f.Close()
	sweeps, err := dmrg.ParseSweeps(f)
	if err != nil {
		return dmrg.Sweeps{}, errors.Wrap(err, c.sweepsPath)
	}
	return sweeps, nil
}

// options returns the optimizer options given by --set and --solver.
func (c *config) options() (dmrg.Options, error) {
	kv, err := parseSet(c.set)
	if err != nil {
		return dmrg.Options{}, errors.Wrap(err, "")
	}
	if c.solver != "" {
		kv["eigsolver"] = c.solver
	}
	opt, err := dmrg.ParseOptions(kv)
	if err != nil {
		return dmrg.Options{}, errors.Wrap(err, "")
	}
	return opt, nil
}

func (c *config) initialState(h *mpo.MPO) mps.MPS {
	rng := rand.New(rand.NewPCG(c.seed, c.seed))
	return mps.RandMPS(h, c.initDim, rng)
}

// parseSet parses key=value pairs.
func parseSet(pairs []string) (map[string]string, error) {
	kv := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.Errorf("%q", p)
		}
		kv[k] = strings.TrimSpace(v)
	}
	return kv, nil
}

func main() {
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func printf(cmd *cobra.Command, format string, a ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, a...)
}
