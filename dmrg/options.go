package dmrg

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kbidzhiev/itensors/util"
)

var (
	ErrDeprecatedOption = errors.New("deprecated option")
	ErrUnknownOption    = errors.New("unknown option")
	ErrBadOption        = errors.New("bad option")
	ErrNoiseNeedsEigen  = errors.New("noise requires the eigen decomposition")
)

const (
	DecompAutomatic = "automatic"
	DecompSVD       = "svd"
	DecompEigen     = "eigen"
)

// Options are options for the sweep optimization.
type Options struct {
	decomp      string
	observer    Observer
	quiet       bool
	outputLevel int
	eigsolver   Eigensolver
	eigsolve    EigsolveParams
	tracer      util.Tracer
}

// NewOptions returns the default sweep optimization options.
func NewOptions() Options {
	opt := Options{}
	opt.decomp = DecompAutomatic
	opt.observer = NoObserver{}
	opt.outputLevel = 1
	opt.eigsolver = Lanczos{}
	opt.eigsolve = EigsolveParams{Tol: 1e-14, KrylovDim: 3, MaxIter: 1, Verbosity: 0, Which: SmallestReal}
	opt.tracer = util.NopTracer{}
	return opt
}

// DecompositionMode sets how optimized two-site tensors are factorized.
// "svd" factorizes the tensor directly, "eigen" diagonalizes its density matrix,
// and "automatic" picks "eigen" when the sweep has noise and "svd" otherwise.
func (opt Options) DecompositionMode(mode string) Options {
	opt.decomp = mode
	return opt
}

// Observer sets the observer of the optimization.
func (opt Options) Observer(o Observer) Options {
	opt.observer = o
	return opt
}

// Quiet turns off all logging.
func (opt Options) Quiet(quiet bool) Options {
	opt.quiet = quiet
	return opt
}

// OutputLevel sets the amount of logging: 0 for none, 1 per sweep, 2 per step.
func (opt Options) OutputLevel(level int) Options {
	opt.outputLevel = level
	return opt
}

// Eigensolver sets the eigensolver of the two-site problems.
func (opt Options) Eigensolver(e Eigensolver) Options {
	opt.eigsolver = e
	return opt
}

func (opt Options) EigsolveTol(tol float64) Options {
	opt.eigsolve.Tol = tol
	return opt
}

func (opt Options) EigsolveKrylovDim(d int) Options {
	opt.eigsolve.KrylovDim = d
	return opt
}

func (opt Options) EigsolveMaxIter(i int) Options {
	opt.eigsolve.MaxIter = i
	return opt
}

func (opt Options) EigsolveVerbosity(v int) Options {
	opt.eigsolve.Verbosity = v
	return opt
}

// EigsolveWhich sets the targeted eigenvalue.
func (opt Options) EigsolveWhich(w Which) Options {
	opt.eigsolve.Which = w
	return opt
}

// Tracer sets the tracer that times the phases of each step.
func (opt Options) Tracer(t util.Tracer) Options {
	opt.tracer = t
	return opt
}

// validate checks the options against the schedule, before any sweep is run.
func (opt Options) validate(sweeps Sweeps) error {
	switch opt.decomp {
	case DecompAutomatic, DecompEigen:
	case DecompSVD:
		for i := range sweeps.Len() {
			if sweeps.At(i).Noise > 0 {
				return errors.Wrap(ErrNoiseNeedsEigen, fmt.Sprintf("sweep %d", i+1))
			}
		}
	default:
		return errors.Wrap(ErrBadOption, fmt.Sprintf("decomposition mode %q", opt.decomp))
	}
	if opt.observer == nil || opt.eigsolver == nil || opt.tracer == nil {
		return errors.Wrap(ErrBadOption, fmt.Sprintf("%#v", opt))
	}
	p := opt.eigsolve
	if p.Tol < 0 || p.KrylovDim < 1 || p.MaxIter < 1 {
		return errors.Wrap(ErrBadOption, fmt.Sprintf("%#v", p))
	}
	if err := sweeps.validate(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// ParseOptions applies key value settings to the default options.
// Keys that are no longer supported, maxiter and errgoal, are rejected with ErrDeprecatedOption.
func ParseOptions(kv map[string]string) (Options, error) {
	opt := NewOptions()
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		v := strings.TrimSpace(kv[k])
		var err error
		switch k {
		case "maxiter", "errgoal":
			return Options{}, errors.Wrap(ErrDeprecatedOption, k)
		case "decomposition_mode", "which_decomp":
			opt = opt.DecompositionMode(v)
		case "quiet":
			var q bool
			q, err = strconv.ParseBool(v)
			opt = opt.Quiet(q)
		case "outputlevel":
			var l int
			l, err = strconv.Atoi(v)
			opt = opt.OutputLevel(l)
		case "eigsolve_tol":
			var tol float64
			tol, err = strconv.ParseFloat(v, 64)
			opt = opt.EigsolveTol(tol)
		case "eigsolve_krylovdim":
			var d int
			d, err = strconv.Atoi(v)
			opt = opt.EigsolveKrylovDim(d)
		case "eigsolve_maxiter":
			var i int
			i, err = strconv.Atoi(v)
			opt = opt.EigsolveMaxIter(i)
		case "eigsolve_verbosity":
			var i int
			i, err = strconv.Atoi(v)
			opt = opt.EigsolveVerbosity(i)
		case "eigsolve_which_eigenvalue":
			var w Which
			w, err = ParseWhich(v)
			opt = opt.EigsolveWhich(w)
		case "eigsolver":
			var e Eigensolver
			e, err = ParseEigensolver(v)
			opt = opt.Eigensolver(e)
		default:
			return Options{}, errors.Wrap(ErrUnknownOption, k)
		}
		if err != nil {
			return Options{}, errors.Wrap(ErrBadOption, fmt.Sprintf("%s=%q %v", k, v, err))
		}
	}
	return opt, nil
}

// ParseEigensolver returns the eigensolver of the given name, "lanczos" or "arnoldi".
func ParseEigensolver(name string) (Eigensolver, error) {
	switch strings.ToLower(name) {
	case "lanczos":
		return Lanczos{}, nil
	case "arnoldi":
		return Arnoldi{}, nil
	}
	return nil, errors.Wrap(ErrBadOption, name)
}
