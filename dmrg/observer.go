package dmrg

import (
	"math"
	"time"

	"github.com/kbidzhiev/itensors/mps"
)

// StepInfo describes the state after the optimization of one bond.
type StepInfo struct {
	Energy float64
	State  mps.MPS
	// Bond is the left site of the optimized pair.
	Bond int
	// Sweep counts from 1.
	Sweep int
	// HalfSweep is 1 for the forward half sweep, and 2 for the backward one.
	HalfSweep int
	Direction Direction
	Spectrum  Spectrum
	Quiet     bool
}

// SweepInfo describes the state after a full sweep.
type SweepInfo struct {
	Energy      float64
	State       mps.MPS
	Sweep       int
	MaxLinkDim  int
	MaxTruncErr float64
	Elapsed     time.Duration
	Quiet       bool
}

// Observer watches the optimization.
// Measure is called after every bond, and CheckDone after every sweep, stopping the optimization if it returns true.
type Observer interface {
	Measure(StepInfo)
	CheckDone(SweepInfo) bool
}

// NoObserver observes nothing and never stops the optimization.
type NoObserver struct{}

func (NoObserver) Measure(StepInfo)         {}
func (NoObserver) CheckDone(SweepInfo) bool { return false }

// EnergyObserver records the energy of every sweep,
// and stops the optimization when the energy changes by less than a tolerance after a minimum number of sweeps.
type EnergyObserver struct {
	tol       float64
	minSweeps int

	Energies  []float64
	TruncErrs []float64
}

// NewEnergyObserver returns an observer that stops once the energy changes by less than tol, but not before minSweeps sweeps.
// A non-positive tol never stops.
func NewEnergyObserver(tol float64, minSweeps int) *EnergyObserver {
	return &EnergyObserver{tol: tol, minSweeps: minSweeps}
}

func (o *EnergyObserver) Measure(StepInfo) {}

func (o *EnergyObserver) CheckDone(info SweepInfo) bool {
	o.Energies = append(o.Energies, info.Energy)
	o.TruncErrs = append(o.TruncErrs, info.MaxTruncErr)
	n := len(o.Energies)
	if o.tol <= 0 || n < 2 || n < o.minSweeps {
		return false
	}
	return math.Abs(o.Energies[n-1]-o.Energies[n-2]) < o.tol
}
