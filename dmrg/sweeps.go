package dmrg

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SweepParams are the truncation and noise parameters of one sweep.
type SweepParams struct {
	MaxDim int
	MinDim int
	// Cutoff is the largest discarded weight, relative to the norm of the two-site tensor.
	Cutoff float64
	Noise  float64
}

// Sweeps is a schedule of sweep parameters.
// Setters fill the schedule from the front, and the last value given is repeated for the remaining sweeps.
type Sweeps struct {
	params []SweepParams
}

// NewSweeps returns a schedule of n sweeps with no truncation and no noise.
func NewSweeps(n int) Sweeps {
	params := make([]SweepParams, n)
	for i := range params {
		params[i] = SweepParams{MaxDim: math.MaxInt, MinDim: 1}
	}
	return Sweeps{params: params}
}

func (s Sweeps) set(n int, f func(p *SweepParams, i int)) Sweeps {
	if n == 0 {
		return s
	}
	params := slices.Clone(s.params)
	for i := range params {
		f(&params[i], min(i, n-1))
	}
	return Sweeps{params: params}
}

// MaxDim sets the maximum link dimension of each sweep.
func (s Sweeps) MaxDim(d ...int) Sweeps {
	return s.set(len(d), func(p *SweepParams, i int) { p.MaxDim = d[i] })
}

// MinDim sets the minimum link dimension of each sweep.
func (s Sweeps) MinDim(d ...int) Sweeps {
	return s.set(len(d), func(p *SweepParams, i int) { p.MinDim = d[i] })
}

// Cutoff sets the truncation cutoff of each sweep.
func (s Sweeps) Cutoff(c ...float64) Sweeps {
	return s.set(len(c), func(p *SweepParams, i int) { p.Cutoff = c[i] })
}

// Noise sets the noise amplitude of each sweep.
func (s Sweeps) Noise(a ...float64) Sweeps {
	return s.set(len(a), func(p *SweepParams, i int) { p.Noise = a[i] })
}

func (s Sweeps) Len() int { return len(s.params) }

// At returns the parameters of sweep i, counting from 0.
func (s Sweeps) At(i int) SweepParams { return s.params[i] }

func (s Sweeps) validate() error {
	for i, p := range s.params {
		switch {
		case p.MaxDim < 1, p.MinDim < 1:
			return errors.Wrap(ErrBadOption, fmt.Sprintf("%d %#v", i, p))
		case p.Cutoff < 0, p.Noise < 0, math.IsNaN(p.Cutoff), math.IsNaN(p.Noise):
			return errors.Wrap(ErrBadOption, fmt.Sprintf("%d %#v", i, p))
		}
	}
	return nil
}

func (s Sweeps) String() string {
	lines := make([]string, 0, len(s.params)+1)
	lines = append(lines, "maxdim,mindim,cutoff,noise")
	for _, p := range s.params {
		lines = append(lines, strings.Join(formatParams(p), ","))
	}
	return strings.Join(lines, "\n")
}

var sweepsHeader = []string{"maxdim", "mindim", "cutoff", "noise"}

// ParseSweeps reads a schedule in CSV format, one sweep per row, with the header maxdim,mindim,cutoff,noise.
// Empty fields repeat the value of the previous row.
func ParseSweeps(r io.Reader) (Sweeps, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(sweepsHeader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return Sweeps{}, errors.Wrap(err, "")
	}
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) != sweepsHeader[i] {
			return Sweeps{}, errors.Wrap(ErrBadOption, fmt.Sprintf("%#v", header))
		}
	}

	prev := NewSweeps(1).At(0)
	params := make([]SweepParams, 0)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Sweeps{}, errors.Wrap(err, "")
		}
		p, err := parseParams(record, prev)
		if err != nil {
			return Sweeps{}, errors.Wrap(err, fmt.Sprintf("%d", len(params)))
		}
		params = append(params, p)
		prev = p
	}

	s := Sweeps{params: params}
	if err := s.validate(); err != nil {
		return Sweeps{}, errors.Wrap(err, "")
	}
	return s, nil
}

func parseParams(record []string, prev SweepParams) (SweepParams, error) {
	p := prev
	var err error
	if f := strings.TrimSpace(record[0]); f != "" {
		if p.MaxDim, err = strconv.Atoi(f); err != nil {
			return SweepParams{}, errors.Wrap(ErrBadOption, err.Error())
		}
	}
	if f := strings.TrimSpace(record[1]); f != "" {
		if p.MinDim, err = strconv.Atoi(f); err != nil {
			return SweepParams{}, errors.Wrap(ErrBadOption, err.Error())
		}
	}
	if f := strings.TrimSpace(record[2]); f != "" {
		if p.Cutoff, err = strconv.ParseFloat(f, 64); err != nil {
			return SweepParams{}, errors.Wrap(ErrBadOption, err.Error())
		}
	}
	if f := strings.TrimSpace(record[3]); f != "" {
		if p.Noise, err = strconv.ParseFloat(f, 64); err != nil {
			return SweepParams{}, errors.Wrap(ErrBadOption, err.Error())
		}
	}
	return p, nil
}

func formatParams(p SweepParams) []string {
	return []string{
		strconv.Itoa(p.MaxDim),
		strconv.Itoa(p.MinDim),
		strconv.FormatFloat(p.Cutoff, 'g', -1, 64),
		strconv.FormatFloat(p.Noise, 'g', -1, 64),
	}
}
