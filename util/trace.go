package util

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Tracer receives the boundaries of named phases.
// Start is called when a phase begins, and the returned function when it ends.
type Tracer interface {
	Start(phase string) func()
}

// NopTracer ignores all phases.
type NopTracer struct{}

func (NopTracer) Start(string) func() { return func() {} }

// Timer accumulates the wall time and number of calls of each phase.
// It is not safe for concurrent use.
type Timer struct {
	now       func() time.Time
	durations map[string]time.Duration
	counts    map[string]int
}

func NewTimer() *Timer {
	return &Timer{now: time.Now, durations: make(map[string]time.Duration), counts: make(map[string]int)}
}

func (t *Timer) Start(phase string) func() {
	start := t.now()
	return func() {
		t.durations[phase] += t.now().Sub(start)
		t.counts[phase]++
	}
}

func (t *Timer) Duration(phase string) time.Duration { return t.durations[phase] }
func (t *Timer) Count(phase string) int              { return t.counts[phase] }

func (t *Timer) String() string {
	phases := make([]string, 0, len(t.durations))
	for p := range t.durations {
		phases = append(phases, p)
	}
	slices.Sort(phases)
	lines := make([]string, 0, len(phases))
	for _, p := range phases {
		lines = append(lines, fmt.Sprintf("%s %d %s", p, t.counts[p], t.durations[p]))
	}
	return strings.Join(lines, "\n")
}
