package util

import (
	"testing"
	"time"
)

func TestSkipThrottler(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tt := NewSkipThrottler(time.Minute)
	tt.now = func() time.Time { return now }

	oks := make([]bool, 0)
	for _, dt := range []time.Duration{0, 30 * time.Second, 30 * time.Second, time.Second, 59 * time.Second} {
		now = now.Add(dt)
		oks = append(oks, tt.Ok())
	}
	expected := []bool{true, false, true, false, true}
	for i, ok := range oks {
		if ok != expected[i] {
			t.Fatalf("%d %#v, expected %#v", i, oks, expected)
		}
	}
}

func TestTimer(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	timer := NewTimer()
	timer.now = func() time.Time { return now }

	for range 3 {
		done := timer.Start("eigsolve")
		now = now.Add(2 * time.Second)
		done()
	}
	if timer.Count("eigsolve") != 3 || timer.Duration("eigsolve") != 6*time.Second {
		t.Fatalf("%s", timer)
	}
	if timer.Count("factorize") != 0 {
		t.Fatalf("%s", timer)
	}
}
