package fidokey

import (
	"testing"
	"time"
)

// scriptedSampler replays a fixed sequence of levels, holding the last
// one once exhausted (matching a button left in its final position).
type scriptedSampler struct {
	levels []Level
	i      int
}

func (s *scriptedSampler) ReadLevel() Level {
	if s.i >= len(s.levels) {
		if len(s.levels) == 0 {
			return Released
		}
		return s.levels[len(s.levels)-1]
	}
	l := s.levels[s.i]
	s.i++
	return l
}

type countingIndicator struct {
	toggles int
}

func (c *countingIndicator) Toggle() {
	c.toggles++
}

func newTestGate(sampler Sampler, indicator Indicator) *ConfirmationGate {
	g := NewConfirmationGate(sampler, indicator)
	g.Sleep = func(time.Duration) {} // run the full window instantly
	return g
}

func TestConfirmationGate_ConfirmsOnSustainedPressWithinFirstPhase(t *testing.T) {
	levels := make([]Level, 0, debounceThreshold+1)
	for i := 0; i < debounceThreshold; i++ {
		levels = append(levels, Pressed)
	}
	sampler := &scriptedSampler{levels: levels}
	indicator := &countingIndicator{}

	g := newTestGate(sampler, indicator)
	if !g.Confirm() {
		t.Fatal("expected Confirm to return true for a sustained press within the first phase")
	}
	// Phase 1 (odd) toggles the LED on, then confirming restores it off.
	if indicator.toggles != 2 {
		t.Fatalf("expected exactly 2 LED toggles (on then restore-off), got %d", indicator.toggles)
	}
}

func TestConfirmationGate_ConfirmsOnEvenPhaseWithoutRestoreToggle(t *testing.T) {
	// Idle for all of phase 1's 33 samples, then press through phase 2.
	levels := make([]Level, 0)
	for i := 0; i < 33; i++ {
		levels = append(levels, Released)
	}
	for i := 0; i < debounceThreshold; i++ {
		levels = append(levels, Pressed)
	}
	sampler := &scriptedSampler{levels: levels}
	indicator := &countingIndicator{}

	g := newTestGate(sampler, indicator)
	if !g.Confirm() {
		t.Fatal("expected Confirm to return true")
	}
	// Phase 1 toggles on, phase 2 toggles off; confirming in an even
	// phase does not add a restore toggle.
	if indicator.toggles != 2 {
		t.Fatalf("expected exactly 2 LED toggles, got %d", indicator.toggles)
	}
}

func TestConfirmationGate_DeclinesAfterFullWindowWithNoPress(t *testing.T) {
	sampler := &scriptedSampler{levels: []Level{Released}}
	indicator := &countingIndicator{}

	g := newTestGate(sampler, indicator)
	if g.Confirm() {
		t.Fatal("expected Confirm to return false when the button is never pressed")
	}
	if indicator.toggles != g.Timing.NumPhases {
		t.Fatalf("expected one LED toggle per phase (%d), got %d", g.Timing.NumPhases, indicator.toggles)
	}
}

func TestConfirmationGate_DeclineIsIdempotentAcrossRepeatedCalls(t *testing.T) {
	sampler := &scriptedSampler{levels: []Level{Released}}
	indicator := &countingIndicator{}
	g := newTestGate(sampler, indicator)

	first := g.Confirm()
	firstToggles := indicator.toggles

	second := g.Confirm()

	if first || second {
		t.Fatal("expected both calls to decline")
	}
	if indicator.toggles != 2*firstToggles {
		t.Fatalf("expected the second decline to repeat the same toggle count, got %d after %d", indicator.toggles, firstToggles)
	}
}
