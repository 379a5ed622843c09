package fidokey

import "time"

// Sampler reads the current raw button level (spec §4.2/§4.3).
type Sampler interface {
	ReadLevel() Level
}

// Indicator toggles the confirmation LED. Handlers must never touch it
// outside the Confirmation Gate (spec §5).
type Indicator interface {
	Toggle()
}

// GateTiming parameterizes the Confirmation Gate's solicitation
// window so it can be driven at real speed in production and at test
// speed in unit tests, without changing the algorithm itself.
type GateTiming struct {
	// PhaseDuration is the length of one LED phase (spec default: 500ms).
	PhaseDuration time.Duration
	// NumPhases is the number of phases in the confirmation window
	// (spec default: 20, i.e. a 10s window).
	NumPhases int
	// SampleInterval is the cadence at which the debounce sampler is
	// invoked (spec default: 15ms).
	SampleInterval time.Duration
	// SamplesPerPhase is the number of samples taken within one phase
	// (spec default: 33, since 500/15 rounds to 33).
	SamplesPerPhase int
}

// DefaultGateTiming returns the timing spec §4.2/§4.3 specifies.
func DefaultGateTiming() GateTiming {
	return GateTiming{
		PhaseDuration:   500 * time.Millisecond,
		NumPhases:       20,
		SampleInterval:  15 * time.Millisecond,
		SamplesPerPhase: 33,
	}
}

// ConfirmationGate solicits a single physical presence gesture within
// a bounded window (spec §4.3). It owns its own Debounce instance —
// gates are not shared across concurrent handlers (spec §5: no
// in-flight operation overlaps another).
type ConfirmationGate struct {
	debounce  *Debounce
	sampler   Sampler
	indicator Indicator

	// Timing and Sleep are exported so tests can drive the gate at
	// test speed without changing Confirm's control flow.
	Timing GateTiming
	Sleep  func(time.Duration)
}

// NewConfirmationGate returns a gate using spec-default timing and
// real-time sleeps.
func NewConfirmationGate(sampler Sampler, indicator Indicator) *ConfirmationGate {
	return &ConfirmationGate{
		debounce:  NewDebounce(),
		sampler:   sampler,
		indicator: indicator,
		Timing:    DefaultGateTiming(),
		Sleep:     time.Sleep,
	}
}

// Confirm blocks until a presence gesture is confirmed or the window
// elapses, returning the outcome. It is called at most once per
// handler (spec §4.3/§4.7).
func (g *ConfirmationGate) Confirm() bool {
	for phase := 1; phase <= g.Timing.NumPhases; phase++ {
		g.indicator.Toggle()

		for i := 0; i < g.Timing.SamplesPerPhase; i++ {
			g.debounce.Sample(g.sampler.ReadLevel())
			if g.debounce.TakeEvent() {
				if phase%2 == 1 {
					// Odd phase: the toggle above turned the LED on;
					// restore it to off before returning.
					g.indicator.Toggle()
				}
				return true
			}
			g.Sleep(g.Timing.SampleInterval)
		}
	}
	return false
}
