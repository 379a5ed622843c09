package fidokey

// Level is the raw, possibly noisy, level a button sampler reads.
// Pressed is logic-low, matching the original firmware's active-low
// wiring (spec §3: "1=released, 0=pressed").
type Level uint8

const (
	Released Level = 1
	Pressed  Level = 0
)

// debounceThreshold is the number of consecutive disagreeing samples
// required before the stable level is updated (spec §4.2).
const debounceThreshold = 4

// Debounce turns a noisy level stream into one "press confirmed" edge
// event per physical press. It is a plain value, not a package-level
// global: callers own an instance and pass it by pointer, per spec
// §9's re-architecture guidance ("model the debounce filter as a
// value with explicit sample()/take_event() operations").
type Debounce struct {
	stable     Level
	mismatches uint8
	pressed    bool
}

// NewDebounce returns a Debounce whose stable level starts at Released,
// matching the original firmware's initial state.
func NewDebounce() *Debounce {
	return &Debounce{stable: Released}
}

// Sample feeds one raw level reading. When level disagrees with the
// current stable level for debounceThreshold consecutive samples, the
// stable level flips; if it flips to Pressed, the edge flag is raised.
// A sample that agrees with the current stable level resets the
// mismatch counter.
func (d *Debounce) Sample(level Level) {
	if level != d.stable {
		d.mismatches++
		if d.mismatches >= debounceThreshold {
			d.stable = level
			d.mismatches = 0
			if d.stable == Pressed {
				d.pressed = true
			}
		}
		return
	}
	d.mismatches = 0
}

// TakeEvent reports whether a press has been confirmed since the last
// call, clearing the flag as it reports it.
func (d *Debounce) TakeEvent() bool {
	if !d.pressed {
		return false
	}
	d.pressed = false
	return true
}
