package fidokey

import "testing"

func TestDebounce_ShortGlitchNeverRaisesEdge(t *testing.T) {
	d := NewDebounce()

	for i := 0; i < debounceThreshold-1; i++ {
		d.Sample(Pressed)
	}
	d.Sample(Released)

	if d.TakeEvent() {
		t.Fatal("a press shorter than the debounce threshold must not raise an edge")
	}
}

func TestDebounce_HeldPressRaisesEdgeExactlyOnce(t *testing.T) {
	d := NewDebounce()

	for i := 0; i < debounceThreshold; i++ {
		d.Sample(Pressed)
	}

	if !d.TakeEvent() {
		t.Fatal("expected edge after debounceThreshold consecutive pressed samples")
	}
	if d.TakeEvent() {
		t.Fatal("expected edge flag to be consumed by the first TakeEvent call")
	}
}

func TestDebounce_SustainedPressAfterConsumedEventStaysQuiet(t *testing.T) {
	d := NewDebounce()

	for i := 0; i < debounceThreshold; i++ {
		d.Sample(Pressed)
	}
	d.TakeEvent()

	for i := 0; i < 50; i++ {
		d.Sample(Pressed)
	}

	if d.TakeEvent() {
		t.Fatal("continuing to hold the button must not raise a second edge")
	}
}

func TestDebounce_MismatchCounterResetsOnAgreement(t *testing.T) {
	d := NewDebounce()

	for i := 0; i < debounceThreshold-1; i++ {
		d.Sample(Pressed)
	}
	d.Sample(Released) // agrees with stable (Released); resets the counter
	for i := 0; i < debounceThreshold-1; i++ {
		d.Sample(Pressed)
	}

	if d.TakeEvent() {
		t.Fatal("a refreshed mismatch run below threshold must not raise an edge")
	}
}

func TestDebounce_ReleaseAfterPressRaisesNoEdge(t *testing.T) {
	d := NewDebounce()

	for i := 0; i < debounceThreshold; i++ {
		d.Sample(Pressed)
	}
	d.TakeEvent()

	for i := 0; i < debounceThreshold; i++ {
		d.Sample(Released)
	}

	if d.TakeEvent() {
		t.Fatal("the release transition must not itself raise an edge")
	}
}

func TestDebounce_SecondPressAfterReleaseRaisesEdgeAgain(t *testing.T) {
	d := NewDebounce()

	for i := 0; i < debounceThreshold; i++ {
		d.Sample(Pressed)
	}
	d.TakeEvent()
	for i := 0; i < debounceThreshold; i++ {
		d.Sample(Released)
	}
	for i := 0; i < debounceThreshold; i++ {
		d.Sample(Pressed)
	}

	if !d.TakeEvent() {
		t.Fatal("expected a fresh edge for a second distinct press")
	}
}
