package gunshot

import (
	"math"
	"testing"
)

const testSampleRate = 22050

// testNoise generates deterministic low-level noise so detector tests are
// reproducible without seeding math/rand.
func testNoise(n int, amplitude float64) []float64 {
	samples := make([]float64, n)
	state := uint64(0x9e3779b97f4a7c15)
	for i := range samples {
		state = state*6364136223846793005 + 1442695040888963407
		// Map the top bits to [-1, 1).
		v := float64(int64(state>>11))/float64(1<<52) - 1
		samples[i] = v * amplitude
	}
	return samples
}

// addImpulse writes a burst of the given amplitude starting at a time
// offset, alternating sign to mimic an impulsive pressure wave.
func addImpulse(samples []float64, sampleRate int, at, duration, amplitude float64) {
	start := int(at * float64(sampleRate))
	end := start + int(duration*float64(sampleRate))
	for i := start; i < end && i < len(samples); i++ {
		if (i-start)%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}
}

func TestDetectEmptyBuffer(t *testing.T) {
	t.Parallel()

	detector := NewEventDetector(DefaultConfig())
	if _, err := detector.Detect(nil, testSampleRate); err != ErrEmptyBuffer {
		t.Fatalf("expected ErrEmptyBuffer, got %v", err)
	}
}

func TestDetectSilenceYieldsNoEvents(t *testing.T) {
	t.Parallel()

	detector := NewEventDetector(DefaultConfig())
	silence := make([]float64, 2*testSampleRate)

	events, err := detector.Detect(silence, testSampleRate)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events in silence, got %d", len(events))
	}
}

func TestDetectSingleImpulse(t *testing.T) {
	t.Parallel()

	samples := testNoise(2*testSampleRate, 0.005)
	addImpulse(samples, testSampleRate, 1.0, 0.05, 0.9)

	detector := NewEventDetector(DefaultConfig())
	events, err := detector.Detect(samples, testSampleRate)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.Start >= ev.End {
		t.Errorf("event has non-positive span: start=%.3f end=%.3f", ev.Start, ev.End)
	}
	if ev.Start > 1.0 || ev.End < 1.05 {
		t.Errorf("event [%.3f, %.3f] does not cover the impulse at 1.0s", ev.Start, ev.End)
	}
	if ev.PeakAmplitude < 0.5 {
		t.Errorf("expected peak amplitude near the impulse level, got %.3f", ev.PeakAmplitude)
	}
}

func TestDetectSeparatedImpulses(t *testing.T) {
	t.Parallel()

	samples := testNoise(10*testSampleRate, 0.005)
	for _, at := range []float64{1.0, 5.0, 9.0} {
		addImpulse(samples, testSampleRate, at, 0.05, 0.9)
	}

	detector := NewEventDetector(DefaultConfig())
	events, err := detector.Detect(samples, testSampleRate)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	for i, at := range []float64{1.0, 5.0, 9.0} {
		if events[i].Start > at || events[i].End < at {
			t.Errorf("event %d [%.3f, %.3f] does not cover impulse at %.1fs",
				i, events[i].Start, events[i].End, at)
		}
	}
	for i := 1; i < len(events); i++ {
		if events[i].Start < events[i-1].End {
			t.Errorf("events %d and %d overlap after coalescing", i-1, i)
		}
	}
}

func TestDetectCoalescesCloseImpulses(t *testing.T) {
	t.Parallel()

	// Two bursts 50ms apart are closer than the minimum inter-event gap
	// and must merge into a single event.
	samples := testNoise(3*testSampleRate, 0.005)
	addImpulse(samples, testSampleRate, 1.0, 0.03, 0.9)
	addImpulse(samples, testSampleRate, 1.08, 0.03, 0.85)

	detector := NewEventDetector(DefaultConfig())
	events, err := detector.Detect(samples, testSampleRate)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected impulses 80ms apart to coalesce into 1 event, got %d", len(events))
	}
	if events[0].Start > 1.0 || events[0].End < 1.11 {
		t.Errorf("merged event [%.3f, %.3f] does not span both impulses", events[0].Start, events[0].End)
	}
	if math.Abs(events[0].PeakAmplitude-0.9) > 0.1 {
		t.Errorf("merged event should keep the louder peak, got %.3f", events[0].PeakAmplitude)
	}
}

func TestDetectReportsTightEventTimes(t *testing.T) {
	t.Parallel()

	// The reported times must track the flagged frames themselves: an
	// impulse at 2.0s may not show up shifted by any context padding.
	samples := testNoise(4*testSampleRate, 0.005)
	addImpulse(samples, testSampleRate, 2.0, 0.05, 0.9)

	detector := NewEventDetector(DefaultConfig())
	events, err := detector.Detect(samples, testSampleRate)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.Start < 1.9 || ev.Start > 2.1 {
		t.Errorf("event start = %.4f, want within [1.9, 2.1]", ev.Start)
	}
	if ev.End < 2.05 || ev.End > 2.2 {
		t.Errorf("event end = %.4f, want within [2.05, 2.2]", ev.End)
	}
}

func TestDetectSetsPeakConfidence(t *testing.T) {
	t.Parallel()

	samples := testNoise(4*testSampleRate, 0.005)
	addImpulse(samples, testSampleRate, 1.0, 0.05, 0.9)
	addImpulse(samples, testSampleRate, 3.0, 0.05, 0.7)

	detector := NewEventDetector(DefaultConfig())
	events, err := detector.Detect(samples, testSampleRate)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	for i, ev := range events {
		if ev.PeakConfidence <= 0 || ev.PeakConfidence > 1 {
			t.Errorf("event %d: peak confidence %.4f outside (0, 1]", i, ev.PeakConfidence)
		}
	}
	// Energies are normalized by the global peak, so the loudest event
	// carries confidence 1 and the quieter one strictly less.
	if events[0].PeakConfidence < 0.95 {
		t.Errorf("loudest event peak confidence = %.4f, want ~1", events[0].PeakConfidence)
	}
	if events[1].PeakConfidence >= events[0].PeakConfidence {
		t.Errorf("quieter event peak confidence %.4f not below loudest %.4f",
			events[1].PeakConfidence, events[0].PeakConfidence)
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	t.Parallel()

	samples := testNoise(4*testSampleRate, 0.005)
	addImpulse(samples, testSampleRate, 2.0, 0.05, 0.9)

	detector := NewEventDetector(DefaultConfig())
	first, err := detector.Detect(samples, testSampleRate)
	if err != nil {
		t.Fatalf("first Detect returned error: %v", err)
	}
	second, err := detector.Detect(samples, testSampleRate)
	if err != nil {
		t.Fatalf("second Detect returned error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("event counts differ between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("event %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
