package gunshot

import (
	"math"
	"testing"
)

func sineWave(n int, freq float64, sampleRate int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return samples
}

func TestExtractProducesExactTargetShape(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	extractor := NewFeatureExtractor(cfg)

	shapes := []Shape{cfg.GunshotShape, cfg.FirearmShape}
	durations := []float64{0.2, 1.0, 4.0, 8.0}

	for _, target := range shapes {
		for _, dur := range durations {
			samples := sineWave(int(dur*float64(testSampleRate)), 440, testSampleRate)
			event := CandidateEvent{Start: 0, End: dur}

			tensor, err := extractor.Extract(samples, testSampleRate, event, target)
			if err != nil {
				t.Fatalf("Extract(%s, %.1fs) returned error: %v", target, dur, err)
			}
			if tensor.Shape != target {
				t.Errorf("Extract(%s, %.1fs) shape = %s", target, dur, tensor.Shape)
			}
			if len(tensor.Data) != target.Size() {
				t.Errorf("Extract(%s, %.1fs) data length = %d, want %d", target, dur, len(tensor.Data), target.Size())
			}
		}
	}
}

func TestExtractValuesNormalized(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	extractor := NewFeatureExtractor(cfg)

	samples := sineWave(2*testSampleRate, 880, testSampleRate)
	tensor, err := extractor.Extract(samples, testSampleRate, CandidateEvent{Start: 0, End: 2}, cfg.GunshotShape)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	var minV, maxV float32 = 1, 0
	for _, v := range tensor.Data {
		if v < 0 || v > 1 {
			t.Fatalf("tensor value %f outside [0, 1]", v)
		}
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if maxV-minV < 0.5 {
		t.Errorf("expected normalization to use most of [0, 1], got range [%f, %f]", minV, maxV)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	extractor := NewFeatureExtractor(cfg)

	samples := testNoise(testSampleRate, 0.3)
	event := CandidateEvent{Start: 0.1, End: 0.9}

	first, err := extractor.Extract(samples, testSampleRate, event, cfg.GunshotShape)
	if err != nil {
		t.Fatalf("first Extract returned error: %v", err)
	}
	second, err := extractor.Extract(samples, testSampleRate, event, cfg.GunshotShape)
	if err != nil {
		t.Fatalf("second Extract returned error: %v", err)
	}
	for i := range first.Data {
		if first.Data[i] != second.Data[i] {
			t.Fatalf("tensor differs at index %d: %f vs %f", i, first.Data[i], second.Data[i])
		}
	}
}

func TestExtractAppliesContextMargin(t *testing.T) {
	t.Parallel()

	// Slicing must widen the event by the context margin on both sides,
	// so a margin-widened event with no margin yields the same tensor.
	cfg := DefaultConfig()
	cfg.ContextMargin = 0.25
	widened := DefaultConfig()
	widened.ContextMargin = 0

	samples := testNoise(testSampleRate, 0.3)

	withMargin, err := NewFeatureExtractor(cfg).Extract(samples, testSampleRate,
		CandidateEvent{Start: 0.5, End: 0.75}, cfg.GunshotShape)
	if err != nil {
		t.Fatalf("Extract with margin returned error: %v", err)
	}
	preWidened, err := NewFeatureExtractor(widened).Extract(samples, testSampleRate,
		CandidateEvent{Start: 0.25, End: 1.0}, cfg.GunshotShape)
	if err != nil {
		t.Fatalf("Extract on widened event returned error: %v", err)
	}

	for i := range withMargin.Data {
		if withMargin.Data[i] != preWidened.Data[i] {
			t.Fatalf("tensors differ at index %d: %f vs %f", i, withMargin.Data[i], preWidened.Data[i])
		}
	}
}

func TestExtractEmptySegment(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	extractor := NewFeatureExtractor(cfg)

	if _, err := extractor.Extract(nil, testSampleRate, CandidateEvent{}, cfg.GunshotShape); err != ErrEmptyBuffer {
		t.Errorf("expected ErrEmptyBuffer for nil samples, got %v", err)
	}

	samples := sineWave(testSampleRate, 440, testSampleRate)
	badEvent := CandidateEvent{Start: 2.0, End: 3.0} // beyond the buffer
	if _, err := extractor.Extract(samples, testSampleRate, badEvent, cfg.GunshotShape); err == nil {
		t.Error("expected error for event outside the buffer")
	}
}
