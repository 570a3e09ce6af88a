package gunshot

import (
	"math"
	"testing"
)

func TestPreprocessDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	samples := sineWave(testSampleRate, 440, testSampleRate)
	original := make([]float64, len(samples))
	copy(original, samples)

	Preprocess(samples, testSampleRate, DefaultPreprocessingConfig())

	for i := range samples {
		if samples[i] != original[i] {
			t.Fatalf("input mutated at index %d", i)
		}
	}
}

func TestAGCReachesTargetLevel(t *testing.T) {
	t.Parallel()

	// A quiet sine should be boosted close to the target RMS.
	quiet := make([]float64, testSampleRate)
	for i := range quiet {
		quiet[i] = 0.01 * math.Sin(2*math.Pi*440*float64(i)/float64(testSampleRate))
	}

	out := applyAGC(quiet, 0.3)
	rms := rootMeanSquare(out)
	if math.Abs(rms-0.3) > 0.05 {
		t.Errorf("AGC output RMS = %f, want about 0.3", rms)
	}
}

func TestEstimateSNRHigherForImpulse(t *testing.T) {
	t.Parallel()

	noisy := testNoise(3*testSampleRate, 0.01)
	withImpulse := make([]float64, len(noisy))
	copy(withImpulse, noisy)
	addImpulse(withImpulse, testSampleRate, 1.5, 0.05, 0.9)

	noiseSNR := EstimateSNR(noisy)
	impulseSNR := EstimateSNR(withImpulse)
	if impulseSNR <= noiseSNR {
		t.Errorf("impulse SNR %.1f should exceed noise-only SNR %.1f", impulseSNR, noiseSNR)
	}
}

func TestHighPassRemovesDCOffset(t *testing.T) {
	t.Parallel()

	offset := make([]float64, testSampleRate)
	for i := range offset {
		offset[i] = 0.5
	}

	out := highPass(offset, testSampleRate, 80)

	// After the filter settles, a constant input should decay toward zero.
	var tail float64
	for _, s := range out[len(out)/2:] {
		tail += math.Abs(s)
	}
	tail /= float64(len(out) / 2)
	if tail > 0.01 {
		t.Errorf("high-pass left mean absolute level %f on DC input", tail)
	}
}
