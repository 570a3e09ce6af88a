package gunshot

import (
	"math"
)

// PreprocessingConfig controls the conditioning applied to audio before
// event detection. Gunshots are broadband impulses, so only low-frequency
// rumble (wind, handling noise) is filtered out; no band-limiting.
type PreprocessingConfig struct {
	EnableHighPass bool
	HighPassCutoff float64 // Hz, removes rumble below this

	EnablePreEmphasis bool
	PreEmphasis       float64 // first-difference coefficient

	EnableAGC bool
	AGCTarget float64 // target RMS level
}

func DefaultPreprocessingConfig() PreprocessingConfig {
	return PreprocessingConfig{
		EnableHighPass:    true,
		HighPassCutoff:    80.0,
		EnablePreEmphasis: true,
		PreEmphasis:       0.97,
		EnableAGC:         true,
		AGCTarget:         0.3,
	}
}

// Preprocess conditions samples for detection. The input slice is not
// modified.
func Preprocess(samples []float64, sampleRate int, cfg PreprocessingConfig) []float64 {
	if len(samples) == 0 {
		return samples
	}
	out := make([]float64, len(samples))
	copy(out, samples)

	if cfg.EnableHighPass {
		out = highPass(out, sampleRate, cfg.HighPassCutoff)
	}
	if cfg.EnablePreEmphasis {
		out = preEmphasize(out, cfg.PreEmphasis)
	}
	if cfg.EnableAGC {
		out = applyAGC(out, cfg.AGCTarget)
	}
	return out
}

// highPass is a first-order IIR filter removing content below cutoffHz.
func highPass(samples []float64, sampleRate int, cutoffHz float64) []float64 {
	if cutoffHz <= 0 || cutoffHz >= float64(sampleRate)/2 {
		return samples
	}
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sampleRate)
	alpha := rc / (rc + dt)

	out := make([]float64, len(samples))
	out[0] = samples[0]
	for i := 1; i < len(samples); i++ {
		out[i] = alpha * (out[i-1] + samples[i] - samples[i-1])
	}
	return out
}

// preEmphasize boosts the high-frequency content that carries the muzzle
// blast's attack transient.
func preEmphasize(samples []float64, coeff float64) []float64 {
	out := make([]float64, len(samples))
	out[0] = samples[0]
	for i := 1; i < len(samples); i++ {
		out[i] = samples[i] - coeff*samples[i-1]
	}
	return out
}

// applyAGC scales the buffer toward a target RMS with tanh soft limiting
// so the impulse peaks do not clip.
func applyAGC(samples []float64, targetRMS float64) []float64 {
	rms := rootMeanSquare(samples)
	if rms == 0 || math.Abs(rms-targetRMS) < 1e-6 {
		return samples
	}
	gain := targetRMS / rms

	out := make([]float64, len(samples))
	for i, s := range samples {
		v := s * gain
		if math.Abs(v) > 0.95 {
			v = math.Tanh(v) * 0.95
		}
		out[i] = v
	}
	return out
}

// EstimateSNR estimates the signal-to-noise ratio in dB, using the first
// tenth of the buffer as the noise estimate.
func EstimateSNR(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	noiseLen := len(samples) / 10
	if noiseLen < 512 {
		noiseLen = 512
	}
	if noiseLen > len(samples) {
		noiseLen = len(samples)
	}

	noiseRMS := rootMeanSquare(samples[:noiseLen])
	noisePower := noiseRMS * noiseRMS

	var signalPower float64
	for _, s := range samples {
		signalPower += s * s
	}
	signalPower /= float64(len(samples))

	if noisePower == 0 {
		return 100
	}
	ratio := signalPower / noisePower
	if ratio <= 0 {
		return -100
	}
	return 10 * math.Log10(ratio)
}

func rootMeanSquare(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
