package gunshot

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FeatureExtractor turns an event's audio segment into a log-mel
// spectrogram tensor of a fixed target shape. Extraction is deterministic:
// the same segment always yields the same tensor.
type FeatureExtractor struct {
	cfg Config

	fft *fourier.FFT
	win []float64
}

func NewFeatureExtractor(cfg Config) *FeatureExtractor {
	return &FeatureExtractor{
		cfg: cfg,
		fft: fourier.NewFFT(cfg.FFTSize),
		win: hannWindow(cfg.FFTSize),
	}
}

// Extract cuts the event's segment out of samples, widened by the context
// margin on both sides, and produces a tensor of exactly target shape. Short
// segments are padded with the spectrogram floor; long ones are truncated.
// Values are min-max normalized to [0, 1].
func (fe *FeatureExtractor) Extract(samples []float64, sampleRate int, event CandidateEvent, target Shape) (*FeatureTensor, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyBuffer
	}

	lo := int((event.Start - fe.cfg.ContextMargin) * float64(sampleRate))
	hi := int((event.End + fe.cfg.ContextMargin) * float64(sampleRate))
	if lo < 0 {
		lo = 0
	}
	if hi > len(samples) {
		hi = len(samples)
	}
	if hi <= lo {
		return nil, ErrEmptyBuffer
	}

	mel := fe.logMel(samples[lo:hi], sampleRate, target.Mels)
	return fitToShape(mel, target), nil
}

// logMel computes a log-scaled mel spectrogram: STFT power, mel filterbank,
// then dB relative to the segment's peak.
func (fe *FeatureExtractor) logMel(segment []float64, sampleRate, nMels int) [][]float64 {
	n := fe.cfg.FFTSize
	hop := fe.cfg.HopLength
	bins := n/2 + 1

	frames := 1 + (len(segment)-1)/hop
	power := make([][]float64, frames)
	buf := make([]float64, n)
	for t := 0; t < frames; t++ {
		start := t * hop
		for k := 0; k < n; k++ {
			if start+k < len(segment) {
				buf[k] = segment[start+k] * fe.win[k]
			} else {
				buf[k] = 0
			}
		}
		coeff := fe.fft.Coefficients(nil, buf)
		row := make([]float64, bins)
		for f := 0; f < bins; f++ {
			mag := cmplx.Abs(coeff[f])
			row[f] = mag * mag
		}
		power[t] = row
	}

	filters := melFilterbank(nMels, bins, n, sampleRate)

	// mel[m][t], dB relative to the global peak.
	mel := make([][]float64, nMels)
	peak := 1e-10
	for m := range mel {
		mel[m] = make([]float64, frames)
		for t := 0; t < frames; t++ {
			var acc float64
			for _, fw := range filters[m] {
				acc += fw.weight * power[t][fw.bin]
			}
			mel[m][t] = acc
			if acc > peak {
				peak = acc
			}
		}
	}
	for m := range mel {
		for t := range mel[m] {
			db := 10 * math.Log10(math.Max(mel[m][t], 1e-10)/peak)
			if db < -80 {
				db = -80
			}
			mel[m][t] = db
		}
	}
	return mel
}

// fitToShape pads (with the dB floor) or truncates the time axis to the
// target frame count and min-max normalizes into [0, 1].
func fitToShape(mel [][]float64, target Shape) *FeatureTensor {
	tensor := &FeatureTensor{
		Shape: target,
		Data:  make([]float32, target.Size()),
	}

	minV, maxV := math.Inf(1), math.Inf(-1)
	for m := 0; m < target.Mels && m < len(mel); m++ {
		for t := 0; t < target.Frames && t < len(mel[m]); t++ {
			v := mel[m][t]
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
	}
	if math.IsInf(minV, 1) {
		minV, maxV = -80, 0
	}
	// Padding uses the floor, which participates in normalization.
	if len(mel) > 0 && (target.Frames > len(mel[0]) || target.Mels > len(mel)) && minV > -80 {
		minV = -80
	}

	span := maxV - minV
	if span < 1e-10 {
		span = 1
	}
	for m := 0; m < target.Mels; m++ {
		for t := 0; t < target.Frames; t++ {
			v := -80.0
			if m < len(mel) && t < len(mel[m]) {
				v = mel[m][t]
			}
			tensor.Data[m*target.Frames+t] = float32((v - minV) / span)
		}
	}
	return tensor
}

type filterWeight struct {
	bin    int
	weight float64
}

// melFilterbank builds triangular filters spaced evenly on the mel scale
// between 0 Hz and Nyquist.
func melFilterbank(nMels, bins, fftSize, sampleRate int) [][]filterWeight {
	melMax := hzToMel(float64(sampleRate) / 2)
	points := make([]float64, nMels+2)
	for i := range points {
		hz := melToHz(melMax * float64(i) / float64(nMels+1))
		points[i] = hz * float64(fftSize) / float64(sampleRate)
	}

	filters := make([][]filterWeight, nMels)
	for m := 0; m < nMels; m++ {
		left, center, right := points[m], points[m+1], points[m+2]
		for b := int(left); b <= int(right)+1 && b < bins; b++ {
			fb := float64(b)
			var w float64
			switch {
			case fb >= left && fb <= center && center > left:
				w = (fb - left) / (center - left)
			case fb > center && fb <= right && right > center:
				w = (right - fb) / (right - center)
			}
			if w > 0 {
				filters[m] = append(filters[m], filterWeight{bin: b, weight: w})
			}
		}
	}
	return filters
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
