package wav

// WAV decoding for the analysis pipeline. Input audio arrives either as a
// file on disk or as an in-memory payload from the serve endpoints; both
// paths end in the same mono float64 sample buffer handed to detection.

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// Info describes a decoded audio buffer.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   float64
}

var ErrEmptyAudio = errors.New("audio contains no samples")

// ReadFile decodes a WAV file into a mono sample buffer in [-1, 1].
func ReadFile(path string) ([]float64, Info, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer file.Close()

	decoder := gowav.NewDecoder(file)
	return decodeAll(decoder)
}

// DecodeBytes decodes an in-memory WAV payload into a mono sample buffer.
func DecodeBytes(data []byte) ([]float64, Info, error) {
	decoder := gowav.NewDecoder(bytes.NewReader(data))
	return decodeAll(decoder)
}

func decodeAll(decoder *gowav.Decoder) ([]float64, Info, error) {
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, Info{}, errors.New("input is not a valid WAV audio file")
	}

	divisor, err := sampleDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, Info{}, err
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to decode PCM data: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, Info{}, ErrEmptyAudio
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		channels = 1
	}

	samples := make([]float64, 0, len(buf.Data)/channels)
	for i := 0; i+channels <= len(buf.Data); i += channels {
		var frame float64
		for c := 0; c < channels; c++ {
			frame += float64(buf.Data[i+c]) / divisor
		}
		samples = append(samples, frame/float64(channels))
	}

	info := Info{
		SampleRate: int(decoder.SampleRate),
		Channels:   channels,
		BitDepth:   int(decoder.BitDepth),
		Duration:   float64(len(samples)) / float64(decoder.SampleRate),
	}
	return samples, info, nil
}

func sampleDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 8:
		return 128.0, nil
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
}

// Resample converts samples between rates using linear interpolation. Good
// enough for classifier input; the models were trained on 22.05 kHz audio.
func Resample(samples []float64, sourceRate, targetRate int) ([]float64, error) {
	if sourceRate <= 0 || targetRate <= 0 {
		return nil, errors.New("invalid sample rate")
	}
	if sourceRate == targetRate || len(samples) == 0 {
		return samples, nil
	}

	ratio := float64(targetRate) / float64(sourceRate)
	outLen := int(float64(len(samples)) * ratio)
	if outLen == 0 {
		outLen = 1
	}

	resampled := make([]float64, outLen)
	for i := range resampled {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			resampled[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		resampled[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return resampled, nil
}

// WriteFile persists a mono sample buffer as a 16-bit WAV file.
func WriteFile(path string, samples []float64, sampleRate int) error {
	if len(samples) == 0 {
		return ErrEmptyAudio
	}

	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}
	defer file.Close()

	encoder := gowav.NewEncoder(file, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   make([]int, len(samples)),
	}
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}

	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write PCM data: %w", err)
	}
	return encoder.Close()
}
