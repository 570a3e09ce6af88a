package gunshot

// Audio ingestion for live capture.
//
// Clients stream base64-encoded WAV payloads. Ingestion decodes to mono
// float64 PCM, resamples to the pipeline's rate, estimates SNR on the raw
// signal and then applies preprocessing, so detection always sees audio in
// the same format the models were trained on.

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gunshot-detection/models"
	"gunshot-detection/utils"
	"gunshot-detection/wav"
)

// AudioSample bundles decoded PCM samples with contextual metadata.
type AudioSample struct {
	Samples    []float64
	SampleRate int
	Duration   float64
	Persisted  string
	SNRDb      float64
}

// PrepareAudioSample converts a client capture payload into PCM samples at
// the pipeline's sample rate. When persist is true the decoded recording is
// kept under GUNSHOT_RECORDING_DIR for later review.
func PrepareAudioSample(recData models.RecordData, targetRate int, persist bool) (*AudioSample, error) {
	raw, err := base64.StdEncoding.DecodeString(recData.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}

	samples, info, err := wav.DecodeBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav payload: %w", err)
	}

	if info.SampleRate != targetRate {
		samples, err = wav.Resample(samples, info.SampleRate, targetRate)
		if err != nil {
			return nil, fmt.Errorf("failed to resample from %d Hz: %w", info.SampleRate, err)
		}
	}

	duration := float64(len(samples)) / float64(targetRate)
	snrDb := EstimateSNR(samples)
	processed := Preprocess(samples, targetRate, DefaultPreprocessingConfig())

	result := &AudioSample{
		Samples:    processed,
		SampleRate: targetRate,
		Duration:   duration,
		SNRDb:      snrDb,
	}

	if persist {
		dir := utils.GetEnv("GUNSHOT_RECORDING_DIR", "recordings")
		if err := utils.CreateFolder(dir); err == nil {
			// Timestamp plus a random suffix so concurrent uploads never
			// collide on a filename.
			dest := filepath.Join(dir, fmt.Sprintf("rec_%d_%08x.wav", time.Now().Unix(), utils.GenerateUniqueID()))
			if err := wav.WriteFile(dest, samples, targetRate); err == nil {
				result.Persisted = dest
			} else {
				_ = os.Remove(dest)
			}
		}
	}

	return result, nil
}
