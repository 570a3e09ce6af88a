package gunshot

import (
	"strconv"

	"gunshot-detection/utils"
)

// Config carries every tunable of the detection pipeline. Zero values are
// not usable; start from DefaultConfig and override.
type Config struct {
	// SampleRate is the rate all audio is resampled to before analysis.
	SampleRate int

	// Event detection.
	FrameSeconds   float64 // analysis frame length
	FrameOverlap   float64 // fraction of a frame shared with its successor
	BaselineFrames int     // trailing frames used for the noise baseline
	ThresholdK     float64 // stddev multiplier above the baseline mean
	EnergyFloor    float64 // absolute floor on the normalized energy threshold
	MinEventGap    float64 // seconds; closer events are merged
	ContextMargin  float64 // seconds of context kept around each event

	// Feature extraction.
	FFTSize   int
	HopLength int

	// Classifier input shapes.
	GunshotShape Shape
	FirearmShape Shape
	CaliberShape Shape

	// GunshotThreshold is the probability above which a candidate event
	// counts as a gunshot.
	GunshotThreshold float64

	// Model and encoder artifacts.
	GunshotModelPath   string
	FirearmModelPath   string
	CaliberModelPath   string
	FirearmEncoderPath string
	CaliberEncoderPath string

	// Workers bounds classification concurrency per run. 1 means serial.
	Workers int
}

// DefaultConfig returns the tunings the shipped models were trained with.
func DefaultConfig() Config {
	return Config{
		SampleRate:         22050,
		FrameSeconds:       0.05,
		FrameOverlap:       0.5,
		BaselineFrames:     40,
		ThresholdK:         3.0,
		EnergyFloor:        0.5,
		MinEventGap:        0.3,
		ContextMargin:      0.1,
		FFTSize:            2048,
		HopLength:          512,
		GunshotShape:       Shape{Mels: 64, Frames: 173},
		FirearmShape:       Shape{Mels: 128, Frames: 44},
		CaliberShape:       Shape{Mels: 128, Frames: 44},
		GunshotThreshold:   0.5,
		GunshotModelPath:   "models/gunshot.tflite",
		FirearmModelPath:   "models/firearm.tflite",
		CaliberModelPath:   "models/caliber.tflite",
		FirearmEncoderPath: "models/firearm_labels.json",
		CaliberEncoderPath: "models/caliber_labels.json",
		Workers:            1,
	}
}

// ConfigFromEnv builds a Config from DefaultConfig with GUNSHOT_* overrides.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.SampleRate = envInt("GUNSHOT_SAMPLE_RATE", cfg.SampleRate)
	cfg.ThresholdK = envFloat("GUNSHOT_THRESHOLD_K", cfg.ThresholdK)
	cfg.EnergyFloor = envFloat("GUNSHOT_ENERGY_FLOOR", cfg.EnergyFloor)
	cfg.MinEventGap = envFloat("GUNSHOT_MIN_EVENT_GAP", cfg.MinEventGap)
	cfg.GunshotThreshold = envFloat("GUNSHOT_PROB_THRESHOLD", cfg.GunshotThreshold)
	cfg.GunshotModelPath = utils.GetEnv("GUNSHOT_MODEL", cfg.GunshotModelPath)
	cfg.FirearmModelPath = utils.GetEnv("FIREARM_MODEL", cfg.FirearmModelPath)
	cfg.CaliberModelPath = utils.GetEnv("CALIBER_MODEL", cfg.CaliberModelPath)
	cfg.FirearmEncoderPath = utils.GetEnv("FIREARM_ENCODER", cfg.FirearmEncoderPath)
	cfg.CaliberEncoderPath = utils.GetEnv("CALIBER_ENCODER", cfg.CaliberEncoderPath)
	cfg.Workers = envInt("GUNSHOT_WORKERS", cfg.Workers)
	return cfg
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(utils.GetEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(utils.GetEnv(key, strconv.FormatFloat(fallback, 'f', -1, 64)), 64)
	if err != nil {
		return fallback
	}
	return v
}
