package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"gunshot-detection/gunshot"
	"gunshot-detection/wav"
)

// detect_events runs only the event detector over a WAV file, printing the
// candidate events as JSON. Useful for tuning detection thresholds without
// loading any models.
func main() {
	input := flag.String("i", "", "Path to WAV file")
	thresholdK := flag.Float64("k", 0, "Override threshold stddev multiplier (0 = default)")
	floor := flag.Float64("floor", 0, "Override energy floor (0 = default)")
	flag.Parse()

	if *input == "" {
		log.Fatal("usage: detect_events -i <file.wav>")
	}

	cfg := gunshot.ConfigFromEnv()
	if *thresholdK > 0 {
		cfg.ThresholdK = *thresholdK
	}
	if *floor > 0 {
		cfg.EnergyFloor = *floor
	}

	samples, info, err := wav.ReadFile(*input)
	if err != nil {
		log.Fatalf("failed to read %s: %v", *input, err)
	}
	if info.SampleRate != cfg.SampleRate {
		samples, err = wav.Resample(samples, info.SampleRate, cfg.SampleRate)
		if err != nil {
			log.Fatalf("failed to resample: %v", err)
		}
	}
	samples = gunshot.Preprocess(samples, cfg.SampleRate, gunshot.DefaultPreprocessingConfig())

	detector := gunshot.NewEventDetector(cfg)
	events, err := detector.Detect(samples, cfg.SampleRate)
	if err != nil {
		log.Fatalf("detection failed: %v", err)
	}

	fmt.Printf("%s: %.2fs, %d event(s)\n", *input, info.Duration, len(events))
	out, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal events: %v", err)
	}
	os.Stdout.Write(out)
	fmt.Println()
}
