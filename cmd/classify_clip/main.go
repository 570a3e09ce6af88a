package main

import (
	"flag"
	"fmt"
	"log"

	"gunshot-detection/gunshot"
	"gunshot-detection/wav"
)

// classify_clip treats an entire WAV file as a single candidate event and
// runs all three classifiers over it, bypassing event detection. Useful for
// verifying model behavior on curated clips.
func main() {
	input := flag.String("i", "", "Path to WAV clip")
	flag.Parse()

	if *input == "" {
		log.Fatal("usage: classify_clip -i <file.wav>")
	}

	cfg := gunshot.ConfigFromEnv()
	pipeline, err := gunshot.LoadPipeline(cfg)
	if err != nil {
		log.Fatalf("failed to load pipeline: %v", err)
	}
	defer pipeline.Close()

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

	record, err := pipeline.ClassifyClip(samples, cfg.SampleRate)
	if err != nil {
		log.Fatalf("classification failed: %v", err)
	}

	fmt.Printf("%s (%.2fs)\n", *input, info.Duration)
	fmt.Printf("  gunshot: %v (confidence %.3f)\n", record.IsGunshot, record.GunshotConfidence)
	if record.Firearm != nil {
		fmt.Printf("  firearm: %s (confidence %.3f)\n", record.Firearm.Label, record.Firearm.Confidence)
	}
	if record.Caliber != nil {
		fmt.Printf("  caliber: %s (confidence %.3f)\n", record.Caliber.Label, record.Caliber.Confidence)
	}
}
