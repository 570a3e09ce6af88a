package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gunshot-detection/gunshot"
	"gunshot-detection/wav"
)

// evaluate_model measures classifier accuracy over a labeled clip
// directory. Layout: <dir>/<label>/*.wav, where <label> is the expected
// firearm class, plus an optional <dir>/other/ of non-gunshot clips used to
// measure the binary stage.

// EvaluationConfig holds evaluation parameters
type EvaluationConfig struct {
	DataDir    string
	ReportPath string
	Verbose    bool
}

// ClassMetrics tracks per-class performance
type ClassMetrics struct {
	ClassName     string
	TotalSamples  int
	CorrectCount  int
	Accuracy      float64
	AvgConfidence float64
	Misclassified []MisclassificationInfo
}

// MisclassificationInfo stores details of incorrect predictions
type MisclassificationInfo struct {
	Filename       string
	TrueLabel      string
	PredictedLabel string
	Confidence     float64
}

// EvaluationReport contains the evaluation results
type EvaluationReport struct {
	Timestamp       time.Time
	TotalSamples    int
	CorrectCount    int
	OverallAccuracy float64
	AvgConfidence   float64
	ClassMetrics    []ClassMetrics
	ConfusionMatrix map[string]map[string]int
	ProcessingTime  time.Duration
}

// nonGunshotLabel is the directory name for clips that must fail the
// binary gunshot stage.
const nonGunshotLabel = "other"

func main() {
	config := parseFlags()

	log.SetFlags(log.Ldate | log.Ltime)
	log.Println("=== Model Evaluation Pipeline ===")
	log.Printf("Evaluation data: %s\n", config.DataDir)
	log.Println()

	cfg := gunshot.ConfigFromEnv()
	pipeline, err := gunshot.LoadPipeline(cfg)
	if err != nil {
		log.Fatalf("ERROR: Failed to load pipeline: %v", err)
	}
	defer pipeline.Close()

	subdirs, err := discoverSubdirectories(config.DataDir)
	if err != nil {
		log.Fatalf("ERROR: Failed to read evaluation directory: %v", err)
	}
	log.Printf("Found %d classes to evaluate\n\n", len(subdirs))

	report := evaluate(pipeline, cfg, subdirs, config)
	printReport(report)

	if config.ReportPath != "" {
		if err := saveReport(report, config.ReportPath); err != nil {
			log.Printf("WARNING: Failed to save report: %v\n", err)
		} else {
			log.Printf("\nReport saved to: %s\n", config.ReportPath)
		}
	}
}

func parseFlags() EvaluationConfig {
	config := EvaluationConfig{}

	flag.StringVar(&config.DataDir, "data-dir", "test_data",
		"Directory containing labeled evaluation clips")
	flag.StringVar(&config.ReportPath, "report", "evaluation_report.json",
		"Path to save evaluation report (empty to skip)")
	flag.BoolVar(&config.Verbose, "verbose", false,
		"Enable verbose logging")

	flag.Parse()
	return config
}

func discoverSubdirectories(rootDir string) ([]string, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, err
	}

	var subdirs []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		subdirs = append(subdirs, filepath.Join(rootDir, entry.Name()))
	}
	return subdirs, nil
}

func evaluate(pipeline *gunshot.Pipeline, cfg gunshot.Config, subdirs []string, config EvaluationConfig) EvaluationReport {
	report := EvaluationReport{
		Timestamp:       time.Now(),
		ConfusionMatrix: make(map[string]map[string]int),
	}

	totalConfidence := 0.0
	for _, subdir := range subdirs {
		trueLabel := filepath.Base(subdir)
		metrics := evaluateClass(pipeline, cfg, subdir, trueLabel, config, &report)

		report.ClassMetrics = append(report.ClassMetrics, metrics)
		report.CorrectCount += metrics.CorrectCount
		report.TotalSamples += metrics.TotalSamples
		totalConfidence += metrics.AvgConfidence * float64(metrics.TotalSamples)
	}

	if report.TotalSamples > 0 {
		report.OverallAccuracy = float64(report.CorrectCount) / float64(report.TotalSamples) * 100
		report.AvgConfidence = totalConfidence / float64(report.TotalSamples)
	}
	report.ProcessingTime = time.Since(report.Timestamp)
	return report
}

func evaluateClass(pipeline *gunshot.Pipeline, cfg gunshot.Config, classDir, trueLabel string,
	config EvaluationConfig, report *EvaluationReport) ClassMetrics {

	metrics := ClassMetrics{ClassName: trueLabel}

	files, err := collectAudioFiles(classDir)
	if err != nil {
		log.Printf("WARNING: Failed to read directory %s: %v\n", classDir, err)
		return metrics
	}
	if len(files) == 0 {
		log.Printf("WARNING: No audio files in %s\n", classDir)
		return metrics
	}

	confidenceSum := 0.0
	for _, file := range files {
		predicted, confidence, err := classifyFile(pipeline, cfg, file)
		if err != nil {
			log.Printf("WARNING: Failed to classify %s: %v\n", file, err)
			continue
		}

		metrics.TotalSamples++
		confidenceSum += confidence

		if report.ConfusionMatrix[trueLabel] == nil {
			report.ConfusionMatrix[trueLabel] = make(map[string]int)
		}
		report.ConfusionMatrix[trueLabel][predicted]++

		if predicted == trueLabel {
			metrics.CorrectCount++
		} else {
			metrics.Misclassified = append(metrics.Misclassified, MisclassificationInfo{
				Filename:       filepath.Base(file),
				TrueLabel:      trueLabel,
				PredictedLabel: predicted,
				Confidence:     confidence,
			})
			if config.Verbose {
				log.Printf("  MISS %s: predicted %s (%.1f%%)\n", filepath.Base(file), predicted, confidence*100)
			}
		}
	}

	if metrics.TotalSamples > 0 {
		metrics.Accuracy = float64(metrics.CorrectCount) / float64(metrics.TotalSamples) * 100
		metrics.AvgConfidence = confidenceSum / float64(metrics.TotalSamples)
	}
	return metrics
}

// classifyFile maps a clip to a predicted label: the firearm class when the
// binary stage fires, nonGunshotLabel otherwise.
func classifyFile(pipeline *gunshot.Pipeline, cfg gunshot.Config, path string) (string, float64, error) {
	samples, info, err := wav.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	if info.SampleRate != cfg.SampleRate {
		samples, err = wav.Resample(samples, info.SampleRate, cfg.SampleRate)
		if err != nil {
			return "", 0, err
		}
	}

	record, err := pipeline.ClassifyClip(samples, cfg.SampleRate)
	if err != nil {
		return "", 0, err
	}
	if !record.IsGunshot {
		return nonGunshotLabel, record.GunshotConfidence, nil
	}
	if record.Firearm == nil {
		return nonGunshotLabel, record.GunshotConfidence, nil
	}
	return record.Firearm.Label, record.Firearm.Confidence, nil
}

func collectAudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func printReport(report EvaluationReport) {
	log.Println("=== Evaluation Results ===")
	log.Printf("Total samples: %d\n", report.TotalSamples)
	log.Printf("Overall accuracy: %.1f%%\n", report.OverallAccuracy)
	log.Printf("Average confidence: %.1f%%\n", report.AvgConfidence*100)
	log.Printf("Processing time: %s\n", report.ProcessingTime.Round(time.Millisecond))
	log.Println()

	for _, metrics := range report.ClassMetrics {
		log.Printf("%-20s %3d samples  accuracy %5.1f%%  confidence %5.1f%%\n",
			metrics.ClassName, metrics.TotalSamples, metrics.Accuracy, metrics.AvgConfidence*100)
	}

	if len(report.ConfusionMatrix) > 1 {
		log.Println()
		log.Println("Confusion matrix (true -> predicted):")
		trueLabels := make([]string, 0, len(report.ConfusionMatrix))
		for label := range report.ConfusionMatrix {
			trueLabels = append(trueLabels, label)
		}
		sort.Strings(trueLabels)
		for _, trueLabel := range trueLabels {
			row := report.ConfusionMatrix[trueLabel]
			predicted := make([]string, 0, len(row))
			for label := range row {
				predicted = append(predicted, label)
			}
			sort.Strings(predicted)
			var parts []string
			for _, label := range predicted {
				parts = append(parts, fmt.Sprintf("%s=%d", label, row[label]))
			}
			log.Printf("  %-20s %s\n", trueLabel, strings.Join(parts, " "))
		}
	}
}

func saveReport(report EvaluationReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
