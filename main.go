package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"gunshot-detection/gunshot"
	"gunshot-detection/utils"
	"gunshot-detection/wav"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
)

func main() {
	if err := utils.CreateFolder("tmp"); err != nil {
		logger := utils.GetLogger()
		err := xerrors.New(err)
		logger.ErrorContext(context.Background(), "Failed create tmp dir.", slog.Any("error", err))
	}

	if len(os.Args) < 2 {
		fmt.Println("Expected 'serve' or 'analyze' subcommand")
		os.Exit(1)
	}
	_ = godotenv.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", "http", "Protocol to use (http or https)")
		port := serveCmd.String("p", "5000", "Port to use")
		serveCmd.Parse(os.Args[2:])
		serve(*protocol, *port)
	case "analyze":
		analyzeCmd := flag.NewFlagSet("analyze", flag.ExitOnError)
		input := analyzeCmd.String("i", "", "Path to WAV file to analyze")
		analyzeCmd.Parse(os.Args[2:])
		if *input == "" {
			fmt.Println("analyze requires -i <file.wav>")
			os.Exit(1)
		}
		analyze(*input)
	default:
		fmt.Println("Expected 'serve' or 'analyze' subcommand")
		os.Exit(1)
	}
}

// analyze runs the detection pipeline over a single file and prints the
// summary as JSON.
func analyze(path string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	cfg := gunshot.ConfigFromEnv()
	pipeline, err := gunshot.LoadPipeline(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load pipeline", slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
	defer pipeline.Close()

	samples, info, err := wav.ReadFile(path)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read audio file", slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
	if info.SampleRate != cfg.SampleRate {
		samples, err = wav.Resample(samples, info.SampleRate, cfg.SampleRate)
		if err != nil {
			logger.ErrorContext(ctx, "failed to resample", slog.Any("error", xerrors.New(err)))
			os.Exit(1)
		}
	}
	samples = gunshot.Preprocess(samples, cfg.SampleRate, gunshot.DefaultPreprocessingConfig())

	summary, err := pipeline.Analyze(samples, cfg.SampleRate, path)
	if err != nil {
		logger.ErrorContext(ctx, "analysis failed", slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logger.ErrorContext(ctx, "failed to marshal summary", slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
	fmt.Println(string(out))
}
