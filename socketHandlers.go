package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"time"

	"gunshot-detection/chat"
	"gunshot-detection/detections"
	"gunshot-detection/gunshot"
	"gunshot-detection/models"
	"gunshot-detection/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
)

type socketController struct {
	pipeline          *gunshot.Pipeline
	gemini            *chat.GeminiClient
	persistRecordings bool
}

func newSocketController(pipeline *gunshot.Pipeline, gemini *chat.GeminiClient, persist bool) *socketController {
	return &socketController{pipeline: pipeline, gemini: gemini, persistRecordings: persist}
}

// handleChatMessage streams assistant output back to the socket chunk by
// chunk, terminated by a chatComplete event.
func (c *socketController) handleChatMessage(socket socketio.Conn, message string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	if c.gemini == nil {
		socket.Emit("chatError", map[string]string{"message": "chat service not configured"})
		return
	}
	if message == "" {
		socket.Emit("chatError", map[string]string{"message": "empty message"})
		return
	}

	err := c.gemini.GenerateResponseStream(message, func(chunk string) error {
		socket.Emit("chatResponse", map[string]string{"chunk": chunk})
		return nil
	})
	if err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "chat stream failed", slog.Any("error", err))
		socket.Emit("chatError", map[string]string{"message": "chat error"})
		return
	}
	socket.Emit("chatComplete", map[string]string{})
}

func (c *socketController) handleNewRecording(socket socketio.Conn, recordData string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	logger.InfoContext(ctx, "handleNewRecording called",
		slog.String("socketID", socket.ID()),
		slog.Int("dataLength", len(recordData)),
	)

	if recordData == "" {
		logger.ErrorContext(ctx, "no data received in newRecording event")
		socket.Emit("analysisError", map[string]string{"message": "no audio data received"})
		return
	}

	var recData models.RecordData
	if err := json.Unmarshal([]byte(recordData), &recData); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to parse record payload", slog.Any("error", err))
		socket.Emit("analysisError", map[string]string{"message": "invalid audio payload"})
		return
	}

	logger.InfoContext(ctx, "received recording",
		slog.String("socketID", socket.ID()),
		slog.Int("sampleRate", recData.SampleRate),
		slog.Int("channels", recData.Channels),
		slog.Float64("duration", recData.Duration),
	)

	cfg := gunshot.ConfigFromEnv()
	audioSample, err := gunshot.PrepareAudioSample(recData, cfg.SampleRate, c.persistRecordings)
	if err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "failed to prepare audio sample", slog.Any("error", err))
		socket.Emit("analysisError", map[string]string{"message": "unable to decode audio"})
		return
	}

	summary, err := c.pipeline.Analyze(audioSample.Samples, audioSample.SampleRate, audioSample.Persisted)
	if err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "analysis failed", slog.Any("error", err))
		socket.Emit("analysisError", map[string]string{"message": "analysis error"})
		return
	}
	summary.SNRDb = audioSample.SNRDb

	logger.InfoContext(ctx, "analysis complete",
		slog.String("socketID", socket.ID()),
		slog.Int("events", summary.EventCount),
		slog.Int("gunshots", summary.GunshotCount),
		slog.Float64("latency_ms", summary.LatencyMs),
	)

	if summary.GunshotCount > 0 {
		if detection := detectionFromSummary(summary, recData.Latitude, recData.Longitude); detection != nil {
			if err := detections.SaveDetection(detection); err != nil {
				log.Printf("[Socket] Failed to save detection: %v\n", err)
			}
		}
	}

	socket.Emit("analysis", summary)
}

// detectionFromSummary flattens an analysis summary into a storable
// detection, keyed on the highest-confidence gunshot event.
func detectionFromSummary(summary *gunshot.AnalysisSummary, lat, lng *float64) *models.Detection {
	var best *gunshot.DetectionRecord
	for i := range summary.Records {
		r := &summary.Records[i]
		if !r.IsGunshot {
			continue
		}
		if best == nil || r.GunshotConfidence > best.GunshotConfidence {
			best = r
		}
	}
	if best == nil {
		return nil
	}

	recordsJSON, err := json.Marshal(summary.Records)
	if err != nil {
		return nil
	}

	detection := &models.Detection{
		Timestamp:     time.Now(),
		Latitude:      lat,
		Longitude:     lng,
		IsGunshot:     true,
		EventCount:    summary.EventCount,
		GunshotCount:  summary.GunshotCount,
		Confidence:    best.GunshotConfidence,
		SNRDb:         summary.SNRDb,
		LatencyMs:     summary.LatencyMs,
		Records:       recordsJSON,
		RecordingPath: summary.SourceFile,
	}
	if best.Firearm != nil {
		detection.Firearm = best.Firearm.Label
	}
	if best.Caliber != nil {
		detection.Caliber = best.Caliber.Label
	}
	return detection
}
