package models

import (
	"encoding/json"
	"time"
)

// RecordData is the capture payload streamed by clients. Audio is a
// base64-encoded WAV blob.
type RecordData struct {
	Audio      string   `json:"audio"`
	Duration   float64  `json:"duration"`
	Channels   int      `json:"channels"`
	SampleRate int      `json:"sampleRate"`
	SampleSize int      `json:"sampleSize"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

// Detection is a stored gunshot detection with location and metadata.
// Records holds the per-event detection records as JSON.
type Detection struct {
	ID            int64           `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Latitude      *float64        `json:"latitude,omitempty"`
	Longitude     *float64        `json:"longitude,omitempty"`
	IsGunshot     bool            `json:"isGunshot"`
	EventCount    int             `json:"eventCount"`
	GunshotCount  int             `json:"gunshotCount"`
	Firearm       string          `json:"firearm,omitempty"`
	Caliber       string          `json:"caliber,omitempty"`
	Confidence    float64         `json:"confidence"`
	SNRDb         float64         `json:"snrDb,omitempty"`
	LatencyMs     float64         `json:"latencyMs"`
	Records       json.RawMessage `json:"records"`
	RecordingPath string          `json:"recordingPath,omitempty"`
}
