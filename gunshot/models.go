package gunshot

import "fmt"

// CandidateEvent is a time window flagged by energy analysis as a possible
// gunshot, prior to classification.
type CandidateEvent struct {
	Start          float64 `json:"start"`          // seconds
	End            float64 `json:"end"`            // seconds
	PeakAmplitude  float64 `json:"peakAmplitude"`  // max |sample| inside the window
	PeakConfidence float64 `json:"peakConfidence"` // normalised peak energy, 0-1
}

// Shape is the fixed input geometry of a classifier model: mel bands by
// time frames.
type Shape struct {
	Mels   int `json:"mels"`
	Frames int `json:"frames"`
}

func (s Shape) Size() int {
	return s.Mels * s.Frames
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Mels, s.Frames)
}

// FeatureTensor is a normalised log-mel spectrogram sized for exactly one
// model. Row-major: Data[m*Shape.Frames+t].
type FeatureTensor struct {
	Shape Shape
	Data  []float32
}

// ClassificationResult pairs a decoded class label with the raw model
// probability of that class.
type ClassificationResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// DetectionRecord is the per-event output of the pipeline. Firearm and
// Caliber are nil unless the event was classified as a gunshot.
type DetectionRecord struct {
	Event             CandidateEvent        `json:"event"`
	IsGunshot         bool                  `json:"isGunshot"`
	GunshotConfidence float64               `json:"gunshotConfidence"`
	Firearm           *ClassificationResult `json:"firearm,omitempty"`
	Caliber           *ClassificationResult `json:"caliber,omitempty"`
}

// AnalysisSummary packages one pipeline run together with auxiliary
// telemetry for the serve endpoints and persistence layer.
type AnalysisSummary struct {
	Records      []DetectionRecord `json:"records"`
	EventCount   int               `json:"eventCount"`
	GunshotCount int               `json:"gunshotCount"`
	Duration     float64           `json:"duration"`
	SNRDb        float64           `json:"snrDb,omitempty"`
	LatencyMs    float64           `json:"latencyMs"`
	SourceFile   string            `json:"sourceFile,omitempty"`
}
