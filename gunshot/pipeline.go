package gunshot

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gunshot-detection/utils"
)

// Pipeline runs the full detection chain: event detection, feature
// extraction, binary gunshot classification, and, for confirmed gunshots,
// firearm and caliber classification. It holds no per-run state; Run may be
// called concurrently.
type Pipeline struct {
	cfg       Config
	logger    *slog.Logger
	detector  *EventDetector
	extractor *FeatureExtractor
	gunshot   *GunshotClassifier
	firearm   *LabelClassifier
	caliber   *LabelClassifier
}

// NewPipeline assembles a pipeline from already-constructed classifiers.
// Used directly by tests; production code goes through LoadPipeline.
func NewPipeline(cfg Config, gunshot *GunshotClassifier, firearm, caliber *LabelClassifier) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		logger:    utils.GetLogger(),
		detector:  NewEventDetector(cfg),
		extractor: NewFeatureExtractor(cfg),
		gunshot:   gunshot,
		firearm:   firearm,
		caliber:   caliber,
	}
}

// LoadPipeline loads all three models and both label encoders from the
// paths in cfg. Any missing or corrupt artifact aborts construction.
func LoadPipeline(cfg Config) (*Pipeline, error) {
	gunshotModel, err := LoadTFLiteModel(cfg.GunshotModelPath)
	if err != nil {
		return nil, err
	}
	firearmModel, err := LoadTFLiteModel(cfg.FirearmModelPath)
	if err != nil {
		gunshotModel.Close()
		return nil, err
	}
	caliberModel, err := LoadTFLiteModel(cfg.CaliberModelPath)
	if err != nil {
		gunshotModel.Close()
		firearmModel.Close()
		return nil, err
	}
	firearmEncoder, err := LoadLabelEncoder(cfg.FirearmEncoderPath)
	if err != nil {
		gunshotModel.Close()
		firearmModel.Close()
		caliberModel.Close()
		return nil, err
	}
	caliberEncoder, err := LoadLabelEncoder(cfg.CaliberEncoderPath)
	if err != nil {
		gunshotModel.Close()
		firearmModel.Close()
		caliberModel.Close()
		return nil, err
	}

	return NewPipeline(cfg,
		NewGunshotClassifier(gunshotModel, cfg.GunshotThreshold),
		NewLabelClassifier(firearmModel, firearmEncoder),
		NewLabelClassifier(caliberModel, caliberEncoder),
	), nil
}

// Run detects candidate events in samples and classifies each one. Records
// come back ordered by event start time. Firearm and caliber are only
// populated for events classified as gunshots.
func (p *Pipeline) Run(samples []float64, sampleRate int) ([]DetectionRecord, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyBuffer
	}

	events, err := p.detector.Detect(samples, sampleRate)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []DetectionRecord{}, nil
	}

	records := make([]DetectionRecord, len(events))
	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(events) {
		workers = len(events)
	}

	if workers == 1 {
		for i, ev := range events {
			rec, err := p.classifyEvent(samples, sampleRate, ev)
			if err != nil {
				return nil, err
			}
			records[i] = rec
		}
		return records, nil
	}

	// Each worker writes to its own indices, so order is preserved
	// regardless of completion order.
	jobs := make(chan int, len(events))
	for i := range events {
		jobs <- i
	}
	close(jobs)

	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rec, err := p.classifyEvent(samples, sampleRate, events[i])
				if err != nil {
					errs <- err
					return
				}
				records[i] = rec
			}
		}()
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return nil, err
	}
	return records, nil
}

func (p *Pipeline) classifyEvent(samples []float64, sampleRate int, ev CandidateEvent) (DetectionRecord, error) {
	tensor, err := p.extractor.Extract(samples, sampleRate, ev, p.gunshot.InputShape())
	if err != nil {
		return DetectionRecord{}, fmt.Errorf("extract gunshot features for event at %.2fs: %w", ev.Start, err)
	}
	isGunshot, confidence, err := p.gunshot.Classify(tensor)
	if err != nil {
		return DetectionRecord{}, fmt.Errorf("classify event at %.2fs: %w", ev.Start, err)
	}

	rec := DetectionRecord{
		Event:             ev,
		IsGunshot:         isGunshot,
		GunshotConfidence: confidence,
	}
	if !isGunshot {
		return rec, nil
	}

	firearmTensor, err := p.extractor.Extract(samples, sampleRate, ev, p.firearm.InputShape())
	if err != nil {
		return DetectionRecord{}, fmt.Errorf("extract firearm features for event at %.2fs: %w", ev.Start, err)
	}
	firearm, err := p.firearm.Classify(firearmTensor)
	if err != nil {
		return DetectionRecord{}, fmt.Errorf("classify firearm for event at %.2fs: %w", ev.Start, err)
	}
	rec.Firearm = &firearm

	caliberTensor := firearmTensor
	if p.caliber.InputShape() != p.firearm.InputShape() {
		caliberTensor, err = p.extractor.Extract(samples, sampleRate, ev, p.caliber.InputShape())
		if err != nil {
			return DetectionRecord{}, fmt.Errorf("extract caliber features for event at %.2fs: %w", ev.Start, err)
		}
	}
	caliber, err := p.caliber.Classify(caliberTensor)
	if err != nil {
		return DetectionRecord{}, fmt.Errorf("classify caliber for event at %.2fs: %w", ev.Start, err)
	}
	rec.Caliber = &caliber

	return rec, nil
}

// ClassifyClip treats the whole buffer as a single candidate event,
// bypassing event detection. Used for curated clips of known content.
func (p *Pipeline) ClassifyClip(samples []float64, sampleRate int) (DetectionRecord, error) {
	if len(samples) == 0 {
		return DetectionRecord{}, ErrEmptyBuffer
	}
	ev := CandidateEvent{Start: 0, End: float64(len(samples)) / float64(sampleRate)}
	return p.classifyEvent(samples, sampleRate, ev)
}

// Analyze runs the pipeline and wraps the records in a summary with timing
// and signal quality measurements.
func (p *Pipeline) Analyze(samples []float64, sampleRate int, sourceFile string) (*AnalysisSummary, error) {
	start := time.Now()
	records, err := p.Run(samples, sampleRate)
	if err != nil {
		return nil, err
	}

	gunshots := 0
	for _, r := range records {
		if r.IsGunshot {
			gunshots++
		}
	}

	summary := &AnalysisSummary{
		Records:      records,
		EventCount:   len(records),
		GunshotCount: gunshots,
		Duration:     float64(len(samples)) / float64(sampleRate),
		SNRDb:        EstimateSNR(samples),
		LatencyMs:    float64(time.Since(start).Microseconds()) / 1000,
		SourceFile:   sourceFile,
	}
	p.logger.Info("analysis complete",
		slog.String("source", sourceFile),
		slog.Int("events", summary.EventCount),
		slog.Int("gunshots", summary.GunshotCount),
		slog.Float64("duration_s", summary.Duration),
		slog.Float64("latency_ms", summary.LatencyMs))
	return summary, nil
}

// Close releases the underlying model interpreters.
func (p *Pipeline) Close() error {
	var firstErr error
	for _, m := range []interface{ Close() error }{p.gunshot.model, p.firearm.model, p.caliber.model} {
		if m == nil {
			continue
		}
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
