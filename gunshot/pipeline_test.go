package gunshot

import (
	"testing"
)

func newStubPipeline(cfg Config, gunshotProb float32) *Pipeline {
	gunshotModel := &stubModel{shape: cfg.GunshotShape, out: []float32{gunshotProb}}
	firearmModel := &stubModel{shape: cfg.FirearmShape, out: []float32{0.1, 0.7, 0.1, 0.1}}
	caliberModel := &stubModel{shape: cfg.CaliberShape, out: []float32{0.05, 0.05, 0.8, 0.1}}

	return NewPipeline(cfg,
		NewGunshotClassifier(gunshotModel, cfg.GunshotThreshold),
		NewLabelClassifier(firearmModel, &LabelEncoder{labels: []string{"handgun", "rifle", "shotgun", "submachine gun"}}),
		NewLabelClassifier(caliberModel, &LabelEncoder{labels: []string{".22", "9mm", ".45", "5.56mm"}}),
	)
}

func gunshotTestBuffer() []float64 {
	samples := testNoise(5*testSampleRate, 0.005)
	addImpulse(samples, testSampleRate, 1.0, 0.05, 0.9)
	addImpulse(samples, testSampleRate, 3.5, 0.05, 0.9)
	return samples
}

func TestPipelineEmptyBuffer(t *testing.T) {
	t.Parallel()

	pipeline := newStubPipeline(DefaultConfig(), 0.9)
	if _, err := pipeline.Run(nil, testSampleRate); err != ErrEmptyBuffer {
		t.Fatalf("expected ErrEmptyBuffer, got %v", err)
	}
}

func TestPipelineNoEvents(t *testing.T) {
	t.Parallel()

	pipeline := newStubPipeline(DefaultConfig(), 0.9)
	records, err := pipeline.Run(make([]float64, 2*testSampleRate), testSampleRate)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records for silence, got %d", len(records))
	}
}

func TestPipelineClassifiesGunshots(t *testing.T) {
	t.Parallel()

	pipeline := newStubPipeline(DefaultConfig(), 0.9)
	records, err := pipeline.Run(gunshotTestBuffer(), testSampleRate)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	for i, rec := range records {
		if !rec.IsGunshot {
			t.Errorf("record %d: expected gunshot verdict", i)
		}
		if rec.Firearm == nil || rec.Caliber == nil {
			t.Fatalf("record %d: gunshot verdict must carry firearm and caliber", i)
		}
		if rec.Firearm.Label != "rifle" {
			t.Errorf("record %d: firearm = %q, want %q", i, rec.Firearm.Label, "rifle")
		}
		if rec.Caliber.Label != ".45" {
			t.Errorf("record %d: caliber = %q, want %q", i, rec.Caliber.Label, ".45")
		}
	}
}

func TestPipelineGatesFirearmOnGunshot(t *testing.T) {
	t.Parallel()

	// Below the gunshot threshold nothing downstream may run.
	pipeline := newStubPipeline(DefaultConfig(), 0.3)
	records, err := pipeline.Run(gunshotTestBuffer(), testSampleRate)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	for i, rec := range records {
		if rec.IsGunshot {
			t.Errorf("record %d: expected negative verdict", i)
		}
		if rec.Firearm != nil || rec.Caliber != nil {
			t.Errorf("record %d: negative verdict must not carry firearm or caliber", i)
		}
		if diff := rec.GunshotConfidence - 0.7; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("record %d: confidence = %f, want 0.7", i, rec.GunshotConfidence)
		}
	}
}

func TestPipelinePreservesEventOrder(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{1, 4} {
		cfg := DefaultConfig()
		cfg.Workers = workers

		pipeline := newStubPipeline(cfg, 0.9)
		records, err := pipeline.Run(gunshotTestBuffer(), testSampleRate)
		if err != nil {
			t.Fatalf("Run(workers=%d) returned error: %v", workers, err)
		}
		for i := 1; i < len(records); i++ {
			if records[i].Event.Start < records[i-1].Event.Start {
				t.Errorf("workers=%d: record %d starts before record %d", workers, i, i-1)
			}
		}
	}
}

func TestPipelineKeepsDetectorEvents(t *testing.T) {
	t.Parallel()

	// Records must carry the detector's events untouched: the model
	// probability lives in GunshotConfidence, not in the event itself.
	cfg := DefaultConfig()
	buffer := gunshotTestBuffer()

	events, err := NewEventDetector(cfg).Detect(buffer, testSampleRate)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}

	pipeline := newStubPipeline(cfg, 0.93)
	records, err := pipeline.Run(buffer, testSampleRate)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(records) != len(events) {
		t.Fatalf("record count %d does not match event count %d", len(records), len(events))
	}

	for i := range records {
		if records[i].Event != events[i] {
			t.Errorf("record %d event %+v differs from detected event %+v", i, records[i].Event, events[i])
		}
		if diff := records[i].GunshotConfidence - 0.93; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("record %d: gunshot confidence = %f, want 0.93", i, records[i].GunshotConfidence)
		}
	}
}

func TestPipelineRunIsStateless(t *testing.T) {
	t.Parallel()

	pipeline := newStubPipeline(DefaultConfig(), 0.9)
	buffer := gunshotTestBuffer()

	first, err := pipeline.Run(buffer, testSampleRate)
	if err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	second, err := pipeline.Run(buffer, testSampleRate)
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("record counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Event != second[i].Event ||
			first[i].IsGunshot != second[i].IsGunshot ||
			first[i].GunshotConfidence != second[i].GunshotConfidence {
			t.Errorf("record %d differs between runs", i)
		}
	}
}

func TestPipelineClassifyClip(t *testing.T) {
	t.Parallel()

	pipeline := newStubPipeline(DefaultConfig(), 0.9)
	clip := sineWave(testSampleRate, 440, testSampleRate)

	record, err := pipeline.ClassifyClip(clip, testSampleRate)
	if err != nil {
		t.Fatalf("ClassifyClip returned error: %v", err)
	}
	if !record.IsGunshot {
		t.Error("expected stub verdict to be positive")
	}
	if record.Firearm == nil || record.Caliber == nil {
		t.Error("expected firearm and caliber on positive clip verdict")
	}

	if _, err := pipeline.ClassifyClip(nil, testSampleRate); err != ErrEmptyBuffer {
		t.Errorf("expected ErrEmptyBuffer for empty clip, got %v", err)
	}
}
