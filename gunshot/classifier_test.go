package gunshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// stubModel is an in-memory Model with a fixed output, used to exercise
// classifier and pipeline logic without TFLite artifacts.
type stubModel struct {
	shape Shape
	out   []float32
	err   error
}

func (m *stubModel) InputShape() Shape { return m.shape }

func (m *stubModel) Predict(tensor *FeatureTensor) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.out, nil
}

func (m *stubModel) Close() error { return nil }

func makeTensor(shape Shape) *FeatureTensor {
	return &FeatureTensor{Shape: shape, Data: make([]float32, shape.Size())}
}

func writeEncoderFile(t *testing.T, labels string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.json")
	if err := os.WriteFile(path, []byte(labels), 0644); err != nil {
		t.Fatalf("failed to write encoder file: %v", err)
	}
	return path
}

func TestGunshotClassifierThreshold(t *testing.T) {
	t.Parallel()

	shape := Shape{Mels: 64, Frames: 173}
	cases := []struct {
		prob           float32
		wantGunshot    bool
		wantConfidence float64
	}{
		{0.93, true, 0.93},
		{0.5, true, 0.5}, // boundary counts as positive
		{0.49, false, 0.51},
		{0.02, false, 0.98},
	}

	for _, tc := range cases {
		classifier := NewGunshotClassifier(&stubModel{shape: shape, out: []float32{tc.prob}}, 0.5)
		isGunshot, confidence, err := classifier.Classify(makeTensor(shape))
		if err != nil {
			t.Fatalf("Classify(p=%.2f) returned error: %v", tc.prob, err)
		}
		if isGunshot != tc.wantGunshot {
			t.Errorf("Classify(p=%.2f) gunshot = %v, want %v", tc.prob, isGunshot, tc.wantGunshot)
		}
		if diff := confidence - tc.wantConfidence; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("Classify(p=%.2f) confidence = %f, want %f", tc.prob, confidence, tc.wantConfidence)
		}
	}
}

func TestClassifierRejectsWrongShape(t *testing.T) {
	t.Parallel()

	modelShape := Shape{Mels: 128, Frames: 44}
	wrongShape := Shape{Mels: 64, Frames: 173}

	gc := NewGunshotClassifier(&stubModel{shape: modelShape, out: []float32{0.9}}, 0.5)
	if _, _, err := gc.Classify(makeTensor(wrongShape)); !IsShapeError(err) {
		t.Errorf("expected ShapeError from gunshot classifier, got %v", err)
	}

	lc := NewLabelClassifier(
		&stubModel{shape: modelShape, out: []float32{0.1, 0.9}},
		&LabelEncoder{labels: []string{"a", "b"}},
	)
	if _, err := lc.Classify(makeTensor(wrongShape)); !IsShapeError(err) {
		t.Errorf("expected ShapeError from label classifier, got %v", err)
	}

	var se *ShapeError
	_, _, err := gc.Classify(makeTensor(wrongShape))
	if !errors.As(err, &se) {
		t.Fatalf("error does not unwrap to ShapeError: %v", err)
	}
	if se.Want != modelShape || se.Got != wrongShape {
		t.Errorf("ShapeError want=%s got=%s, expected want=%s got=%s", se.Want, se.Got, modelShape, wrongShape)
	}
}

func TestLabelClassifierArgmax(t *testing.T) {
	t.Parallel()

	shape := Shape{Mels: 128, Frames: 44}
	encoder := &LabelEncoder{labels: []string{"handgun", "rifle", "shotgun", "submachine gun"}}
	classifier := NewLabelClassifier(
		&stubModel{shape: shape, out: []float32{0.05, 0.15, 0.7, 0.1}},
		encoder,
	)

	result, err := classifier.Classify(makeTensor(shape))
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Label != "shotgun" {
		t.Errorf("label = %q, want %q", result.Label, "shotgun")
	}
	if diff := result.Confidence - 0.7; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("confidence = %f, want 0.7", result.Confidence)
	}
}

func TestLabelClassifierIndexOutOfRange(t *testing.T) {
	t.Parallel()

	shape := Shape{Mels: 128, Frames: 44}
	// Model emits more classes than the encoder knows about.
	classifier := NewLabelClassifier(
		&stubModel{shape: shape, out: []float32{0.1, 0.2, 0.7}},
		&LabelEncoder{labels: []string{"a", "b"}},
	)
	if _, err := classifier.Classify(makeTensor(shape)); err == nil {
		t.Error("expected error when argmax index exceeds encoder range")
	}
}

func TestLoadLabelEncoder(t *testing.T) {
	t.Parallel()

	path := writeEncoderFile(t, `[".22", "9mm", ".45", "5.56mm"]`)
	encoder, err := LoadLabelEncoder(path)
	if err != nil {
		t.Fatalf("LoadLabelEncoder returned error: %v", err)
	}
	if encoder.Len() != 4 {
		t.Fatalf("encoder has %d labels, want 4", encoder.Len())
	}
	label, err := encoder.Decode(1)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if label != "9mm" {
		t.Errorf("Decode(1) = %q, want %q", label, "9mm")
	}
	if _, err := encoder.Decode(4); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestLoadLabelEncoderFailures(t *testing.T) {
	t.Parallel()

	if _, err := LoadLabelEncoder(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, ErrModelLoad) {
		t.Errorf("missing file: expected ErrModelLoad, got %v", err)
	}
	if _, err := LoadLabelEncoder(writeEncoderFile(t, `not json`)); !errors.Is(err, ErrModelLoad) {
		t.Errorf("corrupt file: expected ErrModelLoad, got %v", err)
	}
	if _, err := LoadLabelEncoder(writeEncoderFile(t, `[]`)); !errors.Is(err, ErrModelLoad) {
		t.Errorf("empty encoder: expected ErrModelLoad, got %v", err)
	}
}
