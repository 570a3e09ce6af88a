package gunshot

import (
	"encoding/json"
	"fmt"
	"os"
)

// Model is an inference backend. Implementations must be safe for
// concurrent Predict calls.
type Model interface {
	InputShape() Shape
	Predict(tensor *FeatureTensor) ([]float32, error)
	Close() error
}

// LabelEncoder maps class indices back to label strings. The shipped
// encoders are JSON arrays written at training time; they load once at
// construction, never per prediction.
type LabelEncoder struct {
	labels []string
}

func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read label encoder %s: %v", ErrModelLoad, path, err)
	}
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("%w: parse label encoder %s: %v", ErrModelLoad, path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: label encoder %s is empty", ErrModelLoad, path)
	}
	return &LabelEncoder{labels: labels}, nil
}

func (le *LabelEncoder) Decode(index int) (string, error) {
	if index < 0 || index >= len(le.labels) {
		return "", fmt.Errorf("class index %d out of range [0, %d)", index, len(le.labels))
	}
	return le.labels[index], nil
}

func (le *LabelEncoder) Len() int { return len(le.labels) }

// GunshotClassifier wraps the binary gunshot model. Its single output is
// the probability that the segment contains a gunshot.
type GunshotClassifier struct {
	model     Model
	threshold float64
}

func NewGunshotClassifier(model Model, threshold float64) *GunshotClassifier {
	return &GunshotClassifier{model: model, threshold: threshold}
}

func (c *GunshotClassifier) InputShape() Shape { return c.model.InputShape() }

// Classify returns whether the tensor is a gunshot and the model's
// confidence in that verdict. For a negative verdict the confidence is the
// probability of the negative class.
func (c *GunshotClassifier) Classify(tensor *FeatureTensor) (bool, float64, error) {
	if err := checkShape(c.model.InputShape(), tensor); err != nil {
		return false, 0, err
	}
	probs, err := c.model.Predict(tensor)
	if err != nil {
		return false, 0, err
	}
	if len(probs) == 0 {
		return false, 0, fmt.Errorf("gunshot model returned no output")
	}
	p := float64(probs[0])
	if p >= c.threshold {
		return true, p, nil
	}
	return false, 1 - p, nil
}

// LabelClassifier wraps a multi-class model (firearm type, caliber) with
// its label encoder. The predicted label is the argmax class.
type LabelClassifier struct {
	model   Model
	encoder *LabelEncoder
}

func NewLabelClassifier(model Model, encoder *LabelEncoder) *LabelClassifier {
	return &LabelClassifier{model: model, encoder: encoder}
}

func (c *LabelClassifier) InputShape() Shape { return c.model.InputShape() }

func (c *LabelClassifier) Classify(tensor *FeatureTensor) (ClassificationResult, error) {
	if err := checkShape(c.model.InputShape(), tensor); err != nil {
		return ClassificationResult{}, err
	}
	probs, err := c.model.Predict(tensor)
	if err != nil {
		return ClassificationResult{}, err
	}
	if len(probs) == 0 {
		return ClassificationResult{}, fmt.Errorf("classifier returned no output")
	}

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	label, err := c.encoder.Decode(best)
	if err != nil {
		return ClassificationResult{}, err
	}
	return ClassificationResult{Label: label, Confidence: float64(probs[best])}, nil
}

func checkShape(want Shape, tensor *FeatureTensor) error {
	if tensor.Shape != want {
		return &ShapeError{Want: want, Got: tensor.Shape}
	}
	if len(tensor.Data) != want.Size() {
		return &ShapeError{Want: want, Got: tensor.Shape}
	}
	return nil
}
