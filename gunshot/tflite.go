package gunshot

import (
	"fmt"
	"os"
	"sync"

	"github.com/tphakala/go-tflite"
)

// TFLiteModel runs a TensorFlow Lite model exported from training. The
// interpreter is not safe for concurrent invocation, so Predict serializes
// access with a mutex.
type TFLiteModel struct {
	mu          sync.Mutex
	model       *tflite.Model
	interpreter *tflite.Interpreter
	shape       Shape
}

// LoadTFLiteModel loads a .tflite file and allocates its tensors. The
// model's input must be a [1, mels, frames, 1] float32 tensor.
func LoadTFLiteModel(path string) (*TFLiteModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read model %s: %v", ErrModelLoad, path, err)
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, fmt.Errorf("%w: %s is not a valid tflite model", ErrModelLoad, path)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(1)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		return nil, fmt.Errorf("%w: cannot create interpreter for %s", ErrModelLoad, path)
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("%w: tensor allocation failed for %s", ErrModelLoad, path)
	}

	input := interpreter.GetInputTensor(0)
	if input == nil {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("%w: %s has no input tensor", ErrModelLoad, path)
	}
	shape, err := tensorShape(input)
	if err != nil {
		interpreter.Delete()
		model.Delete()
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}

	return &TFLiteModel{model: model, interpreter: interpreter, shape: shape}, nil
}

func (m *TFLiteModel) InputShape() Shape { return m.shape }

func (m *TFLiteModel) Predict(tensor *FeatureTensor) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	input := m.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	copy(input.Float32s(), tensor.Data)

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	output := m.interpreter.GetOutputTensor(0)
	if output == nil {
		return nil, fmt.Errorf("cannot get output tensor")
	}
	n := output.Dim(output.NumDims() - 1)
	probs := make([]float32, n)
	copy(probs, output.Float32s())
	return probs, nil
}

func (m *TFLiteModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
	if m.model != nil {
		m.model.Delete()
		m.model = nil
	}
	return nil
}

// tensorShape reads (mels, frames) from a [1, mels, frames, 1] input tensor.
func tensorShape(t *tflite.Tensor) (Shape, error) {
	dims := t.NumDims()
	if dims != 4 {
		return Shape{}, fmt.Errorf("expected 4-D input tensor, got %d-D", dims)
	}
	if t.Dim(0) != 1 || t.Dim(3) != 1 {
		return Shape{}, fmt.Errorf("expected [1, mels, frames, 1] input, got batch %d channels %d", t.Dim(0), t.Dim(3))
	}
	return Shape{Mels: t.Dim(1), Frames: t.Dim(2)}, nil
}
