package gunshot

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBuffer is returned when a pipeline run receives no samples.
	ErrEmptyBuffer = errors.New("sample buffer is empty")

	// ErrModelLoad marks a missing or corrupt model/encoder artifact at
	// construction time. Pipeline construction aborts; there is no
	// per-call fallback.
	ErrModelLoad = errors.New("model load failed")
)

// ShapeError reports a feature tensor that does not match a classifier's
// expected input shape. This is a contract violation between the feature
// extractor and classifier configuration; tensors are never silently
// reshaped.
type ShapeError struct {
	Want Shape
	Got  Shape
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("feature tensor shape mismatch: want %s, got %s", e.Want, e.Got)
}

// IsShapeError reports whether err is (or wraps) a ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}
