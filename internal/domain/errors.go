package domain

import "errors"

// Error kinds reported to hosts of the search pipeline.
const (
	KindModelNotLoaded    = "model-not-loaded"
	KindDataUnavailable   = "reference-data-unavailable"
	KindInvalidFrame      = "invalid-frame-geometry"
	KindCameraUnavailable = "camera-unavailable"
	KindInferenceFailed   = "inference-failed"
	KindUnknown           = "unknown"
)

var (
	// ErrNotLoaded is the cause reported when reference data is read before a successful load.
	ErrNotLoaded = errors.New("reference data not loaded")

	// ErrClosed is the cause reported when a disposed pipeline is used.
	ErrClosed = errors.New("pipeline disposed")

	// ErrDimensionMismatch is reported when a vector does not have the expected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ErrModelLoad is the sentinel for ModelLoadError.
var ErrModelLoad = &ModelLoadError{}

// ModelLoadError reports that the embedding backbone could not be initialized.
// Searches fail with it until a later load succeeds.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	msg := "model unavailable"
	if e.Model != "" {
		msg += " (" + e.Model + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

func (e *ModelLoadError) Is(target error) bool {
	_, ok := target.(*ModelLoadError)
	return ok
}

func (e *ModelLoadError) Kind() string { return KindModelNotLoaded }

// ErrDataLoad is the sentinel for DataLoadError.
var ErrDataLoad = &DataLoadError{}

// DataLoadError reports that the reference dataset could not be fetched or parsed.
type DataLoadError struct {
	Source string
	Err    error
}

func (e *DataLoadError) Error() string {
	msg := "reference data unavailable"
	if e.Source != "" {
		msg += " (" + e.Source + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataLoadError) Unwrap() error { return e.Err }

func (e *DataLoadError) Is(target error) bool {
	_, ok := target.(*DataLoadError)
	return ok
}

func (e *DataLoadError) Kind() string { return KindDataUnavailable }

// ErrInvalidFrame is the sentinel for InvalidFrameError.
var ErrInvalidFrame = &InvalidFrameError{}

// InvalidFrameError reports a source frame that cannot be normalized.
// It aborts a single capture attempt only.
type InvalidFrameError struct {
	Width  int
	Height int
	Reason string
}

func (e *InvalidFrameError) Error() string {
	if e.Reason != "" {
		return "invalid frame: " + e.Reason
	}
	return "invalid frame geometry"
}

func (e *InvalidFrameError) Is(target error) bool {
	_, ok := target.(*InvalidFrameError)
	return ok
}

func (e *InvalidFrameError) Kind() string { return KindInvalidFrame }

// ErrCameraAccess is the sentinel for CameraAccessError.
var ErrCameraAccess = &CameraAccessError{}

// CameraAccessError reports that no camera could be acquired.
type CameraAccessError struct {
	Device     string
	Permission bool
	Err        error
}

func (e *CameraAccessError) Error() string {
	msg := "camera unavailable"
	if e.Permission {
		msg = "camera permission denied"
	}
	if e.Device != "" {
		msg += " (" + e.Device + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CameraAccessError) Unwrap() error { return e.Err }

func (e *CameraAccessError) Is(target error) bool {
	_, ok := target.(*CameraAccessError)
	return ok
}

func (e *CameraAccessError) Kind() string { return KindCameraUnavailable }

// ErrInference is the sentinel for InferenceError.
var ErrInference = &InferenceError{}

// InferenceError reports a failure inside the embedding step of one request.
// Loaded model and reference data stay valid.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	if e.Err != nil {
		return "inference failed: " + e.Err.Error()
	}
	return "inference failed"
}

func (e *InferenceError) Unwrap() error { return e.Err }

func (e *InferenceError) Is(target error) bool {
	_, ok := target.(*InferenceError)
	return ok
}

func (e *InferenceError) Kind() string { return KindInferenceFailed }

// KindOf classifies err into one of the Kind constants.
func KindOf(err error) string {
	var k interface{ Kind() string }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}
