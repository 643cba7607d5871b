//go:build !withcv

package detection

import (
	"github.com/pkg/errors"
)

// ErrNoOpenCV is returned when marker detection is requested from a build without OpenCV.
var ErrNoOpenCV = errors.New("marker detection requires a build with -tags withcv")

// NewChessboardDetector returns the Go saddle point detector.
func NewChessboardDetector() (PointDetector, error) {
	return NewSaddleDetector(), nil
}

// NewArucoDetector returns ErrNoOpenCV; corners must be supplied with a MarkerCornersFile.
func NewArucoDetector() (MarkerDetector, error) {
	return nil, ErrNoOpenCV
}

// NewUndistorter returns the Go undistorter.
func NewUndistorter() Undistorter {
	return ImageUndistorter{}
}
