// Package detection finds calibration features in photographs: chessboard corners for the warp
// and ArUco markers for locating the camera.
package detection

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"go.viam.com/aligner/rimage/transform"
)

// PointDetector finds the interior corners of a chessboard pattern. Points are returned in
// row-major order and there are exactly patternW*patternH of them.
type PointDetector interface {
	DetectPoints(ctx context.Context, img image.Image, patternW, patternH int) ([]r2.Point, error)
}

// Undistorter removes lens distortion from a photograph.
type Undistorter interface {
	Undistort(img image.Image, intrinsics *transform.CameraIntrinsics) (image.Image, error)
}

// MarkerDetector finds square fiducial markers and estimates their pose relative to the camera.
type MarkerDetector interface {
	DetectMarkers(
		ctx context.Context,
		img image.Image,
		intrinsics *transform.CameraIntrinsics,
		markerSize float64,
	) (*MarkerDetections, error)
}

// MarkerDetections holds one entry per detected marker in each slice. Corners are ordered
// top-left, top-right, bottom-right, bottom-left. Rotation vectors are axis-angle in radians and
// translations are in the units of the marker size, both in the camera's frame.
type MarkerDetections struct {
	Corners            [][]r2.Point
	RotationVectors    []r3.Vector
	TranslationVectors []r3.Vector
}

// Len is the number of detected markers.
func (md *MarkerDetections) Len() int {
	if md == nil {
		return 0
	}
	return len(md.Corners)
}

// ImageUndistorter undistorts in Go using the intrinsics' lens model.
type ImageUndistorter struct{}

// Undistort implements Undistorter.
func (ImageUndistorter) Undistort(img image.Image, intrinsics *transform.CameraIntrinsics) (image.Image, error) {
	return intrinsics.UndistortImage(img)
}

// Preprocess converts a photograph of the displayed pattern to grayscale and inverts it, undoing
// the inversion the pattern is shown with.
func Preprocess(img image.Image) *image.NRGBA {
	return imaging.Invert(imaging.Grayscale(img))
}
