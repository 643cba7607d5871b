// Package transform holds the physical camera model: its intrinsic matrix, lens distortion and
// the image operations that depend on them.
package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/aligner/utils"
)

// CameraIntrinsics is a calibrated physical camera. The matrix is row-major:
//
//	fx  s  cx
//	 0 fy  cy
//	 0  0   1
//
// Values are fixed at construction; accessors return copies.
type CameraIntrinsics struct {
	matrix     [9]float64
	distortion []float64
	width      int
	height     int
	fov        float64
	hfov       float64

	distorter    Distorter
	distorterErr error
}

// NewCameraIntrinsics validates the matrix and image size and derives the fields of view.
func NewCameraIntrinsics(matrix [9]float64, distortion []float64, width, height int) (*CameraIntrinsics, error) {
	if width <= 0 || height <= 0 {
		return nil, utils.NewInputFormatError("invalid image size (%d, %d)", width, height)
	}
	if matrix[0] <= 0 {
		return nil, utils.NewInputFormatError("invalid focal length fx = %v", matrix[0])
	}
	if matrix[4] <= 0 {
		return nil, utils.NewInputFormatError("invalid focal length fy = %v", matrix[4])
	}
	if len(distortion) > maxDistortionCoefficients {
		return nil, utils.NewInputFormatError(
			"expected at most %d distortion coefficients, got %d", maxDistortionCoefficients, len(distortion))
	}
	distorter, distorterErr := NewDistorter(distortion)
	return &CameraIntrinsics{
		matrix:     matrix,
		distortion: append([]float64(nil), distortion...),
		width:      width,
		height:     height,
		fov:        fieldOfView(float64(height), matrix[4]),
		hfov:       fieldOfView(float64(width), matrix[0]),

		distorter:    distorter,
		distorterErr: distorterErr,
	}, nil
}

func fieldOfView(extent, focal float64) float64 {
	return utils.RadToDeg(2 * math.Atan2(extent, 2*focal))
}

// Fx is the horizontal focal length in pixels.
func (ci *CameraIntrinsics) Fx() float64 { return ci.matrix[0] }

// Fy is the vertical focal length in pixels.
func (ci *CameraIntrinsics) Fy() float64 { return ci.matrix[4] }

// Ppx is the x coordinate of the principal point.
func (ci *CameraIntrinsics) Ppx() float64 { return ci.matrix[2] }

// Ppy is the y coordinate of the principal point.
func (ci *CameraIntrinsics) Ppy() float64 { return ci.matrix[5] }

// Width is the calibrated image width in pixels.
func (ci *CameraIntrinsics) Width() int { return ci.width }

// Height is the calibrated image height in pixels.
func (ci *CameraIntrinsics) Height() int { return ci.height }

// FOV is the vertical field of view in degrees.
func (ci *CameraIntrinsics) FOV() float64 { return ci.fov }

// HorizontalFOV is the horizontal field of view in degrees.
func (ci *CameraIntrinsics) HorizontalFOV() float64 { return ci.hfov }

// Matrix returns the row-major camera matrix.
func (ci *CameraIntrinsics) Matrix() [9]float64 { return ci.matrix }

// DistortionCoefficients returns every distortion coefficient as loaded, in OpenCV order.
func (ci *CameraIntrinsics) DistortionCoefficients() []float64 {
	return append([]float64(nil), ci.distortion...)
}

// CameraMatrix returns the camera matrix as a gonum matrix.
func (ci *CameraIntrinsics) CameraMatrix() *mat.Dense {
	m := ci.matrix
	return mat.NewDense(3, 3, m[:])
}

// Mat3 returns the camera matrix as a column-major mathgl matrix.
func (ci *CameraIntrinsics) Mat3() mgl64.Mat3 {
	m := ci.matrix
	return mgl64.Mat3FromRows(
		mgl64.Vec3{m[0], m[1], m[2]},
		mgl64.Vec3{m[3], m[4], m[5]},
		mgl64.Vec3{m[6], m[7], m[8]},
	)
}

// Distortion returns the Go lens model for the coefficients. It fails for coefficient sets
// only OpenCV can apply.
func (ci *CameraIntrinsics) Distortion() (Distorter, error) {
	return ci.distorter, ci.distorterErr
}

// Normalize maps a pixel to normalized image coordinates without touching distortion.
func (ci *CameraIntrinsics) Normalize(p r2.Point) r2.Point {
	y := (p.Y - ci.Ppy()) / ci.Fy()
	x := (p.X - ci.Ppx() - ci.matrix[1]*y) / ci.Fx()
	return r2.Point{X: x, Y: y}
}

// Denormalize is the inverse of Normalize.
func (ci *CameraIntrinsics) Denormalize(p r2.Point) r2.Point {
	return r2.Point{
		X: p.X*ci.Fx() + ci.matrix[1]*p.Y + ci.Ppx(),
		Y: p.Y*ci.Fy() + ci.Ppy(),
	}
}

// UndistortNormalized removes lens distortion from a pixel and returns normalized coordinates.
func (ci *CameraIntrinsics) UndistortNormalized(p r2.Point) (r2.Point, error) {
	if ci.distorterErr != nil {
		return r2.Point{}, ci.distorterErr
	}
	n := ci.Normalize(p)
	x, y := ci.distorter.Invert(n.X, n.Y)
	return r2.Point{X: x, Y: y}, nil
}

// UndistortPoint removes lens distortion from a pixel, keeping the same camera matrix.
func (ci *CameraIntrinsics) UndistortPoint(p r2.Point) (r2.Point, error) {
	n, err := ci.UndistortNormalized(p)
	if err != nil {
		return r2.Point{}, err
	}
	return ci.Denormalize(n), nil
}

// DistortPoint applies lens distortion to an ideal pixel.
func (ci *CameraIntrinsics) DistortPoint(p r2.Point) (r2.Point, error) {
	if ci.distorterErr != nil {
		return r2.Point{}, ci.distorterErr
	}
	n := ci.Normalize(p)
	x, y := ci.distorter.Transform(n.X, n.Y)
	return ci.Denormalize(r2.Point{X: x, Y: y}), nil
}
