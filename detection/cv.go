//go:build withcv

package detection

import (
	"context"
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gocv.io/x/gocv"

	"go.viam.com/aligner/rimage/transform"
	"go.viam.com/aligner/utils"
)

// Corner refinement parameters.
const (
	subPixIterations = 30
	subPixEpsilon    = 0.1
)

// ChessboardDetector finds chessboard corners with OpenCV and refines them to sub-pixel accuracy.
type ChessboardDetector struct{}

// NewChessboardDetector returns an OpenCV chessboard detector.
func NewChessboardDetector() (PointDetector, error) {
	return ChessboardDetector{}, nil
}

// DetectPoints implements PointDetector.
func (ChessboardDetector) DetectPoints(ctx context.Context, img image.Image, patternW, patternH int) ([]r2.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gray, err := grayMat(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	corners := gocv.NewMat()
	defer corners.Close()
	boardSize := image.Pt(patternW, patternH)
	if !gocv.FindChessboardCorners(gray, boardSize, &corners, gocv.CalibCBAdaptiveThresh) {
		return nil, utils.NewDetectionError("no %dx%d chessboard corners detected", patternW, patternH)
	}
	gocv.CornerSubPix(gray, &corners, boardSize, image.Pt(-1, -1),
		gocv.NewTermCriteria(gocv.Count+gocv.EPS, subPixIterations, subPixEpsilon))

	points := gocv.NewPoint2fVectorFromMat(corners)
	defer points.Close()
	found := lo.Map(points.ToPoints(), func(p gocv.Point2f, _ int) r2.Point {
		return r2.Point{X: float64(p.X), Y: float64(p.Y)}
	})
	if len(found) != patternW*patternH {
		return nil, utils.NewDetectionError("found %d chessboard corners, expected %d", len(found), patternW*patternH)
	}
	return found, nil
}

// CVUndistorter undistorts with OpenCV, keeping the same camera matrix.
type CVUndistorter struct{}

// NewUndistorter returns the OpenCV undistorter.
func NewUndistorter() Undistorter {
	return CVUndistorter{}
}

// Undistort implements Undistorter.
func (CVUndistorter) Undistort(img image.Image, intrinsics *transform.CameraIntrinsics) (image.Image, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "converting photo for undistortion")
	}
	defer src.Close()

	k := cameraMatrix(intrinsics)
	defer k.Close()
	d := distortionCoefficients(intrinsics)
	defer d.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Undistort(src, &dst, k, d, k)
	return dst.ToImage()
}

// ArucoDetector finds markers from the 6x6 dictionary of 250 and estimates their pose from
// their corners.
type ArucoDetector struct{}

// NewArucoDetector returns an OpenCV ArUco detector.
func NewArucoDetector() (MarkerDetector, error) {
	return ArucoDetector{}, nil
}

// DetectMarkers implements MarkerDetector.
func (ArucoDetector) DetectMarkers(
	ctx context.Context,
	img image.Image,
	intrinsics *transform.CameraIntrinsics,
	markerSize float64,
) (*MarkerDetections, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gray, err := grayMat(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	detector := gocv.NewArucoDetectorWithParams(
		gocv.GetPredefinedDictionary(gocv.ArucoDict6x6_250),
		gocv.NewArucoDetectorParameters(),
	)
	defer detector.Close()
	markerCorners, _, _ := detector.DetectMarkers(gray)

	detections := &MarkerDetections{}
	for i, marker := range markerCorners {
		corners := lo.Map(marker, func(p gocv.Point2f, _ int) r2.Point {
			return r2.Point{X: float64(p.X), Y: float64(p.Y)}
		})
		rvec, tvec, err := EstimateMarkerPose(corners, intrinsics, markerSize)
		if err != nil {
			return nil, errors.Wrapf(err, "marker %d", i)
		}
		detections.add(corners, rvec, tvec)
	}
	return detections, nil
}

func grayMat(img image.Image) (gocv.Mat, error) {
	rgb, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "converting photo for detection")
	}
	defer rgb.Close()
	gray := gocv.NewMat()
	gocv.CvtColor(rgb, &gray, gocv.ColorRGBToGray)
	return gray, nil
}

func cameraMatrix(intrinsics *transform.CameraIntrinsics) gocv.Mat {
	m := intrinsics.Matrix()
	k := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			k.SetDoubleAt(r, c, m[r*3+c])
		}
	}
	return k
}

func distortionCoefficients(intrinsics *transform.CameraIntrinsics) gocv.Mat {
	coeffs := intrinsics.DistortionCoefficients()
	d := gocv.NewMatWithSize(1, len(coeffs), gocv.MatTypeCV64F)
	for i, c := range coeffs {
		d.SetDoubleAt(0, i, c)
	}
	return d
}
