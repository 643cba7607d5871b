// Package locator works out where the physical camera is from a single fiducial marker lying at
// the origin of the scene.
package locator

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/golang/geo/r3"

	"go.viam.com/aligner/detection"
	"go.viam.com/aligner/spatialmath"
	"go.viam.com/aligner/utils"
)

// flipX is a half turn about the X axis. Marker poses come out rotated this way relative to the
// chessboard pose convention.
var flipX = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, -1, 0,
	0, 0, 0, 1,
}

// CameraLocation is the camera pose in scene space, with Direction a unit view vector.
type CameraLocation struct {
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Up        mgl32.Vec3
}

// Localize inverts a marker pose reported in OpenCV camera axes (y down, z forward) into the
// camera's pose in the marker's OpenGL-style frame (y up, camera looking down -z).
func Localize(rvec, tvec r3.Vector) CameraLocation {
	rvec = r3.Vector{X: rvec.X, Y: -rvec.Y, Z: -rvec.Z}
	tvec = r3.Vector{X: tvec.X, Y: -tvec.Y, Z: -tvec.Z}

	modelView := spatialmath.ModelView(spatialmath.Rodrigues(rvec), tvec).Mul4(flipX)

	translation := modelView.Col(3).Vec3()
	invRotation := modelView.Mat3().Transpose()

	return CameraLocation{
		Position:  invRotation.Mul3x1(translation.Mul(-1)),
		Direction: invRotation.Mul3x1(mgl32.Vec3{0, 0, -1}),
		Up:        invRotation.Mul3x1(mgl32.Vec3{0, 1, 0}),
	}
}

// LocalizeMarker locates the camera from exactly one detected marker. fov is the camera's
// vertical field of view in degrees and is copied into the output.
func LocalizeMarker(detections *detection.MarkerDetections, fov float64) (*LocationOutput, error) {
	switch n := detections.Len(); {
	case n == 0:
		return nil, utils.NewDetectionError("no markers detected")
	case n > 1:
		return nil, utils.NewDetectionError("multiple markers detected (%d), expected exactly one", n)
	}
	if len(detections.RotationVectors) != 1 || len(detections.TranslationVectors) != 1 {
		return nil, utils.NewDetectionError("marker has no pose estimate")
	}

	loc := Localize(detections.RotationVectors[0], detections.TranslationVectors[0])
	return &LocationOutput{
		Position:  loc.Position,
		Direction: loc.Direction,
		Up:        loc.Up,
		FOV:       float32(fov),
	}, nil
}
