package warp

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/aligner/projection"
	"go.viam.com/aligner/utils"
)

const (
	// fovMargin widens the framed field of view so the outermost points are not on the edge.
	fovMargin = 1.05

	projectorNear = 0.1
	projectorFar  = 100
)

// VirtualCamera is the rendering camera before it has been pointed at anything.
type VirtualCamera struct {
	Eye mgl32.Vec3
	Up  mgl32.Vec3
}

// FramedCamera is a VirtualCamera aimed at a set of scene points. Only a framed camera can project.
// Up is the vector the view was built with, which differs from the requested one when that was
// parallel to the view direction.
type FramedCamera struct {
	Eye    mgl32.Vec3
	Up     mgl32.Vec3
	LookAt mgl32.Vec3
	// FOV is the vertical field of view in degrees.
	FOV float32

	view        mgl32.Mat4
	requestedUp mgl32.Vec3
}

// Frame aims the camera at the centroid of points and widens the vertical field of view until
// every point fits with a small margin. The arithmetic mean is only an approximation of the
// centre of the projected area on curved surfaces.
func (vc VirtualCamera) Frame(points []mgl32.Vec3) (*FramedCamera, error) {
	if len(points) == 0 {
		return nil, utils.NewGeometryError("cannot frame an empty set of points")
	}
	lookAt := centroid(points)
	view, up, err := projection.LookAt(vc.Eye, lookAt, vc.Up)
	if err != nil {
		return nil, err
	}
	fov, err := verticalFOV(view, points)
	if err != nil {
		return nil, err
	}
	return &FramedCamera{
		Eye:    vc.Eye,
		Up:     up,
		LookAt: lookAt,
		FOV:    fov,
		view:   view,

		requestedUp: vc.Up,
	}, nil
}

func centroid(points []mgl32.Vec3) mgl32.Vec3 {
	var c mgl32.Vec3
	for axis := 0; axis < 3; axis++ {
		c[axis] = float32(stat.Mean(lo.Map(points, func(p mgl32.Vec3, _ int) float64 {
			return float64(p[axis])
		}), nil))
	}
	return c
}

// verticalFOV is the widest vertical angle subtended by any point in eye space, doubled and
// widened by fovMargin, in degrees.
func verticalFOV(view mgl32.Mat4, points []mgl32.Vec3) (float32, error) {
	maxRad := -1.
	for i, p := range points {
		eyeSpace := view.Mul4x1(p.Vec4(1))
		if eyeSpace.Z() == 0 {
			return 0, utils.NewGeometryError("point %d lies in the eye plane of the virtual camera", i)
		}
		rad := math.Atan(math.Abs(float64(eyeSpace.Y())) / math.Abs(float64(eyeSpace.Z())))
		if rad > maxRad {
			maxRad = rad
		}
	}
	return float32(utils.RadToDeg(maxRad)) * 2 * fovMargin, nil
}

// UpReplaced reports whether the requested up vector was parallel to the view direction and
// Up holds a substituted world axis.
func (fc *FramedCamera) UpReplaced() bool {
	return fc.requestedUp != fc.Up
}

// View is the view matrix of the framed camera.
func (fc *FramedCamera) View() mgl32.Mat4 {
	return fc.view
}

// Perspective is the projection matrix for a projector with the given aspect ratio (width/height).
func (fc *FramedCamera) Perspective(aspect float32) mgl32.Mat4 {
	return projection.Perspective(fc.FOV, aspect, projectorNear, projectorFar)
}

// Project maps a scene point to normalized screen coordinates with a bottom-left origin.
func (fc *FramedCamera) Project(point mgl32.Vec3, aspect float32) (mgl32.Vec2, error) {
	win, err := projection.Project(point, fc.view, fc.Perspective(aspect), projection.UnitViewport)
	if err != nil {
		return mgl32.Vec2{}, err
	}
	return win.Vec2(), nil
}
