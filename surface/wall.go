package surface

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/golang/geo/r2"

	"go.viam.com/aligner/projection"
	"go.viam.com/aligner/rimage/transform"
	"go.viam.com/aligner/utils"
)

const (
	wallNear = 0.1
	wallFar  = 1000
)

// Wall is the plane z = 0.
type Wall struct{}

func (Wall) isSurface() {}

// Type returns TypeWall.
func (Wall) Type() Type { return TypeWall }

// DefaultPose places the camera two units in front of the wall looking at the origin.
func (Wall) DefaultPose() PhysicalCameraPose {
	return PhysicalCameraPose{
		Position:  mgl32.Vec3{0, 0, 2},
		Direction: mgl32.Vec3{0, 0, 0},
		Up:        mgl32.Vec3{0, 0, 1},
	}
}

// CameraToScene casts a ray from the camera through the pixel and intersects it with the wall.
func (Wall) CameraToScene(
	pose PhysicalCameraPose,
	intrinsics *transform.CameraIntrinsics,
	point r2.Point,
	imageW, imageH int,
) (mgl32.Vec3, error) {
	if intrinsics == nil {
		return mgl32.Vec3{}, utils.NewGeometryError("wall projection needs camera intrinsics")
	}
	view, _, err := projection.LookAt(pose.Position, pose.Direction, pose.Up)
	if err != nil {
		return mgl32.Vec3{}, err
	}
	w, h := float32(imageW), float32(imageH)
	proj := projection.Perspective(float32(intrinsics.FOV()), w/h, wallNear, wallFar)

	// image y grows downwards, window y upwards; z = 1 is the far plane
	far, err := projection.Unproject(
		mgl32.Vec3{float32(point.X), h - float32(point.Y), 1},
		view, proj,
		projection.Viewport{Width: w, Height: h},
	)
	if err != nil {
		return mgl32.Vec3{}, err
	}

	ray := far.Sub(pose.Position)
	zmag := mgl32.Abs(ray.Z())
	if zmag <= 1e-6*ray.Len() {
		return mgl32.Vec3{}, utils.NewGeometryError("ray through (%v, %v) is parallel to the wall", point.X, point.Y)
	}
	return ray.Mul(mgl32.Abs(pose.Position.Z()) / zmag).Add(pose.Position), nil
}
