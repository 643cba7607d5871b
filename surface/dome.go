package surface

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/golang/geo/r2"

	"go.viam.com/aligner/rimage/transform"
	"go.viam.com/aligner/utils"
)

// Dome is a hemisphere of the given radius centred on the origin with its apex on +Y, photographed
// by a fisheye camera at the centre looking straight up whose image circle fills the frame.
type Dome struct {
	Radius float64
}

func (Dome) isSurface() {}

// Type returns TypeDome.
func (Dome) Type() Type { return TypeDome }

// DefaultPose places the camera at the dome centre looking up.
func (Dome) DefaultPose() PhysicalCameraPose {
	return PhysicalCameraPose{
		Position:  mgl32.Vec3{0, 0, 0},
		Direction: mgl32.Vec3{0, 1, 0},
		Up:        mgl32.Vec3{0, 0, 1},
	}
}

// CameraToScene treats distance from the image centre as proportional to the angle down from
// the apex: the centre maps to the apex and the inscribed ellipse maps to the rim. The pose and
// intrinsics are not used.
func (d Dome) CameraToScene(
	_ PhysicalCameraPose,
	_ *transform.CameraIntrinsics,
	point r2.Point,
	imageW, imageH int,
) (mgl32.Vec3, error) {
	halfW := float64(imageW) / 2
	halfH := float64(imageH) / 2
	x := (point.X - halfW) / halfW
	y := (point.Y - halfH) / halfH

	v := math.Hypot(x, y)
	if v > 1 {
		return mgl32.Vec3{}, utils.NewGeometryError("point (%v, %v) lies outside the dome", point.X, point.Y)
	}

	// elevation above the rim plane
	elevation := (math.Pi / 2) * (1 - v)
	realY := math.Sin(elevation)
	realV := math.Cos(elevation)

	azimuth := math.Atan2(x, y)
	realX := math.Cos(azimuth) * realV
	realZ := math.Sin(azimuth) * realV

	return mgl32.Vec3{
		float32(realX * d.Radius),
		float32(realY * d.Radius),
		float32(realZ * d.Radius),
	}, nil
}
