// Package surface models the physical projection surfaces and maps points seen by the physical
// camera onto them.
package surface

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/golang/geo/r2"

	"go.viam.com/aligner/rimage/transform"
	"go.viam.com/aligner/utils"
)

// Type names a surface geometry.
type Type string

// The supported surfaces.
const (
	TypeDome = Type("dome")
	TypeWall = Type("wall")
)

// PhysicalCameraPose is where the real camera sits relative to the surface. Direction is the
// point the camera looks at; it need not be a unit vector.
type PhysicalCameraPose struct {
	Position  mgl32.Vec3 `json:"position"`
	Direction mgl32.Vec3 `json:"direction"`
	Up        mgl32.Vec3 `json:"up"`
}

// Surface converts an image point of the physical camera into a 3D point on the surface.
// Dome and Wall are the only implementations.
type Surface interface {
	CameraToScene(
		pose PhysicalCameraPose,
		intrinsics *transform.CameraIntrinsics,
		point r2.Point,
		imageW, imageH int,
	) (mgl32.Vec3, error)
	// DefaultPose is the camera placement assumed when none is supplied.
	DefaultPose() PhysicalCameraPose
	Type() Type

	isSurface()
}

// New returns the surface of the given type. radius is only used by the dome.
func New(t Type, radius float64) (Surface, error) {
	switch Type(strings.ToLower(string(t))) {
	case TypeDome:
		if radius <= 0 {
			return nil, utils.NewConfigError("dome radius must be positive, got %v", radius)
		}
		return Dome{Radius: radius}, nil
	case TypeWall:
		return Wall{}, nil
	default:
		return nil, utils.NewConfigError("unknown surface type %q, expected %q or %q", t, TypeDome, TypeWall)
	}
}
