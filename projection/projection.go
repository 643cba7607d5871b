// Package projection maps between object space and window space using single precision
// view and projection matrices, the same way a rasterizer would.
package projection

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"go.viam.com/aligner/utils"
)

// Viewport is a window rectangle with a bottom-left origin.
type Viewport struct {
	X, Y          float32
	Width, Height float32
}

// UnitViewport covers [0,1]² and yields texture coordinates from Project.
var UnitViewport = Viewport{0, 0, 1, 1}

func (vp Viewport) validate() error {
	if vp.Width == 0 || vp.Height == 0 {
		return utils.NewGeometryError("viewport %vx%v has no area", vp.Width, vp.Height)
	}
	return nil
}

// Project transforms obj by model then proj, performs the homogeneous divide, and maps the
// result into the viewport. The returned z stays in [0,1] for points between the clip planes.
func Project(obj mgl32.Vec3, model, proj mgl32.Mat4, vp Viewport) (mgl32.Vec3, error) {
	if err := vp.validate(); err != nil {
		return mgl32.Vec3{}, err
	}
	clip := proj.Mul4(model).Mul4x1(obj.Vec4(1))
	if clip.W() == 0 {
		return mgl32.Vec3{}, utils.NewGeometryError("point %v projects to w = 0", obj)
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	return mgl32.Vec3{
		vp.X + vp.Width*(ndc.X()+1)/2,
		vp.Y + vp.Height*(ndc.Y()+1)/2,
		(ndc.Z() + 1) / 2,
	}, nil
}

// Unproject is the inverse of Project. It fails when proj·model is singular or the result
// has no finite homogeneous coordinate.
func Unproject(win mgl32.Vec3, model, proj mgl32.Mat4, vp Viewport) (mgl32.Vec3, error) {
	if err := vp.validate(); err != nil {
		return mgl32.Vec3{}, err
	}
	m := proj.Mul4(model)
	if m.Det() == 0 {
		return mgl32.Vec3{}, utils.NewGeometryError("cannot unproject %v through a singular matrix", win)
	}

	ndc := mgl32.Vec4{
		2*(win.X()-vp.X)/vp.Width - 1,
		2*(win.Y()-vp.Y)/vp.Height - 1,
		2*win.Z() - 1,
		1,
	}
	obj := m.Inv().Mul4x1(ndc)
	if obj.W() == 0 {
		return mgl32.Vec3{}, utils.NewGeometryError("window point %v unprojects to w = 0", win)
	}
	return obj.Vec3().Mul(1 / obj.W()), nil
}

// Perspective builds a right-handed perspective matrix from a vertical field of view in degrees.
func Perspective(fovyDegrees, aspect, near, far float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(fovyDegrees), aspect, near, far)
}

// worldAxes is the substitution order for a degenerate up vector.
var worldAxes = []mgl32.Vec3{{0, 1, 0}, {0, 0, 1}, {1, 0, 0}}

// LookAt builds a view matrix like mgl32.LookAtV and returns the up vector it was built with.
// When up is zero or parallel to the view direction the first world axis well away from that
// direction replaces it. eye == target is an error.
func LookAt(eye, target, up mgl32.Vec3) (mgl32.Mat4, mgl32.Vec3, error) {
	dir := target.Sub(eye)
	if dir.Len() < 1e-6 {
		return mgl32.Mat4{}, mgl32.Vec3{}, utils.NewGeometryError("eye %v and target %v coincide", eye, target)
	}
	if DegenerateUp(eye, target, up) {
		up = substituteUp(dir.Normalize())
	}
	return mgl32.LookAtV(eye, target, up), up, nil
}

// DegenerateUp reports whether LookAt would replace up.
func DegenerateUp(eye, target, up mgl32.Vec3) bool {
	dir := target.Sub(eye)
	if dir.Len() < 1e-6 {
		return false
	}
	return up.Len() < 1e-6 || dir.Normalize().Cross(up.Normalize()).Len() < 1e-6
}

// substituteUp is the first world axis at least 30° away from dir. A unit vector is that close
// to at most two axes, so the fallback only guards rounding.
func substituteUp(dir mgl32.Vec3) mgl32.Vec3 {
	best := worldAxes[0]
	bestDot := float32(math.Inf(1))
	for _, axis := range worldAxes {
		d := mgl32.Abs(dir.Dot(axis))
		if d < 0.866 {
			return axis
		}
		if d < bestDot {
			best, bestDot = axis, d
		}
	}
	return best
}
