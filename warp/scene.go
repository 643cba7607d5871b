// Package warp turns the pattern corners seen by the physical camera into a virtual camera
// and a per-corner UV warp for pre-rendered content.
package warp

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/aligner/rimage/transform"
	"go.viam.com/aligner/surface"
)

// LocateScenePoints maps every image point onto the surface. The first failure aborts the batch.
func LocateScenePoints(
	surf surface.Surface,
	pose surface.PhysicalCameraPose,
	intrinsics *transform.CameraIntrinsics,
	points []r2.Point,
	imageW, imageH int,
) ([]mgl32.Vec3, error) {
	scene := make([]mgl32.Vec3, 0, len(points))
	for i, p := range points {
		s, err := surf.CameraToScene(pose, intrinsics, p, imageW, imageH)
		if err != nil {
			return nil, errors.Wrapf(err, "locating point %d", i)
		}
		scene = append(scene, s)
	}
	return scene, nil
}
