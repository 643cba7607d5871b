package transform

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// UndistortImage creates a new image the same size as img with lens distortion removed. Every
// output pixel is mapped through the distortion model back into img and filled with the nearest
// source pixel; pixels that map outside img are black.
func (ci *CameraIntrinsics) UndistortImage(img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if _, err := ci.Distortion(); err != nil {
		return nil, err
	}
	src := imaging.Clone(img)
	bounds := src.Bounds()
	dst := imaging.New(bounds.Dx(), bounds.Dy(), color.Black)

	// the calibration may have been computed at a different resolution
	sx := float64(ci.width) / float64(bounds.Dx())
	sy := float64(ci.height) / float64(bounds.Dy())

	for v := 0; v < bounds.Dy(); v++ {
		for u := 0; u < bounds.Dx(); u++ {
			d, err := ci.DistortPoint(r2.Point{X: float64(u) * sx, Y: float64(v) * sy})
			if err != nil {
				return nil, err
			}
			x := int(math.Round(d.X / sx))
			y := int(math.Round(d.Y / sy))
			if x < 0 || y < 0 || x >= bounds.Dx() || y >= bounds.Dy() {
				continue
			}
			dst.SetNRGBA(u, v, src.NRGBAAt(x, y))
		}
	}
	return dst, nil
}
