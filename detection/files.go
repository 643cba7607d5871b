package detection

import (
	"context"
	"encoding/json"
	"image"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/aligner/rimage/transform"
	"go.viam.com/aligner/utils"
)

// PointsFile is a PointDetector that reads corners found elsewhere from a JSON file holding a
// list of [x, y] pixel positions. The photograph is ignored.
type PointsFile struct {
	Path string
}

// DetectPoints implements PointDetector.
func (pf PointsFile) DetectPoints(ctx context.Context, _ image.Image, patternW, patternH int) ([]r2.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var raw [][2]float64
	if err := readJSON(pf.Path, &raw); err != nil {
		return nil, err
	}
	if expected := patternW * patternH; len(raw) != expected {
		return nil, utils.NewDetectionError("%s holds %d corners, expected %dx%d = %d",
			pf.Path, len(raw), patternW, patternH, expected)
	}
	return lo.Map(raw, func(p [2]float64, _ int) r2.Point {
		return r2.Point{X: p[0], Y: p[1]}
	}), nil
}

// MarkerCornersFile is a MarkerDetector that reads marker corners found elsewhere from a JSON
// file holding one list of four [x, y] corners per marker, and estimates each pose in Go.
type MarkerCornersFile struct {
	Path string
}

// DetectMarkers implements MarkerDetector.
func (mf MarkerCornersFile) DetectMarkers(
	ctx context.Context,
	_ image.Image,
	intrinsics *transform.CameraIntrinsics,
	markerSize float64,
) (*MarkerDetections, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var raw [][][2]float64
	if err := readJSON(mf.Path, &raw); err != nil {
		return nil, err
	}
	detections := &MarkerDetections{}
	for i, marker := range raw {
		corners := lo.Map(marker, func(p [2]float64, _ int) r2.Point {
			return r2.Point{X: p[0], Y: p[1]}
		})
		rvec, tvec, err := EstimateMarkerPose(corners, intrinsics, markerSize)
		if err != nil {
			return nil, errors.Wrapf(err, "marker %d", i)
		}
		detections.add(corners, rvec, tvec)
	}
	return detections, nil
}

func (md *MarkerDetections) add(corners []r2.Point, rvec, tvec r3.Vector) {
	md.Corners = append(md.Corners, corners)
	md.RotationVectors = append(md.RotationVectors, rvec)
	md.TranslationVectors = append(md.TranslationVectors, tvec)
}

func readJSON(path string, v interface{}) error {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "error reading %q", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return utils.NewInputFormatError("%s: %v", path, err)
	}
	return nil
}
