package warp

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/aligner/logging"
)

// ProjectWarp projects every scene point through the framed camera with the projector's aspect
// ratio and returns the UV of each, in order. UVs outside [0,1]² are logged and kept as they are.
func ProjectWarp(
	cam *FramedCamera,
	aspect float32,
	points []mgl32.Vec3,
	logger logging.Logger,
) ([][2]float32, error) {
	if cam == nil {
		return nil, errors.New("virtual camera has not been framed")
	}
	uvs := make([][2]float32, 0, len(points))
	offScreen := 0
	for i, p := range points {
		uv, err := cam.Project(p, aspect)
		if err != nil {
			return nil, errors.Wrapf(err, "projecting point %d", i)
		}
		if !onScreen([2]float32{uv.X(), uv.Y()}) {
			offScreen++
			logger.Warnw("scene point projected off screen", "index", i, "u", uv.X(), "v", uv.Y())
		}
		uvs = append(uvs, [2]float32{uv.X(), uv.Y()})
	}

	if len(uvs) > 0 {
		us, vs := SplitUV(uvs)
		uRange, _ := Range(us)
		vRange, _ := Range(vs)
		logger.Debugw("projected warp",
			"points", len(uvs),
			"off_screen", offScreen,
			"u_range", uRange,
			"v_range", vRange,
		)
	}
	return uvs, nil
}

func onScreen(uv [2]float32) bool {
	return uv[0] >= 0 && uv[1] >= 0 && uv[0] <= 1 && uv[1] <= 1
}

// SplitUV separates UV pairs into u and v samples.
func SplitUV(uvs [][2]float32) (stats.Float64Data, stats.Float64Data) {
	us := make(stats.Float64Data, len(uvs))
	vs := make(stats.Float64Data, len(uvs))
	for i, uv := range uvs {
		us[i] = float64(uv[0])
		vs[i] = float64(uv[1])
	}
	return us, vs
}

// Range returns the minimum and maximum of the samples.
func Range(data stats.Float64Data) ([2]float64, error) {
	lo, err := data.Min()
	if err != nil {
		return [2]float64{}, err
	}
	hi, err := data.Max()
	if err != nil {
		return [2]float64{}, err
	}
	return [2]float64{lo, hi}, nil
}
