package photo

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"go.viam.com/aligner/logging"
)

// ffmpegPrefix marks a camera description as an ffmpeg input, for example "ffmpeg:rtsp://host/stream".
const ffmpegPrefix = "ffmpeg:"

// FFmpegSource grabs a single frame from anything ffmpeg can open: a V4L2 device, a network
// stream or a video file.
type FFmpegSource struct {
	Input     string
	InputArgs ffmpeg.KwArgs
	Logger    logging.Logger
}

func newFFmpegSource(camera string, logger logging.Logger) *FFmpegSource {
	if strings.HasPrefix(camera, "/dev/video") {
		return &FFmpegSource{Input: camera, InputArgs: ffmpeg.KwArgs{"f": "v4l2"}, Logger: logger}
	}
	return &FFmpegSource{Input: strings.TrimPrefix(camera, ffmpegPrefix), Logger: logger}
}

// Capture implements Source.
func (fs *FFmpegSource) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var frame, stderr bytes.Buffer
	stream := ffmpeg.Input(fs.Input, fs.InputArgs).
		Output("pipe:", ffmpeg.KwArgs{"frames:v": 1, "format": "image2", "vcodec": "png"})
	stream.Context = ctx
	if err := stream.WithOutput(&frame).WithErrorOutput(&stderr).Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, errors.Wrap(err, "ffmpeg executable not found, is the ffmpeg package installed?")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrapf(err, "error grabbing a frame from %q: %s", fs.Input, strings.TrimSpace(stderr.String()))
	}
	img, err := png.Decode(&frame)
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding frame from %q", fs.Input)
	}
	if fs.Logger != nil {
		fs.Logger.Infow("grabbed ffmpeg frame", "input", fs.Input, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	}
	return img, nil
}
