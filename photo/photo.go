// Package photo acquires photographs of the projected pattern.
package photo

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	// register additional decoders for camera exports.
	_ "github.com/xfmoulet/qoi"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go.viam.com/aligner/logging"
)

// Source produces a photograph on demand.
type Source interface {
	Capture(ctx context.Context) (image.Image, error)
}

// NewSource picks a source from a camera description: empty means a tethered camera driven by
// gphoto2, an http(s) URL is fetched, "ffmpeg:<input>" or a /dev/video device grabs a frame
// through ffmpeg, and anything else is read as an image file.
func NewSource(camera string, logger logging.Logger) Source {
	switch {
	case camera == "":
		return &Tethered{
			Command:  DefaultTetherCommand,
			Captures: 2,
			Interval: time.Second,
			Logger:   logger,
		}
	case strings.HasPrefix(camera, "http://"), strings.HasPrefix(camera, "https://"):
		return &HTTPSource{URL: camera, Logger: logger}
	case strings.HasPrefix(camera, ffmpegPrefix), strings.HasPrefix(camera, "/dev/video"):
		return newFFmpegSource(camera, logger)
	default:
		return &FileSource{Path: camera, Logger: logger}
	}
}

// FileSource returns the same image file on every capture.
type FileSource struct {
	Path   string
	Logger logging.Logger
}

// Capture implements Source.
func (fs *FileSource) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fs.Logger != nil {
		fs.Logger.Warnf("%s is being provided as a camera photo", fs.Path)
	}
	img, err := imaging.Open(fs.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading photo %q", fs.Path)
	}
	return img, nil
}
