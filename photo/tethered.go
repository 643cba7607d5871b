package photo

import (
	"context"
	"image"
	"os"
	"os/exec"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"go.viam.com/aligner/logging"
)

// DefaultTetherCommand is the gphoto2 executable.
const DefaultTetherCommand = "gphoto2"

// Tethered captures with a USB tethered camera through gphoto2. Some cameras hand back a stale
// frame on the first capture, so Captures photos are taken Interval apart and the last one kept.
type Tethered struct {
	Command  string
	Captures int
	Interval time.Duration
	Logger   logging.Logger
}

// Capture implements Source.
func (t *Tethered) Capture(ctx context.Context) (image.Image, error) {
	tmp, err := os.CreateTemp("", "aligner-photo-*.jpg")
	if err != nil {
		return nil, errors.Wrap(err, "error creating photo file")
	}
	path := tmp.Name()
	//nolint:errcheck
	tmp.Close()
	defer func() {
		//nolint:errcheck
		os.Remove(path)
	}()

	captures := t.Captures
	if captures < 1 {
		captures = 1
	}
	for i := 0; i < captures; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(t.Interval):
			}
		}
		//nolint:gosec
		cmd := exec.CommandContext(ctx, t.Command,
			"--capture-image-and-download", "--force-overwrite", "--filename", path)
		out, err := cmd.CombinedOutput()
		if t.Logger != nil {
			t.Logger.Debugw("gphoto2 capture", "attempt", i+1, "output", string(out))
		}
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				return nil, errors.Wrapf(err, "%s executable not found, is the gphoto2 package installed?", t.Command)
			}
			return nil, errors.Wrapf(err, "error while running %s", t.Command)
		}
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading tethered photo")
	}
	if t.Logger != nil {
		t.Logger.Info("returning tethered camera photo")
	}
	return img, nil
}
