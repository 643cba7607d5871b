package pipeline

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"go.viam.com/aligner/config"
	"go.viam.com/aligner/locator"
	"go.viam.com/aligner/logging"
	"go.viam.com/aligner/rimage/transform"
)

// LocateCamera photographs a single marker lying at the scene origin and returns where the
// camera is relative to it.
func LocateCamera(ctx context.Context, cfg *config.Config, deps Deps, logger logging.Logger) (*locator.LocationOutput, error) {
	if cfg.CalibrationFile == "" {
		return nil, errors.New("locate-camera needs a camera calibration file")
	}
	if err := cfg.Locate.Validate("config.locate"); err != nil {
		return nil, err
	}
	if deps.Source == nil || deps.Markers == nil {
		return nil, errors.New("locate-camera needs a photo source and a marker detector")
	}

	intrinsics, err := transform.NewCameraIntrinsicsFromXMLFile(cfg.CalibrationFile)
	if err != nil {
		return nil, err
	}
	photograph, err := deps.Source.Capture(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error capturing photo")
	}
	// the detector undistorts the corners itself
	detections, err := deps.Markers.DetectMarkers(ctx, photograph, intrinsics, cfg.Locate.MarkerSize)
	if err != nil {
		return nil, err
	}
	logger.Debugw("detected markers", "count", detections.Len())

	loc, err := locator.LocalizeMarker(detections, intrinsics.FOV())
	if err != nil {
		return nil, err
	}
	logger.Infow("located camera", "position", loc.Position, "direction", loc.Direction, "up", loc.Up)
	return loc, nil
}

// DeliverLocation writes the location document to the configured output file, or prints it.
func DeliverLocation(loc *locator.LocationOutput, cfg *config.Config, deps Deps, logger logging.Logger) error {
	encoded, err := loc.MarshalIndent()
	if err != nil {
		return err
	}
	if cfg.Locate.Output != "" {
		if err := os.WriteFile(cfg.Locate.Output, encoded, 0o600); err != nil {
			return errors.Wrap(err, "error writing camera location")
		}
		logger.Infow("camera location written", "path", cfg.Locate.Output)
		return nil
	}
	if deps.Stdout == nil {
		return nil
	}
	_, err = deps.Stdout.Write(encoded)
	return errors.Wrap(err, "error printing camera location")
}
