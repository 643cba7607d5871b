package pipeline

import (
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/aligner/config"
	"go.viam.com/aligner/control"
	"go.viam.com/aligner/detection"
	"go.viam.com/aligner/locator"
	"go.viam.com/aligner/logging"
	"go.viam.com/aligner/pattern"
	"go.viam.com/aligner/projection"
	"go.viam.com/aligner/rimage/transform"
	"go.viam.com/aligner/surface"
	"go.viam.com/aligner/utils"
	"go.viam.com/aligner/warp"
)

// GenerateWarp shows the chessboard, photographs it, maps the detected corners onto the surface
// and builds the calibration document for the configured projector.
func GenerateWarp(ctx context.Context, cfg *config.Config, deps Deps, logger logging.Logger) (*warp.CalibrationOutput, error) {
	if err := multierr.Combine(cfg.Validate("config"), cfg.Warp.Validate("config.warp")); err != nil {
		return nil, err
	}
	if deps.Display == nil || deps.Source == nil || deps.Undistorter == nil || deps.Points == nil {
		return nil, errors.New("generate-warp needs a display, a photo source, an undistorter and a point detector")
	}

	intrinsics, err := transform.NewCameraIntrinsicsFromXMLFile(cfg.CalibrationFile)
	if err != nil {
		return nil, err
	}
	surf, err := cfg.NewSurface()
	if err != nil {
		return nil, err
	}
	pose, err := physicalCameraPose(surf, cfg.Warp.CameraLocationFile, logger)
	if err != nil {
		return nil, err
	}
	patternSize := cfg.Warp.PatternSize
	logger.Infow("building warp",
		"surface", surf.Type(),
		"pattern_size", patternSize.String(),
		"resolution", cfg.Warp.ProjectorResolution.String(),
	)

	board, err := pattern.ChessboardPNG(patternSize.Width, patternSize.Height)
	if err != nil {
		return nil, err
	}
	if err := deps.Display.ShowPattern(ctx, board); err != nil {
		return nil, errors.Wrap(err, "error showing chessboard pattern")
	}

	photograph, err := deps.Source.Capture(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error capturing photo")
	}
	imageW, imageH := photograph.Bounds().Dx(), photograph.Bounds().Dy()
	logger.Debugw("captured photo", "width", imageW, "height", imageH)

	inverted := detection.Preprocess(photograph)
	saveDebugImage(cfg.Warp.DebugImageDir, "alignment-inverted.png", inverted, logger)
	undistorted, err := deps.Undistorter.Undistort(inverted, intrinsics)
	if err != nil {
		return nil, errors.Wrap(err, "error undistorting photo")
	}
	saveDebugImage(cfg.Warp.DebugImageDir, "alignment-undistorted.png", undistorted, logger)

	points, err := deps.Points.DetectPoints(ctx, undistorted, patternSize.Width, patternSize.Height)
	if err != nil {
		return nil, err
	}
	if expected := patternSize.Width * patternSize.Height; len(points) != expected {
		return nil, utils.NewDetectionError("found %d chessboard corners, expected %d", len(points), expected)
	}

	scene, err := warp.LocateScenePoints(surf, pose, intrinsics, points, imageW, imageH)
	if err != nil {
		return nil, err
	}
	cam, err := warp.VirtualCamera{Eye: cfg.Warp.Eye, Up: cfg.Warp.Up}.Frame(scene)
	if err != nil {
		return nil, err
	}
	if cam.UpReplaced() {
		logger.Warnw("virtual camera up is parallel to the view direction, substituting a world axis",
			"configured_up", cfg.Warp.Up, "up", cam.Up)
	}
	logger.Infow("framed virtual camera", "eye", cam.Eye, "look_at", cam.LookAt, "up", cam.Up, "fov", cam.FOV)

	uvs, err := warp.ProjectWarp(cam, cfg.Warp.ProjectorResolution.Aspect(), scene, logger)
	if err != nil {
		return nil, err
	}
	return warp.NewCalibrationOutput(cam, warp.PatternSize{Width: patternSize.Width, Height: patternSize.Height}, uvs)
}

// physicalCameraPose is the surface's default pose, replaced by a camera location document for
// the wall. The dome camera always sits at the dome centre.
func physicalCameraPose(surf surface.Surface, locationFile string, logger logging.Logger) (surface.PhysicalCameraPose, error) {
	pose := surf.DefaultPose()
	if locationFile == "" {
		return pose, nil
	}
	if surf.Type() != surface.TypeWall {
		logger.Warnw("ignoring camera location, the camera is assumed to be at the dome centre", "path", locationFile)
		return pose, nil
	}
	loc, err := locator.ReadLocationOutputFile(locationFile)
	if err != nil {
		return surface.PhysicalCameraPose{}, err
	}
	logger.Infow("using camera location", "path", locationFile, "position", loc.Position, "direction", loc.Direction)
	if projection.DegenerateUp(loc.Position, loc.Direction, loc.Up) {
		logger.Warnw("camera location up is parallel to its view direction, substituting a world axis",
			"path", locationFile, "up", loc.Up)
	}
	return loc.Pose(), nil
}

func saveDebugImage(dir, name string, img image.Image, logger logging.Logger) {
	if dir == "" {
		return
	}
	path := filepath.Join(dir, name)
	if err := imaging.Save(img, path); err != nil {
		logger.Warnw("error saving debug image", "path", path, "error", err)
		return
	}
	logger.Debugw("saved debug image", "path", path)
}

// DeliverCalibration sends the document everywhere the configuration asks for: the output file,
// the upload URL and the projector's set_calibration command. When it is neither uploaded nor
// sent to the projector it is printed. Every destination is attempted.
func DeliverCalibration(
	ctx context.Context,
	doc *warp.CalibrationOutput,
	cfg *config.Config,
	deps Deps,
	logger logging.Logger,
) error {
	encoded, err := doc.MarshalIndent()
	if err != nil {
		return err
	}

	var errs error
	if cfg.Warp.Output != "" {
		if err := os.WriteFile(cfg.Warp.Output, encoded, 0o600); err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, "error writing calibration"))
		} else {
			logger.Infow("calibration written", "path", cfg.Warp.Output)
		}
	}
	sent := false
	if cfg.Warp.PostToURL != "" {
		sent = true
		if err := control.PostDocument(ctx, deps.HTTPClient, cfg.Warp.PostToURL, encoded); err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, "error posting calibration"))
		} else {
			logger.Infow("calibration posted", "url", cfg.Warp.PostToURL)
		}
	}
	if deps.Control != nil {
		sent = true
		if err := deps.Control.SendCommand(ctx, control.SetCalibrationCommand, json.RawMessage(encoded)); err != nil {
			errs = multierr.Append(errs, err)
		} else {
			logger.Info("calibration sent to projector")
		}
	}
	if !sent && deps.Stdout != nil {
		if _, err := deps.Stdout.Write(encoded); err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, "error printing calibration"))
		}
	}
	return errs
}
