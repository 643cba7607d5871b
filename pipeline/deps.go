// Package pipeline runs the generate-warp and locate-camera procedures end to end: it shows the
// pattern, captures a photograph, runs detection and the scene geometry, and delivers the
// resulting document.
package pipeline

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/aligner/config"
	"go.viam.com/aligner/control"
	"go.viam.com/aligner/detection"
	"go.viam.com/aligner/logging"
	"go.viam.com/aligner/photo"
)

// DefaultHTTPTimeout bounds every request to the projector or an upload URL.
const DefaultHTTPTimeout = 30 * time.Second

// Deps are the collaborators of a run. Tests substitute fakes for any of them.
type Deps struct {
	Display     Display
	Source      photo.Source
	Undistorter detection.Undistorter
	Points      detection.PointDetector
	Markers     detection.MarkerDetector

	// Control is nil when no control URL is configured.
	Control    *control.Client
	HTTPClient *http.Client
	Stdout     io.Writer
}

// NewWarpDeps builds the collaborators generate-warp needs from the configuration.
func NewWarpDeps(cfg *config.Config, logger logging.Logger) (Deps, error) {
	deps := newDeps(cfg, logger)
	if cfg.Warp.PointsFile != "" {
		deps.Points = detection.PointsFile{Path: cfg.Warp.PointsFile}
		return deps, nil
	}
	detector, err := detection.NewChessboardDetector()
	if err != nil {
		return Deps{}, errors.Wrap(err, "no chessboard detector available, supply a points file")
	}
	deps.Points = detector
	return deps, nil
}

// NewLocateDeps builds the collaborators locate-camera needs from the configuration.
func NewLocateDeps(cfg *config.Config, logger logging.Logger) (Deps, error) {
	deps := newDeps(cfg, logger)
	if cfg.Locate.MarkerCornersFile != "" {
		deps.Markers = detection.MarkerCornersFile{Path: cfg.Locate.MarkerCornersFile}
		return deps, nil
	}
	detector, err := detection.NewArucoDetector()
	if err != nil {
		return Deps{}, errors.Wrap(err, "no marker detector available, supply a marker corners file")
	}
	deps.Markers = detector
	return deps, nil
}

func newDeps(cfg *config.Config, logger logging.Logger) Deps {
	httpClient := &http.Client{Timeout: DefaultHTTPTimeout}
	deps := Deps{
		Source:      photo.NewSource(cfg.Camera, logger.Sublogger("photo")),
		Undistorter: detection.NewUndistorter(),
		HTTPClient:  httpClient,
		Stdout:      os.Stdout,
	}
	if cfg.ControlURL != "" {
		deps.Control = control.NewClient(cfg.ControlURL, httpClient)
		deps.Display = ControlDisplay{Client: deps.Control}
	} else {
		prompt := &PromptDisplay{In: os.Stdin, Logger: logger}
		if cfg.Warp.DebugImageDir != "" {
			prompt.PatternPath = filepath.Join(cfg.Warp.DebugImageDir, "chessboard.png")
		}
		deps.Display = prompt
	}
	return deps
}
