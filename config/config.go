// Package config defines the aligner's configuration, its defaults and its validation.
package config

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/aligner/surface"
	"go.viam.com/aligner/utils"
)

// Defaults.
const (
	DefaultSurfaceType     = surface.TypeDome
	DefaultRadius          = 5.0
	DefaultCalibrationFile = "noop.xml"
)

var (
	// DefaultPatternSize is the number of interior chessboard corners.
	DefaultPatternSize = Resolution{Width: 25, Height: 16}
	// DefaultProjectorResolution is the projector output resolution.
	DefaultProjectorResolution = Resolution{Width: 1024, Height: 768}
	// DefaultEye is the virtual camera position.
	DefaultEye = mgl32.Vec3{0, 0, 0}
	// DefaultUp is the virtual camera up vector.
	DefaultUp = mgl32.Vec3{0, 1, 0}
)

// Config is the full configuration of a run. Values come from defaults, then an optional JSON
// file, then command line flags.
type Config struct {
	SurfaceType     surface.Type `json:"surface_type"`
	CalibrationFile string       `json:"camera_xml_file"`
	ControlURL      string       `json:"control_url,omitempty"`
	Camera          string       `json:"camera,omitempty"`

	Surface SurfaceConfig `json:"surface"`
	Warp    WarpConfig    `json:"warp"`
	Locate  LocateConfig  `json:"locate"`
}

// SurfaceConfig describes the projection surface.
type SurfaceConfig struct {
	Radius float64 `json:"radius"`
}

// WarpConfig configures generate-warp.
type WarpConfig struct {
	PatternSize         Resolution `json:"pattern_size"`
	ProjectorResolution Resolution `json:"resolution"`
	Eye                 mgl32.Vec3 `json:"eye"`
	Up                  mgl32.Vec3 `json:"up"`
	CameraLocationFile  string     `json:"camera_location_json,omitempty"`
	PointsFile          string     `json:"points_file,omitempty"`
	PostToURL           string     `json:"post_to_url,omitempty"`
	Output              string     `json:"output,omitempty"`
	DebugImageDir       string     `json:"debug_image_dir,omitempty"`
}

// LocateConfig configures locate-camera.
type LocateConfig struct {
	MarkerSize        float64 `json:"marker_size"`
	MarkerCornersFile string  `json:"marker_corners_file,omitempty"`
	Output            string  `json:"output,omitempty"`
}

// Default returns a configuration holding every default.
func Default() *Config {
	return &Config{
		SurfaceType:     DefaultSurfaceType,
		CalibrationFile: DefaultCalibrationFile,
		Surface:         SurfaceConfig{Radius: DefaultRadius},
		Warp: WarpConfig{
			PatternSize:         DefaultPatternSize,
			ProjectorResolution: DefaultProjectorResolution,
			Eye:                 DefaultEye,
			Up:                  DefaultUp,
		},
	}
}

// Validate checks the parts of the configuration shared by every command.
func (c *Config) Validate(path string) error {
	var errs error
	if c.CalibrationFile == "" {
		errs = multierr.Append(errs, utils.NewConfigValidationFieldRequiredError(path, "camera_xml_file"))
	}
	if _, err := c.NewSurface(); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, err))
	}
	return errs
}

// NewSurface builds the configured surface.
func (c *Config) NewSurface() (surface.Surface, error) {
	return surface.New(c.SurfaceType, c.Surface.Radius)
}

// Validate checks the warp settings.
func (wc *WarpConfig) Validate(path string) error {
	var errs error
	for name, r := range map[string]Resolution{"pattern_size": wc.PatternSize, "resolution": wc.ProjectorResolution} {
		if r.Width <= 0 || r.Height <= 0 {
			errs = multierr.Append(errs, utils.NewConfigValidationError(
				fmt.Sprintf("%s.%s", path, name), errors.Errorf("%v must be positive", r)))
		}
	}
	if wc.Up.Len() == 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(
			fmt.Sprintf("%s.up", path), errors.New("up vector must not be zero")))
	}
	return errs
}

// Validate checks the locate settings.
func (lc *LocateConfig) Validate(path string) error {
	if lc.MarkerSize == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "marker_size")
	}
	if lc.MarkerSize < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("marker_size must be positive, got %v", lc.MarkerSize))
	}
	return nil
}
