package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/aligner/config"
	"go.viam.com/aligner/locator"
	"go.viam.com/aligner/logging"
	"go.viam.com/aligner/pattern"
	"go.viam.com/aligner/pipeline"
	"go.viam.com/aligner/surface"
	"go.viam.com/aligner/warp"
)

// GenerateWarpAction is the corresponding Action for 'generate-warp'.
func GenerateWarpAction(c *cli.Context) error {
	logger, closeLog, err := newLogger(c)
	if err != nil {
		return err
	}
	defer closeLog()
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	if err := applyWarpFlags(c, cfg); err != nil {
		return err
	}

	deps, err := pipeline.NewWarpDeps(cfg, logger)
	if err != nil {
		return err
	}
	deps.Stdout = c.App.Writer
	if prompt, ok := deps.Display.(*pipeline.PromptDisplay); ok && c.App.Reader != nil {
		prompt.In = c.App.Reader
	}

	doc, err := pipeline.GenerateWarp(c.Context, cfg, deps, logger)
	if err != nil {
		return err
	}
	return pipeline.DeliverCalibration(c.Context, doc, cfg, deps, logger)
}

// LocateCameraAction is the corresponding Action for 'locate-camera'.
func LocateCameraAction(c *cli.Context) error {
	logger, closeLog, err := newLogger(c)
	if err != nil {
		return err
	}
	defer closeLog()
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	if c.IsSet(markerSizeFlag) {
		cfg.Locate.MarkerSize = c.Float64(markerSizeFlag)
	}
	if c.IsSet(markerCornersFileFlag) {
		cfg.Locate.MarkerCornersFile = c.String(markerCornersFileFlag)
	}
	if c.IsSet(outputFlag) {
		cfg.Locate.Output = c.String(outputFlag)
	}

	deps, err := pipeline.NewLocateDeps(cfg, logger)
	if err != nil {
		return err
	}
	deps.Stdout = c.App.Writer
	loc, err := pipeline.LocateCamera(c.Context, cfg, deps, logger)
	if err != nil {
		return err
	}
	return pipeline.DeliverLocation(loc, cfg, deps, logger)
}

// PatternAction is the corresponding Action for 'pattern'.
func PatternAction(c *cli.Context) error {
	size, err := config.ParseResolution(c.String(patternSizeFlag))
	if err != nil {
		return err
	}
	encoded, err := pattern.ChessboardPNG(size.Width, size.Height)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.String(outputFlag), encoded, 0o600); err != nil {
		return errors.Wrap(err, "error writing chessboard pattern")
	}
	printf(c.App.Writer, "Wrote %s chessboard to %s", size, c.String(outputFlag))
	return nil
}

// InspectAction is the corresponding Action for 'inspect'.
func InspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("inspect takes exactly one calibration document")
	}
	doc, err := warp.ReadCalibrationOutputFile(c.Args().First())
	if err != nil {
		return err
	}
	summary, err := doc.Table()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", summary)

	if c.IsSet(histogramFlag) {
		if err := doc.Histogram(c.App.Writer, c.Int(histogramFlag)); err != nil {
			return err
		}
	}
	if plotPath := c.String(plotFlag); plotPath != "" {
		if err := doc.Plot(plotPath); err != nil {
			return err
		}
		printf(c.App.Writer, "Plotted warp to %s", plotPath)
	}
	return nil
}

// documentSchemas are the documents the schema command can describe.
var documentSchemas = map[string]interface{}{
	"calibration": &warp.CalibrationOutput{},
	"location":    &locator.LocationOutput{},
}

// SchemaAction is the corresponding Action for 'schema'.
func SchemaAction(c *cli.Context) error {
	name := c.Args().First()
	doc, ok := documentSchemas[name]
	if !ok {
		return errors.Errorf("unknown document %q, expected calibration or location", name)
	}
	schema := jsonschema.Reflect(doc)
	encoded, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", encoded)
	return nil
}

// newLogger builds the command logger. The returned func releases the log file, if any.
func newLogger(c *cli.Context) (logging.Logger, func(), error) {
	var logger logging.Logger
	closeLog := func() {}
	if path := c.String(logFileFlag); path != "" {
		var closer io.Closer
		logger, closer = logging.NewFileLogger("aligner", path)
		closeLog = func() {
			//nolint:errcheck
			closer.Close()
		}
	} else {
		logger = logging.NewLogger("aligner")
	}
	if c.Bool(debugFlag) {
		logger.SetLevel(logging.DEBUG)
	}
	if c.IsSet(logLevelFlag) {
		level, err := logging.LevelFromString(c.String(logLevelFlag))
		if err != nil {
			closeLog()
			return nil, nil, err
		}
		logger.SetLevel(level)
	}
	return logger, closeLog, nil
}

// loadConfig builds the configuration from the defaults, the optional config file and then the
// global flags.
func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String(configFlag); path != "" {
		var err error
		if cfg, err = config.Read(path, logger); err != nil {
			return nil, err
		}
	}
	if c.IsSet(surfaceTypeFlag) {
		cfg.SurfaceType = surface.Type(c.String(surfaceTypeFlag))
	}
	if c.IsSet(cameraXMLFileFlag) {
		cfg.CalibrationFile = c.String(cameraXMLFileFlag)
	}
	if c.IsSet(controlURLFlag) {
		cfg.ControlURL = c.String(controlURLFlag)
	}
	if c.IsSet(cameraFlag) {
		cfg.Camera = c.String(cameraFlag)
	}
	return cfg, nil
}

func applyWarpFlags(c *cli.Context, cfg *config.Config) error {
	var err error
	if c.IsSet(patternSizeFlag) {
		if cfg.Warp.PatternSize, err = config.ParseResolution(c.String(patternSizeFlag)); err != nil {
			return errors.Wrap(err, "invalid pattern size")
		}
	}
	if c.IsSet(resolutionFlag) {
		if cfg.Warp.ProjectorResolution, err = config.ParseResolution(c.String(resolutionFlag)); err != nil {
			return errors.Wrap(err, "invalid projector resolution")
		}
	}
	if c.IsSet(eyeFlag) {
		if cfg.Warp.Eye, err = config.ParseVec3(c.String(eyeFlag)); err != nil {
			return errors.Wrap(err, "invalid eye position")
		}
	}
	if c.IsSet(upFlag) {
		if cfg.Warp.Up, err = config.ParseVec3(c.String(upFlag)); err != nil {
			return errors.Wrap(err, "invalid up vector")
		}
	}
	if c.IsSet(radiusFlag) {
		cfg.Surface.Radius = c.Float64(radiusFlag)
	}
	for flag, dst := range map[string]*string{
		cameraLocationFlag: &cfg.Warp.CameraLocationFile,
		postToURLFlag:      &cfg.Warp.PostToURL,
		pointsFileFlag:     &cfg.Warp.PointsFile,
		outputFlag:         &cfg.Warp.Output,
		debugImageDirFlag:  &cfg.Warp.DebugImageDir,
	} {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	return nil
}

// printf prints a message with a trailing newline.
func printf(w io.Writer, format string, a ...interface{}) {
	if _, err := fmt.Fprintf(w, format+"\n", a...); err != nil {
		//nolint:errcheck
		fmt.Fprintf(os.Stderr, "error writing output: %v\n", err)
	}
}
