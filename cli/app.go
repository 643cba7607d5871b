// Package cli contains the aligner command line interface.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/aligner/config"
)

// Flags.
const (
	surfaceTypeFlag   = "surface-type"
	cameraXMLFileFlag = "camera-xml-file"
	controlURLFlag    = "control-url"
	cameraFlag        = "camera"
	configFlag        = "config"
	debugFlag         = "debug"
	logLevelFlag      = "log-level"
	logFileFlag       = "log-file"

	cameraLocationFlag = "camera-location-json"
	patternSizeFlag    = "pattern-size"
	resolutionFlag     = "resolution"
	postToURLFlag      = "post-to-url"
	eyeFlag            = "eye"
	upFlag             = "up"
	radiusFlag         = "radius"
	pointsFileFlag     = "points-file"
	outputFlag         = "output"
	debugImageDirFlag  = "debug-image-dir"

	markerSizeFlag        = "marker-size"
	markerCornersFileFlag = "marker-corners-file"

	plotFlag      = "plot"
	histogramFlag = "histogram"
)

// NewApp returns a new app with Writer set to out and ErrWriter set to errOut. Operator prompts
// are read from the app's Reader, which defaults to stdin.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "aligner",
		Usage:           "projection warp and alignment generator",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    surfaceTypeFlag,
				Aliases: []string{"s"},
				Value:   string(config.DefaultSurfaceType),
				Usage:   `surface type, either "dome" or "wall"`,
			},
			&cli.StringFlag{
				Name:    cameraXMLFileFlag,
				Aliases: []string{"x"},
				Value:   config.DefaultCalibrationFile,
				Usage:   "OpenCV calibration `FILE` holding the camera intrinsics",
			},
			&cli.StringFlag{
				Name:  controlURLFlag,
				Usage: "`URL` to control and show images on the projector",
			},
			&cli.StringFlag{
				Name:    cameraFlag,
				Aliases: []string{"c"},
				Usage:   "http(s) URL or file name to use for camera images instead of a tethered camera",
			},
			&cli.StringFlag{
				Name:  configFlag,
				Usage: "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  debugFlag,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "log level, one of debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  logFileFlag,
				Usage: "also write JSON logs to `FILE`, rotated as it grows",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "generate-warp",
				Usage: "calculate the frustum and warp for a single projector",
				Description: `Shows a chessboard on the projector, photographs it and maps the corners onto the
surface. The result is a virtual camera and a UV warp aligning pre-rendered frames to the surface.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    cameraLocationFlag,
						Aliases: []string{"j"},
						Usage:   "camera location `FILE` written by locate-camera, ignored for the dome",
					},
					&cli.StringFlag{
						Name:    patternSizeFlag,
						Aliases: []string{"p"},
						Value:   config.DefaultPatternSize.String(),
						Usage:   "chessboard interior corners as WIDTHxHEIGHT",
					},
					&cli.StringFlag{
						Name:    resolutionFlag,
						Aliases: []string{"z"},
						Value:   config.DefaultProjectorResolution.String(),
						Usage:   "projector output resolution as WIDTHxHEIGHT",
					},
					&cli.StringFlag{
						Name:  postToURLFlag,
						Usage: "HTTP POST the calibration to `URL` instead of printing it",
					},
					&cli.StringFlag{
						Name:  eyeFlag,
						Value: config.FormatVec3(config.DefaultEye),
						Usage: "virtual camera position in scene space as x,y,z",
					},
					&cli.StringFlag{
						Name:  upFlag,
						Value: config.FormatVec3(config.DefaultUp),
						Usage: "virtual camera up vector as x,y,z",
					},
					&cli.Float64Flag{
						Name:  radiusFlag,
						Value: config.DefaultRadius,
						Usage: "dome radius",
					},
					&cli.StringFlag{
						Name:  pointsFileFlag,
						Usage: "JSON `FILE` of chessboard corners to use instead of detecting them",
					},
					&cli.StringFlag{
						Name:    outputFlag,
						Aliases: []string{"o"},
						Usage:   "also write the calibration to `FILE`",
					},
					&cli.StringFlag{
						Name:  debugImageDirFlag,
						Usage: "save intermediate images to `DIR`",
					},
				},
				Action: GenerateWarpAction,
			},
			{
				Name:        "locate-camera",
				Usage:       "locate the camera relative to a single aruco marker",
				Description: "Place an aruco marker at 0,0,0 facing the Z axis before running.",
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:     markerSizeFlag,
						Aliases:  []string{"m"},
						Usage:    "aruco marker size in meters",
						Required: true,
					},
					&cli.StringFlag{
						Name:  markerCornersFileFlag,
						Usage: "JSON `FILE` of marker corners to use instead of detecting them",
					},
					&cli.StringFlag{
						Name:    outputFlag,
						Aliases: []string{"o"},
						Usage:   "write the camera location to `FILE` instead of printing it",
					},
				},
				Action: LocateCameraAction,
			},
			{
				Name:  "pattern",
				Usage: "write the chessboard pattern shown during generate-warp",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    patternSizeFlag,
						Aliases: []string{"p"},
						Value:   config.DefaultPatternSize.String(),
						Usage:   "chessboard interior corners as WIDTHxHEIGHT",
					},
					&cli.StringFlag{
						Name:     outputFlag,
						Aliases:  []string{"o"},
						Usage:    "PNG `FILE` to write",
						Required: true,
					},
				},
				Action: PatternAction,
			},
			{
				Name:      "inspect",
				Usage:     "summarize a calibration document",
				ArgsUsage: "<calibration.json>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  plotFlag,
						Usage: "plot the warp grid to `FILE`",
					},
					&cli.IntFlag{
						Name:  histogramFlag,
						Usage: "print a histogram of each UV axis with up to `BINS` buckets",
					},
				},
				Action: InspectAction,
			},
			{
				Name:      "schema",
				Usage:     "print the JSON schema of an output document",
				ArgsUsage: "<calibration|location>",
				Action:    SchemaAction,
			},
		},
	}
}
