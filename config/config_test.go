package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/test"

	"go.viam.com/aligner/logging"
	"go.viam.com/aligner/surface"
	"go.viam.com/aligner/utils"
)

func TestParseResolution(t *testing.T) {
	r, err := ParseResolution("1024x768")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldResemble, Resolution{Width: 1024, Height: 768})
	test.That(t, r.String(), test.ShouldEqual, "1024x768")
	test.That(t, r.Aspect(), test.ShouldAlmostEqual, 4.0/3.0, 1e-6)

	for _, bad := range []string{"", "1024", "1024x", "x768", "1024X768", "1024x768x2", "-4x3", "0x3", "4x0", "4 x 3", "4.5x3"} {
		_, err := ParseResolution(bad)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, utils.ErrConfig), test.ShouldBeTrue)
	}

	var fromText Resolution
	test.That(t, fromText.UnmarshalText([]byte("25x16")), test.ShouldBeNil)
	test.That(t, fromText, test.ShouldResemble, DefaultPatternSize)
	text, err := fromText.MarshalText()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(text), test.ShouldEqual, "25x16")
	test.That(t, fromText.UnmarshalText([]byte("nope")), test.ShouldNotBeNil)
}

func TestParseVec3(t *testing.T) {
	v, err := ParseVec3("0, 1.5,-2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldResemble, mgl32.Vec3{0, 1.5, -2})
	test.That(t, FormatVec3(v), test.ShouldEqual, "0,1.5,-2")

	for _, bad := range []string{"", "1,2", "1,2,3,4", "a,b,c", "1,,3"} {
		_, err := ParseVec3(bad)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, utils.ErrConfig), test.ShouldBeTrue)
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate("config"), test.ShouldBeNil)
	test.That(t, cfg.Warp.Validate("config.warp"), test.ShouldBeNil)
	test.That(t, cfg.SurfaceType, test.ShouldEqual, surface.TypeDome)
	test.That(t, cfg.CalibrationFile, test.ShouldEqual, "noop.xml")

	surf, err := cfg.NewSurface()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, surf.Type(), test.ShouldEqual, surface.TypeDome)
}

func TestValidateAggregates(t *testing.T) {
	cfg := Default()
	cfg.CalibrationFile = ""
	cfg.SurfaceType = "cube"
	err := cfg.Validate("config")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, len(multierr.Errors(err)), test.ShouldEqual, 2)
	test.That(t, err.Error(), test.ShouldContainSubstring, "camera_xml_file")
	test.That(t, err.Error(), test.ShouldContainSubstring, "cube")

	cfg = Default()
	cfg.Surface.Radius = -1
	test.That(t, cfg.Validate("config"), test.ShouldNotBeNil)

	cfg.Warp.PatternSize = Resolution{}
	cfg.Warp.ProjectorResolution = Resolution{Width: 10}
	cfg.Warp.Up = mgl32.Vec3{}
	err = cfg.Warp.Validate("config.warp")
	test.That(t, len(multierr.Errors(err)), test.ShouldEqual, 3)
	test.That(t, err.Error(), test.ShouldContainSubstring, "config.warp.up")
}

func TestLocateValidate(t *testing.T) {
	lc := LocateConfig{}
	err := lc.Validate("config.locate")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "marker_size")

	lc.MarkerSize = -0.1
	test.That(t, lc.Validate("config.locate"), test.ShouldNotBeNil)
	lc.MarkerSize = 0.1
	test.That(t, lc.Validate("config.locate"), test.ShouldBeNil)
}

func TestFromReader(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	doc := `{
		"surface_type": "wall",
		"camera_xml_file": "camera.xml",
		"warp": {"pattern_size": "9x6", "eye": "0,0,1", "up": [0, 0, 1], "output": "warp.json"},
		"locate": {"marker_size": 0.15},
		"colour": "blue"
	}`
	cfg, err := FromReader("test.json", strings.NewReader(doc), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.SurfaceType, test.ShouldEqual, surface.TypeWall)
	test.That(t, cfg.CalibrationFile, test.ShouldEqual, "camera.xml")
	test.That(t, cfg.Warp.PatternSize, test.ShouldResemble, Resolution{Width: 9, Height: 6})
	test.That(t, cfg.Warp.ProjectorResolution, test.ShouldResemble, DefaultProjectorResolution)
	test.That(t, cfg.Warp.Eye, test.ShouldResemble, mgl32.Vec3{0, 0, 1})
	test.That(t, cfg.Warp.Up, test.ShouldResemble, mgl32.Vec3{0, 0, 1})
	test.That(t, cfg.Warp.Output, test.ShouldEqual, "warp.json")
	test.That(t, cfg.Surface.Radius, test.ShouldEqual, DefaultRadius)
	test.That(t, cfg.Locate.MarkerSize, test.ShouldEqual, 0.15)

	test.That(t, logs.FilterMessage("ignoring unknown config key").Len(), test.ShouldEqual, 1)
}

func TestFromReaderJSON5(t *testing.T) {
	logger := logging.NewTestLogger(t)
	doc := `{
		// the projector in the lobby
		surface_type: "wall",
		warp: {
			resolution: "1920x1080",
			eye: [0, 1.5, 4,],
		},
	}`
	cfg, err := FromReader("lobby.json5", strings.NewReader(doc), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.SurfaceType, test.ShouldEqual, surface.TypeWall)
	test.That(t, cfg.Warp.ProjectorResolution, test.ShouldResemble, Resolution{Width: 1920, Height: 1080})
	test.That(t, cfg.Warp.Eye, test.ShouldResemble, mgl32.Vec3{0, 1.5, 4})
}

func TestFromReaderErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for _, doc := range []string{
		`not json`,
		`{"warp": {"pattern_size": "9by6"}}`,
		`{"warp": {"eye": "1,2"}}`,
		`{"warp": {"up": [1, 2]}}`,
		`{"surface": {"radius": "far"}}`,
	} {
		_, err := FromReader("bad.json", strings.NewReader(doc), logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, utils.ErrConfig), test.ShouldBeTrue)
	}
}

func TestRead(t *testing.T) {
	logger := logging.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "aligner.json")
	test.That(t, os.WriteFile(path, []byte(`{"surface": {"radius": 3}}`), 0o600), test.ShouldBeNil)

	cfg, err := Read(path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Surface.Radius, test.ShouldEqual, 3.0)

	_, err = Read(filepath.Join(t.TempDir(), "missing.json"), logger)
	test.That(t, err, test.ShouldNotBeNil)
}
