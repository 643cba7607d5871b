package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/aligner/config"
	"go.viam.com/aligner/control"
	"go.viam.com/aligner/detection"
	"go.viam.com/aligner/locator"
	"go.viam.com/aligner/logging"
	"go.viam.com/aligner/projection"
	"go.viam.com/aligner/spatialmath"
	"go.viam.com/aligner/surface"
	"go.viam.com/aligner/utils"
	"go.viam.com/aligner/warp"
)

// a 100x100 pinhole camera with a 90 degree field of view and no lens distortion.
const pinholeXML = `<?xml version="1.0"?>
<opencv_storage>
<image_width>100</image_width>
<image_height>100</image_height>
<camera_matrix type_id="opencv-matrix">
  <rows>3</rows><cols>3</cols><dt>d</dt>
  <data>50. 0. 50. 0. 50. 50. 0. 0. 1.</data></camera_matrix>
<distortion_coefficients type_id="opencv-matrix">
  <rows>5</rows><cols>1</cols><dt>d</dt>
  <data>0. 0. 0. 0. 0.</data></distortion_coefficients>
</opencv_storage>
`

type recordingDisplay struct {
	shown [][]byte
	err   error
}

func (rd *recordingDisplay) ShowPattern(ctx context.Context, png []byte) error {
	rd.shown = append(rd.shown, png)
	return rd.err
}

type stillSource struct {
	captures int
}

func (ss *stillSource) Capture(ctx context.Context) (image.Image, error) {
	ss.captures++
	return imaging.New(100, 100, color.White), nil
}

type fixedPoints []r2.Point

func (fp fixedPoints) DetectPoints(ctx context.Context, img image.Image, patternW, patternH int) ([]r2.Point, error) {
	return fp, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)
	return path
}

func writePoints(t *testing.T, dir string, points [][2]float64) string {
	t.Helper()
	encoded, err := json.Marshal(points)
	test.That(t, err, test.ShouldBeNil)
	return writeFile(t, dir, "points.json", string(encoded))
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.CalibrationFile = writeFile(t, dir, "camera.xml", pinholeXML)
	cfg.Warp.PatternSize = config.Resolution{Width: 3, Height: 2}
	return cfg
}

func testDeps(cfg *config.Config) (Deps, *recordingDisplay, *stillSource) {
	display := &recordingDisplay{}
	source := &stillSource{}
	return Deps{
		Display:     display,
		Source:      source,
		Undistorter: detection.ImageUndistorter{},
		Points:      detection.PointsFile{Path: cfg.Warp.PointsFile},
	}, display, source
}

func TestGenerateWarpDome(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewTestLogger(t)
	cfg := testConfig(t, dir)
	cfg.Warp.PointsFile = writePoints(t, dir, [][2]float64{{25, 30}, {50, 30}, {75, 30}, {25, 60}, {50, 60}, {75, 60}})
	cfg.Warp.DebugImageDir = dir
	deps, display, source := testDeps(cfg)

	out, err := GenerateWarp(context.Background(), cfg, deps, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(display.shown), test.ShouldEqual, 1)
	test.That(t, display.shown[0][:4], test.ShouldResemble, []byte("\x89PNG"))
	test.That(t, source.captures, test.ShouldEqual, 1)

	test.That(t, out.WarpResX, test.ShouldEqual, 3)
	test.That(t, out.WarpResY, test.ShouldEqual, 2)
	test.That(t, len(out.Warp), test.ShouldEqual, 6)
	for _, uv := range out.Warp {
		test.That(t, spatialmath.IsFinite(uv[0], uv[1]), test.ShouldBeTrue)
	}
	test.That(t, out.Eye, test.ShouldResemble, config.DefaultEye)
	test.That(t, out.Up, test.ShouldResemble, config.DefaultUp)
	test.That(t, out.FOV, test.ShouldBeGreaterThan, 0)
	test.That(t, out.FOV, test.ShouldBeLessThan, 180)
	// the centroid of points on the dome lies inside it, above the floor
	test.That(t, out.LookAt.Len(), test.ShouldBeLessThan, config.DefaultRadius)
	test.That(t, out.LookAt.Y(), test.ShouldBeGreaterThan, 0)

	for _, name := range []string{"alignment-inverted.png", "alignment-undistorted.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		test.That(t, err, test.ShouldBeNil)
	}
}

func TestGenerateWarpDomeCentredGrid(t *testing.T) {
	dir := t.TempDir()
	logger, logs := logging.NewObservedTestLogger(t)
	cfg := testConfig(t, dir)
	// symmetric about the image centre, so the look-at point sits straight above the default eye
	pixels := [][2]float64{{25, 25}, {50, 25}, {75, 25}, {25, 75}, {50, 75}, {75, 75}}
	cfg.Warp.PointsFile = writePoints(t, dir, pixels)
	deps, _, _ := testDeps(cfg)

	out, err := GenerateWarp(context.Background(), cfg, deps, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Up, test.ShouldResemble, mgl32.Vec3{0, 0, 1})
	test.That(t, logs.FilterMessage("virtual camera up is parallel to the view direction, substituting a world axis").Len(),
		test.ShouldEqual, 1)

	// a renderer rebuilding the camera from the document reproduces the warp
	view := mgl32.LookAtV(out.Eye, out.LookAt, out.Up)
	proj := projection.Perspective(out.FOV, config.DefaultProjectorResolution.Aspect(), 0.1, 100)
	dome := surface.Dome{Radius: config.DefaultRadius}
	for i, px := range pixels {
		scene, err := dome.CameraToScene(dome.DefaultPose(), nil, r2.Point{X: px[0], Y: px[1]}, 100, 100)
		test.That(t, err, test.ShouldBeNil)
		uv, err := projection.Project(scene, view, proj, projection.UnitViewport)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, uv.X(), test.ShouldAlmostEqual, out.Warp[i][0], 1e-4)
		test.That(t, uv.Y(), test.ShouldAlmostEqual, out.Warp[i][1], 1e-4)
	}
}

func TestGenerateWarpWall(t *testing.T) {
	dir := t.TempDir()
	logger, logs := logging.NewObservedTestLogger(t)
	cfg := testConfig(t, dir)
	cfg.SurfaceType = surface.TypeWall
	cfg.Warp.Eye = mgl32.Vec3{0, 0, 5}
	cfg.Warp.PointsFile = writePoints(t, dir, [][2]float64{{25, 25}, {50, 25}, {75, 25}, {25, 75}, {50, 75}, {75, 75}})
	cfg.Warp.CameraLocationFile = writeFile(t, dir, "location.json",
		`{"position": [0, 0, 2], "direction": [0, 0, 0], "up": [0, 1, 0], "fov": 90}`)
	deps, _, _ := testDeps(cfg)

	out, err := GenerateWarp(context.Background(), cfg, deps, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.LookAt.Len(), test.ShouldAlmostEqual, 0, 1e-4)
	test.That(t, logs.FilterMessage("using camera location").Len(), test.ShouldEqual, 1)

	// the middle column is symmetric about the look-at point
	test.That(t, out.Warp[1][0], test.ShouldAlmostEqual, 0.5, 1e-4)
	test.That(t, out.Warp[4][0], test.ShouldAlmostEqual, 0.5, 1e-4)
	test.That(t, out.Warp[1][1]+out.Warp[4][1], test.ShouldAlmostEqual, 1, 1e-4)
}

func TestGenerateWarpWallLocationUpAlongView(t *testing.T) {
	dir := t.TempDir()
	logger, logs := logging.NewObservedTestLogger(t)
	cfg := testConfig(t, dir)
	cfg.SurfaceType = surface.TypeWall
	cfg.Warp.Eye = mgl32.Vec3{0, 0, 5}
	cfg.Warp.PointsFile = writePoints(t, dir, [][2]float64{{25, 25}, {50, 25}, {75, 25}, {25, 75}, {50, 75}, {75, 75}})
	cfg.Warp.CameraLocationFile = writeFile(t, dir, "location.json",
		`{"position": [0, 0, 2], "direction": [0, 0, 0], "up": [0, 0, 1], "fov": 90}`)
	deps, _, _ := testDeps(cfg)

	_, err := GenerateWarp(context.Background(), cfg, deps, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logs.FilterMessageSnippet("camera location up is parallel").Len(), test.ShouldEqual, 1)
}

func TestGenerateWarpDomeIgnoresLocation(t *testing.T) {
	dir := t.TempDir()
	logger, logs := logging.NewObservedTestLogger(t)
	cfg := testConfig(t, dir)
	cfg.Warp.PointsFile = writePoints(t, dir, [][2]float64{{25, 30}, {50, 30}, {75, 30}, {25, 60}, {50, 60}, {75, 60}})
	cfg.Warp.CameraLocationFile = filepath.Join(dir, "never-read.json")
	deps, _, _ := testDeps(cfg)

	_, err := GenerateWarp(context.Background(), cfg, deps, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logs.FilterMessageSnippet("ignoring camera location").Len(), test.ShouldEqual, 1)
}

func TestGenerateWarpErrors(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewTestLogger(t)

	t.Run("too few corners", func(t *testing.T) {
		cfg := testConfig(t, dir)
		deps, _, _ := testDeps(cfg)
		deps.Points = fixedPoints{{X: 50, Y: 50}}
		_, err := GenerateWarp(context.Background(), cfg, deps, logger)
		test.That(t, errors.Is(err, utils.ErrDetection), test.ShouldBeTrue)
	})

	t.Run("corner outside the dome", func(t *testing.T) {
		cfg := testConfig(t, dir)
		deps, _, _ := testDeps(cfg)
		deps.Points = fixedPoints{{X: 50, Y: 50}, {X: 0, Y: 0}, {X: 50, Y: 50}, {X: 50, Y: 50}, {X: 50, Y: 50}, {X: 50, Y: 50}}
		_, err := GenerateWarp(context.Background(), cfg, deps, logger)
		test.That(t, errors.Is(err, utils.ErrGeometry), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "point 1")
	})

	t.Run("display failure", func(t *testing.T) {
		cfg := testConfig(t, dir)
		deps, display, source := testDeps(cfg)
		display.err = errors.New("projector offline")
		_, err := GenerateWarp(context.Background(), cfg, deps, logger)
		test.That(t, err.Error(), test.ShouldContainSubstring, "projector offline")
		test.That(t, source.captures, test.ShouldEqual, 0)
	})

	t.Run("bad configuration", func(t *testing.T) {
		cfg := testConfig(t, dir)
		cfg.Warp.PatternSize = config.Resolution{Width: 4, Height: 4}
		deps, _, _ := testDeps(cfg)
		_, err := GenerateWarp(context.Background(), cfg, deps, logger)
		test.That(t, errors.Is(err, utils.ErrConfig), test.ShouldBeTrue)

		cfg = testConfig(t, dir)
		cfg.CalibrationFile = filepath.Join(dir, "missing.xml")
		_, err = GenerateWarp(context.Background(), cfg, deps, logger)
		test.That(t, err, test.ShouldNotBeNil)

		_, err = GenerateWarp(context.Background(), testConfig(t, dir), Deps{}, logger)
		test.That(t, err, test.ShouldNotBeNil)
	})
}

type commandRecorder struct {
	mu    sync.Mutex
	paths []string
	body  []byte
}

func (cr *commandRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.paths = append(cr.paths, r.URL.Path)
	cr.body = body
}

func testDocument() *warp.CalibrationOutput {
	return &warp.CalibrationOutput{
		FOV:      60,
		Up:       mgl32.Vec3{0, 1, 0},
		LookAt:   mgl32.Vec3{0, 2, 1},
		WarpResX: 1,
		WarpResY: 2,
		Warp:     [][2]float32{{0.25, 0.5}, {0.75, 0.5}},
	}
}

func TestDeliverCalibration(t *testing.T) {
	logger := logging.NewTestLogger(t)
	doc := testDocument()
	expected, err := doc.MarshalIndent()
	test.That(t, err, test.ShouldBeNil)

	t.Run("stdout", func(t *testing.T) {
		var stdout bytes.Buffer
		err := DeliverCalibration(context.Background(), doc, config.Default(), Deps{Stdout: &stdout}, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, stdout.Bytes(), test.ShouldResemble, expected)
	})

	t.Run("post, projector and file", func(t *testing.T) {
		recorder := &commandRecorder{}
		server := httptest.NewServer(recorder)
		defer server.Close()

		cfg := config.Default()
		cfg.Warp.PostToURL = server.URL + "/calibrations"
		cfg.Warp.Output = filepath.Join(t.TempDir(), "warp.json")
		var stdout bytes.Buffer
		deps := Deps{Control: control.NewClient(server.URL, nil), HTTPClient: server.Client(), Stdout: &stdout}

		test.That(t, DeliverCalibration(context.Background(), doc, cfg, deps, logger), test.ShouldBeNil)
		test.That(t, recorder.paths, test.ShouldResemble, []string{"/calibrations", "/set_calibration"})
		test.That(t, recorder.body, test.ShouldResemble, expected)
		test.That(t, stdout.Len(), test.ShouldEqual, 0)

		written, err := warp.ReadCalibrationOutputFile(cfg.Warp.Output)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, written, test.ShouldResemble, doc)
	})

	t.Run("every destination is attempted", func(t *testing.T) {
		recorder := &commandRecorder{}
		server := httptest.NewServer(recorder)
		defer server.Close()

		cfg := config.Default()
		cfg.Warp.PostToURL = "http://127.0.0.1:1/unreachable"
		cfg.Warp.Output = filepath.Join(t.TempDir(), "missing", "warp.json")
		deps := Deps{Control: control.NewClient(server.URL, nil)}

		err := DeliverCalibration(context.Background(), doc, cfg, deps, logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "error writing calibration")
		test.That(t, err.Error(), test.ShouldContainSubstring, "error posting calibration")
		test.That(t, recorder.paths, test.ShouldResemble, []string{"/set_calibration"})
	})
}

func TestPromptDisplay(t *testing.T) {
	logger := logging.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "chessboard.png")

	pd := &PromptDisplay{In: strings.NewReader("\n"), PatternPath: path, Logger: logger}
	test.That(t, pd.ShowPattern(context.Background(), []byte("png")), test.ShouldBeNil)
	written, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(written), test.ShouldEqual, "png")

	pd = &PromptDisplay{In: strings.NewReader(""), Logger: logger}
	test.That(t, pd.ShowPattern(context.Background(), nil), test.ShouldBeNil)

	reader, writer := io.Pipe()
	defer writer.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pd = &PromptDisplay{In: reader, Logger: logger}
	test.That(t, errors.Is(pd.ShowPattern(ctx, nil), context.Canceled), test.ShouldBeTrue)
	// the pending read was released by closing the input
	_, err = writer.Write([]byte("\n"))
	test.That(t, err, test.ShouldBeError, io.ErrClosedPipe)
}

func TestControlDisplay(t *testing.T) {
	recorder := &commandRecorder{}
	server := httptest.NewServer(recorder)
	defer server.Close()

	cd := ControlDisplay{Client: control.NewClient(server.URL, nil)}
	test.That(t, cd.ShowPattern(context.Background(), []byte("png")), test.ShouldBeNil)
	test.That(t, recorder.paths, test.ShouldResemble, []string{"/show_image"})
}

func TestNewDeps(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg := config.Default()
	cfg.Warp.PointsFile = "points.json"
	cfg.Locate.MarkerCornersFile = "corners.json"
	cfg.Camera = "photo.png"

	deps, err := NewWarpDeps(cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps.Points, test.ShouldResemble, detection.PointsFile{Path: "points.json"})
	test.That(t, deps.Control, test.ShouldBeNil)
	_, isPrompt := deps.Display.(*PromptDisplay)
	test.That(t, isPrompt, test.ShouldBeTrue)

	cfg.Warp.PointsFile = ""
	deps, err = NewWarpDeps(cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps.Points, test.ShouldNotBeNil)

	cfg.ControlURL = "http://projector.local:8080"
	deps, err = NewLocateDeps(cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps.Markers, test.ShouldResemble, detection.MarkerCornersFile{Path: "corners.json"})
	test.That(t, deps.Control, test.ShouldNotBeNil)
	_, isControl := deps.Display.(ControlDisplay)
	test.That(t, isControl, test.ShouldBeTrue)
}

func TestLocateCamera(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewTestLogger(t)
	cfg := testConfig(t, dir)
	cfg.Locate.MarkerSize = 0.2
	// a 0.2 marker one unit in front of the camera, facing it
	cfg.Locate.MarkerCornersFile = writeFile(t, dir, "corners.json", `[[[45, 45], [55, 45], [55, 55], [45, 55]]]`)
	deps := Deps{Source: &stillSource{}, Markers: detection.MarkerCornersFile{Path: cfg.Locate.MarkerCornersFile}}

	loc, err := LocateCamera(context.Background(), cfg, deps, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loc.Position.ApproxEqualThreshold(mgl32.Vec3{0, 0, 1}, 1e-4), test.ShouldBeTrue)
	test.That(t, loc.Direction.ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, 1e-4), test.ShouldBeTrue)
	test.That(t, loc.Up.ApproxEqualThreshold(mgl32.Vec3{0, 1, 0}, 1e-4), test.ShouldBeTrue)
	test.That(t, loc.FOV, test.ShouldAlmostEqual, 90, 1e-4)

	var stdout bytes.Buffer
	test.That(t, DeliverLocation(loc, cfg, Deps{Stdout: &stdout}, logger), test.ShouldBeNil)
	printed, err := locator.ReadLocationOutput(&stdout)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, printed, test.ShouldResemble, loc)

	cfg.Locate.Output = filepath.Join(dir, "location.json")
	test.That(t, DeliverLocation(loc, cfg, Deps{}, logger), test.ShouldBeNil)
	written, err := locator.ReadLocationOutputFile(cfg.Locate.Output)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, written.Pose().Position, test.ShouldResemble, loc.Position)
}

func TestLocateCameraErrors(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewTestLogger(t)
	cfg := testConfig(t, dir)
	deps := Deps{Source: &stillSource{}, Markers: detection.MarkerCornersFile{Path: writeFile(t, dir, "none.json", `[]`)}}

	_, err := LocateCamera(context.Background(), cfg, deps, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "marker_size")

	cfg.Locate.MarkerSize = 0.2
	_, err = LocateCamera(context.Background(), cfg, deps, logger)
	test.That(t, errors.Is(err, utils.ErrDetection), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no markers detected")
}
