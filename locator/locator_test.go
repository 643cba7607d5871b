package locator

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/aligner/detection"
	"go.viam.com/aligner/utils"
)

func vecAlmostEqual(t *testing.T, got, expected mgl32.Vec3) {
	t.Helper()
	for i := range got {
		test.That(t, got[i], test.ShouldAlmostEqual, expected[i], 1e-5)
	}
}

func TestLocalize(t *testing.T) {
	t.Run("identity rotation", func(t *testing.T) {
		loc := Localize(r3.Vector{}, r3.Vector{Z: -1})
		vecAlmostEqual(t, loc.Position, mgl32.Vec3{0, 0, 1})
		vecAlmostEqual(t, loc.Direction, mgl32.Vec3{0, 0, 1})
		vecAlmostEqual(t, loc.Up, mgl32.Vec3{0, -1, 0})

		again := Localize(r3.Vector{}, r3.Vector{Z: -1})
		test.That(t, again, test.ShouldResemble, loc)
	})

	t.Run("marker facing the camera", func(t *testing.T) {
		loc := Localize(r3.Vector{X: math.Pi}, r3.Vector{Z: 1})
		vecAlmostEqual(t, loc.Position, mgl32.Vec3{0, 0, 1})
		vecAlmostEqual(t, loc.Direction, mgl32.Vec3{0, 0, -1})
		vecAlmostEqual(t, loc.Up, mgl32.Vec3{0, 1, 0})
	})

	t.Run("orientation vectors stay orthonormal", func(t *testing.T) {
		loc := Localize(r3.Vector{X: 2.7, Y: 0.3, Z: -0.2}, r3.Vector{X: 0.1, Y: 0.2, Z: 2})
		test.That(t, loc.Direction.Len(), test.ShouldAlmostEqual, 1, 1e-5)
		test.That(t, loc.Up.Len(), test.ShouldAlmostEqual, 1, 1e-5)
		test.That(t, loc.Direction.Dot(loc.Up), test.ShouldAlmostEqual, 0, 1e-5)
		// the camera distance to the marker is preserved
		test.That(t, loc.Position.Len(), test.ShouldAlmostEqual, math.Sqrt(0.01+0.04+4), 1e-4)
	})
}

func TestLocalizeMarker(t *testing.T) {
	one := &detection.MarkerDetections{
		Corners:            [][]r2.Point{{{X: 1}, {X: 2}, {X: 3}, {X: 4}}},
		RotationVectors:    []r3.Vector{{}},
		TranslationVectors: []r3.Vector{{Z: -1}},
	}
	out, err := LocalizeMarker(one, 62.5)
	test.That(t, err, test.ShouldBeNil)
	vecAlmostEqual(t, out.Position, mgl32.Vec3{0, 0, 1})
	test.That(t, out.FOV, test.ShouldEqual, float32(62.5))

	_, err = LocalizeMarker(&detection.MarkerDetections{}, 60)
	test.That(t, errors.Is(err, utils.ErrDetection), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no markers detected")

	_, err = LocalizeMarker(nil, 60)
	test.That(t, errors.Is(err, utils.ErrDetection), test.ShouldBeTrue)

	two := &detection.MarkerDetections{
		Corners:            append(one.Corners, one.Corners[0]),
		RotationVectors:    []r3.Vector{{}, {}},
		TranslationVectors: []r3.Vector{{Z: 1}, {Z: 1}},
	}
	_, err = LocalizeMarker(two, 60)
	test.That(t, errors.Is(err, utils.ErrDetection), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "multiple markers detected")

	_, err = LocalizeMarker(&detection.MarkerDetections{Corners: one.Corners}, 60)
	test.That(t, errors.Is(err, utils.ErrDetection), test.ShouldBeTrue)
}

func TestLocationOutputDocument(t *testing.T) {
	out := &LocationOutput{
		Position:  mgl32.Vec3{0.5, -1, 2},
		Direction: mgl32.Vec3{0, 0, -1},
		Up:        mgl32.Vec3{0, 1, 0},
		FOV:       45.5,
	}
	doc, err := out.MarshalIndent()
	test.That(t, err, test.ShouldBeNil)
	text := string(doc)
	test.That(t, strings.Index(text, `"position"`), test.ShouldBeLessThan, strings.Index(text, `"direction"`))
	test.That(t, strings.Index(text, `"up"`), test.ShouldBeLessThan, strings.Index(text, `"fov"`))

	back, err := ReadLocationOutput(bytes.NewReader(doc))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back, test.ShouldResemble, out)

	pose := back.Pose()
	test.That(t, pose.Position, test.ShouldResemble, out.Position)
	test.That(t, pose.Direction, test.ShouldResemble, out.Direction)
	test.That(t, pose.Up, test.ShouldResemble, out.Up)

	path := filepath.Join(t.TempDir(), "location.json")
	test.That(t, os.WriteFile(path, doc, 0o600), test.ShouldBeNil)
	fromFile, err := ReadLocationOutputFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fromFile, test.ShouldResemble, out)
}

func TestReadLocationOutputErrors(t *testing.T) {
	for _, tc := range []struct {
		doc     string
		message string
	}{
		{`not json`, "malformed"},
		{`{"position": [0, 0], "direction": [0, 0, 0], "up": [0, 1, 0], "fov": 40}`, `"position" must have 3 components, got 2`},
		{`{"position": [0, 0, 1], "direction": [0, 0, 0, 1], "up": [0, 1, 0], "fov": 40}`, `"direction"`},
		{`{"position": [0, 0, 1], "direction": [0, 0, 0], "fov": 40}`, `"up"`},
		{`{"position": [0, 0, 1], "direction": [0, 0, 0], "up": [0, 1, 0]}`, "fov"},
	} {
		_, err := ReadLocationOutput(strings.NewReader(tc.doc))
		test.That(t, errors.Is(err, utils.ErrInputFormat), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, tc.message)
	}

	_, err := ReadLocationOutputFile(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
