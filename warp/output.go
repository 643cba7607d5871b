package warp

import (
	"encoding/json"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"go.viam.com/aligner/spatialmath"
	"go.viam.com/aligner/utils"
)

// PatternSize is the number of interior corners of the chessboard along each axis.
type PatternSize struct {
	Width  int
	Height int
}

// CalibrationOutput is the calibration document consumed by the renderer.
type CalibrationOutput struct {
	FOV      float32      `json:"fov" jsonschema:"description=vertical field of view of the virtual camera in degrees"`
	Eye      mgl32.Vec3   `json:"eye" jsonschema:"description=virtual camera position"`
	LookAt   mgl32.Vec3   `json:"lookAt" jsonschema:"description=point the virtual camera looks at"`
	Up       mgl32.Vec3   `json:"up" jsonschema:"description=virtual camera up vector"`
	WarpResX int          `json:"warpResX" jsonschema:"description=pattern corners per row"`
	WarpResY int          `json:"warpResY" jsonschema:"description=pattern rows"`
	Warp     [][2]float32 `json:"warp" jsonschema:"description=UV of each pattern corner in row-major order"`
}

// NewCalibrationOutput assembles the calibration document, checking that the warp covers the
// pattern grid and holds only finite values.
func NewCalibrationOutput(cam *FramedCamera, patternSize PatternSize, uvs [][2]float32) (*CalibrationOutput, error) {
	if cam == nil {
		return nil, errors.New("virtual camera has not been framed")
	}
	if patternSize.Width <= 0 || patternSize.Height <= 0 {
		return nil, utils.NewGeometryError("warp grid %dx%d must be positive", patternSize.Width, patternSize.Height)
	}
	if expected := patternSize.Width * patternSize.Height; len(uvs) != expected {
		return nil, utils.NewGeometryError("warp has %d entries, expected %dx%d = %d",
			len(uvs), patternSize.Width, patternSize.Height, expected)
	}
	if !spatialmath.IsFinite(cam.FOV) {
		return nil, utils.NewGeometryError("virtual camera field of view %v is not finite", cam.FOV)
	}
	for i, uv := range uvs {
		if !spatialmath.IsFinite(uv[0], uv[1]) {
			return nil, utils.NewGeometryError("warp entry %d (%v, %v) is not finite", i, uv[0], uv[1])
		}
	}
	return &CalibrationOutput{
		FOV:      cam.FOV,
		Eye:      cam.Eye,
		LookAt:   cam.LookAt,
		Up:       cam.Up,
		WarpResX: patternSize.Width,
		WarpResY: patternSize.Height,
		Warp:     uvs,
	}, nil
}

// MarshalIndent renders the document as pretty-printed JSON with a trailing newline.
func (co *CalibrationOutput) MarshalIndent() ([]byte, error) {
	out, err := json.MarshalIndent(co, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// ReadCalibrationOutput decodes a calibration document.
func ReadCalibrationOutput(r io.Reader) (*CalibrationOutput, error) {
	var co CalibrationOutput
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&co); err != nil {
		return nil, utils.NewInputFormatError("malformed calibration document: %v", err)
	}
	if co.WarpResX <= 0 || co.WarpResY <= 0 {
		return nil, utils.NewInputFormatError("warp grid %dx%d must be positive", co.WarpResX, co.WarpResY)
	}
	if len(co.Warp) != co.WarpResX*co.WarpResY {
		return nil, utils.NewInputFormatError("warp has %d entries, expected %dx%d",
			len(co.Warp), co.WarpResX, co.WarpResY)
	}
	return &co, nil
}

// ReadCalibrationOutputFile decodes a calibration document from a file.
func ReadCalibrationOutputFile(path string) (*CalibrationOutput, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening calibration document")
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	return ReadCalibrationOutput(f)
}
