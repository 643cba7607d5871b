package locator

import (
	"encoding/json"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"go.viam.com/aligner/surface"
	"go.viam.com/aligner/utils"
)

// LocationOutput is the camera location document. It can seed the physical camera pose of a
// later warp run.
type LocationOutput struct {
	Position  mgl32.Vec3 `json:"position" jsonschema:"description=camera position in scene space"`
	Direction mgl32.Vec3 `json:"direction" jsonschema:"description=camera view direction"`
	Up        mgl32.Vec3 `json:"up" jsonschema:"description=camera up vector"`
	FOV       float32    `json:"fov" jsonschema:"description=vertical field of view of the camera in degrees"`
}

// Pose converts the location into a physical camera pose. The direction is used as the
// look-at point.
func (loc *LocationOutput) Pose() surface.PhysicalCameraPose {
	return surface.PhysicalCameraPose{
		Position:  loc.Position,
		Direction: loc.Direction,
		Up:        loc.Up,
	}
}

// MarshalIndent renders the document as pretty-printed JSON with a trailing newline.
func (loc *LocationOutput) MarshalIndent() ([]byte, error) {
	out, err := json.MarshalIndent(loc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// locationDocument accepts vectors of any length so that the length can be reported.
type locationDocument struct {
	Position  []float32 `json:"position"`
	Direction []float32 `json:"direction"`
	Up        []float32 `json:"up"`
	FOV       *float32  `json:"fov"`
}

// ReadLocationOutput decodes a location document. Each vector must have exactly 3 components.
func ReadLocationOutput(r io.Reader) (*LocationOutput, error) {
	var doc locationDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, utils.NewInputFormatError("malformed camera location: %v", err)
	}
	out := &LocationOutput{}
	for _, field := range []struct {
		name  string
		value []float32
		dst   *mgl32.Vec3
	}{
		{"position", doc.Position, &out.Position},
		{"direction", doc.Direction, &out.Direction},
		{"up", doc.Up, &out.Up},
	} {
		if len(field.value) != 3 {
			return nil, utils.NewInputFormatError("camera location %q must have 3 components, got %d",
				field.name, len(field.value))
		}
		copy(field.dst[:], field.value)
	}
	if doc.FOV == nil {
		return nil, utils.NewInputFormatError("camera location is missing \"fov\"")
	}
	out.FOV = *doc.FOV
	return out, nil
}

// ReadLocationOutputFile decodes a location document from a file.
func ReadLocationOutputFile(path string) (*LocationOutput, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening camera location")
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	out, err := ReadLocationOutput(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	return out, nil
}
