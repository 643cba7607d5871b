package transform

import (
	"encoding/xml"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/aligner/utils"
)

// opencvStorage mirrors the parts of an OpenCV FileStorage document written by camera calibration.
type opencvStorage struct {
	XMLName                xml.Name      `xml:"opencv_storage"`
	CameraMatrix           *opencvMatrix `xml:"camera_matrix"`
	DistortionCoefficients *opencvMatrix `xml:"distortion_coefficients"`
	ImageWidth             string        `xml:"image_width"`
	ImageHeight            string        `xml:"image_height"`
}

type opencvMatrix struct {
	Rows string `xml:"rows"`
	Cols string `xml:"cols"`
	Data string `xml:"data"`
}

func (m *opencvMatrix) floats(name string) ([]float64, error) {
	fields := strings.Fields(m.Data)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, utils.NewInputFormatError("%s/data: %q is not a number", name, f)
		}
		out = append(out, v)
	}
	return out, nil
}

// NewCameraIntrinsicsFromXMLFile loads intrinsics from an OpenCV calibration XML file.
func NewCameraIntrinsicsFromXMLFile(path string) (*CameraIntrinsics, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening calibration file")
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	ci, err := ParseCameraIntrinsicsXML(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading %q", path)
	}
	return ci, nil
}

// ParseCameraIntrinsicsXML reads camera_matrix/data (9 values, row-major),
// distortion_coefficients/data, image_height and image_width. When image_width is absent it is
// taken as twice the principal point x.
func ParseCameraIntrinsicsXML(r io.Reader) (*CameraIntrinsics, error) {
	var doc opencvStorage
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, utils.NewInputFormatError("malformed calibration XML: %v", err)
	}

	if doc.CameraMatrix == nil {
		return nil, utils.NewInputFormatError("can't find camera_matrix element")
	}
	values, err := doc.CameraMatrix.floats("camera_matrix")
	if err != nil {
		return nil, err
	}
	if len(values) != 9 {
		return nil, utils.NewInputFormatError("camera_matrix/data must have 9 values, got %d", len(values))
	}
	var matrix [9]float64
	copy(matrix[:], values)

	if doc.DistortionCoefficients == nil {
		return nil, utils.NewInputFormatError("can't find distortion_coefficients element")
	}
	distortion, err := doc.DistortionCoefficients.floats("distortion_coefficients")
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(doc.ImageHeight) == "" {
		return nil, utils.NewInputFormatError("can't find image_height element")
	}
	height, err := strconv.Atoi(strings.TrimSpace(doc.ImageHeight))
	if err != nil {
		return nil, utils.NewInputFormatError("image_height: %q is not an integer", doc.ImageHeight)
	}

	width := int(math.Round(2 * matrix[2]))
	if s := strings.TrimSpace(doc.ImageWidth); s != "" {
		if width, err = strconv.Atoi(s); err != nil {
			return nil, utils.NewInputFormatError("image_width: %q is not an integer", doc.ImageWidth)
		}
	}

	return NewCameraIntrinsics(matrix, distortion, width, height)
}
