package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"go.viam.com/aligner/utils"
)

var resolutionRegexp = regexp.MustCompile(`^(\d+)x(\d+)$`)

// Resolution is a width by height pair written as "WxH". It is used both for pixel resolutions
// and for chessboard corner counts.
type Resolution struct {
	Width  int
	Height int
}

// ParseResolution parses "WxH" where both parts are positive integers.
func ParseResolution(s string) (Resolution, error) {
	m := resolutionRegexp.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Resolution{}, utils.NewConfigError("%q is not a resolution of the form WIDTHxHEIGHT", s)
	}
	w, errW := strconv.Atoi(m[1])
	h, errH := strconv.Atoi(m[2])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Resolution{}, utils.NewConfigError("resolution %q must have positive width and height", s)
	}
	return Resolution{Width: w, Height: h}, nil
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Aspect is width divided by height.
func (r Resolution) Aspect() float32 {
	return float32(r.Width) / float32(r.Height)
}

// MarshalText implements encoding.TextMarshaler.
func (r Resolution) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Resolution) UnmarshalText(text []byte) error {
	parsed, err := ParseResolution(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseVec3 parses "x,y,z". Exactly three comma separated numbers are required.
func ParseVec3(s string) (mgl32.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mgl32.Vec3{}, utils.NewConfigError("%q must have exactly 3 comma separated components, got %d", s, len(parts))
	}
	var v mgl32.Vec3
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return mgl32.Vec3{}, utils.NewConfigError("component %d of %q is not a number", i, s)
		}
		v[i] = float32(f)
	}
	return v, nil
}

// FormatVec3 is the inverse of ParseVec3.
func FormatVec3(v mgl32.Vec3) string {
	return strings.Join([]string{
		strconv.FormatFloat(float64(v[0]), 'g', -1, 32),
		strconv.FormatFloat(float64(v[1]), 'g', -1, 32),
		strconv.FormatFloat(float64(v[2]), 'g', -1, 32),
	}, ",")
}
