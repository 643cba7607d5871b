package utils

import (
	"github.com/pkg/errors"
)

var (
	// ErrGeometry is returned when a point cannot be mapped through the scene geometry,
	// e.g. it lies outside the dome, an unprojection is singular, or an eye-space depth is zero.
	ErrGeometry = errors.New("geometry error")
	// ErrInputFormat is returned when a calibration or location document is malformed.
	ErrInputFormat = errors.New("input format error")
	// ErrDetection is returned when pattern corners or markers could not be detected as required.
	ErrDetection = errors.New("detection error")
	// ErrConfig is returned for malformed configuration values.
	ErrConfig = errors.New("config error")
)

// NewGeometryError is used when a geometric mapping fails.
func NewGeometryError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrGeometry, format, args...)
}

// NewInputFormatError is used when an input document has missing or malformed fields.
func NewInputFormatError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInputFormat, format, args...)
}

// NewDetectionError is used when a detector returns an incomplete or ambiguous result.
func NewDetectionError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDetection, format, args...)
}

// NewConfigError is used when a configuration value cannot be parsed.
func NewConfigError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfig, format, args...)
}

// NewConfigValidationError returns an error specifying the config path that failed validation.
func NewConfigValidationError(path string, err error) error {
	return errors.Wrapf(errors.Wrapf(ErrConfig, "%v", err), "error validating %q", path)
}

// NewConfigValidationFieldRequiredError returns an error specifying that a required field is missing.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return NewConfigValidationError(path, errors.Errorf("%q is required", field))
}
