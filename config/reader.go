package config

import (
	"io"
	"os"
	"reflect"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"

	"go.viam.com/aligner/logging"
	"go.viam.com/aligner/utils"
)

// Read reads a configuration file, applying its values on top of the defaults.
func Read(path string, logger logging.Logger) (*Config, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open config %q", path)
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	return FromReader(path, f, logger)
}

// FromReader reads a configuration from r. The document is JSON5, so comments and trailing
// commas are allowed. originalPath is only used in messages.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	var raw map[string]interface{}
	if err := json5.NewDecoder(r).Decode(&raw); err != nil {
		return nil, utils.NewConfigError("failed to decode config %q: %v", originalPath, err)
	}

	cfg := Default()
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   cfg,
		Metadata: &md,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToResolutionHook,
			stringToVec3Hook,
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, utils.NewConfigError("invalid config %q: %v", originalPath, err)
	}
	for _, key := range md.Unused {
		logger.Warnw("ignoring unknown config key", "path", originalPath, "key", key)
	}
	return cfg, nil
}

var (
	resolutionType = reflect.TypeOf(Resolution{})
	vec3Type       = reflect.TypeOf(mgl32.Vec3{})
)

func stringToResolutionHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != resolutionType {
		return data, nil
	}
	return ParseResolution(data.(string))
}

func stringToVec3Hook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != vec3Type {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return ParseVec3(v)
	case []interface{}:
		if len(v) != 3 {
			return nil, utils.NewConfigError("vector must have exactly 3 components, got %d", len(v))
		}
	}
	return data, nil
}
