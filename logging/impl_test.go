package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Debugw("framing", "points", 9)
	logger.Warnf("uv %d off screen", 3)

	test.That(t, logs.Len(), test.ShouldEqual, 2)
	test.That(t, logs.FilterLevelExact(zapcore.WarnLevel).Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("uv 3 off screen").Len(), test.ShouldEqual, 1)

	entry := logs.FilterMessage("framing").All()[0]
	test.That(t, entry.ContextMap()["points"], test.ShouldEqual, int64(9))
}

func TestSublogger(t *testing.T) {
	logger := NewDebugLogger("aligner")
	sub := logger.Sublogger("warp")
	test.That(t, sub.(*impl).name, test.ShouldEqual, "aligner.warp")

	sub.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)

	blank := NewBlankLogger("")
	test.That(t, blank.Sublogger("x").(*impl).name, test.ShouldEqual, "x")
	test.That(t, blank.Sync(), test.ShouldBeNil)
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{" warn ", WARN},
		{"warning", WARN},
		{"Error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
		test.That(t, levelFromZap(level.AsZap()), test.ShouldEqual, tc.expected)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "loud")
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aligner.log")
	logger, closer := NewFileLogger("aligner", path)
	defer func() {
		test.That(t, closer.Close(), test.ShouldBeNil)
	}()

	logger.Debug("hidden")
	logger.Infow("wrote warp", "corners", 6)
	logger.SetLevel(DEBUG)
	logger.Sublogger("warp").Debug("framing")
	test.That(t, logger.Sync(), test.ShouldBeNil)

	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
	test.That(t, len(lines), test.ShouldEqual, 2)

	var entry map[string]interface{}
	test.That(t, json.Unmarshal([]byte(lines[0]), &entry), test.ShouldBeNil)
	test.That(t, entry["msg"], test.ShouldEqual, "wrote warp")
	test.That(t, entry["level"], test.ShouldEqual, "INFO")
	test.That(t, entry["logger"], test.ShouldEqual, "aligner")
	test.That(t, entry["corners"], test.ShouldEqual, 6.0)

	test.That(t, json.Unmarshal([]byte(lines[1]), &entry), test.ShouldBeNil)
	test.That(t, entry["logger"], test.ShouldEqual, "aligner.warp")
}
