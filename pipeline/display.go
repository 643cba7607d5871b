package pipeline

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/pkg/errors"

	"go.viam.com/aligner/control"
	"go.viam.com/aligner/logging"
)

// Display puts the calibration pattern in front of the physical camera.
type Display interface {
	ShowPattern(ctx context.Context, png []byte) error
}

// ControlDisplay shows the pattern full screen through the projector's control endpoint.
type ControlDisplay struct {
	Client *control.Client
}

// ShowPattern implements Display.
func (cd ControlDisplay) ShowPattern(ctx context.Context, png []byte) error {
	return cd.Client.ShowImage(ctx, png, "png")
}

// PromptDisplay asks the operator to show the pattern and waits for a line on In. When
// PatternPath is set the pattern is written there first. If the wait is cancelled and In is an
// io.Closer, In is closed so the pending read returns.
type PromptDisplay struct {
	In          io.Reader
	PatternPath string
	Logger      logging.Logger
}

// ShowPattern implements Display.
func (pd *PromptDisplay) ShowPattern(ctx context.Context, png []byte) error {
	if pd.PatternPath != "" {
		if err := os.WriteFile(pd.PatternPath, png, 0o600); err != nil {
			return errors.Wrap(err, "error writing chessboard pattern")
		}
		pd.Logger.Infow("chessboard pattern written", "path", pd.PatternPath)
	}
	pd.Logger.Info("Please display the full-screen chessboard pattern on the projector and press Enter")

	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(pd.In).ReadString('\n')
		done <- err
	}()
	select {
	case <-ctx.Done():
		if closer, ok := pd.In.(io.Closer); ok {
			//nolint:errcheck
			closer.Close()
		}
		return ctx.Err()
	case err := <-done:
		// a closed input counts as confirmation
		if err != nil && !errors.Is(err, io.EOF) {
			return errors.Wrap(err, "error waiting for the operator")
		}
	}
	pd.Logger.Info("Continuing...")
	return nil
}
