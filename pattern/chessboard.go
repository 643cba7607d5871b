// Package pattern renders the calibration patterns shown on the projector.
package pattern

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"go.viam.com/aligner/utils"
)

// SquareSize is the side of one chessboard square in pixels.
const SquareSize = 50

// Chessboard renders a board with nx by ny interior corners, that is (nx+1) by (ny+1) squares.
// The board is drawn starting with black at the top-left and then inverted, so the displayed
// board has a white top-left square. nx must be odd and ny even so the board has a single
// unambiguous orientation.
func Chessboard(nx, ny int) (*image.NRGBA, error) {
	if nx < 1 || ny < 1 {
		return nil, utils.NewConfigError("chessboard must have at least one interior corner each way, got %dx%d", nx, ny)
	}
	if nx%2 == 0 || ny%2 == 1 {
		return nil, utils.NewConfigError("chessboard width must be odd and height even, got %dx%d", nx, ny)
	}

	board := imaging.New(SquareSize*(nx+1), SquareSize*(ny+1), color.Black)
	white := imaging.New(SquareSize, SquareSize, color.White)
	for i := 0; i <= nx; i++ {
		for j := 0; j <= ny; j++ {
			if (i+j)%2 == 1 {
				board = imaging.Paste(board, white, image.Pt(i*SquareSize, j*SquareSize))
			}
		}
	}
	return imaging.Invert(board), nil
}

// EncodePNG encodes an image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ChessboardPNG renders a chessboard and encodes it as PNG.
func ChessboardPNG(nx, ny int) ([]byte, error) {
	board, err := Chessboard(nx, ny)
	if err != nil {
		return nil, err
	}
	return EncodePNG(board)
}
