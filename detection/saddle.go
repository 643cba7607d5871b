package detection

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/aligner/utils"
)

// SaddleConfiguration tunes the saddle point chessboard detector.
type SaddleConfiguration struct {
	// Sigma of the Gaussian blur applied before differentiating.
	BlurSigma float64 `json:"blur_sigma"`
	// Fraction of the strongest saddle score a point needs to be a candidate.
	RelativeThreshold float64 `json:"relative_threshold"`
	// Half size of the non-maximum suppression window in pixels.
	NMSWindowSize int `json:"win_size"`
}

// DefaultSaddleConf works for the generated pattern photographed at moderate resolution.
var DefaultSaddleConf = SaddleConfiguration{
	BlurSigma:         2,
	RelativeThreshold: 0.1,
	NMSWindowSize:     10,
}

var (
	sobelX = [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	sobelY = [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
)

// SaddleDetector finds chessboard corners in Go as saddle points of the image intensity, where
// the determinant of the Hessian is negative. Corners are returned row by row from the top,
// left to right, so the board must be roughly upright in the photo.
type SaddleDetector struct {
	Config SaddleConfiguration
}

// NewSaddleDetector returns a detector using DefaultSaddleConf.
func NewSaddleDetector() *SaddleDetector {
	return &SaddleDetector{Config: DefaultSaddleConf}
}

// DetectPoints implements PointDetector.
func (sd *SaddleDetector) DetectPoints(ctx context.Context, img image.Image, patternW, patternH int) ([]r2.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := patternW * patternH
	if n <= 0 {
		return nil, utils.NewConfigError("pattern size %dx%d must be positive", patternW, patternH)
	}

	scores := saddleScores(luminance(imaging.Blur(img, sd.Config.BlurSigma)))
	candidates := suppressNonMaxima(scores, sd.Config.NMSWindowSize, sd.Config.RelativeThreshold)
	if len(candidates) < n {
		return nil, utils.NewDetectionError("no chessboard found: %d saddle points, expected %dx%d = %d",
			len(candidates), patternW, patternH, n)
	}
	corners := make([]r2.Point, n)
	for i, c := range candidates[:n] {
		corners[i] = refineSaddle(scores, c)
	}
	return orderGrid(corners, patternW, patternH), nil
}

func luminance(img *image.NRGBA) *mat.Dense {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	out := mat.NewDense(b.Dy(), b.Dx(), nil)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(y, x, float64(gray.Pix[y*gray.Stride+x*4]))
		}
	}
	return out
}

// convolve3 applies a 3x3 kernel, repeating the border pixels.
func convolve3(src *mat.Dense, kernel [3][3]float64) *mat.Dense {
	h, w := src.Dims()
	clamp := func(v, hi int) int {
		return min(max(v, 0), hi-1)
	}
	out := mat.NewDense(h, w, nil)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			var sum float64
			for ki := -1; ki <= 1; ki++ {
				for kj := -1; kj <= 1; kj++ {
					sum += kernel[ki+1][kj+1] * src.At(clamp(i+ki, h), clamp(j+kj, w))
				}
			}
			out.Set(i, j, sum)
		}
	}
	return out
}

// saddleScores is the negated Hessian determinant, clipped at zero.
func saddleScores(img *mat.Dense) *mat.Dense {
	gX := convolve3(img, sobelX)
	gY := convolve3(img, sobelY)
	gXX := convolve3(gX, sobelX)
	gYY := convolve3(gY, sobelY)
	gXY := convolve3(gX, sobelY)

	h, w := img.Dims()
	var m1, m2 mat.Dense
	m1.MulElem(gXX, gYY)
	m2.MulElem(gXY, gXY)
	out := mat.NewDense(h, w, nil)
	out.Sub(&m2, &m1)
	out.Apply(func(_, _ int, v float64) float64 {
		return math.Max(0, v)
	}, out)
	return out
}

type saddle struct {
	row, col int
	score    float64
}

// suppressNonMaxima returns the local maxima above threshold·max, strongest first, no two closer
// than win pixels on either axis.
func suppressNonMaxima(scores *mat.Dense, win int, threshold float64) []saddle {
	h, w := scores.Dims()
	floor := threshold * mat.Max(scores)
	if floor <= 0 {
		return nil
	}
	var maxima []saddle
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			v := scores.At(i, j)
			if v < floor {
				continue
			}
			cell := scores.Slice(max(0, i-win), min(h, i+win+1), max(0, j-win), min(w, j+win+1))
			if mat.Max(cell) == v {
				maxima = append(maxima, saddle{row: i, col: j, score: v})
			}
		}
	}
	sort.SliceStable(maxima, func(a, b int) bool { return maxima[a].score > maxima[b].score })

	var kept []saddle
	for _, m := range maxima {
		near := false
		for _, k := range kept {
			if abs(m.row-k.row) <= win && abs(m.col-k.col) <= win {
				near = true
				break
			}
		}
		if !near {
			kept = append(kept, m)
		}
	}
	return kept
}

// refineSaddle fits a parabola through the score on each axis.
func refineSaddle(scores *mat.Dense, s saddle) r2.Point {
	h, w := scores.Dims()
	offset := func(prev, mid, next float64) float64 {
		denom := prev - 2*mid + next
		if denom == 0 {
			return 0
		}
		return math.Max(-0.5, math.Min(0.5, (prev-next)/(2*denom)))
	}
	p := r2.Point{X: float64(s.col), Y: float64(s.row)}
	if s.col > 0 && s.col < w-1 {
		p.X += offset(scores.At(s.row, s.col-1), s.score, scores.At(s.row, s.col+1))
	}
	if s.row > 0 && s.row < h-1 {
		p.Y += offset(scores.At(s.row-1, s.col), s.score, scores.At(s.row+1, s.col))
	}
	return p
}

// orderGrid sorts corners into rows top to bottom, each left to right.
func orderGrid(corners []r2.Point, patternW, patternH int) []r2.Point {
	sort.SliceStable(corners, func(a, b int) bool { return corners[a].Y < corners[b].Y })
	for row := 0; row < patternH; row++ {
		line := corners[row*patternW : (row+1)*patternW]
		sort.SliceStable(line, func(a, b int) bool { return line[a].X < line[b].X })
	}
	return corners
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
