package transform

import (
	"go.viam.com/aligner/utils"
)

// DistortionType is the name of the distortion model.
type DistortionType string

const (
	// BrownConradyDistortionType is for simple lenses of narrow field easily modeled as a pinhole camera.
	BrownConradyDistortionType = DistortionType("brown_conrady")
	// RationalPolynomialDistortionType is OpenCV's rational model with optional thin prism terms.
	RationalPolynomialDistortionType = DistortionType("rational_polynomial")
)

// maxDistortionCoefficients is the longest coefficient vector OpenCV writes.
const maxDistortionCoefficients = 14

// NewDistorter picks the model for OpenCV distortion coefficients k1 k2 p1 p2 [k3 [k4 k5 k6
// [s1 s2 s3 s4 [τx τy]]]]. Vectors with nothing beyond k3 give a BrownConrady. A tilted sensor
// (nonzero τx or τy) has no Go model.
func NewDistorter(coeffs []float64) (Distorter, error) {
	if len(coeffs) > maxDistortionCoefficients {
		return nil, utils.NewInputFormatError(
			"expected at most %d distortion coefficients, got %d", maxDistortionCoefficients, len(coeffs))
	}
	if allZero(tail(coeffs, 5)) {
		bc, err := NewBrownConrady(coeffs)
		if err != nil {
			return nil, err
		}
		return bc, nil
	}
	if !allZero(tail(coeffs, 12)) {
		return nil, utils.NewInputFormatError("tilted sensor distortion (τx, τy) needs a build with -tags withcv")
	}
	padded := make([]float64, 12)
	copy(padded, coeffs)
	return &RationalPolynomial{
		K: [6]float64{padded[0], padded[1], padded[4], padded[5], padded[6], padded[7]},
		P: [2]float64{padded[2], padded[3]},
		S: [4]float64{padded[8], padded[9], padded[10], padded[11]},
	}, nil
}

func tail(coeffs []float64, from int) []float64 {
	if len(coeffs) <= from {
		return nil
	}
	return coeffs[from:]
}

func allZero(coeffs []float64) bool {
	for _, c := range coeffs {
		if c != 0 {
			return false
		}
	}
	return true
}

// Distorter defines a Transform that takes undistorted normalized coordinates and distorts them
// according to the model, and an Invert that undoes it.
type Distorter interface {
	ModelType() DistortionType
	Parameters() []float64
	Transform(x, y float64) (float64, float64)
	Invert(x, y float64) (float64, float64)
}

// BrownConrady is the radial and tangential lens distortion model used by OpenCV, parameterised
// in OpenCV's coefficient order k1, k2, p1, p2, k3.
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
	RadialK3     float64 `json:"rk3"`
}

// NewBrownConrady takes OpenCV distortion coefficients in order. Missing trailing values are
// zero; coefficients beyond k3 belong to models this type does not represent.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	if len(inp) > 5 {
		for _, extra := range inp[5:] {
			if extra != 0 {
				return nil, utils.NewInputFormatError(
					"expected at most 5 nonzero distortion coefficients (k1 k2 p1 p2 k3), got %d", len(inp))
			}
		}
		inp = inp[:5]
	}
	padded := make([]float64, 5)
	copy(padded, inp)
	return &BrownConrady{padded[0], padded[1], padded[2], padded[3], padded[4]}, nil
}

// ModelType returns the type of distortion model.
func (bc *BrownConrady) ModelType() DistortionType {
	return BrownConradyDistortionType
}

// Parameters returns the coefficients in OpenCV order.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.TangentialP1, bc.TangentialP2, bc.RadialK3}
}

// Transform distorts normalized image coordinates.
//
//	x_d = x * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x*y + p2*(r² + 2*x²)
//	y_d = y * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p2*x*y + p1*(r² + 2*y²)
func (bc *BrownConrady) Transform(x, y float64) (float64, float64) {
	if bc == nil {
		return x, y
	}
	r2 := x*x + y*y
	radDist := 1.0 + r2*(bc.RadialK1+r2*(bc.RadialK2+r2*bc.RadialK3))
	xd := x*radDist + 2.0*bc.TangentialP1*x*y + bc.TangentialP2*(r2+2.0*x*x)
	yd := y*radDist + 2.0*bc.TangentialP2*x*y + bc.TangentialP1*(r2+2.0*y*y)
	return xd, yd
}

// Invert finds the undistorted normalized coordinates that Transform maps to (xd, yd),
// using Newton-Raphson starting from the distorted point.
func (bc *BrownConrady) Invert(xd, yd float64) (float64, float64) {
	if bc == nil {
		return xd, yd
	}
	xu, yu := xd, yd

	const maxIterations = 20
	const tolerance = 1e-10

	for i := 0; i < maxIterations; i++ {
		r2 := xu*xu + yu*yu
		r4 := r2 * r2

		xdEst, ydEst := bc.Transform(xu, yu)
		errX := xdEst - xd
		errY := ydEst - yd
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}

		radDist := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r4*r2
		dRad := bc.RadialK1 + 2.0*bc.RadialK2*r2 + 3.0*bc.RadialK3*r4
		dRadDx := 2.0 * xu * dRad
		dRadDy := 2.0 * yu * dRad

		dxdDx := radDist + xu*dRadDx + 2.0*bc.TangentialP1*yu + 6.0*bc.TangentialP2*xu
		dxdDy := xu*dRadDy + 2.0*bc.TangentialP1*xu + 2.0*bc.TangentialP2*yu
		dydDx := yu*dRadDx + 2.0*bc.TangentialP2*yu + 2.0*bc.TangentialP1*xu
		dydDy := radDist + yu*dRadDy + 2.0*bc.TangentialP2*xu + 6.0*bc.TangentialP1*yu

		det := dxdDx*dydDy - dxdDy*dydDx
		if det == 0 {
			break
		}
		xu -= (dydDy*errX - dxdDy*errY) / det
		yu -= (-dydDx*errX + dxdDx*errY) / det
	}
	return xu, yu
}

// RationalPolynomial is OpenCV's rational lens model. K holds k1 to k6, P the tangential terms
// and S the thin prism terms.
//
//	radial = (1 + k1*r² + k2*r⁴ + k3*r⁶) / (1 + k4*r² + k5*r⁴ + k6*r⁶)
//	x_d = x*radial + 2*p1*x*y + p2*(r² + 2*x²) + s1*r² + s2*r⁴
//	y_d = y*radial + p1*(r² + 2*y²) + 2*p2*x*y + s3*r² + s4*r⁴
type RationalPolynomial struct {
	K [6]float64 `json:"k"`
	P [2]float64 `json:"p"`
	S [4]float64 `json:"s"`
}

// ModelType returns the type of distortion model.
func (rp *RationalPolynomial) ModelType() DistortionType {
	return RationalPolynomialDistortionType
}

// Parameters returns the twelve coefficients in OpenCV order.
func (rp *RationalPolynomial) Parameters() []float64 {
	return []float64{
		rp.K[0], rp.K[1], rp.P[0], rp.P[1], rp.K[2], rp.K[3], rp.K[4], rp.K[5],
		rp.S[0], rp.S[1], rp.S[2], rp.S[3],
	}
}

func (rp *RationalPolynomial) radial(r2 float64) float64 {
	num := 1 + r2*(rp.K[0]+r2*(rp.K[1]+r2*rp.K[2]))
	den := 1 + r2*(rp.K[3]+r2*(rp.K[4]+r2*rp.K[5]))
	return num / den
}

func (rp *RationalPolynomial) delta(x, y, r2 float64) (float64, float64) {
	dx := 2*rp.P[0]*x*y + rp.P[1]*(r2+2*x*x) + rp.S[0]*r2 + rp.S[1]*r2*r2
	dy := rp.P[0]*(r2+2*y*y) + 2*rp.P[1]*x*y + rp.S[2]*r2 + rp.S[3]*r2*r2
	return dx, dy
}

// Transform distorts normalized image coordinates.
func (rp *RationalPolynomial) Transform(x, y float64) (float64, float64) {
	r2 := x*x + y*y
	dx, dy := rp.delta(x, y, r2)
	radial := rp.radial(r2)
	return x*radial + dx, y*radial + dy
}

// Invert undoes Transform by fixed point iteration, the way cv::undistortPoints does.
func (rp *RationalPolynomial) Invert(xd, yd float64) (float64, float64) {
	const maxIterations = 50
	const tolerance = 1e-10

	x, y := xd, yd
	for i := 0; i < maxIterations; i++ {
		r2 := x*x + y*y
		radial := rp.radial(r2)
		if radial == 0 {
			break
		}
		dx, dy := rp.delta(x, y, r2)
		nx, ny := (xd-dx)/radial, (yd-dy)/radial
		done := (nx-x)*(nx-x)+(ny-y)*(ny-y) < tolerance*tolerance
		x, y = nx, ny
		if done {
			break
		}
	}
	return x, y
}
