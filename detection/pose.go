package detection

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/aligner/rimage/transform"
	"go.viam.com/aligner/spatialmath"
	"go.viam.com/aligner/utils"
)

// MarkerObjectPoints are the marker corners in the marker's own frame, matching the corner order
// of MarkerDetections: x to the right, y up, z out of the marker.
func MarkerObjectPoints(markerSize float64) []r3.Vector {
	h := markerSize / 2
	return []r3.Vector{
		{X: -h, Y: h},
		{X: h, Y: h},
		{X: h, Y: -h},
		{X: -h, Y: -h},
	}
}

// EstimateMarkerPose recovers the marker's rotation and translation in the camera frame from its
// four image corners. The corners are undistorted, a plane homography is solved from them, and
// the rotation is projected onto the nearest orthonormal matrix.
func EstimateMarkerPose(
	corners []r2.Point,
	intrinsics *transform.CameraIntrinsics,
	markerSize float64,
) (rvec, tvec r3.Vector, err error) {
	if len(corners) != 4 {
		return r3.Vector{}, r3.Vector{}, utils.NewDetectionError("a marker has 4 corners, got %d", len(corners))
	}
	if markerSize <= 0 {
		return r3.Vector{}, r3.Vector{}, utils.NewConfigError("marker size must be positive, got %v", markerSize)
	}
	if intrinsics == nil {
		return r3.Vector{}, r3.Vector{}, errors.New("marker pose estimation needs camera intrinsics")
	}

	object := MarkerObjectPoints(markerSize)
	normalized := make([]r2.Point, len(corners))
	for i, c := range corners {
		if normalized[i], err = intrinsics.UndistortNormalized(c); err != nil {
			return r3.Vector{}, r3.Vector{}, err
		}
	}

	h, err := planeHomography(object, normalized)
	if err != nil {
		return r3.Vector{}, r3.Vector{}, err
	}

	h1 := r3.Vector{X: h.At(0, 0), Y: h.At(1, 0), Z: h.At(2, 0)}
	h2 := r3.Vector{X: h.At(0, 1), Y: h.At(1, 1), Z: h.At(2, 1)}
	h3 := r3.Vector{X: h.At(0, 2), Y: h.At(1, 2), Z: h.At(2, 2)}
	scale := 2 / (h1.Norm() + h2.Norm())
	c1, c2, t := h1.Mul(scale), h2.Mul(scale), h3.Mul(scale)
	// the homography is only known up to sign; the marker is in front of the camera
	if t.Z < 0 {
		c1, c2, t = c1.Mul(-1), c2.Mul(-1), t.Mul(-1)
	}
	c3 := c1.Cross(c2)

	rot := mat.NewDense(3, 3, []float64{
		c1.X, c2.X, c3.X,
		c1.Y, c2.Y, c3.Y,
		c1.Z, c2.Z, c3.Z,
	})
	rot, err = nearestRotation(rot)
	if err != nil {
		return r3.Vector{}, r3.Vector{}, err
	}
	return spatialmath.RotationVector(rot), t, nil
}

// planeHomography solves H with image ~ H·(X, Y, 1) by the direct linear transform. The
// solution is the right singular vector of the smallest singular value.
func planeHomography(object []r3.Vector, image []r2.Point) (*mat.Dense, error) {
	a := mat.NewDense(2*len(object), 9, nil)
	for i := range object {
		bigX, bigY := object[i].X, object[i].Y
		x, y := image[i].X, image[i].Y
		a.SetRow(2*i, []float64{bigX, bigY, 1, 0, 0, 0, -x * bigX, -x * bigY, -x})
		a.SetRow(2*i+1, []float64{0, 0, 0, bigX, bigY, 1, -y * bigX, -y * bigY, -y})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, utils.NewDetectionError("failed to factorize the marker homography")
	}
	const rcond = 1e-12
	if rank := svd.Rank(rcond); rank < 8 {
		return nil, utils.NewDetectionError("marker corners are degenerate (rank %d)", rank)
	}
	var v mat.Dense
	svd.VTo(&v)
	h := mat.NewDense(3, 3, mat.Col(nil, 8, &v))
	// a plane seen edge-on or collinear corners give a singular homography
	if det := mat.Det(h) / math.Pow(mat.Norm(h, 2), 3); math.Abs(det) < 1e-9 {
		return nil, utils.NewDetectionError("marker corners are degenerate")
	}
	return h, nil
}

// nearestRotation returns U·Vᵀ from the SVD of m, the closest rotation in the Frobenius norm.
func nearestRotation(m mat.Matrix) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, utils.NewDetectionError("failed to orthonormalize the marker rotation")
	}
	var u, v, rot mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	rot.Mul(&u, v.T())
	if mat.Det(&rot) < 0 {
		// reflect through the smallest singular direction
		for r := 0; r < 3; r++ {
			u.Set(r, 2, -u.At(r, 2))
		}
		rot.Mul(&u, v.T())
	}
	if d := mat.Det(&rot); math.Abs(d-1) > 1e-6 {
		return nil, utils.NewDetectionError("marker rotation is not orthonormal (det %v)", d)
	}
	return &rot, nil
}
