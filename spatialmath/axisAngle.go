// Package spatialmath defines the rotation and vector helpers shared by the aligner's geometry.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// See here for a thorough explanation: https://en.wikipedia.org/wiki/Axis%E2%80%93angle_representation
// Basic explanation: Imagine a 3d cartesian grid centered at 0,0,0, and a sphere of radius 1 centered at
// that same point. An orientation can be expressed by first specifying an axis, i.e. a line from the origin
// to a point on that sphere, represented by (rx, ry, rz), and a rotation around that axis, theta.
// These four numbers can be used as-is (R4), or they can be converted to R3, where theta is multiplied by each of
// the unit sphere components to give a vector whose length is theta and whose direction is the original axis.
// Marker detectors report orientations in the R3 form ("rotation vectors").

// R4AA represents an R4 axis angle.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates an R4AA representing no rotation.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// ToR3 converts an R4 angle axis to R3.
func (r4 *R4AA) ToR3() r3.Vector {
	return r3.Vector{X: r4.RX * r4.Theta, Y: r4.RY * r4.Theta, Z: r4.RZ * r4.Theta}
}

// Axis returns the rotation axis.
func (r4 *R4AA) Axis() r3.Vector {
	return r3.Vector{X: r4.RX, Y: r4.RY, Z: r4.RZ}
}

// RotationMatrix returns the 3x3 rotation matrix using Rodrigues' rotation formula
//
//	R = I + sin(θ)·K + (1 − cos(θ))·K²
//
// where K is the cross-product matrix of the unit axis.
func (r4 *R4AA) RotationMatrix() *mat.Dense {
	rot := Identity3()
	if r4.Theta == 0 {
		return rot
	}
	k := CrossProductMatrix(r4.Axis().Normalize())

	var sinK, k2 mat.Dense
	sinK.Scale(math.Sin(r4.Theta), k)
	k2.Mul(k, k)
	k2.Scale(1-math.Cos(r4.Theta), &k2)

	rot.Add(rot, &sinK)
	rot.Add(rot, &k2)
	return rot
}

// R3ToR4 converts an R3 angle axis to R4. The zero vector maps to no rotation.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta == 0 {
		return NewR4AA()
	}
	return &R4AA{theta, aa.X / theta, aa.Y / theta, aa.Z / theta}
}

// Rodrigues converts a rotation vector (axis scaled by angle in radians) to a rotation matrix.
func Rodrigues(rvec r3.Vector) *mat.Dense {
	return R3ToR4(rvec).RotationMatrix()
}

// RotationVector converts a 3x3 rotation matrix back to a rotation vector. It is the inverse
// of Rodrigues for angles in [0, π].
func RotationVector(rot mat.Matrix) r3.Vector {
	const eps = 1e-9
	trace := rot.At(0, 0) + rot.At(1, 1) + rot.At(2, 2)
	cosTheta := math.Max(-1, math.Min(1, (trace-1)/2))
	theta := math.Acos(cosTheta)
	if theta < eps {
		return r3.Vector{}
	}

	if math.Pi-theta < 1e-6 {
		// sin(θ) vanishes; R ≈ 2kkᵀ − I, so read the axis off the diagonal.
		k := [3]float64{
			math.Sqrt(math.Max(0, (rot.At(0, 0)+1)/2)),
			math.Sqrt(math.Max(0, (rot.At(1, 1)+1)/2)),
			math.Sqrt(math.Max(0, (rot.At(2, 2)+1)/2)),
		}
		largest := 0
		for i := 1; i < 3; i++ {
			if k[i] > k[largest] {
				largest = i
			}
		}
		for i := 0; i < 3; i++ {
			if i != largest && rot.At(largest, i)+rot.At(i, largest) < 0 {
				k[i] = -k[i]
			}
		}
		return r3.Vector{X: k[0], Y: k[1], Z: k[2]}.Normalize().Mul(theta)
	}

	axis := r3.Vector{
		X: rot.At(2, 1) - rot.At(1, 2),
		Y: rot.At(0, 2) - rot.At(2, 0),
		Z: rot.At(1, 0) - rot.At(0, 1),
	}
	return axis.Mul(theta / (2 * math.Sin(theta)))
}
