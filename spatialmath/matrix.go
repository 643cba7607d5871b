package spatialmath

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Identity3 returns a new 3x3 identity matrix.
func Identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// CrossProductMatrix returns the skew-symmetric matrix K such that K·v = p × v.
func CrossProductMatrix(p r3.Vector) *mat.Dense {
	cross := mat.NewDense(3, 3, nil)
	cross.Set(0, 1, -p.Z)
	cross.Set(0, 2, p.Y)
	cross.Set(1, 0, p.Z)
	cross.Set(1, 2, -p.X)
	cross.Set(2, 0, -p.Y)
	cross.Set(2, 1, p.X)
	return cross
}

// ModelView assembles a single precision 4x4 matrix with rot in the upper-left block and
// trans as the translation column.
func ModelView(rot mat.Matrix, trans r3.Vector) mgl32.Mat4 {
	m := mgl32.Ident4()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, float32(rot.At(r, c)))
		}
	}
	m.SetCol(3, mgl32.Vec4{float32(trans.X), float32(trans.Y), float32(trans.Z), 1})
	return m
}

// R3ToVec3 narrows a double precision vector to single precision.
func R3ToVec3(v r3.Vector) mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

// Vec3ToR3 widens a single precision vector to double precision.
func Vec3ToR3(v mgl32.Vec3) r3.Vector {
	return r3.Vector{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v ...float32) bool {
	for _, f := range v {
		if f != f || f > mgl32.MaxValue || f < -mgl32.MaxValue {
			return false
		}
	}
	return true
}
