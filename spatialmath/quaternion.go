package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// below this norm the imaginary part of a unit quaternion is treated as a zero rotation.
const smallRotationNorm = 1e-12

type quaternion quat.Number

// NewQuaternion returns the orientation described by the w, x, y, z components of a quaternion. The quaternion is
// normalized; an all-zero quaternion is rejected.
func NewQuaternion(w, x, y, z float64) (Orientation, error) {
	q := quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
	if quat.Abs(q) == 0 {
		return nil, errors.New("cannot create an orientation from a zero quaternion")
	}
	nq := quaternion(Normalize(q))
	return &nq, nil
}

// Quaternion returns orientation in quaternion representation.
func (q *quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// AxisAngles returns the orientation in axis angle representation.
func (q *quaternion) AxisAngles() *R4AA {
	aa := QuatToR4AA(q.Quaternion())
	return &aa
}

// Normalize scales a quaternion to unit length.
func Normalize(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/norm, q)
}

// QuaternionAlmostEqual is an equality test for two quaternions. Since q and -q describe the same rotation, both
// signs are accepted.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	same := math.Abs(a.Real-b.Real) < tol &&
		math.Abs(a.Imag-b.Imag) < tol &&
		math.Abs(a.Jmag-b.Jmag) < tol &&
		math.Abs(a.Kmag-b.Kmag) < tol
	if same {
		return true
	}
	return math.Abs(a.Real+b.Real) < tol &&
		math.Abs(a.Imag+b.Imag) < tol &&
		math.Abs(a.Jmag+b.Jmag) < tol &&
		math.Abs(a.Kmag+b.Kmag) < tol
}

// RotateVector rotates v by the unit quaternion q.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// imagNorm returns the norm of the imaginary part of the quaternion.
func imagNorm(q quat.Number) float64 {
	return math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// QuatToR4AA converts a quat to an R4 axis angle in the same way the C++ Eigen library does.
// https://eigen.tuxfamily.org/dox/AngleAxis_8h_source.html
func QuatToR4AA(q quat.Number) R4AA {
	denom := imagNorm(q)

	angle := 2 * math.Atan2(denom, math.Abs(q.Real))
	if q.Real < 0 {
		angle *= -1
	}

	if denom < 1e-6 {
		return R4AA{angle, 1, 0, 0}
	}
	return R4AA{angle, q.Imag / denom, q.Jmag / denom, q.Kmag / denom}
}

// QuatToR3AA converts a unit quat to an R3 axis angle, i.e. the rotation vector whose direction is the rotation axis
// and whose length is the rotation angle. This is the logarithm map of SO(3); the result always has norm <= pi.
func QuatToR3AA(q quat.Number) r3.Vector {
	denom := imagNorm(q)
	var scale float64
	if denom < smallRotationNorm {
		// angle/denom tends to 2/w as the rotation vanishes
		if q.Real == 0 {
			return r3.Vector{}
		}
		scale = 2 / q.Real
	} else {
		angle := 2 * math.Atan2(denom, math.Abs(q.Real))
		if q.Real < 0 {
			angle *= -1
		}
		scale = angle / denom
	}
	return r3.Vector{X: q.Imag * scale, Y: q.Jmag * scale, Z: q.Kmag * scale}
}

// R3AAToQuat is the exponential map of SO(3): it converts a rotation vector to a unit quaternion.
func R3AAToQuat(aa r3.Vector) quat.Number {
	return R3ToR4(aa).ToQuat()
}

// Skew returns the 3x3 cross product matrix of v, such that Skew(v)*u == v x u.
func Skew(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

// LogMapJacobianInverse returns the inverse of the right jacobian of SO(3) evaluated at the rotation vector phi.
// If E is perturbed on the right by a small rotation delta, log(E*exp(delta)) ~= log(E) + Jr^-1(log(E)) * delta.
func LogMapJacobianInverse(phi r3.Vector) *mat.Dense {
	theta := phi.Norm()
	skew := Skew(phi)
	skew2 := mat.NewDense(3, 3, nil)
	skew2.Mul(skew, skew)

	var coeff float64
	if theta < 1e-6 {
		coeff = 1. / 12
	} else {
		coeff = 1/(theta*theta) - (1+math.Cos(theta))/(2*theta*math.Sin(theta))
	}

	out := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		out.Set(i, i, 1)
	}
	skew.Scale(0.5, skew)
	out.Add(out, skew)
	skew2.Scale(coeff, skew2)
	out.Add(out, skew2)
	return out
}
