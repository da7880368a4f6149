// Package spatial implements the small slice of SO(3) math needed to fit and
// apply compensating camera rotations: the axis-angle exponential map, its
// right Jacobian, and rotation application to camera-frame rays.
package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// An orientation can be expressed by an axis, i.e. a line from the origin to a
// point on the unit sphere, and a rotation around that axis, theta. Here the
// three numbers (rx, ry, rz) encode both: the direction is the axis and the
// vector length is theta. This compact form has exactly the three degrees of
// freedom of a rotation, which is what the alignment fitter solves over.

// R3AA represents an R3 axis angle.
type R3AA struct {
	RX float64 `json:"x"`
	RY float64 `json:"y"`
	RZ float64 `json:"z"`
}

// NewR3AA creates an identity R3AA.
func NewR3AA() R3AA {
	return R3AA{}
}

// R3AAFromSlice builds an R3AA from a 3-element state slice.
func R3AAFromSlice(s []float64) R3AA {
	return R3AA{s[0], s[1], s[2]}
}

// Theta returns the rotation magnitude in radians.
func (aa R3AA) Theta() float64 {
	return math.Sqrt(aa.RX*aa.RX + aa.RY*aa.RY + aa.RZ*aa.RZ)
}

// ToR3 converts the axis angle to a plain r3 vector.
func (aa R3AA) ToR3() r3.Vector {
	return r3.Vector{X: aa.RX, Y: aa.RY, Z: aa.RZ}
}

// ToQuat converts an R3 axis angle to a unit quaternion.
func (aa R3AA) ToQuat() quat.Number {
	theta := aa.Theta()
	if theta < 1e-12 {
		return quat.Number{Real: 1}
	}
	sinA := math.Sin(theta / 2)
	return quat.Number{
		Real: math.Cos(theta / 2),
		Imag: aa.RX / theta * sinA,
		Jmag: aa.RY / theta * sinA,
		Kmag: aa.RZ / theta * sinA,
	}
}

// RotationMatrix returns the 3x3 rotation matrix of the exponential map of the
// axis angle, via the Rodrigues formula R = I + sin(t)/t K + (1-cos(t))/t^2 K^2
// with K the skew matrix of the un-normalized axis.
func (aa R3AA) RotationMatrix() *mat.Dense {
	theta := aa.Theta()
	k := Skew(aa.ToR3())
	var k2 mat.Dense
	k2.Mul(k, k)

	// Taylor expansions keep the map smooth through theta == 0.
	var a, b float64
	if theta < 1e-8 {
		a = 1 - theta*theta/6
		b = 0.5 - theta*theta/24
	} else {
		a = math.Sin(theta) / theta
		b = (1 - math.Cos(theta)) / (theta * theta)
	}

	rm := identity3()
	var ka, k2b mat.Dense
	ka.Scale(a, k)
	k2b.Scale(b, &k2)
	rm.Add(rm, &ka)
	rm.Add(rm, &k2b)
	return rm
}

// RightJacobian returns Jr such that Exp(aa + d) ~= Exp(aa) Exp(Jr d) for a
// small increment d. Together with RotatePoint this yields the analytic
// gradient of a rotated ray with respect to the axis-angle state:
// d(R(aa) v)/d aa = -R(aa) skew(v) Jr(aa).
func (aa R3AA) RightJacobian() *mat.Dense {
	theta := aa.Theta()
	k := Skew(aa.ToR3())
	var k2 mat.Dense
	k2.Mul(k, k)

	var a, b float64
	if theta < 1e-8 {
		a = 0.5 - theta*theta/24
		b = 1.0/6 - theta*theta/120
	} else {
		a = (1 - math.Cos(theta)) / (theta * theta)
		b = (theta - math.Sin(theta)) / (theta * theta * theta)
	}

	jr := identity3()
	var ka, k2b mat.Dense
	ka.Scale(a, k)
	k2b.Scale(b, &k2)
	jr.Sub(jr, &ka)
	jr.Add(jr, &k2b)
	return jr
}

// RotatePoint applies a 3x3 rotation matrix to a vector.
func RotatePoint(rm mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.At(0, 0)*v.X + rm.At(0, 1)*v.Y + rm.At(0, 2)*v.Z,
		Y: rm.At(1, 0)*v.X + rm.At(1, 1)*v.Y + rm.At(1, 2)*v.Z,
		Z: rm.At(2, 0)*v.X + rm.At(2, 1)*v.Y + rm.At(2, 2)*v.Z,
	}
}

// RotatedPointGradient returns the 3x3 matrix d(R(aa) v)/d aa for a fixed v.
func (aa R3AA) RotatedPointGradient(rm mat.Matrix, v r3.Vector) *mat.Dense {
	var rs, g mat.Dense
	rs.Mul(rm, Skew(v))
	g.Mul(&rs, aa.RightJacobian())
	g.Scale(-1, &g)
	return &g
}

// Skew returns the skew-symmetric cross-product matrix of v.
func Skew(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}
