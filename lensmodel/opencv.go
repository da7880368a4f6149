package lensmodel

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// The OpenCV families share the Brown-Conrady structure on the normalized
// image plane. With x = X/Z, y = Y/Z and r2 = x^2 + y^2:
//
//	rad = (1 + k1 r2 + k2 r4 + k3 r6) / (1 + k4 r2 + k5 r4 + k6 r6)
//	xd  = x rad + 2 p1 x y + p2 (r2 + 2 x^2)
//	yd  = y rad + p1 (r2 + 2 y^2) + 2 p2 x y
//	q   = (fx xd + cx, fy yd + cy)
//
// The parameter vector follows the OpenCV ordering: k1, k2, p1, p2, then k3
// (opencv5) and k4, k5, k6 (opencv8). Missing trailing terms are zero.

type brownConrady struct {
	k1, k2, k3, k4, k5, k6 float64
	p1, p2                 float64
}

func (m *Model) brownConrady() brownConrady {
	var bc brownConrady
	d := m.Distortion
	bc.k1, bc.k2, bc.p1, bc.p2 = d[0], d[1], d[2], d[3]
	if len(d) > 4 {
		bc.k3 = d[4]
	}
	if len(d) > 5 {
		bc.k4, bc.k5, bc.k6 = d[5], d[6], d[7]
	}
	return bc
}

// distort maps normalized undistorted coordinates to distorted ones,
// optionally reporting the 2x2 Jacobian of the map.
func (bc brownConrady) distort(x, y float64, jac *[4]float64) (float64, float64) {
	r2s := x*x + y*y
	r4 := r2s * r2s
	r6 := r4 * r2s
	num := 1 + bc.k1*r2s + bc.k2*r4 + bc.k3*r6
	den := 1 + bc.k4*r2s + bc.k5*r4 + bc.k6*r6
	rad := num / den

	xd := x*rad + 2*bc.p1*x*y + bc.p2*(r2s+2*x*x)
	yd := y*rad + bc.p1*(r2s+2*y*y) + 2*bc.p2*x*y

	if jac != nil {
		dnum := bc.k1 + 2*bc.k2*r2s + 3*bc.k3*r4
		dden := bc.k4 + 2*bc.k5*r2s + 3*bc.k6*r4
		dRad := (dnum*den - num*dden) / (den * den)

		jac[0] = rad + 2*x*x*dRad + 2*bc.p1*y + 6*bc.p2*x // dxd/dx
		jac[1] = 2*x*y*dRad + 2*bc.p1*x + 2*bc.p2*y       // dxd/dy
		jac[2] = 2*x*y*dRad + 2*bc.p2*y + 2*bc.p1*x       // dyd/dx
		jac[3] = rad + 2*y*y*dRad + 6*bc.p1*y + 2*bc.p2*x // dyd/dy
	}
	return xd, yd
}

func opencvProject(m *Model, v r3.Vector, dqdv, dqdi *mat.Dense) (r2.Point, error) {
	if v.Z <= 0 {
		return r2.Point{}, errors.Wrapf(ErrProjectionImpossible, "%s cannot project ray with z=%f", m.Kind, v.Z)
	}
	bc := m.brownConrady()
	x := v.X / v.Z
	y := v.Y / v.Z

	var jac [4]float64
	var jacp *[4]float64
	if dqdv != nil {
		jacp = &jac
	}
	xd, yd := bc.distort(x, y, jacp)
	q := r2.Point{
		X: m.Core.Fx*xd + m.Core.Cx,
		Y: m.Core.Fy*yd + m.Core.Cy,
	}

	if dqdv != nil {
		// Chain through x = X/Z, y = Y/Z.
		invZ := 1 / v.Z
		dqdv.Set(0, 0, m.Core.Fx*jac[0]*invZ)
		dqdv.Set(0, 1, m.Core.Fx*jac[1]*invZ)
		dqdv.Set(0, 2, m.Core.Fx*(jac[0]*(-x)+jac[1]*(-y))*invZ)
		dqdv.Set(1, 0, m.Core.Fy*jac[2]*invZ)
		dqdv.Set(1, 1, m.Core.Fy*jac[3]*invZ)
		dqdv.Set(1, 2, m.Core.Fy*(jac[2]*(-x)+jac[3]*(-y))*invZ)
	}
	if dqdi != nil {
		dqdi.Zero()
		dqdi.Set(0, 0, xd)
		dqdi.Set(0, 2, 1)
		dqdi.Set(1, 1, yd)
		dqdi.Set(1, 3, 1)

		r2s := x*x + y*y
		r4 := r2s * r2s
		r6 := r4 * r2s
		num := 1 + bc.k1*r2s + bc.k2*r4 + bc.k3*r6
		den := 1 + bc.k4*r2s + bc.k5*r4 + bc.k6*r6
		rad := num / den

		// Radial numerator terms: d rad/dki = r^(2i)/den.
		dqdi.Set(0, 4, m.Core.Fx*x*r2s/den)
		dqdi.Set(1, 4, m.Core.Fy*y*r2s/den)
		dqdi.Set(0, 5, m.Core.Fx*x*r4/den)
		dqdi.Set(1, 5, m.Core.Fy*y*r4/den)
		// Tangential terms.
		dqdi.Set(0, 6, m.Core.Fx*2*x*y)
		dqdi.Set(1, 6, m.Core.Fy*(r2s+2*y*y))
		dqdi.Set(0, 7, m.Core.Fx*(r2s+2*x*x))
		dqdi.Set(1, 7, m.Core.Fy*2*x*y)
		if m.ParamCount() > 8 {
			dqdi.Set(0, 8, m.Core.Fx*x*r6/den)
			dqdi.Set(1, 8, m.Core.Fy*y*r6/den)
		}
		if m.ParamCount() > 9 {
			// Rational denominator terms: d rad/dki = -rad r^(2i)/den.
			dqdi.Set(0, 9, -m.Core.Fx*x*rad*r2s/den)
			dqdi.Set(1, 9, -m.Core.Fy*y*rad*r2s/den)
			dqdi.Set(0, 10, -m.Core.Fx*x*rad*r4/den)
			dqdi.Set(1, 10, -m.Core.Fy*y*rad*r4/den)
			dqdi.Set(0, 11, -m.Core.Fx*x*rad*r6/den)
			dqdi.Set(1, 11, -m.Core.Fy*y*rad*r6/den)
		}
	}
	return q, nil
}

const (
	unprojectMaxIterations = 25
	unprojectTolerance     = 1e-10
)

// opencvUnproject inverts the forward model with Newton-Raphson on the
// normalized plane, seeded from the pinhole inverse.
func opencvUnproject(m *Model, q r2.Point) (r3.Vector, error) {
	bc := m.brownConrady()
	xd := (q.X - m.Core.Cx) / m.Core.Fx
	yd := (q.Y - m.Core.Cy) / m.Core.Fy

	x, y := xd, yd
	var jac [4]float64
	for i := 0; i < unprojectMaxIterations; i++ {
		xdEst, ydEst := bc.distort(x, y, &jac)
		errX := xdEst - xd
		errY := ydEst - yd
		if errX*errX+errY*errY < unprojectTolerance*unprojectTolerance {
			return r3.Vector{X: x, Y: y, Z: 1}, nil
		}
		det := jac[0]*jac[3] - jac[1]*jac[2]
		if det == 0 {
			break
		}
		x -= (jac[3]*errX - jac[1]*errY) / det
		y -= (-jac[2]*errX + jac[0]*errY) / det
	}
	return r3.Vector{}, errors.Wrapf(ErrProjectionImpossible,
		"%s unprojection of (%f, %f) did not converge", m.Kind, q.X, q.Y)
}
