package lensmodel

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// The stereographic projection maps a ray to the plane through the point
// antipodal to the optical axis: with n = |v|, q = f * 2(x, y)/(n + z) + c.
// It is defined everywhere except the exact backward axis, which makes it the
// natural seed for inverting the distortion-bearing families.

func stereographicProject(m *Model, v r3.Vector, dqdv, dqdi *mat.Dense) (r2.Point, error) {
	n := v.Norm()
	denom := n + v.Z
	if n == 0 || denom < 1e-12*n {
		return r2.Point{}, errors.Wrap(ErrProjectionImpossible, "stereographic singularity at the backward axis")
	}
	u := 2 * v.X / denom
	w := 2 * v.Y / denom
	q := r2.Point{
		X: m.Core.Fx*u + m.Core.Cx,
		Y: m.Core.Fy*w + m.Core.Cy,
	}
	if dqdv != nil {
		// d denom/d(v) = (x/n, y/n, z/n + 1)
		d2 := denom * denom
		dqdv.Set(0, 0, m.Core.Fx*(2/denom-2*v.X*(v.X/n)/d2))
		dqdv.Set(0, 1, m.Core.Fx*(-2*v.X*(v.Y/n)/d2))
		dqdv.Set(0, 2, m.Core.Fx*(-2*v.X*(v.Z/n+1)/d2))
		dqdv.Set(1, 0, m.Core.Fy*(-2*v.Y*(v.X/n)/d2))
		dqdv.Set(1, 1, m.Core.Fy*(2/denom-2*v.Y*(v.Y/n)/d2))
		dqdv.Set(1, 2, m.Core.Fy*(-2*v.Y*(v.Z/n+1)/d2))
	}
	if dqdi != nil {
		dqdi.Zero()
		dqdi.Set(0, 0, u)
		dqdi.Set(0, 2, 1)
		dqdi.Set(1, 1, w)
		dqdi.Set(1, 3, 1)
	}
	return q, nil
}

func stereographicUnproject(m *Model, q r2.Point) (r3.Vector, error) {
	u := (q.X - m.Core.Cx) / m.Core.Fx
	w := (q.Y - m.Core.Cy) / m.Core.Fy
	r2sq := u*u + w*w
	v := r3.Vector{X: u, Y: w, Z: 1 - r2sq/4}
	if math.IsNaN(v.Z) {
		return r3.Vector{}, errors.Wrap(ErrProjectionImpossible, "stereographic unprojection undefined")
	}
	return v, nil
}
