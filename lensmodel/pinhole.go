package lensmodel

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func pinholeProject(m *Model, v r3.Vector, dqdv, dqdi *mat.Dense) (r2.Point, error) {
	if v.Z <= 0 {
		return r2.Point{}, errors.Wrapf(ErrProjectionImpossible, "pinhole cannot project ray with z=%f", v.Z)
	}
	x := v.X / v.Z
	y := v.Y / v.Z
	q := r2.Point{
		X: m.Core.Fx*x + m.Core.Cx,
		Y: m.Core.Fy*y + m.Core.Cy,
	}
	if dqdv != nil {
		dqdv.Set(0, 0, m.Core.Fx/v.Z)
		dqdv.Set(0, 1, 0)
		dqdv.Set(0, 2, -m.Core.Fx*v.X/(v.Z*v.Z))
		dqdv.Set(1, 0, 0)
		dqdv.Set(1, 1, m.Core.Fy/v.Z)
		dqdv.Set(1, 2, -m.Core.Fy*v.Y/(v.Z*v.Z))
	}
	if dqdi != nil {
		dqdi.Zero()
		dqdi.Set(0, 0, x)
		dqdi.Set(0, 2, 1)
		dqdi.Set(1, 1, y)
		dqdi.Set(1, 3, 1)
	}
	return q, nil
}

func pinholeUnproject(m *Model, q r2.Point) (r3.Vector, error) {
	return r3.Vector{
		X: (q.X - m.Core.Cx) / m.Core.Fx,
		Y: (q.Y - m.Core.Cy) / m.Core.Fy,
		Z: 1,
	}, nil
}
