package lensmodel

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ProjectionGradients holds the analytic gradients of one projected pixel:
// DRay is the 2x3 Jacobian with respect to the camera-frame ray, DIntrinsics
// the 2xParamCount Jacobian with respect to the packed intrinsics vector.
type ProjectionGradients struct {
	DRay        *mat.Dense
	DIntrinsics *mat.Dense
}

// ProjectPoint projects one camera-frame ray to pixel coordinates. A nil
// grads skips all gradient work.
func (m *Model) ProjectPoint(v r3.Vector, grads *ProjectionGradients) (r2.Point, error) {
	var dqdv, dqdi *mat.Dense
	if grads != nil {
		if !m.Kind.GradientsSupported() {
			return r2.Point{}, errors.Wrapf(ErrUnsupportedModel, "kind %q has no projection gradients", m.Kind)
		}
		if grads.DRay == nil {
			grads.DRay = mat.NewDense(2, 3, nil)
		}
		if grads.DIntrinsics == nil {
			grads.DIntrinsics = mat.NewDense(2, m.ParamCount(), nil)
		}
		dqdv, dqdi = grads.DRay, grads.DIntrinsics
	}
	switch m.Kind {
	case Pinhole:
		return pinholeProject(m, v, dqdv, dqdi)
	case Stereographic:
		return stereographicProject(m, v, dqdv, dqdi)
	case OpenCV4, OpenCV5, OpenCV8:
		return opencvProject(m, v, dqdv, dqdi)
	default:
		return r2.Point{}, errors.Wrapf(ErrUnsupportedModel, "projection not implemented for kind %q", m.Kind)
	}
}

// UnprojectPoint maps one pixel to the camera-frame ray observing it. Rays
// are defined up to positive scale; no normalization is promised.
func (m *Model) UnprojectPoint(q r2.Point) (r3.Vector, error) {
	switch m.Kind {
	case Pinhole:
		return pinholeUnproject(m, q)
	case Stereographic:
		return stereographicUnproject(m, q)
	case OpenCV4, OpenCV5, OpenCV8:
		return opencvUnproject(m, q)
	default:
		return r3.Vector{}, errors.Wrapf(ErrUnsupportedModel, "unprojection not implemented for kind %q", m.Kind)
	}
}

// Project projects a set of camera-frame rays to pixels, co-indexed with the
// input. Any impossible ray fails the whole call; callers needing per-point
// recovery use ProjectPoint.
func Project(rays []r3.Vector, m *Model) ([]r2.Point, error) {
	out := make([]r2.Point, len(rays))
	for i, v := range rays {
		q, err := m.ProjectPoint(v, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "projecting ray %d", i)
		}
		out[i] = q
	}
	return out, nil
}

// Unproject maps a set of pixels to camera-frame rays, co-indexed with the
// input. Any undefined pixel fails the whole call.
func Unproject(pixels []r2.Point, m *Model) ([]r3.Vector, error) {
	out := make([]r3.Vector, len(pixels))
	for i, q := range pixels {
		v, err := m.UnprojectPoint(q)
		if err != nil {
			return nil, errors.Wrapf(err, "unprojecting pixel %d", i)
		}
		out[i] = v
	}
	return out, nil
}
