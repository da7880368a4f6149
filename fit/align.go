package fit

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/vonj/mrcal/lensmodel"
	"github.com/vonj/mrcal/spatial"
)

// AlignRotation solves for the rotation that best maps model's ray frame onto
// ref's over the given trusted pixels: it minimizes
// sum ||project(R * unproject(q, model), ref) - q||^2, parameterizing the
// rotation minimally with 3 axis-angle degrees of freedom and seeding at
// identity. Pitch/yaw of a camera looks almost exactly like a principal-point
// shift, so comparing two models without this compensation shows a spurious
// discrepancy dominated by that ambiguity.
//
// Returns the fitted 3x3 rotation and the RMS pixel residual over the pixels.
func AlignRotation(
	ctx context.Context,
	ref, model *lensmodel.Model,
	pixels []r2.Point,
	min Minimizer,
	logger golog.Logger,
) (*mat.Dense, float64, error) {
	if len(pixels) == 0 {
		return nil, 0, errors.New("rotation alignment needs at least one trusted pixel")
	}
	if min == nil {
		if logger == nil {
			logger = golog.NewLogger("fit.align")
		}
		min = NewNLoptMinimizer(logger)
	}
	// Any unprojection failure inside the trusted region is fatal: the solver
	// cannot converge correctly with undefined residuals.
	rays, err := lensmodel.Unproject(pixels, model)
	if err != nil {
		return nil, 0, err
	}
	prob := &rotationProblem{ref: ref, rays: rays, pixels: pixels}
	result, err := solveScaled(ctx, min, prob, make([]float64, 3), rotationScales())
	if err != nil {
		return nil, 0, err
	}
	aa := spatial.R3AAFromSlice(result.State)
	rms := math.Sqrt(result.SumSquares / float64(len(pixels)))
	if logger != nil {
		logger.Debugw("rotation alignment converged", "theta_deg", aa.Theta()*180/math.Pi, "rms_px", rms)
	}
	return aa.RotationMatrix(), rms, nil
}

// rotationProblem scores a 3-DoF axis-angle state by reprojecting the rotated
// rays through the reference model against the pixels they came from.
type rotationProblem struct {
	ref    *lensmodel.Model
	rays   []r3.Vector
	pixels []r2.Point
}

func (p *rotationProblem) Dims() (int, int) {
	return 3, 2 * len(p.rays)
}

func (p *rotationProblem) Evaluate(state, res []float64, jac *mat.Dense) error {
	aa := spatial.R3AAFromSlice(state)
	rm := aa.RotationMatrix()
	var jr *mat.Dense
	var grads *lensmodel.ProjectionGradients
	if jac != nil {
		jr = aa.RightJacobian()
		grads = &lensmodel.ProjectionGradients{
			DRay:        mat.NewDense(2, 3, nil),
			DIntrinsics: mat.NewDense(2, p.ref.ParamCount(), nil),
		}
	}
	var rotSkew, dvdr, row mat.Dense
	for i, v := range p.rays {
		q, err := p.ref.ProjectPoint(spatial.RotatePoint(rm, v), grads)
		if err != nil {
			return errors.Wrapf(err, "projecting aligned ray %d", i)
		}
		res[2*i] = q.X - p.pixels[i].X
		res[2*i+1] = q.Y - p.pixels[i].Y
		if jac != nil {
			// d(R v)/d aa = -R skew(v) Jr(aa), chained through dq/dv.
			rotSkew.Mul(rm, spatial.Skew(v))
			dvdr.Mul(&rotSkew, jr)
			dvdr.Scale(-1, &dvdr)
			row.Mul(grads.DRay, &dvdr)
			for j := 0; j < 3; j++ {
				jac.Set(2*i, j, row.At(0, j))
				jac.Set(2*i+1, j, row.At(1, j))
			}
		}
	}
	return nil
}
