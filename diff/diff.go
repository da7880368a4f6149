// Package diff compares two or more calibrated models of nominally the same
// lens: it fits a compensating rotation per model over a trusted region, then
// reports the residual projection discrepancy across the whole imager.
package diff

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/vonj/mrcal/fit"
	"github.com/vonj/mrcal/lensmodel"
	"github.com/vonj/mrcal/sample"
	"github.com/vonj/mrcal/spatial"
)

const (
	defaultGridNx = 60
	defaultGridNy = 40
)

// Options configures a projection diff. The zero value asks for the defaults:
// a 60x40 grid and an implicit ROI (radius -1 at the imager center, which the
// diff policy resolves to min(W,H)/6).
type Options struct {
	GridNx int
	GridNy int
	// ROI selects the samples trusted for the rotation fit, per the diff
	// signed-radius policy. Radius 0 disables rotation compensation entirely.
	ROI       *sample.ROI
	Minimizer fit.Minimizer
	Logger    golog.Logger
}

func (o Options) withDefaults(size lensmodel.ImagerSize) Options {
	if o.GridNx == 0 {
		o.GridNx = defaultGridNx
	}
	if o.GridNy == 0 {
		o.GridNy = defaultGridNy
	}
	if o.ROI == nil {
		roi := sample.CenteredROI(size, -1)
		o.ROI = &roi
	}
	if o.Logger == nil {
		o.Logger = golog.NewLogger("diff")
	}
	if o.Minimizer == nil {
		o.Minimizer = fit.NewNLoptMinimizer(o.Logger)
	}
	return o
}

// Field is a per-grid-point comparison of aligned projections. Vectors is
// populated when exactly two models are compared; Dispersion when more than
// two (a vector field is not meaningful for more than two quantities).
// Points marked invalid failed to project/unproject under some participating
// model and are excluded from values and statistics, never zero-filled.
type Field struct {
	Nx, Ny int
	Points []r2.Point
	Valid  []bool
	// Vectors holds q1_aligned - q0 per grid point (two models only).
	Vectors []r2.Point
	// Dispersion holds the sample standard deviation of the aligned
	// projections about their per-point mean (more than two models).
	Dispersion []float64
	// Rotations holds the fitted compensation per model; Rotations[0] is the
	// identity by construction.
	Rotations []*mat.Dense
}

// Magnitudes returns the per-point discrepancy magnitude of a two-model
// field, NaN at invalid points. Presentation (heat map vs. vector field) is
// the caller's concern.
func (f *Field) Magnitudes() []float64 {
	out := make([]float64, len(f.Vectors))
	for i, v := range f.Vectors {
		if !f.Valid[i] {
			out[i] = math.NaN()
			continue
		}
		out[i] = v.Norm()
	}
	return out
}

// Projections diffs N >= 2 calibrated models of one physical lens. For each
// model beyond the first it fits the rotation reconciling the two ray frames
// over the ROI (identity when the ROI selects nothing), then reports the
// residual discrepancy over the full sampling grid. The ROI only gates the
// rotation fit, never where the diff is reported.
func Projections(ctx context.Context, models []*lensmodel.Model, opts Options) (*Field, error) {
	if len(models) < 2 {
		return nil, errors.Wrapf(sample.ErrInvalidConfiguration,
			"projection diff needs at least two models, got %d", len(models))
	}
	size := models[0].Size
	for i, m := range models {
		if m.Size != size {
			return nil, errors.Wrapf(sample.ErrInvalidConfiguration,
				"model %d imager size (%d, %d) does not match model 0 (%d, %d)",
				i, m.Size.Width, m.Size.Height, size.Width, size.Height)
		}
		if !m.Kind.ProjectionSupported() {
			return nil, errors.Wrapf(lensmodel.ErrUnsupportedModel, "cannot diff model %d of kind %q", i, m.Kind)
		}
	}
	opts = opts.withDefaults(size)

	grid, err := sample.Grid(size, opts.GridNx, opts.GridNy)
	if err != nil {
		return nil, err
	}
	trusted, err := opts.ROI.SelectDiff(size, grid)
	if err != nil {
		return nil, err
	}

	rotations := make([]*mat.Dense, len(models))
	rotations[0] = identity3()
	for i := 1; i < len(models); i++ {
		if len(trusted) == 0 {
			// No trusted region: compare raw, unaligned rays. The identity
			// here documents that no compensation was attempted.
			rotations[i] = identity3()
			continue
		}
		rm, rms, err := fit.AlignRotation(ctx, models[0], models[i], trusted, opts.Minimizer, opts.Logger)
		if err != nil {
			return nil, errors.Wrapf(err, "aligning model %d", i)
		}
		opts.Logger.Debugw("model aligned", "model", i, "rms_px", rms)
		rotations[i] = rm
	}

	field := &Field{
		Nx:        opts.GridNx,
		Ny:        opts.GridNy,
		Points:    grid,
		Valid:     make([]bool, len(grid)),
		Rotations: rotations,
	}
	aggregate(models, rotations, field)
	return field, nil
}

// aggregate fills the per-point comparison of the rotation-compensated
// projections, recovering locally from projection singularities by marking
// the point invalid.
func aggregate(models []*lensmodel.Model, rotations []*mat.Dense, field *Field) {
	n := len(models)
	if n == 2 {
		field.Vectors = make([]r2.Point, len(field.Points))
	} else {
		field.Dispersion = make([]float64, len(field.Points))
	}

	aligned := make([]r2.Point, n)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for idx, q := range field.Points {
		valid := true
		for i, m := range models {
			v, err := m.UnprojectPoint(q)
			if err != nil {
				valid = false
				break
			}
			qa, err := models[0].ProjectPoint(spatial.RotatePoint(rotations[i], v), nil)
			if err != nil {
				valid = false
				break
			}
			aligned[i] = qa
		}
		field.Valid[idx] = valid
		if !valid {
			if n == 2 {
				field.Vectors[idx] = r2.Point{X: math.NaN(), Y: math.NaN()}
			} else {
				field.Dispersion[idx] = math.NaN()
			}
			continue
		}
		if n == 2 {
			field.Vectors[idx] = aligned[1].Sub(aligned[0])
			continue
		}
		for i, qa := range aligned {
			xs[i], ys[i] = qa.X, qa.Y
		}
		field.Dispersion[idx] = math.Sqrt(stat.Variance(xs, nil) + stat.Variance(ys, nil))
	}
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}
