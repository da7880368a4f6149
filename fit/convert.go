package fit

import (
	"context"
	"math"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"github.com/vonj/mrcal/lensmodel"
	"github.com/vonj/mrcal/sample"
	"github.com/vonj/mrcal/utils"
)

const (
	defaultGridNx = 60
	defaultGridNy = 40
	defaultTrials = 10

	// Distortion seeds are small random perturbations near zero, never the
	// zero vector: a zero start leaves richer models with singular Jacobians.
	distortionSeedSpread = 1e-3
)

// Options configures a lens-model conversion. The zero value asks for the
// defaults: a 60x40 sampling grid, an unrestricted (radius 0) ROI centered on
// the imager, 10 trials, and the nlopt minimizer.
type Options struct {
	GridNx int
	GridNy int
	// ROI selects the trusted samples per the conversion signed-radius
	// policy; nil means radius 0 at the imager center, i.e. fit everywhere.
	ROI       *sample.ROI
	Trials    int
	Seed      int64
	Minimizer Minimizer
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
		roi := sample.CenteredROI(size, 0)
		o.ROI = &roi
	}
	if o.Trials == 0 {
		o.Trials = defaultTrials
	}
	if o.Logger == nil {
		o.Logger = golog.NewLogger("fit.convert")
	}
	if o.Minimizer == nil {
		o.Minimizer = NewNLoptMinimizer(o.Logger)
	}
	return o
}

// trial is one random-seeded refit attempt. Trials are created and discarded
// inside Convert; only the best one's parameters survive.
type trial struct {
	params []float64
	rms    float64
	err    error
}

// Convert refits a source model's intrinsics to the target lens-model family
// by sampling the imager, unprojecting with the source model, and solving a
// least-squares fit of the target's projections against the sampled pixels.
// The source pose is copied verbatim into the result; conversion never
// touches camera pose. Returns the converted model and its RMS pixel
// residual over the fitted samples.
func Convert(ctx context.Context, src *lensmodel.Model, target lensmodel.Kind, opts Options) (*lensmodel.Model, float64, error) {
	if src.Kind == target {
		// Identical families need no solve at all; the parameters pass
		// through and reproduce the source projections exactly.
		return src.Clone(), 0, nil
	}
	if !target.GradientsSupported() {
		return nil, 0, errors.Wrapf(lensmodel.ErrUnsupportedModel,
			"cannot fit target kind %q: projection gradients not implemented", target)
	}
	if !src.Kind.ProjectionSupported() {
		return nil, 0, errors.Wrapf(lensmodel.ErrUnsupportedModel,
			"cannot unproject source kind %q", src.Kind)
	}
	opts = opts.withDefaults(src.Size)

	grid, err := sample.Grid(src.Size, opts.GridNx, opts.GridNy)
	if err != nil {
		return nil, 0, err
	}
	pixels, err := opts.ROI.SelectConvert(src.Size, grid)
	if err != nil {
		return nil, 0, err
	}
	// These rays come from the source model's own deterministic geometry, so
	// every sample is good: unit weights, no outlier rejection, and any
	// unprojection failure here is fatal rather than skipped.
	rays, err := lensmodel.Unproject(pixels, src)
	if err != nil {
		return nil, 0, err
	}

	nDist, err := target.DistortionCount(nil)
	if err != nil {
		return nil, 0, err
	}
	template := &lensmodel.Model{
		Kind:       target,
		Size:       src.Size,
		Core:       src.Core,
		Distortion: make([]float64, nDist),
		Pose:       src.Pose,
	}
	prob := &conversionProblem{template: template, rays: rays, pixels: pixels}
	scales := intrinsicScales(template.ParamCount())

	trials := make([]trial, opts.Trials)
	fns := make([]utils.SimpleFunc, opts.Trials)
	for i := range fns {
		i := i
		fns[i] = func(ctx context.Context) error {
			//nolint:gosec
			rnd := rand.New(rand.NewSource(opts.Seed + int64(i)))
			seed := seedState(src.Core, nDist, rnd)
			result, err := solveScaled(ctx, opts.Minimizer, prob, seed, scales)
			if err != nil {
				// A diverged trial is expected in a non-convex landscape;
				// record it and let the siblings keep running.
				trials[i] = trial{err: err}
				return nil
			}
			trials[i] = trial{
				params: result.State,
				rms:    math.Sqrt(result.SumSquares / float64(len(rays))),
			}
			return nil
		}
	}
	if _, err := utils.RunInParallel(ctx, fns); err != nil {
		return nil, 0, err
	}

	best := -1
	var trialErrs error
	for i, tr := range trials {
		if tr.err != nil {
			trialErrs = multierr.Combine(trialErrs, tr.err)
			continue
		}
		if math.IsNaN(tr.rms) || math.IsInf(tr.rms, 0) {
			continue
		}
		opts.Logger.Debugw("conversion trial converged", "trial", i, "rms_px", tr.rms)
		if best < 0 || tr.rms < trials[best].rms {
			best = i
		}
	}
	if best < 0 {
		return nil, 0, multierr.Combine(trialErrs, ErrNoConvergentFit)
	}

	out, err := template.WithParameters(trials[best].params)
	if err != nil {
		return nil, 0, err
	}
	opts.Logger.Debugw("conversion complete", "target", target, "rms_px", trials[best].rms)
	return out, trials[best].rms, nil
}

// seedState seeds a trial's intrinsics state: the core from the source
// model's existing values, the distortion coefficients from independent
// small random perturbations near zero.
func seedState(core lensmodel.Intrinsics, nDist int, rnd *rand.Rand) []float64 {
	seed := make([]float64, 0, 4+nDist)
	seed = append(seed, core.Fx, core.Fy, core.Cx, core.Cy)
	for i := 0; i < nDist; i++ {
		seed = append(seed, (rnd.Float64()*2-1)*distortionSeedSpread)
	}
	return seed
}

// conversionProblem scores a candidate intrinsics vector by how well the
// target family projects the source-derived rays back onto the sampled
// pixels, treating each sample as a bearing observation at infinite range.
type conversionProblem struct {
	template *lensmodel.Model
	rays     []r3.Vector
	pixels   []r2.Point
}

func (p *conversionProblem) Dims() (int, int) {
	return p.template.ParamCount(), 2 * len(p.rays)
}

func (p *conversionProblem) Evaluate(state, res []float64, jac *mat.Dense) error {
	cand, err := p.template.WithParameters(state)
	if err != nil {
		return err
	}
	var grads *lensmodel.ProjectionGradients
	if jac != nil {
		grads = &lensmodel.ProjectionGradients{
			DIntrinsics: mat.NewDense(2, p.template.ParamCount(), nil),
			DRay:        mat.NewDense(2, 3, nil),
		}
	}
	for i, v := range p.rays {
		q, err := cand.ProjectPoint(v, grads)
		if err != nil {
			// A solver cannot converge on undefined residuals; this is fatal
			// for the whole trial, not a sample to skip.
			return errors.Wrapf(err, "projecting fitted ray %d", i)
		}
		res[2*i] = q.X - p.pixels[i].X
		res[2*i+1] = q.Y - p.pixels[i].Y
		if jac != nil {
			for j := 0; j < p.template.ParamCount(); j++ {
				jac.Set(2*i, j, grads.DIntrinsics.At(0, j))
				jac.Set(2*i+1, j, grads.DIntrinsics.At(1, j))
			}
		}
	}
	return nil
}
