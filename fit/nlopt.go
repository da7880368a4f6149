package fit

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultMaxEval = 4001
	defaultFtolRel = 1e-12
	defaultXtolRel = 1e-10
)

// NLoptMinimizer solves least-squares Problems with nlopt's gradient-based
// SLSQP. The scalar objective handed to nlopt is the sum of squared
// residuals; its gradient, 2 J^T r, is assembled from the Problem's analytic
// Jacobian.
type NLoptMinimizer struct {
	maxEval int
	ftolRel float64
	xtolRel float64
	logger  golog.Logger
}

// NewNLoptMinimizer returns an nlopt-backed Minimizer with default stopping
// criteria.
func NewNLoptMinimizer(logger golog.Logger) *NLoptMinimizer {
	return &NLoptMinimizer{
		maxEval: defaultMaxEval,
		ftolRel: defaultFtolRel,
		xtolRel: defaultXtolRel,
		logger:  logger,
	}
}

type optimizeReturn struct {
	solution []float64
	score    float64
	err      error
}

// Minimize runs one synchronous solve to convergence from the given seed.
func (nm *NLoptMinimizer) Minimize(ctx context.Context, prob Problem, seed []float64) (*Result, error) {
	nState, nRes := prob.Dims()
	if len(seed) != nState {
		return nil, errors.Errorf("seed length %d does not match state length %d", len(seed), nState)
	}

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(nState))
	if err != nil {
		return nil, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	res := make([]float64, nRes)
	jac := mat.NewDense(nRes, nState, nil)
	var evalErr error

	// Gradient is, under the hood, an unsafe C structure that we are meant to
	// mutate in place.
	minFunc := func(x, gradient []float64) float64 {
		var jacArg *mat.Dense
		if len(gradient) > 0 {
			jacArg = jac
		}
		if err := prob.Evaluate(x, res, jacArg); err != nil {
			evalErr = err
			if ferr := opt.ForceStop(); ferr != nil {
				nm.logger.Errorw("forcestop error", "error", ferr)
			}
			return 0
		}
		var sum float64
		for _, r := range res {
			sum += r * r
		}
		if len(gradient) > 0 {
			for j := 0; j < nState; j++ {
				var g float64
				for i := 0; i < nRes; i++ {
					g += 2 * res[i] * jac.At(i, j)
				}
				gradient[j] = g
			}
		}
		return sum
	}

	err = multierr.Combine(
		opt.SetFtolRel(nm.ftolRel),
		opt.SetXtolRel(nm.xtolRel),
		opt.SetMaxEval(nm.maxEval),
		opt.SetMinObjective(minFunc),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nlopt configuration error")
	}

	solveChan := make(chan *optimizeReturn, 1)
	utils.PanicCapturingGo(func() {
		solution, score, err := opt.Optimize(seed)
		solveChan <- &optimizeReturn{solution, score, err}
	})

	var solution *optimizeReturn
	select {
	case <-ctx.Done():
		err = opt.ForceStop()
		<-solveChan
		return nil, multierr.Combine(err, ctx.Err())
	case solution = <-solveChan:
	}

	if evalErr != nil {
		return nil, evalErr
	}
	if solution.err != nil && solution.solution == nil {
		return nil, errors.Wrap(solution.err, "nlopt optimize error")
	}
	if !isFinite(solution.solution) || math.IsNaN(solution.score) || math.IsInf(solution.score, 0) {
		return nil, errors.New("nlopt returned a non-finite solution")
	}
	return &Result{State: solution.solution, SumSquares: solution.score}, nil
}

func isFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return xs != nil
}
