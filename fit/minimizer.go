// Package fit solves calibrated lens-model refits: it packs and scales
// parameter state, drives an external nonlinear least-squares minimizer, and
// runs the randomized multi-start loop that converts a model between
// lens-model families.
package fit

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoConvergentFit is returned when every multi-start trial fails to
// converge, or the best achieved residual is not finite. There is no
// automatic retry beyond the built-in trials.
var ErrNoConvergentFit = errors.New("no multi-start trial converged to a finite fit")

// Problem is a nonlinear least-squares problem over a packed, unitless state
// vector. Implementations are pure: Evaluate never mutates anything but its
// output arguments.
type Problem interface {
	// Dims returns the state length and the residual count.
	Dims() (nState, nResiduals int)
	// Evaluate fills res (length nResiduals) with the residuals at state and,
	// when jac is non-nil, the nResiduals x nState Jacobian. An error aborts
	// the minimization; residuals must never be silently undefined.
	Evaluate(state []float64, res []float64, jac *mat.Dense) error
}

// Result is a converged minimizer state with its achieved objective, the sum
// of squared residuals.
type Result struct {
	State      []float64
	SumSquares float64
}

// Minimizer is the external-solver boundary: a black box that minimizes the
// sum of squared residuals of a Problem starting from seed. The call is
// synchronous; cancellation is honored via ctx.
type Minimizer interface {
	Minimize(ctx context.Context, prob Problem, seed []float64) (*Result, error)
}
