package fit

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// The minimizer operates on a unitless state: every parameter class is
// divided by a fixed scale so all state components have comparable magnitude
// and sensitivity. The scaling is applied before and stripped after each
// minimizer call; callers only ever see real units.
const (
	scaleFocalLength = 500.0
	scaleCenterPixel = 20.0
	scaleDistortion  = 1.0
	scaleRotation    = 0.1 * math.Pi / 180
)

// intrinsicScales returns the per-element scales of a packed
// [fx fy cx cy dist...] intrinsics state.
func intrinsicScales(paramCount int) []float64 {
	scales := make([]float64, paramCount)
	scales[0], scales[1] = scaleFocalLength, scaleFocalLength
	scales[2], scales[3] = scaleCenterPixel, scaleCenterPixel
	for i := 4; i < paramCount; i++ {
		scales[i] = scaleDistortion
	}
	return scales
}

// rotationScales returns the per-element scales of a 3-DoF axis-angle state.
func rotationScales() []float64 {
	return []float64{scaleRotation, scaleRotation, scaleRotation}
}

// scaledProblem adapts a real-unit Problem to the packed state a Minimizer
// sees. Evaluate multiplies the packed state back into real units before
// delegating and rescales the Jacobian columns by the chain rule.
type scaledProblem struct {
	inner     Problem
	scales    []float64
	realState []float64
}

func newScaledProblem(inner Problem, scales []float64) *scaledProblem {
	return &scaledProblem{inner: inner, scales: scales, realState: make([]float64, len(scales))}
}

func (p *scaledProblem) Dims() (int, int) {
	return p.inner.Dims()
}

func (p *scaledProblem) Evaluate(state, res []float64, jac *mat.Dense) error {
	floats.MulTo(p.realState, state, p.scales)
	if err := p.inner.Evaluate(p.realState, res, jac); err != nil {
		return err
	}
	if jac != nil {
		nRes, nState := jac.Dims()
		for j := 0; j < nState; j++ {
			for i := 0; i < nRes; i++ {
				jac.Set(i, j, jac.At(i, j)*p.scales[j])
			}
		}
	}
	return nil
}

// solveScaled packs a real-unit seed, runs the minimizer on the scaled
// problem, and returns the result unpacked into real units.
func solveScaled(ctx context.Context, min Minimizer, prob Problem, seed, scales []float64) (*Result, error) {
	packed := floats.DivTo(make([]float64, len(seed)), seed, scales)
	result, err := min.Minimize(ctx, newScaledProblem(prob, scales), packed)
	if err != nil {
		return nil, err
	}
	state := floats.MulTo(make([]float64, len(result.State)), result.State, scales)
	return &Result{State: state, SumSquares: result.SumSquares}, nil
}
