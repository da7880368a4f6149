package fit

import (
	"context"
	"math"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/vonj/mrcal/sample"
)

// rotationAngle extracts the rotation angle of a 3x3 rotation matrix from its
// trace.
func rotationAngle(rm *mat.Dense) float64 {
	c := (mat.Trace(rm) - 1) / 2
	if c > 1 {
		c = 1
	}
	if c < -1 {
		c = -1
	}
	return math.Acos(c)
}

func TestAlignRotationIdenticalModels(t *testing.T) {
	m := pinholeModel(t)
	grid, err := sample.Grid(m.Size, 15, 10)
	test.That(t, err, test.ShouldBeNil)
	roi := sample.CenteredROI(m.Size, -1)
	trusted, err := roi.SelectDiff(m.Size, grid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(trusted), test.ShouldBeGreaterThan, 0)

	logger := golog.NewTestLogger(t)
	rm, rms, err := AlignRotation(context.Background(), m, m, trusted, NewNLoptMinimizer(logger), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rms, test.ShouldBeLessThan, 1e-6)
	test.That(t, rotationAngle(rm), test.ShouldBeLessThan, 1e-6)
}

func TestAlignRotationRecoversPrincipalPointShift(t *testing.T) {
	// Shifting cx by 5 pixels on an fx=800 pinhole is nearly indistinguishable
	// from a yaw of 5/800 radians; the fitted rotation must absorb it.
	ref := pinholeModel(t)
	shifted := ref.Clone()
	shifted.Core.Cx += 5

	grid, err := sample.Grid(ref.Size, 15, 10)
	test.That(t, err, test.ShouldBeNil)
	roi := sample.CenteredROI(ref.Size, -1)
	trusted, err := roi.SelectDiff(ref.Size, grid)
	test.That(t, err, test.ShouldBeNil)

	logger := golog.NewTestLogger(t)
	rm, rms, err := AlignRotation(context.Background(), ref, shifted, trusted, NewNLoptMinimizer(logger), logger)
	test.That(t, err, test.ShouldBeNil)

	expected := 5.0 / 800.0
	theta := rotationAngle(rm)
	test.That(t, theta, test.ShouldBeGreaterThan, expected*0.8)
	test.That(t, theta, test.ShouldBeLessThan, expected*1.2)
	// The residual after compensation is far below the raw 5 px offset.
	test.That(t, rms, test.ShouldBeLessThan, 0.5)
}

func TestAlignRotationNeedsPixels(t *testing.T) {
	m := pinholeModel(t)
	_, _, err := AlignRotation(context.Background(), m, m, nil, seedEchoMinimizer(), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
