package lensmodel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func testModel(t *testing.T, kind Kind) *Model {
	t.Helper()
	var dist []float64
	switch kind {
	case OpenCV4:
		dist = []float64{-0.012, 0.035, -0.001, 0.002}
	case OpenCV5:
		dist = []float64{-0.012, 0.035, -0.001, 0.002, 0.019}
	case OpenCV8:
		dist = []float64{-0.012, 0.035, -0.001, 0.002, 0.019, 0.014, -0.056, 0.05}
	}
	m, err := New(kind, testSize, testCore, dist)
	test.That(t, err, test.ShouldBeNil)
	return m
}

func testRays(rnd *rand.Rand, n int) []r3.Vector {
	rays := make([]r3.Vector, n)
	for i := range rays {
		rays[i] = r3.Vector{
			X: rnd.Float64()*0.6 - 0.3,
			Y: rnd.Float64()*0.6 - 0.3,
			Z: rnd.Float64() + 1,
		}
	}
	return rays
}

func TestProjectUnprojectRoundTrip(t *testing.T) {
	for _, kind := range []Kind{Pinhole, Stereographic, OpenCV4, OpenCV5, OpenCV8} {
		kind := kind
		t.Run(string(kind), func(t *testing.T) {
			m := testModel(t, kind)
			rnd := rand.New(rand.NewSource(1))
			for _, v := range testRays(rnd, 20) {
				q, err := m.ProjectPoint(v, nil)
				test.That(t, err, test.ShouldBeNil)
				got, err := m.UnprojectPoint(q)
				test.That(t, err, test.ShouldBeNil)
				// Rays compare up to positive scale.
				test.That(t, got.X/got.Z, test.ShouldAlmostEqual, v.X/v.Z, 1e-6)
				test.That(t, got.Y/got.Z, test.ShouldAlmostEqual, v.Y/v.Z, 1e-6)
			}
		})
	}
}

func TestProjectPrincipalRay(t *testing.T) {
	for _, kind := range []Kind{Pinhole, Stereographic, OpenCV4, OpenCV8} {
		m := testModel(t, kind)
		q, err := m.ProjectPoint(r3.Vector{Z: 1}, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, q.X, test.ShouldAlmostEqual, testCore.Cx, 1e-9)
		test.That(t, q.Y, test.ShouldAlmostEqual, testCore.Cy, 1e-9)
	}
}

func TestProjectBehindCamera(t *testing.T) {
	behind := r3.Vector{X: 0.1, Y: -0.2, Z: -1}
	for _, kind := range []Kind{Pinhole, OpenCV4, OpenCV5, OpenCV8} {
		m := testModel(t, kind)
		_, err := m.ProjectPoint(behind, nil)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, ErrProjectionImpossible), test.ShouldBeTrue)
	}

	// Stereographic stays defined behind the camera.
	m := testModel(t, Stereographic)
	q, err := m.ProjectPoint(behind, nil)
	test.That(t, err, test.ShouldBeNil)
	v, err := m.UnprojectPoint(q)
	test.That(t, err, test.ShouldBeNil)
	scale := behind.Norm() / v.Norm()
	test.That(t, v.X*scale, test.ShouldAlmostEqual, behind.X, 1e-6)
	test.That(t, v.Y*scale, test.ShouldAlmostEqual, behind.Y, 1e-6)
	test.That(t, v.Z*scale, test.ShouldAlmostEqual, behind.Z, 1e-6)
}

func TestProjectionGradientsMatchFiniteDifferences(t *testing.T) {
	const delta = 1e-6
	for _, kind := range []Kind{Pinhole, Stereographic, OpenCV4, OpenCV5, OpenCV8} {
		kind := kind
		t.Run(string(kind), func(t *testing.T) {
			m := testModel(t, kind)
			rnd := rand.New(rand.NewSource(2))
			for _, v := range testRays(rnd, 5) {
				var grads ProjectionGradients
				_, err := m.ProjectPoint(v, &grads)
				test.That(t, err, test.ShouldBeNil)

				// Ray gradient, central differences per component.
				for k := 0; k < 3; k++ {
					vp, vm := v, v
					switch k {
					case 0:
						vp.X += delta / 2
						vm.X -= delta / 2
					case 1:
						vp.Y += delta / 2
						vm.Y -= delta / 2
					case 2:
						vp.Z += delta / 2
						vm.Z -= delta / 2
					}
					qp, err := m.ProjectPoint(vp, nil)
					test.That(t, err, test.ShouldBeNil)
					qm, err := m.ProjectPoint(vm, nil)
					test.That(t, err, test.ShouldBeNil)
					test.That(t, grads.DRay.At(0, k), test.ShouldAlmostEqual, (qp.X-qm.X)/delta, 1e-4)
					test.That(t, grads.DRay.At(1, k), test.ShouldAlmostEqual, (qp.Y-qm.Y)/delta, 1e-4)
				}

				// Intrinsics gradient, central differences per parameter.
				params := m.Parameters()
				for j := range params {
					pp := append([]float64{}, params...)
					pm := append([]float64{}, params...)
					pp[j] += delta / 2
					pm[j] -= delta / 2
					mp, err := m.WithParameters(pp)
					test.That(t, err, test.ShouldBeNil)
					mm, err := m.WithParameters(pm)
					test.That(t, err, test.ShouldBeNil)
					qp, err := mp.ProjectPoint(v, nil)
					test.That(t, err, test.ShouldBeNil)
					qm, err := mm.ProjectPoint(v, nil)
					test.That(t, err, test.ShouldBeNil)
					test.That(t, grads.DIntrinsics.At(0, j), test.ShouldAlmostEqual, (qp.X-qm.X)/delta, 1e-4)
					test.That(t, grads.DIntrinsics.At(1, j), test.ShouldAlmostEqual, (qp.Y-qm.Y)/delta, 1e-4)
				}
			}
		})
	}
}

func TestProjectionGradientShapes(t *testing.T) {
	m := testModel(t, OpenCV8)
	var grads ProjectionGradients
	_, err := m.ProjectPoint(r3.Vector{X: 0.1, Y: 0.05, Z: 1}, &grads)
	test.That(t, err, test.ShouldBeNil)
	r, c := grads.DRay.Dims()
	test.That(t, r, test.ShouldEqual, 2)
	test.That(t, c, test.ShouldEqual, 3)
	r, c = grads.DIntrinsics.Dims()
	test.That(t, r, test.ShouldEqual, 2)
	test.That(t, c, test.ShouldEqual, 12)
}

func TestProjectUnsupportedKind(t *testing.T) {
	m, err := New(CAHVORE, testSize, testCore, make([]float64, 8))
	test.That(t, err, test.ShouldBeNil)

	_, err = m.ProjectPoint(r3.Vector{Z: 1}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrUnsupportedModel), test.ShouldBeTrue)

	_, err = m.UnprojectPoint(testSize.Center())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrUnsupportedModel), test.ShouldBeTrue)
}

func TestProjectSliceFailsWhole(t *testing.T) {
	m := testModel(t, Pinhole)
	rays := []r3.Vector{{X: 0.1, Y: 0.1, Z: 1}, {X: 0, Y: 0, Z: -1}}
	_, err := Project(rays, m)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrProjectionImpossible), test.ShouldBeTrue)

	pixels, err := Project(rays[:1], m)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pixels, test.ShouldHaveLength, 1)
	test.That(t, math.IsNaN(pixels[0].X), test.ShouldBeFalse)
}
