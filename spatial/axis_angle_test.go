package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestRotationMatrixIdentity(t *testing.T) {
	rm := NewR3AA().RotationMatrix()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			expected := 0.0
			if i == j {
				expected = 1.0
			}
			test.That(t, rm.At(i, j), test.ShouldAlmostEqual, expected, 1e-12)
		}
	}
}

func TestRotationMatrixKnownRotation(t *testing.T) {
	// Quarter turn about z maps x onto y.
	aa := R3AA{RZ: math.Pi / 2}
	got := RotatePoint(aa.RotationMatrix(), r3.Vector{X: 1})
	test.That(t, got.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, got.Y, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, got.Z, test.ShouldAlmostEqual, 0, 1e-12)
}

func TestRotationMatrixOrthonormal(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		aa := R3AA{
			RX: rnd.Float64()*2 - 1,
			RY: rnd.Float64()*2 - 1,
			RZ: rnd.Float64()*2 - 1,
		}
		rm := aa.RotationMatrix()
		var rrt mat.Dense
		rrt.Mul(rm, rm.T())
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				expected := 0.0
				if i == j {
					expected = 1.0
				}
				test.That(t, rrt.At(i, j), test.ShouldAlmostEqual, expected, 1e-10)
			}
		}
		test.That(t, mat.Det(rm), test.ShouldAlmostEqual, 1, 1e-10)
	}
}

func TestToQuatIsUnit(t *testing.T) {
	for _, aa := range []R3AA{{}, {RX: 0.3}, {RX: 0.1, RY: -0.2, RZ: 0.4}, {RZ: math.Pi}} {
		q := aa.ToQuat()
		norm := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
		test.That(t, norm, test.ShouldAlmostEqual, 1, 1e-12)
	}
}

func TestRotatedPointGradientMatchesFiniteDifferences(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	const delta = 1e-6
	for trial := 0; trial < 10; trial++ {
		aa := R3AA{
			RX: rnd.Float64() - 0.5,
			RY: rnd.Float64() - 0.5,
			RZ: rnd.Float64() - 0.5,
		}
		v := r3.Vector{
			X: rnd.Float64()*2 - 1,
			Y: rnd.Float64()*2 - 1,
			Z: rnd.Float64() + 0.5,
		}
		grad := aa.RotatedPointGradient(aa.RotationMatrix(), v)
		for k := 0; k < 3; k++ {
			plus := aa
			minus := aa
			switch k {
			case 0:
				plus.RX += delta / 2
				minus.RX -= delta / 2
			case 1:
				plus.RY += delta / 2
				minus.RY -= delta / 2
			case 2:
				plus.RZ += delta / 2
				minus.RZ -= delta / 2
			}
			vp := RotatePoint(plus.RotationMatrix(), v)
			vm := RotatePoint(minus.RotationMatrix(), v)
			test.That(t, grad.At(0, k), test.ShouldAlmostEqual, (vp.X-vm.X)/delta, 1e-5)
			test.That(t, grad.At(1, k), test.ShouldAlmostEqual, (vp.Y-vm.Y)/delta, 1e-5)
			test.That(t, grad.At(2, k), test.ShouldAlmostEqual, (vp.Z-vm.Z)/delta, 1e-5)
		}
	}
}

func TestRotatedPointGradientAtIdentity(t *testing.T) {
	// At identity the gradient must be exactly -skew(v).
	v := r3.Vector{X: 1, Y: 2, Z: 3}
	aa := NewR3AA()
	grad := aa.RotatedPointGradient(aa.RotationMatrix(), v)
	sk := Skew(v)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, grad.At(i, j), test.ShouldAlmostEqual, -sk.At(i, j), 1e-12)
		}
	}
}
