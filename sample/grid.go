// Package sample generates imager pixel samples and selects the
// region-of-interest subsets that the fitting operations trust.
package sample

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/vonj/mrcal/lensmodel"
)

// ErrInvalidConfiguration is returned for malformed sampling or ROI requests:
// degenerate grid densities, or an implicit (negative) radius paired with an
// off-center ROI.
var ErrInvalidConfiguration = errors.New("invalid sampling configuration")

// Grid returns nx*ny pixel coordinates spanning [0, W-1] x [0, H-1]
// inclusive, evenly spaced in each axis and ordered row-major. Deterministic,
// no side effects.
func Grid(size lensmodel.ImagerSize, nx, ny int) ([]r2.Point, error) {
	if nx < 1 || ny < 1 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "grid density must be at least 1x1, got %dx%d", nx, ny)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "invalid imager size (%d, %d)", size.Width, size.Height)
	}
	xs := linspace(float64(size.Width-1), nx)
	ys := linspace(float64(size.Height-1), ny)
	pts := make([]r2.Point, 0, nx*ny)
	for _, y := range ys {
		for _, x := range xs {
			pts = append(pts, r2.Point{X: x, Y: y})
		}
	}
	return pts, nil
}

// linspace spans [0, max] inclusive with n samples. A single sample pins the
// coordinate at 0.
func linspace(max float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		return out
	}
	step := max / float64(n-1)
	for i := range out {
		out[i] = float64(i) * step
	}
	return out
}
