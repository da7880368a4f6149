package sample

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/vonj/mrcal/lensmodel"
)

// ROI is a circular region of interest: a center in pixel coordinates and a
// signed radius. The sign of the radius is a convention shared by both fit
// paths but interpreted differently by each; see SelectConvert and
// SelectDiff. The two interpretations are deliberately not unified: the
// conversion path treats a negative radius as a corner margin to exclude,
// the diff path treats it as a sentinel asking for a reasonable default area.
type ROI struct {
	Center r2.Point
	Radius float64
}

// CenteredROI returns an ROI at the imager's geometric center.
func CenteredROI(size lensmodel.ImagerSize, radius float64) ROI {
	return ROI{Center: size.Center(), Radius: radius}
}

// SelectConvert selects the samples trusted by a lens-model conversion:
//   - radius == 0 selects ALL samples (unrestricted fit);
//   - radius > 0 selects the circle as given;
//   - radius < 0 derives the radius from imager geometry,
//     sqrt(W^2+H^2)/2 - |radius|, so |radius| is a margin excluding the
//     imager corners; this is only meaningful centered on the imager, so an
//     off-center request fails.
func (roi ROI) SelectConvert(size lensmodel.ImagerSize, pts []r2.Point) ([]r2.Point, error) {
	if roi.Radius == 0 {
		return append([]r2.Point(nil), pts...), nil
	}
	radius := roi.Radius
	if radius < 0 {
		if err := roi.requireCentered(size); err != nil {
			return nil, err
		}
		w := float64(size.Width)
		h := float64(size.Height)
		radius = math.Sqrt(w*w+h*h)/2 - math.Abs(roi.Radius)
		if radius <= 0 {
			return nil, errors.Wrapf(ErrInvalidConfiguration,
				"corner margin %f leaves no usable region on a %dx%d imager", math.Abs(roi.Radius), size.Width, size.Height)
		}
	}
	return roi.within(radius, pts), nil
}

// SelectDiff selects the samples trusted by a rotation-alignment fit:
//   - radius == 0 selects NO samples: rotation fitting is skipped entirely
//     and models are compared unaligned;
//   - radius > 0 selects the circle as given;
//   - radius < 0 is purely a sentinel for "pick a reasonable default": the
//     selection uses min(W,H)/6 and ignores the supplied magnitude. As with
//     the conversion policy, the implicit radius must be centered.
func (roi ROI) SelectDiff(size lensmodel.ImagerSize, pts []r2.Point) ([]r2.Point, error) {
	if roi.Radius == 0 {
		return nil, nil
	}
	radius := roi.Radius
	if radius < 0 {
		if err := roi.requireCentered(size); err != nil {
			return nil, err
		}
		radius = float64(min(size.Width, size.Height)) / 6
	}
	return roi.within(radius, pts), nil
}

func (roi ROI) requireCentered(size lensmodel.ImagerSize) error {
	center := size.Center()
	if roi.Center.X != center.X || roi.Center.Y != center.Y {
		return errors.Wrapf(ErrInvalidConfiguration,
			"implicit radius requires the ROI centered at (%f, %f), got (%f, %f)",
			center.X, center.Y, roi.Center.X, roi.Center.Y)
	}
	return nil
}

func (roi ROI) within(radius float64, pts []r2.Point) []r2.Point {
	out := make([]r2.Point, 0, len(pts))
	for _, p := range pts {
		d := p.Sub(roi.Center)
		if d.X*d.X+d.Y*d.Y < radius*radius {
			out = append(out, p)
		}
	}
	return out
}
