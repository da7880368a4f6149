package lensmodel

import "github.com/pkg/errors"

// Kind is the name of a lens-model family. The family fixes the length and
// meaning of the distortion-parameter vector that follows the intrinsic core.
type Kind string

const (
	// Pinhole is the ideal perspective projection with no distortion terms.
	Pinhole = Kind("pinhole")
	// Stereographic is the distortion-free stereographic projection; unlike a
	// pinhole it remains defined for rays pointing behind the camera.
	Stereographic = Kind("stereographic")
	// OpenCV4 is the 4-term Brown-Conrady model (k1, k2, p1, p2).
	OpenCV4 = Kind("opencv4")
	// OpenCV5 adds the third radial term (k1, k2, p1, p2, k3).
	OpenCV5 = Kind("opencv5")
	// OpenCV8 is the rational model (k1, k2, p1, p2, k3, k4, k5, k6).
	OpenCV8 = Kind("opencv8")
	// CAHVORE is recognized for validation only: projection gradients for this
	// family are not implemented, so it cannot participate in any fit.
	CAHVORE = Kind("cahvore")
	// SplinedStereographic is a rich splined family whose parameter count is
	// set by its configuration integers. Recognized for validation only.
	SplinedStereographic = Kind("splined_stereographic")
)

// ErrUnsupportedModel is returned when an operation needs projection math (or
// its analytic gradients) that a model kind does not implement. There is
// deliberately no numeric-gradient fallback behind it.
var ErrUnsupportedModel = errors.New("unsupported lens model kind")

// ErrInvalidParameters is returned when a model is constructed with a
// distortion vector whose length does not match what its kind mandates.
var ErrInvalidParameters = errors.New("invalid lens model parameters")

// ErrProjectionImpossible is returned when a ray cannot be projected by a
// model, e.g. a behind-camera ray for a non-omnidirectional family.
var ErrProjectionImpossible = errors.New("ray does not project into the imager")

// SplinedConfig carries the configuration integers of the splined family. The
// control-point grid dimensions set the distortion-parameter count.
type SplinedConfig struct {
	Order  int     `json:"order"`
	Nx     int     `json:"nx"`
	Ny     int     `json:"ny"`
	FOVDeg float64 `json:"fov_x_deg"`
}

// CheckValid checks if the splined configuration integers make sense.
func (c *SplinedConfig) CheckValid() error {
	if c == nil {
		return errors.Wrap(ErrInvalidParameters, "splined model requires a configuration")
	}
	if c.Order < 2 || c.Order > 3 {
		return errors.Wrapf(ErrInvalidParameters, "splined order must be 2 or 3, got %d", c.Order)
	}
	if c.Nx < c.Order+1 || c.Ny < c.Order+1 {
		return errors.Wrapf(ErrInvalidParameters, "splined control grid %dx%d too small for order %d", c.Nx, c.Ny, c.Order)
	}
	if c.FOVDeg <= 0 {
		return errors.Wrapf(ErrInvalidParameters, "splined fov must be positive, got %f", c.FOVDeg)
	}
	return nil
}

// DistortionCount returns the number of distortion parameters beyond the
// 4-element intrinsic core that the kind mandates. The splined family needs
// its configuration to answer.
func (k Kind) DistortionCount(cfg *SplinedConfig) (int, error) {
	switch k {
	case Pinhole, Stereographic:
		return 0, nil
	case OpenCV4:
		return 4, nil
	case OpenCV5:
		return 5, nil
	case OpenCV8:
		return 8, nil
	case CAHVORE:
		return 8, nil
	case SplinedStereographic:
		if err := cfg.CheckValid(); err != nil {
			return 0, err
		}
		return 2 * cfg.Nx * cfg.Ny, nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedModel, "unknown kind %q", k)
	}
}

// ProjectionSupported reports whether Project/Unproject are implemented for
// the kind.
func (k Kind) ProjectionSupported() bool {
	switch k {
	case Pinhole, Stereographic, OpenCV4, OpenCV5, OpenCV8:
		return true
	default:
		return false
	}
}

// GradientsSupported reports whether analytic projection gradients are
// implemented for the kind. Kinds without gradients cannot be solved for.
func (k Kind) GradientsSupported() bool {
	return k.ProjectionSupported()
}

// Omnidirectional reports whether the kind can project rays with a
// non-positive forward component.
func (k Kind) Omnidirectional() bool {
	return k == Stereographic
}
