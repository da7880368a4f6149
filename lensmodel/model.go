// Package lensmodel defines calibrated camera lens models and their
// projection and unprojection math, with the analytic gradients a
// least-squares solver needs.
package lensmodel

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/vonj/mrcal/spatial"
)

// ImagerSize holds the imager dimensions in pixels.
type ImagerSize struct {
	Width  int `json:"width_px"`
	Height int `json:"height_px"`
}

// Center returns the geometric center of the imager in pixel coordinates.
// Pixel centers span [0, W-1] x [0, H-1], so the center sits at half that.
func (s ImagerSize) Center() r2.Point {
	return r2.Point{X: float64(s.Width-1) / 2, Y: float64(s.Height-1) / 2}
}

// Intrinsics is the intrinsic core shared by every model family: focal
// lengths and principal point, all in pixels.
type Intrinsics struct {
	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
}

// CheckValid checks if the fields of the intrinsic core have valid inputs.
func (i Intrinsics) CheckValid() error {
	if i.Fx <= 0 || i.Fy <= 0 {
		return errors.Wrapf(ErrInvalidParameters, "invalid focal lengths (%f, %f)", i.Fx, i.Fy)
	}
	return nil
}

// Model is one calibrated lens model: a model kind, the intrinsic core, the
// kind-mandated distortion vector, and the rigid pose of the camera frame in
// the reference frame. A Model is read-only to every operation in this
// module; fits produce fresh models.
type Model struct {
	Kind       Kind           `json:"kind"`
	Size       ImagerSize     `json:"imager_size"`
	Core       Intrinsics     `json:"intrinsics"`
	Distortion []float64      `json:"distortion"`
	Splined    *SplinedConfig `json:"splined_config,omitempty"`
	Pose       spatial.Pose   `json:"pose"`
}

// New constructs a Model, enforcing that the distortion vector length matches
// what the kind (and, for splined kinds, its configuration) mandates.
func New(kind Kind, size ImagerSize, core Intrinsics, distortion []float64, opts ...ModelOption) (*Model, error) {
	m := &Model{
		Kind:       kind,
		Size:       size,
		Core:       core,
		Distortion: append([]float64(nil), distortion...),
	}
	for _, opt := range opts {
		opt(m)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, errors.Wrapf(ErrInvalidParameters, "invalid imager size (%d, %d)", size.Width, size.Height)
	}
	if err := core.CheckValid(); err != nil {
		return nil, err
	}
	want, err := kind.DistortionCount(m.Splined)
	if err != nil {
		return nil, err
	}
	if len(m.Distortion) != want {
		return nil, errors.Wrapf(ErrInvalidParameters,
			"kind %q mandates %d distortion parameters, got %d", kind, want, len(m.Distortion))
	}
	return m, nil
}

// ModelOption configures optional Model fields at construction.
type ModelOption func(*Model)

// WithPose sets the camera pose.
func WithPose(p spatial.Pose) ModelOption {
	return func(m *Model) { m.Pose = p }
}

// WithSplinedConfig sets the configuration of a splined model.
func WithSplinedConfig(cfg SplinedConfig) ModelOption {
	return func(m *Model) { m.Splined = &cfg }
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	out := *m
	out.Distortion = append([]float64(nil), m.Distortion...)
	if m.Splined != nil {
		cfg := *m.Splined
		out.Splined = &cfg
	}
	return &out
}

// ParamCount returns the full intrinsics-vector length: the 4-element core
// plus the kind-mandated distortion parameters.
func (m *Model) ParamCount() int {
	return 4 + len(m.Distortion)
}

// Parameters returns the packed intrinsics vector [fx fy cx cy dist...],
// freshly allocated.
func (m *Model) Parameters() []float64 {
	out := make([]float64, 0, m.ParamCount())
	out = append(out, m.Core.Fx, m.Core.Fy, m.Core.Cx, m.Core.Cy)
	return append(out, m.Distortion...)
}

// WithParameters returns a copy of the model with its intrinsics vector
// replaced. The pose, size and kind are carried over unchanged.
func (m *Model) WithParameters(params []float64) (*Model, error) {
	if len(params) != m.ParamCount() {
		return nil, errors.Wrapf(ErrInvalidParameters,
			"kind %q mandates %d intrinsics parameters, got %d", m.Kind, m.ParamCount(), len(params))
	}
	out := m.Clone()
	out.Core = Intrinsics{Fx: params[0], Fy: params[1], Cx: params[2], Cy: params[3]}
	copy(out.Distortion, params[4:])
	return out, nil
}
