package spatial

import "github.com/golang/geo/r3"

// Pose is a rigid-body transform relating a camera frame to a reference frame:
// a rotation in axis-angle form followed by a translation. Lens-model refits
// carry the pose through untouched; only intrinsics are re-solved.
type Pose struct {
	Orientation R3AA      `json:"orientation"`
	Translation r3.Vector `json:"translation"`
}
