// Package camera implements calibrated projection camera models: the analytic
// mapping between 3D points in the camera frame and 2D pixel coordinates, its
// inverse, and the Jacobians needed for optimization.
package camera

import (
	"io"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/omnivis/omnicam/distortion"
)

// ModelType is the name of the camera projection model.
type ModelType string

const (
	// UnifiedProjectionType is the unified (omnidirectional) camera model for
	// catadioptric and fisheye lenses.
	UnifiedProjectionType = ModelType("unified_projection")
	// PinholeType is the standard perspective projection model.
	PinholeType = ModelType("pinhole")
)

// MinDepth is the numerical floor on the distance between a 3D point and the
// camera center below which a projection is classified invalid.
const MinDepth = 1e-10

// Model is a calibrated projection camera. A Model is safe for unlimited
// concurrent read-only use; SetParameters must not race with any other call.
type Model interface {
	// Type returns the name of the projection model.
	Type() ModelType
	// Parameters returns a copy of the ordered intrinsics vector.
	Parameters() []float64
	// SetParameters replaces the whole intrinsics vector after re-validation.
	SetParameters(intrinsics []float64) error
	// ImageWidth returns the image width in pixels.
	ImageWidth() int
	// ImageHeight returns the image height in pixels.
	ImageHeight() int
	// IsKeypointVisible reports whether the keypoint lies inside the image box
	// [0,width) x [0,height).
	IsKeypointVisible(kp r2.Point) bool
	// Distortion returns the lens distortion model, or nil if the camera has
	// none.
	Distortion() distortion.Model
	// Project maps a 3D point in the camera frame to a pixel keypoint and
	// classifies the outcome.
	Project(point r3.Vector) (r2.Point, ProjectionResult)
	// BackProject maps a pixel keypoint to a bearing vector (not normalized).
	// The boolean reports whether the keypoint is liftable under the model;
	// callers must check image-box visibility separately if needed.
	BackProject(kp r2.Point) (r3.Vector, bool)
	// IsLiftable reports whether the keypoint can be back-projected to a valid
	// bearing vector.
	IsLiftable(kp r2.Point) bool
	// Clone returns an independent deep copy, including the distortion model.
	Clone() Model
	// Equal reports whether other has the same model type, intrinsics, image
	// size, and distortion. Comparing different model types returns false.
	Equal(other Model) bool
	// PrintParameters writes a human-readable parameter dump to w.
	PrintParameters(w io.Writer)
}

// base carries the state shared by all projection models.
type base struct {
	modelType  ModelType
	intrinsics []float64
	width      int
	height     int
	dist       distortion.Model
}

func newBase(modelType ModelType, intrinsics []float64, width, height int, dist distortion.Model) (base, error) {
	if width <= 0 || height <= 0 {
		return base{}, errors.Errorf("invalid image size (%d, %d)", width, height)
	}
	if dist != nil {
		if err := dist.CheckValid(); err != nil {
			return base{}, err
		}
	}
	cp := make([]float64, len(intrinsics))
	copy(cp, intrinsics)
	return base{modelType, cp, width, height, dist}, nil
}

func (b *base) Type() ModelType {
	return b.modelType
}

func (b *base) Parameters() []float64 {
	out := make([]float64, len(b.intrinsics))
	copy(out, b.intrinsics)
	return out
}

func (b *base) ImageWidth() int {
	return b.width
}

func (b *base) ImageHeight() int {
	return b.height
}

func (b *base) Distortion() distortion.Model {
	return b.dist
}

func (b *base) IsKeypointVisible(kp r2.Point) bool {
	return kp.X >= 0 && kp.Y >= 0 &&
		kp.X < float64(b.width) && kp.Y < float64(b.height)
}

func (b *base) equalBase(rhs *base) bool {
	if b.modelType != rhs.modelType || b.width != rhs.width || b.height != rhs.height {
		return false
	}
	if len(b.intrinsics) != len(rhs.intrinsics) {
		return false
	}
	for i := range b.intrinsics {
		if b.intrinsics[i] != rhs.intrinsics[i] {
			return false
		}
	}
	if (b.dist == nil) != (rhs.dist == nil) {
		return false
	}
	if b.dist != nil && !b.dist.Equal(rhs.dist) {
		return false
	}
	return true
}

func (b *base) cloneBase() base {
	cp := make([]float64, len(b.intrinsics))
	copy(cp, b.intrinsics)
	var dist distortion.Model
	if b.dist != nil {
		dist = b.dist.Clone()
	}
	return base{b.modelType, cp, b.width, b.height, dist}
}
