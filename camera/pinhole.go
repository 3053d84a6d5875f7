package camera

import (
	"fmt"
	"io"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/omnivis/omnicam/distortion"
)

// PinholeNumParameters is the length of the pinhole model's intrinsics vector
// [fu fv cu cv].
const PinholeNumParameters = 4

// Pinhole implements the standard perspective projection model with optional
// lens distortion. It mainly serves as the target model when undistorting a
// unified projection camera to a perspective view.
type Pinhole struct {
	base
}

// NewPinhole constructs a pinhole camera from the intrinsics vector
// [fu fv cu cv], an image size in pixels, and an optional distortion model.
func NewPinhole(intrinsics []float64, width, height int, dist distortion.Model) (*Pinhole, error) {
	if err := validatePinholeIntrinsics(intrinsics); err != nil {
		return nil, err
	}
	b, err := newBase(PinholeType, intrinsics, width, height, dist)
	if err != nil {
		return nil, err
	}
	return &Pinhole{b}, nil
}

func validatePinholeIntrinsics(intrinsics []float64) error {
	if len(intrinsics) != PinholeNumParameters {
		return errors.Errorf("pinhole model expects %d intrinsics, got %d", PinholeNumParameters, len(intrinsics))
	}
	if intrinsics[0] <= 0 || intrinsics[1] <= 0 {
		return errors.Errorf("invalid focal length (%v, %v)", intrinsics[0], intrinsics[1])
	}
	if intrinsics[2] <= 0 || intrinsics[3] <= 0 {
		return errors.Errorf("invalid principal point (%v, %v)", intrinsics[2], intrinsics[3])
	}
	return nil
}

// Fu returns the horizontal focal length in pixels.
func (c *Pinhole) Fu() float64 { return c.intrinsics[0] }

// Fv returns the vertical focal length in pixels.
func (c *Pinhole) Fv() float64 { return c.intrinsics[1] }

// Cu returns the horizontal principal point in pixels.
func (c *Pinhole) Cu() float64 { return c.intrinsics[2] }

// Cv returns the vertical principal point in pixels.
func (c *Pinhole) Cv() float64 { return c.intrinsics[3] }

// SetParameters replaces the whole intrinsics vector after re-validation.
func (c *Pinhole) SetParameters(intrinsics []float64) error {
	if err := validatePinholeIntrinsics(intrinsics); err != nil {
		return err
	}
	copy(c.intrinsics, intrinsics)
	return nil
}

// Project maps a 3D point in the camera frame to a pixel keypoint. Points at
// or behind the image plane are classified invalid.
func (c *Pinhole) Project(point r3.Vector) (r2.Point, ProjectionResult) {
	if point.Z <= MinDepth {
		return r2.Point{}, ProjectionInvalid
	}

	rz := 1 / point.Z
	kp := r2.Point{X: point.X * rz, Y: point.Y * rz}
	if c.dist != nil {
		kp = c.dist.Distort(kp)
	}
	kp = r2.Point{X: c.Fu()*kp.X + c.Cu(), Y: c.Fv()*kp.Y + c.Cv()}

	if c.IsKeypointVisible(kp) {
		return kp, KeypointVisible
	}
	return kp, KeypointOutsideImageBox
}

// BackProject maps a pixel keypoint to a bearing vector on the z=1 plane.
// Every keypoint is liftable under the pinhole model.
func (c *Pinhole) BackProject(keypoint r2.Point) (r3.Vector, bool) {
	kp := r2.Point{
		X: (keypoint.X - c.Cu()) / c.Fu(),
		Y: (keypoint.Y - c.Cv()) / c.Fv(),
	}
	if c.dist != nil {
		kp = c.dist.Undistort(kp)
	}
	return r3.Vector{X: kp.X, Y: kp.Y, Z: 1}, true
}

// IsLiftable reports whether the keypoint can be back-projected; always true
// for the pinhole model.
func (c *Pinhole) IsLiftable(r2.Point) bool {
	return true
}

// Clone returns an independent deep copy, including the distortion model.
func (c *Pinhole) Clone() Model {
	return &Pinhole{c.cloneBase()}
}

// Equal reports whether other is a pinhole camera with the same intrinsics,
// image size, and distortion.
func (c *Pinhole) Equal(other Model) bool {
	rhs, ok := other.(*Pinhole)
	if !ok {
		return false
	}
	return c.equalBase(&rhs.base)
}

// PrintParameters writes a human-readable parameter dump to w.
func (c *Pinhole) PrintParameters(w io.Writer) {
	fmt.Fprintf(w, "camera model: %s\n", c.modelType)
	fmt.Fprintf(w, "  image size (cols, rows): %d, %d\n", c.width, c.height)
	fmt.Fprintf(w, "  focal length (cols, rows): %v, %v\n", c.Fu(), c.Fv())
	fmt.Fprintf(w, "  optical center (cols, rows): %v, %v\n", c.Cu(), c.Cv())
	if c.dist != nil {
		fmt.Fprintf(w, "  distortion (%s): %v\n", c.dist.Type(), c.dist.Parameters())
	}
}
