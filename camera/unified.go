package camera

import (
	"fmt"
	"io"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/omnivis/omnicam/distortion"
)

// UnifiedNumParameters is the length of the unified model's intrinsics vector
// [xi fu fv cu cv].
const UnifiedNumParameters = 5

// UnifiedProjection implements the unified projection camera model for
// central catadioptric and fisheye cameras, with optional lens distortion.
//
// Intrinsic parameter ordering: xi, fu, fv, cu, cv.
//
// References: C. Geyer and K. Daniilidis, "A unifying theory for central
// panoramic systems and practical implications", ECCV 2000; J.P. Barreto and
// H. Araujo, "Issues on the geometry of central catadioptric image
// formation", CVPR 2001.
type UnifiedProjection struct {
	base
}

// NewUnifiedProjection constructs a unified projection camera from the
// intrinsics vector [xi fu fv cu cv], an image size in pixels, and an
// optional (nil allowed) distortion model.
func NewUnifiedProjection(intrinsics []float64, width, height int, dist distortion.Model) (*UnifiedProjection, error) {
	if err := validateUnifiedIntrinsics(intrinsics); err != nil {
		return nil, err
	}
	b, err := newBase(UnifiedProjectionType, intrinsics, width, height, dist)
	if err != nil {
		return nil, err
	}
	return &UnifiedProjection{b}, nil
}

// NewUnifiedProjectionFromScalars is a convenience constructor taking the
// intrinsics as individual values.
func NewUnifiedProjectionFromScalars(xi, fu, fv, cu, cv float64, width, height int, dist distortion.Model) (*UnifiedProjection, error) {
	return NewUnifiedProjection([]float64{xi, fu, fv, cu, cv}, width, height, dist)
}

// NewTestUnifiedProjection returns a camera with fixed intrinsics for unit
// testing (xi 0.9, focal 400/400, center 320/240, 640x480).
func NewTestUnifiedProjection(dist distortion.Model) *UnifiedProjection {
	cam, err := NewUnifiedProjectionFromScalars(0.9, 400, 400, 320, 240, 640, 480, dist)
	if err != nil {
		panic(err)
	}
	return cam
}

func validateUnifiedIntrinsics(intrinsics []float64) error {
	if len(intrinsics) != UnifiedNumParameters {
		return errors.Errorf("unified projection model expects %d intrinsics, got %d", UnifiedNumParameters, len(intrinsics))
	}
	if intrinsics[0] < 0 {
		return errors.Errorf("invalid mirror parameter xi = %v", intrinsics[0])
	}
	if intrinsics[1] <= 0 || intrinsics[2] <= 0 {
		return errors.Errorf("invalid focal length (%v, %v)", intrinsics[1], intrinsics[2])
	}
	if intrinsics[3] <= 0 || intrinsics[4] <= 0 {
		return errors.Errorf("invalid principal point (%v, %v)", intrinsics[3], intrinsics[4])
	}
	return nil
}

// Xi returns the mirror parameter.
func (c *UnifiedProjection) Xi() float64 { return c.intrinsics[0] }

// Fu returns the horizontal focal length in pixels.
func (c *UnifiedProjection) Fu() float64 { return c.intrinsics[1] }

// Fv returns the vertical focal length in pixels.
func (c *UnifiedProjection) Fv() float64 { return c.intrinsics[2] }

// Cu returns the horizontal principal point in pixels.
func (c *UnifiedProjection) Cu() float64 { return c.intrinsics[3] }

// Cv returns the vertical principal point in pixels.
func (c *UnifiedProjection) Cv() float64 { return c.intrinsics[4] }

// FovParameter bounds the valid field of view of the forward projection: xi
// itself when xi <= 1, else 1/xi.
func FovParameter(xi float64) float64 {
	if xi <= 1 {
		return xi
	}
	return 1 / xi
}

// SetParameters replaces the whole intrinsics vector after re-validation.
func (c *UnifiedProjection) SetParameters(intrinsics []float64) error {
	if err := validateUnifiedIntrinsics(intrinsics); err != nil {
		return err
	}
	copy(c.intrinsics, intrinsics)
	return nil
}

// Project maps a 3D point in the camera frame to a pixel keypoint.
func (c *UnifiedProjection) Project(point r3.Vector) (r2.Point, ProjectionResult) {
	return c.ProjectFunctional(point, nil, nil, nil, nil, nil)
}

// ProjectWithJacobians projects a point and fills the requested Jacobians;
// any of the outputs may be nil to skip its computation. See
// ProjectFunctional for the Jacobian shapes.
func (c *UnifiedProjection) ProjectWithJacobians(
	point r3.Vector,
	jacPoint, jacIntrinsics, jacDistortion *mat.Dense,
) (r2.Point, ProjectionResult) {
	return c.ProjectFunctional(point, nil, nil, jacPoint, jacIntrinsics, jacDistortion)
}

// ProjectFunctional projects a 3D point using externally supplied intrinsics
// and distortion coefficients instead of the stored ones (nil falls back to
// the stored values), so optimizers can perturb parameters without mutating
// camera state. A non-nil intrinsics slice must have exactly
// UnifiedNumParameters entries.
//
// The optional Jacobian outputs are filled on request; nil skips the
// computation entirely:
//
//	jacPoint      2x3  d(keypoint)/d(point)
//	jacIntrinsics 2x5  d(keypoint)/d(xi, fu, fv, cu, cv)
//	jacDistortion 2x4  d(keypoint)/d(distortion coefficients)
//
// An empty mat.Dense output is shaped in place; a preallocated one must
// already have the right shape.
func (c *UnifiedProjection) ProjectFunctional(
	point r3.Vector,
	intrinsics, distortionCoeffs []float64,
	jacPoint, jacIntrinsics, jacDistortion *mat.Dense,
) (r2.Point, ProjectionResult) {
	if intrinsics == nil {
		intrinsics = c.intrinsics
	} else if len(intrinsics) != UnifiedNumParameters {
		panic(errors.Errorf("unified projection model expects %d intrinsics, got %d", UnifiedNumParameters, len(intrinsics)))
	}
	if distortionCoeffs == nil && c.dist != nil {
		distortionCoeffs = c.dist.Parameters()
	}

	xi, fu, fv := intrinsics[0], intrinsics[1], intrinsics[2]
	cu, cv := intrinsics[3], intrinsics[4]

	x, y, z := point.X, point.Y, point.Z
	d := point.Norm()
	rz := 1 / (z + xi*d)

	// The unified-sphere projection is only defined in front of the mirror's
	// field of view; past it the denominator approaches the singularity.
	if z <= -FovParameter(xi)*d {
		return r2.Point{}, ProjectionInvalid
	}

	undistorted := r2.Point{X: x * rz, Y: y * rz}
	kp := undistorted

	// Warp through the distortion model, keeping its 2x2 point Jacobian
	// around whenever a requested output chains through it.
	jd00, jd01, jd10, jd11 := 1.0, 0.0, 0.0, 1.0
	if c.dist != nil {
		var jacDist *mat.Dense
		if jacPoint != nil || jacIntrinsics != nil {
			jacDist = mat.NewDense(2, 2, nil)
		}
		kp = c.dist.DistortWithCoefficients(distortionCoeffs, kp, jacDist)
		if jacDist != nil {
			jd00, jd01 = jacDist.At(0, 0), jacDist.At(0, 1)
			jd10, jd11 = jacDist.At(1, 0), jacDist.At(1, 1)
		}
	}

	if jacPoint != nil {
		reshapeJacobian(jacPoint, 2, 3)
		// Quotient-rule derivatives of (x*rz, y*rz); the off-diagonal term is
		// shared between both rows.
		rz2 := rz * rz / d
		j00 := rz2 * (d*z + xi*(y*y+z*z))
		j01 := -rz2 * xi * x * y
		j11 := rz2 * (d*z + xi*(x*x+z*z))
		rz3 := rz2 * (-xi*z - d)
		j02 := x * rz3
		j12 := y * rz3
		jacPoint.Set(0, 0, fu*(j00*jd00+j01*jd01))
		jacPoint.Set(1, 0, fv*(j00*jd10+j01*jd11))
		jacPoint.Set(0, 1, fu*(j01*jd00+j11*jd01))
		jacPoint.Set(1, 1, fv*(j01*jd10+j11*jd11))
		jacPoint.Set(0, 2, fu*(j02*jd00+j12*jd01))
		jacPoint.Set(1, 2, fv*(j02*jd10+j12*jd11))
	}

	if jacIntrinsics != nil {
		reshapeJacobian(jacIntrinsics, 2, UnifiedNumParameters)
		// Sensitivity of the sphere projection to the mirror parameter,
		// chained through the distortion warp.
		jxiU := -undistorted.X * d * rz
		jxiV := -undistorted.Y * d * rz
		jacIntrinsics.Set(0, 0, fu*(jd00*jxiU+jd01*jxiV))
		jacIntrinsics.Set(1, 0, fv*(jd10*jxiU+jd11*jxiV))
		jacIntrinsics.Set(0, 1, kp.X)
		jacIntrinsics.Set(0, 3, 1)
		jacIntrinsics.Set(1, 2, kp.Y)
		jacIntrinsics.Set(1, 4, 1)
	}

	if c.dist != nil && jacDistortion != nil {
		c.dist.ParameterJacobian(distortionCoeffs, undistorted, jacDistortion)
		_, n := jacDistortion.Dims()
		for j := 0; j < n; j++ {
			jacDistortion.Set(0, j, fu*jacDistortion.At(0, j))
			jacDistortion.Set(1, j, fv*jacDistortion.At(1, j))
		}
	}

	kp = r2.Point{X: fu*kp.X + cu, Y: fv*kp.Y + cv}
	return kp, c.evaluateProjectionResult(kp, point)
}

// evaluateProjectionResult classifies a finished projection by keypoint
// visibility and a minimum-depth floor on the original point.
func (c *UnifiedProjection) evaluateProjectionResult(kp r2.Point, point r3.Vector) ProjectionResult {
	deepEnough := point.Norm2() > MinDepth*MinDepth
	switch {
	case !deepEnough:
		return ProjectionInvalid
	case c.IsKeypointVisible(kp):
		return KeypointVisible
	default:
		return KeypointOutsideImageBox
	}
}

// BackProject maps a pixel keypoint to a bearing vector with the derived
// third component (z=1-equivalent scale, not globally normalized). The
// boolean reports whether the keypoint is liftable; image-box visibility is
// not checked here.
func (c *UnifiedProjection) BackProject(keypoint r2.Point) (r3.Vector, bool) {
	xi := c.Xi()

	kp := r2.Point{
		X: (keypoint.X - c.Cu()) / c.Fu(),
		Y: (keypoint.Y - c.Cv()) / c.Fv(),
	}
	if c.dist != nil {
		kp = c.dist.Undistort(kp)
	}

	rho2d := kp.X*kp.X + kp.Y*kp.Y
	// Clamp away negative values caused by floating-point noise.
	tmp := math.Max(1+(1-xi*xi)*rho2d, 0)

	bearing := r3.Vector{
		X: kp.X,
		Y: kp.Y,
		Z: 1 - xi*(rho2d+1)/(xi+math.Sqrt(tmp)),
	}
	return bearing, isUndistortedKeypointValid(rho2d, xi)
}

// isUndistortedKeypointValid encodes the domain boundary of the inverse map:
// for xi > 1 the model is only invertible inside a bounded disk on the
// normalized plane.
func isUndistortedKeypointValid(rho2d, xi float64) bool {
	return xi <= 1 || rho2d <= 1/(xi*xi-1)
}

// IsLiftable reports whether the keypoint can be back-projected to a valid
// bearing vector under the current intrinsics and distortion.
func (c *UnifiedProjection) IsLiftable(keypoint r2.Point) bool {
	kp := r2.Point{
		X: (keypoint.X - c.Cu()) / c.Fu(),
		Y: (keypoint.Y - c.Cv()) / c.Fv(),
	}
	if c.dist != nil {
		kp = c.dist.Undistort(kp)
	}
	rho2d := kp.X*kp.X + kp.Y*kp.Y
	return isUndistortedKeypointValid(rho2d, c.Xi())
}

// Clone returns an independent deep copy, including the distortion model.
func (c *UnifiedProjection) Clone() Model {
	return &UnifiedProjection{c.cloneBase()}
}

// Equal reports whether other is a unified projection camera with the same
// intrinsics, image size, and distortion.
func (c *UnifiedProjection) Equal(other Model) bool {
	rhs, ok := other.(*UnifiedProjection)
	if !ok {
		return false
	}
	return c.equalBase(&rhs.base)
}

// PrintParameters writes a human-readable parameter dump to w.
func (c *UnifiedProjection) PrintParameters(w io.Writer) {
	fmt.Fprintf(w, "camera model: %s\n", c.modelType)
	fmt.Fprintf(w, "  image size (cols, rows): %d, %d\n", c.width, c.height)
	fmt.Fprintf(w, "  mirror parameter (xi): %v\n", c.Xi())
	fmt.Fprintf(w, "  focal length (cols, rows): %v, %v\n", c.Fu(), c.Fv())
	fmt.Fprintf(w, "  optical center (cols, rows): %v, %v\n", c.Cu(), c.Cv())
	if c.dist != nil {
		fmt.Fprintf(w, "  distortion (%s): %v\n", c.dist.Type(), c.dist.Parameters())
	}
}

// reshapeJacobian readies jac to hold an r x c Jacobian, adopting caller
// storage when it is already the right shape.
func reshapeJacobian(jac *mat.Dense, r, c int) {
	if jac.IsEmpty() {
		jac.ReuseAs(r, c)
		return
	}
	jr, jc := jac.Dims()
	if jr != r || jc != c {
		panic(errors.Errorf("jacobian output must be %dx%d, got %dx%d", r, c, jr, jc))
	}
	jac.Zero()
}
