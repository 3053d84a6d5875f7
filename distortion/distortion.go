// Package distortion provides pluggable lens distortion models that warp
// points on the normalized image plane, together with the analytic Jacobians
// needed for calibration and bundle adjustment.
package distortion

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Type is the name of the distortion model.
type Type string

const (
	// RadialTangentialType is for simple lenses of narrow field, the classic
	// Brown-Conrady radial plus tangential warp.
	RadialTangentialType = Type("radial_tangential")
	// EquidistantType is for wide-angle and fisheye lens distortion.
	EquidistantType = Type("equidistant")
)

// NumCoefficients is the fixed coefficient count shared by the shipped models.
const NumCoefficients = 4

// Model warps points on the normalized image plane. All implementations are
// safe for concurrent read-only use.
type Model interface {
	// Type returns the name of the distortion model.
	Type() Type
	// Parameters returns a copy of the distortion coefficients.
	Parameters() []float64
	// CheckValid checks if the model was built with valid coefficients.
	CheckValid() error
	// Distort applies the warp to a point on the normalized image plane.
	Distort(pt r2.Point) r2.Point
	// DistortWithCoefficients applies the warp using the given coefficients
	// instead of the stored ones; nil coeffs means use the stored ones. If jac
	// is non-nil it is filled with the 2x2 Jacobian of the warped point with
	// respect to pt; nil skips that computation entirely.
	DistortWithCoefficients(coeffs []float64, pt r2.Point, jac *mat.Dense) r2.Point
	// Undistort reverses the warp.
	Undistort(pt r2.Point) r2.Point
	// ParameterJacobian fills jac with the 2x4 Jacobian of the warped point
	// with respect to the coefficients, evaluated at the undistorted pt. Nil
	// coeffs means use the stored ones.
	ParameterJacobian(coeffs []float64, pt r2.Point, jac *mat.Dense)
	// Clone returns an independent deep copy of the model.
	Clone() Model
	// Equal reports whether other is the same model type with the same
	// coefficients.
	Equal(other Model) bool
}

// InvalidDistortionError is used when the distortion coefficients are invalid.
func InvalidDistortionError(msg string) error {
	return errors.Wrapf(errors.New("invalid distortion coefficients"), msg)
}

// New returns a Model given a valid Type and its coefficients.
func New(distortionType Type, coefficients []float64) (Model, error) {
	switch distortionType {
	case RadialTangentialType:
		return NewRadialTangential(coefficients)
	case EquidistantType:
		return NewEquidistant(coefficients)
	default:
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
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
