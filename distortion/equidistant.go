package distortion

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Equidistant is the eighth-order theta-polynomial fisheye distortion model
// with coefficients ordered [k1 k2 k3 k4].
//
// With r = ‖(x, y)‖ and θ = atan(r), the warp scales the point radially by
// θ_d / r where
//
//	θ_d = θ * (1 + k1*θ² + k2*θ⁴ + k3*θ⁶ + k4*θ⁸)
type Equidistant struct {
	K1 float64 `json:"k1"`
	K2 float64 `json:"k2"`
	K3 float64 `json:"k3"`
	K4 float64 `json:"k4"`
}

// radius below which the warp collapses to identity
const equidistantMinRadius = 1e-12

// NewEquidistant takes a slice of exactly 4 coefficients [k1 k2 k3 k4].
func NewEquidistant(coeffs []float64) (*Equidistant, error) {
	if len(coeffs) != NumCoefficients {
		return nil, errors.Errorf("equidistant model expects %d coefficients, got %d", NumCoefficients, len(coeffs))
	}
	return &Equidistant{coeffs[0], coeffs[1], coeffs[2], coeffs[3]}, nil
}

// Type returns the type of the distortion model.
func (eq *Equidistant) Type() Type {
	return EquidistantType
}

// Parameters returns the coefficients as [k1 k2 k3 k4].
func (eq *Equidistant) Parameters() []float64 {
	return []float64{eq.K1, eq.K2, eq.K3, eq.K4}
}

// CheckValid checks if the fields for Equidistant have valid inputs.
func (eq *Equidistant) CheckValid() error {
	if eq == nil {
		return InvalidDistortionError("equidistant coefficients not provided")
	}
	return nil
}

// Distort applies the warp to a point on the normalized image plane.
func (eq *Equidistant) Distort(pt r2.Point) r2.Point {
	return eq.DistortWithCoefficients(nil, pt, nil)
}

// DistortWithCoefficients applies the warp using the given coefficients (nil
// means the stored ones) and optionally fills jac with the 2x2 point Jacobian.
func (eq *Equidistant) DistortWithCoefficients(coeffs []float64, pt r2.Point, jac *mat.Dense) r2.Point {
	k1, k2, k3, k4 := eq.resolve(coeffs)

	x, y := pt.X, pt.Y
	r := math.Hypot(x, y)
	if r < equidistantMinRadius {
		if jac != nil {
			reshapeJacobian(jac, 2, 2)
			jac.Set(0, 0, 1)
			jac.Set(1, 1, 1)
		}
		return pt
	}

	theta := math.Atan(r)
	theta2 := theta * theta
	theta4 := theta2 * theta2
	theta6 := theta4 * theta2
	theta8 := theta4 * theta4
	thetad := theta * (1 + k1*theta2 + k2*theta4 + k3*theta6 + k4*theta8)
	scaling := thetad / r

	if jac != nil {
		reshapeJacobian(jac, 2, 2)
		// dθ_d/dθ and dθ/dr, then the radial quotient rule.
		dThetad := 1 + 3*k1*theta2 + 5*k2*theta4 + 7*k3*theta6 + 9*k4*theta8
		dThetadDr := dThetad / (1 + r*r)
		dScaling := (dThetadDr*r - thetad) / (r * r * r)
		jac.Set(0, 0, scaling+x*x*dScaling)
		jac.Set(0, 1, x*y*dScaling)
		jac.Set(1, 0, x*y*dScaling)
		jac.Set(1, 1, scaling+y*y*dScaling)
	}
	return r2.Point{X: x * scaling, Y: y * scaling}
}

// Undistort reverses the warp. The distorted radius equals θ_d, so the
// polynomial is inverted for θ with a Newton-Raphson iteration and the point
// rescaled by tan(θ)/θ_d.
func (eq *Equidistant) Undistort(pt r2.Point) r2.Point {
	const maxIterations = 20
	const tolerance = 1e-12

	rd := math.Hypot(pt.X, pt.Y)
	if rd < equidistantMinRadius {
		return pt
	}

	theta := rd
	for i := 0; i < maxIterations; i++ {
		theta2 := theta * theta
		theta4 := theta2 * theta2
		theta6 := theta4 * theta2
		theta8 := theta4 * theta4
		f := theta*(1+eq.K1*theta2+eq.K2*theta4+eq.K3*theta6+eq.K4*theta8) - rd
		if math.Abs(f) < tolerance {
			break
		}
		df := 1 + 3*eq.K1*theta2 + 5*eq.K2*theta4 + 7*eq.K3*theta6 + 9*eq.K4*theta8
		if df == 0 {
			break
		}
		theta -= f / df
	}

	scaling := math.Tan(theta) / rd
	return r2.Point{X: pt.X * scaling, Y: pt.Y * scaling}
}

// ParameterJacobian fills jac with the 2x4 Jacobian of the warped point with
// respect to [k1 k2 k3 k4], evaluated at the undistorted pt.
func (eq *Equidistant) ParameterJacobian(coeffs []float64, pt r2.Point, jac *mat.Dense) {
	reshapeJacobian(jac, 2, NumCoefficients)

	x, y := pt.X, pt.Y
	r := math.Hypot(x, y)
	if r < equidistantMinRadius {
		return
	}

	theta := math.Atan(r)
	theta2 := theta * theta
	pow := theta * theta2 // θ^(2i+1), starting at θ³
	for i := 0; i < NumCoefficients; i++ {
		jac.Set(0, i, x/r*pow)
		jac.Set(1, i, y/r*pow)
		pow *= theta2
	}
}

// Clone returns an independent deep copy of the model.
func (eq *Equidistant) Clone() Model {
	clone := *eq
	return &clone
}

// Equal reports whether other is an equidistant model with the same
// coefficients.
func (eq *Equidistant) Equal(other Model) bool {
	rhs, ok := other.(*Equidistant)
	if !ok {
		return false
	}
	return *eq == *rhs
}

func (eq *Equidistant) resolve(coeffs []float64) (k1, k2, k3, k4 float64) {
	if coeffs == nil {
		return eq.K1, eq.K2, eq.K3, eq.K4
	}
	if len(coeffs) != NumCoefficients {
		panic(errors.Errorf("equidistant model expects %d coefficients, got %d", NumCoefficients, len(coeffs)))
	}
	return coeffs[0], coeffs[1], coeffs[2], coeffs[3]
}
