package distortion

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// RadialTangential is the Brown-Conrady distortion model with two radial and
// two tangential coefficients, ordered [k1 k2 p1 p2].
//
// The forward warp on a normalized image plane point (x, y) is
//
//	x_d = x*(1 + k1*r² + k2*r⁴) + 2*p1*x*y + p2*(r² + 2*x²)
//	y_d = y*(1 + k1*r² + k2*r⁴) + 2*p2*x*y + p1*(r² + 2*y²)
//
// with r² = x² + y².
type RadialTangential struct {
	RadialK1     float64 `json:"k1"`
	RadialK2     float64 `json:"k2"`
	TangentialP1 float64 `json:"p1"`
	TangentialP2 float64 `json:"p2"`
}

// NewRadialTangential takes a slice of exactly 4 coefficients [k1 k2 p1 p2].
func NewRadialTangential(coeffs []float64) (*RadialTangential, error) {
	if len(coeffs) != NumCoefficients {
		return nil, errors.Errorf("radial-tangential model expects %d coefficients, got %d", NumCoefficients, len(coeffs))
	}
	return &RadialTangential{coeffs[0], coeffs[1], coeffs[2], coeffs[3]}, nil
}

// Type returns the type of the distortion model.
func (rt *RadialTangential) Type() Type {
	return RadialTangentialType
}

// Parameters returns the coefficients as [k1 k2 p1 p2].
func (rt *RadialTangential) Parameters() []float64 {
	return []float64{rt.RadialK1, rt.RadialK2, rt.TangentialP1, rt.TangentialP2}
}

// CheckValid checks if the fields for RadialTangential have valid inputs.
func (rt *RadialTangential) CheckValid() error {
	if rt == nil {
		return InvalidDistortionError("radial-tangential coefficients not provided")
	}
	return nil
}

// Distort applies the warp to a point on the normalized image plane.
func (rt *RadialTangential) Distort(pt r2.Point) r2.Point {
	return rt.DistortWithCoefficients(nil, pt, nil)
}

// DistortWithCoefficients applies the warp using the given coefficients (nil
// means the stored ones) and optionally fills jac with the 2x2 point Jacobian.
func (rt *RadialTangential) DistortWithCoefficients(coeffs []float64, pt r2.Point, jac *mat.Dense) r2.Point {
	k1, k2, p1, p2 := rt.resolve(coeffs)

	x, y := pt.X, pt.Y
	mx2 := x * x
	my2 := y * y
	mxy := x * y
	rho2 := mx2 + my2
	rho4 := rho2 * rho2
	rad := 1 + k1*rho2 + k2*rho4

	out := r2.Point{
		X: x*rad + 2*p1*mxy + p2*(rho2+2*mx2),
		Y: y*rad + 2*p2*mxy + p1*(rho2+2*my2),
	}

	if jac != nil {
		reshapeJacobian(jac, 2, 2)
		dRad := 2*k1 + 4*k2*rho2
		jac.Set(0, 0, rad+mx2*dRad+2*p1*y+6*p2*x)
		jac.Set(0, 1, mxy*dRad+2*p1*x+2*p2*y)
		jac.Set(1, 0, mxy*dRad+2*p2*y+2*p1*x)
		jac.Set(1, 1, rad+my2*dRad+2*p2*x+6*p1*y)
	}
	return out
}

// Undistort reverses the warp with a Newton-Raphson iteration against the
// forward model, starting from the distorted point.
func (rt *RadialTangential) Undistort(pt r2.Point) r2.Point {
	const maxIterations = 20
	const tolerance = 1e-10

	guess := pt
	jac := mat.NewDense(2, 2, nil)
	for i := 0; i < maxIterations; i++ {
		est := rt.DistortWithCoefficients(nil, guess, jac)
		errX := est.X - pt.X
		errY := est.Y - pt.Y
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}
		det := jac.At(0, 0)*jac.At(1, 1) - jac.At(0, 1)*jac.At(1, 0)
		if det == 0 {
			break
		}
		guess.X -= (jac.At(1, 1)*errX - jac.At(0, 1)*errY) / det
		guess.Y -= (-jac.At(1, 0)*errX + jac.At(0, 0)*errY) / det
	}
	return guess
}

// ParameterJacobian fills jac with the 2x4 Jacobian of the warped point with
// respect to [k1 k2 p1 p2], evaluated at the undistorted pt.
func (rt *RadialTangential) ParameterJacobian(coeffs []float64, pt r2.Point, jac *mat.Dense) {
	reshapeJacobian(jac, 2, NumCoefficients)

	x, y := pt.X, pt.Y
	mx2 := x * x
	my2 := y * y
	mxy := x * y
	rho2 := mx2 + my2
	rho4 := rho2 * rho2

	jac.Set(0, 0, x*rho2)
	jac.Set(0, 1, x*rho4)
	jac.Set(0, 2, 2*mxy)
	jac.Set(0, 3, rho2+2*mx2)
	jac.Set(1, 0, y*rho2)
	jac.Set(1, 1, y*rho4)
	jac.Set(1, 2, rho2+2*my2)
	jac.Set(1, 3, 2*mxy)
}

// Clone returns an independent deep copy of the model.
func (rt *RadialTangential) Clone() Model {
	clone := *rt
	return &clone
}

// Equal reports whether other is a radial-tangential model with the same
// coefficients.
func (rt *RadialTangential) Equal(other Model) bool {
	rhs, ok := other.(*RadialTangential)
	if !ok {
		return false
	}
	return *rt == *rhs
}

func (rt *RadialTangential) resolve(coeffs []float64) (k1, k2, p1, p2 float64) {
	if coeffs == nil {
		return rt.RadialK1, rt.RadialK2, rt.TangentialP1, rt.TangentialP2
	}
	if len(coeffs) != NumCoefficients {
		panic(errors.Errorf("radial-tangential model expects %d coefficients, got %d", NumCoefficients, len(coeffs)))
	}
	return coeffs[0], coeffs[1], coeffs[2], coeffs[3]
}
