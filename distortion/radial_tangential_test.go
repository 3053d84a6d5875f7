package distortion

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func testRadialTangential(t *testing.T) *RadialTangential {
	t.Helper()
	model, err := NewRadialTangential([]float64{-0.2, 0.05, 0.003, -0.002})
	test.That(t, err, test.ShouldBeNil)
	return model
}

func TestRadialTangentialConstruction(t *testing.T) {
	model := testRadialTangential(t)
	test.That(t, model.CheckValid(), test.ShouldBeNil)
	test.That(t, model.Parameters(), test.ShouldResemble, []float64{-0.2, 0.05, 0.003, -0.002})

	_, err := NewRadialTangential([]float64{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewRadialTangential([]float64{1, 2, 3, 4, 5})
	test.That(t, err, test.ShouldNotBeNil)

	var missing *RadialTangential
	test.That(t, missing.CheckValid(), test.ShouldNotBeNil)
}

func TestRadialTangentialRoundTrip(t *testing.T) {
	model := testRadialTangential(t)
	for _, pt := range testPlanePoints {
		distorted := model.Distort(pt)
		recovered := model.Undistort(distorted)
		test.That(t, recovered.X, test.ShouldAlmostEqual, pt.X, 1e-8)
		test.That(t, recovered.Y, test.ShouldAlmostEqual, pt.Y, 1e-8)
	}
}

func TestRadialTangentialPointJacobian(t *testing.T) {
	model := testRadialTangential(t)
	for _, pt := range testPlanePoints {
		jac := mat.NewDense(2, 2, nil)
		model.DistortWithCoefficients(nil, pt, jac)
		assertMatrixAlmostEqual(t, jac, numericalPointJacobian(model, pt, 1e-6), 1e-5)
	}
}

func TestRadialTangentialParameterJacobian(t *testing.T) {
	model := testRadialTangential(t)
	for _, pt := range testPlanePoints {
		jac := &mat.Dense{}
		model.ParameterJacobian(nil, pt, jac)
		assertMatrixAlmostEqual(t, jac, numericalParameterJacobian(model, pt, 1e-6), 1e-5)
	}
}

func TestRadialTangentialExternalCoefficients(t *testing.T) {
	model := testRadialTangential(t)
	pt := r2.Point{X: 0.3, Y: -0.2}

	// Zero external coefficients must behave like no distortion at all.
	identity := model.DistortWithCoefficients([]float64{0, 0, 0, 0}, pt, nil)
	test.That(t, identity.X, test.ShouldAlmostEqual, pt.X)
	test.That(t, identity.Y, test.ShouldAlmostEqual, pt.Y)

	// Stored coefficients passed explicitly must match the nil path.
	stored := model.DistortWithCoefficients(model.Parameters(), pt, nil)
	implicit := model.Distort(pt)
	test.That(t, stored.X, test.ShouldAlmostEqual, implicit.X)
	test.That(t, stored.Y, test.ShouldAlmostEqual, implicit.Y)

	test.That(t, func() { model.DistortWithCoefficients([]float64{1, 2}, pt, nil) }, test.ShouldPanic)
}

func TestRadialTangentialCloneEqual(t *testing.T) {
	model := testRadialTangential(t)
	clone := model.Clone()
	test.That(t, model.Equal(clone), test.ShouldBeTrue)
	test.That(t, clone.Equal(model), test.ShouldBeTrue)

	other, err := NewRadialTangential([]float64{-0.2, 0.05, 0.003, 0.1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Equal(other), test.ShouldBeFalse)
}
