package distortion

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestNewDistortion(t *testing.T) {
	model, err := New(RadialTangentialType, []float64{-0.2, 0.05, 0.003, -0.002})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Type(), test.ShouldEqual, RadialTangentialType)

	model, err = New(EquidistantType, []float64{0.02, -0.005, 0.003, -0.0005})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Type(), test.ShouldEqual, EquidistantType)

	_, err = New(Type("fake_model"), []float64{1, 2, 3, 4})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(RadialTangentialType, []float64{1, 2})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(EquidistantType, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEqualAcrossModels(t *testing.T) {
	coeffs := []float64{0.01, 0.02, 0.03, 0.04}
	rt, err := NewRadialTangential(coeffs)
	test.That(t, err, test.ShouldBeNil)
	eq, err := NewEquidistant(coeffs)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, rt.Equal(rt), test.ShouldBeTrue)
	test.That(t, eq.Equal(eq), test.ShouldBeTrue)
	test.That(t, rt.Equal(eq), test.ShouldBeFalse)
	test.That(t, eq.Equal(rt), test.ShouldBeFalse)
}

// numericalPointJacobian approximates the 2x2 Jacobian of the warp at pt with
// centered finite differences.
func numericalPointJacobian(model Model, pt r2.Point, h float64) *mat.Dense {
	jac := mat.NewDense(2, 2, nil)
	for i := 0; i < 2; i++ {
		plus, minus := pt, pt
		if i == 0 {
			plus.X += h
			minus.X -= h
		} else {
			plus.Y += h
			minus.Y -= h
		}
		pp := model.Distort(plus)
		pm := model.Distort(minus)
		jac.Set(0, i, (pp.X-pm.X)/(2*h))
		jac.Set(1, i, (pp.Y-pm.Y)/(2*h))
	}
	return jac
}

// numericalParameterJacobian approximates the 2x4 Jacobian of the warp with
// respect to the coefficients with centered finite differences.
func numericalParameterJacobian(model Model, pt r2.Point, h float64) *mat.Dense {
	coeffs := model.Parameters()
	jac := mat.NewDense(2, len(coeffs), nil)
	for i := range coeffs {
		plus := model.Parameters()
		minus := model.Parameters()
		plus[i] += h
		minus[i] -= h
		pp := model.DistortWithCoefficients(plus, pt, nil)
		pm := model.DistortWithCoefficients(minus, pt, nil)
		jac.Set(0, i, (pp.X-pm.X)/(2*h))
		jac.Set(1, i, (pp.Y-pm.Y)/(2*h))
	}
	return jac
}

func assertMatrixAlmostEqual(t *testing.T, got, want mat.Matrix, tol float64) {
	t.Helper()
	gr, gc := got.Dims()
	wr, wc := want.Dims()
	test.That(t, gr, test.ShouldEqual, wr)
	test.That(t, gc, test.ShouldEqual, wc)
	for i := 0; i < wr; i++ {
		for j := 0; j < wc; j++ {
			w := want.At(i, j)
			test.That(t, got.At(i, j), test.ShouldAlmostEqual, w, tol*(1+math.Abs(w)))
		}
	}
}

var testPlanePoints = []r2.Point{
	{X: 0, Y: 0},
	{X: 0.1, Y: -0.05},
	{X: -0.3, Y: 0.2},
	{X: 0.5, Y: 0.45},
	{X: -0.7, Y: -0.6},
	{X: 0.75, Y: -0.2},
}
