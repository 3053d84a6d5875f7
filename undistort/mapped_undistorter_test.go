package undistort

import (
	"image"
	"image/color"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/omnivis/omnicam/camera"
	"github.com/omnivis/omnicam/distortion"
)

// testCamera returns a small unified projection camera so map construction
// stays fast.
func testCamera(t *testing.T, dist distortion.Model) camera.Model {
	t.Helper()
	cam, err := camera.NewUnifiedProjection([]float64{0.9, 40, 40, 32, 24}, 64, 48, dist)
	test.That(t, err, test.ShouldBeNil)
	return cam
}

func testDistortion(t *testing.T) distortion.Model {
	t.Helper()
	dist, err := distortion.NewRadialTangential([]float64{-0.2, 0.05, 0.003, -0.002})
	test.That(t, err, test.ShouldBeNil)
	return dist
}

func TestOptimalNewCameraMatrixValidation(t *testing.T) {
	cam := testCamera(t, nil)
	_, err := GetOptimalNewCameraMatrix(cam, -0.1, 1, false)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = GetOptimalNewCameraMatrix(cam, 1.1, 1, false)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = GetOptimalNewCameraMatrix(cam, 0.5, 0, false)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = GetOptimalNewCameraMatrix(cam, 0.5, -2, false)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOptimalNewCameraMatrix(t *testing.T) {
	cam := testCamera(t, nil)
	for _, toPinhole := range []bool{false, true} {
		for _, alpha := range []float64{0, 0.5, 1} {
			m, err := GetOptimalNewCameraMatrix(cam, alpha, 1, toPinhole)
			test.That(t, err, test.ShouldBeNil)
			r, c := m.Dims()
			test.That(t, r, test.ShouldEqual, 3)
			test.That(t, c, test.ShouldEqual, 3)
			test.That(t, m.At(0, 0), test.ShouldBeGreaterThan, 0.0)
			test.That(t, m.At(1, 1), test.ShouldBeGreaterThan, 0.0)
			test.That(t, m.At(2, 2), test.ShouldEqual, 1.0)
		}
	}

	// Without distortion and keeping the unified model, the optimal matrix at
	// alpha=0 reproduces the original intrinsics up to the grid resolution.
	m, err := GetOptimalNewCameraMatrix(cam, 0, 1, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.At(0, 0), test.ShouldAlmostEqual, 40, 2)
	test.That(t, m.At(1, 1), test.ShouldAlmostEqual, 40, 2)
	test.That(t, m.At(0, 2), test.ShouldAlmostEqual, 32, 2)
	test.That(t, m.At(1, 2), test.ShouldAlmostEqual, 24, 2)
}

func TestBuildUndistortMap(t *testing.T) {
	input := testCamera(t, testDistortion(t))
	output := testCamera(t, nil)

	mapX, mapY, err := BuildUndistortMap(input, output, false)
	test.That(t, err, test.ShouldBeNil)
	rows, cols := mapX.Dims()
	test.That(t, rows, test.ShouldEqual, 48)
	test.That(t, cols, test.ShouldEqual, 64)
	rows, cols = mapY.Dims()
	test.That(t, rows, test.ShouldEqual, 48)
	test.That(t, cols, test.ShouldEqual, 64)

	// The source coordinates must agree with projecting the lifted bearing
	// through the input camera; spot-check the image center.
	bearing, ok := output.BackProject(r2.Point{X: 32, Y: 24})
	test.That(t, ok, test.ShouldBeTrue)
	kp, result := input.Project(bearing)
	test.That(t, result, test.ShouldEqual, camera.KeypointVisible)
	test.That(t, mapX.At(24, 32), test.ShouldAlmostEqual, kp.X, 1e-9)
	test.That(t, mapY.At(24, 32), test.ShouldAlmostEqual, kp.Y, 1e-9)

	// A pinhole target must really be a pinhole camera.
	_, _, err = BuildUndistortMap(input, output, true)
	test.That(t, err, test.ShouldNotBeNil)
	// The output camera must be distortion-free.
	_, _, err = BuildUndistortMap(input, testCamera(t, testDistortion(t)), false)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewMappedUndistorterValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cam := testCamera(t, testDistortion(t))
	_, err := NewMappedUndistorter(cam, -0.5, 1, Bilinear, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewMappedUndistorter(cam, 2, 1, Bilinear, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewMappedUndistorterToPinhole(cam, 0, 0, Bilinear, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewMappedUndistorter(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cam := testCamera(t, testDistortion(t))

	und, err := NewMappedUndistorter(cam, 0, 1, Bilinear, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, und.InputCamera().Equal(cam), test.ShouldBeTrue)
	test.That(t, und.OutputCamera().Type(), test.ShouldEqual, camera.UnifiedProjectionType)
	test.That(t, und.OutputCamera().Distortion(), test.ShouldBeNil)
	test.That(t, und.OutputCamera().ImageWidth(), test.ShouldEqual, 64)
	test.That(t, und.OutputCamera().ImageHeight(), test.ShouldEqual, 48)
	test.That(t, und.Interpolation(), test.ShouldEqual, Bilinear)

	// The undistorter works on an independent copy of the input camera.
	test.That(t, und.InputCamera(), test.ShouldNotEqual, cam)

	mapX, mapY := und.Maps()
	rows, cols := mapX.Dims()
	test.That(t, rows, test.ShouldEqual, 48)
	test.That(t, cols, test.ShouldEqual, 64)
	_, cols = mapY.Dims()
	test.That(t, cols, test.ShouldEqual, 64)

	// The output camera keeps the mirror parameter of the input.
	test.That(t, und.OutputCamera().Parameters()[0], test.ShouldEqual, 0.9)
}

func TestNewMappedUndistorterToPinhole(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cam := testCamera(t, testDistortion(t))

	und, err := NewMappedUndistorterToPinhole(cam, 0, 2, NearestNeighbor, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, und.OutputCamera().Type(), test.ShouldEqual, camera.PinholeType)
	test.That(t, und.OutputCamera().ImageWidth(), test.ShouldEqual, 128)
	test.That(t, und.OutputCamera().ImageHeight(), test.ShouldEqual, 96)
}

func TestUndistortImage(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cam := testCamera(t, testDistortion(t))

	for _, interp := range []InterpolationType{NearestNeighbor, Bilinear} {
		und, err := NewMappedUndistorter(cam, 0, 1, interp, logger)
		test.That(t, err, test.ShouldBeNil)

		// A uniform image must stay uniform wherever a valid source exists.
		src := image.NewNRGBA(image.Rect(0, 0, 64, 48))
		fill := color.NRGBA{R: 10, G: 200, B: 30, A: 255}
		for y := 0; y < 48; y++ {
			for x := 0; x < 64; x++ {
				src.SetNRGBA(x, y, fill)
			}
		}
		out, err := und.UndistortImage(src)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out.Bounds().Dx(), test.ShouldEqual, 64)
		test.That(t, out.Bounds().Dy(), test.ShouldEqual, 48)

		got := out.(*image.NRGBA).NRGBAAt(32, 24)
		test.That(t, got, test.ShouldResemble, fill)
	}

	und, err := NewMappedUndistorter(cam, 0, 1, Bilinear, logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = und.UndistortImage(nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = und.UndistortImage(image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	test.That(t, err, test.ShouldNotBeNil)
}
