// Package undistort builds and applies per-pixel remap tables that remove
// lens distortion from images taken by a calibrated camera, optionally
// reprojecting to a perspective (pinhole) view.
package undistort

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/omnivis/omnicam/camera"
)

// gridSteps is the number of border samples per image dimension used when
// estimating the undistorted image extent.
const gridSteps = 9

// GetOptimalNewCameraMatrix computes the 3x3 camera matrix
// [[fu 0 cu] [0 fv cv] [0 0 1]] of an undistorted output view. alpha blends
// between a view showing only valid pixels (0) and one retaining all source
// pixels (1); scale resizes the output relative to the input image.
func GetOptimalNewCameraMatrix(cam camera.Model, alpha, scale float64, toPinhole bool) (*mat.Dense, error) {
	if alpha < 0 || alpha > 1 {
		return nil, errors.Errorf("alpha must be in [0, 1], got %v", alpha)
	}
	if scale <= 0 {
		return nil, errors.Errorf("scale must be positive, got %v", scale)
	}

	inner, outer, err := undistortedRectangles(cam, toPinhole)
	if err != nil {
		return nil, err
	}

	newWidth := scale * float64(cam.ImageWidth())
	newHeight := scale * float64(cam.ImageHeight())

	// Focal/center mapping the inner (all-valid) rectangle to the viewport.
	fu0 := newWidth / (inner.maxX - inner.minX)
	fv0 := newHeight / (inner.maxY - inner.minY)
	cu0 := -fu0 * inner.minX
	cv0 := -fv0 * inner.minY

	// Ditto for the outer (all-source-pixels) rectangle.
	fu1 := newWidth / (outer.maxX - outer.minX)
	fv1 := newHeight / (outer.maxY - outer.minY)
	cu1 := -fu1 * outer.minX
	cv1 := -fv1 * outer.minY

	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, fu0*(1-alpha)+fu1*alpha)
	m.Set(1, 1, fv0*(1-alpha)+fv1*alpha)
	m.Set(0, 2, cu0*(1-alpha)+cu1*alpha)
	m.Set(1, 2, cv0*(1-alpha)+cv1*alpha)
	m.Set(2, 2, 1)
	return m, nil
}

type rectangle struct {
	minX, minY, maxX, maxY float64
}

// undistortedRectangles back-projects a border grid of the input image onto
// the target normalized plane and returns the largest rectangle covered by
// valid pixels only (inner) and the bounding box of all samples (outer).
func undistortedRectangles(cam camera.Model, toPinhole bool) (inner, outer rectangle, err error) {
	xi := mirrorParameter(cam)
	if toPinhole {
		xi = 0
	}

	outer = rectangle{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	inner = rectangle{math.Inf(-1), math.Inf(-1), math.Inf(1), math.Inf(1)}

	width := float64(cam.ImageWidth() - 1)
	height := float64(cam.ImageHeight() - 1)
	for i := 0; i < gridSteps; i++ {
		for j := 0; j < gridSteps; j++ {
			kp := r2.Point{
				X: width * float64(j) / (gridSteps - 1),
				Y: height * float64(i) / (gridSteps - 1),
			}
			bearing, ok := cam.BackProject(kp)
			if !ok {
				continue
			}
			pt, ok := normalizedPlanePoint(bearing, xi)
			if !ok {
				continue
			}

			outer.minX = math.Min(outer.minX, pt.X)
			outer.maxX = math.Max(outer.maxX, pt.X)
			outer.minY = math.Min(outer.minY, pt.Y)
			outer.maxY = math.Max(outer.maxY, pt.Y)

			if j == 0 {
				inner.minX = math.Max(inner.minX, pt.X)
			}
			if j == gridSteps-1 {
				inner.maxX = math.Min(inner.maxX, pt.X)
			}
			if i == 0 {
				inner.minY = math.Max(inner.minY, pt.Y)
			}
			if i == gridSteps-1 {
				inner.maxY = math.Min(inner.maxY, pt.Y)
			}
		}
	}

	if !(inner.minX < inner.maxX && inner.minY < inner.maxY) ||
		!(outer.minX < outer.maxX && outer.minY < outer.maxY) {
		return rectangle{}, rectangle{}, errors.New("cannot determine the undistorted image extent for this camera")
	}
	return inner, outer, nil
}

// normalizedPlanePoint projects a bearing vector onto the normalized image
// plane of a camera with the given mirror parameter (0 for pinhole).
func normalizedPlanePoint(bearing r3.Vector, xi float64) (r2.Point, bool) {
	den := bearing.Z + xi*bearing.Norm()
	if den <= 0 {
		return r2.Point{}, false
	}
	return r2.Point{X: bearing.X / den, Y: bearing.Y / den}, true
}

// mirrorParameter returns the unified model's xi, or 0 for other models.
func mirrorParameter(cam camera.Model) float64 {
	if cam.Type() == camera.UnifiedProjectionType {
		return cam.Parameters()[0]
	}
	return 0
}
