package undistort

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/omnivis/omnicam/camera"
)

// invalidMapEntry marks output pixels with no valid source coordinate.
const invalidMapEntry = -1

// BuildUndistortMap produces per-pixel lookup tables mapping every pixel of
// the output camera's image to source coordinates in the input camera's
// image: each output pixel is lifted to a bearing through the output model
// and projected through the input model. The returned matrices are sized
// output-height x output-width; entries with no valid source are set to -1.
func BuildUndistortMap(input, output camera.Model, toPinhole bool) (mapX, mapY *mat.Dense, err error) {
	if toPinhole && output.Type() != camera.PinholeType {
		return nil, nil, errors.Errorf("pinhole undistortion requires a pinhole output camera, got %q", output.Type())
	}
	if output.Distortion() != nil {
		return nil, nil, errors.New("output camera must not have a distortion model")
	}

	width := output.ImageWidth()
	height := output.ImageHeight()
	mapX = mat.NewDense(height, width, nil)
	mapY = mat.NewDense(height, width, nil)

	for v := 0; v < height; v++ {
		for u := 0; u < width; u++ {
			bearing, ok := output.BackProject(r2.Point{X: float64(u), Y: float64(v)})
			if !ok {
				mapX.Set(v, u, invalidMapEntry)
				mapY.Set(v, u, invalidMapEntry)
				continue
			}
			kp, result := input.Project(bearing)
			if result == camera.ProjectionInvalid {
				mapX.Set(v, u, invalidMapEntry)
				mapY.Set(v, u, invalidMapEntry)
				continue
			}
			mapX.Set(v, u, kp.X)
			mapY.Set(v, u, kp.Y)
		}
	}
	return mapX, mapY, nil
}
