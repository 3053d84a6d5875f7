package undistort

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/omnivis/omnicam/camera"
)

// InterpolationType selects how source pixels are sampled when applying a
// remap table.
type InterpolationType int

const (
	// NearestNeighbor samples the closest source pixel.
	NearestNeighbor InterpolationType = iota
	// Bilinear blends the four closest source pixels.
	Bilinear
)

func (it InterpolationType) String() string {
	switch it {
	case NearestNeighbor:
		return "nearest_neighbor"
	case Bilinear:
		return "bilinear"
	default:
		return "unknown"
	}
}

// MappedUndistorter bundles an input camera, the undistorted output camera,
// and precomputed per-pixel lookup tables between them.
type MappedUndistorter struct {
	input  camera.Model
	output camera.Model
	mapX   *mat.Dense
	mapY   *mat.Dense
	interp InterpolationType
}

// NewMappedUndistorter builds an undistorter that only removes the lens
// distortion effects, keeping the unified projection.
func NewMappedUndistorter(cam camera.Model, alpha, scale float64, interp InterpolationType, logger golog.Logger) (*MappedUndistorter, error) {
	return newMappedUndistorter(cam, alpha, scale, false, interp, logger)
}

// NewMappedUndistorterToPinhole builds an undistorter whose output camera is
// a perspective (pinhole) view.
func NewMappedUndistorterToPinhole(cam camera.Model, alpha, scale float64, interp InterpolationType, logger golog.Logger) (*MappedUndistorter, error) {
	return newMappedUndistorter(cam, alpha, scale, true, interp, logger)
}

func newMappedUndistorter(
	cam camera.Model,
	alpha, scale float64,
	toPinhole bool,
	interp InterpolationType,
	logger golog.Logger,
) (*MappedUndistorter, error) {
	input := cam.Clone()

	m, err := GetOptimalNewCameraMatrix(input, alpha, scale, toPinhole)
	if err != nil {
		return nil, err
	}

	outWidth := int(scale * float64(input.ImageWidth()))
	outHeight := int(scale * float64(input.ImageHeight()))

	modelType := camera.PinholeType
	intrinsics := []float64{m.At(0, 0), m.At(1, 1), m.At(0, 2), m.At(1, 2)}
	if !toPinhole {
		modelType = camera.UnifiedProjectionType
		intrinsics = append([]float64{mirrorParameter(input)}, intrinsics...)
	}
	output, err := camera.New(modelType, intrinsics, outWidth, outHeight, nil)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build the undistorted output camera")
	}

	mapX, mapY, err := BuildUndistortMap(input, output, toPinhole)
	if err != nil {
		return nil, err
	}
	logger.Debugw("built undistortion maps",
		"input_size", []int{input.ImageWidth(), input.ImageHeight()},
		"output_size", []int{outWidth, outHeight},
		"to_pinhole", toPinhole,
		"interpolation", interp.String())

	return &MappedUndistorter{input, output, mapX, mapY, interp}, nil
}

// InputCamera returns the camera the remap tables were built for.
func (u *MappedUndistorter) InputCamera() camera.Model {
	return u.input
}

// OutputCamera returns the distortion-free camera of the remapped images.
func (u *MappedUndistorter) OutputCamera() camera.Model {
	return u.output
}

// Maps returns the per-pixel source coordinate tables, sized
// output-height x output-width.
func (u *MappedUndistorter) Maps() (mapX, mapY *mat.Dense) {
	return u.mapX, u.mapY
}

// Interpolation returns the sampling mode used by UndistortImage.
func (u *MappedUndistorter) Interpolation() InterpolationType {
	return u.interp
}

// UndistortImage applies the remap tables to an image taken by the input
// camera and returns the undistorted output image. Output pixels with no
// valid source stay transparent black.
func (u *MappedUndistorter) UndistortImage(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	bounds := img.Bounds()
	if bounds.Dx() != u.input.ImageWidth() || bounds.Dy() != u.input.ImageHeight() {
		return nil, errors.Errorf("image dimensions and intrinsics don't match: Image(%d,%d) != Intrinsics(%d,%d)",
			bounds.Dx(), bounds.Dy(), u.input.ImageWidth(), u.input.ImageHeight())
	}

	src := imaging.Clone(img)
	out := image.NewNRGBA(image.Rect(0, 0, u.output.ImageWidth(), u.output.ImageHeight()))
	for v := 0; v < u.output.ImageHeight(); v++ {
		for x := 0; x < u.output.ImageWidth(); x++ {
			sx, sy := u.mapX.At(v, x), u.mapY.At(v, x)
			switch u.interp {
			case NearestNeighbor:
				if c, ok := nearestNeighborColor(src, sx, sy); ok {
					out.SetNRGBA(x, v, c)
				}
			case Bilinear:
				if c, ok := bilinearColor(src, sx, sy); ok {
					out.SetNRGBA(x, v, c)
				}
			}
		}
	}
	return out, nil
}

// nearestNeighborColor samples the source pixel closest to (x, y).
func nearestNeighborColor(img *image.NRGBA, x, y float64) (color.NRGBA, bool) {
	ix, iy := int(math.Round(x)), int(math.Round(y))
	if !(image.Point{ix, iy}).In(img.Bounds()) {
		return color.NRGBA{}, false
	}
	return img.NRGBAAt(ix, iy), true
}

// bilinearColor blends the four source pixels surrounding (x, y).
func bilinearColor(img *image.NRGBA, x, y float64) (color.NRGBA, bool) {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	if x < 0 || y < 0 || x > float64(width-1) || y > float64(height-1) {
		return color.NRGBA{}, false
	}

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	if x1 >= width {
		x1 = width - 1
	}
	y1 := y0 + 1
	if y1 >= height {
		y1 = height - 1
	}
	dx := x - float64(x0)
	dy := y - float64(y0)

	c00 := img.NRGBAAt(x0, y0)
	c10 := img.NRGBAAt(x1, y0)
	c01 := img.NRGBAAt(x0, y1)
	c11 := img.NRGBAAt(x1, y1)

	blend := func(a, b, c, d uint8) uint8 {
		top := float64(a)*(1-dx) + float64(b)*dx
		bottom := float64(c)*(1-dx) + float64(d)*dx
		return uint8(math.Round(top*(1-dy) + bottom*dy))
	}
	return color.NRGBA{
		R: blend(c00.R, c10.R, c01.R, c11.R),
		G: blend(c00.G, c10.G, c01.G, c11.G),
		B: blend(c00.B, c10.B, c01.B, c11.B),
		A: blend(c00.A, c10.A, c01.A, c11.A),
	}, true
}
