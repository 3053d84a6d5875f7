package camera

import (
	"github.com/pkg/errors"

	"github.com/omnivis/omnicam/distortion"
)

// New constructs a camera Model of the given type from its ordered intrinsics
// vector, image size, and optional distortion model.
func New(modelType ModelType, intrinsics []float64, width, height int, dist distortion.Model) (Model, error) {
	switch modelType {
	case UnifiedProjectionType:
		return NewUnifiedProjection(intrinsics, width, height, dist)
	case PinholeType:
		return NewPinhole(intrinsics, width, height, dist)
	default:
		return nil, errors.Errorf("do not know how to build %q camera model", modelType)
	}
}
