package camera

// ProjectionResult classifies the outcome of projecting a 3D point into the
// image plane.
type ProjectionResult int

const (
	// KeypointVisible means the projection succeeded and the keypoint lies
	// inside the image box.
	KeypointVisible ProjectionResult = iota
	// KeypointOutsideImageBox means the projection succeeded but the keypoint
	// falls outside the image box.
	KeypointOutsideImageBox
	// ProjectionInvalid means the projection is numerically or geometrically
	// undefined for the given point.
	ProjectionInvalid
)

// IsSuccessful reports whether the projected keypoint is usable without
// further checks.
func (pr ProjectionResult) IsSuccessful() bool {
	return pr == KeypointVisible
}

func (pr ProjectionResult) String() string {
	switch pr {
	case KeypointVisible:
		return "keypoint visible"
	case KeypointOutsideImageBox:
		return "keypoint outside image box"
	case ProjectionInvalid:
		return "projection invalid"
	default:
		return "unknown projection result"
	}
}
