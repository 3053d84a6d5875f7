package camera

import (
	"math"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// maxKeypointTries bounds the rejection-sampling loop in RandomKeypoint.
const maxKeypointTries = 10

// RandomKeypoint draws a keypoint that is both liftable and inside the image
// box. The camera model defines a circle on the normalized image plane and
// the projection equations do not work outside of it; for xi > 1 its edge is
// at u² + v² = 1/(xi² - 1), so samples are drawn inside that boundary. After
// maxKeypointTries failed attempts it falls back to the principal point and
// logs a diagnostic.
//
// The pseudo-random source is caller-supplied so tests stay deterministic and
// concurrent callers do not interfere.
func (c *UnifiedProjection) RandomKeypoint(rng *rand.Rand, logger golog.Logger) r2.Point {
	xi := c.Xi()
	var maxRadius float64
	if xi > 1 {
		maxRadius = math.Sqrt(1 / (xi*xi - 1))
	} else {
		// The valid disk is unbounded for xi <= 1; bound samples by the image
		// half-diagonal on the normalized plane instead.
		maxRadius = math.Hypot(float64(c.width)/(2*c.Fu()), float64(c.height)/(2*c.Fv()))
	}

	for tries := 0; tries < maxKeypointTries; tries++ {
		dir := r2.Point{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5}
		norm := dir.Norm()
		if norm == 0 {
			continue
		}
		kp := dir.Mul(rng.Float64() * maxRadius / norm)

		// Run the point through distortion and the affine step.
		if c.dist != nil {
			kp = c.dist.Distort(kp)
		}
		kp = r2.Point{X: c.Fu()*kp.X + c.Cu(), Y: c.Fv()*kp.Y + c.Cv()}

		if c.IsLiftable(kp) && c.IsKeypointVisible(kp) {
			return kp
		}
	}

	logger.Debugw("failed to produce a random keypoint, falling back to the principal point",
		"tries", maxKeypointTries)
	return r2.Point{X: c.Cu(), Y: c.Cv()}
}

// RandomVisiblePoint draws a 3D point at the given depth whose projection is
// visible. Depth must be positive.
func (c *UnifiedProjection) RandomVisiblePoint(rng *rand.Rand, logger golog.Logger, depth float64) (r3.Vector, error) {
	if depth <= 0 {
		return r3.Vector{}, errors.Errorf("depth must be positive, got %v", depth)
	}

	kp := c.RandomKeypoint(rng, logger)
	bearing, ok := c.BackProject(kp)
	if !ok {
		return r3.Vector{}, errors.Errorf("back-projection of sampled keypoint (%v, %v) failed", kp.X, kp.Y)
	}

	// Rescaling the normalized bearing does not change the pointing direction.
	return bearing.Normalize().Mul(depth), nil
}
