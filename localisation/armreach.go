package localisation

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/freeplay-sandbox/sandtray-localisation/spatialmath"
)

// ProjectArmReach turns the target→origin pose into the arm reach pose. X and Y keep the
// point of the target plane right below the origin. Z is replaced by the radius of the circle
// where a sphere of the given radius around the origin cuts the plane, sqrt(radius² - z²).
// It returns false when the origin is too far from the plane for the sphere to reach it.
func ProjectArmReach(targetToOrigin spatialmath.Pose, radius float64) (spatialmath.Pose, bool) {
	pt := targetToOrigin.Point()
	if math.Abs(pt.Z) > radius {
		return nil, false
	}
	reach := math.Sqrt(radius*radius - pt.Z*pt.Z)
	return spatialmath.NewPose(r3.Vector{X: pt.X, Y: pt.Y, Z: reach}, targetToOrigin.Orientation()), true
}
