// Package fiducial describes the external fiducial marker detector that sees the sandtray,
// and the marker layout printed on the sandtray.
package fiducial

import (
	"context"

	"github.com/freeplay-sandbox/sandtray-localisation/spatialmath"
)

// Snapshot is what the detector currently believes about the marker object.
type Snapshot struct {
	// ObjectFound is set when the marker object is in view.
	ObjectFound bool
	// CameraFrame names the frame of the camera the detector looks through.
	CameraFrame string
	// Transform is the last known camera→marker pose.
	Transform spatialmath.Pose
}

// A Detector looks for the marker object in a camera stream while it is started.
type Detector interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Snapshot(ctx context.Context) (Snapshot, error)
}

// A Factory builds the detector once the marker layout is known.
type Factory func(ctx context.Context, layout Layout) (Detector, error)
