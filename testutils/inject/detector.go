package inject

import (
	"context"

	"github.com/freeplay-sandbox/sandtray-localisation/fiducial"
)

// Detector is an injected marker detector.
type Detector struct {
	fiducial.Detector
	StartFunc    func(ctx context.Context) error
	StopFunc     func(ctx context.Context) error
	SnapshotFunc func(ctx context.Context) (fiducial.Snapshot, error)
}

// Start calls the injected Start or the real version.
func (d *Detector) Start(ctx context.Context) error {
	if d.StartFunc == nil {
		return d.Detector.Start(ctx)
	}
	return d.StartFunc(ctx)
}

// Stop calls the injected Stop or the real version.
func (d *Detector) Stop(ctx context.Context) error {
	if d.StopFunc == nil {
		return d.Detector.Stop(ctx)
	}
	return d.StopFunc(ctx)
}

// Snapshot calls the injected Snapshot or the real version.
func (d *Detector) Snapshot(ctx context.Context) (fiducial.Snapshot, error) {
	if d.SnapshotFunc == nil {
		return d.Detector.Snapshot(ctx)
	}
	return d.SnapshotFunc(ctx)
}
