package fiducial

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/freeplay-sandbox/sandtray-localisation/spatialmath"
)

// Relay is a Detector whose detections are pushed in by a detector process running
// elsewhere. That process asks Active whether it should be looking, and reports with Update.
type Relay struct {
	logger golog.Logger

	mu     sync.Mutex
	active bool
	last   Snapshot
	layout Layout
}

// NewRelay returns an inactive relay serving the given layout to the remote detector.
func NewRelay(layout Layout, logger golog.Logger) *Relay {
	return &Relay{layout: layout, logger: logger}
}

// Start marks the relay active and forgets any earlier detection.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	r.last.ObjectFound = false
	r.logger.Debug("detector activated")
	return nil
}

// Stop marks the relay inactive.
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	r.logger.Debug("detector deactivated")
	return nil
}

// Active reports whether the remote detector should be looking for markers.
func (r *Relay) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Layout returns the marker layout the remote detector must be configured with.
func (r *Relay) Layout() Layout {
	return r.layout
}

// Update records a detection. Detections reported while inactive are dropped.
func (r *Relay) Update(snap Snapshot) error {
	if snap.ObjectFound {
		if snap.CameraFrame == "" {
			return errors.New("a detection must name its camera frame")
		}
		if snap.Transform == nil {
			return errors.New("a detection must carry the camera to marker transform")
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil
	}
	r.last = snap
	return nil
}

// Snapshot returns the latest detection.
func (r *Relay) Snapshot(ctx context.Context) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.last
	if snap.Transform == nil {
		snap.Transform = spatialmath.NewZeroPose()
	}
	return snap, nil
}
