// Package localisation finds the sandtray on request and keeps its pose available on the
// frame graph.
//
// A Trigger looks for the markers when the robot is asked to localise and records the
// reference→sandtray pose it finds. A Broadcaster republishes that pose, and optionally the
// arm reach frame, at a fixed rate. A Service wires both to their collaborators.
package localisation

import (
	"time"

	"go.uber.org/atomic"

	"github.com/freeplay-sandbox/sandtray-localisation/spatialmath"
)

// State is an immutable snapshot of what is known about the sandtray. A zero State means the
// sandtray has never been found.
type State struct {
	// Found latches true after the first successful localisation.
	Found bool
	// Target is the reference→target pose from the latest successful localisation.
	Target spatialmath.Pose
	// LocalisedAt is when Target was computed.
	LocalisedAt time.Time
}

// StateStore holds the current State. Writers replace the whole snapshot so readers never
// see Found without its Target.
type StateStore struct {
	current atomic.Pointer[State]
}

// NewStateStore returns a store holding the zero State.
func NewStateStore() *StateStore {
	s := &StateStore{}
	s.current.Store(&State{})
	return s
}

// Load returns the current snapshot.
func (s *StateStore) Load() State {
	return *s.current.Load()
}

// Localised replaces the snapshot with a found target.
func (s *StateStore) Localised(target spatialmath.Pose, at time.Time) {
	s.current.Store(&State{Found: true, Target: target, LocalisedAt: at})
}
