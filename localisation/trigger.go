package localisation

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/freeplay-sandbox/sandtray-localisation/config"
	"github.com/freeplay-sandbox/sandtray-localisation/fiducial"
	"github.com/freeplay-sandbox/sandtray-localisation/notify"
	"github.com/freeplay-sandbox/sandtray-localisation/referenceframe"
	"github.com/freeplay-sandbox/sandtray-localisation/spatialmath"
)

// Trigger runs one localisation each time Localise is called.
type Trigger struct {
	referenceFrame string
	timeout        time.Duration
	pollInterval   time.Duration
	lookupTimeout  time.Duration

	detector fiducial.Detector
	graph    referenceframe.Graph
	notifier notify.Notifier
	state    *StateStore
	clock    clock.Clock
	logger   golog.Logger
}

// NewTrigger returns a trigger that records what it finds in state.
func NewTrigger(
	cfg *config.Config,
	detector fiducial.Detector,
	graph referenceframe.Graph,
	notifier notify.Notifier,
	state *StateStore,
	clk clock.Clock,
	logger golog.Logger,
) *Trigger {
	if clk == nil {
		clk = clock.New()
	}
	return &Trigger{
		referenceFrame: cfg.RobotReferenceFrame,
		timeout:        cfg.LocaliseTimeout(),
		pollInterval:   cfg.PollInterval(),
		lookupTimeout:  cfg.LookupTimeout(),
		detector:       detector,
		graph:          graph,
		notifier:       notifier,
		state:          state,
		clock:          clk,
		logger:         logger,
	}
}

// Localise looks for the markers until they are seen or the timeout elapses, and on success
// stores the reference→marker pose. It reports whether the sandtray was found. Not finding
// the markers is not an error: the robot says it is lost and the state is left as it was.
func (tr *Trigger) Localise(ctx context.Context) (bool, error) {
	ctx, span := trace.StartSpan(ctx, "localisation::Trigger::Localise")
	defer span.End()

	tr.logger.Infof("received signal for localisation! Looking for the fiducial markers for %v max", tr.timeout)

	if err := tr.detector.Start(ctx); err != nil {
		return false, errors.Wrap(err, "cannot start the marker detector")
	}
	snap, elapsed, err := tr.waitForMarkers(ctx)
	// released whatever happened, even when ctx is done
	if stopErr := tr.detector.Stop(context.Background()); stopErr != nil {
		tr.logger.Warnw("cannot stop the marker detector", "error", stopErr)
	}
	if err != nil {
		return false, err
	}

	if !snap.ObjectFound {
		tr.logger.Errorf("could not see any fiducial markers after %.1fs. "+
			"You might want to make sure the sandtray is in the field of view of the robot's camera!", elapsed.Seconds())
		tr.notify(ctx, notify.MessageLost)
		return false, nil
	}
	if snap.Transform == nil {
		return false, errors.New("the marker detector found the markers but reported no transform")
	}

	// the robot may have moved while we were looking, so ask for the camera pose as it is now
	refToCamera, err := tr.graph.WaitForTransform(ctx, tr.referenceFrame, snap.CameraFrame, tr.lookupTimeout)
	if err != nil {
		tr.logger.Errorw("found the fiducial markers but cannot place the camera",
			"reference", tr.referenceFrame, "camera", snap.CameraFrame, "error", err)
		return false, errors.Wrapf(err, "cannot look up %s->%s", tr.referenceFrame, snap.CameraFrame)
	}

	// reference -> camera -> marker (= sandtray origin)
	target := spatialmath.Compose(refToCamera.Pose(), snap.Transform)
	tr.state.Localised(target, tr.clock.Now())

	tr.logger.Infow("found the fiducial markers! Broadcasting the sandtray transform",
		"reference", tr.referenceFrame, "camera", snap.CameraFrame, "pose", target)
	tr.notify(ctx, notify.MessageLocalised)
	return true, nil
}

// waitForMarkers polls the detector until it sees the markers or the timeout elapses.
func (tr *Trigger) waitForMarkers(ctx context.Context) (fiducial.Snapshot, time.Duration, error) {
	start := tr.clock.Now()
	ticker := tr.clock.Ticker(tr.pollInterval)
	defer ticker.Stop()

	for {
		snap, err := tr.detector.Snapshot(ctx)
		if err != nil {
			tr.logger.Debugw("cannot read the marker detector", "error", err)
			snap = fiducial.Snapshot{}
		}
		elapsed := tr.clock.Since(start)
		if snap.ObjectFound || elapsed >= tr.timeout {
			return snap, elapsed, nil
		}

		select {
		case <-ctx.Done():
			return fiducial.Snapshot{}, elapsed, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (tr *Trigger) notify(ctx context.Context, msg string) {
	if err := tr.notifier.Notify(ctx, msg); err != nil {
		tr.logger.Warnw("cannot send status message", "text", msg, "error", err)
	}
}
