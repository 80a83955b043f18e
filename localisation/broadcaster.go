package localisation

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"go.opencensus.io/trace"

	"github.com/freeplay-sandbox/sandtray-localisation/config"
	"github.com/freeplay-sandbox/sandtray-localisation/referenceframe"
	"github.com/freeplay-sandbox/sandtray-localisation/utils"
)

// armReachWarningInterval throttles the warning raised when the origin is out of reach.
const armReachWarningInterval = 10 * time.Second

// Broadcaster republishes the sandtray pose every period. Frame graph consumers drop stale
// transforms, so the pose is restamped with the current time on every broadcast.
type Broadcaster struct {
	referenceFrame string
	targetFrame    string
	armReach       config.ArmReach
	period         time.Duration

	graph   referenceframe.Graph
	state   *StateStore
	clock   clock.Clock
	logger  golog.Logger
	tooHigh *utils.Throttle
	workers utils.StoppableWorkers
}

// NewBroadcaster returns a broadcaster reading the pose from state. It does nothing until
// Start is called.
func NewBroadcaster(
	cfg *config.Config,
	graph referenceframe.Graph,
	state *StateStore,
	clk clock.Clock,
	logger golog.Logger,
) *Broadcaster {
	if clk == nil {
		clk = clock.New()
	}
	return &Broadcaster{
		referenceFrame: cfg.RobotReferenceFrame,
		targetFrame:    cfg.TargetFrame,
		armReach:       cfg.ArmReach(),
		period:         cfg.BroadcastPeriod(),
		graph:          graph,
		state:          state,
		clock:          clk,
		logger:         logger,
		tooHigh:        utils.NewThrottle(clk, armReachWarningInterval),
	}
}

// Start broadcasts in the background until Stop is called or ctx is done.
func (b *Broadcaster) Start(ctx context.Context) {
	b.workers = utils.NewStoppableWorkerWithTicker(ctx, b.clock, b.period, b.Broadcast)
}

// Stop ends the background broadcasts.
func (b *Broadcaster) Stop() {
	if b.workers != nil {
		b.workers.Stop()
	}
}

// Broadcast runs one cycle: publish reference→target if the sandtray was found, then the
// arm reach frame if it is enabled and can be computed. Failures only skip this cycle.
func (b *Broadcaster) Broadcast(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "localisation::Broadcaster::Broadcast")
	defer span.End()

	st := b.state.Load()
	if !st.Found {
		return
	}

	now := b.clock.Now()
	target := referenceframe.NewTransform(b.referenceFrame, b.targetFrame, st.Target, now)
	if err := b.graph.PublishTransforms(ctx, target); err != nil {
		b.logger.Errorw("cannot publish the sandtray transform", "error", err)
		return
	}

	if b.armReach.Enabled {
		b.broadcastArmReach(ctx, now)
	}
}

func (b *Broadcaster) broadcastArmReach(ctx context.Context, now time.Time) {
	targetToOrigin, err := b.graph.LookupTransform(ctx, b.targetFrame, b.armReach.OriginFrame)
	if err != nil {
		b.logger.Debugw("arm reach origin not available", "origin", b.armReach.OriginFrame, "error", err)
		return
	}

	pose, ok := ProjectArmReach(targetToOrigin.Pose(), b.armReach.Radius)
	if !ok {
		b.tooHigh.Do(func() {
			b.logger.Warnw("Too high! distance from shoulder to sandtray > arm reach",
				"distance", targetToOrigin.Pose().Point().Z, "arm_reach", b.armReach.Radius)
		})
		return
	}

	armReach := referenceframe.NewTransform(b.targetFrame, b.armReach.FrameName, pose, now)
	if err := b.graph.PublishTransforms(ctx, armReach); err != nil {
		b.logger.Errorw("cannot publish the arm reach transform", "error", err)
	}
}
