package localisation

import (
	"context"
	"io"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/freeplay-sandbox/sandtray-localisation/config"
	"github.com/freeplay-sandbox/sandtray-localisation/fiducial"
	"github.com/freeplay-sandbox/sandtray-localisation/notify"
	"github.com/freeplay-sandbox/sandtray-localisation/referenceframe"
	"github.com/freeplay-sandbox/sandtray-localisation/utils"
)

// Deps are the collaborators of a Service.
type Deps struct {
	Graph       referenceframe.Graph
	NewDetector fiducial.Factory
	Notifier    notify.Notifier
	// Layout is handed to NewDetector. It defaults to fiducial.DefaultLayout.
	Layout fiducial.Layout
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// Service answers localisation signals and keeps the sandtray pose broadcast.
//
// Signals are handled one at a time. While a localisation runs, one more signal can wait for
// its turn and any further signal is dropped.
type Service struct {
	cfg    *config.Config
	deps   Deps
	logger golog.Logger

	state   *StateStore
	signals chan struct{}
	ready   atomic.Bool

	mu          sync.Mutex
	started     bool
	detector    fiducial.Detector
	trigger     *Trigger
	broadcaster *Broadcaster
	workers     utils.StoppableWorkers
}

// NewService returns a service that is not started yet.
func NewService(cfg *config.Config, deps Deps, logger golog.Logger) (*Service, error) {
	if deps.Graph == nil {
		return nil, errors.New("a frame graph is required")
	}
	if deps.NewDetector == nil {
		return nil, errors.New("a detector factory is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("a notifier is required")
	}
	if deps.Layout == nil {
		deps.Layout = fiducial.DefaultLayout()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &Service{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		state:   NewStateStore(),
		signals: make(chan struct{}, 1),
	}, nil
}

// Start waits until the reference frame is known to the frame graph, then builds the
// detector and starts answering signals and broadcasting. It only fails if ctx is done first
// or the detector cannot be built. A failed Start may be retried.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("already started")
	}
	s.started = true
	s.mu.Unlock()
	defer func() {
		if err != nil {
			s.mu.Lock()
			s.started = false
			s.mu.Unlock()
		}
	}()

	if err := s.waitForReferenceFrame(ctx); err != nil {
		return err
	}

	detector, err := s.deps.NewDetector(ctx, s.deps.Layout)
	if err != nil {
		return errors.Wrap(err, "cannot initialize the marker detector")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.detector = detector
	s.trigger = NewTrigger(s.cfg, detector, s.deps.Graph, s.deps.Notifier, s.state, s.deps.Clock, s.logger.Named("trigger"))
	s.broadcaster = NewBroadcaster(s.cfg, s.deps.Graph, s.state, s.deps.Clock, s.logger.Named("broadcaster"))
	s.workers = utils.NewStoppableWorkers(context.Background(), s.dispatch)
	s.broadcaster.Start(s.workers.Context())
	s.ready.Store(true)

	s.logger.Infof("sandtray_localisation is ready. %s -> %s transformation will be published/updated when localisation is triggered on %s",
		s.cfg.RobotReferenceFrame, s.cfg.TargetFrame, s.cfg.SignalingChannel)
	if armReach := s.cfg.ArmReach(); armReach.Enabled {
		s.logger.Infof("arm reach will be broadcast as well. Arm reach is set at %.2fm from %s",
			armReach.Radius, armReach.OriginFrame)
	}
	return nil
}

func (s *Service) waitForReferenceFrame(ctx context.Context) error {
	for {
		ok, err := s.deps.Graph.FrameExists(ctx, s.cfg.RobotReferenceFrame)
		if err != nil {
			s.logger.Debugw("cannot query the frame graph", "error", err)
		}
		if ok {
			return nil
		}
		s.logger.Warnf("waiting for reference frame %s to become available...", s.cfg.RobotReferenceFrame)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.deps.Clock.After(s.cfg.ReferenceFrameRetry()):
		}
	}
}

// Signal asks for a localisation. It never blocks and reports whether the request was
// queued. It is dropped if one is already waiting, or if the service is not started.
func (s *Service) Signal() bool {
	if !s.ready.Load() {
		s.logger.Debug("not ready yet, dropping signal")
		return false
	}
	select {
	case s.signals <- struct{}{}:
		return true
	default:
		s.logger.Debug("already localising, dropping signal")
		return false
	}
}

func (s *Service) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.signals:
		}
		if _, err := s.trigger.Localise(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Errorw("localisation failed", "error", err)
		}
	}
}

// State returns what is currently known about the sandtray.
func (s *Service) State() State {
	return s.state.Load()
}

// Layout returns the marker layout the detector was built with.
func (s *Service) Layout() fiducial.Layout {
	return s.deps.Layout
}

// Close stops answering signals and broadcasting, then stops the detector and closes it if
// it can be closed.
func (s *Service) Close(ctx context.Context) error {
	s.ready.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers == nil {
		return nil
	}
	s.broadcaster.Stop()
	s.workers.Stop()

	if s.detector == nil {
		return nil
	}
	err := s.detector.Stop(ctx)
	if closer, ok := s.detector.(io.Closer); ok {
		err = multierr.Combine(err, closer.Close())
	}
	s.detector = nil
	return err
}
