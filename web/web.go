// Package web exposes the localisation over HTTP: the localise signal, the status channel,
// the detector relay, frame publication and the current state.
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"goji.io"
	"goji.io/pat"

	"github.com/freeplay-sandbox/sandtray-localisation/config"
	"github.com/freeplay-sandbox/sandtray-localisation/fiducial"
	"github.com/freeplay-sandbox/sandtray-localisation/localisation"
	"github.com/freeplay-sandbox/sandtray-localisation/notify"
	"github.com/freeplay-sandbox/sandtray-localisation/referenceframe"
	"github.com/freeplay-sandbox/sandtray-localisation/spatialmath"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Localiser is the part of the localisation service served over HTTP.
type Localiser interface {
	Signal() bool
	State() localisation.State
	Layout() fiducial.Layout
}

// StatusChannel is a notifier whose messages can be read back.
type StatusChannel interface {
	Name() string
	History() []notify.Message
}

// DetectorRelay is a detector fed by a remote process.
type DetectorRelay interface {
	Active() bool
	Update(snap fiducial.Snapshot) error
}

// Deps are what the handlers serve. Relay may be nil when the detector runs in process.
type Deps struct {
	Localiser Localiser
	Status    StatusChannel
	Relay     DetectorRelay
	Graph     referenceframe.Graph
	Clock     clock.Clock
}

// StateResponse is the JSON form of a localisation.State.
type StateResponse struct {
	Found       bool                    `json:"found"`
	Target      *spatialmath.PoseConfig `json:"target,omitempty"`
	LocalisedAt *time.Time              `json:"localised_at,omitempty"`
}

// DetectorUpdate is the JSON form of a fiducial.Snapshot pushed by the remote detector.
type DetectorUpdate struct {
	ObjectFound bool                    `json:"object_found"`
	CameraFrame string                  `json:"camera_frame"`
	Transform   *spatialmath.PoseConfig `json:"transform,omitempty"`
}

type server struct {
	cfg    *config.Config
	deps   Deps
	logger golog.Logger
}

// NewHandler returns the HTTP handler for the localisation, with CORS allowed from anywhere.
func NewHandler(cfg *config.Config, deps Deps, logger golog.Logger) (http.Handler, error) {
	if deps.Localiser == nil {
		return nil, errors.New("a localiser is required")
	}
	if deps.Status == nil {
		return nil, errors.New("a status channel is required")
	}
	if deps.Graph == nil {
		return nil, errors.New("a frame graph is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	s := &server{cfg: cfg, deps: deps, logger: logger}

	mux := goji.NewMux()
	mux.HandleFunc(pat.Post("/"+cfg.SignalingChannel), s.signal)
	mux.HandleFunc(pat.Get("/"+cfg.SpeechChannel), s.status)
	mux.HandleFunc(pat.Get("/state"), s.state)
	mux.HandleFunc(pat.Get("/markers"), s.markers)
	mux.HandleFunc(pat.Post("/transforms"), s.publishTransforms)
	mux.HandleFunc(pat.Get("/transforms/:parent/:child"), s.lookupTransform)
	if deps.Relay != nil {
		mux.HandleFunc(pat.Get("/detector"), s.detectorActive)
		mux.HandleFunc(pat.Put("/detector"), s.detectorUpdate)
	}

	return cors.AllowAll().Handler(mux), nil
}

func (s *server) signal(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Localiser.Signal() {
		http.Error(w, "already localising", http.StatusTooManyRequests)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.deps.Status.History())
}

func (s *server) state(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Localiser.State()
	resp := StateResponse{Found: st.Found}
	if st.Found {
		resp.Target = spatialmath.NewPoseConfig(st.Target)
		resp.LocalisedAt = &st.LocalisedAt
	}
	s.writeJSON(w, resp)
}

func (s *server) markers(w http.ResponseWriter, r *http.Request) {
	data, err := s.deps.Localiser.Layout().MarshalChilitags()
	if err != nil {
		http.Error(w, fmt.Sprintf("error rendering the marker layout: %s", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	if _, err := w.Write(data); err != nil {
		s.logger.Debugw("error writing the marker layout", "error", err)
	}
}

func (s *server) publishTransforms(w http.ResponseWriter, r *http.Request) {
	var configs []referenceframe.TransformConfig
	if !s.readJSON(w, r, &configs) {
		return
	}
	now := s.deps.Clock.Now()
	transforms := make([]*referenceframe.Transform, 0, len(configs))
	for i := range configs {
		if err := configs[i].Validate(fmt.Sprintf("transforms.%d", i)); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		transforms = append(transforms, configs[i].ParseConfig(now))
	}
	if err := s.deps.Graph.PublishTransforms(r.Context(), transforms...); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) lookupTransform(w http.ResponseWriter, r *http.Request) {
	tf, err := s.deps.Graph.LookupTransform(r.Context(), pat.Param(r, "parent"), pat.Param(r, "child"))
	if err != nil {
		if referenceframe.IsTransformUnavailable(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, referenceframe.NewTransformConfig(tf))
}

func (s *server) detectorActive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]bool{"active": s.deps.Relay.Active()})
}

func (s *server) detectorUpdate(w http.ResponseWriter, r *http.Request) {
	var update DetectorUpdate
	if !s.readJSON(w, r, &update) {
		return
	}
	snap := fiducial.Snapshot{ObjectFound: update.ObjectFound, CameraFrame: update.CameraFrame}
	if update.Transform != nil {
		snap.Transform = update.Transform.ParseConfig()
	}
	if err := s.deps.Relay.Update(snap); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("error decoding request: %s", err), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debugw("error writing response", "error", err)
	}
}
