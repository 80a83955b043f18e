package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/freeplay-sandbox/sandtray-localisation/config"
	"github.com/freeplay-sandbox/sandtray-localisation/fiducial"
	"github.com/freeplay-sandbox/sandtray-localisation/localisation"
	"github.com/freeplay-sandbox/sandtray-localisation/notify"
	"github.com/freeplay-sandbox/sandtray-localisation/referenceframe"
	"github.com/freeplay-sandbox/sandtray-localisation/spatialmath"
)

type fakeLocaliser struct {
	queued  []bool
	signals int
	state   localisation.State
}

func (l *fakeLocaliser) Signal() bool {
	l.signals++
	if len(l.queued) == 0 {
		return true
	}
	ok := l.queued[0]
	l.queued = l.queued[1:]
	return ok
}

func (l *fakeLocaliser) State() localisation.State {
	return l.state
}

func (l *fakeLocaliser) Layout() fiducial.Layout {
	return fiducial.DefaultLayout()
}

type fixture struct {
	clock     *clock.Mock
	localiser *fakeLocaliser
	speech    *notify.Channel
	relay     *fiducial.Relay
	graph     *referenceframe.MemoryGraph
	server    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := golog.NewTestLogger(t)
	clk := clock.NewMock()
	f := &fixture{
		clock:     clk,
		localiser: &fakeLocaliser{},
		speech:    notify.NewChannel("speech", clk, logger),
		relay:     fiducial.NewRelay(fiducial.DefaultLayout(), logger),
		graph:     referenceframe.NewMemoryGraph(clk, time.Second),
	}
	handler, err := NewHandler(config.Default(), Deps{
		Localiser: f.localiser,
		Status:    f.speech,
		Relay:     f.relay,
		Graph:     f.graph,
		Clock:     clk,
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	f.server = httptest.NewServer(handler)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	test.That(t, err, test.ShouldBeNil)
	resp, err := f.server.Client().Do(req)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	test.That(t, resp.Header.Get("Content-Type"), test.ShouldEqual, "application/json")
	test.That(t, json.NewDecoder(resp.Body).Decode(v), test.ShouldBeNil)
}

func TestNewHandlerRequiresDeps(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, err := NewHandler(config.Default(), Deps{}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewHandler(config.Default(), Deps{Localiser: &fakeLocaliser{}}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewHandler(config.Default(), Deps{
		Localiser: &fakeLocaliser{},
		Status:    notify.NewChannel("speech", nil, logger),
	}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "frame graph")
}

func TestSignal(t *testing.T) {
	f := newFixture(t)
	f.localiser.queued = []bool{true, false}

	resp := f.do(t, http.MethodPost, "/sandtray/signals/robot_localising", "")
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusAccepted)
	resp = f.do(t, http.MethodPost, "/sandtray/signals/robot_localising", "")
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusTooManyRequests)
	test.That(t, f.localiser.signals, test.ShouldEqual, 2)

	resp = f.do(t, http.MethodGet, "/sandtray/signals/robot_localising", "")
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNotFound)
	test.That(t, f.localiser.signals, test.ShouldEqual, 2)
}

func TestStatusChannel(t *testing.T) {
	f := newFixture(t)
	test.That(t, f.speech.Notify(context.Background(), notify.MessageLost), test.ShouldBeNil)

	resp := f.do(t, http.MethodGet, "/speech", "")
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	var messages []notify.Message
	decode(t, resp, &messages)
	test.That(t, messages, test.ShouldHaveLength, 1)
	test.That(t, messages[0].Channel, test.ShouldEqual, "speech")
	test.That(t, messages[0].Text, test.ShouldEqual, "I am lost!")
}

func TestState(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/state", "")
	var st StateResponse
	decode(t, resp, &st)
	test.That(t, st.Found, test.ShouldBeFalse)
	test.That(t, st.Target, test.ShouldBeNil)
	test.That(t, st.LocalisedAt, test.ShouldBeNil)

	f.localiser.state = localisation.State{
		Found:       true,
		Target:      spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Y: 2}),
		LocalisedAt: f.clock.Now(),
	}
	resp = f.do(t, http.MethodGet, "/state", "")
	decode(t, resp, &st)
	test.That(t, st.Found, test.ShouldBeTrue)
	test.That(t, st.Target.Translation, test.ShouldResemble, r3.Vector{X: 1, Y: 2})
	test.That(t, st.Target.Rotation.W, test.ShouldAlmostEqual, 1)
	test.That(t, st.LocalisedAt.Equal(f.clock.Now()), test.ShouldBeTrue)
}

func TestMarkers(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/markers", "")
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, resp.Header.Get("Content-Type"), test.ShouldEqual, "application/x-yaml")

	body, err := io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	layout, err := fiducial.ParseChilitags(body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, layout, test.ShouldResemble, fiducial.DefaultLayout())
}

func TestTransforms(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/transforms/odom/camera_rgb", "")
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNotFound)

	resp = f.do(t, http.MethodPost, "/transforms", `[
		{"parent": "odom", "child": "base_link", "pose": {"translation": {"x": 1}}},
		{"parent": "base_link", "child": "camera_rgb", "pose": {"translation": {"z": 1.2}, "rotation": {"w": 1}}}
	]`)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNoContent)

	resp = f.do(t, http.MethodGet, "/transforms/odom/camera_rgb", "")
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	var tf referenceframe.TransformConfig
	decode(t, resp, &tf)
	test.That(t, tf.Parent, test.ShouldEqual, "odom")
	test.That(t, tf.Child, test.ShouldEqual, "camera_rgb")
	test.That(t, spatialmath.R3VectorAlmostEqual(tf.Pose.Translation, r3.Vector{X: 1, Z: 1.2}, 1e-9), test.ShouldBeTrue)
	test.That(t, tf.Stamp.Equal(f.clock.Now()), test.ShouldBeTrue)

	// published transforms expire unless republished
	f.clock.Add(2 * time.Second)
	resp = f.do(t, http.MethodGet, "/transforms/odom/camera_rgb", "")
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNotFound)

	t.Run("invalid", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/transforms", `[{"parent": "odom", "pose": {}}]`)
		test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)

		resp = f.do(t, http.MethodPost, "/transforms", `[{"parent": "odom", "child": "odom"}]`)
		test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)

		resp = f.do(t, http.MethodPost, "/transforms", `{"parent": "odom"}`)
		test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)

		resp = f.do(t, http.MethodPost, "/transforms", `[{"parent": "odom", "child": "a", "frame": "b"}]`)
		test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)
	})

	t.Run("cycle", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/transforms", `[
			{"parent": "a", "child": "b", "pose": {}},
			{"parent": "b", "child": "a", "pose": {}}
		]`)
		test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusConflict)
	})
}

func TestDetectorRelay(t *testing.T) {
	f := newFixture(t)

	var active map[string]bool
	decode(t, f.do(t, http.MethodGet, "/detector", ""), &active)
	test.That(t, active["active"], test.ShouldBeFalse)

	test.That(t, f.relay.Start(context.Background()), test.ShouldBeNil)
	decode(t, f.do(t, http.MethodGet, "/detector", ""), &active)
	test.That(t, active["active"], test.ShouldBeTrue)

	resp := f.do(t, http.MethodPut, "/detector",
		`{"object_found": true, "camera_frame": "camera_rgb", "transform": {"translation": {"z": 0.7}}}`)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNoContent)

	snap, err := f.relay.Snapshot(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, snap.ObjectFound, test.ShouldBeTrue)
	test.That(t, snap.CameraFrame, test.ShouldEqual, "camera_rgb")
	test.That(t, snap.Transform.Point(), test.ShouldResemble, r3.Vector{Z: 0.7})

	resp = f.do(t, http.MethodPut, "/detector", `{"object_found": true}`)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/state", nil)
	test.That(t, err, test.ShouldBeNil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := f.server.Client().Do(req)
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	test.That(t, resp.Header.Get("Access-Control-Allow-Origin"), test.ShouldEqual, "*")
}
