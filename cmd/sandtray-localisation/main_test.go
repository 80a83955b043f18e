package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/freeplay-sandbox/sandtray-localisation/config"
	"github.com/freeplay-sandbox/sandtray-localisation/notify"
	"github.com/freeplay-sandbox/sandtray-localisation/referenceframe"
	"github.com/freeplay-sandbox/sandtray-localisation/spatialmath"
	"github.com/freeplay-sandbox/sandtray-localisation/web"
)

func TestArguments(t *testing.T) {
	logger := golog.NewTestLogger(t)

	err := mainWithArgs(context.Background(), []string{"main", "--unknown"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not defined")

	err = mainWithArgs(context.Background(), []string{"main", filepath.Join(t.TempDir(), "missing.json")}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	bad := filepath.Join(t.TempDir(), "bad.json")
	test.That(t, os.WriteFile(bad, []byte(`{"target_frame": ""}`), 0o600), test.ShouldBeNil)
	err = mainWithArgs(context.Background(), []string{"main", bad}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "target_frame")

	err = mainWithArgs(context.Background(), []string{"main", "--print-markers"}, logger)
	test.That(t, err, test.ShouldBeNil)
}

// getJSON decodes the body of a GET into v and reports whether it succeeded, so callers
// polling inside WaitForAssertion can stop before reading v.
func getJSON(tb testing.TB, url string, v interface{}) bool {
	tb.Helper()
	resp, err := http.Get(url)
	test.That(tb, err, test.ShouldBeNil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	test.That(tb, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	if resp.StatusCode != http.StatusOK {
		return false
	}
	err = json.NewDecoder(resp.Body).Decode(v)
	test.That(tb, err, test.ShouldBeNil)
	return err == nil
}

func send(tb testing.TB, method, url, body string) int {
	tb.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	test.That(tb, err, test.ShouldBeNil)
	if err != nil {
		return 0
	}
	resp, err := http.DefaultClient.Do(req)
	test.That(tb, err, test.ShouldBeNil)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestRunServer(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	cfg := config.Default()
	cfg.StaticTransforms = []referenceframe.TransformConfig{{
		Parent: "odom",
		Child:  "camera_rgb",
		Pose:   spatialmath.PoseConfig{Translation: r3.Vector{X: 1}},
	}}

	listener, err := net.Listen("tcp", "localhost:0")
	test.That(t, err, test.ShouldBeNil)
	base := fmt.Sprintf("http://%s", listener.Addr().String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, cfg, listener, logger)
	}()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, logs.FilterMessageSnippet("sandtray_localisation is ready").Len(), test.ShouldEqual, 1)
	})

	var st web.StateResponse
	test.That(t, getJSON(t, base+"/state", &st), test.ShouldBeTrue)
	test.That(t, st.Found, test.ShouldBeFalse)

	test.That(t, send(t, http.MethodPost, base+"/sandtray/signals/robot_localising", ""), test.ShouldEqual, http.StatusAccepted)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		var active map[string]bool
		if !getJSON(tb, base+"/detector", &active) {
			return
		}
		test.That(tb, active["active"], test.ShouldBeTrue)
	})
	test.That(t, send(t, http.MethodPut, base+"/detector",
		`{"object_found": true, "camera_frame": "camera_rgb", "transform": {"translation": {}}}`),
		test.ShouldEqual, http.StatusNoContent)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		var st web.StateResponse
		if !getJSON(tb, base+"/state", &st) {
			return
		}
		test.That(tb, st.Found, test.ShouldBeTrue)
		if !st.Found {
			return
		}
		test.That(tb, st.Target, test.ShouldNotBeNil)
		test.That(tb, spatialmath.R3VectorAlmostEqual(st.Target.Translation, r3.Vector{X: 1}, 1e-9), test.ShouldBeTrue)
	})

	var tf referenceframe.TransformConfig
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		getJSON(tb, base+"/transforms/odom/sandtray", &tf)
	})
	test.That(t, tf.Parent, test.ShouldEqual, "odom")
	test.That(t, tf.Child, test.ShouldEqual, "sandtray")

	var messages []notify.Message
	test.That(t, getJSON(t, base+"/speech", &messages), test.ShouldBeTrue)
	test.That(t, messages, test.ShouldHaveLength, 1)
	test.That(t, messages[0].Text, test.ShouldEqual, notify.MessageLocalised)

	cancel()
	test.That(t, <-done, test.ShouldBeNil)
}

func TestRunServerCanceledBeforeReady(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	listener, err := net.Listen("tcp", "localhost:0")
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, config.Default(), listener, logger)
	}()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, logs.FilterMessageSnippet("waiting for reference frame odom").Len(), test.ShouldBeGreaterThanOrEqualTo, 1)
	})
	cancel()
	test.That(t, <-done, test.ShouldBeNil)
	test.That(t, logs.FilterMessageSnippet("is ready").Len(), test.ShouldEqual, 0)
}
