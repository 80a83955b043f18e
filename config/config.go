// Package config reads the settings of the localisation process. They are read once at
// startup and never change afterwards.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.viam.com/utils"

	"github.com/freeplay-sandbox/sandtray-localisation/referenceframe"
)

// Defaults, matching the deployed sandtray setup.
const (
	DefaultSignalingChannel    = "sandtray/signals/robot_localising"
	DefaultSpeechChannel       = "speech"
	DefaultTargetFrame         = "sandtray"
	DefaultRobotReferenceFrame = "odom"
	DefaultArmReachFrame       = "arm_reach"
	DefaultArmReach            = 0.4
	DefaultArmReachOriginFrame = "RShoulder"
)

// ArmReach configures the optional arm reach frame.
type ArmReach struct {
	Enabled bool
	// FrameName is the published frame, a child of the target frame.
	FrameName string
	// Radius is how far the arm reaches from the origin frame, in meters.
	Radius float64
	// OriginFrame is where the arm reach is measured from, usually a shoulder.
	OriginFrame string
}

// Config describes the whole localisation process.
type Config struct {
	SignalingChannel    string `json:"signaling_channel"`
	SpeechChannel       string `json:"speech_channel"`
	TargetFrame         string `json:"target_frame"`
	RobotReferenceFrame string `json:"robot_reference_frame"`

	BroadcastArmReach   bool    `json:"broadcast_arm_reach"`
	ArmReachFrame       string  `json:"arm_reach_frame"`
	ArmReachRadius      float64 `json:"arm_reach"`
	ArmReachOriginFrame string  `json:"arm_reach_origin_frame"`

	LocaliseTimeoutSec     float64 `json:"localise_timeout_sec"`
	PollIntervalMs         int     `json:"poll_interval_ms"`
	LookupTimeoutSec       float64 `json:"lookup_timeout_sec"`
	ReferenceFrameRetrySec float64 `json:"reference_frame_retry_sec"`
	BroadcastRateHz        float64 `json:"broadcast_rate_hz"`

	// MaxTransformAgeSec and StaticTransforms set up the in-process frame graph.
	MaxTransformAgeSec float64                          `json:"max_transform_age_sec"`
	StaticTransforms   []referenceframe.TransformConfig `json:"static_transforms"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		SignalingChannel:       DefaultSignalingChannel,
		SpeechChannel:          DefaultSpeechChannel,
		TargetFrame:            DefaultTargetFrame,
		RobotReferenceFrame:    DefaultRobotReferenceFrame,
		ArmReachFrame:          DefaultArmReachFrame,
		ArmReachRadius:         DefaultArmReach,
		ArmReachOriginFrame:    DefaultArmReachOriginFrame,
		LocaliseTimeoutSec:     5,
		PollIntervalMs:         100,
		LookupTimeoutSec:       1,
		ReferenceFrameRetrySec: 1,
		BroadcastRateHz:        10,
		MaxTransformAgeSec:     1,
	}
}

// Read reads and validates the config file at path. Keys missing from the file keep their
// default values.
func Read(path string) (*Config, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return FromReader(path, f)
}

// FromReader reads and validates a config from r. The config is JSON5, so it may carry
// comments. originalPath is only used in errors.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", originalPath)
	}
	var raw interface{}
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", originalPath)
	}
	// round trip through plain JSON to reject unknown keys
	plain, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", originalPath)
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(plain))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", originalPath)
	}
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	for _, field := range []struct {
		name  string
		value string
	}{
		{"signaling_channel", cfg.SignalingChannel},
		{"speech_channel", cfg.SpeechChannel},
		{"target_frame", cfg.TargetFrame},
		{"robot_reference_frame", cfg.RobotReferenceFrame},
	} {
		if field.value == "" {
			return utils.NewConfigValidationFieldRequiredError(path, field.name)
		}
	}
	if cfg.TargetFrame == cfg.RobotReferenceFrame {
		return utils.NewConfigValidationError(path,
			errors.Errorf("target_frame and robot_reference_frame are both %q", cfg.TargetFrame))
	}
	if cfg.BroadcastArmReach {
		if cfg.ArmReachFrame == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "arm_reach_frame")
		}
		if cfg.ArmReachOriginFrame == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "arm_reach_origin_frame")
		}
		if cfg.ArmReachRadius <= 0 {
			return utils.NewConfigValidationError(path, errors.New("arm_reach must be positive"))
		}
	}
	for _, field := range []struct {
		name     string
		value    float64
		duration func() time.Duration
	}{
		{"localise_timeout_sec", cfg.LocaliseTimeoutSec, cfg.LocaliseTimeout},
		{"poll_interval_ms", float64(cfg.PollIntervalMs), cfg.PollInterval},
		{"lookup_timeout_sec", cfg.LookupTimeoutSec, cfg.LookupTimeout},
		{"reference_frame_retry_sec", cfg.ReferenceFrameRetrySec, cfg.ReferenceFrameRetry},
		{"broadcast_rate_hz", cfg.BroadcastRateHz, cfg.BroadcastPeriod},
	} {
		if field.value <= 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("%s must be positive", field.name))
		}
		// tickers and timers cannot run on a zero duration
		if field.duration() <= 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("%s rounds to a zero duration", field.name))
		}
	}
	if cfg.MaxTransformAgeSec < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_transform_age_sec cannot be negative"))
	}
	for idx, tf := range cfg.StaticTransforms {
		if err := tf.Validate(fmt.Sprintf("%s.%s.%d", path, "static_transforms", idx)); err != nil {
			return err
		}
	}
	return nil
}

// ArmReach returns the arm reach settings.
func (cfg *Config) ArmReach() ArmReach {
	return ArmReach{
		Enabled:     cfg.BroadcastArmReach,
		FrameName:   cfg.ArmReachFrame,
		Radius:      cfg.ArmReachRadius,
		OriginFrame: cfg.ArmReachOriginFrame,
	}
}

// LocaliseTimeout is how long a localisation looks for the markers.
func (cfg *Config) LocaliseTimeout() time.Duration {
	return seconds(cfg.LocaliseTimeoutSec)
}

// PollInterval is how often the detector is asked whether it found the markers.
func (cfg *Config) PollInterval() time.Duration {
	return time.Duration(cfg.PollIntervalMs) * time.Millisecond
}

// LookupTimeout bounds the wait for the reference to camera transform.
func (cfg *Config) LookupTimeout() time.Duration {
	return seconds(cfg.LookupTimeoutSec)
}

// ReferenceFrameRetry is the fixed delay between checks for the reference frame at startup.
func (cfg *Config) ReferenceFrameRetry() time.Duration {
	return seconds(cfg.ReferenceFrameRetrySec)
}

// BroadcastPeriod is the time between two broadcasts of the sandtray transform.
func (cfg *Config) BroadcastPeriod() time.Duration {
	return time.Duration(float64(time.Second) / cfg.BroadcastRateHz)
}

// MaxTransformAge is how long the in-process frame graph keeps a dynamic transform.
func (cfg *Config) MaxTransformAge() time.Duration {
	return seconds(cfg.MaxTransformAgeSec)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
