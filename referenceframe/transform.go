// Package referenceframe names the coordinate frames poses are expressed in and defines the
// client of the frame graph that relates them.
package referenceframe

import (
	"fmt"
	"time"

	"go.viam.com/utils"

	"github.com/freeplay-sandbox/sandtray-localisation/spatialmath"
)

// Transform is the pose of the Child frame expressed in the Parent frame, valid at Stamp.
type Transform struct {
	parent string
	child  string
	pose   spatialmath.Pose
	stamp  time.Time
}

// NewTransform returns the transform parent→child. A nil pose is the identity.
func NewTransform(parent, child string, pose spatialmath.Pose, stamp time.Time) *Transform {
	if pose == nil {
		pose = spatialmath.NewZeroPose()
	}
	return &Transform{parent: parent, child: child, pose: pose, stamp: stamp}
}

// Parent returns the frame the pose is expressed in.
func (tf *Transform) Parent() string {
	return tf.parent
}

// Child returns the frame the pose describes.
func (tf *Transform) Child() string {
	return tf.child
}

// Pose returns the pose of the child in the parent.
func (tf *Transform) Pose() spatialmath.Pose {
	return tf.pose
}

// Stamp returns the time at which the transform holds.
func (tf *Transform) Stamp() time.Time {
	return tf.stamp
}

// Restamp returns a copy of the transform valid at stamp.
func (tf *Transform) Restamp(stamp time.Time) *Transform {
	return NewTransform(tf.parent, tf.child, tf.pose, stamp)
}

// Compose chains parent→child with child→next, giving parent→next stamped with the older of
// the two stamps.
func (tf *Transform) Compose(next *Transform) (*Transform, error) {
	if tf.child != next.parent {
		return nil, fmt.Errorf("cannot compose %s->%s with %s->%s", tf.parent, tf.child, next.parent, next.child)
	}
	stamp := tf.stamp
	if next.stamp.Before(stamp) {
		stamp = next.stamp
	}
	return NewTransform(tf.parent, next.child, spatialmath.Compose(tf.pose, next.pose), stamp), nil
}

// Inverse returns child→parent.
func (tf *Transform) Inverse() *Transform {
	return NewTransform(tf.child, tf.parent, spatialmath.PoseInverse(tf.pose), tf.stamp)
}

// AlmostEqual reports whether both transforms relate the same frames by approximately the same pose.
func (tf *Transform) AlmostEqual(other *Transform) bool {
	return tf.parent == other.parent && tf.child == other.child && spatialmath.PoseAlmostEqual(tf.pose, other.pose)
}

func (tf *Transform) String() string {
	return fmt.Sprintf("%s->%s %v", tf.parent, tf.child, tf.pose)
}

// TransformConfig is the serializable form of a Transform.
type TransformConfig struct {
	Parent string                 `json:"parent"`
	Child  string                 `json:"child"`
	Pose   spatialmath.PoseConfig `json:"pose"`
	Stamp  time.Time              `json:"stamp,omitempty"`
}

// NewTransformConfig converts a transform into its serializable form.
func NewTransformConfig(tf *Transform) *TransformConfig {
	return &TransformConfig{
		Parent: tf.parent,
		Child:  tf.child,
		Pose:   *spatialmath.NewPoseConfig(tf.pose),
		Stamp:  tf.stamp,
	}
}

// Validate ensures the transform names both of its frames.
func (cfg *TransformConfig) Validate(path string) error {
	if cfg.Parent == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "parent")
	}
	if cfg.Child == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "child")
	}
	if cfg.Parent == cfg.Child {
		return fmt.Errorf("%s: parent and child are both %q", path, cfg.Parent)
	}
	return nil
}

// ParseConfig converts the config into a Transform. A zero stamp is replaced by now.
func (cfg *TransformConfig) ParseConfig(now time.Time) *Transform {
	stamp := cfg.Stamp
	if stamp.IsZero() {
		stamp = now
	}
	return NewTransform(cfg.Parent, cfg.Child, cfg.Pose.ParseConfig(), stamp)
}
