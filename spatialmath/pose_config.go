package spatialmath

import (
	"github.com/golang/geo/r3"
)

// QuaternionConfig is the serializable form of a rotation.
type QuaternionConfig struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PoseConfig is the serializable form of a Pose. A missing rotation means no rotation.
type PoseConfig struct {
	Translation r3.Vector         `json:"translation"`
	Rotation    *QuaternionConfig `json:"rotation,omitempty"`
}

// NewPoseConfig converts a pose into its serializable form.
func NewPoseConfig(p Pose) *PoseConfig {
	q := p.Orientation().Quaternion()
	return &PoseConfig{
		Translation: p.Point(),
		Rotation:    &QuaternionConfig{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag},
	}
}

// ParseConfig converts the config into a Pose.
func (cfg *PoseConfig) ParseConfig() Pose {
	if cfg.Rotation == nil {
		return NewPoseFromPoint(cfg.Translation)
	}
	r := cfg.Rotation
	return NewPose(cfg.Translation, NewQuaternion(r.W, r.X, r.Y, r.Z))
}
