package referenceframe

import (
	"context"
	"time"
)

// Graph is a client of the frame graph: the service that knows how named frames relate to
// each other. Lookups always answer with the latest available transforms.
type Graph interface {
	// FrameExists reports whether the frame is currently known to the graph.
	FrameExists(ctx context.Context, name string) (bool, error)

	// LookupTransform returns parent→child without waiting. It fails with an error satisfying
	// IsTransformUnavailable if the graph cannot connect the two frames.
	LookupTransform(ctx context.Context, parent, child string) (*Transform, error)

	// WaitForTransform is LookupTransform, retried until the graph can answer or timeout elapses.
	WaitForTransform(ctx context.Context, parent, child string, timeout time.Duration) (*Transform, error)

	// PublishTransforms hands new transforms to the graph.
	PublishTransforms(ctx context.Context, transforms ...*Transform) error
}
