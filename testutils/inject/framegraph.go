// Package inject provides collaborators whose methods can be swapped out in tests.
package inject

import (
	"context"
	"time"

	"github.com/freeplay-sandbox/sandtray-localisation/referenceframe"
)

// FrameGraph is an injected frame graph.
type FrameGraph struct {
	referenceframe.Graph
	FrameExistsFunc       func(ctx context.Context, name string) (bool, error)
	LookupTransformFunc   func(ctx context.Context, parent, child string) (*referenceframe.Transform, error)
	WaitForTransformFunc  func(ctx context.Context, parent, child string, timeout time.Duration) (*referenceframe.Transform, error)
	PublishTransformsFunc func(ctx context.Context, transforms ...*referenceframe.Transform) error
}

// FrameExists calls the injected FrameExists or the real version.
func (g *FrameGraph) FrameExists(ctx context.Context, name string) (bool, error) {
	if g.FrameExistsFunc == nil {
		return g.Graph.FrameExists(ctx, name)
	}
	return g.FrameExistsFunc(ctx, name)
}

// LookupTransform calls the injected LookupTransform or the real version.
func (g *FrameGraph) LookupTransform(ctx context.Context, parent, child string) (*referenceframe.Transform, error) {
	if g.LookupTransformFunc == nil {
		return g.Graph.LookupTransform(ctx, parent, child)
	}
	return g.LookupTransformFunc(ctx, parent, child)
}

// WaitForTransform calls the injected WaitForTransform or the real version.
func (g *FrameGraph) WaitForTransform(
	ctx context.Context,
	parent, child string,
	timeout time.Duration,
) (*referenceframe.Transform, error) {
	if g.WaitForTransformFunc == nil {
		return g.Graph.WaitForTransform(ctx, parent, child, timeout)
	}
	return g.WaitForTransformFunc(ctx, parent, child, timeout)
}

// PublishTransforms calls the injected PublishTransforms or the real version.
func (g *FrameGraph) PublishTransforms(ctx context.Context, transforms ...*referenceframe.Transform) error {
	if g.PublishTransformsFunc == nil {
		return g.Graph.PublishTransforms(ctx, transforms...)
	}
	return g.PublishTransformsFunc(ctx, transforms...)
}
