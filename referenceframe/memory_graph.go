package referenceframe

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

type edge struct {
	tf     *Transform
	static bool
}

// MemoryGraph is an in-process Graph holding the latest transform to each child frame, so the
// frames form a tree. Dynamic transforms expire maxAge after their stamp and must be
// republished to stay available; static transforms never expire.
type MemoryGraph struct {
	clock  clock.Clock
	maxAge time.Duration

	mu      sync.Mutex
	edges   map[string]edge
	changed chan struct{}
}

// NewMemoryGraph returns an empty graph. A zero maxAge keeps dynamic transforms forever.
func NewMemoryGraph(clk clock.Clock, maxAge time.Duration) *MemoryGraph {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryGraph{
		clock:   clk,
		maxAge:  maxAge,
		edges:   map[string]edge{},
		changed: make(chan struct{}),
	}
}

// AddStaticTransforms adds transforms that never expire.
func (g *MemoryGraph) AddStaticTransforms(transforms ...*Transform) error {
	return g.publish(true, transforms)
}

// PublishTransforms adds or replaces the transform to each child frame.
func (g *MemoryGraph) PublishTransforms(ctx context.Context, transforms ...*Transform) error {
	return g.publish(false, transforms)
}

func (g *MemoryGraph) publish(static bool, transforms []*Transform) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// a batch is applied whole or not at all
	type prior struct {
		e       edge
		existed bool
	}
	replaced := map[string]prior{}
	fail := func(err error) error {
		for child, p := range replaced {
			if p.existed {
				g.edges[child] = p.e
			} else {
				delete(g.edges, child)
			}
		}
		return err
	}

	now := g.clock.Now()
	for _, tf := range transforms {
		if tf.Parent() == "" || tf.Child() == "" {
			return fail(errors.Errorf("transform %v must name both frames", tf))
		}
		if tf.Parent() == tf.Child() {
			return fail(errors.Errorf("frame %q cannot be its own parent", tf.Child()))
		}
		for _, up := range g.chainLocked(tf.Parent(), now) {
			if up.Parent() == tf.Child() {
				return fail(errors.Errorf("publishing %s->%s would create a cycle", tf.Parent(), tf.Child()))
			}
		}
		if _, ok := replaced[tf.Child()]; !ok {
			e, existed := g.edges[tf.Child()]
			replaced[tf.Child()] = prior{e: e, existed: existed}
		}
		g.edges[tf.Child()] = edge{tf: tf, static: static}
	}
	close(g.changed)
	g.changed = make(chan struct{})
	return nil
}

// FrameExists reports whether any live transform mentions the frame.
func (g *MemoryGraph) FrameExists(ctx context.Context, name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.existsLocked(name, g.clock.Now()), nil
}

// LookupTransform returns parent→child composed through their common ancestor.
func (g *MemoryGraph) LookupTransform(ctx context.Context, parent, child string) (*Transform, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lookupLocked(parent, child, g.clock.Now())
}

// WaitForTransform retries LookupTransform whenever new transforms are published, until it
// succeeds, the timeout elapses or ctx is done.
func (g *MemoryGraph) WaitForTransform(
	ctx context.Context,
	parent, child string,
	timeout time.Duration,
) (*Transform, error) {
	ctx, span := trace.StartSpan(ctx, "referenceframe::MemoryGraph::WaitForTransform")
	defer span.End()

	deadline := g.clock.Now().Add(timeout)
	for {
		g.mu.Lock()
		now := g.clock.Now()
		tf, err := g.lookupLocked(parent, child, now)
		changed := g.changed
		g.mu.Unlock()
		if err == nil {
			return tf, nil
		}

		remaining := deadline.Sub(now)
		if remaining <= 0 {
			return nil, errors.Wrapf(err, "waited %v", timeout)
		}
		timer := g.clock.Timer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-changed:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (g *MemoryGraph) live(e edge, now time.Time) bool {
	return e.static || g.maxAge == 0 || now.Sub(e.tf.Stamp()) <= g.maxAge
}

func (g *MemoryGraph) existsLocked(name string, now time.Time) bool {
	for child, e := range g.edges {
		if !g.live(e, now) {
			continue
		}
		if child == name || e.tf.Parent() == name {
			return true
		}
	}
	return false
}

// chainLocked returns the live transforms from frame up to its root, nearest first.
func (g *MemoryGraph) chainLocked(frame string, now time.Time) []*Transform {
	var chain []*Transform
	for i := 0; i <= len(g.edges); i++ {
		e, ok := g.edges[frame]
		if !ok || !g.live(e, now) {
			break
		}
		chain = append(chain, e.tf)
		frame = e.tf.Parent()
	}
	return chain
}

func (g *MemoryGraph) lookupLocked(parent, child string, now time.Time) (*Transform, error) {
	for _, name := range []string{parent, child} {
		if !g.existsLocked(name, now) {
			return nil, NewFrameMissingError(name)
		}
	}
	if parent == child {
		return NewTransform(parent, child, nil, now), nil
	}

	rootToParent, rootP := g.fromRootLocked(parent, now)
	rootToChild, rootC := g.fromRootLocked(child, now)
	if rootP != rootC {
		return nil, NewTransformUnavailableError(parent, child)
	}
	inv := rootToParent.Inverse()
	tf, err := inv.Compose(rootToChild)
	if err != nil {
		return nil, err
	}
	return tf, nil
}

// fromRootLocked returns root→frame and the name of the root.
func (g *MemoryGraph) fromRootLocked(frame string, now time.Time) (*Transform, string) {
	chain := g.chainLocked(frame, now)
	if len(chain) == 0 {
		return NewTransform(frame, frame, nil, now), frame
	}
	root := chain[len(chain)-1].Parent()
	tf := chain[len(chain)-1]
	for i := len(chain) - 2; i >= 0; i-- {
		// chain[i+1].Child() == chain[i].Parent() by construction
		tf, _ = tf.Compose(chain[i])
	}
	return tf, root
}
