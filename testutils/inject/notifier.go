package inject

import (
	"context"
	"sync"
)

// Notifier is a notifier that remembers what it was asked to say.
type Notifier struct {
	NotifyFunc func(ctx context.Context, msg string) error

	mu       sync.Mutex
	messages []string
}

// Notify records msg, then calls the injected Notify if there is one.
func (n *Notifier) Notify(ctx context.Context, msg string) error {
	n.mu.Lock()
	n.messages = append(n.messages, msg)
	n.mu.Unlock()
	if n.NotifyFunc == nil {
		return nil
	}
	return n.NotifyFunc(ctx, msg)
}

// Messages returns every message received so far.
func (n *Notifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}
