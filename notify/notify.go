// Package notify carries short free-text status messages to whoever speaks for the robot.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
)

// The only messages the localisation ever says.
const (
	MessageLost      = "I am lost!"
	MessageLocalised = "I know where I am now!"
)

// historySize bounds how many messages a Channel remembers.
const historySize = 32

// A Notifier delivers a status message.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// Message is a status message as sent on a channel.
type Message struct {
	Channel string    `json:"channel"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
}

// Channel is a named Notifier that logs every message and keeps the most recent ones so they
// can be read back.
type Channel struct {
	name   string
	clock  clock.Clock
	logger golog.Logger

	mu      sync.Mutex
	history []Message
}

// NewChannel returns an empty channel.
func NewChannel(name string, clk clock.Clock, logger golog.Logger) *Channel {
	if clk == nil {
		clk = clock.New()
	}
	return &Channel{name: name, clock: clk, logger: logger}
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// Notify records msg.
func (c *Channel) Notify(ctx context.Context, msg string) error {
	m := Message{Channel: c.name, Text: msg, Time: c.clock.Now()}
	c.logger.Infow("status", "channel", c.name, "text", msg)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, m)
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	return nil
}

// History returns the remembered messages, oldest first.
func (c *Channel) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.history...)
}
