package utils

import (
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// Throttle lets an action through at most once per interval, e.g. to keep a warning raised
// every cycle from flooding the log.
type Throttle struct {
	clock   clock.Clock
	limiter *rate.Limiter
}

// NewThrottle returns a throttle that allows the first call immediately.
func NewThrottle(clk clock.Clock, interval time.Duration) *Throttle {
	if clk == nil {
		clk = clock.New()
	}
	return &Throttle{clock: clk, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Do calls f unless it was called less than interval ago. It reports whether f ran.
func (th *Throttle) Do(f func()) bool {
	if !th.limiter.AllowN(th.clock.Now(), 1) {
		return false
	}
	f()
	return true
}
