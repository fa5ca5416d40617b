package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/harunnryd/navvoice/pkg/errorsx"
)

// ErrCircuitOpen is returned while the breaker refuses new sessions.
var ErrCircuitOpen = errorsx.New(errorsx.ReasonTransport, "recognition circuit open")

// IsCircuitOpen reports whether err came from an open breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// CircuitBreaker blocks requests after repeated service failures so callers
// fall back to another input path instead of dialing a dead endpoint.
type CircuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openUntil time.Time
	cooldown  time.Duration
	// Trips decides which errors count as failures. Defaults to transport
	// and remote errors.
	Trips func(error) bool
	now   func() time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Before(c.openUntil)
}

func (c *CircuitBreaker) OnSuccess() {
	c.mu.Lock()
	c.failures = 0
	c.openUntil = time.Time{}
	c.mu.Unlock()
}

func (c *CircuitBreaker) OnError(err error) {
	if err == nil || !c.trips(err) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold {
		c.openUntil = c.now().Add(c.cooldown)
		c.failures = 0
	}
}

func (c *CircuitBreaker) trips(err error) bool {
	if c.Trips != nil {
		return c.Trips(err)
	}
	return errorsx.IsTransport(err) || errorsx.HasReason(err, errorsx.ReasonRemote)
}
