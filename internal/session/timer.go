package session

import (
	"context"
	"time"

	"github.com/miss-electronics/proctor-agent/internal/model"
	"github.com/miss-electronics/proctor-agent/internal/store"
)

// runTimer drives the one-second countdown while the session is active.
// It is started by Start and stopped by context cancellation whenever the
// session leaves Active, so no stray tick can fire a submit after
// termination. On reaching zero it triggers the auto-submission exactly
// once and returns.
func (c *Controller) runTimer(ctx context.Context, epoch int) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if expired := c.tick(epoch); expired {
				// Timeout submission runs outside the tick lock; submit
				// re-validates the session phase and epoch itself.
				if err := c.submit(context.Background(), model.EndTimeout); err != nil {
					c.log.Error().Err(err).Msg("Timeout auto-submission failed")
				}
				return
			}
		}
	}
}

// tick decrements remaining time by one second and persists the new value.
// It reports true when the countdown reached zero on this tick.
func (c *Controller) tick(epoch int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseActive || epoch != c.epoch {
		return false
	}

	if c.remaining > 0 {
		c.remaining--
	}
	c.progress.SaveInt(store.KeyTimeRemaining, c.remaining)
	c.pushState()

	return c.remaining == 0
}
