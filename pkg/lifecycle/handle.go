package lifecycle

import (
	"context"
	"time"
)

// Handle is given to each background worker by the Manager.
type Handle struct {
	ctx context.Context
	// Close tells the Manager the worker has exited. Call it via defer.
	Close func()
}

// Ctx returns the context cancelled on shutdown.
func (h *Handle) Ctx() context.Context {
	return h.ctx
}

// Done is closed when shutdown begins.
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Err returns why Done was closed.
func (h *Handle) Err() error {
	return h.ctx.Err()
}

// Sleep pauses for d, returning early with the context error on shutdown.
func (h *Handle) Sleep(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.Done():
		return h.Err()
	case <-timer.C:
		return nil
	}
}
