package sweep

import (
	"context"
	"fmt"
	"time"
)

// StartInterval runs one pass immediately and then one per tick until the
// context is canceled. A pass that fails on its inputs is logged and the
// loop keeps going; per-workspace failures are already isolated inside Run.
func (r *Runner) StartInterval(ctx context.Context, every time.Duration, opts Options) error {
	if every <= 0 {
		return fmt.Errorf("interval must be positive, got %s", every)
	}
	r.logger.Info("starting interval sweep", "every", every.String())

	r.runOnce(ctx, opts)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx, opts)
		case <-ctx.Done():
			r.logger.Info("interval sweep stopped")
			return ctx.Err()
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, opts Options) {
	if _, err := r.Run(ctx, opts); err != nil {
		r.logger.Error("sweep pass failed", "error", err)
	}
}
