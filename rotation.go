package goVerify

import (
	"context"
	"time"

	"github.com/MrEthical07/goVerify/keylayer"
)

// RotationHandler receives layer rotations that are due. Executing the
// rotation is the handler's responsibility.
type RotationHandler func(ctx context.Context, due []keylayer.Rotation)

// DueRotations lists key layers whose rotation date has passed.
func (e *Engine) DueRotations() []keylayer.Rotation {
	if e.layerCodec == nil {
		return nil
	}
	return e.layerCodec.DueRotations(e.now())
}

// RunRotationSweep calls fn with the due rotations every interval until ctx
// ends. Sweeps read the layer sets only and never take identity locks. It
// returns ctx.Err().
func (e *Engine) RunRotationSweep(ctx context.Context, interval time.Duration, fn RotationHandler) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			due := e.DueRotations()
			if len(due) == 0 {
				continue
			}
			e.logger.Info("key layer rotations due", "count", len(due))
			if fn != nil {
				fn(ctx, due)
			}
		}
	}
}
