package broker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/couriermq/courier/pkg/log"
)

// Reaper periodically invokes Registry.Cleanup on a fixed interval. An
// interval of 0 means "immediately loop" — no throttling between passes.
type Reaper struct {
	registry *Registry
	interval time.Duration
}

// NewReaper creates a Reaper driving registry's cleanup pass.
func NewReaper(registry *Registry, interval time.Duration) *Reaper {
	return &Reaper{registry: registry, interval: interval}
}

// Run blocks, invoking a cleanup pass every interval until ctx is
// cancelled. A panic inside one pass is recovered and logged; it never
// takes down the process.
func (r *Reaper) Run(ctx context.Context) {
	logger := log.WithComponent("reaper")

	if r.interval <= 0 {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				r.runPass(logger)
			}
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runPass(logger)
		}
	}
}

// runPass invokes one Registry.Cleanup pass, recovering from any panic.
func (r *Reaper) runPass(logger zerolog.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("reaper pass panicked, recovered")
		}
	}()
	r.registry.Cleanup(time.Now())
}
