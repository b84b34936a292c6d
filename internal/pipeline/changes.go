package pipeline

import (
	"context"
	"errors"

	"scorecard-insights-go/internal/realtime"
)

// OnChange returns a feed callback that re-fetches in full on every event.
// Product changes and resyncs also drop the cached catalog first.
func (r *Refresher) OnChange(invalidateCatalog func()) func(context.Context, realtime.Event) {
	return func(ctx context.Context, ev realtime.Event) {
		if invalidateCatalog != nil && (ev.Table == "products" || ev.Op == realtime.OpResync) {
			invalidateCatalog()
		}
		log := r.log.WithField("table", ev.Table).WithField("op", ev.Op).WithField("id", ev.ID)
		if _, err := r.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
			log.WithField("error", err.Error()).Warn("refresh after change failed")
			return
		}
		log.Debug("refreshed after change")
	}
}
