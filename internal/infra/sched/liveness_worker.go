package sched

import (
	"context"
	"time"

	"multimodel-video/internal/infra/ws"

	"github.com/rs/zerolog"
)

// LivenessWorker periodically prunes websocket connections that have not
// answered a ping within the liveness window.
type LivenessWorker struct {
	interval time.Duration
	maxAge   time.Duration
	hub      *ws.Hub
	log      *zerolog.Logger
}

func NewLivenessWorker(interval, maxAge time.Duration, hub *ws.Hub, logger *zerolog.Logger) *LivenessWorker {
	l := logger.With().Str("component", "LivenessWorker").Logger()
	return &LivenessWorker{interval: interval, maxAge: maxAge, hub: hub, log: &l}
}

func (w *LivenessWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("starting liveness worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping liveness worker")
			return ctx.Err()
		case <-ticker.C:
			if n := w.hub.PruneStale(w.maxAge); n > 0 {
				w.log.Info().Int("count", n).Msg("stale connections pruned")
			}
		}
	}
}
