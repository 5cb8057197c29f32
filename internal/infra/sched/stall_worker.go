package sched

import (
	"context"
	"time"

	"multimodel-video/internal/infra/metrics"
	"multimodel-video/internal/usecase"

	"github.com/rs/zerolog"
)

// StallWorker watches running tasks and reports the ones that have not
// checkpointed within the stall window. It only observes: a stalled task is
// never timed out or failed here, because a slow collaborator call can still
// succeed.
type StallWorker struct {
	interval time.Duration
	window   time.Duration
	taskUC   usecase.TaskUseCase
	log      *zerolog.Logger

	reported map[string]struct{}
}

func NewStallWorker(interval, window time.Duration, taskUC usecase.TaskUseCase, logger *zerolog.Logger) *StallWorker {
	l := logger.With().Str("component", "StallWorker").Logger()
	return &StallWorker{
		interval: interval,
		window:   window,
		taskUC:   taskUC,
		log:      &l,
		reported: make(map[string]struct{}),
	}
}

func (w *StallWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("starting stall worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping stall worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *StallWorker) sweep(ctx context.Context) {
	tasks, err := w.taskUC.ListActive(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("stall sweep failed")
		return
	}
	cutoff := time.Now().Add(-w.window)
	live := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		live[t.ID] = struct{}{}
		if !t.UpdatedAt.Before(cutoff) {
			continue
		}
		if _, done := w.reported[t.ID]; done {
			continue
		}
		w.reported[t.ID] = struct{}{}
		metrics.IncTaskStalled(string(t.Kind))
		w.log.Warn().
			Str("task_id", t.ID).
			Str("kind", string(t.Kind)).
			Time("last_update", t.UpdatedAt).
			Msg("task stalled")
	}
	// Forget terminal tasks so a re-submitted id can be reported again.
	for id := range w.reported {
		if _, ok := live[id]; !ok {
			delete(w.reported, id)
		}
	}
}
