// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"runtime"
	"sync"

	"multimodel-video/internal/domain"

	"github.com/rs/zerolog"
)

// Job is one unit of queued work executed by the pool.
type Job func(ctx context.Context)

// Pool runs submitted jobs on a fixed set of workers, decoupled from the
// connection-handling goroutines. Submit never blocks: when the queue is
// saturated it reports domain.ErrQueueFull so the caller can reject cleanly.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Job
	quit chan struct{}
	n    int
	log  *zerolog.Logger
}

func NewPool(workers, queueSize int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	l := logger.With().Str("component", "worker.Pool").Logger()
	return &Pool{
		jobs: make(chan Job, queueSize),
		quit: make(chan struct{}),
		n:    workers,
		log:  &l,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case job := <-p.jobs:
					if job == nil {
						continue
					}
					job(ctx)
				}
			}
		}(i)
	}
	p.log.Info().Int("workers", p.n).Msg("worker pool started")
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

func (p *Pool) Submit(job Job) error {
	if job == nil {
		return domain.ErrInvalidArgument
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}
