// Package runner dispatches independent factor analyses onto a fixed-size
// worker pool, so one analysis's CPU time does not block others in a
// multi-request serving context. The analysis engine itself holds no shared
// mutable state; the pool only bounds parallelism and adds run identity,
// logging, and metrics.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/qmethod/qfactor"
	"github.com/qmethod/qfactor/internal/telemetry"
	"github.com/qmethod/qfactor/qmatrix"
)

// ErrPoolClosed is returned by Submit after Stop.
var ErrPoolClosed = errors.New("analysis pool is closed")

// Job pairs a sort matrix with the configuration snapshot to analyze it under.
type Job struct {
	Matrix *qmatrix.SortMatrix
	Config qfactor.Config
}

// Outcome is delivered on the channel returned by Submit.
type Outcome struct {
	RunID   string
	Result  *qfactor.Result
	Err     error
	Elapsed time.Duration
}

// Pool runs analyses on a bounded set of worker goroutines.
type Pool struct {
	workers int
	metrics *telemetry.MetricsRegistry

	jobs     chan submission
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type submission struct {
	ctx   context.Context
	job   Job
	runID string
	out   chan<- Outcome
}

// NewPool creates a pool with the given worker count; metrics may be nil.
func NewPool(workers int, metrics *telemetry.MetricsRegistry) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		metrics: metrics,
		jobs:    make(chan submission),
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Info().Int("workers", p.workers).Msg("Analysis pool started")
}

// Submit queues one analysis and returns a single-delivery outcome channel.
// It blocks until a worker accepts the job, the pool stops, or ctx is done.
// A submit parked on the handoff when Stop runs returns ErrPoolClosed.
func (p *Pool) Submit(ctx context.Context, job Job) (<-chan Outcome, error) {
	select {
	case <-p.done:
		return nil, ErrPoolClosed
	default:
	}

	out := make(chan Outcome, 1)
	sub := submission{ctx: ctx, job: job, runID: uuid.NewString(), out: out}

	// The jobs channel is never closed; Stop signals through done so a
	// blocked sender cannot hit a closed channel.
	select {
	case p.jobs <- sub:
		return out, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop closes the pool and waits for in-flight analyses to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
	log.Info().Msg("Analysis pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case sub := <-p.jobs:
			p.run(id, sub)
		}
	}
}

func (p *Pool) run(workerID int, sub submission) {
	if p.metrics != nil {
		p.metrics.ActiveAnalyses.Inc()
		defer p.metrics.ActiveAnalyses.Dec()
	}

	started := time.Now()
	result, err := qfactor.Analyze(sub.ctx, sub.job.Matrix, sub.job.Config)
	elapsed := time.Since(started)

	if p.metrics != nil {
		fallback := result != nil && result.UsedFallback
		nonConverged := result != nil && !result.RotationConverged
		p.metrics.ObserveAnalysis(elapsed, err != nil, fallback, nonConverged)
	}

	evt := log.Info()
	if err != nil {
		evt = log.Error().Err(err)
	}
	evt.Str("run_id", sub.runID).
		Int("worker", workerID).
		Dur("elapsed", elapsed).
		Msg("Analysis finished")

	sub.out <- Outcome{RunID: sub.runID, Result: result, Err: err, Elapsed: elapsed}
}
