package anomaly

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// maxDefaultPoolWorkers caps the worker count derived from the CPU count.
const maxDefaultPoolWorkers = 4

// Pool runs detector fits on a fixed set of worker goroutines. Fitting the
// isolation ensemble is CPU-bound, so bounding the workers keeps concurrent
// scoring requests from starving I/O-bound work.
type Pool struct {
	detector *Detector
	jobs     chan poolJob
	wg       sync.WaitGroup
}

type poolJob struct {
	ctx          context.Context
	reply        chan []model.AnomalyFinding
	transactions []model.Transaction
}

// NewPool starts a pool of workers around a detector. A non-positive worker
// count falls back to the CPU count, capped.
func NewPool(detector *Detector, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > maxDefaultPoolWorkers {
			workers = maxDefaultPoolWorkers
		}
	}
	p := &Pool{
		detector: detector,
		jobs:     make(chan poolJob),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(workerID int) {
			defer p.wg.Done()
			p.worker(workerID)
		}(i)
	}
	return p
}

// Detect queues one scoring job and waits for its result. It returns the
// context error if the caller gives up before a worker picks the job up or
// finishes it.
func (p *Pool) Detect(ctx context.Context, transactions []model.Transaction) ([]model.AnomalyFinding, error) {
	// Reply is buffered so an abandoned job never blocks its worker.
	job := poolJob{
		ctx:          ctx,
		reply:        make(chan []model.AnomalyFinding, 1),
		transactions: transactions,
	}

	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case findings := <-job.reply:
		return findings, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting jobs and waits for in-flight fits to finish.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *Pool) worker(workerID int) {
	for job := range p.jobs {
		select {
		case <-job.ctx.Done():
			job.reply <- nil
			continue
		default:
		}

		slog.Debug("worker fitting outlier model",
			"worker_id", workerID,
			"batch_size", len(job.transactions))
		job.reply <- p.detector.Detect(job.transactions)
	}
}
