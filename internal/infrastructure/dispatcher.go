package infrastructure

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Dispatcher runs best-effort notifications on a bounded worker pool.
// Job failures are logged and counted, never returned to the submitter.
type Dispatcher struct {
	jobs    chan job
	timeout time.Duration
	metrics *Metrics
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(workers, queueSize int, timeout time.Duration, metrics *Metrics) *Dispatcher {
	d := &Dispatcher{
		jobs:    make(chan job, queueSize),
		timeout: timeout,
		metrics: metrics,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Go queues run without blocking. It returns false when the queue is full
// or the dispatcher is closed; the job is then dropped.
func (d *Dispatcher) Go(name string, run func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		zap.L().Warn("dispatch after close dropped", zap.String("job", name))
		d.metrics.ObserveDispatch(name, "dropped")
		return false
	}

	select {
	case d.jobs <- job{name: name, run: run}:
		return true
	default:
		zap.L().Warn("dispatch queue full, job dropped", zap.String("job", name))
		d.metrics.ObserveDispatch(name, "dropped")
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.execute(j)
	}
}

func (d *Dispatcher) execute(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("dispatch job panicked", zap.String("job", j.name), zap.Any("panic", r))
			d.metrics.ObserveDispatch(j.name, "panic")
		}
	}()

	if err := j.run(ctx); err != nil {
		zap.L().Error("dispatch job failed", zap.String("job", j.name), zap.Error(err))
		d.metrics.ObserveDispatch(j.name, "error")
		return
	}
	d.metrics.ObserveDispatch(j.name, "ok")
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}
