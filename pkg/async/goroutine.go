package async

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/platinummonkey/snaplock/pkg/observability"
)

// ErrPoolClosed is returned by Submit once a pool is draining or shut
// down.
var ErrPoolClosed = errors.New("worker pool closed")

// SafeGo runs fn on its own goroutine under a timeout-bounded child of
// parentCtx. A panic or returned error is logged under taskName
// instead of crashing the process. log may be nil, which logs to
// stdout.
//
//	async.SafeGo(ctx, 5*time.Second, "audit fan-out", log, func(ctx context.Context) error {
//	    return backend.Log(ctx, event)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, log *observability.Logger, fn func(context.Context) error) {
	log = ensureLogger(log)
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()
		defer observability.RecoverPanic(log, taskName)

		if err := fn(ctx); err != nil {
			log.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}

// WorkerPool runs submitted tasks on a fixed set of workers, each task
// under its own timeout. Task errors and recovered panics are
// collected on Errors; when that buffer is full further errors are
// logged and dropped rather than blocking a worker.
type WorkerPool struct {
	taskName string
	timeout  time.Duration
	log      *observability.Logger

	workCh chan func(context.Context) error
	errCh  chan error
	doneCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	draining bool
	drain    sync.Once
}

// NewWorkerPool starts workers goroutines processing submitted tasks.
// Each task runs under a child context bounded by timeout. log may be
// nil, which logs to stdout.
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration, log *observability.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	p := &WorkerPool{
		taskName: taskName,
		timeout:  timeout,
		log:      ensureLogger(log),
		workCh:   make(chan func(context.Context) error, workers*2),
		errCh:    make(chan error, workers*10),
		doneCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.worker()
			}()
		}
		wg.Wait()
		close(p.doneCh)
	}()

	return p
}

// Submit queues one task. It blocks while the queue is full and
// returns ErrPoolClosed once the pool is draining or its context is
// cancelled.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.draining {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- fn:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Wait stops intake, lets the workers drain every queued task, and
// releases the pool. Submit fails afterwards.
func (p *WorkerPool) Wait() {
	p.closeIntake()
	<-p.doneCh
	p.cancel()
}

// Shutdown is Wait with an upper bound: tasks still queued after
// timeout are abandoned by cancelling the pool context.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.closeIntake()

	select {
	case <-p.doneCh:
		p.cancel()
		return nil
	case <-time.After(timeout):
		p.cancel()
		return fmt.Errorf("worker pool shutdown timed out after %v", timeout)
	}
}

// Errors returns the collection channel. Read it with a non-blocking
// select, or after Wait to harvest everything the buffer held.
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

// closeIntake marks the pool draining and closes the work channel.
// The write lock cannot be taken while a Submit send is in flight, so
// the close below never races a send.
func (p *WorkerPool) closeIntake() {
	p.mu.Lock()
	p.draining = true
	p.mu.Unlock()

	p.drain.Do(func() { close(p.workCh) })
}

func (p *WorkerPool) worker() {
	defer observability.RecoverPanic(p.log, p.taskName)

	for {
		select {
		case <-p.ctx.Done():
			return
		case fn, ok := <-p.workCh:
			if !ok {
				return
			}
			p.runTask(fn)
		}
	}
}

// runTask executes one task under the pool timeout, converting a panic
// into a collected error.
func (p *WorkerPool) runTask(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	defer func() {
		if rerr := observability.MustRecover(recover()); rerr != nil {
			p.collect(rerr)
		}
	}()

	if err := fn(ctx); err != nil {
		p.collect(err)
	}
}

func (p *WorkerPool) collect(err error) {
	select {
	case p.errCh <- err:
	default:
		p.log.WithError(err).WithField("task", p.taskName).Error("error buffer full, dropping task error")
	}
}

// Batch fans fn out over items on a temporary pool and returns every
// collected error after all items finish.
//
//	errs := async.Batch(ctx, paths, 5, "lock simulation", 10*time.Second, log,
//	    func(ctx context.Context, path string) error {
//	        return simulateRequest(ctx, path)
//	    })
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	log *observability.Logger, fn func(context.Context, T) error) []error {

	pool := NewWorkerPool(ctx, workers, taskName, timeout, log)

	var errs []error
	for _, item := range items {
		item := item
		if err := pool.Submit(func(ctx context.Context) error {
			return fn(ctx, item)
		}); err != nil {
			errs = append(errs, err)
			break
		}
	}

	pool.Wait()

	for {
		select {
		case err := <-pool.errCh:
			errs = append(errs, err)
		default:
			return errs
		}
	}
}

var fallbackLog = observability.NewLogger(observability.InfoLevel, os.Stdout)

func ensureLogger(log *observability.Logger) *observability.Logger {
	if log != nil {
		return log
	}
	return fallbackLog
}
