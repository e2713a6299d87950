// Package async runs background work without letting it take the
// process down: every task gets panic recovery, a timeout-bounded
// context, and a place for its error to go.
//
// SafeGo fires one fire-and-forget goroutine. A panic or returned
// error is logged under the task name instead of propagating:
//
//	async.SafeGo(ctx, 5*time.Second, "audit fan-out", log, func(ctx context.Context) error {
//		return backend.Log(ctx, event)
//	})
//
// WorkerPool bounds concurrency for a stream of tasks. Task errors and
// recovered panics land on Errors; Wait drains the queue, Shutdown
// does the same with an upper bound, and Submit reports ErrPoolClosed
// afterwards:
//
//	pool := async.NewWorkerPool(ctx, 10, "bundle verification", 30*time.Second, log)
//	pool.Submit(func(ctx context.Context) error {
//		return verify(ctx, entry)
//	})
//	pool.Wait()
//
// Batch is the one-shot form: fan a function out over a slice on a
// temporary pool and get every error back once all items finish:
//
//	errs := async.Batch(ctx, requests, 5, "lock simulation", 10*time.Second, log,
//		func(ctx context.Context, req ScenarioRequest) error {
//			return simulate(ctx, req)
//		})
//
// Loggers may be nil; the package then logs to stdout. pkg/audit uses
// SafeGo for multi-backend fan-out, and the CLI simulator drives Batch.
package async
