// Package worker provides a small generic worker pool with a bounded,
// non-blocking submit queue.
//
// It decouples a producer that must never block, such as the receiver loop,
// from slower consumers such as a NATS publisher:
//
//	pool, err := worker.NewPool(1, 256, publish)
//	if err != nil {
//	    return err
//	}
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(item); errors.Is(err, worker.ErrQueueFull) {
//	    // dropped
//	}
//
// Stop refuses new work and drains what is queued. With a single worker,
// items are processed in submission order.
package worker
