package fabric

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// growPollInterval bounds how long a single iteration of AddRecord's
// back-pressure loop parks before re-checking whether it should keep
// waiting on the budget, waiting on queue space, or whether the caller's
// context has been cancelled in the meantime.
const growPollInterval = 250 * time.Millisecond

// Enqueuer is the producer-facing half of the fabric. A single Enqueuer is
// normally shared by every goroutine feeding records into a BufferManager.
type Enqueuer struct {
	registry  *Registry
	budget    *GlobalMemoryBudget
	estimator Estimator
}

func newEnqueuer(registry *Registry, budget *GlobalMemoryBudget, estimator Estimator) *Enqueuer {
	return &Enqueuer{registry: registry, budget: budget, estimator: estimator}
}

// AddRecord charges msg against sd's queue, growing the queue's capacity
// from the global budget as needed up to MAX_QUEUE_BYTES. It blocks until
// the message is admitted, ctx is cancelled (returning ErrInterrupted), or
// the message can never fit (returning a plain error, since no amount of
// waiting would help).
func (e *Enqueuer) AddRecord(ctx context.Context, sd StreamDescriptor, msg Message) error {
	q, err := e.registry.GetOrCreate(sd)
	if err != nil {
		return err
	}

	size := e.estimator.EstimateBytes(sd, msg)
	if size > e.registry.cfg.MaxQueueBytes {
		return fmt.Errorf("fabric: message of %d bytes exceeds MAX_QUEUE_BYTES (%d) for stream %s", size, e.registry.cfg.MaxQueueBytes, sd)
	}

	for {
		if ctx.Err() != nil {
			return ErrInterrupted
		}

		if q.Offer(msg, size) {
			return nil
		}

		switch err := e.grow(ctx, q); {
		case err == nil:
			continue
		case errors.Is(err, errCapacityCeiling):
			// Already at the per-stream ceiling; only a consumer draining
			// the queue can make room.
			q.waitForSpace(ctx, growPollInterval)
		case errors.Is(err, errBudgetExhausted):
			// grow already parked on the budget's condition variable and
			// woke up with nothing granted; loop and try again.
			continue
		default:
			return err
		}
	}
}

// grow requests one block from the budget and applies as much of it as fits
// under MAX_QUEUE_BYTES, refunding any excess immediately. It returns
// errCapacityCeiling without touching the budget if the queue is already at
// MAX_QUEUE_BYTES, and errBudgetExhausted if it parked on the budget's
// condition variable (via the budget's wait) and woke up with no grant
// because ctx was not yet cancelled. Both are internal sentinels that never
// escape this package; AddRecord's retry loop is the only caller.
func (e *Enqueuer) grow(ctx context.Context, q *StreamQueue) error {
	ceiling := e.registry.cfg.MaxQueueBytes
	if q.CapacityBytes() >= ceiling {
		return errCapacityCeiling
	}

	grant := e.budget.RequestBlock()
	if grant == 0 {
		e.budget.wait(ctx.Done())
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return errBudgetExhausted
	}

	current := q.CapacityBytes()
	target := current + grant
	if target > ceiling {
		excess := target - ceiling
		target = ceiling
		e.budget.Free(excess)
	}
	q.SetCapacity(target)
	return nil
}
