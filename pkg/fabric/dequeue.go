package fabric

import (
	"context"
	"time"
)

// takePollInterval is the POLL_INTERVAL of spec §4.4/§5: how long Take
// waits on a single poll attempt for the first entry to appear before
// giving up and returning an empty batch.
const takePollInterval = 5 * time.Millisecond

// Dequeuer is the consumer-facing half of the fabric. A BufferManager hands
// out one logical Dequeuer per registry, shared across however many
// consumer goroutines are draining streams.
type Dequeuer struct {
	registry *Registry
	budget   *GlobalMemoryBudget
}

func newDequeuer(registry *Registry, budget *GlobalMemoryBudget) *Dequeuer {
	return &Dequeuer{registry: registry, budget: budget}
}

// Take assembles a Batch for sd by greedily pulling queued entries up to
// bytesTarget. It never blocks indefinitely: it waits at most one
// POLL_INTERVAL for a first entry to appear, and returns an empty batch
// (reserved = 0) if that single attempt times out on an empty queue or if
// bytesTarget <= 0, in which case it returns an empty batch without
// polling at all. Once a first entry is available it is always included
// even if its size alone exceeds bytesTarget (a single oversized record
// must never wedge a stream); beyond that, Take stops adding entries the
// moment the next one would overshoot the target rather than popping it
// and discovering too late it doesn't fit.
//
// The returned Batch holds its entries' memory charge until Close is
// called; Take itself never frees budget.
func (d *Dequeuer) Take(ctx context.Context, sd StreamDescriptor, bytesTarget int64) (*Batch, error) {
	q, err := d.registry.GetOrCreate(sd)
	if err != nil {
		return nil, err
	}

	if bytesTarget <= 0 {
		return newBatch(nil, d.budget), nil
	}

	first, ok := q.Poll(ctx, takePollInterval)
	if !ok {
		if ctx.Err() != nil {
			return nil, ErrInterrupted
		}
		return newBatch(nil, d.budget), nil
	}

	entries := []QueueEntry{first}
	var total int64 = first.ByteSize

	for {
		peeked, ok := q.PeekFront(ctx, 0)
		if !ok {
			break
		}
		if total+peeked.ByteSize > bytesTarget {
			break
		}
		popped, ok := q.PopFront()
		if !ok {
			break
		}
		entries = append(entries, popped)
		total += popped.ByteSize
	}

	return newBatch(entries, d.budget), nil
}
