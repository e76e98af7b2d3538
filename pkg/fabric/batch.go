package fabric

import "sync"

type batchState int

const (
	batchOpen batchState = iota
	batchDraining
	batchClosed
)

// Batch is a single-pass, lazily pulled sequence of messages assembled by a
// Dequeuer.Take call. A Batch holds its memory charge until Close is
// called, at which point the charge is returned to the GlobalMemoryBudget
// exactly once regardless of how many times Close is invoked.
//
// A Batch is not safe for concurrent use: it is meant to be owned by a
// single consumer goroutine from Take through Close.
type Batch struct {
	mu    sync.Mutex
	once  sync.Once
	state batchState

	entries []QueueEntry
	pos     int

	totalBytes int64
	budget     *GlobalMemoryBudget
}

func newBatch(entries []QueueEntry, budget *GlobalMemoryBudget) *Batch {
	var total int64
	for _, e := range entries {
		total += e.ByteSize
	}
	return &Batch{
		entries:    entries,
		totalBytes: total,
		budget:     budget,
		state:      batchOpen,
	}
}

// Next returns the next message in the batch. The second return value is
// false once every message has been consumed; it is not an error. Calling
// Next after Close returns ErrInvalidState.
func (b *Batch) Next() (Message, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == batchClosed {
		return Message{}, false, ErrInvalidState
	}
	if b.pos >= len(b.entries) {
		b.state = batchDraining
		return Message{}, false, nil
	}
	m := b.entries[b.pos].Message
	b.pos++
	if b.pos >= len(b.entries) {
		b.state = batchDraining
	}
	return m, true, nil
}

// Len returns the number of messages the batch was assembled with,
// regardless of how many have been pulled via Next so far.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// TotalBytes returns the byte charge this batch holds against the global
// budget until Close is called.
func (b *Batch) TotalBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalBytes
}

// Close returns the batch's byte charge to the budget. It is idempotent:
// only the first call has any effect, so a caller may safely defer Close
// even after an earlier explicit call.
func (b *Batch) Close() {
	b.once.Do(func() {
		b.mu.Lock()
		b.state = batchClosed
		total := b.totalBytes
		b.mu.Unlock()

		if total > 0 {
			b.budget.Free(total)
		}
	})
}
