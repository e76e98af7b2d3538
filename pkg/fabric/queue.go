package fabric

import (
	"context"
	"sync"
	"time"
)

// StreamQueue is a blocking, byte-accounted FIFO queue for a single stream.
// It never grows its own capacity; that is the Enqueuer's job. All methods
// are safe for concurrent use, though in the normal deployment shape a
// queue has many producers but a single consumer at a time.
type StreamQueue struct {
	mu sync.Mutex

	entries []QueueEntry

	capacityBytes int64
	usedBytes     int64

	lastEnqueueTime time.Time
	hasLastEnqueue  bool

	// signal wakes goroutines parked in PeekFront/Poll when an entry is
	// appended. It is a 1-buffered channel rather than a sync.Cond so a
	// bounded wait can select on it alongside a timer and ctx.Done().
	signal chan struct{}

	// spaceSignal wakes producers parked in waitForSpace when an entry is
	// removed, freeing room under a capacity ceiling that is already at
	// MAX_QUEUE_BYTES.
	spaceSignal chan struct{}
}

func newStreamQueue(initialCapacity int64) *StreamQueue {
	return &StreamQueue{
		capacityBytes: initialCapacity,
		signal:        make(chan struct{}, 1),
		spaceSignal:   make(chan struct{}, 1),
	}
}

func (q *StreamQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *StreamQueue) wakeSpace() {
	select {
	case q.spaceSignal <- struct{}{}:
	default:
	}
}

// Offer appends an entry iff usedBytes+byteSize <= capacityBytes. It never
// blocks and never grows capacity itself.
func (q *StreamQueue) Offer(msg Message, byteSize int64) bool {
	if byteSize < 0 {
		raiseProgrammerError("StreamQueue.Offer", "byteSize must not be negative")
		return false
	}

	q.mu.Lock()
	if q.usedBytes+byteSize > q.capacityBytes {
		q.mu.Unlock()
		return false
	}
	q.entries = append(q.entries, QueueEntry{Message: msg, ByteSize: byteSize})
	q.usedBytes += byteSize
	q.lastEnqueueTime = time.Now()
	q.hasLastEnqueue = true
	q.mu.Unlock()

	q.wake()
	return true
}

// Poll removes and returns the head entry, waiting up to timeout for one to
// appear. It returns (entry, false) if the timeout elapses with the queue
// still empty, or if ctx is cancelled first.
func (q *StreamQueue) Poll(ctx context.Context, timeout time.Duration) (QueueEntry, bool) {
	return q.wait(ctx, timeout, true)
}

// PeekFront returns the head entry without removing it, waiting up to
// timeout for one to appear. Pair with PopFront to consume it only once its
// size is known to fit a caller's remaining budget.
func (q *StreamQueue) PeekFront(ctx context.Context, timeout time.Duration) (QueueEntry, bool) {
	return q.wait(ctx, timeout, false)
}

// PopFront non-blockingly removes the current head entry, if any. It is
// meant to be called immediately after a successful PeekFront by the same
// (single) consumer of a stream.
func (q *StreamQueue) PopFront() (QueueEntry, bool) {
	q.mu.Lock()
	if len(q.entries) == 0 {
		q.mu.Unlock()
		return QueueEntry{}, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	q.usedBytes -= e.ByteSize
	q.mu.Unlock()

	q.wakeSpace()
	return e, true
}

func (q *StreamQueue) wait(ctx context.Context, timeout time.Duration, consume bool) (QueueEntry, bool) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.entries) > 0 {
			e := q.entries[0]
			if consume {
				q.entries = q.entries[1:]
				q.usedBytes -= e.ByteSize
			}
			q.mu.Unlock()
			if consume {
				q.wakeSpace()
			}
			return e, true
		}
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return QueueEntry{}, false
		}

		timer := time.NewTimer(remaining)
		select {
		case <-q.signal:
			timer.Stop()
		case <-timer.C:
			return QueueEntry{}, false
		case <-ctx.Done():
			timer.Stop()
			return QueueEntry{}, false
		}
	}
}

// waitForSpace blocks until either an entry is removed from the queue or
// the given deadline/ctx elapses, whichever comes first. It is used by a
// producer that found the queue full at its MAX_QUEUE_BYTES ceiling, where
// growing capacity is not an option and only consumption can make room.
func (q *StreamQueue) waitForSpace(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-q.spaceSignal:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// SetCapacity raises the queue's capacity. Capacity is monotonically
// non-decreasing; attempting to lower it below usedBytes is a programmer
// error.
func (q *StreamQueue) SetCapacity(bytes int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if bytes < q.usedBytes {
		raiseProgrammerError("StreamQueue.SetCapacity", "capacity cannot drop below usedBytes")
		return
	}
	if bytes < q.capacityBytes {
		raiseProgrammerError("StreamQueue.SetCapacity", "capacity must be monotonically non-decreasing")
		return
	}
	q.capacityBytes = bytes
}

// Clear drops all resident entries without returning their bytes to the
// global budget; it is only called from shutdown, where the process is
// terminating and the budget goes away with it.
func (q *StreamQueue) Clear() {
	q.mu.Lock()
	q.entries = nil
	q.usedBytes = 0
	q.mu.Unlock()
	q.wakeSpace()
}

// Size returns the number of resident entries.
func (q *StreamQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// UsedBytes returns the bytes currently charged against capacity.
func (q *StreamQueue) UsedBytes() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.usedBytes
}

// CapacityBytes returns the current capacity ceiling.
func (q *StreamQueue) CapacityBytes() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacityBytes
}

// LastEnqueueTime returns the time of the most recent successful Offer, if
// any has happened yet.
func (q *StreamQueue) LastEnqueueTime() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastEnqueueTime, q.hasLastEnqueue
}
