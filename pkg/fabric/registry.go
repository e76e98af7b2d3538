package fabric

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"golang.org/x/crypto/sha3"
)

// RegistryConfig bounds the registry's resource usage. MaxQueueBytes is the
// per-stream capacity ceiling; MaxConcurrentStreams times MaxQueueBytes must
// never exceed the backing budget's MaxBytes, or a burst of new streams
// could alone exhaust global memory before any one of them is over its own
// ceiling.
type RegistryConfig struct {
	MaxQueueBytes      int64
	MaxConcurrentStreams int
	InitialQueueBytes  int64
}

// buffer is the internal per-stream bundle a Registry hands out: a queue
// plus the bookkeeping the Enqueuer/Dequeuer need.
type buffer struct {
	descriptor StreamDescriptor
	queue      *StreamQueue
}

// Registry is the get-or-create store of per-stream buffers. Lookups take
// an RLock fast path; creation takes the write lock and rechecks, the
// standard double-checked-locking shape for any get-or-create cache. A
// Bloom filter of previously created descriptor fingerprints guards that
// RLock fast path: when the filter guarantees a descriptor was never seen
// before, GetOrCreate skips the map read entirely (a lookup that is certain
// to miss) and goes straight to the write path, which matters once the
// registry holds many thousands of short-lived streams and most cold
// lookups are for genuinely new descriptors.
type Registry struct {
	mu      sync.RWMutex
	buffers map[StreamDescriptor]*buffer
	seen    *bloom.BloomFilter

	cfg    RegistryConfig
	budget *GlobalMemoryBudget
}

// NewRegistry constructs a Registry backed by budget. It returns an error
// if cfg would allow MaxConcurrentStreams streams, each grown to
// MaxQueueBytes, to collectively exceed the budget's ceiling.
func NewRegistry(budget *GlobalMemoryBudget, cfg RegistryConfig) (*Registry, error) {
	if cfg.MaxQueueBytes <= 0 || cfg.MaxConcurrentStreams <= 0 {
		return nil, &ProgrammerError{Op: "NewRegistry", Msg: "MaxQueueBytes and MaxConcurrentStreams must be positive"}
	}
	if cfg.InitialQueueBytes < 0 || cfg.InitialQueueBytes > cfg.MaxQueueBytes {
		return nil, &ProgrammerError{Op: "NewRegistry", Msg: "InitialQueueBytes must be between 0 and MaxQueueBytes"}
	}
	if ceiling := cfg.MaxQueueBytes * int64(cfg.MaxConcurrentStreams); ceiling > budget.MaxBytes() {
		return nil, fmt.Errorf("fabric: MAX_QUEUE_BYTES * MAX_CONCURRENT_STREAMS (%d) exceeds GLOBAL_LIMIT_BYTES (%d)", ceiling, budget.MaxBytes())
	}

	return &Registry{
		buffers: make(map[StreamDescriptor]*buffer),
		seen:    bloom.NewWithEstimates(uint(cfg.MaxConcurrentStreams*4+16), 0.01),
		cfg:     cfg,
		budget:  budget,
	}, nil
}

func fingerprint(sd StreamDescriptor) []byte {
	sum := sha3.Sum256([]byte(sd.Namespace + "\x00" + sd.Name))
	return sum[:]
}

// GetOrCreate returns the buffer for sd, creating one with the registry's
// configured initial capacity if this is the first reference to it. It
// returns an error if creating a new stream would exceed
// MaxConcurrentStreams.
func (r *Registry) GetOrCreate(sd StreamDescriptor) (*StreamQueue, error) {
	fp := fingerprint(sd)

	r.mu.RLock()
	probablySeen := r.seen.Test(fp)
	if probablySeen {
		if b, ok := r.buffers[sd]; ok {
			r.mu.RUnlock()
			return b.queue, nil
		}
	}
	r.mu.RUnlock()

	if !probablySeen {
		// The filter guarantees sd was never added before, so the map read
		// above was skipped entirely: it would be certain to miss. Go
		// straight to the write path, which re-checks under the write lock
		// before creating.
		return r.create(sd, fp)
	}

	// The filter says this fingerprint may have existed before but the
	// RLock-protected map read above missed (a concurrent creation not yet
	// visible, or a false positive); resolve it under the write lock.
	return r.create(sd, fp)
}

func (r *Registry) create(sd StreamDescriptor, fp []byte) (*StreamQueue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.buffers[sd]; ok {
		return b.queue, nil
	}
	if len(r.buffers) >= r.cfg.MaxConcurrentStreams {
		return nil, fmt.Errorf("fabric: MAX_CONCURRENT_STREAMS (%d) reached", r.cfg.MaxConcurrentStreams)
	}

	q := newStreamQueue(r.cfg.InitialQueueBytes)
	r.buffers[sd] = &buffer{descriptor: sd, queue: q}
	r.seen.Add(fp)
	return q, nil
}

// Get returns the buffer for sd without creating one.
func (r *Registry) Get(sd StreamDescriptor) (*StreamQueue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buffers[sd]
	if !ok {
		return nil, false
	}
	return b.queue, true
}

// ListBuffers returns every stream currently registered, sorted for
// deterministic telemetry output.
func (r *Registry) ListBuffers() []StreamDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StreamDescriptor, 0, len(r.buffers))
	for sd := range r.buffers {
		out = append(out, sd)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Shutdown clears every buffer's queue. It does not touch the budget; the
// caller is expected to discard the budget along with the registry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.buffers {
		b.queue.Clear()
	}
	r.buffers = make(map[StreamDescriptor]*buffer)
}
