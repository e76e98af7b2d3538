package fabric

import (
	"context"
	"sync"
	"time"
)

// ManagerConfig bundles the knobs needed to construct a BufferManager.
type ManagerConfig struct {
	GlobalLimitBytes     int64
	BlockBytes           int64
	MaxQueueBytes        int64
	MaxConcurrentStreams int
	InitialQueueBytes    int64

	// EstimatorAlpha is the smoothing factor passed to NewRollingEstimator.
	// Zero selects a conservative default.
	EstimatorAlpha float64

	// TelemetryInterval is how often telemetry is logged. Zero disables
	// periodic telemetry; callers may still poll Snapshot directly.
	TelemetryInterval time.Duration
}

func (c ManagerConfig) registryConfig() RegistryConfig {
	return RegistryConfig{
		MaxQueueBytes:        c.MaxQueueBytes,
		MaxConcurrentStreams: c.MaxConcurrentStreams,
		InitialQueueBytes:    c.InitialQueueBytes,
	}
}

// BufferManager is the single entry point a host process wires up: it owns
// the budget, registry, estimator, and the Enqueuer/Dequeuer pair over
// them, plus an optional background telemetry loop.
type BufferManager struct {
	budget    *GlobalMemoryBudget
	registry  *Registry
	estimator Estimator

	Enqueuer *Enqueuer
	Dequeuer *Dequeuer

	telemetryCancel context.CancelFunc
	telemetryDone   chan struct{}

	closeOnce sync.Once
}

// NewBufferManager validates cfg and wires up a ready-to-use fabric.
func NewBufferManager(cfg ManagerConfig) (*BufferManager, error) {
	alpha := cfg.EstimatorAlpha
	if alpha <= 0 {
		alpha = 0.2
	}

	budget := NewGlobalMemoryBudget(cfg.GlobalLimitBytes, cfg.BlockBytes)
	registry, err := NewRegistry(budget, cfg.registryConfig())
	if err != nil {
		return nil, err
	}
	estimator := NewRollingEstimator(alpha)

	m := &BufferManager{
		budget:    budget,
		registry:  registry,
		estimator: estimator,
		Enqueuer:  newEnqueuer(registry, budget, estimator),
		Dequeuer:  newDequeuer(registry, budget),
	}

	if cfg.TelemetryInterval > 0 {
		m.startTelemetry(cfg.TelemetryInterval)
	}

	return m, nil
}

// Snapshot is a point-in-time summary of fabric occupancy, suitable for
// logging or exposing over the telemetry server.
type Snapshot struct {
	AllocatedBytes int64
	MaxBytes       int64
	Streams        []StreamSnapshot
}

// StreamSnapshot describes one registered stream's queue.
type StreamSnapshot struct {
	Descriptor    StreamDescriptor
	Size          int
	UsedBytes     int64
	CapacityBytes int64
}

// Snapshot captures current occupancy across the whole fabric.
func (m *BufferManager) Snapshot() Snapshot {
	descs := m.registry.ListBuffers()
	streams := make([]StreamSnapshot, 0, len(descs))
	for _, sd := range descs {
		q, ok := m.registry.Get(sd)
		if !ok {
			continue
		}
		streams = append(streams, StreamSnapshot{
			Descriptor:    sd,
			Size:          q.Size(),
			UsedBytes:     q.UsedBytes(),
			CapacityBytes: q.CapacityBytes(),
		})
	}
	return Snapshot{
		AllocatedBytes: m.budget.AllocatedBytes(),
		MaxBytes:       m.budget.MaxBytes(),
		Streams:        streams,
	}
}

func (m *BufferManager) startTelemetry(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	m.telemetryCancel = cancel
	m.telemetryDone = make(chan struct{})

	go func() {
		defer close(m.telemetryDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.logSnapshot()
			}
		}
	}()
}

func (m *BufferManager) logSnapshot() {
	snap := m.Snapshot()
	pkgLogger.WithField("allocated_bytes", snap.AllocatedBytes).
		WithField("max_bytes", snap.MaxBytes).
		WithField("stream_count", len(snap.Streams)).
		Info("buffer fabric telemetry")
}

// Close stops the telemetry loop, if any, and clears every registered
// stream's queue. It is idempotent.
func (m *BufferManager) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		if m.telemetryCancel != nil {
			m.telemetryCancel()
			select {
			case <-m.telemetryDone:
			case <-ctx.Done():
			}
		}
		m.registry.Shutdown()
	})
	return nil
}
