package fabric

import "sync"

// Estimator assigns a byte charge to a Message before it enters a
// StreamQueue. The fabric ships one implementation, RollingEstimator, but
// callers may supply their own (e.g. a fixed-size estimator for fuzz tests).
type Estimator interface {
	// EstimateBytes returns the charge for msg on the given stream and
	// records it for future estimates on that stream.
	EstimateBytes(sd StreamDescriptor, msg Message) int64
}

// RollingEstimator tracks a moving average of observed RECORD payload sizes
// per stream, seeded from the first few samples, so that early records on a
// newly seen stream are not charged at some arbitrary global default. Non-
// RECORD messages are always charged nonRecordNominalSize and never update
// the average, mirroring the adaptive-sizing style used elsewhere in this
// codebase for access-pattern statistics.
type RollingEstimator struct {
	mu    sync.Mutex
	alpha float64
	avg   map[StreamDescriptor]*rollingAverage
}

type rollingAverage struct {
	samples int
	mean    float64
}

// NewRollingEstimator constructs an estimator with the given exponential
// smoothing factor. alpha must be in (0, 1]; a larger alpha favors recent
// samples more heavily.
func NewRollingEstimator(alpha float64) *RollingEstimator {
	if alpha <= 0 || alpha > 1 {
		raiseProgrammerError("NewRollingEstimator", "alpha must be in (0, 1]")
		alpha = 1
	}
	return &RollingEstimator{
		alpha: alpha,
		avg:   make(map[StreamDescriptor]*rollingAverage),
	}
}

// EstimateBytes implements Estimator.
func (e *RollingEstimator) EstimateBytes(sd StreamDescriptor, msg Message) int64 {
	if msg.Kind != RecordKind {
		return nonRecordNominalSize
	}

	size := float64(len(msg.Payload))

	e.mu.Lock()
	defer e.mu.Unlock()

	ra, ok := e.avg[sd]
	if !ok {
		ra = &rollingAverage{mean: size, samples: 1}
		e.avg[sd] = ra
		return int64(size)
	}

	ra.samples++
	if ra.samples <= warmupSamples {
		// During warmup, weight every sample equally so a handful of
		// early records settle the estimate quickly instead of being
		// swamped by the smoothing factor.
		ra.mean += (size - ra.mean) / float64(ra.samples)
	} else {
		ra.mean += e.alpha * (size - ra.mean)
	}

	return int64(ra.mean)
}

// warmupSamples is the number of initial samples averaged with equal
// weight before exponential smoothing takes over.
const warmupSamples = 8

// Reset discards all per-stream state, e.g. after a stream's descriptor is
// evicted from the registry.
func (e *RollingEstimator) Reset(sd StreamDescriptor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.avg, sd)
}
