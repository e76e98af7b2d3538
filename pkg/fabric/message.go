package fabric

// StreamDescriptor is the opaque identity of a logical stream. Equality
// defines queue partitioning. It is produced by the upstream parser and is
// never mutated by this package.
type StreamDescriptor struct {
	Namespace string
	Name      string
}

// String returns a human-readable form suitable for logging and telemetry.
func (d StreamDescriptor) String() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "." + d.Name
}

// MessageKind discriminates the kind of data a Message carries.
type MessageKind int

const (
	// RecordKind messages carry a serialized data record; their charged
	// byte size is estimator-provided.
	RecordKind MessageKind = iota
	// StateKind messages carry out-of-band checkpoint/state data.
	StateKind
	// ControlKind messages carry any other control payload (e.g. stream
	// completion markers).
	ControlKind
)

func (k MessageKind) String() string {
	switch k {
	case RecordKind:
		return "RECORD"
	case StateKind:
		return "STATE"
	case ControlKind:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// nonRecordNominalSize is the fixed charge applied to any non-RECORD
// message; control/state payloads are small and out-of-band, so their true
// size is not worth estimating.
const nonRecordNominalSize = 1024

// Message is the unit of data moved through the fabric. It is treated as an
// immutable value; only its estimated byte size is ever inspected.
type Message struct {
	Kind    MessageKind
	Payload []byte
}

// QueueEntry pairs a Message with the byte size a StreamQueue charged
// against its capacity for it. Once enqueued, ByteSize is the amount a
// consumer will later refund through a Batch.
type QueueEntry struct {
	Message  Message
	ByteSize int64
}
