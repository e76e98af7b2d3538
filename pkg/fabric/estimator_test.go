package fabric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollingEstimator_NonRecordAlwaysNominal(t *testing.T) {
	e := NewRollingEstimator(0.2)
	sd := StreamDescriptor{Name: "s"}

	got := e.EstimateBytes(sd, Message{Kind: StateKind, Payload: make([]byte, 99999)})
	assert.EqualValues(t, nonRecordNominalSize, got)
}

func TestRollingEstimator_FirstSampleIsExact(t *testing.T) {
	e := NewRollingEstimator(0.2)
	sd := StreamDescriptor{Name: "s"}

	got := e.EstimateBytes(sd, Message{Kind: RecordKind, Payload: make([]byte, 500)})
	assert.EqualValues(t, 500, got)
}

func TestRollingEstimator_ConvergesTowardsRepeatedSize(t *testing.T) {
	e := NewRollingEstimator(0.3)
	sd := StreamDescriptor{Name: "s"}

	var last int64
	for i := 0; i < 50; i++ {
		last = e.EstimateBytes(sd, Message{Kind: RecordKind, Payload: make([]byte, 1000)})
	}
	assert.InDelta(t, 1000, last, 5)
}

func TestRollingEstimator_StreamsAreIndependent(t *testing.T) {
	e := NewRollingEstimator(0.2)
	a := StreamDescriptor{Name: "a"}
	b := StreamDescriptor{Name: "b"}

	e.EstimateBytes(a, Message{Kind: RecordKind, Payload: make([]byte, 100)})
	got := e.EstimateBytes(b, Message{Kind: RecordKind, Payload: make([]byte, 9000)})
	assert.EqualValues(t, 9000, got)
}

func TestRollingEstimator_ResetDropsState(t *testing.T) {
	e := NewRollingEstimator(0.2)
	sd := StreamDescriptor{Name: "s"}
	e.EstimateBytes(sd, Message{Kind: RecordKind, Payload: make([]byte, 100)})

	e.Reset(sd)

	got := e.EstimateBytes(sd, Message{Kind: RecordKind, Payload: make([]byte, 5000)})
	assert.EqualValues(t, 5000, got, "after reset the first sample should be exact again")
}
