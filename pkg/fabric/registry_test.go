package fabric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MaxQueueBytes:        1000,
		MaxConcurrentStreams: 4,
		InitialQueueBytes:    100,
	}
}

func TestNewRegistry_RejectsCeilingAboveBudget(t *testing.T) {
	budget := NewGlobalMemoryBudget(1000, 100)
	_, err := NewRegistry(budget, RegistryConfig{MaxQueueBytes: 1000, MaxConcurrentStreams: 4})
	assert.Error(t, err, "4 streams * 1000 bytes exceeds a 1000 byte budget")
}

func TestRegistry_GetOrCreateIsIdempotent(t *testing.T) {
	budget := NewGlobalMemoryBudget(100000, 1000)
	reg, err := NewRegistry(budget, testRegistryConfig())
	require.NoError(t, err)

	sd := StreamDescriptor{Namespace: "ns", Name: "s1"}
	q1, err := reg.GetOrCreate(sd)
	require.NoError(t, err)
	q2, err := reg.GetOrCreate(sd)
	require.NoError(t, err)

	assert.Same(t, q1, q2)
}

func TestRegistry_GetOrCreateEnforcesStreamCeiling(t *testing.T) {
	budget := NewGlobalMemoryBudget(100000, 1000)
	cfg := testRegistryConfig()
	cfg.MaxConcurrentStreams = 1
	reg, err := NewRegistry(budget, cfg)
	require.NoError(t, err)

	_, err = reg.GetOrCreate(StreamDescriptor{Name: "a"})
	require.NoError(t, err)

	_, err = reg.GetOrCreate(StreamDescriptor{Name: "b"})
	assert.Error(t, err)
}

func TestRegistry_GetDoesNotCreate(t *testing.T) {
	budget := NewGlobalMemoryBudget(100000, 1000)
	reg, err := NewRegistry(budget, testRegistryConfig())
	require.NoError(t, err)

	_, ok := reg.Get(StreamDescriptor{Name: "missing"})
	assert.False(t, ok)
}

func TestRegistry_ListBuffersIsSorted(t *testing.T) {
	budget := NewGlobalMemoryBudget(100000, 1000)
	reg, err := NewRegistry(budget, testRegistryConfig())
	require.NoError(t, err)

	reg.GetOrCreate(StreamDescriptor{Name: "zebra"})
	reg.GetOrCreate(StreamDescriptor{Name: "apple"})

	descs := reg.ListBuffers()
	require.Len(t, descs, 2)
	assert.Equal(t, "apple", descs[0].Name)
	assert.Equal(t, "zebra", descs[1].Name)
}

func TestRegistry_BloomFilterRecordsDescriptorOnCreate(t *testing.T) {
	budget := NewGlobalMemoryBudget(100000, 1000)
	reg, err := NewRegistry(budget, testRegistryConfig())
	require.NoError(t, err)

	sd := StreamDescriptor{Namespace: "ns", Name: "s1"}
	fp := fingerprint(sd)

	assert.False(t, reg.seen.Test(fp), "filter must not report a fresh descriptor as seen")

	_, err = reg.GetOrCreate(sd)
	require.NoError(t, err)

	assert.True(t, reg.seen.Test(fp), "filter must record a descriptor once its buffer is created")
}

func TestRegistry_ShutdownClearsButKeepsRegistryUsable(t *testing.T) {
	budget := NewGlobalMemoryBudget(100000, 1000)
	reg, err := NewRegistry(budget, testRegistryConfig())
	require.NoError(t, err)

	reg.GetOrCreate(StreamDescriptor{Name: "a"})
	reg.Shutdown()

	assert.Empty(t, reg.ListBuffers())
}
