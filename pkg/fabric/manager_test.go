package fabric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferManager_EndToEnd(t *testing.T) {
	mgr, err := NewBufferManager(ManagerConfig{
		GlobalLimitBytes:     100000,
		BlockBytes:           1000,
		MaxQueueBytes:        10000,
		MaxConcurrentStreams: 4,
	})
	require.NoError(t, err)
	defer mgr.Close(context.Background())

	sd := StreamDescriptor{Namespace: "ns", Name: "s1"}
	ctx := context.Background()

	require.NoError(t, mgr.Enqueuer.AddRecord(ctx, sd, Message{Kind: RecordKind, Payload: []byte("payload")}))

	batch, err := mgr.Dequeuer.Take(ctx, sd, 1000)
	require.NoError(t, err)
	defer batch.Close()

	_, ok, err := batch.Next()
	require.NoError(t, err)
	assert.True(t, ok)

	snap := mgr.Snapshot()
	assert.Len(t, snap.Streams, 1)
}

func TestBufferManager_RejectsInvalidRegistryConfig(t *testing.T) {
	_, err := NewBufferManager(ManagerConfig{
		GlobalLimitBytes:     1000,
		BlockBytes:           100,
		MaxQueueBytes:        1000,
		MaxConcurrentStreams: 10,
	})
	assert.Error(t, err)
}

func TestBufferManager_CloseIsIdempotent(t *testing.T) {
	mgr, err := NewBufferManager(ManagerConfig{
		GlobalLimitBytes:     1000,
		BlockBytes:           100,
		MaxQueueBytes:        500,
		MaxConcurrentStreams: 2,
		TelemetryInterval:    10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Close(ctx))
	require.NoError(t, mgr.Close(ctx))
}
