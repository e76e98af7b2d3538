package telemetryserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaydata/bufferfabric/pkg/fabric"
)

type fakeSource struct {
	snap fabric.Snapshot
}

func (f fakeSource) Snapshot() fabric.Snapshot { return f.snap }

// newTestRouter exercises the handlers directly through httptest rather
// than binding a real listener, since ListenAndServe owns the
// netutil.LimitListener wiring tested separately by inspection.
func newTestRouter(s *Server) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/buffers", s.handleSnapshot).Methods("GET")
	return router
}

func TestServer_HandleSnapshotReturnsJSON(t *testing.T) {
	src := fakeSource{snap: fabric.Snapshot{
		AllocatedBytes: 42,
		MaxBytes:       100,
		Streams: []fabric.StreamSnapshot{
			{Descriptor: fabric.StreamDescriptor{Name: "s1"}, Size: 3, UsedBytes: 10, CapacityBytes: 50},
		},
	}}
	s := New(src, Config{Addr: ":0"})

	req := httptest.NewRequest(http.MethodGet, "/api/buffers", nil)
	rec := httptest.NewRecorder()
	newTestRouter(s).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got fabric.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 42, got.AllocatedBytes)
	assert.Len(t, got.Streams, 1)
	assert.Equal(t, "s1", got.Streams[0].Descriptor.Name)
}

func TestServer_ShutdownWithoutListenIsSafe(t *testing.T) {
	src := fakeSource{}
	s := New(src, Config{Addr: ":0"})
	assert.NoError(t, s.Shutdown(context.Background()))
}
