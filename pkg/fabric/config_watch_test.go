package fabric

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"global_limit_mb": 256}`), 0o644))

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	defer cw.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"global_limit_mb": 777}`), 0o644))

	select {
	case cfg := <-cw.Updates():
		assert.Equal(t, 777, cfg.GlobalLimitMB)
	case err := <-cw.Errors():
		t.Fatalf("unexpected reload error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("config watcher did not observe the write")
	}
}

func TestConfigWatcher_InvalidReloadReportsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"global_limit_mb": 256}`), 0o644))

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	defer cw.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"global_limit_mb": -1}`), 0o644))

	select {
	case cfg := <-cw.Updates():
		t.Fatalf("expected an error, got config %+v", cfg)
	case err := <-cw.Errors():
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("config watcher did not observe the write")
	}
}
