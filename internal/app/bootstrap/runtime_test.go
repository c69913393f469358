package bootstrap

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuntimeMemoryStorage(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("REDIS_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("PAYOUT_BASE_URL", "")

	rt, err := NewRuntime(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	t.Cleanup(rt.cleanupFn)
	assert.Nil(t, rt.directory)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		rt.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestPollBacksOffAfterFailure(t *testing.T) {
	rt := &Runtime{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- rt.poll(ctx, "test", 10*time.Millisecond, func(context.Context) (int, error) {
			if calls.Add(1) == 1 {
				return 0, errors.New("boom")
			}
			return 1, nil
		})
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not stop after cancellation")
	}
}
