package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() ClientConfig {
	cfg := DefaultClientConfig()
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = 5 * time.Millisecond
	cfg.RPS = 0
	return cfg
}

func TestClientPool_RetriesRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	pool := NewClientPool(fastConfig())

	var out struct {
		OK bool `json:"ok"`
	}
	err := pool.GetJSON(context.Background(), srv.URL, nil, &out)
	require.NoError(t, err)

	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.RetriedRequests)
	assert.Equal(t, int64(1), stats.SuccessRequests)
}

func TestClientPool_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	pool := NewClientPool(fastConfig())

	err := pool.GetJSON(context.Background(), srv.URL, nil, &struct{}{})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a 404 is not retryable")
}

func TestClientPool_SetsUserAgentAndHeaders(t *testing.T) {
	var gotUA, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	pool := NewClientPool(fastConfig())

	err := pool.GetJSON(context.Background(), srv.URL,
		http.Header{"Authorization": {"Bearer tok"}}, &struct{}{})
	require.NoError(t, err)

	assert.Equal(t, "BlitzProof/1.0", gotUA)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestClientPool_HonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	pool := NewClientPool(fastConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.GetJSON(ctx, srv.URL, nil, &struct{}{})
	assert.Error(t, err)
}
