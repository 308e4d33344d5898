package network

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsouthga/gop-primary-twitter-fun/src/helpers"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

func newTestManager(retries int, proxies []string) *AsyncNetworkManager {
	cfg := &models.MConfig{
		Network: models.MNetworkConfig{
			Enabled:        len(proxies) > 0,
			Proxies:        proxies,
			RequestTimeout: 5,
			MaxRetries:     retries,
		},
	}
	return NewAsyncNetworkManager(cfg, logger.NewLogger(nil, "test"))
}

func TestGetReturnsBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.Write([]byte("payload"))
	}))
	t.Cleanup(ts.Close)

	nm := newTestManager(0, nil)
	body, err := nm.Get(ts.URL, map[string]string{"page": "1"})
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), body)
}

func TestGetExhaustsRetriesOnBadStatus(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	nm := newTestManager(1, nil)
	_, err := nm.Get(ts.URL, nil)

	require.Error(t, err)
	var netErr *helpers.NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.Equal(t, 2, calls)
}

// Proxy rotation swaps the underlying client between attempts; concurrent
// fetches (the refresher runs poll and market in parallel through one
// manager) must never race that swap.
func TestConcurrentGetWithProxyRotation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(ts.Close)

	// Unreachable proxies: every attempt fails and rotates.
	nm := newTestManager(1, []string{"127.0.0.1:1", "127.0.0.1:2"})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := nm.Get(ts.URL, nil)
			assert.Error(t, err)
		}()
	}
	wg.Wait()
}
