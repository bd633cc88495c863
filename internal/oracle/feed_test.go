package oracle

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedProviderFetchesAndCaches(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/price", r.URL.Path)
		assert.Equal(t, "usdc", r.URL.Query().Get("asset"))
		fmt.Fprintf(w, `{"asset":"usdc","price":"1.0002","timestamp":%d}`, time.Now().Unix())
	}))
	defer server.Close()

	provider, err := NewFeedProvider(server.URL, time.Minute)
	require.NoError(t, err)

	quote, err := provider.Price("usdc")
	require.NoError(t, err)
	assert.Equal(t, "1.0002", quote.Price.String()[:6])

	// Second query within the refresh window is served from cache.
	_, err = provider.Price("usdc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestFeedProviderRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "asset mismatch", body: `{"asset":"dai","price":"1.0","timestamp":1700000000}`},
		{name: "non-positive price", body: `{"asset":"usdc","price":"0","timestamp":1700000000}`},
		{name: "unparseable price", body: `{"asset":"usdc","price":"abc","timestamp":1700000000}`},
		{name: "missing timestamp", body: `{"asset":"usdc","price":"1.0","timestamp":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := tt.body
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, payload)
			}))
			defer server.Close()

			provider, err := NewFeedProvider(server.URL, time.Minute)
			require.NoError(t, err)

			_, err = provider.Price("usdc")
			assert.ErrorIs(t, err, ErrPriceUnavailable)
		})
	}
}

func TestFeedProviderRetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"asset":"usdc","price":"1.0","timestamp":%d}`, time.Now().Unix())
	}))
	defer server.Close()

	provider, err := NewFeedProvider(server.URL, time.Minute)
	require.NoError(t, err)

	quote, err := provider.Price("usdc")
	require.NoError(t, err)
	assert.True(t, quote.Price.IsPositive())
	assert.Equal(t, int64(3), hits.Load())
}

func TestNewFeedProviderValidation(t *testing.T) {
	_, err := NewFeedProvider("", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = NewFeedProvider("http://localhost:1", 0)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}
