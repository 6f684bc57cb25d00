package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps retry tests quick
var fastRetry = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  time.Millisecond,
	MaxDelay:   5 * time.Millisecond,
	Multiplier: 2.0,
}

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

// voyageServer answers like the embeddings endpoint, returning data in
// reverse order to exercise index handling
func voyageServer(t *testing.T, dim int, seen chan<- voyageRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req voyageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if seen != nil {
			seen <- req
		}

		data := make([]map[string]interface{}, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dim)
			vec[i%dim] = 1
			data = append(data, map[string]interface{}{"index": i, "embedding": vec})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"model": req.Model, "data": data})
	}))
}

func newTestVoyage(t *testing.T, url string, cache *Cache) *VoyageProvider {
	t.Helper()
	p, err := NewVoyageProvider("test-key", cache, WithBaseURL(url), WithRetry(fastRetry))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestVoyageProvider(t *testing.T) {
	t.Run("single query embedding", func(t *testing.T) {
		seen := make(chan voyageRequest, 1)
		server := voyageServer(t, 4, seen)
		defer server.Close()

		provider := newTestVoyage(t, server.URL, NewCache(10))
		emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "seizure"})
		require.NoError(t, err)

		req := <-seen
		assert.Equal(t, []string{"seizure"}, req.Input)
		assert.Equal(t, DefaultVoyageModel, req.Model)
		assert.Equal(t, "query", req.InputType)
		assert.Equal(t, 4, emb.Dimension)
		assert.Equal(t, ProviderVoyage, emb.Provider)
	})

	t.Run("batch keeps input order", func(t *testing.T) {
		seen := make(chan voyageRequest, 1)
		server := voyageServer(t, 8, seen)
		defer server.Close()

		provider := newTestVoyage(t, server.URL, nil)
		resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b", "c"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 3)
		assert.Equal(t, "document", (<-seen).InputType)
		for i, emb := range resp.Embeddings {
			assert.Equal(t, float32(1), emb.Vector[i], "embedding %d", i)
		}
	})

	t.Run("cache hit avoids API call", func(t *testing.T) {
		var calls atomic.Int32
		inner := voyageServer(t, 4, nil)
		defer inner.Close()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			inner.Config.Handler.ServeHTTP(w, r)
		}))
		defer server.Close()

		provider := newTestVoyage(t, server.URL, NewCache(10))
		ctx := context.Background()
		_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "ataxia"})
		require.NoError(t, err)
		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "ataxia"})
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv(EnvVoyageAPIKey, "")
		_, err := NewVoyageProvider("", nil)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("provider metadata", func(t *testing.T) {
		provider := newTestVoyage(t, "http://127.0.0.1:0", nil)
		assert.Equal(t, ProviderVoyage, provider.Provider())
		assert.Equal(t, VoyageDimension, provider.Dimension())
		assert.Equal(t, DefaultVoyageModel, provider.Model())
	})

	t.Run("batch too large", func(t *testing.T) {
		provider := newTestVoyage(t, "http://127.0.0.1:0", nil)
		texts := make([]string, MaxBatchSize+1)
		for i := range texts {
			texts[i] = fmt.Sprintf("t%d", i)
		}
		_, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
		assert.ErrorIs(t, err, ErrBatchTooLarge)
	})
}

func TestVoyageRetry(t *testing.T) {
	t.Run("retry on server error", func(t *testing.T) {
		var calls atomic.Int32
		inner := voyageServer(t, 4, nil)
		defer inner.Close()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			inner.Config.Handler.ServeHTTP(w, r)
		}))
		defer server.Close()

		provider := newTestVoyage(t, server.URL, nil)
		_, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "seizure"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"invalid key"}`))
		}))
		defer server.Close()

		provider := newTestVoyage(t, server.URL, nil)
		_, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "seizure"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Contains(t, err.Error(), "401")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("rate limit is retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		provider := newTestVoyage(t, server.URL, nil)
		_, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "seizure"})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(fastRetry.MaxRetries), calls.Load())
	})

	t.Run("deadline ends retries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		provider, err := NewVoyageProvider("test-key", nil, WithBaseURL(server.URL), WithRetry(RetryConfig{
			MaxRetries: 100,
			BaseDelay:  20 * time.Millisecond,
			MaxDelay:   20 * time.Millisecond,
			Multiplier: 1.0,
		}))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "seizure"})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after transient error", func(t *testing.T) {
		callCount := 0
		result, err := retryWithBackoff(context.Background(), fastRetry, func() (string, error) {
			callCount++
			if callCount < 2 {
				return "", fmt.Errorf("transient error")
			}
			return "success", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "success", result)
		assert.Equal(t, 2, callCount)
	})

	t.Run("max retries limit", func(t *testing.T) {
		config := RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2.0}

		callCount := 0
		_, err := retryWithBackoff(context.Background(), config, func() (bool, error) {
			callCount++
			return false, fmt.Errorf("error %d", callCount)
		})
		assert.Error(t, err)
		assert.Equal(t, 5, callCount, "Should stop after MaxRetries attempts")
		assert.Contains(t, err.Error(), "error 5", "Should return last error")
	})

	t.Run("context cancellation during retry", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		config := RetryConfig{MaxRetries: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}

		callCount := 0
		_, err := retryWithBackoff(ctx, config, func() (string, error) {
			callCount++
			if callCount == 2 {
				cancel()
			}
			return "", fmt.Errorf("error")
		})
		assert.Equal(t, context.Canceled, err)
		assert.LessOrEqual(t, callCount, 3)
	})

	t.Run("immediate success no retry", func(t *testing.T) {
		callCount := 0
		result, err := retryWithBackoff(context.Background(), DefaultRetryConfig(), func() (int, error) {
			callCount++
			return 42, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 42, result)
		assert.Equal(t, 1, callCount)
	})

	t.Run("default config", func(t *testing.T) {
		config := DefaultRetryConfig()
		assert.Equal(t, 3, config.MaxRetries)
		assert.Equal(t, 100*time.Millisecond, config.BaseDelay)
		assert.Equal(t, 5000*time.Millisecond, config.MaxDelay)
		assert.Equal(t, 2.0, config.Multiplier)
	})
}

func TestProviderClose(t *testing.T) {
	local, err := NewLocalProvider(NewCache(10))
	require.NoError(t, err)
	voyage, err := NewVoyageProvider("test-key", nil)
	require.NoError(t, err)

	for _, p := range []Embedder{local, voyage} {
		t.Run(p.Provider(), func(t *testing.T) {
			assert.NoError(t, p.Close())
		})
	}
}
