package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/phenotype-mcp/internal/embedder"
	"github.com/dshills/phenotype-mcp/internal/index"
)

// mockEmbedder implements the Embedder interface for testing
type mockEmbedder struct {
	calls        atomic.Int32
	generateFunc func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error)
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.calls.Add(1)
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req)
	}
	return &embedder.Embedding{Vector: []float32{1, 0, 0}, Dimension: 3, Provider: "mock", Model: "mock-model"}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, errors.New("not used")
}

func (m *mockEmbedder) Dimension() int   { return 3 }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.Build(
		[]index.Term{
			{ID: "HP:0001250", Label: "Seizure", Content: "ID: HP:0001250\nLabel: Seizure"},
			{ID: "HP:0001263", Label: "Global developmental delay"},
			{ID: "HP:0000256", Label: "Macrocephaly"},
			{ID: "HP:0000118", Label: "Phenotypic abnormality"},
		},
		[][]float32{{1, 0, 0}, {0.6, 0.8, 0}, {0, 0, 1}, {-1, 0, 0}},
		index.Meta{Provider: "mock"},
	)
	require.NoError(t, err)
	return idx
}

func TestMatch(t *testing.T) {
	m := New(Config{Index: testIndex(t), Embedder: &mockEmbedder{}})
	ctx := context.Background()

	res := m.Match(ctx, "seizures", 3)
	assert.Equal(t, StatusOK, res.Status)
	assert.Empty(t, res.Reason)
	assert.Equal(t, "seizures", res.Symptom)
	assert.Equal(t, 3, res.K)
	assert.Equal(t, 0.7, res.AdvisoryThreshold)
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, 3, res.TotalFound)

	first := res.Candidates[0]
	assert.Equal(t, "HP:0001250", first.HPOID)
	assert.Equal(t, "Seizure", first.HPOName)
	assert.True(t, first.HasDescription)
	assert.InDelta(t, 1.0, first.SimilarityScore, 1e-9)

	assert.False(t, res.Candidates[1].HasDescription)
	assert.Empty(t, res.Candidates[1].Description)

	for i, c := range res.Candidates {
		assert.GreaterOrEqual(t, c.SimilarityScore, 0.0)
		assert.LessOrEqual(t, c.SimilarityScore, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, res.Candidates[i-1].SimilarityScore, c.SimilarityScore)
		}
	}
}

func TestMatch_NoThresholdFilter(t *testing.T) {
	m := New(Config{Index: testIndex(t), Embedder: &mockEmbedder{}})

	res := m.Match(context.Background(), "anything", 10)
	require.Len(t, res.Candidates, 4, "low-scoring candidates stay visible")
	last := res.Candidates[3]
	assert.Equal(t, "HP:0000118", last.HPOID)
	assert.Equal(t, 0.0, last.SimilarityScore, "negative cosine clamps to zero")
}

func TestMatch_ClampK(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{5, 5},
		{MaxK + 1, MaxK},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, ClampK(tt.in))
		})
	}

	m := New(Config{Index: testIndex(t), Embedder: &mockEmbedder{}})
	res := m.Match(context.Background(), "seizure", -1)
	assert.Equal(t, 1, res.K)
	assert.Len(t, res.Candidates, 1)
}

func TestMatch_Unavailable(t *testing.T) {
	ctx := context.Background()

	t.Run("index missing", func(t *testing.T) {
		m := New(Config{IndexErr: index.ErrIndexMissing, Embedder: &mockEmbedder{}})
		res := m.Match(ctx, "developmental delay", 5)
		assert.Equal(t, StatusUnavailable, res.Status)
		assert.Equal(t, ReasonIndexMissing, res.Reason)
		assert.NotNil(t, res.Candidates)
		assert.Empty(t, res.Candidates)
	})

	t.Run("index missing wins over credential missing", func(t *testing.T) {
		m := New(Config{EmbedderErr: embedder.ErrNoProviderEnabled})
		res := m.Match(ctx, "developmental delay", 5)
		assert.Equal(t, ReasonIndexMissing, res.Reason)
	})

	t.Run("index load error keeps detail", func(t *testing.T) {
		m := New(Config{IndexErr: errors.New("file is not a database")})
		res := m.Match(ctx, "x", 5)
		assert.Equal(t, ReasonIndexMissing, res.Reason)
		assert.Contains(t, res.Detail, "not a database")
	})

	t.Run("credential missing", func(t *testing.T) {
		m := New(Config{Index: testIndex(t), EmbedderErr: fmt.Errorf("%w: VOYAGE_API_KEY not set", embedder.ErrNoProviderEnabled)})
		res := m.Match(ctx, "developmental delay", 5)
		assert.Equal(t, StatusUnavailable, res.Status)
		assert.Equal(t, ReasonCredentialMissing, res.Reason)
		assert.Contains(t, res.Detail, "VOYAGE_API_KEY")
		ready, reason := m.Ready()
		assert.False(t, ready)
		assert.Equal(t, ReasonCredentialMissing, reason)
	})

	t.Run("provider error", func(t *testing.T) {
		emb := &mockEmbedder{generateFunc: func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
			return nil, fmt.Errorf("%w: api error 500", embedder.ErrProviderFailed)
		}}
		m := New(Config{Index: testIndex(t), Embedder: emb})
		res := m.Match(ctx, "developmental delay", 5)
		assert.Equal(t, ReasonQueryFailed, res.Reason)
		assert.Contains(t, res.Detail, "api error 500")
	})

	t.Run("timeout", func(t *testing.T) {
		emb := &mockEmbedder{generateFunc: func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}
		m := New(Config{Index: testIndex(t), Embedder: emb, Timeout: 20 * time.Millisecond})
		res := m.Match(ctx, "developmental delay", 5)
		assert.Equal(t, ReasonQueryFailed, res.Reason)
		assert.Contains(t, res.Detail, "timed out")
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		emb := &mockEmbedder{generateFunc: func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
			return &embedder.Embedding{Vector: make([]float32, 1024)}, nil
		}}
		m := New(Config{Index: testIndex(t), Embedder: emb})
		res := m.Match(ctx, "developmental delay", 5)
		assert.Equal(t, ReasonQueryFailed, res.Reason)
		assert.Contains(t, res.Detail, "dimension")
	})
}

func TestMatch_NonFiniteEmbedding(t *testing.T) {
	ctx := context.Background()

	for name, v := range map[string]float32{
		"nan": float32(math.NaN()),
		"inf": float32(math.Inf(1)),
	} {
		t.Run(name, func(t *testing.T) {
			emb := &mockEmbedder{generateFunc: func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
				return &embedder.Embedding{Vector: []float32{v, 0, 0}}, nil
			}}
			m := New(Config{Index: testIndex(t), Embedder: emb})

			res := m.Match(ctx, "seizure", 2)
			assert.Equal(t, StatusUnavailable, res.Status)
			assert.Equal(t, ReasonQueryFailed, res.Reason)
			assert.Contains(t, res.Detail, "non-finite")
			assert.Empty(t, res.Candidates)

			_, err := json.Marshal(res)
			assert.NoError(t, err)
		})
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(math.NaN()))
	assert.Equal(t, 0.0, clampScore(-0.3))
	assert.Equal(t, 1.0, clampScore(1.0000001))
	assert.Equal(t, 0.42, clampScore(0.42))
}

func TestMatch_EmptyText(t *testing.T) {
	emb := &mockEmbedder{}
	m := New(Config{Index: testIndex(t), Embedder: emb})

	res := m.Match(context.Background(), "   ", 5)
	assert.Equal(t, StatusOK, res.Status)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, int32(0), emb.calls.Load())
}

func TestMatch_Cache(t *testing.T) {
	ctx := context.Background()

	t.Run("repeat query hits cache", func(t *testing.T) {
		emb := &mockEmbedder{}
		m := New(Config{Index: testIndex(t), Embedder: emb})

		first := m.Match(ctx, "seizure", 2)
		second := m.Match(ctx, " seizure ", 2)
		assert.False(t, first.CacheHit)
		assert.True(t, second.CacheHit)
		assert.Equal(t, " seizure ", second.Symptom)
		assert.Equal(t, first.Candidates, second.Candidates)
		assert.Equal(t, int32(1), emb.calls.Load())

		// Different k is a different entry
		m.Match(ctx, "seizure", 3)
		assert.Equal(t, int32(2), emb.calls.Load())
	})

	t.Run("case is significant", func(t *testing.T) {
		emb := &mockEmbedder{generateFunc: func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
			if req.Text == "ALS" {
				return &embedder.Embedding{Vector: []float32{0, 0, 1}}, nil
			}
			return &embedder.Embedding{Vector: []float32{1, 0, 0}}, nil
		}}
		m := New(Config{Index: testIndex(t), Embedder: emb})

		lower := m.Match(ctx, "als", 1)
		upper := m.Match(ctx, "ALS", 1)
		assert.False(t, upper.CacheHit)
		assert.Equal(t, int32(2), emb.calls.Load())
		assert.Equal(t, "HP:0001250", lower.Candidates[0].HPOID)
		assert.Equal(t, "HP:0000256", upper.Candidates[0].HPOID)
	})

	t.Run("cached candidates are copies", func(t *testing.T) {
		m := New(Config{Index: testIndex(t), Embedder: &mockEmbedder{}})
		first := m.Match(ctx, "seizure", 2)
		first.Candidates[0].HPOID = "mutated"

		second := m.Match(ctx, "seizure", 2)
		assert.Equal(t, "HP:0001250", second.Candidates[0].HPOID)
	})

	t.Run("expired entries are refreshed", func(t *testing.T) {
		emb := &mockEmbedder{}
		m := New(Config{Index: testIndex(t), Embedder: emb, CacheTTL: time.Millisecond})
		m.Match(ctx, "seizure", 2)
		time.Sleep(5 * time.Millisecond)
		m.Match(ctx, "seizure", 2)
		assert.Equal(t, int32(2), emb.calls.Load())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		fail := true
		emb := &mockEmbedder{generateFunc: func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
			if fail {
				return nil, errors.New("boom")
			}
			return &embedder.Embedding{Vector: []float32{1, 0, 0}}, nil
		}}
		m := New(Config{Index: testIndex(t), Embedder: emb})
		assert.Equal(t, StatusUnavailable, m.Match(ctx, "seizure", 2).Status)
		fail = false
		assert.Equal(t, StatusOK, m.Match(ctx, "seizure", 2).Status)
	})

	t.Run("negative ttl disables cache", func(t *testing.T) {
		emb := &mockEmbedder{}
		m := New(Config{Index: testIndex(t), Embedder: emb, CacheTTL: -1})
		m.Match(ctx, "seizure", 2)
		m.Match(ctx, "seizure", 2)
		assert.Equal(t, int32(2), emb.calls.Load())
	})
}

func TestMatch_Concurrent(t *testing.T) {
	m := New(Config{Index: testIndex(t), Embedder: &mockEmbedder{}})

	done := make(chan Result)
	for i := 0; i < 20; i++ {
		go func(i int) {
			done <- m.Match(context.Background(), fmt.Sprintf("query %d", i%4), 2)
		}(i)
	}
	for i := 0; i < 20; i++ {
		res := <-done
		assert.Equal(t, StatusOK, res.Status)
		assert.Len(t, res.Candidates, 2)
	}
}

func TestMatch_WithLocalProvider(t *testing.T) {
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	ctx := context.Background()
	docs := []string{"Label: Seizure", "Label: Macrocephaly", "Label: Global developmental delay"}
	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: docs})
	require.NoError(t, err)

	idx, err := index.Build(
		[]index.Term{{ID: "HP:0001250", Label: "Seizure"}, {ID: "HP:0000256", Label: "Macrocephaly"}, {ID: "HP:0001263", Label: "Global developmental delay"}},
		[][]float32{resp.Embeddings[0].Vector, resp.Embeddings[1].Vector, resp.Embeddings[2].Vector},
		index.Meta{Provider: embedder.ProviderLocal},
	)
	require.NoError(t, err)

	m := New(Config{Index: idx, Embedder: emb})
	res := m.Match(ctx, "developmental delay", 1)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "HP:0001263", res.Candidates[0].HPOID)
}
