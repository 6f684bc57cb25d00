package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/cenkalti/backoff/v5"
)

// Provider configuration
const (
	ProviderVoyage = "voyage"
	ProviderLocal  = "local"

	// Default models
	DefaultVoyageModel = "voyage-3"
	DefaultLocalModel  = "local-hash"

	DefaultVoyageURL = "https://api.voyageai.com/v1/embeddings"

	// Dimensions
	VoyageDimension = 1024
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 128

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// VoyageProvider implements Embedder using the Voyage AI API
type VoyageProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// VoyageOption customizes a VoyageProvider
type VoyageOption func(*VoyageProvider)

// WithBaseURL points the provider at a different endpoint
func WithBaseURL(url string) VoyageOption {
	return func(v *VoyageProvider) {
		if url != "" {
			v.baseURL = url
		}
	}
}

// WithModel overrides the default model
func WithModel(model string) VoyageOption {
	return func(v *VoyageProvider) {
		if model != "" {
			v.model = model
		}
	}
}

// WithRetry overrides the retry policy
func WithRetry(cfg RetryConfig) VoyageOption {
	return func(v *VoyageProvider) {
		v.retry = cfg
	}
}

// NewVoyageProvider creates a new Voyage AI embedder
func NewVoyageProvider(apiKey string, cache *Cache, opts ...VoyageOption) (*VoyageProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvVoyageAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvVoyageAPIKey)
	}

	v := &VoyageProvider{
		apiKey:  apiKey,
		model:   DefaultVoyageModel,
		baseURL: DefaultVoyageURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
		retry: DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *VoyageProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if req.InputType == "" {
		req.InputType = InputQuery
	}

	model := req.Model
	if model == "" {
		model = v.model
	}

	key := cacheKey(model, req.InputType, req.Text)
	if v.cache != nil {
		if emb, ok := v.cache.Get(key); ok {
			return emb, nil
		}
	}

	resp, err := v.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts:     []string{req.Text},
		InputType: req.InputType,
		Model:     model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (v *VoyageProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	inputType := req.InputType
	if inputType == "" {
		inputType = InputDocument
	}
	model := req.Model
	if model == "" {
		model = v.model
	}

	embeddings, err := retryWithBackoff(ctx, v.retry, func() ([]*Embedding, error) {
		return v.callAPI(ctx, req.Texts, model, inputType)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
		}
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrProviderFailed, v.retry.MaxRetries, err)
	}

	if len(embeddings) != len(req.Texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(embeddings), len(req.Texts))
	}

	if v.cache != nil {
		for i, emb := range embeddings {
			key := cacheKey(model, inputType, req.Texts[i])
			emb.Hash = key
			v.cache.Set(key, emb)
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderVoyage,
		Model:      model,
	}, nil
}

func (v *VoyageProvider) callAPI(ctx context.Context, texts []string, model string, inputType InputType) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"input":      texts,
		"model":      model,
		"input_type": string(inputType),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		// Client errors other than rate limiting will not succeed on retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(apiErr)
		}
		return nil, apiErr
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	respModel := apiResp.Model
	if respModel == "" {
		respModel = model
	}

	// data is keyed by index; do not trust response order
	embeddings := make([]*Embedding, len(apiResp.Data))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, backoff.Permanent(fmt.Errorf("response index %d out of range", data.Index))
		}
		embeddings[data.Index] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  ProviderVoyage,
			Model:     respModel,
		}
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, backoff.Permanent(fmt.Errorf("response missing embedding %d", i))
		}
	}

	return embeddings, nil
}

func (v *VoyageProvider) Dimension() int {
	return VoyageDimension
}

func (v *VoyageProvider) Provider() string {
	return ProviderVoyage
}

func (v *VoyageProvider) Model() string {
	return v.model
}

func (v *VoyageProvider) Close() error {
	v.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic feature-hashed bag-of-words vectors.
// Texts sharing words land near each other, which is enough for offline
// use and tests; it is not a semantic model.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: DefaultLocalModel,
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Query and document share one space, so input type is not part of the key
	hash := ComputeHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    hashEmbedding(req.Text, LocalDimension),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}

	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, InputType: req.InputType, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// hashEmbedding maps each lower-cased word to a signed bucket and returns
// the unit-length sum
func hashEmbedding(text string, dim int) []float32 {
	vector := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		bucket := int(sum % uint64(dim))
		if sum&(1<<63) != 0 {
			vector[bucket] -= 1
		} else {
			vector[bucket] += 1
		}
	}
	return NormalizeVector(vector)
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
