package matcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/phenotype-mcp/internal/embedder"
	"github.com/dshills/phenotype-mcp/internal/index"
	"github.com/dshills/phenotype-mcp/internal/logging"
)

// Result statuses
const (
	StatusOK          = "ok"
	StatusUnavailable = "unavailable"
)

// Unavailable reasons, checked in this order
const (
	ReasonIndexMissing      = "index missing"
	ReasonCredentialMissing = "credential missing"
	ReasonQueryFailed       = "query failed"
)

// Defaults
const (
	DefaultK                 = 5
	MaxK                     = 100
	DefaultTimeout           = 10 * time.Second
	DefaultCacheTTL          = 10 * time.Minute
	DefaultCacheSize         = 1000
	DefaultAdvisoryThreshold = 0.7
)

// Candidate is one matching ontology term
type Candidate struct {
	HPOID           string  `json:"hpo_id"`
	HPOName         string  `json:"hpo_name"`
	Description     string  `json:"description"`
	HasDescription  bool    `json:"has_description"`
	SimilarityScore float64 `json:"similarity_score"`
}

// Result is the outcome of a match. Unavailable results carry a reason and
// an empty candidate list; they are never returned as errors.
type Result struct {
	Status            string      `json:"status"`
	Reason            string      `json:"reason,omitempty"`
	Detail            string      `json:"detail,omitempty"`
	Symptom           string      `json:"symptom"`
	K                 int         `json:"k"`
	Candidates        []Candidate `json:"candidates"`
	TotalFound        int         `json:"total_found"`
	AdvisoryThreshold float64     `json:"advisory_threshold"`
	CacheHit          bool        `json:"-"`
}

// Config wires a Matcher. Index and Embedder may be nil; the accompanying
// error explains why.
type Config struct {
	Index       *index.Index
	IndexErr    error
	Embedder    embedder.Embedder
	EmbedderErr error

	Timeout           time.Duration
	CacheTTL          time.Duration
	CacheSize         int
	AdvisoryThreshold float64

	Logger *logging.Logger
}

// cacheEntry represents a cached result with expiration time
type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// Matcher embeds free text and ranks indexed terms against it
type Matcher struct {
	cfg     Config
	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
	log     *logging.Logger
}

// New creates a Matcher, filling zero config values with defaults
func New(cfg Config) *Matcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.AdvisoryThreshold <= 0 {
		cfg.AdvisoryThreshold = DefaultAdvisoryThreshold
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	cache, err := lru.New[[32]byte, *cacheEntry](cfg.CacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Matcher{cfg: cfg, cache: cache, log: log}
}

// ClampK bounds a requested result count to [1, MaxK]. Callers apply
// DefaultK when no count was supplied.
func ClampK(k int) int {
	switch {
	case k < 1:
		return 1
	case k > MaxK:
		return MaxK
	default:
		return k
	}
}

// Match returns up to k candidates for text in non-increasing score order
func (m *Matcher) Match(ctx context.Context, text string, k int) Result {
	k = ClampK(k)
	res := Result{
		Status:            StatusOK,
		Symptom:           text,
		K:                 k,
		Candidates:        []Candidate{},
		AdvisoryThreshold: m.cfg.AdvisoryThreshold,
	}

	if reason, detail := m.unavailable(); reason != "" {
		res.Status, res.Reason, res.Detail = StatusUnavailable, reason, detail
		return res
	}

	query := strings.TrimSpace(text)
	if query == "" {
		return res
	}

	key := cacheKey(query, k)
	if cached, ok := m.checkCache(key); ok {
		cached.Symptom = text
		cached.CacheHit = true
		return cached
	}

	candidates, err := m.search(ctx, query, k)
	if err != nil {
		m.log.Warn("symptom search failed", "symptom", query, "k", k, "error", err)
		res.Status, res.Reason, res.Detail = StatusUnavailable, ReasonQueryFailed, err.Error()
		return res
	}

	res.Candidates = candidates
	res.TotalFound = len(candidates)
	m.storeInCache(key, res)
	return res
}

// Ready reports whether queries can run, and the reason when they cannot
func (m *Matcher) Ready() (bool, string) {
	reason, _ := m.unavailable()
	return reason == "", reason
}

func (m *Matcher) unavailable() (reason, detail string) {
	if m.cfg.Index == nil {
		detail = "vector index has not been built; run build-index"
		if m.cfg.IndexErr != nil && !errors.Is(m.cfg.IndexErr, index.ErrIndexMissing) {
			detail = m.cfg.IndexErr.Error()
		}
		return ReasonIndexMissing, detail
	}
	if m.cfg.Embedder == nil {
		if m.cfg.EmbedderErr == nil || errors.Is(m.cfg.EmbedderErr, embedder.ErrNoProviderEnabled) {
			return ReasonCredentialMissing, fmt.Sprintf("%s is not set", embedder.EnvVoyageAPIKey)
		}
		return ReasonQueryFailed, m.cfg.EmbedderErr.Error()
	}
	return "", ""
}

func (m *Matcher) search(ctx context.Context, query string, k int) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	emb, err := m.cfg.Embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
		Text:      query,
		InputType: embedder.InputQuery,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding timed out after %s: %w", m.cfg.Timeout, err)
		}
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if err := index.CheckFinite(emb.Vector); err != nil {
		return nil, fmt.Errorf("invalid query embedding: %w", err)
	}

	hits, err := m.cfg.Index.Query(emb.Vector, k)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = Candidate{
			HPOID:           h.Term.ID,
			HPOName:         h.Term.Label,
			Description:     h.Term.Content,
			HasDescription:  h.Term.Content != "",
			SimilarityScore: clampScore(h.Score),
		}
	}
	return candidates, nil
}

// clampScore maps cosine similarity into [0,1]. Clamping is monotonic, so
// index order stays non-increasing. NaN maps to 0.
func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// cacheKey is case-sensitive, matching the embedding providers
func cacheKey(query string, k int) [32]byte {
	return sha256.Sum256([]byte(query + "\x00" + strconv.Itoa(k)))
}

func (m *Matcher) checkCache(key [32]byte) (Result, bool) {
	if m.cfg.CacheTTL < 0 {
		return Result{}, false
	}

	m.cacheMu.RLock()
	entry, found := m.cache.Get(key)
	if !found {
		m.cacheMu.RUnlock()
		return Result{}, false
	}

	if time.Now().After(entry.expiresAt) {
		m.cacheMu.RUnlock()

		m.cacheMu.Lock()
		m.cache.Remove(key)
		m.cacheMu.Unlock()
		return Result{}, false
	}

	res := copyResult(entry.result)
	m.cacheMu.RUnlock()
	return res, true
}

func (m *Matcher) storeInCache(key [32]byte, res Result) {
	if m.cfg.CacheTTL < 0 {
		return
	}
	entry := &cacheEntry{
		result:    copyResult(res),
		expiresAt: time.Now().Add(m.cfg.CacheTTL),
	}

	m.cacheMu.Lock()
	m.cache.Add(key, entry)
	m.cacheMu.Unlock()
}

func copyResult(src Result) Result {
	dst := src
	dst.Candidates = make([]Candidate, len(src.Candidates))
	copy(dst.Candidates, src.Candidates)
	return dst
}
