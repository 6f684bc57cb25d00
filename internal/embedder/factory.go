package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables read by NewFromEnv
const (
	EnvProvider     = "PHENOTYPE_EMBEDDING_PROVIDER"
	EnvVoyageAPIKey = "VOYAGE_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	CacheSize int
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. PHENOTYPE_EMBEDDING_PROVIDER (voyage, local)
// 2. VOYAGE_API_KEY present selects voyage
// 3. Default to local
func NewFromEnv() (Embedder, error) {
	return New(Config{
		Provider:  DetectProvider(),
		APIKey:    os.Getenv(EnvVoyageAPIKey),
		CacheSize: 10000,
	})
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderVoyage:
		return NewVoyageProvider(cfg.APIKey, cache, WithModel(cfg.Model), WithBaseURL(cfg.BaseURL))
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvVoyageAPIKey) != "" {
		return ProviderVoyage
	}

	return ProviderLocal
}

// RequiresCredential reports whether provider needs an API key
func RequiresCredential(provider string) bool {
	return strings.ToLower(provider) == ProviderVoyage
}
