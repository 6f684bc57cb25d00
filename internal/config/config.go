// Package config loads server settings from defaults, an optional .env
// file, environment variables and bound command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/phenotype-mcp/internal/embedder"
)

// EnvPrefix is prepended to every setting's environment variable, with dots
// replaced by underscores: store.path -> PHENOTYPE_STORE_PATH
const EnvPrefix = "PHENOTYPE"

// Transports
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Setting keys
const (
	KeyStorePath    = "store.path"
	KeyIndexPath    = "index.path"
	KeyOntologyPath = "ontology.path"
	KeyReleaseDir   = "release.dir"

	KeyEmbeddingProvider  = "embedding.provider"
	KeyEmbeddingAPIKey    = "embedding.api_key"
	KeyEmbeddingModel     = "embedding.model"
	KeyEmbeddingBaseURL   = "embedding.base_url"
	KeyEmbeddingCacheSize = "embedding.cache_size"
	KeyEmbeddingTimeout   = "embedding.timeout"

	KeySearchCacheTTL  = "search.cache_ttl"
	KeySearchCacheSize = "search.cache_size"
	KeySearchThreshold = "search.advisory_threshold"

	KeyServerTransport = "server.transport"
	KeyServerHost      = "server.host"
	KeyServerPort      = "server.port"

	KeyLogLevel = "log.level"
	KeyLogMode  = "log.mode"
)

// Config holds every runtime setting
type Config struct {
	StorePath    string
	IndexPath    string
	OntologyPath string
	ReleaseDir   string

	Embedding EmbeddingConfig
	Search    SearchConfig
	Server    ServerConfig
	Log       LogConfig
}

// EmbeddingConfig configures the query and build-time embedding provider
type EmbeddingConfig struct {
	Provider  string // empty selects the provider the index was built with
	APIKey    string
	Model     string
	BaseURL   string
	CacheSize int
	Timeout   time.Duration
}

// SearchConfig configures the semantic matcher
type SearchConfig struct {
	CacheTTL          time.Duration
	CacheSize         int
	AdvisoryThreshold float64
}

// ServerConfig configures the transports
type ServerConfig struct {
	Transport string
	Host      string
	Port      int
}

// LogConfig configures the logger
type LogConfig struct {
	Level string
	Mode  string
}

// Addr returns host:port for the HTTP listener
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SetDefaults registers defaults and environment bindings on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyStorePath, "hpo_annotations.db")
	v.SetDefault(KeyIndexPath, "embeddings/voyage_3/hpo_index.db")
	v.SetDefault(KeyOntologyPath, "data/hp.json")
	v.SetDefault(KeyReleaseDir, "data")

	v.SetDefault(KeyEmbeddingProvider, "")
	v.SetDefault(KeyEmbeddingModel, "")
	v.SetDefault(KeyEmbeddingBaseURL, "")
	v.SetDefault(KeyEmbeddingCacheSize, 10000)
	v.SetDefault(KeyEmbeddingTimeout, 10*time.Second)

	v.SetDefault(KeySearchCacheTTL, 10*time.Minute)
	v.SetDefault(KeySearchCacheSize, 1000)
	v.SetDefault(KeySearchThreshold, 0.7)

	v.SetDefault(KeyServerTransport, TransportStdio)
	v.SetDefault(KeyServerHost, "0.0.0.0")
	v.SetDefault(KeyServerPort, 8000)

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogMode, "production")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional names used by hosting platforms and the provider SDKs
	_ = v.BindEnv(KeyEmbeddingAPIKey, embedder.EnvVoyageAPIKey, EnvPrefix+"_EMBEDDING_API_KEY")
	_ = v.BindEnv(KeyServerPort, EnvPrefix+"_SERVER_PORT", "PORT")
}

// LoadDotEnv copies KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	dv := viper.New()
	dv.SetConfigFile(path)
	dv.SetConfigType("env")
	if err := dv.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	for _, key := range dv.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, dv.GetString(key)); err != nil {
			return fmt.Errorf("failed to set %s: %w", name, err)
		}
	}
	return nil
}

// Load builds a Config from v and validates it
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		StorePath:    v.GetString(KeyStorePath),
		IndexPath:    v.GetString(KeyIndexPath),
		OntologyPath: v.GetString(KeyOntologyPath),
		ReleaseDir:   v.GetString(KeyReleaseDir),
		Embedding: EmbeddingConfig{
			Provider:  strings.ToLower(strings.TrimSpace(v.GetString(KeyEmbeddingProvider))),
			APIKey:    strings.TrimSpace(v.GetString(KeyEmbeddingAPIKey)),
			Model:     v.GetString(KeyEmbeddingModel),
			BaseURL:   v.GetString(KeyEmbeddingBaseURL),
			CacheSize: v.GetInt(KeyEmbeddingCacheSize),
			Timeout:   v.GetDuration(KeyEmbeddingTimeout),
		},
		Search: SearchConfig{
			CacheTTL:          v.GetDuration(KeySearchCacheTTL),
			CacheSize:         v.GetInt(KeySearchCacheSize),
			AdvisoryThreshold: v.GetFloat64(KeySearchThreshold),
		},
		Server: ServerConfig{
			Transport: strings.ToLower(v.GetString(KeyServerTransport)),
			Host:      v.GetString(KeyServerHost),
			Port:      v.GetInt(KeyServerPort),
		},
		Log: LogConfig{
			Level: v.GetString(KeyLogLevel),
			Mode:  v.GetString(KeyLogMode),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that settings are usable. A missing API key is not an
// error: the server starts and reports the credential as missing.
func (c *Config) Validate() error {
	var errs []error

	if c.StorePath == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyStorePath))
	}
	if c.IndexPath == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyIndexPath))
	}

	switch c.Embedding.Provider {
	case "", embedder.ProviderVoyage, embedder.ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("%s: unknown provider %q", KeyEmbeddingProvider, c.Embedding.Provider))
	}
	if c.Embedding.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyEmbeddingTimeout))
	}
	if c.Embedding.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyEmbeddingCacheSize))
	}

	if c.Search.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeySearchCacheSize))
	}
	if c.Search.AdvisoryThreshold <= 0 || c.Search.AdvisoryThreshold > 1 {
		errs = append(errs, fmt.Errorf("%s must be in (0, 1]", KeySearchThreshold))
	}

	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("%s: unknown transport %q", KeyServerTransport, c.Server.Transport))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s: %d out of range", KeyServerPort, c.Server.Port))
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(c.Log.Level))); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyLogLevel, err))
	}

	return errors.Join(errs...)
}

// APIKeyPresent reports whether a provider credential was configured
func (c *Config) APIKeyPresent() bool {
	return c.Embedding.APIKey != ""
}
