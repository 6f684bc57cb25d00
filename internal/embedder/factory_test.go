package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		apiKey   string
		want     string
	}{
		{name: "explicit provider wins", provider: "LOCAL", apiKey: "key", want: ProviderLocal},
		{name: "api key selects voyage", apiKey: "key", want: ProviderVoyage},
		{name: "fallback to local", want: ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvProvider, tt.provider)
			t.Setenv(EnvVoyageAPIKey, tt.apiKey)
			assert.Equal(t, tt.want, DetectProvider())
		})
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Run("voyage with key", func(t *testing.T) {
		t.Setenv(EnvProvider, "")
		t.Setenv(EnvVoyageAPIKey, "key")

		emb, err := NewFromEnv()
		require.NoError(t, err)
		defer emb.Close()
		assert.Equal(t, ProviderVoyage, emb.Provider())
	})

	t.Run("voyage forced without key", func(t *testing.T) {
		t.Setenv(EnvProvider, ProviderVoyage)
		t.Setenv(EnvVoyageAPIKey, "")

		_, err := NewFromEnv()
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("local fallback", func(t *testing.T) {
		t.Setenv(EnvProvider, "")
		t.Setenv(EnvVoyageAPIKey, "")

		emb, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
	})
}

func TestNew(t *testing.T) {
	emb, err := New(Config{Provider: "voyage", APIKey: "key", Model: "voyage-3-lite", CacheSize: 5})
	require.NoError(t, err)
	assert.Equal(t, "voyage-3-lite", emb.Model())

	_, err = New(Config{Provider: "jina"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestRequiresCredential(t *testing.T) {
	assert.True(t, RequiresCredential("voyage"))
	assert.True(t, RequiresCredential("Voyage"))
	assert.False(t, RequiresCredential("local"))
}
