package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8020, cfg.HTTPPort)
	assert.Equal(t, "http://localhost:8080/api/products", cfg.UpstreamURL)
	assert.Equal(t, 100, cfg.UpstreamPageSize)
	assert.Equal(t, "http://localhost:8108", cfg.EngineURL)
	assert.Equal(t, "products", cfg.EngineCollection)
	assert.Equal(t, "title,brand", cfg.EngineQueryBy)
	assert.True(t, cfg.MirrorEnabled)
	assert.True(t, cfg.CacheEnabled)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, 60, cfg.CacheTTLSeconds)
	assert.Equal(t, "logs", cfg.LogDir)
}

func TestLoad_InvalidHTTPPort(t *testing.T) {
	t.Setenv("CATALOG_HTTP_PORT", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_InvalidPageSize(t *testing.T) {
	t.Setenv("UPSTREAM_PAGE_SIZE", "-5")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid upstream page size")
}

func TestLoad_CustomEngine(t *testing.T) {
	t.Setenv("ENGINE_URL", "http://search.prod:8108")
	t.Setenv("ENGINE_COLLECTION", "products_v2")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "http://search.prod:8108", cfg.EngineURL)
	assert.Equal(t, "products_v2", cfg.EngineCollection)
}

func TestLoad_KafkaBrokersList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_TogglesOff(t *testing.T) {
	t.Setenv("MIRROR_ENABLED", "false")
	t.Setenv("CACHE_ENABLED", "false")

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.MirrorEnabled)
	assert.False(t, cfg.CacheEnabled)
}
