package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	EngineURL  string   `env:"TEST_CFG_ENGINE_URL" envDefault:"http://localhost:8108"`
	Collection string   `env:"TEST_CFG_COLLECTION" envDefault:"products"`
	BatchSize  int      `env:"TEST_CFG_BATCH_SIZE" envDefault:"40"`
	Brokers    []string `env:"TEST_CFG_BROKERS" envSeparator:","`
	DryRun     bool     `env:"TEST_CFG_DRY_RUN" envDefault:"false"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8108", cfg.EngineURL)
	assert.Equal(t, "products", cfg.Collection)
	assert.Equal(t, 40, cfg.BatchSize)
	assert.False(t, cfg.DryRun)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_ENGINE_URL", "https://search.internal:8108")
	t.Setenv("TEST_CFG_COLLECTION", "products_v2")
	t.Setenv("TEST_CFG_BATCH_SIZE", "25")
	t.Setenv("TEST_CFG_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("TEST_CFG_DRY_RUN", "true")

	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, "https://search.internal:8108", cfg.EngineURL)
	assert.Equal(t, "products_v2", cfg.Collection)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.True(t, cfg.DryRun)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TEST_CFG_BATCH_SIZE", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
