package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port       int     `env:"TEST_CFG_PORT" envDefault:"8080"`
	StoreID    string  `env:"TEST_CFG_STORE_ID" envDefault:"store-1"`
	TaxRate    float64 `env:"TEST_CFG_TAX_RATE" envDefault:"8.25"`
	RedisCache bool    `env:"TEST_CFG_REDIS" envDefault:"false"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "store-1", cfg.StoreID)
	assert.InDelta(t, 8.25, cfg.TaxRate, 1e-9)
	assert.False(t, cfg.RedisCache)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_STORE_ID", "downtown")
	t.Setenv("TEST_CFG_TAX_RATE", "7")
	t.Setenv("TEST_CFG_REDIS", "true")

	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "downtown", cfg.StoreID)
	assert.InDelta(t, 7.0, cfg.TaxRate, 1e-9)
	assert.True(t, cfg.RedisCache)
}

func TestLoad_WithPrefix(t *testing.T) {
	t.Setenv("POS_TEST_CFG_PORT", "7070")

	var cfg testConfig
	err := Load(&cfg, WithPrefix("POS_"))

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
}

func TestLoad_WithEnvironment(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg, WithEnvironment(map[string]string{"TEST_CFG_STORE_ID": "airport"}))

	require.NoError(t, err)
	assert.Equal(t, "airport", cfg.StoreID)
	assert.Equal(t, 8080, cfg.Port)
}

type requiredConfig struct {
	JWTSecret string `env:"TEST_CFG_JWT_SECRET,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_RequiredFieldPresent(t *testing.T) {
	t.Setenv("TEST_CFG_JWT_SECRET", "secret-123")

	var cfg requiredConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, "secret-123", cfg.JWTSecret)
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
