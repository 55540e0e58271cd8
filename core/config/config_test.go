package config_test

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wirehttp/core/config"
)

type testConfig struct {
	Addr    string        `env:"WIREHTTP_TEST_ADDR" envDefault:":9090"`
	Timeout time.Duration `env:"WIREHTTP_TEST_TIMEOUT" envDefault:"3s"`
}

type requiredConfig struct {
	Value string `env:"WIREHTTP_TEST_REQUIRED,required"`
}

func TestLoad(t *testing.T) {
	config.Reset()
	t.Setenv("WIREHTTP_TEST_ADDR", ":7070")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, 3*time.Second, cfg.Timeout)

	// cached: later env changes are not observed
	t.Setenv("WIREHTTP_TEST_ADDR", ":6060")
	var again testConfig
	require.NoError(t, config.Load(&again))
	assert.Equal(t, ":7070", again.Addr)

	config.Reset()
	var fresh testConfig
	require.NoError(t, config.Load(&fresh))
	assert.Equal(t, ":6060", fresh.Addr)
}

func TestLoadErrors(t *testing.T) {
	config.Reset()

	var nilCfg *testConfig
	assert.ErrorIs(t, config.Load(nilCfg), config.ErrNilTarget)

	var cfg requiredConfig
	assert.Error(t, config.Load(&cfg))
	assert.Panics(t, func() { config.MustLoad(&requiredConfig{}) })
}

func TestParseWithOptions(t *testing.T) {
	t.Setenv("APP_WIREHTTP_TEST_ADDR", ":5050")

	var cfg testConfig
	require.NoError(t, config.Parse(&cfg, env.Options{Prefix: "APP_"}))
	assert.Equal(t, ":5050", cfg.Addr)
}
