package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageScreener/internal/model"
	"StageScreener/internal/strategy"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
universe:
  - symbol: AAPL
    name: Apple
  - symbol: MSFT
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []model.Security{{Symbol: "AAPL", Name: "Apple"}, {Symbol: "MSFT"}}, cfg.Universe)
	assert.Equal(t, "SPY", cfg.Benchmark)
	assert.Equal(t, "yahoo", cfg.DataSource.Provider)
	assert.Equal(t, 260, cfg.DataSource.HistoryDays)
	assert.Equal(t, "daily", cfg.Pipeline.Frequency)
	assert.Equal(t, "0 30 22 * * 1-5", cfg.Schedule.DailyCron)
	assert.Equal(t, "data/screener.db", cfg.DatabasePath())
	assert.Equal(t, strategy.DefaultWeights, cfg.StageWeights())
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("SCREENER_UNIVERSE", "AAPL:Apple, MSFT ,")
	t.Setenv("DB_DRIVER", "badger")
	t.Setenv("BADGER_DIR", "/tmp/b")
	t.Setenv("PIPELINE_WORKERS", "8")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []model.Security{{Symbol: "AAPL", Name: "Apple"}, {Symbol: "MSFT"}}, cfg.Universe)
	assert.Equal(t, "/tmp/b", cfg.DatabasePath())
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ParseError(t *testing.T) {
	_, err := Load(writeConfig(t, "universe: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, "universe:\n  - symbol: AAPL\n"))
		require.NoError(t, err)
		return cfg
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty universe", func(c *Config) { c.Universe = nil }},
		{"duplicate symbol", func(c *Config) { c.Universe = append(c.Universe, model.Security{Symbol: "AAPL"}) }},
		{"unknown provider", func(c *Config) { c.DataSource.Provider = "bloomberg" }},
		{"rest without url", func(c *Config) { c.DataSource.Provider = "rest" }},
		{"short history", func(c *Config) { c.DataSource.HistoryDays = 50 }},
		{"weights off", func(c *Config) { c.Pipeline.Weights["trend"] = 0.5 }},
		{"bad cron", func(c *Config) { c.Schedule.DailyCron = "every day" }},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateTelegram(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateTelegram())
	cfg.Telegram.BotToken = "t"
	cfg.Telegram.ChatID = "1"
	assert.NoError(t, cfg.ValidateTelegram())
}
