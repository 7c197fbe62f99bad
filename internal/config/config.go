package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"StageScreener/internal/model"
	"StageScreener/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	Universe   []model.Security `yaml:"universe"`
	Benchmark  string           `yaml:"benchmark"`
	DataSource struct {
		Provider          string  `yaml:"provider"` // yahoo, rest or mock
		BaseURL           string  `yaml:"base_url"`
		APIKey            string  `yaml:"api_key"`
		HistoryDays       int     `yaml:"history_days"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"data_source"`
	Pipeline struct {
		Workers   int                `yaml:"workers"`
		Frequency string             `yaml:"frequency"`
		Weights   map[string]float64 `yaml:"weights"`
		TopN      int                `yaml:"top_n"`
	} `yaml:"pipeline"`
	Schedule struct {
		DailyCron string `yaml:"daily_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		Driver     string `yaml:"driver"` // sqlite, badger or none
		SQLitePath string `yaml:"sqlite_path"`
		BadgerDir  string `yaml:"badger_dir"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SCREENER_UNIVERSE"); v != "" {
		cfg.Universe = parseUniverse(v)
	}
	if v := os.Getenv("SCREENER_BENCHMARK"); v != "" {
		cfg.Benchmark = v
	}
	if v := os.Getenv("PIPELINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("BADGER_DIR"); v != "" {
		cfg.Database.BadgerDir = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Defaults
	if cfg.Benchmark == "" {
		cfg.Benchmark = "SPY"
	}
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "yahoo"
	}
	if cfg.DataSource.HistoryDays == 0 {
		cfg.DataSource.HistoryDays = 260
	}
	if cfg.DataSource.RequestsPerSecond == 0 {
		cfg.DataSource.RequestsPerSecond = 2
	}
	if cfg.DataSource.Burst == 0 {
		cfg.DataSource.Burst = 2
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 4
	}
	if cfg.Pipeline.Frequency == "" {
		cfg.Pipeline.Frequency = "daily"
	}
	if len(cfg.Pipeline.Weights) == 0 {
		cfg.Pipeline.Weights = make(map[string]float64, len(strategy.DefaultWeights))
		for stage, w := range strategy.DefaultWeights {
			cfg.Pipeline.Weights[string(stage)] = w
		}
	}
	if cfg.Pipeline.TopN == 0 {
		cfg.Pipeline.TopN = 10
	}
	if cfg.Schedule.DailyCron == "" {
		cfg.Schedule.DailyCron = "0 30 22 * * 1-5"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/screener.db"
	}
	if cfg.Database.BadgerDir == "" {
		cfg.Database.BadgerDir = "data/badger"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}

// parseUniverse reads "AAPL:Apple,MSFT" style lists.
func parseUniverse(v string) []model.Security {
	var out []model.Security
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		symbol, name, _ := strings.Cut(item, ":")
		out = append(out, model.Security{Symbol: strings.TrimSpace(symbol), Name: strings.TrimSpace(name)})
	}
	return out
}

// StageWeights converts the configured weights into strategy weights.
func (c *Config) StageWeights() strategy.Weights {
	w := make(strategy.Weights, len(c.Pipeline.Weights))
	for stage, v := range c.Pipeline.Weights {
		w[model.StageName(stage)] = v
	}
	return w
}

// DatabasePath returns the storage location for the configured driver.
func (c *Config) DatabasePath() string {
	if c.Database.Driver == "badger" {
		return c.Database.BadgerDir
	}
	return c.Database.SQLitePath
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if len(c.Universe) == 0 {
		return fmt.Errorf("universe must list at least one symbol")
	}
	seen := make(map[string]bool, len(c.Universe))
	for _, s := range c.Universe {
		if s.Symbol == "" {
			return fmt.Errorf("universe entry with empty symbol")
		}
		if seen[s.Symbol] {
			return fmt.Errorf("universe symbol %s listed twice", s.Symbol)
		}
		seen[s.Symbol] = true
	}
	if c.Benchmark == "" {
		return fmt.Errorf("benchmark is required")
	}
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("unknown data_source.provider %q", c.DataSource.Provider)
	}
	if c.DataSource.HistoryDays < 200 {
		return fmt.Errorf("data_source.history_days must be at least 200")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be positive")
	}
	if err := c.StageWeights().Validate(); err != nil {
		return fmt.Errorf("pipeline.weights: %w", err)
	}
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).
		Parse(c.Schedule.DailyCron); err != nil {
		return fmt.Errorf("schedule.daily_cron: %w", err)
	}
	switch c.Database.Driver {
	case "sqlite", "badger", "none":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// ValidateTelegram checks the fields needed to run the bot.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	return nil
}
