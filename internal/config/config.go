package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the goldtracer terminal.
type Config struct {
	API     API     `yaml:"api"`
	Poll    Poll    `yaml:"poll"`
	Chat    Chat    `yaml:"chat"`
	Storage Storage `yaml:"storage"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	News    News    `yaml:"news"`
	HTTP    HTTP    `yaml:"http"`
	Logging Logging `yaml:"logging"`
}

// API holds the dashboard backend endpoint.
type API struct {
	// BaseURL is empty in production, meaning same-origin relative paths.
	BaseURL            string        `yaml:"base_url" default:"http://localhost:8000"`
	Timeout            time.Duration `yaml:"timeout" default:"15s"`
	AdminKey           string        `yaml:"admin_key"`
	DefaultMeetingDate string        `yaml:"default_meeting_date" default:"2026-03-18"`
}

// Poll controls the refresh cadence of the dashboard.
type Poll struct {
	SummaryInterval   time.Duration `yaml:"summary_interval" default:"60s"`
	CountdownInterval time.Duration `yaml:"countdown_interval" default:"60s"`
	HistoryRange      string        `yaml:"history_range" default:"1mo"`
}

// Chat configures the AI analyst panel.
type Chat struct {
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model" default:"gemini-1.5-flash"`
	Timeout  time.Duration `yaml:"timeout" default:"45s"`
	TimeZone string        `yaml:"time_zone" default:"Asia/Shanghai"`
}

// Storage holds paths for local persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path" default:"goldtracer.db"`
	ExportDir  string `yaml:"export_dir" default:"exports"`
}

// Alpaca holds credentials for the optional market-data overlay.
type Alpaca struct {
	APIKey    string   `yaml:"api_key"`
	APISecret string   `yaml:"api_secret"`
	DataURL   string   `yaml:"data_url"`
	Symbols   []string `yaml:"symbols" default:"[\"GLD\",\"IAU\"]"`
}

// News configures the supplementary intel sources.
type News struct {
	Disabled bool          `yaml:"disabled"`
	Query    string        `yaml:"query" default:"gold price"`
	Lookback time.Duration `yaml:"lookback" default:"24h"`
}

// HTTP configures the optional local mirror API.
type HTTP struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" default:"127.0.0.1:8090"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
	File   string `yaml:"file"`
}

// minAPIKeyLen is the shortest credential the AI service will accept; shorter
// values are placeholders left in .env templates.
const minAPIKeyLen = 10

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, fills unset fields
// from struct defaults, loads .env files, and then applies environment
// variable overrides. A missing file is not an error: the terminal runs on
// defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}

	// .env.local wins over .env; godotenv never overrides variables that are
	// already set.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Path returns the config file location, honouring GOLDTRACER_CONFIG.
func Path() string {
	if v := os.Getenv("GOLDTRACER_CONFIG"); v != "" {
		return v
	}
	return "config/goldtracer.yaml"
}

// ChatEnabled reports whether a usable AI credential is configured.
func (c *Config) ChatEnabled() bool {
	return len(c.Chat.APIKey) >= minAPIKeyLen
}

// AlpacaEnabled reports whether Alpaca credentials are present.
func (c *Config) AlpacaEnabled() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

// firstEnv returns the first non-empty value among the named variables.
func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := firstEnv("GOLDTRACER_API_URL", "API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if os.Getenv("GOLDTRACER_ENV") == "production" {
		cfg.API.BaseURL = ""
	}

	if v := os.Getenv("ADMIN_KEY"); v != "" {
		cfg.API.AdminKey = v
	}

	if v := firstEnv("VITE_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if len(cfg.Chat.APIKey) < minAPIKeyLen {
		cfg.Chat.APIKey = ""
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Chat.Model = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
