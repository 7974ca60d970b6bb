package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Merge modes.
const (
	ModePartial = "partial"
	ModeAbort   = "abort"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds the full application configuration.
type Config struct {
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Merge   MergeConfig   `yaml:"merge" mapstructure:"merge"`
	Dedupe  DedupeConfig  `yaml:"dedupe" mapstructure:"dedupe"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the canonical dataset and the staging source.
type DataConfig struct {
	CompaniesPath string `yaml:"companies_path" mapstructure:"companies_path"`
	StagingPath   string `yaml:"staging_path" mapstructure:"staging_path"`
	StagingSheet  string `yaml:"staging_sheet" mapstructure:"staging_sheet"` // XLSX only; first sheet when empty
}

// MergeConfig selects what happens when some staged records fail.
type MergeConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"` // "partial" or "abort"
}

// DedupeConfig configures duplicate detection.
type DedupeConfig struct {
	FuzzyNames bool `yaml:"fuzzy_names" mapstructure:"fuzzy_names"`
}

// GeocodeConfig configures the geocoding providers, retries and cache.
type GeocodeConfig struct {
	NominatimURL     string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	GoogleAPIKey     string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	RateLimitRPS     float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	CachePath        string  `yaml:"cache_path" mapstructure:"cache_path"`
	CacheTTLDays     int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
	FallbackToCity   bool    `yaml:"fallback_to_city" mapstructure:"fallback_to_city"`
}

// Timeout is the per-request timeout.
func (g GeocodeConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// CacheTTL is how long persisted results stay valid; zero means forever.
func (g GeocodeConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheTTLDays) * 24 * time.Hour
}

// ReportConfig configures the run report.
type ReportConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // "text", "json" or "yaml"
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CANADATECH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.companies_path", "companies.csv")
	v.SetDefault("data.staging_path", "data/incoming.csv")
	v.SetDefault("data.staging_sheet", "")
	v.SetDefault("merge.mode", ModePartial)
	v.SetDefault("dedupe.fuzzy_names", true)
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "canada-tech-repo")
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.max_attempts", 3)
	v.SetDefault("geocode.initial_backoff_ms", 500)
	v.SetDefault("geocode.max_backoff_ms", 5000)
	v.SetDefault("geocode.rate_limit_rps", 1.0)
	v.SetDefault("geocode.cache_path", "data/geocode_cache.db")
	v.SetDefault("geocode.cache_ttl_days", 0)
	v.SetDefault("geocode.fallback_to_city", false)
	v.SetDefault("report.format", FormatText)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate reports every setting outside its allowed values.
func (c *Config) Validate() error {
	var problems []string
	switch c.Merge.Mode {
	case ModePartial, ModeAbort:
	default:
		problems = append(problems, fmt.Sprintf("merge.mode must be %q or %q, got %q", ModePartial, ModeAbort, c.Merge.Mode))
	}
	switch c.Report.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		problems = append(problems, fmt.Sprintf("report.format must be text, json or yaml, got %q", c.Report.Format))
	}
	if c.Data.CompaniesPath == "" {
		problems = append(problems, "data.companies_path is required")
	}
	if c.Data.StagingPath == "" {
		problems = append(problems, "data.staging_path is required")
	}
	if c.Geocode.MaxAttempts < 1 {
		problems = append(problems, "geocode.max_attempts must be >= 1")
	}
	if c.Geocode.TimeoutSecs < 1 {
		problems = append(problems, "geocode.timeout_secs must be >= 1")
	}
	if c.Geocode.RateLimitRPS < 0 {
		problems = append(problems, "geocode.rate_limit_rps must be >= 0")
	}
	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	zapCfg, err := loggerConfig(cfg)
	if err != nil {
		return err
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

func loggerConfig(cfg LogConfig) (zap.Config, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		// Rejected rows are logged at warn; keep traces out of the report.
		zapCfg.DisableStacktrace = true
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zap.Config{}, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)
	return zapCfg, nil
}
