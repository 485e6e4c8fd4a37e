// Package config loads runtime settings from an optional config file, a .env
// file and RECON_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// Config holds every tunable of the extraction and reconciliation engine.
type Config struct {
	LayoutsDir string `mapstructure:"layouts_dir"`
	LogLevel   string `mapstructure:"log_level"`

	DateToleranceDays       int     `mapstructure:"date_tolerance_days"`
	MaxCombinationSize      int     `mapstructure:"max_combination_size"`
	CombinationCandidateCap int     `mapstructure:"combination_candidate_cap"`
	AmountTolerance         float64 `mapstructure:"amount_tolerance"`
	BalanceTolerance        float64 `mapstructure:"balance_tolerance"`
	SubsetTolerance         float64 `mapstructure:"subset_tolerance"`
	CombinationSameSign     bool    `mapstructure:"combination_same_sign"`

	DedupPolicy         string `mapstructure:"dedup_policy"`
	StoneBalancePolicy  string `mapstructure:"stone_balance_policy"`
	BradescoTotalPolicy string `mapstructure:"bradesco_total_policy"`
	BBRendeFacil        bool   `mapstructure:"bb_rende_facil"`

	OCR      OCRConfig      `mapstructure:"ocr"`
	LLM      LLMConfig      `mapstructure:"llm"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

type OCRConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Language string `mapstructure:"language"`
	DPI      int    `mapstructure:"dpi"`
}

type LLMConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

type BigQueryConfig struct {
	Project string `mapstructure:"project"`
	Dataset string `mapstructure:"dataset"`
}

type HTTPConfig struct {
	Port      int     `mapstructure:"port"`
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

var (
	dedupPolicies    = []string{"identity", "legacy"}
	stonePolicies    = []string{"derive", "swap"}
	bradescoPolicies = []string{"right-edge", "strict", "off"}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("layouts_dir", "layouts")
	v.SetDefault("log_level", "info")
	v.SetDefault("date_tolerance_days", 3)
	v.SetDefault("max_combination_size", 4)
	v.SetDefault("combination_candidate_cap", 20)
	v.SetDefault("amount_tolerance", 0.01)
	v.SetDefault("balance_tolerance", 0.02)
	v.SetDefault("subset_tolerance", 0.02)
	v.SetDefault("combination_same_sign", false)
	v.SetDefault("dedup_policy", "identity")
	v.SetDefault("stone_balance_policy", "derive")
	v.SetDefault("bradesco_total_policy", "right-edge")
	v.SetDefault("bb_rende_facil", false)
	v.SetDefault("ocr.enabled", true)
	v.SetDefault("ocr.language", "por")
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("bigquery.project", "")
	v.SetDefault("bigquery.dataset", "reconciliation")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.rate_limit", 10.0)
	v.SetDefault("http.burst", 20)
	v.SetDefault("cache.ttl", 15*time.Minute)
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads .env (if present), the optional config file at path and the
// RECON_* environment, then validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Load: reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Load: reading %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("Load: decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

// Validate rejects unknown policies and non-positive limits.
func (c *Config) Validate() error {
	if !oneOf(c.DedupPolicy, dedupPolicies) {
		return &domain.ConfigError{Reason: fmt.Sprintf("dedup_policy %q not in %v", c.DedupPolicy, dedupPolicies)}
	}
	if !oneOf(c.StoneBalancePolicy, stonePolicies) {
		return &domain.ConfigError{Reason: fmt.Sprintf("stone_balance_policy %q not in %v", c.StoneBalancePolicy, stonePolicies)}
	}
	if !oneOf(c.BradescoTotalPolicy, bradescoPolicies) {
		return &domain.ConfigError{Reason: fmt.Sprintf("bradesco_total_policy %q not in %v", c.BradescoTotalPolicy, bradescoPolicies)}
	}
	if c.DateToleranceDays < 0 {
		return &domain.ConfigError{Reason: "date_tolerance_days must not be negative"}
	}
	if c.MaxCombinationSize < 2 {
		return &domain.ConfigError{Reason: "max_combination_size must be at least 2"}
	}
	if c.CombinationCandidateCap <= 0 {
		return &domain.ConfigError{Reason: "combination_candidate_cap must be positive"}
	}
	if c.AmountTolerance <= 0 || c.BalanceTolerance <= 0 || c.SubsetTolerance <= 0 {
		return &domain.ConfigError{Reason: "tolerances must be positive"}
	}
	return nil
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
