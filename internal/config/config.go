package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Policy    PolicyConfig    `yaml:"policy" mapstructure:"policy"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PolicyConfig holds the publish-safety and data-quality thresholds.
// The legacy system hardcoded these; they are policy, not constants.
type PolicyConfig struct {
	MaxErrorRate      float64 `yaml:"max_error_rate" mapstructure:"max_error_rate"`           // diff error rate above which auto-publish is refused
	LargeChangePct    float64 `yaml:"large_change_pct" mapstructure:"large_change_pct"`       // relative price move counting as "large"
	PriceDropPct      float64 `yaml:"price_drop_pct" mapstructure:"price_drop_pct"`           // relative drop raising a price_drop anomaly
	PSFZScore         float64 `yaml:"psf_zscore" mapstructure:"psf_zscore"`                   // |z| beyond which price-per-sqft is an outlier
	SizeSimilarityPct float64 `yaml:"size_similarity_pct" mapstructure:"size_similarity_pct"` // size diff below which two units look duplicated
}

// IngestConfig configures price-list ingestion.
type IngestConfig struct {
	MappingPath   string `yaml:"mapping_path" mapstructure:"mapping_path"` // YAML header-mapping table, per developer
	DefaultSource string `yaml:"default_source" mapstructure:"default_source"`
}

// EnrichConfig configures the location-enrichment batch.
type EnrichConfig struct {
	PoliceBaseURL     string  `yaml:"police_base_url" mapstructure:"police_base_url"`
	AirQualityBaseURL string  `yaml:"air_quality_base_url" mapstructure:"air_quality_base_url"`
	AirQualityToken   string  `yaml:"air_quality_token" mapstructure:"air_quality_token"`
	SchoolsBaseURL    string  `yaml:"schools_base_url" mapstructure:"schools_base_url"`
	OverpassBaseURL   string  `yaml:"overpass_base_url" mapstructure:"overpass_base_url"`
	RadiusMeters      int     `yaml:"radius_meters" mapstructure:"radius_meters"`
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// AnthropicConfig holds settings for AI-generated marketing copy.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("INVENTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("policy.max_error_rate", 0.05)
	v.SetDefault("policy.large_change_pct", 0.15)
	v.SetDefault("policy.price_drop_pct", 0.20)
	v.SetDefault("policy.psf_zscore", 3.0)
	v.SetDefault("policy.size_similarity_pct", 0.03)
	v.SetDefault("ingest.mapping_path", "mappings.yaml")
	v.SetDefault("ingest.default_source", "upload")
	v.SetDefault("enrich.police_base_url", "https://data.police.uk/api")
	v.SetDefault("enrich.air_quality_base_url", "https://api.waqi.info")
	v.SetDefault("enrich.schools_base_url", "https://api.schools.gov.uk")
	v.SetDefault("enrich.overpass_base_url", "https://overpass-api.de/api")
	v.SetDefault("enrich.radius_meters", 1000)
	v.SetDefault("enrich.concurrency", 4)
	v.SetDefault("enrich.requests_per_second", 2)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")

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

// ValidatePolicy checks that the policy thresholds are internally consistent.
func ValidatePolicy(p PolicyConfig) error {
	var errs []string
	if p.MaxErrorRate <= 0 || p.MaxErrorRate > 1 {
		errs = append(errs, "max_error_rate must be in (0, 1]")
	}
	if p.LargeChangePct <= 0 || p.LargeChangePct > 1 {
		errs = append(errs, "large_change_pct must be in (0, 1]")
	}
	if p.PriceDropPct <= 0 || p.PriceDropPct > 1 {
		errs = append(errs, "price_drop_pct must be in (0, 1]")
	}
	if p.PSFZScore <= 0 {
		errs = append(errs, "psf_zscore must be > 0")
	}
	if p.SizeSimilarityPct <= 0 || p.SizeSimilarityPct > 1 {
		errs = append(errs, "size_similarity_pct must be in (0, 1]")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: policy validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
