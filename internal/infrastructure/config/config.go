package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/storefront/landedcost/internal/domain/catalog"
	"github.com/storefront/landedcost/internal/domain/pricing"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Pricing   PricingConfig
	Catalog   CatalogConfig
	Feed      FeedConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds catalog store connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string // database name, or file path for sqlite
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	SlowQueryThresh time.Duration
}

// RedisConfig holds Redis connection settings for the feed ledger
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Enable database query tracing (otelgorm)
	MetricsEnabled    bool
	LogsEnabled       bool
	ExportInterval    time.Duration
}

// TierConfig is one row of the [[pricing.tiers]] table
type TierConfig struct {
	MaxWeight string `mapstructure:"max_weight"`
	Price     string `mapstructure:"price"`
}

// AnomalyConfig holds the [pricing.anomaly] thresholds
type AnomalyConfig struct {
	VolumetricRatio    string
	HighShippingPerKg  string
	MinRateCheckWeight string
	ThinMarginRatio    string
	ShippingShareRatio string
	HeavyParcelWeight  string
}

// PricingConfig holds the pricing policy. Empty values fall back to
// pricing.DefaultPolicy; decimals are kept as text until Policy is called.
type PricingConfig struct {
	Margin            string
	Granularity       string
	Endings           []string // nil means default, empty disables snapping
	FloorPrice        string
	HandlingFee       string
	VATRate           string
	VolumetricDivisor string
	LocalCurrency     string
	SourceCurrency    string
	FXRate            string
	Tiers             []TierConfig
	Anomaly           AnomalyConfig
}

// CatalogConfig describes the optional columns of the catalog store
type CatalogConfig struct {
	SupportsImages bool
	SupportsVideo  bool
}

// FeedConfig holds supplier feed run settings
type FeedConfig struct {
	Path         string
	Format       string // json or csv
	Schedule     string // cron expression with seconds, empty runs once
	RunTimeout   time.Duration
	LedgerTTL    time.Duration
	UpdateImages bool
	UpdateVideo  bool
	UpdatePrice  bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LANDEDCOST_ prefix (e.g., LANDEDCOST_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/landedcost")

	return load(v)
}

// LoadFile loads configuration from an explicit TOML file
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("LANDEDCOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans cannot be defaulted after the fact
	v.SetDefault("catalog.supports_images", true)
	v.SetDefault("catalog.supports_video", true)
	v.SetDefault("feed.update_price", true)
	v.SetDefault("telemetry.metrics_enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			SlowQueryThresh: v.GetDuration("database.slow_query_threshold"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
		},
		Pricing: PricingConfig{
			Margin:            v.GetString("pricing.margin"),
			Granularity:       v.GetString("pricing.granularity"),
			FloorPrice:        v.GetString("pricing.floor_price"),
			HandlingFee:       v.GetString("pricing.handling_fee"),
			VATRate:           v.GetString("pricing.vat_rate"),
			VolumetricDivisor: v.GetString("pricing.volumetric_divisor"),
			LocalCurrency:     v.GetString("pricing.local_currency"),
			SourceCurrency:    v.GetString("pricing.source_currency"),
			FXRate:            v.GetString("pricing.fx_rate"),
			Anomaly: AnomalyConfig{
				VolumetricRatio:    v.GetString("pricing.anomaly.volumetric_ratio"),
				HighShippingPerKg:  v.GetString("pricing.anomaly.high_shipping_per_kg"),
				MinRateCheckWeight: v.GetString("pricing.anomaly.min_rate_check_weight"),
				ThinMarginRatio:    v.GetString("pricing.anomaly.thin_margin_ratio"),
				ShippingShareRatio: v.GetString("pricing.anomaly.shipping_share_ratio"),
				HeavyParcelWeight:  v.GetString("pricing.anomaly.heavy_parcel_weight"),
			},
		},
		Catalog: CatalogConfig{
			SupportsImages: v.GetBool("catalog.supports_images"),
			SupportsVideo:  v.GetBool("catalog.supports_video"),
		},
		Feed: FeedConfig{
			Path:         v.GetString("feed.path"),
			Format:       v.GetString("feed.format"),
			Schedule:     v.GetString("feed.schedule"),
			RunTimeout:   v.GetDuration("feed.run_timeout"),
			LedgerTTL:    v.GetDuration("feed.ledger_ttl"),
			UpdateImages: v.GetBool("feed.update_images"),
			UpdateVideo:  v.GetBool("feed.update_video"),
			UpdatePrice:  v.GetBool("feed.update_price"),
		},
	}

	if v.IsSet("pricing.endings") {
		cfg.Pricing.Endings = v.GetStringSlice("pricing.endings")
		if cfg.Pricing.Endings == nil {
			cfg.Pricing.Endings = []string{}
		}
	}
	if v.IsSet("pricing.tiers") {
		if err := v.UnmarshalKey("pricing.tiers", &cfg.Pricing.Tiers); err != nil {
			return nil, fmt.Errorf("pricing.tiers: %w", err)
		}
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "landedcost"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "landedcost"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.SlowQueryThresh == 0 {
		cfg.Database.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}
	if cfg.Feed.Format == "" {
		cfg.Feed.Format = "json"
	}
	if cfg.Feed.RunTimeout == 0 {
		cfg.Feed.RunTimeout = time.Hour
	}
	if cfg.Feed.LedgerTTL == 0 {
		cfg.Feed.LedgerTTL = 24 * time.Hour
	}
}

// validate checks configuration for errors
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" && c.Database.Driver == "postgres" && c.Database.Password == "" {
		return fmt.Errorf("database.password is required in production")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	switch c.Feed.Format {
	case "json", "csv":
	default:
		return fmt.Errorf("feed.format must be json or csv, got %q", c.Feed.Format)
	}

	// Tier tables are checked here so a misordered table fails at startup
	if _, err := c.Pricing.Policy(); err != nil {
		return err
	}

	return nil
}

// DSN returns the database connection string with properly escaped values.
// For sqlite it is the database file path.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.DBName
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Capabilities returns the optional-field descriptor of the catalog store
func (c CatalogConfig) Capabilities() catalog.Capabilities {
	var fields []catalog.Field
	if c.SupportsImages {
		fields = append(fields, catalog.FieldImages)
	}
	if c.SupportsVideo {
		fields = append(fields, catalog.FieldVideoURL)
	}
	return catalog.NewCapabilities(fields...)
}

// Policy converts the configuration into a validated pricing policy
func (p PricingConfig) Policy() (pricing.Policy, error) {
	policy := pricing.DefaultPolicy()

	decimals := []struct {
		key   string
		value string
		dst   *decimal.Decimal
	}{
		{"pricing.margin", p.Margin, &policy.Margin},
		{"pricing.granularity", p.Granularity, &policy.Granularity},
		{"pricing.floor_price", p.FloorPrice, &policy.FloorPrice},
		{"pricing.handling_fee", p.HandlingFee, &policy.HandlingFee},
		{"pricing.vat_rate", p.VATRate, &policy.VATRate},
		{"pricing.volumetric_divisor", p.VolumetricDivisor, &policy.VolumetricDivisor},
		{"pricing.fx_rate", p.FXRate, &policy.FXRate},
		{"pricing.anomaly.volumetric_ratio", p.Anomaly.VolumetricRatio, &policy.Anomaly.VolumetricRatio},
		{"pricing.anomaly.high_shipping_per_kg", p.Anomaly.HighShippingPerKg, &policy.Anomaly.HighShippingPerKg},
		{"pricing.anomaly.min_rate_check_weight", p.Anomaly.MinRateCheckWeight, &policy.Anomaly.MinRateCheckWeight},
		{"pricing.anomaly.thin_margin_ratio", p.Anomaly.ThinMarginRatio, &policy.Anomaly.ThinMarginRatio},
		{"pricing.anomaly.shipping_share_ratio", p.Anomaly.ShippingShareRatio, &policy.Anomaly.ShippingShareRatio},
		{"pricing.anomaly.heavy_parcel_weight", p.Anomaly.HeavyParcelWeight, &policy.Anomaly.HeavyParcelWeight},
	}
	for _, d := range decimals {
		if strings.TrimSpace(d.value) == "" {
			continue
		}
		parsed, err := decimal.NewFromString(strings.TrimSpace(d.value))
		if err != nil {
			return pricing.Policy{}, fmt.Errorf("%s: invalid decimal %q", d.key, d.value)
		}
		*d.dst = parsed
	}

	if p.LocalCurrency != "" {
		policy.LocalCurrency = strings.ToUpper(p.LocalCurrency)
	}
	if p.SourceCurrency != "" {
		policy.SourceCurrency = strings.ToUpper(p.SourceCurrency)
	}

	if p.Endings != nil {
		policy.Endings = make([]decimal.Decimal, 0, len(p.Endings))
		for _, e := range p.Endings {
			parsed, err := decimal.NewFromString(strings.TrimSpace(e))
			if err != nil {
				return pricing.Policy{}, fmt.Errorf("pricing.endings: invalid decimal %q", e)
			}
			policy.Endings = append(policy.Endings, parsed)
		}
	}

	if len(p.Tiers) > 0 {
		policy.Tiers = make([]pricing.ShippingTier, 0, len(p.Tiers))
		for i, t := range p.Tiers {
			maxWeight, err := decimal.NewFromString(strings.TrimSpace(t.MaxWeight))
			if err != nil {
				return pricing.Policy{}, fmt.Errorf("pricing.tiers[%d].max_weight: invalid decimal %q", i, t.MaxWeight)
			}
			price, err := decimal.NewFromString(strings.TrimSpace(t.Price))
			if err != nil {
				return pricing.Policy{}, fmt.Errorf("pricing.tiers[%d].price: invalid decimal %q", i, t.Price)
			}
			policy.Tiers = append(policy.Tiers, pricing.ShippingTier{MaxWeight: maxWeight, Price: price})
		}
	}

	if err := policy.Validate(); err != nil {
		return pricing.Policy{}, fmt.Errorf("pricing: %w", err)
	}
	return policy, nil
}
