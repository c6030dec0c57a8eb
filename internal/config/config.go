package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	DriverSQLServer = "sqlserver"
	DriverPostgres  = "postgres"
	DriverDuckDB    = "duckdb"

	SchemaSourceDir         = "dir"
	SchemaSourceObjectStore = "objectstore"

	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultOpenAIModel    = "gpt-5"

	// MaxRowLimit is the hard cap on returned rows; NLQUERY_DB_MAX_ROWS may
	// only lower it.
	MaxRowLimit = 100
)

const (
	EnvConfigFile       = "NLQUERY_CONFIG_FILE"
	EnvAPIKey           = "NLQUERY_AI_API_KEY"
	EnvConnectionString = "NLQUERY_DB_CONNECTION_STRING"
)

// Config is built once at startup and passed by value; nothing mutates it
// afterwards.
type Config struct {
	Profile       Profile
	File          string
	Service       ServiceConfig
	AI            AIConfig
	Database      DatabaseConfig
	Schema        SchemaConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type AIConfig struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type DatabaseConfig struct {
	Driver           string
	ConnectionString string
	CommandTimeout   time.Duration
	MaxRows          int
}

type SchemaConfig struct {
	Source        string
	Dir           string
	Pattern       string
	ExcludeSuffix string
}

type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type ObservabilityConfig struct {
	LogLevel    slog.Level
	LogJSON     bool
	MetricsAddr string
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	var file *fileConfig
	filePath := ""
	if raw, ok := lookup(EnvConfigFile); ok && strings.TrimSpace(raw) != "" {
		filePath = strings.TrimSpace(raw)
		loaded, err := readFile(filePath, lookup)
		if err != nil {
			return Config{}, err
		}
		file = loaded
	}

	profile := ProfileDev
	if file != nil && file.Profile != "" {
		profile = Profile(strings.ToLower(strings.TrimSpace(file.Profile)))
	}
	if raw, ok := lookup("NLQUERY_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid NLQUERY_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	cfg.File = filePath
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}
	if file != nil {
		if err := file.applyTo(&cfg, filePath); err != nil {
			return Config{}, err
		}
	}

	if err := applyString(lookup, "NLQUERY_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_AI_PROVIDER", &cfg.AI.Provider); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, EnvAPIKey, &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "NLQUERY_AI_MAX_TOKENS", &cfg.AI.MaxTokens); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "NLQUERY_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_DB_DRIVER", &cfg.Database.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, EnvConnectionString, &cfg.Database.ConnectionString); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "NLQUERY_DB_COMMAND_TIMEOUT", &cfg.Database.CommandTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "NLQUERY_DB_MAX_ROWS", &cfg.Database.MaxRows); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_SCHEMA_SOURCE", &cfg.Schema.Source); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_SCHEMA_DIR", &cfg.Schema.Dir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_SCHEMA_PATTERN", &cfg.Schema.Pattern); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_SCHEMA_EXCLUDE_SUFFIX", &cfg.Schema.ExcludeSuffix); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "NLQUERY_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "NLQUERY_METRICS_ADDR", &cfg.Observability.MetricsAddr); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "NLQUERY_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "NLQUERY_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate checks shape only. A missing API key or connection string is
// reported per invocation rather than at startup.
func (c *Config) validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	c.AI.Provider = strings.ToLower(c.AI.Provider)
	switch c.AI.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid NLQUERY_AI_PROVIDER: %q", c.AI.Provider)
	}
	if c.AI.Model == "" {
		c.AI.Model = DefaultModel(c.AI.Provider)
	}
	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("invalid NLQUERY_AI_MAX_TOKENS: %d", c.AI.MaxTokens)
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	switch c.Database.Driver {
	case DriverSQLServer, DriverPostgres, DriverDuckDB:
	default:
		return fmt.Errorf("invalid NLQUERY_DB_DRIVER: %q", c.Database.Driver)
	}
	if c.Database.CommandTimeout <= 0 {
		return fmt.Errorf("invalid NLQUERY_DB_COMMAND_TIMEOUT: %s", c.Database.CommandTimeout)
	}
	if c.Database.MaxRows <= 0 || c.Database.MaxRows > MaxRowLimit {
		return fmt.Errorf("invalid NLQUERY_DB_MAX_ROWS: %d", c.Database.MaxRows)
	}
	c.Schema.Source = strings.ToLower(c.Schema.Source)
	switch c.Schema.Source {
	case SchemaSourceDir:
		if c.Schema.Dir == "" {
			return fmt.Errorf("schema dir is required")
		}
	case SchemaSourceObjectStore:
		if c.ObjectStore.Endpoint == "" || c.ObjectStore.Bucket == "" {
			return fmt.Errorf("object store endpoint and bucket are required for schema source %q", c.Schema.Source)
		}
	default:
		return fmt.Errorf("invalid NLQUERY_SCHEMA_SOURCE: %q", c.Schema.Source)
	}
	if c.Schema.Pattern == "" {
		return fmt.Errorf("schema pattern is required")
	}
	return nil
}

// DefaultModel is the model used when none is configured for provider.
func DefaultModel(provider string) string {
	if provider == ProviderOpenAI {
		return DefaultOpenAIModel
	}
	return DefaultAnthropicModel
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "nlquery"},
		AI: AIConfig{
			Provider:  ProviderAnthropic,
			MaxTokens: 500,
			Timeout:   60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         DriverSQLServer,
			CommandTimeout: 30 * time.Second,
			MaxRows:        100,
		},
		Schema: SchemaConfig{
			Source:        SchemaSourceDir,
			Dir:           "Models",
			Pattern:       "*.cs",
			ExcludeSuffix: "Context.cs",
		},
		ObjectStore: ObjectStoreConfig{
			Region: "us-east-1",
			Prefix: "schema",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.ObjectStore.UseSSL = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level, err := parseLogLevel(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = level
	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
}
