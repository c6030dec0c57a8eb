package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for the optional YAML base layer. Zero values
// leave the profile defaults in place.
type fileConfig struct {
	Profile string `yaml:"profile"`
	Service struct {
		Name string `yaml:"name"`
	} `yaml:"service"`
	AI struct {
		Provider  string `yaml:"provider"`
		APIKey    string `yaml:"api_key"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"ai"`
	Database struct {
		Driver           string `yaml:"driver"`
		ConnectionString string `yaml:"connection_string"`
		CommandTimeout   string `yaml:"command_timeout"`
		MaxRows          int    `yaml:"max_rows"`
	} `yaml:"database"`
	Schema struct {
		Source        string `yaml:"source"`
		Dir           string `yaml:"dir"`
		Pattern       string `yaml:"pattern"`
		ExcludeSuffix string `yaml:"exclude_suffix"`
	} `yaml:"schema"`
	ObjectStore struct {
		Endpoint        string `yaml:"endpoint"`
		Region          string `yaml:"region"`
		Bucket          string `yaml:"bucket"`
		AccessKeyID     string `yaml:"access_key"`
		SecretAccessKey string `yaml:"secret_key"`
		UseSSL          *bool  `yaml:"use_ssl"`
		Prefix          string `yaml:"prefix"`
	} `yaml:"objectstore"`
	Observability struct {
		LogLevel    string `yaml:"log_level"`
		LogJSON     *bool  `yaml:"log_json"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"observability"`
}

var secretPattern = regexp.MustCompile(`^\$\{ENV:([^}]+)\}$`)

// readFile treats a named file as mandatory: a missing or malformed file is a
// startup error.
func readFile(path string, lookup LookupFunc) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	fc := &fileConfig{}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := fc.resolveSecrets(lookup); err != nil {
		return nil, fmt.Errorf("resolving secrets in %s: %w", path, err)
	}
	return fc, nil
}

func (fc *fileConfig) resolveSecrets(lookup LookupFunc) error {
	var err error
	if fc.AI.APIKey, err = resolveValue(fc.AI.APIKey, lookup); err != nil {
		return fmt.Errorf("ai.api_key: %w", err)
	}
	if fc.Database.ConnectionString, err = resolveValue(fc.Database.ConnectionString, lookup); err != nil {
		return fmt.Errorf("database.connection_string: %w", err)
	}
	if fc.ObjectStore.AccessKeyID, err = resolveValue(fc.ObjectStore.AccessKeyID, lookup); err != nil {
		return fmt.Errorf("objectstore.access_key: %w", err)
	}
	if fc.ObjectStore.SecretAccessKey, err = resolveValue(fc.ObjectStore.SecretAccessKey, lookup); err != nil {
		return fmt.Errorf("objectstore.secret_key: %w", err)
	}
	return nil
}

// resolveValue expands a whole-value ${ENV:NAME} reference.
func resolveValue(value string, lookup LookupFunc) (string, error) {
	matches := secretPattern.FindStringSubmatch(strings.TrimSpace(value))
	if matches == nil {
		return value, nil
	}
	resolved, ok := lookup(matches[1])
	if !ok || strings.TrimSpace(resolved) == "" {
		return "", fmt.Errorf("environment variable %s not set", matches[1])
	}
	return strings.TrimSpace(resolved), nil
}

func (fc *fileConfig) applyTo(cfg *Config, path string) error {
	setString(&cfg.Service.Name, fc.Service.Name)
	setString(&cfg.AI.Provider, fc.AI.Provider)
	setString(&cfg.AI.APIKey, fc.AI.APIKey)
	setString(&cfg.AI.BaseURL, fc.AI.BaseURL)
	setString(&cfg.AI.Model, fc.AI.Model)
	if fc.AI.MaxTokens != 0 {
		cfg.AI.MaxTokens = fc.AI.MaxTokens
	}
	if err := setDuration(&cfg.AI.Timeout, fc.AI.Timeout, "ai.timeout"); err != nil {
		return err
	}
	setString(&cfg.Database.Driver, fc.Database.Driver)
	setString(&cfg.Database.ConnectionString, fc.Database.ConnectionString)
	if err := setDuration(&cfg.Database.CommandTimeout, fc.Database.CommandTimeout, "database.command_timeout"); err != nil {
		return err
	}
	if fc.Database.MaxRows != 0 {
		cfg.Database.MaxRows = fc.Database.MaxRows
	}
	setString(&cfg.Schema.Source, fc.Schema.Source)
	if dir := strings.TrimSpace(fc.Schema.Dir); dir != "" {
		// Relative schema dirs are anchored next to the config file.
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(filepath.Dir(path), dir)
		}
		cfg.Schema.Dir = dir
	}
	setString(&cfg.Schema.Pattern, fc.Schema.Pattern)
	setString(&cfg.Schema.ExcludeSuffix, fc.Schema.ExcludeSuffix)
	setString(&cfg.ObjectStore.Endpoint, fc.ObjectStore.Endpoint)
	setString(&cfg.ObjectStore.Region, fc.ObjectStore.Region)
	setString(&cfg.ObjectStore.Bucket, fc.ObjectStore.Bucket)
	setString(&cfg.ObjectStore.AccessKeyID, fc.ObjectStore.AccessKeyID)
	setString(&cfg.ObjectStore.SecretAccessKey, fc.ObjectStore.SecretAccessKey)
	if fc.ObjectStore.UseSSL != nil {
		cfg.ObjectStore.UseSSL = *fc.ObjectStore.UseSSL
	}
	setString(&cfg.ObjectStore.Prefix, fc.ObjectStore.Prefix)
	if fc.Observability.LogLevel != "" {
		level, err := parseLogLevel(fc.Observability.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid observability.log_level: %w", err)
		}
		cfg.Observability.LogLevel = level
	}
	if fc.Observability.LogJSON != nil {
		cfg.Observability.LogJSON = *fc.Observability.LogJSON
	}
	setString(&cfg.Observability.MetricsAddr, fc.Observability.MetricsAddr)
	return nil
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, raw, field string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	*dst = value
	return nil
}
