package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/signcfg/internal/artifact"
	"github.com/eugenenazirov/signcfg/internal/buildenv"
	"github.com/eugenenazirov/signcfg/internal/signing"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultLogLevel       = "info"
)

// Environment variables read by Load. Secret variable names are configurable
// and live in SecretNames.
const (
	EnvEnvironment    = "SIGNCFG_ENVIRONMENT"
	EnvCIMarker       = "SIGNCFG_CI_MARKER"
	EnvPropertiesFile = "SIGNCFG_PROPERTIES_FILE"
	EnvKeystoreDir    = "SIGNCFG_KEYSTORE_DIR"
	EnvOutputPrefix   = "SIGNCFG_OUTPUT_PREFIX"
	EnvLogLevel       = "SIGNCFG_LOG_LEVEL"
	EnvPort           = "SIGNCFG_PORT"
	EnvRateLimitRPS   = "SIGNCFG_RATE_LIMIT_RPS"
	EnvRateLimitBurst = "SIGNCFG_RATE_LIMIT_BURST"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	// EnvironmentOverride forces "ci" or "local"; empty means detect from CIMarker.
	EnvironmentOverride string
	CIMarker            string
	SecretNames         signing.SecretNames
	PropertiesFile      string
	KeystoreDir         string
	KeystorePattern     string
	OutputPrefix        string
	LogLevel            string

	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int

	// Environment and Sources are the build environment snapshot taken by Load.
	Environment buildenv.Environment
	Sources     signing.Sources
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Environment    string              `yaml:"environment"`
	CIMarker       string              `yaml:"ci_marker"`
	PropertiesFile string              `yaml:"properties_file"`
	OutputPrefix   string              `yaml:"output_prefix"`
	LogLevel       string              `yaml:"log_level"`
	Keystore       yamlKeystore        `yaml:"keystore"`
	Secrets        signing.SecretNames `yaml:"secrets"`
	Server         yamlServer          `yaml:"server"`
}

type yamlKeystore struct {
	Dir     string `yaml:"dir"`
	Pattern string `yaml:"pattern"`
}

type yamlServer struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Environment    *string
	PropertiesFile *string
	KeystoreDir    *string
	OutputPrefix   *string
	LogLevel       *string
	Port           *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
// and snapshots the build environment from the process environment.
func Load(overrides *CLIOverrides) (Config, error) {
	return LoadWithLookup(overrides, buildenv.OSLookup())
}

// LoadWithLookup is Load reading environment variables through lookup.
func LoadWithLookup(overrides *CLIOverrides, lookup buildenv.LookupFunc) (Config, error) {
	cfg := defaultConfig()

	var yamlCfg *yamlConfig
	if overrides != nil && overrides.ConfigFile != "" {
		var err error
		yamlCfg, err = loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
	}

	// Environment sits below the YAML file, so it is applied first.
	applyEnvConfig(&cfg, lookup)

	if yamlCfg != nil {
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	cfg.Environment = detectEnvironment(cfg, lookup)
	cfg.Sources = signing.Sources{
		CI:    signing.CISourcesFromLookup(lookup, cfg.SecretNames),
		Local: signing.LocalSources{PropertiesFile: cfg.PropertiesFile},
	}

	return cfg, nil
}

// ResolverOptions returns the signing.Resolver options this configuration implies.
func (c Config) ResolverOptions() []signing.Option {
	return []signing.Option{
		signing.WithKeystoreDir(c.KeystoreDir),
		signing.WithKeystorePattern(c.KeystorePattern),
	}
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		CIMarker:             buildenv.DefaultMarker,
		SecretNames:          signing.DefaultSecretNames(),
		PropertiesFile:       signing.DefaultPropertiesFile,
		KeystorePattern:      signing.DefaultKeystorePattern,
		OutputPrefix:         artifact.DefaultPrefix,
		LogLevel:             defaultLogLevel,
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	setString(&cfg.EnvironmentOverride, yamlCfg.Environment)
	setString(&cfg.CIMarker, yamlCfg.CIMarker)
	setString(&cfg.PropertiesFile, yamlCfg.PropertiesFile)
	setString(&cfg.OutputPrefix, yamlCfg.OutputPrefix)
	setString(&cfg.LogLevel, yamlCfg.LogLevel)
	setString(&cfg.KeystoreDir, yamlCfg.Keystore.Dir)
	setString(&cfg.KeystorePattern, yamlCfg.Keystore.Pattern)

	setString(&cfg.SecretNames.KeystoreBase64, yamlCfg.Secrets.KeystoreBase64)
	setString(&cfg.SecretNames.KeyAlias, yamlCfg.Secrets.KeyAlias)
	setString(&cfg.SecretNames.KeyPassword, yamlCfg.Secrets.KeyPassword)
	setString(&cfg.SecretNames.StorePassword, yamlCfg.Secrets.StorePassword)

	server := yamlCfg.Server
	setString(&cfg.Port, server.Port)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"shutdown_grace_period", server.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", server.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", server.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", server.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("server.%s: %w", d.name, err)
		}
		*d.dst = value
	}

	if server.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *server.EnableRequestLogging
	}
	if server.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *server.RateLimit.RPS
	}
	if server.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *server.RateLimit.Burst
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config, lookup buildenv.LookupFunc) {
	get := func(key string) string {
		if lookup == nil {
			return ""
		}
		value, _ := lookup(key)
		return strings.TrimSpace(value)
	}

	setString(&cfg.EnvironmentOverride, get(EnvEnvironment))
	setString(&cfg.CIMarker, get(EnvCIMarker))
	setString(&cfg.PropertiesFile, get(EnvPropertiesFile))
	setString(&cfg.KeystoreDir, get(EnvKeystoreDir))
	setString(&cfg.OutputPrefix, get(EnvOutputPrefix))
	setString(&cfg.LogLevel, get(EnvLogLevel))
	setString(&cfg.Port, get(EnvPort))

	if rps := get(EnvRateLimitRPS); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := get(EnvRateLimitBurst); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	setStringPtr(&cfg.EnvironmentOverride, overrides.Environment)
	setStringPtr(&cfg.PropertiesFile, overrides.PropertiesFile)
	setStringPtr(&cfg.KeystoreDir, overrides.KeystoreDir)
	setStringPtr(&cfg.OutputPrefix, overrides.OutputPrefix)
	setStringPtr(&cfg.LogLevel, overrides.LogLevel)
	setStringPtr(&cfg.Port, overrides.Port)

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.EnvironmentOverride != "" {
		if _, ok := buildenv.Parse(cfg.EnvironmentOverride); !ok {
			return fmt.Errorf("environment must be %q or %q, got %q", buildenv.CI, buildenv.Local, cfg.EnvironmentOverride)
		}
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.OutputPrefix == "" || strings.ContainsAny(cfg.OutputPrefix, `/\`) {
		return fmt.Errorf("output prefix must be a plain file name, got %q", cfg.OutputPrefix)
	}
	if strings.ContainsAny(cfg.KeystorePattern, `/\`) {
		return fmt.Errorf("keystore pattern must not contain a path separator, got %q", cfg.KeystorePattern)
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	names := cfg.SecretNames
	for _, name := range []string{names.KeystoreBase64, names.KeyAlias, names.KeyPassword, names.StorePassword} {
		if name == "" {
			return fmt.Errorf("secret variable names cannot be empty")
		}
	}
	return nil
}

// detectEnvironment honours an explicit override before looking for the CI marker.
func detectEnvironment(cfg Config, lookup buildenv.LookupFunc) buildenv.Environment {
	if env, ok := buildenv.Parse(cfg.EnvironmentOverride); ok {
		return env
	}
	return buildenv.Detect(lookup, cfg.CIMarker)
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setStringPtr(dst *string, value *string) {
	if value != nil && *value != "" {
		*dst = *value
	}
}
