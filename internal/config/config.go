/*
Package config loads the VSS process configuration from a YAML file, with
every key overridable by an environment variable under the VSS_ prefix
(VSS_LISTEN_ADDR overrides listen_addr, and so on) — the same
file-plus-environment-override convention viper documents, used here so
tenant backing-store credentials can come from either source per the
operational surface's requirement.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is everything the vssd binary needs to start serving.
type Config struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`
	TLSCAFile   string `mapstructure:"tls_ca_file"` // optional, enables mutual TLS

	DatabaseDSN  string `mapstructure:"database_dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`

	LogLevel      string `mapstructure:"log_level"`
	LogJSON       bool   `mapstructure:"log_json"`
	LogOutputPath string `mapstructure:"log_output_path"`

	MetricsEnabled bool `mapstructure:"metrics_enabled"`

	TracingEnabled     bool   `mapstructure:"tracing_enabled"`
	TracingEndpoint    string `mapstructure:"tracing_endpoint"`
	TracingServiceName string `mapstructure:"tracing_service_name"`

	Sentry SentryConfig `mapstructure:"sentry"`

	Auth AuthConfig `mapstructure:"auth"`
}

// SentryConfig enables error-event reporting when DSN is set. The DSN is
// typically supplied via the VSS_SENTRY_DSN environment variable rather
// than committed to a config file.
type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// AuthConfig selects and parameterizes the Authorization Gate's verifier.
type AuthConfig struct {
	Scheme string `mapstructure:"scheme"` // "bearer" or "signature"

	BearerPublicKeyFile string `mapstructure:"bearer_public_key_file"`

	// SignatureKeyFiles maps a key ID to the path of its PEM-encoded
	// ECDSA public key.
	SignatureKeyFiles map[string]string `mapstructure:"signature_key_files"`
}

const envPrefix = "vss"

// Load reads path (YAML) and overlays any VSS_-prefixed environment
// variable matching a known key.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv alone only reaches keys viper already knows from the file
	// or a default; binding each key lets a VSS_ variable supply one the file
	// omits.
	for _, key := range []string{
		"listen_addr", "metrics_addr", "tls_cert_file", "tls_key_file", "tls_ca_file",
		"database_dsn", "max_open_conns", "log_level", "log_json", "log_output_path",
		"metrics_enabled", "tracing_enabled", "tracing_endpoint", "tracing_service_name",
		"sentry.dsn", "sentry.environment", "sentry.sample_rate",
		"auth.scheme", "auth.bearer_public_key_file",
	} {
		_ = v.BindEnv(key)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("config: listen_addr is required")
	}
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("config: database_dsn is required")
	}
	if cfg.Auth.Scheme == "" {
		return nil, fmt.Errorf("config: auth.scheme is required")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_open_conns", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", true)
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("sentry.sample_rate", 1.0)
}
