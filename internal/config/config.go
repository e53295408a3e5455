// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

// Package config loads service configuration from defaults, an optional
// YAML file, the environment and command-line flags, in that order of
// increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"maps"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// GoogleConfig holds the OAuth client settings for Google login.
type GoogleConfig struct {
	ClientID     string `koanf:"client_id" json:"client_id,omitempty" env:"GOOGLE_CLIENT_ID" jsonschema:"description=OAuth client ID"`
	ClientSecret string `koanf:"client_secret" json:"client_secret,omitempty" env:"GOOGLE_CLIENT_SECRET" jsonschema:"description=OAuth client secret"`
	RedirectURI  string `koanf:"redirect_uri" json:"redirect_uri,omitempty" env:"GOOGLE_REDIRECT_URI" jsonschema:"description=Callback URL registered with Google"`
	Scope        string `koanf:"scope" json:"scope,omitempty" env:"GOOGLE_SCOPE" jsonschema:"description=Space-delimited OAuth scopes"`
}

// Complete reports whether every setting needed for a code exchange is set.
func (g GoogleConfig) Complete() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURI != ""
}

// MailConfig holds outbound email settings for reset token delivery.
type MailConfig struct {
	SendGridAPIKey string `koanf:"sendgrid_api_key" json:"sendgrid_api_key,omitempty" env:"SENDGRID_API_KEY" jsonschema:"description=SendGrid API key; empty disables email delivery"`
	FromAddress    string `koanf:"from_address" json:"from_address,omitempty" env:"MAIL_FROM_ADDRESS" jsonschema:"format=email"`
	FromName       string `koanf:"from_name" json:"from_name,omitempty" env:"MAIL_FROM_NAME"`
}

// Config is the full service configuration.
type Config struct {
	DatabaseURL     string        `koanf:"database_url" json:"database_url,omitempty" env:"DATABASE_URL" jsonschema:"description=PostgreSQL connection URL"`
	StoreDriver     string        `koanf:"store_driver" json:"store_driver,omitempty" env:"STORE_DRIVER" jsonschema:"enum=postgres,enum=memory"`
	Host            string        `koanf:"host" json:"host,omitempty" env:"SERVICE_HOST"`
	Port            int           `koanf:"port" json:"port,omitempty" env:"SERVICE_PORT" jsonschema:"minimum=1,maximum=65535"`
	MetricsAddr     string        `koanf:"metrics_addr" json:"metrics_addr,omitempty" env:"METRICS_ADDR" jsonschema:"description=Listen address for metrics and health probes; empty disables"`
	LogFormat       string        `koanf:"log_format" json:"log_format,omitempty" env:"LOG_FORMAT" jsonschema:"enum=json,enum=text"`
	LogLevel        string        `koanf:"log_level" json:"log_level,omitempty" env:"LOG_LEVEL" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	SessionTTL      time.Duration `koanf:"session_ttl" json:"session_ttl,omitempty" env:"SESSION_TTL"`
	ResetTTL        time.Duration `koanf:"reset_ttl" json:"reset_ttl,omitempty" env:"RESET_TTL"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty" env:"SHUTDOWN_TIMEOUT"`
	Google          GoogleConfig  `koanf:"google" json:"google,omitempty"`
	Mail            MailConfig    `koanf:"mail" json:"mail,omitempty"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		StoreDriver:     DriverPostgres,
		Host:            "0.0.0.0",
		Port:            8000,
		MetricsAddr:     "127.0.0.1:9100",
		LogFormat:       "json",
		LogLevel:        "info",
		SessionTTL:      24 * time.Hour,
		ResetTTL:        time.Hour,
		ShutdownTimeout: 10 * time.Second,
		Mail: MailConfig{
			FromName: "Auth Service",
		},
	}
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
}

// Validate checks the configuration for values the service cannot run with.
// Incomplete Google settings are allowed; the OAuth endpoints report them.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return invalid("database_url", "DATABASE_URL is required for the postgres store")
		}
	case DriverMemory:
	default:
		return invalid("store_driver", "unknown store driver %q", c.StoreDriver)
	}

	if c.Port < 1 || c.Port > 65535 {
		return invalid("port", "port must be between 1 and 65535, got %d", c.Port)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log_format", "log format must be json or text, got %q", c.LogFormat)
	}
	if c.SessionTTL <= 0 {
		return invalid("session_ttl", "session TTL must be positive")
	}
	if c.ResetTTL <= 0 {
		return invalid("reset_ttl", "reset TTL must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return invalid("shutdown_timeout", "shutdown timeout must be positive")
	}
	if c.Mail.SendGridAPIKey != "" && c.Mail.FromAddress == "" {
		return invalid("mail.from_address", "MAIL_FROM_ADDRESS is required when SENDGRID_API_KEY is set")
	}
	return nil
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"database-url":  "database_url",
	"store":         "store_driver",
	"host":          "host",
	"port":          "port",
	"metrics-addr":  "metrics_addr",
	"log-format":    "log_format",
	"log-level":     "log_level",
	"session-ttl":   "session_ttl",
	"reset-ttl":     "reset_ttl",
	"shutdown-wait": "shutdown_timeout",
}

// RegisterFlags adds the configuration flags to fs with defaults from Default.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("database-url", d.DatabaseURL, "PostgreSQL connection URL")
	flags.String("store", d.StoreDriver, "store driver (postgres or memory)")
	flags.String("host", d.Host, "HTTP listen host")
	flags.Int("port", d.Port, "HTTP listen port")
	flags.String("metrics-addr", d.MetricsAddr, "metrics and health listen address (empty disables)")
	flags.String("log-format", d.LogFormat, "log format (json or text)")
	flags.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	flags.Duration("session-ttl", d.SessionTTL, "session token lifetime")
	flags.Duration("reset-ttl", d.ResetTTL, "password reset token lifetime")
	flags.Duration("shutdown-wait", d.ShutdownTimeout, "graceful shutdown timeout")
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// ConfigFile is an optional YAML file. It is validated against the
	// generated JSON Schema before use.
	ConfigFile string

	// DotEnvFile is loaded into the environment if it exists.
	DotEnvFile string

	// Environment replaces the process environment when non-nil.
	Environment map[string]string

	// Flags contributes values only for flags the user actually set.
	Flags *pflag.FlagSet

	// SkipValidation returns the merged config even if Validate fails.
	SkipValidation bool
}

// Load builds a Config from defaults, file, environment and flags, then
// validates it.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.ConfigFile != "" {
		if err := loadFile(opts.ConfigFile, &cfg); err != nil {
			return nil, err
		}
	}

	environ, err := environment(opts)
	if err != nil {
		return nil, err
	}
	envOpts := env.Options{}
	if environ != nil {
		envOpts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if opts.Flags != nil {
		if err := loadFlags(opts.Flags, &cfg); err != nil {
			return nil, err
		}
	}

	if !opts.SkipValidation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	if err := ValidateYAML(data); err != nil {
		return oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return oops.Code("CONFIG_DECODE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// environment returns the variables env should parse, or nil for the
// process environment. A .env file never overrides variables already set.
func environment(opts LoadOptions) (map[string]string, error) {
	if opts.DotEnvFile == "" {
		return opts.Environment, nil
	}

	if opts.Environment == nil {
		err := godotenv.Load(opts.DotEnvFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_DOTENV_FAILED").With("path", opts.DotEnvFile).Wrap(err)
		}
		return nil, nil
	}

	values, err := godotenv.Read(opts.DotEnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Code("CONFIG_DOTENV_FAILED").With("path", opts.DotEnvFile).Wrap(err)
	}
	merged := make(map[string]string, len(values)+len(opts.Environment))
	maps.Copy(merged, values)
	maps.Copy(merged, opts.Environment)
	return merged, nil
}

func loadFlags(flags *pflag.FlagSet, cfg *Config) error {
	k := koanf.New(".")
	provider := posflag.ProviderWithFlag(flags, ".", nil, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return oops.Code("CONFIG_DECODE_FAILED").With("source", "flags").Wrap(err)
	}
	return nil
}

const redacted = "REDACTED"

// Redacted returns the configuration as a nested map with secrets masked,
// suitable for printing.
func (c Config) Redacted() map[string]any {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redacted
	}
	return map[string]any{
		"database_url":     maskURL(c.DatabaseURL),
		"store_driver":     c.StoreDriver,
		"host":             c.Host,
		"port":             c.Port,
		"metrics_addr":     c.MetricsAddr,
		"log_format":       c.LogFormat,
		"log_level":        c.LogLevel,
		"session_ttl":      c.SessionTTL.String(),
		"reset_ttl":        c.ResetTTL.String(),
		"shutdown_timeout": c.ShutdownTimeout.String(),
		"google": map[string]any{
			"client_id":     c.Google.ClientID,
			"client_secret": mask(c.Google.ClientSecret),
			"redirect_uri":  c.Google.RedirectURI,
			"scope":         c.Google.Scope,
		},
		"mail": map[string]any{
			"sendgrid_api_key": mask(c.Mail.SendGridAPIKey),
			"from_address":     c.Mail.FromAddress,
			"from_name":        c.Mail.FromName,
		},
	}
}

// maskURL hides the password of a connection URL.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
