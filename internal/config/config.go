// Package config handles loading and validating application configuration.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. A .env file in the working directory is read first so local
// setups can keep their overrides there. Environment variables use the
// BOTGATE_ prefix (e.g., BOTGATE_PORT).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/menezmethod/botgate/internal/platform"
)

// defaultPlatformTimeout applies to platforms configured without a timeout.
const defaultPlatformTimeout = 10 * time.Second

// Config holds the complete application configuration.
type Config struct {
	Server        Server        `yaml:"server"`
	Secret        Secret        `yaml:"secret"`
	Body          Body          `yaml:"body"`
	Platforms     []Platform    `yaml:"platforms"`
	Log           Log           `yaml:"log"`
	Observability Observability `yaml:"observability"`
}

// Server configures the HTTP listener.
type Server struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Secret configures the shared-secret gate. Required false leaves
// enforcement to routes guarded individually.
type Secret struct {
	File     string `yaml:"file"`
	Required bool   `yaml:"required"`
}

// Body configures request body negotiation.
type Body struct {
	MaxBytes       int64 `yaml:"max_bytes"`
	FormURLEncoded bool  `yaml:"form_urlencoded"`
}

// Platform configures the webhook connector of one chat platform.
// Platforms without an entry only log delivered messages.
type Platform struct {
	Name       string        `yaml:"name"`
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Log configures structured logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// CloudFormat is "", "gcp" (severity field) or "gcp_with_resource"
	// (severity plus a monitored-resource block).
	CloudFormat string `yaml:"cloud_format"`
}

// Observability configures OpenTelemetry tracing.
type Observability struct {
	OTelEnabled     bool   `yaml:"otel_enabled"`
	OTelEndpoint    string `yaml:"otel_endpoint"`
	OTelServiceName string `yaml:"otel_service_name"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Server: Server{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Secret: Secret{
			File:     "./secret.txt",
			Required: true,
		},
		Body: Body{
			MaxBytes:       1 << 20,
			FormURLEncoded: true,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Observability: Observability{
			OTelServiceName: "botgate",
		},
	}
}

// Load reads configuration from the given YAML file path, then applies
// environment variable overrides. If path is empty, only defaults and
// environment variables are used.
func Load(path string) (Config, error) {
	cfg := Defaults()

	// Missing .env is the common case; variables already set win.
	_ = godotenv.Load(".env")

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid environment: %w", err)
	}

	if err := validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides reads BOTGATE_* environment variables and overrides
// the corresponding config values. Malformed values are reported together.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	str := func(name string, dst *string, lower bool) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			if lower {
				v = strings.ToLower(v)
			}
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}

	str("BOTGATE_HOST", &cfg.Server.Host, false)
	if v := os.Getenv("BOTGATE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BOTGATE_PORT: %w", err))
		} else {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BOTGATE_READ_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BOTGATE_READ_TIMEOUT: %w", err))
		} else {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("BOTGATE_WRITE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BOTGATE_WRITE_TIMEOUT: %w", err))
		} else {
			cfg.Server.WriteTimeout = d
		}
	}

	str("BOTGATE_SECRET_FILE", &cfg.Secret.File, false)
	boolean("BOTGATE_SECRET_REQUIRED", &cfg.Secret.Required)

	if v := os.Getenv("BOTGATE_BODY_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("BOTGATE_BODY_MAX_BYTES: %w", err))
		} else {
			cfg.Body.MaxBytes = n
		}
	}
	boolean("BOTGATE_BODY_FORM_URLENCODED", &cfg.Body.FormURLEncoded)

	// BOTGATE_<PLATFORM>_WEBHOOK_URL, e.g. BOTGATE_SLACK_WEBHOOK_URL.
	for _, name := range platform.Supported {
		v := strings.TrimSpace(os.Getenv("BOTGATE_" + strings.ToUpper(name) + "_WEBHOOK_URL"))
		if v == "" {
			continue
		}
		cfg.setWebhook(name, v)
	}

	str("BOTGATE_LOG_LEVEL", &cfg.Log.Level, true)
	str("BOTGATE_LOG_FORMAT", &cfg.Log.Format, true)
	str("BOTGATE_LOG_CLOUD_FORMAT", &cfg.Log.CloudFormat, true)

	boolean("BOTGATE_OTEL_ENABLED", &cfg.Observability.OTelEnabled)
	str("BOTGATE_OTEL_ENDPOINT", &cfg.Observability.OTelEndpoint, false)
	str("BOTGATE_OTEL_SERVICE_NAME", &cfg.Observability.OTelServiceName, false)

	return errors.Join(errs...)
}

func (cfg *Config) setWebhook(name, webhookURL string) {
	for i := range cfg.Platforms {
		if cfg.Platforms[i].Name == name {
			cfg.Platforms[i].WebhookURL = webhookURL
			return
		}
	}
	cfg.Platforms = append(cfg.Platforms, Platform{Name: name, WebhookURL: webhookURL})
}

// validate checks that the configuration is internally consistent.
func validate(cfg Config) error {
	var errs []error

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, errors.New("server.read_timeout must not be negative"))
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, errors.New("server.write_timeout must not be negative"))
	}
	if cfg.Body.MaxBytes < 0 {
		errs = append(errs, fmt.Errorf("body.max_bytes must not be negative, got %d", cfg.Body.MaxBytes))
	}

	seen := make(map[string]bool, len(cfg.Platforms))
	for i, p := range cfg.Platforms {
		if !platform.IsSupported(p.Name) {
			errs = append(errs, fmt.Errorf("platforms[%d].name must be one of %s; got %q", i, strings.Join(platform.Supported, ", "), p.Name))
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("platforms[%d].name %q is configured twice", i, p.Name))
		}
		seen[p.Name] = true
		if u, err := url.Parse(p.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("platforms[%d].webhook_url must be an http(s) URL; got %q", i, p.WebhookURL))
		}
		if p.Timeout < 0 {
			errs = append(errs, fmt.Errorf("platforms[%d].timeout must not be negative", i))
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", cfg.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Log.Format] {
		errs = append(errs, fmt.Errorf("log.format must be json or text; got %q", cfg.Log.Format))
	}

	validCloud := map[string]bool{"": true, "gcp": true, "gcp_with_resource": true}
	if !validCloud[cfg.Log.CloudFormat] {
		errs = append(errs, fmt.Errorf("log.cloud_format must be empty, gcp or gcp_with_resource; got %q", cfg.Log.CloudFormat))
	}

	if cfg.Observability.OTelEnabled {
		if cfg.Observability.OTelEndpoint == "" {
			errs = append(errs, errors.New("observability.otel_endpoint is required when otel_enabled is true"))
		}
		if cfg.Observability.OTelServiceName == "" {
			errs = append(errs, errors.New("observability.otel_service_name is required when otel_enabled is true"))
		}
	}

	return errors.Join(errs...)
}

// TimeoutOrDefault returns the configured timeout, or 10s when unset.
func (p Platform) TimeoutOrDefault() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return defaultPlatformTimeout
}

// Addr returns the listen address as "host:port".
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
