// Package config loads the server's startup configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/OkutaniDaichi0106/h3mtls/h3mtls"
	"github.com/OkutaniDaichi0106/h3mtls/quic"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPassword protects the stores of the default layout.
const DefaultPassword = "password"

// StoreConfig names a key store or trust store.
type StoreConfig struct {
	Path     string `yaml:"path"`
	Password string `yaml:"password"`
	KeyPath  string `yaml:"key_path"`
}

func (s StoreConfig) store() h3mtls.StoreConfig {
	return h3mtls.StoreConfig{Path: s.Path, Password: s.Password, KeyPath: s.KeyPath}
}

type QUICConfig struct {
	MaxIdleTimeout       time.Duration `yaml:"max_idle_timeout" validate:"gte=0"`
	HandshakeIdleTimeout time.Duration `yaml:"handshake_idle_timeout" validate:"gte=0"`
	KeepAlivePeriod      time.Duration `yaml:"keep_alive_period" validate:"gte=0"`
}

type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// Format is one of: json, text.
	Format string `yaml:"format" validate:"oneof=json text"`
}

type Config struct {
	Addr        string `yaml:"addr" validate:"required,hostname_port"`
	Environment string `yaml:"environment" validate:"omitempty,oneof=development test production"`

	KeyStore   StoreConfig `yaml:"key_store"`
	TrustStore StoreConfig `yaml:"trust_store"`

	VerifyPeer bool `yaml:"verify_peer"`
	TrustAll   bool `yaml:"trust_all"`

	SNIHostCheck      bool `yaml:"sni_host_check"`
	SendServerVersion bool `yaml:"send_server_version"`

	// MetricsAddr serves Prometheus metrics over plain HTTP when set.
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`

	QUIC    QUICConfig    `yaml:"quic"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Addr:        h3mtls.DefaultAddr,
		Environment: "development",
		KeyStore: StoreConfig{
			Path:     "certs/localhost/localhost.p12",
			Password: DefaultPassword,
		},
		TrustStore: StoreConfig{
			Path:     "certs/trustStore.p12",
			Password: DefaultPassword,
		},
		VerifyPeer:      true,
		ShutdownTimeout: 5 * time.Second,
		QUIC: QUICConfig{
			MaxIdleTimeout:       30 * time.Second,
			HandshakeIdleTimeout: 5 * time.Second,
			KeepAlivePeriod:      10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &h3mtls.ConfigurationError{Op: "load config", Path: path, Err: err}
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, &h3mtls.ConfigurationError{Op: "parse config", Path: path, Err: err}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field formats and the relations between the security toggles.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", e.Namespace(), e.Tag()))
			}
			err = errors.New(strings.Join(msgs, "; "))
		}
		return &h3mtls.ConfigurationError{Op: "validate config", Err: err}
	}

	if c.KeyStore.Path == "" {
		return &h3mtls.ConfigurationError{Op: "validate config", Err: errors.New("key_store.path is required")}
	}
	if c.VerifyPeer && !c.TrustAll && c.TrustStore.Path == "" {
		return &h3mtls.ConfigurationError{Op: "validate config", Err: errors.New("trust_store.path is required when verify_peer is set")}
	}

	policy := c.Policy()
	if err := policy.Validate(); err != nil {
		return err
	}
	return policy.CheckEnvironment(c.Environment)
}

// Policy returns the verification policy applied to clients.
// Endpoint identification has no server-side meaning and is never set.
func (c *Config) Policy() h3mtls.Policy {
	return h3mtls.Policy{
		VerifyPeer:   c.VerifyPeer,
		TrustAll:     c.TrustAll,
		SNIHostCheck: c.SNIHostCheck,
	}
}

// QUICConfig returns the QUIC transport configuration.
func (c *Config) QUICConfig() *quic.Config {
	conf := quic.DefaultConfig()
	if c.QUIC.MaxIdleTimeout > 0 {
		conf.MaxIdleTimeout = c.QUIC.MaxIdleTimeout
	}
	if c.QUIC.HandshakeIdleTimeout > 0 {
		conf.HandshakeIdleTimeout = c.QUIC.HandshakeIdleTimeout
	}
	if c.QUIC.KeepAlivePeriod > 0 {
		conf.KeepAlivePeriod = c.QUIC.KeepAlivePeriod
	}
	return conf
}

// ServerOptions maps the configuration onto the options of h3mtls.NewServer.
func (c *Config) ServerOptions(handler http.Handler, logger *slog.Logger) h3mtls.ServerOptions {
	var trustStore h3mtls.StoreConfig
	if c.TrustStore.Path != "" {
		trustStore = c.TrustStore.store()
	}

	return h3mtls.ServerOptions{
		Addr:              c.Addr,
		KeyStore:          c.KeyStore.store(),
		TrustStore:        trustStore,
		Policy:            c.Policy(),
		Environment:       c.Environment,
		SendServerVersion: c.SendServerVersion,
		ShutdownTimeout:   c.ShutdownTimeout,
		QUICConfig:        c.QUICConfig(),
		Handler:           handler,
		Logger:            logger,
	}
}

// NewLogger builds the process logger writing to w.
func (l LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(l.Format)) {
	case "text", "":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("config: unknown log format %q", l.Format)
	}

	return slog.New(h), nil
}

// ParseLevel parses one of debug, info, warn or error. An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", s)
	}
}
