// Package config loads client settings from JMAPC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/roach88/jmapc/internal/transport"
)

// Prefix is prepended to every variable name, e.g. JMAPC_API_URL.
const Prefix = "JMAPC"

// Transport kinds.
const (
	TransportHTTP = "http"
	TransportNATS = "nats"
)

// Config holds client settings.
type Config struct {
	// Transport selects "http" or "nats".
	Transport string `envconfig:"TRANSPORT" default:"http"`

	// HTTP: SessionURL is fetched when APIURL is empty.
	SessionURL string `envconfig:"SESSION_URL"`
	APIURL     string `envconfig:"API_URL"`

	// AccountID defaults to the session's primary tasks account.
	AccountID string `envconfig:"ACCOUNT_ID"`

	// Credentials. Token wins over Username/Password.
	Token    string `envconfig:"TOKEN"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`

	NATSURL     string `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	NATSSubject string `envconfig:"NATS_SUBJECT" default:"jmap.api"`

	// CachePath is a SQLite file; empty disables the cache.
	CachePath string `envconfig:"CACHE_PATH"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"warn"`
}

// Load reads the environment.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &c, nil
}

// Validate checks the settings needed to submit requests.
func (c *Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportHTTP:
		if c.APIURL == "" && c.SessionURL == "" {
			errs = append(errs, errors.New("JMAPC_API_URL or JMAPC_SESSION_URL is required for the http transport"))
		}
	case TransportNATS:
		if c.NATSURL == "" || c.NATSSubject == "" {
			errs = append(errs, errors.New("JMAPC_NATS_URL and JMAPC_NATS_SUBJECT are required for the nats transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("JMAPC_TRANSPORT must be %q or %q, got %q", TransportHTTP, TransportNATS, c.Transport))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("JMAPC_REQUEST_TIMEOUT must be positive"))
	}
	if c.Username != "" && c.Password == "" && c.Token == "" {
		errs = append(errs, errors.New("JMAPC_PASSWORD is required with JMAPC_USERNAME"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Authenticator returns the credentials to send.
func (c *Config) Authenticator() transport.Authenticator {
	switch {
	case c.Token != "":
		return transport.BearerToken(c.Token)
	case c.Username != "":
		return transport.BasicAuth{Username: c.Username, Password: c.Password}
	default:
		return transport.NoAuth{}
	}
}

// Level returns the configured log level, or Warn if it does not parse.
func (c *Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return l
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("JMAPC_LOG_LEVEL: %w", err)
	}
	return l, nil
}
