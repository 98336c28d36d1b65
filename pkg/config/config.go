package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Defaults.
const (
	DefaultAddress      = "127.0.0.1:8882"
	DefaultDrainTimeout = 30 * time.Second
	DefaultReadTimeout  = 30 * time.Second
	DefaultMaxRequests  = 1000
)

// Duration is a time.Duration written as a Go duration string ("1m30s")
// in configuration files.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the server configuration.
type Config struct {
	// Address is the host:port to listen on. Port 0 picks a free port.
	Address string `json:"address" yaml:"address"`

	LogLevel  string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	LogFormat string `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
	LogFile   string `json:"logFile,omitempty" yaml:"logFile,omitempty"`

	// DrainTimeout bounds graceful shutdown.
	DrainTimeout Duration `json:"drainTimeout,omitempty" yaml:"drainTimeout,omitempty"`
	ReadTimeout  Duration `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout Duration `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`

	// Stubs lists stub file patterns loaded at startup.
	Stubs []string `json:"stubs,omitempty" yaml:"stubs,omitempty"`

	// MaxRequests bounds the recorded request journal.
	MaxRequests int `json:"maxRequests,omitempty" yaml:"maxRequests,omitempty"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      DefaultAddress,
		LogLevel:     "info",
		LogFormat:    "text",
		DrainTimeout: Duration(DefaultDrainTimeout),
		ReadTimeout:  Duration(DefaultReadTimeout),
		MaxRequests:  DefaultMaxRequests,
	}
}

// ValidationError describes an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	host, port, err := net.SplitHostPort(c.Address)
	if err != nil {
		return &ValidationError{Field: "address", Message: err.Error()}
	}
	if host != "" && net.ParseIP(host) == nil && !isHostname(host) {
		return &ValidationError{Field: "address", Message: fmt.Sprintf("bad host %q", host)}
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return &ValidationError{Field: "address", Message: fmt.Sprintf("bad port %q", port)}
	}

	for field, d := range map[string]Duration{
		"drainTimeout": c.DrainTimeout,
		"readTimeout":  c.ReadTimeout,
		"writeTimeout": c.WriteTimeout,
	} {
		if d < 0 {
			return &ValidationError{Field: field, Message: "must not be negative"}
		}
	}

	if c.MaxRequests < 0 {
		return &ValidationError{Field: "maxRequests", Message: "must not be negative"}
	}
	return nil
}

func isHostname(s string) bool {
	if len(s) > 253 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}
