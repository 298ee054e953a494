// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/dshills/aline/pkg/types"
)

// Environment variables read by FromEnv
const (
	EnvDBPath           = "ALINE_DB_PATH"
	EnvSeparator        = "ALINE_SEPARATOR"
	EnvReadline         = "ALINE_READLINE"
	EnvSessionCacheSize = "ALINE_SESSION_CACHE_SIZE"
	EnvWorkers          = "ALINE_WORKERS"
)

const (
	// DefaultDBPath is the default location for the line store
	DefaultDBPath = "~/.aline/aline.db"
	// DefaultSessionCacheSize bounds the number of open stream sessions
	DefaultSessionCacheSize = 256
)

// ErrInvalidConfig is returned for malformed configuration values
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the settings shared by the CLI and the MCP server
type Config struct {
	DBPath           string
	Separator        []byte
	Readline         bool
	SessionCacheSize int
	Workers          int
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DBPath:           DefaultDBPath,
		Separator:        []byte(types.DefaultSeparator),
		SessionCacheSize: DefaultSessionCacheSize,
		Workers:          runtime.NumCPU(),
	}
}

// FromEnv returns the default configuration overridden by any ALINE_*
// environment variables that are set
func FromEnv() (*Config, error) {
	cfg := Default()

	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv(EnvSeparator); ok {
		sep, err := ParseSeparator(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvSeparator, err)
		}
		cfg.Separator = sep
	}

	if v := os.Getenv(EnvReadline); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, EnvReadline, v)
		}
		cfg.Readline = b
	}

	var err error
	if cfg.SessionCacheSize, err = positiveInt(EnvSessionCacheSize, cfg.SessionCacheSize); err != nil {
		return nil, err
	}
	if cfg.Workers, err = positiveInt(EnvWorkers, cfg.Workers); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Options returns the engine options described by the config
func (c *Config) Options() types.Options {
	return types.Options{
		Separator: append([]byte(nil), c.Separator...),
		Readline:  c.Readline,
	}
}

// ResolvedDBPath returns DBPath with a leading "~" expanded
func (c *Config) ResolvedDBPath() (string, error) {
	return ExpandPath(c.DBPath)
}

func positiveInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s=%q must be a positive integer", ErrInvalidConfig, key, v)
	}
	return n, nil
}

// ExpandPath replaces a leading "~" with the user's home directory
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ParseSeparator decodes a separator given as text. Go escape sequences
// (\n, \r, \t, \xNN, \uNNNN, octal) are decoded, and \0 is accepted for NUL.
// Everything else is taken literally.
func ParseSeparator(s string) ([]byte, error) {
	var out []byte
	for len(s) > 0 {
		if strings.HasPrefix(s, `\0`) && (len(s) == 2 || s[2] < '0' || s[2] > '7') {
			out = append(out, 0)
			s = s[2:]
			continue
		}

		value, multibyte, tail, err := strconv.UnquoteChar(s, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: bad escape in separator %q", ErrInvalidConfig, s)
		}
		if multibyte {
			out = append(out, string(value)...)
		} else {
			out = append(out, byte(value))
		}
		s = tail
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, types.ErrEmptySeparator)
	}
	return out, nil
}

// FormatSeparator renders a separator the way ParseSeparator reads it
func FormatSeparator(sep []byte) string {
	q := strconv.Quote(string(sep))
	return q[1 : len(q)-1]
}
