// Package config loads docrevise settings from a TOML file.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/FocuswithJustin/docrevise/core/errors"
	"github.com/FocuswithJustin/docrevise/internal/logging"
)

// Config holds every setting. Zero values are filled from Default.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Undo     UndoConfig     `toml:"undo"`
	API      APIConfig      `toml:"api"`
	Revision RevisionConfig `toml:"revision"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// UndoConfig configures undo persistence. An empty DB keeps the undo slot
// in memory only.
type UndoConfig struct {
	DB string `toml:"db"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// RevisionConfig configures revision batches.
type RevisionConfig struct {
	ChunkSize int `toml:"chunk_size"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Undo:     UndoConfig{DB: "~/.docrevise/undo.db"},
		API:      APIConfig{Port: 8087, AllowedOrigins: []string{}},
		Revision: RevisionConfig{ChunkSize: 3000},
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".docrevise", "config.toml")
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Debug("config file not found, using defaults", "path", path)
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}
	if err := Decode(data, cfg); err != nil {
		return nil, &errors.ParseError{Format: "TOML", Path: path, Message: err.Error(), Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Decode parses TOML data into cfg. Keys absent from data keep their
// current values; unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Encode renders cfg as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.NewValidation("log.level", err.Error())
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return errors.NewValidation("log.format", err.Error())
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return errors.NewValidation("api.port", "must be between 1 and 65535")
	}
	if c.Revision.ChunkSize < 1 {
		return errors.NewValidation("revision.chunk_size", "must be positive")
	}
	return nil
}

// UndoPath returns the undo database path with a leading "~" expanded.
func (c *Config) UndoPath() (string, error) {
	return ExpandHome(c.Undo.DB)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
