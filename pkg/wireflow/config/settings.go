package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Settings configures a wireflow runtime: where nodes are saved, how many
// executor workers run, and which observability features are on.
type Settings struct {
	StrictHints bool             `yaml:"strict_hints" json:"strict_hints"`
	LogLevel    string           `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	Metrics     bool             `yaml:"metrics" json:"metrics"`
	Tracing     bool             `yaml:"tracing" json:"tracing"`
	Executor    ExecutorSettings `yaml:"executor" json:"executor"`
	Storage     StorageSettings  `yaml:"storage" json:"storage"`
}

// ExecutorSettings configures the default executor pool.
type ExecutorSettings struct {
	Workers int `yaml:"workers" json:"workers" validate:"gte=0"`
}

// StorageSettings selects and configures a storage backend.
type StorageSettings struct {
	Backend   string `yaml:"backend" json:"backend" validate:"oneof=memory sqlite redis"`
	Path      string `yaml:"path" json:"path" validate:"required_if=Backend sqlite"`
	RedisAddr string `yaml:"redis_addr" json:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB   int    `yaml:"redis_db" json:"redis_db" validate:"gte=0"`
	Prefix    string `yaml:"prefix" json:"prefix"`
}

// DefaultSettings returns settings for an in-memory, strictly hinted runtime.
func DefaultSettings() Settings {
	return Settings{
		StrictHints: true,
		LogLevel:    "info",
		Storage: StorageSettings{
			Backend: "memory",
			Prefix:  "wireflow",
		},
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks field constraints.
func (s Settings) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// LoadSettings reads settings from a YAML or JSON file. Fields missing from
// the file keep their defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if err := decodeFile(path, &s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ParseSettings decodes YAML settings over the defaults.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
