// Package config resolves kb settings from config.toml, KB_* environment
// variables and command flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/kb/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// CurrentV is the config.toml schema version this build reads and writes.
	CurrentV = 0
)

// ErrNoConfigDir is returned when saving without a resolved .kb/ directory.
var ErrNoConfigDir = errors.New("no .kb directory found: run 'kb init' or pass --config-dir")

// Configer reads and writes the config.toml of one .kb/ directory.
type Configer struct {
	// path is empty when no .kb/ directory could be resolved.
	path string
}

// NewConfiger resolves the .kb/ directory for override (see dotdir.Manager)
// and binds to its config.toml, which need not exist yet.
func NewConfiger(override string) (*Configer, error) {
	dir, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return &Configer{}, nil
	}

	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return &Configer{path: path}, nil
}

// GetTarget returns the config.toml path, or "" when there is none.
func (c *Configer) GetTarget() string {
	return c.path
}

// ValidConfigKeys returns every supported key in config.toml section order.
func ValidConfigKeys() []string {
	return slices.Clone(orderedKeys)
}

// IsValidConfigKey reports whether key names a supported setting.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func lookupKey(key string) (configKeyInfo, error) {
	info, ok := configKeys[key]
	if !ok {
		return configKeyInfo{}, fmt.Errorf("unknown config key: %q", key)
	}
	return info, nil
}

// LoadConfig reads config.toml and fills every unset field from
// NewDefaultConfig. A missing file yields the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.path == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewDefaultConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}
	fillDefaults(cfg, NewDefaultConfig())
	return cfg, nil
}

func fillDefaults(cfg, defaults *Config) {
	for _, key := range orderedKeys {
		info := configKeys[key]
		if info.get(cfg) != "" {
			continue
		}
		if v := info.get(defaults); v != "" {
			_ = info.set(cfg, v)
		}
	}
}

// SaveConfig writes cfg to config.toml, replacing the file atomically.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if c.path == "" {
		return ErrNoConfigDir
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), configFile+".*")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetConfigValue parses value into key and saves the result.
func (c *Configer) SetConfigValue(key, value string) error {
	info, err := lookupKey(key)
	if err != nil {
		return err
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := info.set(cfg, value); err != nil {
		return err
	}
	return c.SaveConfig(cfg)
}

// GetConfigValue returns the effective file value of key, defaults included.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, err := lookupKey(key)
	if err != nil {
		return "", err
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return info.get(cfg), nil
}

const localPostgresDSN = "postgres://kb:kb@localhost:5432/kb?sslmode=disable"

// presets are named deployment shapes for "kb init --preset".
var presets = []struct {
	name  string
	apply func(cfg *Config)
}{
	// sqlite + ollama embeddings
	{"local", func(*Config) {}},

	// sqlite, lexical only
	{"offline", func(cfg *Config) {
		cfg.Embedding = EmbeddingConfig{Provider: "none", Dimensions: defaultEmbeddingDimensions}
	}},

	// postgres + pgvector + ollama embeddings
	{"postgres", func(cfg *Config) {
		cfg.Storage = StorageConfig{Provider: "postgres", PostgresDSN: localPostgresDSN}
	}},

	// postgres + qdrant + kafka events
	{"cluster", func(cfg *Config) {
		cfg.Storage = StorageConfig{Provider: "postgres", PostgresDSN: localPostgresDSN}
		cfg.VectorStore = VectorStoreConfig{Provider: "qdrant", Target: "localhost:6334", Collection: defaultVectorCollection}
		cfg.Events = EventsConfig{Provider: "kafka", Brokers: []string{"localhost:9092"}, Topic: defaultEventsTopic}
	}},
}

// PresetConfig returns the defaults adjusted for the named preset. Names
// are case-insensitive.
func PresetConfig(name string) (*Config, error) {
	for _, p := range presets {
		if strings.EqualFold(p.name, name) {
			cfg := NewDefaultConfig()
			p.apply(cfg)
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
}

// ValidPresetNames returns the recognized preset names.
func ValidPresetNames() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.name
	}
	return names
}

// ParseConfigTOML decodes config.toml content. An explicit version other
// than CurrentV is rejected.
func ParseConfigTOML(data []byte) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}
	if cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	return &cfg, nil
}
