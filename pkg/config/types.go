package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent kb configuration stored as config.toml
// in the .kb/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Search      SearchConfig      `toml:"search"`
	Events      EventsConfig      `toml:"events"`
	Ingest      IngestConfig      `toml:"ingest"`
}

// StorageConfig selects the statement/chunk store. Provider is one of
// sqlite, libsql, postgres or memory.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	LibSQLPath  string `toml:"libsql_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running
// kb server (e.g. kb search --remote). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// VectorStoreConfig selects where chunk embeddings are searched. "native"
// uses the storage engine's own vector index.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	CachePath  string `toml:"cache_path,omitempty"`
}

// SearchConfig holds hybrid search tuning.
type SearchConfig struct {
	Limit      uint `toml:"limit,omitempty"`
	RRFK       uint `toml:"rrf_k,omitempty"`
	Oversample uint `toml:"oversample,omitempty"`
}

// EventsConfig selects the statement event publisher.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// IngestConfig sizes the ingestion pipeline.
type IngestConfig struct {
	Workers        uint `toml:"workers,omitempty"`
	QueueSize      uint `toml:"queue_size,omitempty"`
	MaxChunkTokens uint `toml:"max_chunk_tokens,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get     func(c *Config) string
	set     func(c *Config, v string) error
	numeric bool
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		numeric: true,
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// listKey stores a comma separated value as a list.
func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error {
			var out []string
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			*field(c) = out
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider":        stringKey(func(c *Config) *string { return &c.Storage.Provider }),
	"storage.sqlite_path":     stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.libsql_path":     stringKey(func(c *Config) *string { return &c.Storage.LibSQLPath }),
	"storage.postgres_dsn":    stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"api.listen":              stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target":       stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),
	"embedding.provider":      stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":        stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":         stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions":    uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.cache_path":    stringKey(func(c *Config) *string { return &c.Embedding.CachePath }),
	"search.limit":            uintKey("search.limit", func(c *Config) *uint { return &c.Search.Limit }),
	"search.rrf_k":            uintKey("search.rrf_k", func(c *Config) *uint { return &c.Search.RRFK }),
	"search.oversample":       uintKey("search.oversample", func(c *Config) *uint { return &c.Search.Oversample }),
	"events.provider":         stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":          listKey(func(c *Config) *[]string { return &c.Events.Brokers }),
	"events.topic":            stringKey(func(c *Config) *string { return &c.Events.Topic }),
	"ingest.workers":          uintKey("ingest.workers", func(c *Config) *uint { return &c.Ingest.Workers }),
	"ingest.queue_size":       uintKey("ingest.queue_size", func(c *Config) *uint { return &c.Ingest.QueueSize }),
	"ingest.max_chunk_tokens": uintKey("ingest.max_chunk_tokens", func(c *Config) *uint { return &c.Ingest.MaxChunkTokens }),
}

// orderedKeys matches the TOML section layout.
var orderedKeys = []string{
	"storage.provider",
	"storage.sqlite_path",
	"storage.libsql_path",
	"storage.postgres_dsn",
	"api.listen",
	"client.api_target",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.collection",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.cache_path",
	"search.limit",
	"search.rrf_k",
	"search.oversample",
	"events.provider",
	"events.brokers",
	"events.topic",
	"ingest.workers",
	"ingest.queue_size",
	"ingest.max_chunk_tokens",
}

// Value returns the string form of key in c.
func (c *Config) Value(key string) (string, error) {
	info, err := lookupKey(key)
	if err != nil {
		return "", err
	}
	return info.get(c), nil
}
