package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// on "kb serve" and "kb search" cannot drift.
type Flag struct {
	// Name is the long flag name (e.g. "sqlite").
	Name string

	// Shorthand is the one-letter short flag (e.g. "s"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "storage.sqlite_path").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagStorageProvider = "storage-provider"
	FlagSQLite          = "sqlite"
	FlagLibSQL          = "libsql"
	FlagPostgres        = "postgres"
	FlagAPIListen       = "listen"
	FlagAPITarget       = "api-target"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagEmbeddingCache  = "embedding-cache"
	FlagSearchLimit     = "limit"
	FlagEventsProvider  = "events-provider"
	FlagEventsBrokers   = "events-brokers"
	FlagIngestWorkers   = "workers"
)

// StorageFlags are shared by every command that opens the knowledge base.
var StorageFlags = FlagSet{
	FlagStorageProvider: {Name: "storage-provider", ViperKey: "storage.provider", Description: "Storage engine (sqlite, libsql, postgres, memory)"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database"},
	FlagLibSQL:          {Name: "libsql", ViperKey: "storage.libsql_path", Description: "Path or URL of libSQL database"},
	FlagPostgres:        {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagVectorStoreProv: {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector index (native, qdrant)"},
	FlagVectorStoreTgt:  {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store address"},
	FlagEmbeddingProv:   {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (ollama, none)"},
	FlagEmbeddingTgt:    {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding dimensionality"},
	FlagEmbeddingCache:  {Name: "embedding-cache", ViperKey: "embedding.cache_path", Description: "Directory for the embedding cache"},
	FlagEventsProvider:  {Name: "events-provider", ViperKey: "events.provider", Description: "Statement event publisher (nop, kafka)"},
	FlagEventsBrokers:   {Name: "events-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers"},
}

// StorageFlagKeys lists every key in StorageFlags.
var StorageFlagKeys = []string{
	FlagStorageProvider, FlagSQLite, FlagLibSQL, FlagPostgres,
	FlagVectorStoreProv, FlagVectorStoreTgt,
	FlagEmbeddingProv, FlagEmbeddingTgt, FlagEmbeddingModel, FlagEmbeddingDims, FlagEmbeddingCache,
	FlagEventsProvider, FlagEventsBrokers,
}

// ServeFlags are the server-only flags of "kb serve".
var ServeFlags = FlagSet{
	FlagAPIListen:     {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for API server to listen on"},
	FlagIngestWorkers: {Name: "workers", Shorthand: "w", ViperKey: "ingest.workers", Description: "Async ingestion workers"},
}

// ServeFlagKeys lists every key in ServeFlags.
var ServeFlagKeys = []string{FlagAPIListen, FlagIngestWorkers}

// ClientFlags are used by commands that talk to a running server.
var ClientFlags = FlagSet{
	FlagAPITarget:   {Name: "api-target", ViperKey: "client.api_target", Description: "kb API server URL"},
	FlagSearchLimit: {Name: "limit", Shorthand: "k", ViperKey: "search.limit", Description: "Number of results to return"},
}

// ClientFlagKeys lists every key in ClientFlags.
var ClientFlagKeys = []string{FlagAPITarget, FlagSearchLimit}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFlags registers every flag in keys, choosing the flag type from the
// config key. Values are read back through viper after BindRegisteredFlags.
func AddFlags(cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		def, ok := fs[key]
		if !ok {
			continue
		}
		info, ok := configKeys[def.ViperKey]
		if !ok {
			continue
		}
		if info.numeric {
			var u uint
			AddUintFlag(cmd, fs, key, &u)
			continue
		}
		var s string
		AddStringFlag(cmd, fs, key, &s)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
