package config

const (
	defaultStorageProvider = "sqlite"

	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"

	defaultVectorProvider   = "native"
	defaultVectorCollection = "kb_chunks"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultSearchLimit      = 10
	defaultSearchRRFK       = 60
	defaultSearchOversample = 2

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "kb.statements"

	defaultIngestWorkers        = 4
	defaultIngestQueueSize      = 256
	defaultIngestMaxChunkTokens = 256
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Search: SearchConfig{
			Limit:      defaultSearchLimit,
			RRFK:       defaultSearchRRFK,
			Oversample: defaultSearchOversample,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Ingest: IngestConfig{
			Workers:        defaultIngestWorkers,
			QueueSize:      defaultIngestQueueSize,
			MaxChunkTokens: defaultIngestMaxChunkTokens,
		},
	}
}
