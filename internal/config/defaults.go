package config

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8480,
		},
		Database: DatabaseConfig{
			Path:       "badyet.db",
			VectorPath: "badyet-vectors",
		},
		Pipeline: PipelineConfig{
			BaseURL:        "http://localhost:8090",
			TimeoutSeconds: 30,
			EmbedModel:     "text-embedding-3-small",
		},
		Retrieval: RetrievalConfig{
			TopK:          8,
			MinSimilarity: 0.3,
			NearTieWindow: 0.08,
		},
		LogLevel: "info",
	}
}
