package config

// Config is the top-level badyet configuration, corresponding to .badyet.yml.
type Config struct {
	Server    ServerConfig    `yaml:"server" koanf:"server"`
	Database  DatabaseConfig  `yaml:"database" koanf:"database"`
	Pipeline  PipelineConfig  `yaml:"pipeline" koanf:"pipeline"`
	Retrieval RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	LogLevel  string          `yaml:"log_level" koanf:"log_level"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host" koanf:"host"`
	Port int    `yaml:"port" koanf:"port"`
}

// DatabaseConfig holds the SQLite and vector store paths.
type DatabaseConfig struct {
	Path       string `yaml:"path" koanf:"path"`
	VectorPath string `yaml:"vector_path" koanf:"vector_path"`
}

// PipelineConfig holds the retrieval pipeline service settings.
type PipelineConfig struct {
	BaseURL        string `yaml:"base_url" koanf:"base_url"`
	Token          string `yaml:"token" koanf:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds" koanf:"timeout_seconds"`
	EmbedModel     string `yaml:"embed_model" koanf:"embed_model"`
}

// RetrievalConfig tunes similarity search and clarification behavior.
type RetrievalConfig struct {
	TopK          int     `yaml:"top_k" koanf:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity" koanf:"min_similarity"`
	NearTieWindow float64 `yaml:"near_tie_window" koanf:"near_tie_window"`
}
