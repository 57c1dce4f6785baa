package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Embedding protocols. ProtocolMock embeds locally by hashing words and is
// meant for offline use and tests.
const (
	ProtocolEmbed  = "embed"
	ProtocolKServe = "kserve"
	ProtocolMock   = "mock"
)

// Config holds all configuration for the document RAG service.
type Config struct {
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Store      StoreConfig      `yaml:"store"`
	Index      IndexConfig      `yaml:"index"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Generation GenerationConfig `yaml:"generation"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// EmbeddingConfig holds embedding service configuration.
type EmbeddingConfig struct {
	ServiceURL        string  `yaml:"service_url"`
	Protocol          string  `yaml:"protocol"` // "embed", "kserve" or "mock"
	Model             string  `yaml:"model"`
	Dimension         int     `yaml:"dimension"`
	BatchSize         int     `yaml:"batch_size"`
	Workers           int     `yaml:"workers"`
	BatchTimeoutSecs  int     `yaml:"batch_timeout_secs"`
	QueryTimeoutSecs  int     `yaml:"query_timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	CacheSize         int     `yaml:"cache_size"`
	CacheTTLSecs      int     `yaml:"cache_ttl_secs"`
}

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	URI           string `yaml:"uri"`
	Collection    string `yaml:"collection"`
	VectorField   string `yaml:"vector_field"`
	Metric        string `yaml:"metric"`
	AutoID        bool   `yaml:"auto_id"`
	MaxTextLength int    `yaml:"max_text_length"`
	TokenEnv      string `yaml:"token_env"` // Environment variable for the store token
	TimeoutSecs   int    `yaml:"timeout_secs"`
}

// IndexConfig holds indexing configuration.
type IndexConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	UploadsDir   string   `yaml:"uploads_dir"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK         int `yaml:"top_k"`
	TopDocs      int `yaml:"top_docs"`
	ChunksPerDoc int `yaml:"chunks_per_doc"`
	Oversample   int `yaml:"oversample"`
}

// GenerationConfig holds chat model configuration.
type GenerationConfig struct {
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	TimeoutSecs     int     `yaml:"timeout_secs"`
	MaxContextChars int     `yaml:"max_context_chars"`
	SnippetWidth    int     `yaml:"snippet_width"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	BodyLimitMB      int    `yaml:"body_limit_mb"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			ServiceURL:       "http://localhost:8000",
			Protocol:         ProtocolEmbed,
			Model:            "jinaai/jina-embeddings-v3",
			Dimension:        1024,
			BatchSize:        16,
			Workers:          1,
			BatchTimeoutSecs: 120,
			QueryTimeoutSecs: 15,
			CacheSize:        256,
			CacheTTLSecs:     600,
		},
		Store: StoreConfig{
			URI:           filepath.Join("db", "vectors.db"),
			Collection:    "pdf_embeddings",
			VectorField:   "vector",
			Metric:        "IP",
			AutoID:        true,
			MaxTextLength: 4096,
			TokenEnv:      "VECTOR_STORE_TOKEN",
			TimeoutSecs:   30,
		},
		Index: IndexConfig{
			ChunkSize:    700,
			ChunkOverlap: 120,
			Includes:     []string{"**/*.pdf", "**/*.txt", "**/*.docx"},
			Excludes:     []string{"**/.git/**", "**/.rag/**", "**/node_modules/**"},
			UploadsDir:   "uploads",
		},
		Retrieve: RetrieveConfig{
			TopK:         5,
			TopDocs:      5,
			ChunksPerDoc: 3,
			Oversample:   80,
		},
		Generation: GenerationConfig{
			BaseURL:         "https://api.openai.com/v1",
			Model:           "gpt-4o-mini",
			APIKeyEnv:       "GENERATION_API_KEY",
			Temperature:     0.3,
			MaxTokens:       512,
			TimeoutSecs:     60,
			MaxContextChars: 8000,
			SnippetWidth:    900,
		},
		Server: ServerConfig{
			Addr:             ":8080",
			BodyLimitMB:      50,
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for rag.yaml).
// A .env file in the directory is loaded into the environment first.
func LoadFromDir(dir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	// Try rag.yaml in the directory
	path := filepath.Join(dir, "rag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try .rag/config.yaml
	path = filepath.Join(dir, ".rag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv() {
	c.Embedding.Dimension = envInt("DIMENSION", c.Embedding.Dimension)
	c.Embedding.ServiceURL = envString("SERVICE_URL", c.Embedding.ServiceURL)
	c.Embedding.Protocol = envString("EMBEDDING_PROTOCOL", c.Embedding.Protocol)
	c.Embedding.Model = envString("EMBEDDING_MODEL_NAME", c.Embedding.Model)

	c.Store.URI = envString("DB_URI", c.Store.URI)
	c.Store.Collection = envString("COLLECTION_NAME", c.Store.Collection)
	c.Store.VectorField = envString("VECTOR_FIELD", c.Store.VectorField)
	c.Store.Metric = envString("SEARCH_METRIC", c.Store.Metric)

	c.Retrieve.TopK = envInt("TOP_K_DEFAULT", c.Retrieve.TopK)
	c.Index.UploadsDir = envString("UPLOADS_DIR", c.Index.UploadsDir)

	c.Generation.BaseURL = envString("GENERATION_API_URL", c.Generation.BaseURL)
	c.Generation.Model = envString("GENERATION_MODEL", c.Generation.Model)

	c.Server.Addr = envString("LISTEN_ADDR", c.Server.Addr)
	c.Logging.Level = envString("LOG_LEVEL", c.Logging.Level)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	switch c.Embedding.Protocol {
	case ProtocolEmbed, ProtocolKServe, ProtocolMock:
	default:
		return fmt.Errorf("unsupported embedding protocol: %s", c.Embedding.Protocol)
	}
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("index.chunk_size must be positive, got %d", c.Index.ChunkSize)
	}
	if c.Index.ChunkOverlap < 0 {
		return fmt.Errorf("index.chunk_overlap must not be negative, got %d", c.Index.ChunkOverlap)
	}
	switch strings.ToUpper(c.Store.Metric) {
	case "IP", "COSINE":
		c.Store.Metric = strings.ToUpper(c.Store.Metric)
	default:
		return fmt.Errorf("unsupported search metric: %s", c.Store.Metric)
	}
	if c.Store.Collection == "" {
		return fmt.Errorf("store.collection must not be empty")
	}
	if c.Store.VectorField == "" {
		return fmt.Errorf("store.vector_field must not be empty")
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Seconds converts a config value in seconds to a duration, falling back to def when unset.
func Seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

// EnsureDir ensures the directory that will hold path exists.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}
