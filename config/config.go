// Package config defines the service configuration and its defaults.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration for the QA server.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Gemini        GeminiConfig        `koanf:"gemini"`
	Embedding     EmbeddingConfig     `koanf:"embedding"`
	VectorStore   VectorStoreConfig   `koanf:"vectorstore"`
	Retrieval     RetrievalConfig     `koanf:"retrieval"`
	Conversation  ConversationConfig  `koanf:"conversation"`
	Answer        AnswerConfig        `koanf:"answer"`
	Ingest        IngestConfig        `koanf:"ingest"`
	Web           WebConfig           `koanf:"web"`
	Entertainment EntertainmentConfig `koanf:"entertainment"`
	Registry      RegistryConfig      `koanf:"registry"`
	Logging       LoggingConfig       `koanf:"logging"`
	PDF           PDFConfig           `koanf:"pdf"`
}

type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	UploadDir    string `koanf:"upload_dir"`
	MaxFiles     int    `koanf:"max_files"`
	MaxUploadMB  int    `koanf:"max_upload_mb"`
	WatchUploads bool   `koanf:"watch_uploads"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type GeminiConfig struct {
	APIKey          Secret  `koanf:"api_key"`
	Model           string  `koanf:"model"`
	RelevanceModel  string  `koanf:"relevance_model"`
	Temperature     float32 `koanf:"temperature"`
	TopP            float32 `koanf:"top_p"`
	TopK            float32 `koanf:"top_k"`
	MaxOutputTokens int32   `koanf:"max_output_tokens"`
}

type EmbeddingConfig struct {
	// Provider is one of "ollama", "gemini" or "fastembed".
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	Dimension int    `koanf:"dimension"`
	CacheSize int    `koanf:"cache_size"`
	CacheDir  string `koanf:"cache_dir"`
}

type VectorStoreConfig struct {
	// Provider is one of "memory", "qdrant" or "chroma".
	Provider       string `koanf:"provider"`
	DocsCollection string `koanf:"docs_collection"`
	WebCollection  string `koanf:"web_collection"`
	QdrantHost     string `koanf:"qdrant_host"`
	QdrantPort     int    `koanf:"qdrant_port"`
	QdrantAPIKey   Secret `koanf:"qdrant_api_key"`
	QdrantTLS      bool   `koanf:"qdrant_tls"`
	ChromaURL      string `koanf:"chroma_url"`
	// MemoryPath persists the in-process store when set.
	MemoryPath string `koanf:"memory_path"`
}

type RetrievalConfig struct {
	TopK         int `koanf:"top_k"`
	MaxSources   int `koanf:"max_sources"`
	ContextChars int `koanf:"context_chars"`
}

type ConversationConfig struct {
	MaxTurns     int `koanf:"max_turns"`
	HistoryTurns int `koanf:"history_turns"`
}

type AnswerConfig struct {
	DefinitionChars    int `koanf:"definition_chars"`
	AboutChars         int `koanf:"about_chars"`
	DefaultChars       int `koanf:"default_chars"`
	EntertainmentChars int `koanf:"entertainment_chars"`
	OverflowChars      int `koanf:"overflow_chars"`
}

type IngestConfig struct {
	ChunkSize     int    `koanf:"chunk_size"`
	ChunkOverlap  int    `koanf:"chunk_overlap"`
	RelevanceGate bool   `koanf:"relevance_gate"`
	Domain        string `koanf:"domain"`
}

type WebConfig struct {
	UserAgent string        `koanf:"user_agent"`
	Timeout   time.Duration `koanf:"timeout"`
	MaxBytes  int64         `koanf:"max_bytes"`
}

type EntertainmentConfig struct {
	Enabled    bool          `koanf:"enabled"`
	OMDbAPIKey Secret        `koanf:"omdb_api_key"`
	TMDbAPIKey Secret        `koanf:"tmdb_api_key"`
	Budget     time.Duration `koanf:"budget"`
	CacheSize  int           `koanf:"cache_size"`
}

type RegistryConfig struct {
	Path string `koanf:"path"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type PDFConfig struct {
	LicenseKey Secret `koanf:"license_key"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// applyDefaults fills every zero value with its production default.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploaded_files"
	}
	if cfg.Server.MaxFiles == 0 {
		cfg.Server.MaxFiles = 3
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}

	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-2.0-flash"
	}
	if cfg.Gemini.RelevanceModel == "" {
		cfg.Gemini.RelevanceModel = cfg.Gemini.Model
	}
	if cfg.Gemini.Temperature == 0 {
		cfg.Gemini.Temperature = 0.7
	}
	if cfg.Gemini.TopP == 0 {
		cfg.Gemini.TopP = 0.8
	}
	if cfg.Gemini.TopK == 0 {
		cfg.Gemini.TopK = 40
	}
	if cfg.Gemini.MaxOutputTokens == 0 {
		cfg.Gemini.MaxOutputTokens = 1024
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case "gemini":
			cfg.Embedding.Model = "text-embedding-004"
		case "fastembed":
			cfg.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
		default:
			cfg.Embedding.Model = "all-minilm"
		}
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "memory"
	}
	if cfg.VectorStore.DocsCollection == "" {
		cfg.VectorStore.DocsCollection = "documents"
	}
	if cfg.VectorStore.WebCollection == "" {
		cfg.VectorStore.WebCollection = "web_pages"
	}
	if cfg.VectorStore.QdrantHost == "" {
		cfg.VectorStore.QdrantHost = "localhost"
	}
	if cfg.VectorStore.QdrantPort == 0 {
		cfg.VectorStore.QdrantPort = 6334
	}
	if cfg.VectorStore.ChromaURL == "" {
		cfg.VectorStore.ChromaURL = "http://localhost:8000"
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 20
	}
	if cfg.Retrieval.MaxSources == 0 {
		cfg.Retrieval.MaxSources = 3
	}
	if cfg.Retrieval.ContextChars == 0 {
		cfg.Retrieval.ContextChars = 1000
	}

	if cfg.Conversation.MaxTurns == 0 {
		cfg.Conversation.MaxTurns = 5
	}
	if cfg.Conversation.HistoryTurns == 0 {
		cfg.Conversation.HistoryTurns = 2
	}

	if cfg.Answer.DefinitionChars == 0 {
		cfg.Answer.DefinitionChars = 380
	}
	if cfg.Answer.AboutChars == 0 {
		cfg.Answer.AboutChars = 700
	}
	if cfg.Answer.DefaultChars == 0 {
		cfg.Answer.DefaultChars = 1800
	}
	if cfg.Answer.EntertainmentChars == 0 {
		cfg.Answer.EntertainmentChars = 2000
	}
	if cfg.Answer.OverflowChars == 0 {
		cfg.Answer.OverflowChars = 200
	}

	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.Domain == "" {
		cfg.Ingest.Domain = "healthcare"
	}

	if cfg.Web.UserAgent == "" {
		cfg.Web.UserAgent = defaultUserAgent
	}
	if cfg.Web.Timeout == 0 {
		cfg.Web.Timeout = 15 * time.Second
	}
	if cfg.Web.MaxBytes == 0 {
		cfg.Web.MaxBytes = 200_000
	}

	if cfg.Entertainment.Budget == 0 {
		cfg.Entertainment.Budget = 8 * time.Second
	}
	if cfg.Entertainment.CacheSize == 0 {
		cfg.Entertainment.CacheSize = 64
	}

	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "ragqa.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Default returns a configuration populated only with defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.MaxFiles <= 0 {
		errs = append(errs, errors.New("server.max_files must be positive"))
	}

	switch c.Embedding.Provider {
	case "ollama", "gemini", "fastembed":
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q is not one of ollama, gemini, fastembed", c.Embedding.Provider))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, errors.New("embedding.dimension must be positive"))
	}

	switch c.VectorStore.Provider {
	case "memory", "qdrant", "chroma":
	default:
		errs = append(errs, fmt.Errorf("vectorstore.provider %q is not one of memory, qdrant, chroma", c.VectorStore.Provider))
	}
	if c.VectorStore.DocsCollection == c.VectorStore.WebCollection {
		errs = append(errs, errors.New("vectorstore.docs_collection and vectorstore.web_collection must differ"))
	}
	if c.VectorStore.QdrantPort <= 0 || c.VectorStore.QdrantPort > 65535 {
		errs = append(errs, fmt.Errorf("vectorstore.qdrant_port out of range: %d", c.VectorStore.QdrantPort))
	}

	if c.Retrieval.TopK <= 0 || c.Retrieval.MaxSources <= 0 {
		errs = append(errs, errors.New("retrieval.top_k and retrieval.max_sources must be positive"))
	}
	if c.Conversation.MaxTurns < c.Conversation.HistoryTurns {
		errs = append(errs, errors.New("conversation.max_turns must be >= conversation.history_turns"))
	}
	if c.Answer.DefinitionChars <= 0 || c.Answer.AboutChars <= 0 || c.Answer.DefaultChars <= 0 || c.Answer.EntertainmentChars <= 0 {
		errs = append(errs, errors.New("answer caps must be positive"))
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		errs = append(errs, errors.New("ingest.chunk_overlap must be smaller than ingest.chunk_size"))
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of json, console", c.Logging.Format))
	}

	return errors.Join(errs...)
}
