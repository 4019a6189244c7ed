// Package config loads the YAML application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "workspace-rag.yaml"

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig selects the evidence and conversation store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite or memory
	Path   string `yaml:"path"`
}

// ProviderConfig selects the embedding and chat model provider.
type ProviderConfig struct {
	Type        string `yaml:"type"` // ollama or openai
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	ChatModel   string `yaml:"chat_model"`
	EmbedModel  string `yaml:"embed_model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// APIKey returns the key from the environment variable named by APIKeyEnv.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// Timeout returns the request timeout for provider calls.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// RetrievalConfig tunes the ranker and mode selection.
type RetrievalConfig struct {
	PoolSize      int    `yaml:"pool_size"`
	TopK          int    `yaml:"top_k"`
	PerSourceCap  int    `yaml:"per_source_cap"`
	EmptyUnscoped string `yaml:"empty_unscoped"` // general or no_results
}

// IngestConfig tunes chunking and file ingestion.
type IngestConfig struct {
	ChunkSize     int      `yaml:"chunk_size"`
	ChunkOverlap  int      `yaml:"chunk_overlap"`
	PDFServiceURL string   `yaml:"pdf_service_url"`
	WatchDir      string   `yaml:"watch_dir"`
	Extensions    []string `yaml:"extensions,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Provider  ProviderConfig  `yaml:"provider"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

// Validate rejects values the application cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.Provider.Type {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown provider.type %q", c.Provider.Type)
	}
	switch c.Retrieval.EmptyUnscoped {
	case "general", "no_results":
	default:
		return fmt.Errorf("unknown retrieval.empty_unscoped %q", c.Retrieval.EmptyUnscoped)
	}
	if c.Retrieval.TopK > c.Retrieval.PoolSize {
		return fmt.Errorf("retrieval.top_k (%d) exceeds pool_size (%d)", c.Retrieval.TopK, c.Retrieval.PoolSize)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be smaller than chunk_size")
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "./data"
	}

	if cfg.Provider.Type == "" {
		cfg.Provider.Type = "ollama"
	}
	switch cfg.Provider.Type {
	case "ollama":
		if cfg.Provider.BaseURL == "" {
			cfg.Provider.BaseURL = "http://localhost:11434"
		}
		if cfg.Provider.ChatModel == "" {
			cfg.Provider.ChatModel = "llama3.2"
		}
		if cfg.Provider.EmbedModel == "" {
			cfg.Provider.EmbedModel = "nomic-embed-text"
		}
	case "openai":
		if cfg.Provider.BaseURL == "" {
			cfg.Provider.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Provider.APIKeyEnv == "" {
			cfg.Provider.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Provider.ChatModel == "" {
			cfg.Provider.ChatModel = "gpt-4o-mini"
		}
		if cfg.Provider.EmbedModel == "" {
			cfg.Provider.EmbedModel = "text-embedding-3-small"
		}
	}
	if cfg.Provider.TimeoutSecs == 0 {
		cfg.Provider.TimeoutSecs = 120
	}

	if cfg.Retrieval.PoolSize == 0 {
		cfg.Retrieval.PoolSize = 40
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 8
	}
	if cfg.Retrieval.PerSourceCap == 0 {
		cfg.Retrieval.PerSourceCap = 2
	}
	if cfg.Retrieval.EmptyUnscoped == "" {
		cfg.Retrieval.EmptyUnscoped = "general"
	}

	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 500
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 50
	}
	if cfg.Ingest.PDFServiceURL == "" {
		cfg.Ingest.PDFServiceURL = "http://localhost:8081"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
