package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds configuration for the OpenAI-compatible embedding and chat APIs.
type OpenAIConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKeyEnv         string `yaml:"api_key_env"`
	ChatModel         string `yaml:"chat_model"`
	EmbedModel        string `yaml:"embed_model"`
	TimeoutSecs       int    `yaml:"timeout_secs"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// APIKey returns the key from the configured environment variable.
func (c OpenAIConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }

// EmbedderConfig selects the text embedder implementation.
type EmbedderConfig struct {
	Type string `yaml:"type"`
}

// CorpusConfig configures how the disease/symptom table becomes documents.
type CorpusConfig struct {
	DataFile         string `yaml:"data_file"`
	MaxChunkSize     int    `yaml:"max_chunk_size"`
	PresentIndicator string `yaml:"present_indicator"`
	BatchSize        int    `yaml:"batch_size"`
}

// VectorStoreConfig selects and configures the document store.
type VectorStoreConfig struct {
	Type       string        `yaml:"type"`
	Collection string        `yaml:"collection"`
	SQLite     *SQLiteConfig `yaml:"sqlite,omitempty"`
	Chroma     *ChromaConfig `yaml:"chroma,omitempty"`
	Qdrant     *QdrantConfig `yaml:"qdrant,omitempty"`
}

// SQLiteConfig locates the local store. ArchiveURL optionally points at a zip of
// a built store directory to download when the store is missing; empty disables
// fetching.
type SQLiteConfig struct {
	Dir        string `yaml:"dir"`
	ArchiveURL string `yaml:"archive_url"`
}

// ChromaConfig contains connection details for a ChromaDB server.
type ChromaConfig struct {
	URL string `yaml:"url"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig configures the query pipeline.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// LogConfig configures logging. An empty File logs to stderr.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Log         LogConfig         `yaml:"log"`
}

// Retrieval bounds for top-K.
const (
	MinTopK     = 1
	MaxTopK     = 10
	DefaultTopK = 5
)

// Load reads a config from a specified path. If the file does not exist, returns defaults.
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
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/symptomrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/symptomrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
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

// Validate rejects unknown component types and unusable combinations.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "openai", "tfidf":
	default:
		return fmt.Errorf("unknown embedder: %q", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "sqlite", "memory":
	case "chroma":
		if c.VectorStore.Chroma == nil || c.VectorStore.Chroma.URL == "" {
			return errors.New("chroma store requires vector_store.chroma.url")
		}
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			return errors.New("qdrant store requires vector_store.qdrant.url")
		}
	default:
		return fmt.Errorf("unknown vector store: %q", c.VectorStore.Type)
	}
	// tfidf vocabularies live in process memory only
	if c.Embedder.Type == "tfidf" && c.VectorStore.Type != "memory" {
		return fmt.Errorf("tfidf embedder requires the memory store, got %q", c.VectorStore.Type)
	}
	if c.Corpus.MaxChunkSize <= 0 {
		return fmt.Errorf("corpus.max_chunk_size must be positive, got %d", c.Corpus.MaxChunkSize)
	}
	return nil
}

// ClampTopK bounds k to the supported retrieval range.
func ClampTopK(k int) int {
	if k < MinTopK {
		return MinTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "symptomrag", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			ChatModel:   "gpt-3.5-turbo",
			EmbedModel:  "text-embedding-3-small",
			TimeoutSecs: 60,
		},
		Embedder: EmbedderConfig{Type: "openai"},
		Corpus: CorpusConfig{
			DataFile:         filepath.Join("data", "Final_Augmented_dataset_Diseases_and_Symptoms.csv"),
			MaxChunkSize:     6000,
			PresentIndicator: "1",
			BatchSize:        100,
		},
		VectorStore: VectorStoreConfig{
			Type:       "sqlite",
			Collection: "disease_symptoms",
			SQLite:     &SQLiteConfig{Dir: "symptom_db"},
		},
		Retrieval: RetrievalConfig{TopK: DefaultTopK},
		Log:       LogConfig{Level: "info", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 28},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.APIKeyEnv == "" {
		cfg.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-3.5-turbo"
	}
	if cfg.OpenAI.EmbedModel == "" {
		cfg.OpenAI.EmbedModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.TimeoutSecs == 0 {
		cfg.OpenAI.TimeoutSecs = 60
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Corpus.DataFile == "" {
		cfg.Corpus.DataFile = filepath.Join("data", "Final_Augmented_dataset_Diseases_and_Symptoms.csv")
	}
	if cfg.Corpus.MaxChunkSize == 0 {
		cfg.Corpus.MaxChunkSize = 6000
	}
	if cfg.Corpus.PresentIndicator == "" {
		cfg.Corpus.PresentIndicator = "1"
	}
	if cfg.Corpus.BatchSize <= 0 {
		cfg.Corpus.BatchSize = 100
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "sqlite"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "disease_symptoms"
	}
	if cfg.VectorStore.Type == "sqlite" {
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Dir == "" {
			cfg.VectorStore.SQLite.Dir = "symptom_db"
		}
	}
	if cfg.VectorStore.Qdrant != nil && cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
		cfg.VectorStore.Qdrant.TimeoutSecs = 15
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	cfg.Retrieval.TopK = ClampTopK(cfg.Retrieval.TopK)
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
}
