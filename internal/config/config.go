// Package config provides YAML-based configuration for glih.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. GLIH_CONFIG environment variable
//  3. ~/.glih/config.yaml
//  4. ./glih.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// VectorStore configures the vector store backend.
	VectorStore VectorStoreConfig `yaml:"vector_store"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Model configures the LLM chat model provider.
	Model ModelConfig `yaml:"model"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures request history persistence.
	History HistoryConfig `yaml:"history"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	// Provider selects the backend: local, ann, pinecone, weaviate, qdrant.
	Provider string `yaml:"provider"`

	// DefaultCollection is the collection used when requests omit one.
	DefaultCollection string `yaml:"default_collection"`

	// Local holds embedded exact-search store settings.
	Local LocalStoreConfig `yaml:"local"`

	// ANN holds embedded approximate-nearest-neighbor store settings.
	ANN ANNStoreConfig `yaml:"ann"`

	// Pinecone holds Pinecone settings.
	Pinecone PineconeConfig `yaml:"pinecone"`

	// Weaviate holds Weaviate settings.
	Weaviate WeaviateConfig `yaml:"weaviate"`

	// Qdrant holds Qdrant settings.
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// LocalStoreConfig holds embedded exact-search store settings.
type LocalStoreConfig struct {
	// Dir is the persistence directory.
	Dir string `yaml:"dir"`
}

// ANNStoreConfig holds embedded ANN store settings.
type ANNStoreConfig struct {
	// Dir is the persistence directory.
	Dir string `yaml:"dir"`
	// IndexType selects the index: flat, ivf, hnsw.
	IndexType string `yaml:"index_type"`
	// NList is the number of IVF cells.
	NList int `yaml:"nlist"`
	// NProbe is the number of IVF cells probed per query.
	NProbe int `yaml:"nprobe"`
	// M is the HNSW connectivity parameter.
	M int `yaml:"m"`
	// EfSearch is the HNSW search beam width.
	EfSearch int `yaml:"ef_search"`
}

// PineconeConfig holds Pinecone settings.
type PineconeConfig struct {
	// APIKey is the Pinecone API key. Prefer env var PINECONE_API_KEY.
	APIKey string `yaml:"api_key"`
	// Metric is the index distance metric: cosine, dotproduct, euclidean.
	Metric string `yaml:"metric"`
	// Cloud is the serverless cloud provider (aws, gcp, azure).
	Cloud string `yaml:"cloud"`
	// Region is the serverless region.
	Region string `yaml:"region"`
}

// WeaviateConfig holds Weaviate settings.
type WeaviateConfig struct {
	// URL is the Weaviate instance URL.
	URL string `yaml:"url"`
	// APIKey is the Weaviate API key. Prefer env var WEAVIATE_API_KEY.
	APIKey string `yaml:"api_key"`
}

// QdrantConfig holds Qdrant settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
	// Metric is the collection distance metric: cosine, dot, euclid.
	Metric string `yaml:"metric"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure, huggingface, gemini).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, ark, gemini.
	Provider string `yaml:"provider"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`

	// Ollama holds Ollama-specific settings.
	Ollama OllamaConfig `yaml:"ollama"`

	// OpenAI holds OpenAI-specific settings.
	OpenAI OpenAIConfig `yaml:"openai"`

	// Azure holds Azure OpenAI-specific settings.
	Azure AzureConfig `yaml:"azure"`

	// Ark holds Volcano Engine Ark-specific settings.
	Ark ArkConfig `yaml:"ark"`

	// Gemini holds Google Gemini-specific settings.
	Gemini GeminiConfig `yaml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint"`
	// Deployment is the Azure OpenAI deployment name.
	Deployment string `yaml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version"`
}

// ArkConfig holds Volcano Engine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Ark endpoint or model ID.
	Model string `yaml:"model"`
	// BaseURL overrides the default Ark endpoint.
	BaseURL string `yaml:"base_url"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var GLIH_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds request history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"VECTOR_STORE_PROVIDER", func(c *Config) string { return c.VectorStore.Provider }},
	{"GLIH_DEFAULT_COLLECTION", func(c *Config) string { return c.VectorStore.DefaultCollection }},
	{"LOCAL_STORE_DIR", func(c *Config) string { return c.VectorStore.Local.Dir }},
	{"ANN_STORE_DIR", func(c *Config) string { return c.VectorStore.ANN.Dir }},
	{"ANN_INDEX_TYPE", func(c *Config) string { return c.VectorStore.ANN.IndexType }},
	{"ANN_NLIST", func(c *Config) string { return intStr(c.VectorStore.ANN.NList) }},
	{"ANN_NPROBE", func(c *Config) string { return intStr(c.VectorStore.ANN.NProbe) }},
	{"ANN_M", func(c *Config) string { return intStr(c.VectorStore.ANN.M) }},
	{"ANN_EF_SEARCH", func(c *Config) string { return intStr(c.VectorStore.ANN.EfSearch) }},
	{"PINECONE_API_KEY", func(c *Config) string { return c.VectorStore.Pinecone.APIKey }},
	{"PINECONE_METRIC", func(c *Config) string { return c.VectorStore.Pinecone.Metric }},
	{"PINECONE_CLOUD", func(c *Config) string { return c.VectorStore.Pinecone.Cloud }},
	{"PINECONE_REGION", func(c *Config) string { return c.VectorStore.Pinecone.Region }},
	{"WEAVIATE_URL", func(c *Config) string { return c.VectorStore.Weaviate.URL }},
	{"WEAVIATE_API_KEY", func(c *Config) string { return c.VectorStore.Weaviate.APIKey }},
	{"QDRANT_HOST", func(c *Config) string { return c.VectorStore.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.VectorStore.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.VectorStore.Qdrant.APIKey }},
	{"QDRANT_USE_TLS", func(c *Config) string { return boolStr(c.VectorStore.Qdrant.TLS) }},
	{"QDRANT_METRIC", func(c *Config) string { return c.VectorStore.Qdrant.Metric }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"GLIH_HOST", func(c *Config) string { return c.Server.Host }},
	{"GLIH_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"GLIH_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"GLIH_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("GLIH_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".glih", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("glih.yaml"); err == nil {
		return "glih.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
