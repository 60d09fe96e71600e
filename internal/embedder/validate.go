package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify
// chat/completion models which are NOT suitable for embedding. If
// EMBEDDING_MODEL matches any of these, a warning is emitted so the
// operator knows they may have misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral-large",
	"mistral-small",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// serviceBackedStores are the vector store providers that talk to an
// external service. When one of them is selected the embedding config
// deserves a pre-flight check: a broken embedder plus a remote store
// fails in confusing ways mid-ingestion.
var serviceBackedStores = map[string]bool{
	"pinecone": true,
	"weaviate": true,
	"qdrant":   true,
}

// ValidateForRAG checks that the embedder configuration is safe to use
// with the configured vector store. It returns an error if the
// configuration is clearly broken (e.g. azure embedder with no API key),
// and logs a warning if EMBEDDING_MODEL looks like a chat model rather
// than an embedding model.
//
// This is a pre-flight check — call it before constructing the embedder
// or the vector store so operators get a clear error at startup rather
// than a cryptic failure during the first embed call.
func ValidateForRAG(log *slog.Logger) error {
	store := strings.ToLower(os.Getenv("VECTOR_STORE_PROVIDER"))

	backend := Backend()

	// Warn if the resolved backend is a chat provider with no explicit
	// EMBEDDING_PROVIDER override — the user may have forgotten to set it.
	if serviceBackedStores[store] && backend != "ollama" && os.Getenv("EMBEDDING_PROVIDER") == "" {
		log.Warn("embedder: a service-backed vector store is configured but EMBEDDING_PROVIDER is not — "+
			"inheriting MODEL_PROVIDER as embedding backend",
			slog.String("store", store),
			slog.String("backend", backend),
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure/huggingface/gemini) to be explicit"),
		)
	}

	// Validate backend-specific required config.
	switch backend {
	case "openai":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no OpenAI API key found — set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}

	case "azure":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("AZURE_OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no Azure API key found — set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if os.Getenv("EMBEDDING_ENDPOINT") == "" && os.Getenv("AZURE_OPENAI_ENDPOINT") == "" {
			return fmt.Errorf("embedder: no Azure endpoint found — set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}

	case "huggingface":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("HUGGINGFACE_API_KEY") == "" {
			return fmt.Errorf("embedder: no Hugging Face token found — set HUGGINGFACE_API_KEY or EMBEDDING_API_KEY")
		}

	case "gemini":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("embedder: no Gemini API key found — set GEMINI_API_KEY or EMBEDDING_API_KEY")
		}

	case "mistral":
		return fmt.Errorf("embedder: mistral embedding is not yet implemented — set EMBEDDING_PROVIDER to ollama, openai, azure, huggingface, or gemini")
	}

	// Warn if EMBEDDING_MODEL looks like a chat model.
	model := os.Getenv("EMBEDDING_MODEL")
	if model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model — "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
