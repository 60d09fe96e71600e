// Package embedder converts text into dense vector embeddings for the
// retrieval pipeline. OpenAI, Azure OpenAI, Ollama, and Hugging Face
// backends speak their REST APIs over plain HTTP; Gemini goes through the
// google genai SDK. All implementations are safe for concurrent use.
package embedder

import "context"

// Embedder converts a batch of texts into their embeddings. The returned
// slice is parallel to the input slice.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
