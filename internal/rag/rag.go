// Package rag orchestrates the retrieval-augmented generation pipeline:
// ingestion (normalize, chunk, embed, persist) and query (retrieve, rank,
// assemble context, prompt the generative model, extract citations).
// It depends only on the vectorstore.Store contract and a narrow Generator
// interface so any backend combination behaves identically.
package rag

import (
	"context"
)

// Generator produces a completion from a system prompt and a user prompt.
// provider.ChatGenerator satisfies this; tests inject fakes.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// IngestResult reports what one document ingestion stored.
type IngestResult struct {
	// DocID is the identifier minted for this ingestion. Re-ingesting the
	// same source mints a new DocID; prior chunks are never overwritten.
	DocID string `json:"doc_id"`
	// Chunks is the number of chunks actually stored. Zero is not an error.
	Chunks int `json:"chunks"`
}

// Citation points an answer back at one retrieved chunk.
type Citation struct {
	ID       string         `json:"id"`
	Source   string         `json:"source,omitempty"`
	DocID    string         `json:"doc_id,omitempty"`
	ChunkID  int            `json:"chunk_id"`
	Distance *float64       `json:"distance,omitempty"`
	Snippet  string         `json:"snippet"`
	Metadata map[string]any `json:"-"`
}

// QueryOptions tune one query. Zero values select the coordinator defaults.
type QueryOptions struct {
	// TopK is the number of chunks to retrieve. 0 means the default.
	TopK int
	// MaxDistance drops results farther than this cutoff when non-nil.
	MaxDistance *float64
	// Filter restricts retrieval to chunks whose metadata matches every
	// key/value pair exactly.
	Filter map[string]any
	// Style selects the answer format: concise, bulleted, detailed, or
	// json-list. Unknown values fall back to concise.
	Style string
}

// Answer is the full result of one query: the generated text plus the
// retrieval evidence behind it.
type Answer struct {
	Query      string     `json:"query"`
	Answer     string     `json:"answer"`
	Retrieved  int        `json:"retrieved"`
	Citations  []Citation `json:"citations"`
	Collection string     `json:"collection"`
	Style      string     `json:"style"`
}
