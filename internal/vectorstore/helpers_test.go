package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

// axisEmbed is a deterministic three-dimensional test embedder: each axis
// scores how often a topic keyword appears in the text, so texts about
// the same topic land close together and unrelated texts land far apart.
func axisEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		out[i] = []float32{
			float32(strings.Count(lower, "temperature")),
			float32(strings.Count(lower, "customs")),
			float32(strings.Count(lower, "fuel")),
		}
	}
	return out, nil
}

// failEmbed always errors, for exercising embed failure paths.
func failEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding backend offline")
}

// dimEmbed returns constant vectors of the given dimensionality.
func dimEmbed(dim int) EmbedFunc {
	return func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = make([]float32, dim)
			out[i][0] = float32(i + 1)
		}
		return out, nil
	}
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.DiscardHandler)
}

// ingestFixture adds three topic-distinct chunks to the collection.
func ingestFixture(t *testing.T, s Store, collection string) {
	t.Helper()
	texts := []string{
		"reefer unit temperature breach on trailer 88, temperature logged at -2C",
		"customs clearance paperwork for the rotterdam shipment",
		"fuel surcharge update for the northeast carrier lanes",
	}
	metadatas := []map[string]any{
		{"source": "incidents.txt", "doc_id": "doc-1", "chunk_id": 0},
		{"source": "customs.txt", "doc_id": "doc-2", "chunk_id": 0},
		{"source": "billing.txt", "doc_id": "doc-3", "chunk_id": 0},
	}
	ids := []string{"chunk-temp", "chunk-customs", "chunk-fuel"}
	if err := s.AddDocuments(context.Background(), collection, texts, metadatas, ids); err != nil {
		t.Fatalf("ingest fixture: %v", err)
	}
}
