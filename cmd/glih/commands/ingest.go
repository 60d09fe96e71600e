package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/extract"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/logging"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/rag"
)

// maxFetchBytes caps how much of a remote document is read.
const maxFetchBytes = 32 << 20

// NewIngestCmd constructs the `glih ingest` command, which loads local
// files and remote URLs into the vector store.
func NewIngestCmd() *cobra.Command {
	var collection string
	var chunkSize int
	var overlap int
	var urls []string

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest logistics documents into the vector store",
		Long: `Chunk, embed, and index documents into the configured vector store.

Accepts local files as arguments (plain text, PDF, or HTML; the format is
detected from the file name) and remote documents via repeatable --url
flags. Each document is normalized, split into overlapping chunks, and
stored with source and chunk provenance metadata.

A fetch or parse failure on one source is logged and skipped; a storage
failure aborts the run.

Examples:
  glih ingest sop-cold-chain.pdf carrier-contract.txt
  glih ingest --url https://example.com/customs-notice --collection customs
  glih ingest --chunk-size 500 --overlap 50 warehouse-manual.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if len(args) == 0 && len(urls) == 0 {
				return fmt.Errorf("ingest: at least one file argument or --url is required")
			}

			store, _, err := buildStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = store.Close() }()

			// Ingestion needs no chat model, so the generator stays nil.
			pipeline, err := rag.NewCoordinator(store, nil, log, 0)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if collection == "" {
				collection = defaultCollection()
			}

			var documents, chunks int
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					log.Warn("ingest: skipping unreadable file", slog.String("path", path), slog.Any("error", err))
					continue
				}
				text, err := extract.Text(data, filepath.Base(path), "")
				if err != nil {
					log.Warn("ingest: skipping unparsable file", slog.String("path", path), slog.Any("error", err))
					continue
				}
				res, err := pipeline.Ingest(ctx, collection, filepath.Base(path), text, chunkSize, overlap)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}
				documents++
				chunks += res.Chunks
				log.Info("ingested file", slog.String("path", path), slog.String("doc_id", res.DocID), slog.Int("chunks", res.Chunks))
			}

			for _, u := range urls {
				data, contentType, err := fetchURL(ctx, u)
				if err != nil {
					log.Warn("ingest: skipping unreachable url", slog.String("url", u), slog.Any("error", err))
					continue
				}
				text, err := extract.Text(data, u, contentType)
				if err != nil {
					log.Warn("ingest: skipping unparsable url", slog.String("url", u), slog.Any("error", err))
					continue
				}
				res, err := pipeline.Ingest(ctx, collection, u, text, chunkSize, overlap)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", u, err)
				}
				documents++
				chunks += res.Chunks
				log.Info("ingested url", slog.String("url", u), slog.String("doc_id", res.DocID), slog.Int("chunks", res.Chunks))
			}

			if documents == 0 {
				return fmt.Errorf("ingest: no sources could be ingested")
			}

			log.Info("ingestion complete",
				slog.String("collection", collection),
				slog.Int("documents", documents),
				slog.Int("chunks", chunks),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Target collection (default: GLIH_DEFAULT_COLLECTION or logistics)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", rag.DefaultChunkSize, "Chunk size in characters")
	cmd.Flags().IntVar(&overlap, "overlap", rag.DefaultOverlap, "Overlap between consecutive chunks in characters")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Document URL to ingest (repeatable)")

	return cmd
}

// fetchURL downloads one remote document, capped at maxFetchBytes.
func fetchURL(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
