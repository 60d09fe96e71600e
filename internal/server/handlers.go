package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/extract"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/history"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/logging"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/rag"
	"github.com/bolajil/genai-logistic-intelligent-hub/internal/vectorstore"
)

// maxMultipartMemory bounds the in-memory portion of multipart parsing;
// larger files spill to temp files.
const maxMultipartMemory = 64 << 20 // 64 MiB

// handleIngest handles POST /ingest: store pre-chunked texts as-is.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "texts is required")
		return
	}

	collection := s.collectionOr(req.Collection)
	count, err := s.pipeline.AddTexts(r.Context(), collection, req.Texts, req.Metadatas)
	if err != nil {
		s.ingestError(w, r, err)
		return
	}

	s.metrics.ingestChunksTotal.Add(float64(count))
	s.recordEvent(r, history.Event{Kind: history.KindIngest, Collection: collection, Subject: "texts", Count: count})
	writeJSON(w, http.StatusOK, ingestResponse{Ingested: count, Collection: collection, Provider: s.cfg.Provider})
}

// handleIngestFile handles POST /ingest/file: multipart upload of one or
// more documents. Extraction failure for one file degrades that file to
// zero chunks and the batch continues.
func (s *Server) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	collection := s.collectionOr(r.URL.Query().Get("collection"))
	chunkSize := queryInt(r, "chunk_size", rag.DefaultChunkSize)
	overlap := queryInt(r, "overlap", rag.DefaultOverlap)
	log := logging.FromContext(r.Context())

	total, documents := 0, 0
	for _, headers := range r.MultipartForm.File {
		for _, hdr := range headers {
			documents++
			text, err := readUpload(hdr)
			if err != nil {
				log.Warn("file extraction failed, skipping",
					slog.String("file", hdr.Filename),
					slog.Any("error", err),
				)
				continue
			}
			res, err := s.pipeline.Ingest(r.Context(), collection, hdr.Filename, text, chunkSize, overlap)
			if err != nil {
				s.ingestError(w, r, err)
				return
			}
			total += res.Chunks
		}
	}

	s.metrics.ingestChunksTotal.Add(float64(total))
	s.recordEvent(r, history.Event{Kind: history.KindIngest, Collection: collection, Subject: "files", Count: total})
	writeJSON(w, http.StatusOK, ingestResponse{
		Ingested:   total,
		Collection: collection,
		Provider:   s.cfg.Provider,
		Documents:  documents,
	})
}

// readUpload reads one multipart file and extracts its text.
func readUpload(hdr *multipart.FileHeader) (string, error) {
	f, err := hdr.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return extract.Text(data, hdr.Filename, hdr.Header.Get("Content-Type"))
}

// handleIngestURL handles POST /ingest/url: fetch, extract, and ingest
// remote documents. A failed fetch or extraction degrades that URL to zero
// chunks; the batch continues.
func (s *Server) handleIngestURL(w http.ResponseWriter, r *http.Request) {
	var req ingestURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls is required")
		return
	}
	collection := s.collectionOr(req.Collection)
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = rag.DefaultChunkSize
	}
	overlap := rag.DefaultOverlap
	if req.Overlap != nil {
		if *req.Overlap < 0 {
			writeError(w, http.StatusBadRequest, "overlap must be >= 0")
			return
		}
		overlap = *req.Overlap
	}
	log := logging.FromContext(r.Context())

	total, documents := 0, 0
	for _, url := range req.URLs {
		data, contentType, err := s.fetch(r.Context(), url)
		if err != nil {
			log.Warn("url fetch failed, skipping", slog.String("url", url), slog.Any("error", err))
			continue
		}
		text, err := extract.Text(data, url, contentType)
		if err != nil {
			log.Warn("url extraction failed, skipping", slog.String("url", url), slog.Any("error", err))
			continue
		}
		res, err := s.pipeline.Ingest(r.Context(), collection, url, text, chunkSize, overlap)
		if err != nil {
			s.ingestError(w, r, err)
			return
		}
		total += res.Chunks
		documents++
	}

	s.metrics.ingestChunksTotal.Add(float64(total))
	s.recordEvent(r, history.Event{Kind: history.KindIngest, Collection: collection, Subject: "urls", Count: total})
	writeJSON(w, http.StatusOK, ingestResponse{
		Ingested:   total,
		Collection: collection,
		Provider:   s.cfg.Provider,
		Documents:  documents,
		URLs:       req.URLs,
	})
}

// handleQuery handles GET /query: retrieve, generate, and cite.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	collection := s.collectionOr(r.URL.Query().Get("collection"))
	k := queryInt(r, "k", 5)

	opts := rag.QueryOptions{TopK: k, Style: r.URL.Query().Get("style")}
	if raw := r.URL.Query().Get("max_distance"); raw != "" {
		md, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "max_distance must be a number")
			return
		}
		opts.MaxDistance = &md
	}

	ans, err := s.pipeline.Query(r.Context(), collection, q, opts)
	if err != nil {
		s.metrics.queryRequestsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.queryRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.queryRetrievedChunks.Observe(float64(ans.Retrieved))
	s.recordEvent(r, history.Event{Kind: history.KindQuery, Collection: collection, Subject: q, Count: ans.Retrieved})

	writeJSON(w, http.StatusOK, queryResponse{
		Query:       ans.Query,
		Answer:      ans.Answer,
		Retrieved:   ans.Retrieved,
		Citations:   ans.Citations,
		Collection:  collection,
		Provider:    s.cfg.Provider,
		Model:       s.cfg.Model,
		K:           k,
		MaxDistance: opts.MaxDistance,
		Style:       ans.Style,
	})
}

// handleCollections handles GET /index/collections.
func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.ListCollections(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, collectionsResponse{Collections: names, Default: s.cfg.DefaultCollection})
}

// handleCollectionStats handles GET /index/collections/{name}/stats.
func (s *Server) handleCollectionStats(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	stats, err := s.store.CollectionStats(r.Context(), name)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			writeError(w, http.StatusNotFound, "collection not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	meta := map[string]any{"provider": stats.Provider}
	if stats.Dimension > 0 {
		meta["dimension"] = stats.Dimension
	}
	if stats.IndexType != "" {
		meta["index_type"] = stats.IndexType
	}
	writeJSON(w, http.StatusOK, statsResponse{Name: stats.Name, Count: stats.Count, Metadata: meta})
}

// handleCollectionDelete handles DELETE /index/collections/{name}. The
// process-default collection cannot be deleted through the API.
func (s *Server) handleCollectionDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == s.cfg.DefaultCollection {
		writeError(w, http.StatusBadRequest, "cannot delete the default collection")
		return
	}
	if err := s.store.DeleteCollection(r.Context(), name); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

// handleCollectionReset handles POST /index/collections/{name}/reset:
// delete-then-recreate. The delete half is best-effort so a reset can
// recover a collection whose backing state is broken.
func (s *Server) handleCollectionReset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	log := logging.FromContext(r.Context())

	if err := s.store.DeleteCollection(r.Context(), name); err != nil {
		log.Warn("reset: delete failed, recreating anyway",
			slog.String("collection", name),
			slog.Any("error", err),
		)
	}
	if err := s.store.CreateCollection(r.Context(), name); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reset": name})
}

// collectionOr returns the requested collection or the process default.
func (s *Server) collectionOr(requested string) string {
	if requested != "" {
		return requested
	}
	return s.cfg.DefaultCollection
}

// ingestError maps ingestion failures to HTTP statuses.
func (s *Server) ingestError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, vectorstore.ErrDimensionMismatch) {
		status = http.StatusBadRequest
	}
	logging.FromContext(r.Context()).Error("ingestion failed", slog.Any("error", err))
	writeError(w, status, err.Error())
}

// recordEvent writes one request-history event, if history is enabled.
// Recording failures are logged and never fail the request.
func (s *Server) recordEvent(r *http.Request, ev history.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(r.Context(), ev); err != nil {
		logging.FromContext(r.Context()).Warn("history record failed", slog.Any("error", err))
	}
}

// queryInt parses an integer query parameter, returning fallback when the
// parameter is absent or malformed.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
