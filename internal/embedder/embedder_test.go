package embedder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func Test_OllamaEmbedder_BatchRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("unexpected model %q", req.Model)
		}
		resp := ollamaEmbedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			resp.Embeddings[i] = []float32{float32(i), 1, 2}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	got, err := emb.Embed(context.Background(), []string{"dock schedule", "pallet count"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1][0] != 1 {
		t.Errorf("unexpected embeddings: %v", got)
	}
}

func Test_OllamaEmbedder_SurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not pulled"})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "missing"})
	if _, err := emb.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("want error from 404 response")
	}
}

func Test_OpenAIEmbedder_ReordersByIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		// Return data deliberately out of order.
		w.Write([]byte(`{"data":[
			{"embedding":[2,2],"index":1},
			{"embedding":[1,1],"index":0}
		]}`))
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "text-embedding-3-small"})
	got, err := emb.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatal(err)
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Errorf("embeddings not reordered by index: %v", got)
	}
}

func Test_OpenAIEmbedder_AzureURLAndHeader(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("api-key")
		w.Write([]byte(`{"data":[{"embedding":[1],"index":0}]}`))
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "az-key",
		Model:      "embed-deploy",
		Azure:      true,
		APIVersion: "2025-04-01-preview",
	})
	if _, err := emb.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/deployments/embed-deploy/embeddings?api-version=2025-04-01-preview" {
		t.Errorf("unexpected azure path %q", gotPath)
	}
	if gotKey != "az-key" {
		t.Errorf("azure mode must use the api-key header, got %q", gotKey)
	}
}

func Test_HuggingFaceEmbedder_PipelinePath(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pipeline/feature-extraction/sentence-transformers/all-MiniLM-L6-v2" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req hfEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if !req.Options.WaitForModel {
			t.Error("wait_for_model should be set")
		}
		out := make([][]float32, len(req.Inputs))
		for i := range out {
			out[i] = []float32{0.5}
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	emb := NewHuggingFaceEmbedder(&HuggingFaceConfig{
		BaseURL: srv.URL,
		APIKey:  "hf-token",
		Model:   "sentence-transformers/all-MiniLM-L6-v2",
	})
	got, err := emb.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("want 2 embeddings, got %d", len(got))
	}
}

func Test_NewFromEnv_DefaultsToOllama(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("MODEL_PROVIDER", "")

	emb, err := NewFromEnv(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := emb.(*OllamaEmbedder); !ok {
		t.Errorf("want *OllamaEmbedder, got %T", emb)
	}
}

func Test_NewFromEnv_InheritsChatProvider(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	emb, err := NewFromEnv(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := emb.(*OpenAIEmbedder); !ok {
		t.Errorf("want *OpenAIEmbedder, got %T", emb)
	}
}

func Test_NewFromEnv_MissingCredentials(t *testing.T) {
	cases := map[string]string{
		"openai":      "OPENAI_API_KEY",
		"azure":       "AZURE_OPENAI_API_KEY",
		"huggingface": "HUGGINGFACE_API_KEY",
		"gemini":      "GEMINI_API_KEY",
	}
	for backend, envKey := range cases {
		t.Setenv("EMBEDDING_PROVIDER", backend)
		t.Setenv("EMBEDDING_API_KEY", "")
		t.Setenv(envKey, "")
		if _, err := NewFromEnv(context.Background()); err == nil {
			t.Errorf("%s without credentials should fail fast", backend)
		}
	}
}

func Test_NewFromEnv_MistralNotImplemented(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "mistral")
	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Error("mistral backend should report not implemented")
	}
}

func Test_DefaultDimensions(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	if got := DefaultDimensions("ollama"); got != 768 {
		t.Errorf("ollama default: %d", got)
	}
	if got := DefaultDimensions("openai"); got != 1536 {
		t.Errorf("openai default: %d", got)
	}
	if got := DefaultDimensions("huggingface"); got != 384 {
		t.Errorf("huggingface default: %d", got)
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "512")
	if got := DefaultDimensions("ollama"); got != 512 {
		t.Errorf("EMBEDDING_DIMENSIONS must win, got %d", got)
	}
}

func Test_ValidateForRAG(t *testing.T) {
	log := slog.New(slog.DiscardHandler)

	t.Setenv("VECTOR_STORE_PROVIDER", "qdrant")
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	if err := ValidateForRAG(log); err == nil {
		t.Error("openai backend without a key should fail validation")
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	if err := ValidateForRAG(log); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	t.Setenv("EMBEDDING_PROVIDER", "mistral")
	if err := ValidateForRAG(log); err == nil {
		t.Error("mistral backend should fail validation")
	}
}

func Test_LooksLikeChatModel(t *testing.T) {
	t.Parallel()

	for _, chat := range []string{"gpt-4o", "llama3.2", "claude-haiku", "Qwen2-7B"} {
		if !looksLikeChatModel(chat) {
			t.Errorf("%q should be flagged as a chat model", chat)
		}
	}
	for _, emb := range []string{"nomic-embed-text", "text-embedding-3-small", "all-MiniLM-L6-v2"} {
		if looksLikeChatModel(emb) {
			t.Errorf("%q should not be flagged", emb)
		}
	}
}
