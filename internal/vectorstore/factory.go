package vectorstore

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/vectorstore/index"
)

// NewFromEnv constructs the Store selected by VECTOR_STORE_PROVIDER
// (default: local). Credentials are validated here so a misconfigured
// backend fails at startup rather than on the first request.
//
// dimension is the embedding dimensionality of the configured embedder;
// backends that need it at collection-creation time (Pinecone) use it,
// the rest infer it from the first batch.
//
// Environment variables per provider:
//
//	local:    LOCAL_STORE_DIR (default data/vectors/local)
//	ann:      ANN_STORE_DIR (default data/vectors/ann),
//	          ANN_INDEX_TYPE = flat | ivf | hnsw (default flat),
//	          ANN_NLIST, ANN_NPROBE, ANN_M, ANN_EF_SEARCH
//	pinecone: PINECONE_API_KEY (required), PINECONE_METRIC,
//	          PINECONE_CLOUD, PINECONE_REGION
//	weaviate: WEAVIATE_URL (required), WEAVIATE_API_KEY
//	qdrant:   QDRANT_HOST, QDRANT_PORT, QDRANT_API_KEY,
//	          QDRANT_USE_TLS, QDRANT_METRIC
func NewFromEnv(embed EmbedFunc, dimension int, log *slog.Logger) (Store, error) {
	provider := Provider(strings.ToLower(strings.TrimSpace(os.Getenv("VECTOR_STORE_PROVIDER"))))
	if provider == "" {
		provider = ProviderLocal
	}

	switch provider {
	case ProviderLocal:
		return NewLocalStore(envOr("LOCAL_STORE_DIR", "data/vectors/local"), embed, log)

	case ProviderANN:
		return NewANNStore(
			envOr("ANN_STORE_DIR", "data/vectors/ann"),
			index.Kind(envOr("ANN_INDEX_TYPE", string(index.Flat))),
			index.Options{
				NList:    envInt("ANN_NLIST", 0),
				NProbe:   envInt("ANN_NPROBE", 0),
				M:        envInt("ANN_M", 0),
				EfSearch: envInt("ANN_EF_SEARCH", 0),
			},
			embed, log,
		)

	case ProviderPinecone:
		return NewPineconeStore(PineconeConfig{
			APIKey:    os.Getenv("PINECONE_API_KEY"),
			Metric:    os.Getenv("PINECONE_METRIC"),
			Cloud:     os.Getenv("PINECONE_CLOUD"),
			Region:    os.Getenv("PINECONE_REGION"),
			Dimension: dimension,
		}, embed, log)

	case ProviderWeaviate:
		return NewWeaviateStore(WeaviateConfig{
			URL:    os.Getenv("WEAVIATE_URL"),
			APIKey: os.Getenv("WEAVIATE_API_KEY"),
		}, embed, log)

	case ProviderQdrant:
		return NewQdrantStore(QdrantConfig{
			Host:   os.Getenv("QDRANT_HOST"),
			Port:   envInt("QDRANT_PORT", 0),
			APIKey: os.Getenv("QDRANT_API_KEY"),
			UseTLS: envBool("QDRANT_USE_TLS"),
			Metric: os.Getenv("QDRANT_METRIC"),
		}, embed, log)

	case ProviderMilvus:
		return nil, fmt.Errorf("vectorstore: %w: %s", ErrNotImplemented, provider)

	default:
		return nil, fmt.Errorf("vectorstore: %w: %q", ErrUnsupportedProvider, provider)
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "true" || v == "1" || v == "yes"
}
