package vectorstore

import (
	"errors"
	"path/filepath"
	"testing"
)

// Factory tests mutate the environment via t.Setenv, so none of them run
// in parallel.

func Test_NewFromEnv_DefaultsToLocal(t *testing.T) {
	t.Setenv("VECTOR_STORE_PROVIDER", "")
	t.Setenv("LOCAL_STORE_DIR", filepath.Join(t.TempDir(), "local"))

	s, err := NewFromEnv(axisEmbed, 3, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*LocalStore); !ok {
		t.Errorf("want *LocalStore, got %T", s)
	}
}

func Test_NewFromEnv_ANNWithIndexType(t *testing.T) {
	t.Setenv("VECTOR_STORE_PROVIDER", "ann")
	t.Setenv("ANN_STORE_DIR", filepath.Join(t.TempDir(), "ann"))
	t.Setenv("ANN_INDEX_TYPE", "hnsw")
	t.Setenv("ANN_M", "8")

	s, err := NewFromEnv(axisEmbed, 3, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ann, ok := s.(*ANNStore)
	if !ok {
		t.Fatalf("want *ANNStore, got %T", s)
	}
	if string(ann.kind) != "hnsw" {
		t.Errorf("want hnsw index, got %s", ann.kind)
	}
	if ann.opts.M != 8 {
		t.Errorf("ANN_M not honored: %d", ann.opts.M)
	}
}

func Test_NewFromEnv_ANNRejectsBogusIndexType(t *testing.T) {
	t.Setenv("VECTOR_STORE_PROVIDER", "ann")
	t.Setenv("ANN_STORE_DIR", filepath.Join(t.TempDir(), "ann"))
	t.Setenv("ANN_INDEX_TYPE", "faiss")

	if _, err := NewFromEnv(axisEmbed, 3, testLogger(t)); err == nil {
		t.Error("want error for unknown index type")
	}
}

func Test_NewFromEnv_PineconeFailsFastWithoutKey(t *testing.T) {
	t.Setenv("VECTOR_STORE_PROVIDER", "pinecone")
	t.Setenv("PINECONE_API_KEY", "")

	_, err := NewFromEnv(axisEmbed, 768, testLogger(t))
	if !errors.Is(err, ErrCredentialMissing) {
		t.Errorf("want ErrCredentialMissing, got %v", err)
	}
}

func Test_NewFromEnv_WeaviateFailsFastWithoutURL(t *testing.T) {
	t.Setenv("VECTOR_STORE_PROVIDER", "weaviate")
	t.Setenv("WEAVIATE_URL", "")

	_, err := NewFromEnv(axisEmbed, 768, testLogger(t))
	if !errors.Is(err, ErrCredentialMissing) {
		t.Errorf("want ErrCredentialMissing, got %v", err)
	}
}

func Test_NewFromEnv_MilvusNotImplemented(t *testing.T) {
	t.Setenv("VECTOR_STORE_PROVIDER", "milvus")

	_, err := NewFromEnv(axisEmbed, 768, testLogger(t))
	if !errors.Is(err, ErrNotImplemented) {
		t.Errorf("want ErrNotImplemented, got %v", err)
	}
}

func Test_NewFromEnv_UnknownProvider(t *testing.T) {
	t.Setenv("VECTOR_STORE_PROVIDER", "chromadb")

	_, err := NewFromEnv(axisEmbed, 768, testLogger(t))
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("want ErrUnsupportedProvider, got %v", err)
	}
}

func Test_NewFromEnv_ProviderNameIsCaseInsensitive(t *testing.T) {
	t.Setenv("VECTOR_STORE_PROVIDER", "  LOCAL ")
	t.Setenv("LOCAL_STORE_DIR", filepath.Join(t.TempDir(), "local"))

	s, err := NewFromEnv(axisEmbed, 3, testLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*LocalStore); !ok {
		t.Errorf("want *LocalStore, got %T", s)
	}
}
