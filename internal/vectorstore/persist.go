package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Embedded drivers persist one directory per collection holding two files
// written as a unit: the serialized vectors or index, and a JSON sidecar
// with the parallel documents, metadata, and IDs.
const (
	indexFileName = "index.gob"
	metaFileName  = "meta.json"
)

// collectionNamePattern constrains collection names so they are safe to
// use as directory names and acceptable to every backend.
var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

func validateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("vectorstore: invalid collection name %q: must be 1-64 characters of letters, digits, underscore or hyphen, starting alphanumeric", name)
	}
	return nil
}

// collectionMeta is the JSON sidecar stored next to the vector data of an
// embedded collection.
type collectionMeta struct {
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
	IDs       []string         `json:"ids"`
	Dimension int              `json:"dimension"`
	IndexType string           `json:"index_type,omitempty"`
}

// writeFileAtomic writes data to path via a temp file and rename, so a
// crash mid-write never leaves a truncated file behind.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// writeMeta marshals and atomically writes the sidecar for a collection
// directory.
func writeMeta(dir string, meta collectionMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, metaFileName), data)
}

// readMeta loads the sidecar from a collection directory.
func readMeta(dir string) (collectionMeta, error) {
	var meta collectionMeta
	data, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}
