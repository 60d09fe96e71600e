package vectorstore

import "errors"

// Sentinel errors shared by all drivers. Callers match them with
// [errors.Is]; the wrapped message carries the operation detail.
var (
	// ErrUnsupportedProvider means VECTOR_STORE_PROVIDER named a provider
	// this build does not know.
	ErrUnsupportedProvider = errors.New("unsupported vector store provider")

	// ErrNotImplemented means the provider is recognized but has no
	// driver yet.
	ErrNotImplemented = errors.New("vector store provider not implemented")

	// ErrCredentialMissing means a service-backed driver was selected
	// without the credentials it needs. Raised at construction, never at
	// first use.
	ErrCredentialMissing = errors.New("vector store credential missing")

	// ErrCollectionNotFound means an operation targeted a collection that
	// does not exist and the operation is not defined to tolerate that.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch means a vector batch disagrees with the
	// collection's established dimensionality. The collection is left
	// unchanged.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrTransient marks a backend failure that persisted through the
	// retry budget. Wraps timeouts, 5xx responses, and gRPC unavailability.
	ErrTransient = errors.New("transient vector store failure")

	// ErrPersistence means an embedded store could not write its on-disk
	// snapshot.
	ErrPersistence = errors.New("vector store persistence failure")
)
