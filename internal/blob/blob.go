// Package blob provides the key-value blob store that backs persisted app
// state. The host platform's storage engine is reduced to this boundary;
// callers never see more than named byte blobs.
package blob

// Store is a named-blob store. Get returns (nil, nil) for an absent key.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}
