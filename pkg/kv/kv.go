package kv

// Store defines the interface for a key-value store.
// Implementations of this interface can be swapped out,
// allowing for different storage backends (e.g., in-memory, bolt, badger).
type Store interface {
	// Get retrieves the value associated with the given key.
	// Returns the value and true if the key exists, or empty string and false if not.
	// A missing key is not an error.
	Get(key string) (string, bool, error)

	// Put inserts or replaces the value stored under key. Once Put returns,
	// every subsequent Get of key observes the new value.
	// Returns an error only if the backend fails.
	Put(key, value string) error

	// Close releases any resources held by the store.
	Close() error
}
