// Package prefs persists small string settings grouped by namespace, in the
// manner of an embedded device's preferences partition.
package prefs

// Store reads and writes namespaced string values.
type Store interface {
	// GetString returns the value of key in namespace ns, or def if absent.
	GetString(ns, key, def string) (string, error)

	// PutStrings writes all pairs into ns atomically.
	PutStrings(ns string, kv map[string]string) error

	// Close releases the store.
	Close() error
}
