// Package kv is the ordered key-value boundary of pathdex. The indexed
// store only needs get/put/delete, an atomic multi-key batch, and lazy
// ordered scans; everything else about the underlying store (durability,
// compaction, partitioning) stays behind this interface.
package kv

import "iter"

// Batch collects writes that must commit atomically together.
type Batch interface {
	Set(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	Close() error
}

// KV is one scanned pair.
type KV struct {
	Key   []byte
	Value []byte
}

// Store is the contract the indexed store relies on. I/O errors propagate
// unchanged so callers can apply their own retry policy.
type Store interface {
	// Get returns a copy of the value, with found=false for absent keys.
	Get(key []byte) (value []byte, found bool, err error)
	Set(key, value []byte) error
	Delete(key []byte) error
	DeleteRange(lo, hi []byte) error
	NewBatch() Batch
	// Scan yields copies of key/value pairs in [lo, hi), ordered; when
	// reverse is set the same range is yielded greatest to least. A nil hi
	// means unbounded above. An iterator failure ends the sequence with a
	// final element carrying the error, so a scan is never silently
	// truncated. The underlying iterator is released when the sequence is
	// dropped.
	Scan(lo, hi []byte, reverse bool) iter.Seq2[KV, error]
	Close() error
}
