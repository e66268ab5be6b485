// Package pathdex is a generic path-based secondary-indexing layer over an
// ordered key-value store. Callers register record shapes per collection,
// declare which field paths are indexable, and the store keeps a reverse
// index from encoded field value to primary key, consistent across inserts,
// updates and deletes, with point, prefix and range queries over indexed
// values.
package pathdex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/arcstep/pathdex/kv"
	"github.com/arcstep/pathdex/lru"
	"github.com/arcstep/pathdex/pathdex_errors"
	"github.com/arcstep/pathdex/pathtypes"
	"github.com/arcstep/pathdex/utils"
)

type Options struct {
	// Codec serializes records for the primary partition. Default: JSONCodec.
	Codec Codec
	// CacheSize bounds the optional read-through cache over primary-record
	// reads. 0 (the default) disables it.
	CacheSize int
	Logger    utils.Logger
}

// Store wraps a kv.Store and maintains secondary indexes for every
// registered indexable path. All public operations are safe for concurrent
// use; consistency of the read-modify-write on one primary key is kept by a
// per-key advisory lock, and the primary write plus its index delta commit
// in a single kv batch. Concurrent updates to different keys never block
// each other.
type Store struct {
	kv     kv.Store
	types  *pathtypes.Manager
	codec  Codec
	log    utils.Logger
	cache  *lru.Cache[string, []byte]
	locks  utils.MutexMap
	closed atomic.Bool
}

func New(db kv.Store, opts *Options) (*Store, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Codec == nil {
		o.Codec = JSONCodec{}
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelInfo)
	}
	cache, err := lru.New[string, []byte](o.CacheSize, nil)
	if err != nil {
		return nil, err
	}
	return &Store{
		kv:    db,
		types: pathtypes.NewManager(),
		codec: o.Codec,
		log:   o.Logger,
		cache: cache,
	}, nil
}

// Types exposes the path type manager for converter registration and
// schema introspection.
func (s *Store) Types() *pathtypes.Manager { return s.types }

// CacheStats reports the read-through cache counters.
func (s *Store) CacheStats() lru.Stats { return s.cache.Stats() }

// RegisterModel introspects a sample record and registers every reachable
// field path under the collection's namespace.
func (s *Store) RegisterModel(collection string, sample any, overrides map[string]pathtypes.PathConfig) error {
	return s.types.RegisterObject(collection, sample, overrides)
}

// RegisterIndexes declares one queryable path for a collection.
func (s *Store) RegisterIndexes(collection, path, typeName string, opts ...pathtypes.PathOption) error {
	return s.types.RegisterPath(collection, path, typeName, pathtypes.Indexable, opts...)
}

func (s *Store) lockKey(collection, key string) func() {
	return s.locks.Lock(collection + "\x00" + key)
}

// indexedValues extracts and encodes the index entries a record contributes
// for one path. An absent field is an empty contribution, not an error.
func (s *Store) indexedValues(collection, path string, record any) ([]string, error) {
	info, ok := s.types.Info(collection, path)
	if !ok {
		return nil, nil
	}
	v, _, err := s.types.ExtractValue(record, path, collection)
	if err != nil {
		if errors.Is(err, pathdex_errors.ErrPathNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if info.IsTagList {
		tags := v.([]any)
		out := make([]string, 0, len(tags))
		for _, tag := range tags {
			enc, err := encodeValue(info.TypeName, tag)
			if err != nil {
				return nil, err
			}
			out = append(out, enc)
		}
		return out, nil
	}
	enc, err := encodeValue(info.TypeName, v)
	if err != nil {
		return nil, err
	}
	return []string{enc}, nil
}

// UpdateWithIndexes writes a record and reconciles every registered index:
// stale entries from the prior value are removed, new ones added, and
// entries whose value did not change are left untouched. Record and index
// delta commit in one batch.
func (s *Store) UpdateWithIndexes(ctx context.Context, collection, key string, record any) error {
	if s.closed.Load() {
		return pathdex_errors.ErrClosed
	}
	if !s.types.HasNamespace(collection) {
		return fmt.Errorf("%w: %s", pathdex_errors.ErrCollectionUnknown, collection)
	}
	unlock := s.lockKey(collection, key)
	defer unlock()

	rkey := recordKey(collection, key)
	prevRaw, found, err := s.kv.Get(rkey)
	if err != nil {
		return err
	}
	var prev any
	if found {
		if prev, err = s.codec.Unmarshal(prevRaw); err != nil {
			return fmt.Errorf("decode prior record %s/%s: %w", collection, key, err)
		}
	}
	newRaw, err := s.codec.Marshal(record)
	if err != nil {
		return err
	}

	batch := s.kv.NewBatch()
	defer batch.Close()
	if err := batch.Set(rkey, newRaw); err != nil {
		return err
	}

	var added, removed int
	for _, p := range s.types.IndexablePaths(collection) {
		var olds []string
		if found {
			if olds, err = s.indexedValues(collection, p, prev); err != nil {
				return err
			}
		}
		news, err := s.indexedValues(collection, p, record)
		if err != nil {
			return err
		}
		oldSet := make(map[string]bool, len(olds))
		for _, v := range olds {
			oldSet[v] = true
		}
		newSet := make(map[string]bool, len(news))
		for _, v := range news {
			newSet[v] = true
		}
		for _, v := range olds {
			if !newSet[v] {
				if err := batch.Delete(indexKey(collection, p, v, key)); err != nil {
					return err
				}
				removed++
			}
		}
		for _, v := range news {
			if !oldSet[v] {
				if err := batch.Set(indexKey(collection, p, v, key), nil); err != nil {
					return err
				}
				added++
			}
		}
	}
	if err := batch.Commit(); err != nil {
		return err
	}
	s.cache.Put(string(rkey), newRaw)
	UpdateCount.WithLabelValues(collection).Inc()
	IndexEntriesWritten.WithLabelValues(collection).Add(float64(added))
	IndexEntriesRemoved.WithLabelValues(collection).Add(float64(removed))
	s.log.DebugCtx(ctx, "record updated", "collection", collection, "key", key,
		"index_added", added, "index_removed", removed)
	return nil
}

// DeleteWithIndexes removes a record and every index entry derived from its
// last stored value, in one batch. Deleting an absent key is a no-op.
func (s *Store) DeleteWithIndexes(ctx context.Context, collection, key string) error {
	if s.closed.Load() {
		return pathdex_errors.ErrClosed
	}
	if !s.types.HasNamespace(collection) {
		return fmt.Errorf("%w: %s", pathdex_errors.ErrCollectionUnknown, collection)
	}
	unlock := s.lockKey(collection, key)
	defer unlock()

	rkey := recordKey(collection, key)
	prevRaw, found, err := s.kv.Get(rkey)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	prev, err := s.codec.Unmarshal(prevRaw)
	if err != nil {
		return fmt.Errorf("decode prior record %s/%s: %w", collection, key, err)
	}

	batch := s.kv.NewBatch()
	defer batch.Close()
	var removed int
	for _, p := range s.types.IndexablePaths(collection) {
		vals, err := s.indexedValues(collection, p, prev)
		if err != nil {
			return err
		}
		for _, v := range vals {
			if err := batch.Delete(indexKey(collection, p, v, key)); err != nil {
				return err
			}
			removed++
		}
	}
	if err := batch.Delete(rkey); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return err
	}
	s.cache.Remove(string(rkey))
	DeleteCount.WithLabelValues(collection).Inc()
	IndexEntriesRemoved.WithLabelValues(collection).Add(float64(removed))
	s.log.DebugCtx(ctx, "record deleted", "collection", collection, "key", key,
		"index_removed", removed)
	return nil
}

// Get reads one record by primary key through the read-through cache.
func (s *Store) Get(collection, key string) (any, bool, error) {
	raw, found, err := s.getRecordRaw(recordKey(collection, key))
	if err != nil || !found {
		return nil, found, err
	}
	rec, err := s.codec.Unmarshal(raw)
	if err != nil {
		return nil, true, err
	}
	return rec, true, nil
}

func (s *Store) getRecordRaw(rkey []byte) ([]byte, bool, error) {
	ck := string(rkey)
	if raw, ok := s.cache.Get(ck); ok {
		return raw, true, nil
	}
	raw, found, err := s.kv.Get(rkey)
	if err != nil || !found {
		return nil, found, err
	}
	s.cache.Put(ck, raw)
	return raw, true, nil
}

// Close releases the underlying store handle, which the Store owns for its
// lifetime. Further writes and scans fail with ErrClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.kv.Close()
}
