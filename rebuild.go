package pathdex

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/arcstep/pathdex/pathdex_errors"
)

const defaultRebuildBatch = 10000

// RebuildIndexes drops every index entry of a collection and re-derives the
// whole index partition from the primary records, in bounded batches. It is
// the repair path for crashes mid-write, codec changes and newly registered
// indexable paths, and is idempotent: rebuilding a consistent index leaves
// it byte-identical. Concurrent updates to the collection during a rebuild
// are not coordinated; run it quiesced.
func (s *Store) RebuildIndexes(ctx context.Context, collection string, batchSize int) error {
	if s.closed.Load() {
		return pathdex_errors.ErrClosed
	}
	if !s.types.HasNamespace(collection) {
		return errors.Wrap(pathdex_errors.ErrCollectionUnknown, collection)
	}
	if batchSize <= 0 {
		batchSize = defaultRebuildBatch
	}
	started := time.Now()

	idxLo, idxHi := indexCollectionBounds(collection)
	if err := s.kv.DeleteRange(idxLo, idxHi); err != nil {
		return errors.Wrapf(err, "drop index partition for %s", collection)
	}

	paths := s.types.IndexablePaths(collection)
	batch := s.kv.NewBatch()
	defer func() { _ = batch.Close() }()
	pending, records, entries := 0, 0, 0

	recLo, recHi := recordScanBounds(collection)
	for pair, err := range s.kv.Scan(recLo, recHi, false) {
		if err != nil {
			return errors.Wrapf(err, "scan records of %s", collection)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		pk := recordKeyPK(pair.Key)
		rec, err := s.codec.Unmarshal(pair.Value)
		if err != nil {
			return errors.Wrapf(err, "decode record %s/%s", collection, pk)
		}
		records++
		for _, p := range paths {
			vals, err := s.indexedValues(collection, p, rec)
			if err != nil {
				return errors.Wrapf(err, "index %s/%s path %s", collection, pk, p)
			}
			for _, v := range vals {
				if err := batch.Set(indexKey(collection, p, v, pk), nil); err != nil {
					return err
				}
				pending++
				entries++
			}
		}
		if pending >= batchSize {
			if err := batch.Commit(); err != nil {
				return errors.Wrap(err, "flush rebuild batch")
			}
			if err := batch.Close(); err != nil {
				return err
			}
			batch = s.kv.NewBatch()
			pending = 0
		}
	}
	if err := batch.Commit(); err != nil {
		return errors.Wrap(err, "flush rebuild batch")
	}

	RebuildCount.WithLabelValues(collection).Inc()
	RebuildDuration.WithLabelValues(collection).Observe(float64(time.Since(started).Milliseconds()))
	s.log.InfoCtx(ctx, "index rebuild complete", "collection", collection,
		"records", records, "entries", entries, "took", time.Since(started))
	return nil
}
