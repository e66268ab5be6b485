package pathdex

import (
	"bytes"
	"context"
	"fmt"
	"iter"

	"github.com/arcstep/pathdex/pathdex_errors"
	"github.com/arcstep/pathdex/pathtypes"
)

// Query selects index entries of one path. Value requests an exact match
// and takes precedence over the range fields. Start is inclusive, End
// exclusive; a nil bound is open. Values are converted through the path's
// registered type before comparison, so range semantics follow the declared
// type's natural order, not the stored text.
type Query struct {
	Value   any
	Start   any
	End     any
	Reverse bool
	// Limit bounds ItemsWithIndexes and ValuesWithIndexes; 0 means all.
	Limit int
}

// IterKeysWithIndexes streams the primary keys whose indexed value for the
// path matches the query, in encoded-value order (ties broken by primary
// key). Misuse fails fast before any I/O: an unknown collection, an
// unregistered path and a structural path all return an error instead of an
// empty result.
func (s *Store) IterKeysWithIndexes(collection, path string, q Query) (iter.Seq[string], error) {
	if s.closed.Load() {
		return nil, pathdex_errors.ErrClosed
	}
	if !s.types.HasNamespace(collection) {
		return nil, fmt.Errorf("%w: %s", pathdex_errors.ErrCollectionUnknown, collection)
	}
	info, ok := s.types.Info(collection, path)
	if !ok {
		return nil, &pathdex_errors.NotFoundError{Path: path, Segment: "collection " + collection}
	}
	if info.Classification != pathtypes.Indexable {
		return nil, &pathdex_errors.TypeError{
			Path: path, Expected: "indexable", Actual: info.Classification.String(),
		}
	}

	prefix := indexPathPrefix(collection, path)
	lo := []byte(prefix)
	hi := prefixSuccessor(lo)
	if q.Value != nil {
		enc, err := s.encodeBound(collection, info.TypeName, q.Value)
		if err != nil {
			return nil, err
		}
		lo = []byte(prefix + escapeValue(enc) + valueSep)
		hi = prefixSuccessor(lo)
	} else {
		if q.Start != nil {
			enc, err := s.encodeBound(collection, info.TypeName, q.Start)
			if err != nil {
				return nil, err
			}
			lo = []byte(prefix + escapeValue(enc))
		}
		if q.End != nil {
			enc, err := s.encodeBound(collection, info.TypeName, q.End)
			if err != nil {
				return nil, err
			}
			hi = []byte(prefix + escapeValue(enc))
		}
	}
	IndexQueries.WithLabelValues(collection, path).Inc()
	if hi != nil && bytes.Compare(lo, hi) >= 0 {
		return func(yield func(string) bool) {}, nil
	}
	return func(yield func(string) bool) {
		for pair, err := range s.kv.Scan(lo, hi, q.Reverse) {
			if err != nil {
				s.log.Warn("index scan aborted", "collection", collection, "path", path, "err", err)
				return
			}
			if !yield(indexKeyPK(pair.Key)) {
				return
			}
		}
	}, nil
}

// encodeBound converts a caller-supplied query operand through the path's
// type converter and encodes it the same way stored entries were encoded.
func (s *Store) encodeBound(collection, typeName string, v any) (string, error) {
	conv, err := s.types.Convert(typeName, v)
	if err != nil {
		return "", &pathdex_errors.TypeError{Expected: typeName, Actual: fmt.Sprintf("%T", v)}
	}
	return encodeValue(typeName, conv)
}

// ItemsWithIndexes dereferences matching index entries into (primary key,
// record) pairs. An entry whose record has concurrently disappeared is
// skipped; a record that fails to decode is skipped with a warning.
func (s *Store) ItemsWithIndexes(ctx context.Context, collection, path string, q Query) (iter.Seq2[string, any], error) {
	keys, err := s.IterKeysWithIndexes(collection, path, q)
	if err != nil {
		return nil, err
	}
	return func(yield func(string, any) bool) {
		n := 0
		for pk := range keys {
			if q.Limit > 0 && n >= q.Limit {
				return
			}
			raw, found, err := s.getRecordRaw(recordKey(collection, pk))
			if err != nil {
				s.log.WarnCtx(ctx, "record read failed during index scan",
					"collection", collection, "key", pk, "err", err)
				continue
			}
			if !found {
				continue
			}
			rec, err := s.codec.Unmarshal(raw)
			if err != nil {
				s.log.WarnCtx(ctx, "record decode failed during index scan",
					"collection", collection, "key", pk, "err", err)
				continue
			}
			n++
			if !yield(pk, rec) {
				return
			}
		}
	}, nil
}

// ValuesWithIndexes is ItemsWithIndexes without the keys.
func (s *Store) ValuesWithIndexes(ctx context.Context, collection, path string, q Query) (iter.Seq[any], error) {
	items, err := s.ItemsWithIndexes(ctx, collection, path, q)
	if err != nil {
		return nil, err
	}
	return func(yield func(any) bool) {
		for _, rec := range items {
			if !yield(rec) {
				return
			}
		}
	}, nil
}
