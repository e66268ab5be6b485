package pathdex

import (
	"context"
	"iter"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstep/pathdex/kv"
	"github.com/arcstep/pathdex/pathdex_errors"
	"github.com/arcstep/pathdex/pathtypes"
	"github.com/arcstep/pathdex/utils"
)

type testUser struct {
	Name string   `json:"name"`
	Age  int      `json:"age"`
	Tags []string `json:"tags,omitempty"`
	Home testHome `json:"home"`
}

type testHome struct {
	City     string  `json:"city"`
	Latitude float64 `json:"latitude"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := kv.OpenMem()
	require.NoError(t, err)
	s, err := New(db, &Options{Logger: utils.NopLogger{}, CacheSize: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.RegisterModel("users", testUser{}, map[string]pathtypes.PathConfig{
		"tags": {TypeName: pathtypes.TypeString, IsTagList: true, MaxTags: 3},
	}))
	return s
}

func collect[T any](seq func(yield func(T) bool)) []T {
	var out []T
	seq(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

func TestRangeQueryOverIntegerIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:1", testUser{Name: "alice", Age: 25}))
	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:2", testUser{Name: "bob", Age: 30}))
	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:3", testUser{Name: "carol", Age: 26}))

	// start inclusive, end exclusive: 26 stays out
	keys, err := s.IterKeysWithIndexes("users", "age", Query{Start: 22, End: 26})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1"}, collect(keys))

	keys, err = s.IterKeysWithIndexes("users", "age", Query{Start: 25, End: 31})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1", "user:3", "user:2"}, collect(keys))

	keys, err = s.IterKeysWithIndexes("users", "age", Query{Start: 25, End: 31, Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:2", "user:3", "user:1"}, collect(keys))

	// inverted range is empty, not an error
	keys, err = s.IterKeysWithIndexes("users", "age", Query{Start: 31, End: 25})
	require.NoError(t, err)
	assert.Empty(t, collect(keys))
}

func TestUpdateReplacesStaleEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:1", testUser{Name: "alice", Age: 25}))
	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:1", testUser{Name: "alice2", Age: 25}))

	keys, err := s.IterKeysWithIndexes("users", "name", Query{Value: "alice"})
	require.NoError(t, err)
	assert.Empty(t, collect(keys))

	keys, err = s.IterKeysWithIndexes("users", "name", Query{Value: "alice2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1"}, collect(keys))
}

func TestDeleteRemovesAllEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:1",
		testUser{Name: "alice", Age: 25, Tags: []string{"go", "db"}}))
	require.NoError(t, s.DeleteWithIndexes(ctx, "users", "user:1"))

	_, found, err := s.Get("users", "user:1")
	require.NoError(t, err)
	assert.False(t, found)

	for _, q := range []struct {
		path string
		val  any
	}{
		{"name", "alice"},
		{"age", 25},
		{"tags", "go"},
	} {
		keys, err := s.IterKeysWithIndexes("users", q.path, Query{Value: q.val})
		require.NoError(t, err)
		assert.Empty(t, collect(keys), q.path)
	}

	// deleting again is a no-op
	require.NoError(t, s.DeleteWithIndexes(ctx, "users", "user:1"))
}

func TestQueryMisuseFailsFast(t *testing.T) {
	s := newTestStore(t)

	_, err := s.IterKeysWithIndexes("nosuch", "age", Query{Value: 1})
	assert.ErrorIs(t, err, pathdex_errors.ErrCollectionUnknown)

	_, err = s.IterKeysWithIndexes("users", "shoe_size", Query{Value: 1})
	assert.ErrorIs(t, err, pathdex_errors.ErrPathNotFound)

	// nested records are structural, not queryable
	_, err = s.IterKeysWithIndexes("users", "home", Query{Value: "x"})
	assert.ErrorIs(t, err, pathdex_errors.ErrPathType)

	err = s.UpdateWithIndexes(context.Background(), "nosuch", "k", testUser{})
	assert.ErrorIs(t, err, pathdex_errors.ErrCollectionUnknown)
}

func TestTagListTruncation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:1",
		testUser{Name: "alice", Age: 25, Tags: []string{"t1", "t2", "t3", "t4", "t5"}}))

	for _, tag := range []string{"t1", "t2", "t3"} {
		keys, err := s.IterKeysWithIndexes("users", "tags", Query{Value: tag})
		require.NoError(t, err)
		assert.Equal(t, []string{"user:1"}, collect(keys), tag)
	}
	for _, tag := range []string{"t4", "t5"} {
		keys, err := s.IterKeysWithIndexes("users", "tags", Query{Value: tag})
		require.NoError(t, err)
		assert.Empty(t, collect(keys), tag)
	}
}

func TestNestedPathIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:1",
		testUser{Name: "alice", Age: 25, Home: testHome{City: "Beijing", Latitude: 39.909904}}))
	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:2",
		testUser{Name: "bob", Age: 30, Home: testHome{City: "Oslo", Latitude: 59.913868}}))

	keys, err := s.IterKeysWithIndexes("users", "home.latitude", Query{Start: 30.0, End: 50.0})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1"}, collect(keys))

	keys, err = s.IterKeysWithIndexes("users", "home.city", Query{Value: "Oslo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:2"}, collect(keys))
}

func TestItemsAndValuesWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, u := range []struct {
		key string
		age int
	}{
		{"user:1", 21}, {"user:2", 22}, {"user:3", 23},
	} {
		require.NoError(t, s.UpdateWithIndexes(ctx, "users", u.key, testUser{Name: u.key, Age: u.age}))
	}

	items, err := s.ItemsWithIndexes(ctx, "users", "age", Query{Start: 20, End: 30, Limit: 2})
	require.NoError(t, err)
	var got []string
	for pk, rec := range items {
		got = append(got, pk)
		m := rec.(map[string]any)
		assert.Equal(t, pk, m["name"])
	}
	assert.Equal(t, []string{"user:1", "user:2"}, got)

	vals, err := s.ValuesWithIndexes(ctx, "users", "age", Query{Value: 23})
	require.NoError(t, err)
	recs := collect(vals)
	require.Len(t, recs, 1)
	assert.Equal(t, "user:3", recs[0].(map[string]any)["name"])
}

func TestGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:1", testUser{Name: "alice", Age: 25}))

	rec, found, err := s.Get("users", "user:1")
	require.NoError(t, err)
	require.True(t, found)
	m := rec.(map[string]any)
	assert.Equal(t, "alice", m["name"])

	// second read is served by the cache
	_, _, err = s.Get("users", "user:1")
	require.NoError(t, err)
	assert.Greater(t, s.CacheStats().Hits, uint64(0))
}

func indexSnapshot(t *testing.T, s *Store, collection string) map[string]bool {
	t.Helper()
	lo, hi := indexCollectionBounds(collection)
	out := make(map[string]bool)
	for pair, err := range s.kv.Scan(lo, hi, false) {
		require.NoError(t, err)
		out[string(pair.Key)] = true
	}
	return out
}

func TestRebuildIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:1",
		testUser{Name: "alice", Age: 25, Tags: []string{"go"}}))
	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:2", testUser{Name: "bob", Age: 30}))

	before := indexSnapshot(t, s, "users")
	require.NotEmpty(t, before)

	require.NoError(t, s.RebuildIndexes(ctx, "users", 0))
	assert.Equal(t, before, indexSnapshot(t, s, "users"))

	// a second pass changes nothing either
	require.NoError(t, s.RebuildIndexes(ctx, "users", 1))
	assert.Equal(t, before, indexSnapshot(t, s, "users"))
}

func TestRebuildRepairsManualDamage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:1", testUser{Name: "alice", Age: 25}))
	before := indexSnapshot(t, s, "users")

	// simulate a crash that lost part of the index partition
	lo, hi := indexCollectionBounds("users")
	require.NoError(t, s.kv.DeleteRange(lo, hi))
	require.Empty(t, indexSnapshot(t, s, "users"))

	require.NoError(t, s.RebuildIndexes(ctx, "users", 0))
	assert.Equal(t, before, indexSnapshot(t, s, "users"))

	keys, err := s.IterKeysWithIndexes("users", "age", Query{Value: 25})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1"}, collect(keys))
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.UpdateWithIndexes(ctx, "users", "user:1", testUser{})
	assert.ErrorIs(t, err, pathdex_errors.ErrClosed)
	err = s.DeleteWithIndexes(ctx, "users", "user:1")
	assert.ErrorIs(t, err, pathdex_errors.ErrClosed)
	_, err = s.IterKeysWithIndexes("users", "age", Query{Value: 1})
	assert.ErrorIs(t, err, pathdex_errors.ErrClosed)
	err = s.RebuildIndexes(ctx, "users", 0)
	assert.ErrorIs(t, err, pathdex_errors.ErrClosed)
}

func TestRebuildUnknownCollection(t *testing.T) {
	s := newTestStore(t)
	err := s.RebuildIndexes(context.Background(), "nosuch", 0)
	assert.ErrorIs(t, err, pathdex_errors.ErrCollectionUnknown)
}

// Values containing key-layout delimiter characters must still land in
// their natural string-order slot of the index partition.
func TestRangeQueryOverDelimiterValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:1", testUser{Name: "a:", Age: 1}))
	require.NoError(t, s.UpdateWithIndexes(ctx, "users", "user:2", testUser{Name: "a0", Age: 2}))

	// "a0" < "a1" <= "a:" < "a;"
	keys, err := s.IterKeysWithIndexes("users", "name", Query{Start: "a1", End: "a;"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1"}, collect(keys))

	keys, err = s.IterKeysWithIndexes("users", "name", Query{Value: "a:"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1"}, collect(keys))

	keys, err = s.IterKeysWithIndexes("users", "name", Query{Value: "a0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:2"}, collect(keys))
}

func TestHighBytePrimaryKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pk := "\xff\xff:1"
	require.NoError(t, s.UpdateWithIndexes(ctx, "users", pk, testUser{Name: "alice", Age: 25}))

	keys, err := s.IterKeysWithIndexes("users", "name", Query{Value: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{pk}, collect(keys))

	// the record scan during a rebuild must reach the key too
	require.NoError(t, s.RebuildIndexes(ctx, "users", 0))
	keys, err = s.IterKeysWithIndexes("users", "age", Query{Value: 25})
	require.NoError(t, err)
	assert.Equal(t, []string{pk}, collect(keys))
}

func TestConcurrentUpdatesSameKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = s.UpdateWithIndexes(ctx, "users", "user:1", testUser{Name: "alice", Age: 20 + g})
			}
		}(g)
	}
	wg.Wait()

	// every interleaving must leave exactly one age entry, and it must
	// agree with the stored record
	lo := []byte(indexPathPrefix("users", "age"))
	var entries []string
	for pair, err := range s.kv.Scan(lo, prefixSuccessor(lo), false) {
		require.NoError(t, err)
		entries = append(entries, string(pair.Key))
	}
	require.Len(t, entries, 1)

	rec, found, err := s.Get("users", "user:1")
	require.NoError(t, err)
	require.True(t, found)
	age := int(rec.(map[string]any)["age"].(float64))
	keys, err := s.IterKeysWithIndexes("users", "age", Query{Value: age})
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1"}, collect(keys))
}

// scanErrKV fails every scan after one valid index entry.
type scanErrKV struct {
	kv.Store
}

func (f scanErrKV) Scan(lo, hi []byte, reverse bool) iter.Seq2[kv.KV, error] {
	return func(yield func(kv.KV, error) bool) {
		if !yield(kv.KV{Key: indexKey("users", "age", "x", "user:1")}, nil) {
			return
		}
		yield(kv.KV{}, assert.AnError)
	}
}

func TestIterKeysStopsOnScanFailure(t *testing.T) {
	db, err := kv.OpenMem()
	require.NoError(t, err)
	s, err := New(scanErrKV{db}, &Options{Logger: utils.NopLogger{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.RegisterModel("users", testUser{}, nil))

	keys, err := s.IterKeysWithIndexes("users", "age", Query{Start: 0, End: 100})
	require.NoError(t, err)
	// entries before the failure are delivered, then the sequence ends
	assert.Equal(t, []string{"user:1"}, collect(keys))
}
