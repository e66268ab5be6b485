package kv

import (
	"iter"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Pebble adapts a pebble.DB to the Store interface.
type Pebble struct {
	db *pebble.DB
	wo *pebble.WriteOptions
}

// Open opens (creating if missing) a pebble database at dir.
func Open(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Pebble{db: db, wo: pebble.Sync}, nil
}

// OpenMem opens an ephemeral in-memory database, used by tests and the
// REPL's scratch mode.
func OpenMem() (*Pebble, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, err
	}
	return &Pebble{db: db, wo: pebble.NoSync}, nil
}

func (p *Pebble) DB() *pebble.DB { return p.db }

func (p *Pebble) Get(key []byte) ([]byte, bool, error) {
	val, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := append([]byte(nil), val...)
	_ = closer.Close()
	return out, true, nil
}

func (p *Pebble) Set(key, value []byte) error {
	return p.db.Set(key, value, p.wo)
}

func (p *Pebble) Delete(key []byte) error {
	return p.db.Delete(key, p.wo)
}

func (p *Pebble) DeleteRange(lo, hi []byte) error {
	return p.db.DeleteRange(lo, hi, p.wo)
}

func (p *Pebble) NewBatch() Batch {
	return &pebbleBatch{b: p.db.NewBatch(), wo: p.wo}
}

func (p *Pebble) Scan(lo, hi []byte, reverse bool) iter.Seq2[KV, error] {
	return func(yield func(KV, error) bool) {
		it, err := p.db.NewIter(&pebble.IterOptions{
			LowerBound: lo,
			UpperBound: hi,
		})
		if err != nil {
			yield(KV{}, err)
			return
		}
		defer it.Close()
		advance := it.Next
		valid := it.First()
		if reverse {
			advance = it.Prev
			valid = it.Last()
		}
		for ; valid; valid = advance() {
			k := append([]byte(nil), it.Key()...)
			v := append([]byte(nil), it.Value()...)
			if !yield(KV{Key: k, Value: v}, nil) {
				return
			}
		}
		if err := it.Error(); err != nil {
			yield(KV{}, err)
		}
	}
}

func (p *Pebble) Close() error {
	return p.db.Close()
}

type pebbleBatch struct {
	b  *pebble.Batch
	wo *pebble.WriteOptions
}

func (pb *pebbleBatch) Set(key, value []byte) error {
	return pb.b.Set(key, value, nil)
}

func (pb *pebbleBatch) Delete(key []byte) error {
	return pb.b.Delete(key, nil)
}

func (pb *pebbleBatch) Commit() error {
	return pb.b.Commit(pb.wo)
}

func (pb *pebbleBatch) Close() error {
	return pb.b.Close()
}
