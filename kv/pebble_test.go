package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPebbleGetSetDelete(t *testing.T) {
	p, err := OpenMem()
	require.NoError(t, err)
	defer p.Close()

	_, found, err := p.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, p.Set([]byte("a"), []byte("1")))
	v, found, err := p.Get([]byte("a"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, p.Delete([]byte("a")))
	_, found, err = p.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPebbleScan(t *testing.T) {
	p, err := OpenMem()
	require.NoError(t, err)
	defer p.Close()

	for _, k := range []string{"k1", "k2", "k3", "x9"} {
		require.NoError(t, p.Set([]byte(k), []byte("v"+k)))
	}

	var keys []string
	for pair, err := range p.Scan([]byte("k"), []byte("l"), false) {
		require.NoError(t, err)
		keys = append(keys, string(pair.Key))
	}
	assert.Equal(t, []string{"k1", "k2", "k3"}, keys)

	keys = nil
	for pair, err := range p.Scan([]byte("k"), []byte("l"), true) {
		require.NoError(t, err)
		keys = append(keys, string(pair.Key))
	}
	assert.Equal(t, []string{"k3", "k2", "k1"}, keys)

	// early break releases the iterator without side effects
	for pair := range p.Scan(nil, nil, false) {
		_ = pair
		break
	}
}

func TestPebbleBatchAtomicApply(t *testing.T) {
	p, err := OpenMem()
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Set([]byte("old"), []byte("x")))

	b := p.NewBatch()
	require.NoError(t, b.Set([]byte("new"), []byte("y")))
	require.NoError(t, b.Delete([]byte("old")))
	require.NoError(t, b.Commit())
	require.NoError(t, b.Close())

	_, found, _ := p.Get([]byte("old"))
	assert.False(t, found)
	v, found, _ := p.Get([]byte("new"))
	assert.True(t, found)
	assert.Equal(t, []byte("y"), v)
}

func TestPebbleDeleteRange(t *testing.T) {
	p, err := OpenMem()
	require.NoError(t, err)
	defer p.Close()

	for _, k := range []string{"idx:a", "idx:b", "rec:a"} {
		require.NoError(t, p.Set([]byte(k), nil))
	}
	require.NoError(t, p.DeleteRange([]byte("idx:"), []byte("idx;")))

	var keys []string
	for pair, err := range p.Scan(nil, nil, false) {
		require.NoError(t, err)
		keys = append(keys, string(pair.Key))
	}
	assert.Equal(t, []string{"rec:a"}, keys)
}
