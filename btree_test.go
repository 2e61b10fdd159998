package btreedb

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weixu8/btree-db/internal/base"
)

// benchKey formats i the way the benchmark driver does: "%dkey" in a 16 byte
// NUL padded buffer.
func benchKey(i int) []byte {
	key := make([]byte, 16)
	copy(key, fmt.Sprintf("%dkey", i))
	return key
}

func benchValue(i int) []byte {
	value := make([]byte, 100)
	copy(value, fmt.Sprintf("value of %d", i))
	return value
}

// Helper to read the root node directly
func rootNode(t *testing.T, s *Store) *base.Node {
	t.Helper()
	node, err := s.cache.Acquire(s.root)
	require.NoError(t, err)
	copied := *node
	s.cache.Release(node, s.root)
	return &copied
}

func collectKeys(t *testing.T, s *Store) []string {
	t.Helper()
	var keys []string
	require.NoError(t, s.ForEach(func(key, _ []byte) error {
		keys = append(keys, string(key))
		return nil
	}))
	return keys
}

func TestPutGet(t *testing.T) {
	t.Parallel()

	s, _ := setup(t)

	tests := []struct {
		key   string
		value string
	}{
		{key: "a", value: "first"},
		{key: "12345678901234567890", value: "max length key"},
		{key: "empty", value: ""},
		{key: "binary", value: "\x00\x01\x02\xff"},
	}

	for _, tt := range tests {
		require.NoError(t, s.Put([]byte(tt.key), []byte(tt.value)))
	}
	for _, tt := range tests {
		val, found, err := s.Get([]byte(tt.key))
		require.NoError(t, err)
		if assert.True(t, found, tt.key) {
			assert.Equal(t, tt.value, string(val))
		}
	}

	// Padding is not part of the key
	val, found, err := s.Get([]byte("a\x00\x00\x00"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "first", string(val))

	// Prefixes are distinct keys
	_, found, err = s.Get([]byte("emp"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDuplicatePutKeepsFirst(t *testing.T) {
	t.Parallel()

	s, name := setup(t)

	require.NoError(t, s.Put([]byte("key"), []byte("v1")))
	dataLen := fileSize(t, name+DataExt)
	indexLen := fileSize(t, name+IndexExt)

	require.NoError(t, s.Put([]byte("key"), []byte("v2")))
	require.NoError(t, s.Put([]byte("key\x00"), []byte("v3")))

	val, found, err := s.Get([]byte("key"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", string(val))

	assert.Equal(t, dataLen, fileSize(t, name+DataExt), "duplicate wrote a value record")
	assert.Equal(t, indexLen, fileSize(t, name+IndexExt))
	assert.Equal(t, uint64(2), s.Stats().Duplicates)
}

func TestSplitAtTableSize(t *testing.T) {
	t.Parallel()

	s, _ := setup(t)

	for i := 0; i < base.TableSize; i++ {
		key := fmt.Sprintf("key%06d", i)
		require.NoError(t, s.Put([]byte(key), []byte(key)))
		if i < base.MaxItems-1 {
			require.Equal(t, 1, s.Depth(), "split after %d keys", i+1)
		}
	}

	st := s.Stats()
	assert.Equal(t, uint64(1), st.Splits)
	assert.Equal(t, 2, st.Depth)

	root := rootNode(t, s)
	require.Equal(t, 1, root.Count)
	assert.Equal(t, fmt.Sprintf("key%06d", base.SplitIndex), root.Items[0].Key.String())

	left, err := s.cache.Acquire(root.Child(0))
	require.NoError(t, err)
	leftCount := left.Count
	leftLast := left.Items[left.Count-1].Key
	s.cache.Release(left, root.Child(0))

	right, err := s.cache.Acquire(root.Child(1))
	require.NoError(t, err)
	rightCount := right.Count
	rightFirst := right.Items[0].Key
	s.cache.Release(right, root.Child(1))

	assert.Equal(t, base.TableSize-1, leftCount+rightCount)
	assert.Equal(t, base.SplitIndex, leftCount)
	assert.Negative(t, leftLast.Compare(&root.Items[0].Key))
	assert.Positive(t, rightFirst.Compare(&root.Items[0].Key))
	assert.NoError(t, s.Check())
}

func TestInsertOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		order func(n int) []int
	}{
		{name: "sequential", order: func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i
			}
			return out
		}},
		{name: "reverse", order: func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = n - 1 - i
			}
			return out
		}},
		{name: "random", order: func(n int) []int {
			return rand.New(rand.NewPCG(1, 2)).Perm(n)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, _ := setup(t)
			numKeys := 3000
			for _, i := range tt.order(numKeys) {
				key := fmt.Sprintf("key%08d", i)
				require.NoError(t, s.Put([]byte(key), []byte(fmt.Sprintf("value%08d", i))))
			}
			require.NoError(t, s.Check())
			assert.Greater(t, s.Depth(), 1)

			keys := collectKeys(t, s)
			require.Len(t, keys, numKeys)
			for i, key := range keys {
				assert.Equal(t, fmt.Sprintf("key%08d", i), key)
			}

			for i := 0; i < numKeys; i += 37 {
				val, found, err := s.Get([]byte(fmt.Sprintf("key%08d", i)))
				require.NoError(t, err)
				assert.True(t, found)
				assert.Equal(t, fmt.Sprintf("value%08d", i), string(val))
			}
		})
	}
}

func TestForEachOrderIsByteOrder(t *testing.T) {
	t.Parallel()

	s, _ := setup(t)
	keys := []string{"b", "a", "ab", "aa", "B", "1", "10", "9", "~", "a\x01"}
	for _, k := range keys {
		require.NoError(t, s.Put([]byte(k), []byte(k)))
	}

	var got [][]byte
	require.NoError(t, s.ForEach(func(key, value []byte) error {
		assert.Equal(t, key, value)
		got = append(got, key)
		return nil
	}))
	require.Len(t, got, len(keys))
	for i := 1; i < len(got); i++ {
		assert.Negative(t, bytes.Compare(got[i-1], got[i]), "%q before %q", got[i-1], got[i])
	}
}

func TestForEachStops(t *testing.T) {
	t.Parallel()

	s, _ := setup(t)
	for i := 0; i < 500; i++ {
		require.NoError(t, s.Put([]byte(fmt.Sprintf("key%04d", i)), nil))
	}

	stop := errors.New("stop")
	calls := 0
	err := s.ForEach(func(_, _ []byte) error {
		calls++
		if calls == 200 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 200, calls)

	// The aborted walk leaves the store usable
	assert.NoError(t, s.Check())
	assert.Len(t, collectKeys(t, s), 500)
}

func TestBenchmarkScenario(t *testing.T) {
	t.Parallel()

	s, name := setup(t)

	for i := 1; i <= 5000; i++ {
		require.NoError(t, s.Put(benchKey(i), benchValue(i)))
	}

	val, found, err := s.Get(benchKey(2500))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, benchValue(2500), val)

	val, found, err = s.Get([]byte("2500key"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, benchValue(2500), val)

	_, found, err = s.Get(benchKey(9999999))
	require.NoError(t, err)
	assert.False(t, found)

	assert.Greater(t, s.Depth(), 1)
	assert.Greater(t, s.Stats().Splits, uint64(0))
	require.NoError(t, s.Check())

	// Data file holds the magic and exactly one record per key
	assert.Equal(t, int64(base.DataHeaderSize+5000*(4+100)), fileSize(t, name+DataExt))

	require.NoError(t, s.Close())
	s = reopen(t, name, WithVerifyOnOpen())
	val, found, err = s.Get(benchKey(1))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, benchValue(1), val)
}

func TestNodesNeverStoredFull(t *testing.T) {
	t.Parallel()

	s, name := setup(t)
	for _, i := range rand.New(rand.NewPCG(3, 4)).Perm(4000) {
		require.NoError(t, s.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v")))
	}
	require.NoError(t, s.Close())

	// Read every node chunk straight from the file
	raw, err := os.ReadFile(name + IndexExt)
	require.NoError(t, err)
	nodes := 0
	for off := 4096; off+base.NodeSize <= len(raw); off += 4096 {
		var node base.Node
		require.NoError(t, node.Decode(raw[off:]))
		assert.Less(t, node.Count, base.MaxItems, "node at %d", off)
		nodes++
	}
	assert.Greater(t, nodes, 1)
}
