package algo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weixu8/btree-db/internal/base"
)

// Helper to create a node holding the given keys in order
func makeNode(t *testing.T, keys ...string) *base.Node {
	t.Helper()
	node := &base.Node{}
	for i, k := range keys {
		key, err := base.MakeKey([]byte(k))
		require.NoError(t, err)
		node.Items[i].Key = key
		node.Items[i].Offset = uint64(i + 1)
	}
	node.Count = len(keys)
	return node
}

func TestSearch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		keys  []string
		key   string
		want  int
		found bool
	}{
		{name: "empty_node", keys: nil, key: "key", want: 0},
		{name: "key_less_than_first", keys: []string{"b", "d"}, key: "a", want: 0},
		{name: "key_equal_first", keys: []string{"b", "d"}, key: "b", want: 0, found: true},
		{name: "key_between_keys", keys: []string{"b", "d"}, key: "c", want: 1},
		{name: "key_equal_last", keys: []string{"b", "d"}, key: "d", want: 1, found: true},
		{name: "key_greater_than_all", keys: []string{"b", "d"}, key: "z", want: 2},
		{name: "prefix_sorts_first", keys: []string{"ab", "abc"}, key: "abb", want: 1},
		{name: "shorter_key", keys: []string{"ab", "abc"}, key: "a", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := makeNode(t, tt.keys...)
			key, err := base.MakeKey([]byte(tt.key))
			require.NoError(t, err)

			got, found := Search(node, &key)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.found, found)
		})
	}
}

func TestSearchFullNode(t *testing.T) {
	t.Parallel()

	keys := make([]string, base.MaxItems)
	for i := range keys {
		keys[i] = string(rune('A'+i/26)) + string(rune('a'+i%26))
	}
	node := makeNode(t, keys...)

	for i, k := range keys {
		key, _ := base.MakeKey([]byte(k))
		got, found := Search(node, &key)
		assert.True(t, found, "key %q", k)
		assert.Equal(t, i, got)
	}

	key, _ := base.MakeKey([]byte("~"))
	got, found := Search(node, &key)
	assert.False(t, found)
	assert.Equal(t, base.MaxItems, got)
}

func TestOccupancy(t *testing.T) {
	t.Parallel()

	assert.True(t, Underflow(base.MinItems-1))
	assert.False(t, Underflow(base.MinItems))
	assert.False(t, CanLend(base.MinItems))
	assert.True(t, CanLend(base.MinItems+1))
}

// family builds a parent with one separator "m" over two children. Child
// slots carry distinct fake offsets so moves can be traced.
func family(t *testing.T, leftKeys, rightKeys []string) (parent, left, right *base.Node) {
	t.Helper()
	parent = makeNode(t, "m")
	parent.Items[0].Child = 1000
	parent.Items[1].Child = 2000

	left = makeNode(t, leftKeys...)
	for i := 0; i <= left.Count; i++ {
		left.Items[i].Child = uint32(100 + i)
	}
	right = makeNode(t, rightKeys...)
	for i := 0; i <= right.Count; i++ {
		right.Items[i].Child = uint32(200 + i)
	}
	return parent, left, right
}

func keysOf(n *base.Node) []string {
	var out []string
	for i := 0; i < n.Count; i++ {
		out = append(out, n.Items[i].Key.String())
	}
	return out
}

func TestRotateRight(t *testing.T) {
	t.Parallel()

	parent, left, right := family(t, []string{"a", "b", "c"}, []string{"x"})
	RotateRight(parent, 0, left, right)

	assert.Equal(t, []string{"c"}, keysOf(parent))
	assert.Equal(t, []string{"a", "b"}, keysOf(left))
	assert.Equal(t, []string{"m", "x"}, keysOf(right))

	// left keeps c's left child as its right-most child; its old right-most
	// child now leads right
	assert.Equal(t, uint32(102), left.Child(2))
	assert.Equal(t, uint32(103), right.Child(0))
	assert.Equal(t, uint32(200), right.Child(1))
	assert.Equal(t, uint32(201), right.Child(2))
	assert.Equal(t, base.Item{}, left.Items[3])
}

func TestRotateLeft(t *testing.T) {
	t.Parallel()

	parent, left, right := family(t, []string{"a"}, []string{"x", "y", "z"})
	RotateLeft(parent, 0, left, right)

	assert.Equal(t, []string{"x"}, keysOf(parent))
	assert.Equal(t, []string{"a", "m"}, keysOf(left))
	assert.Equal(t, []string{"y", "z"}, keysOf(right))

	assert.Equal(t, uint32(100), left.Child(0))
	assert.Equal(t, uint32(101), left.Child(1))
	assert.Equal(t, uint32(200), left.Child(2))
	assert.Equal(t, uint32(201), right.Child(0))
	assert.Equal(t, uint32(203), right.Child(2))
	assert.Equal(t, base.Item{}, right.Items[3])
}

func TestMerge(t *testing.T) {
	t.Parallel()

	parent, left, right := family(t, []string{"a", "b"}, []string{"x", "y"})
	require.NoError(t, Merge(parent, 0, left, right))

	assert.Equal(t, 0, parent.Count)
	assert.Equal(t, uint32(1000), parent.Child(0), "parent keeps the merged node")
	assert.Equal(t, []string{"a", "b", "m", "x", "y"}, keysOf(left))
	for i, want := range []uint32{100, 101, 102, 200, 201, 202} {
		assert.Equal(t, want, left.Child(i), "child %d", i)
	}
}

func TestMergeOverflow(t *testing.T) {
	t.Parallel()

	parent := makeNode(t, "m")
	left := &base.Node{Count: base.MaxItems / 2}
	right := &base.Node{Count: base.MaxItems / 2}
	assert.ErrorIs(t, Merge(parent, 0, left, right), base.ErrNodeOverflow)
	assert.Equal(t, 1, parent.Count, "parent untouched")
}
