package base

import (
	"encoding/binary"
	"sync"
)

// Pool recycles node buffers dropped by the node cache.
var Pool = sync.Pool{
	New: func() any {
		return &Node{}
	},
}

// Item is one (key, value offset, left child offset) triple.
type Item struct {
	Key    Key
	Offset uint64 // value record offset in the data file
	Child  uint32 // node holding keys less than Key, 0 in a leaf
}

// Node is the decoded form of one node block.
//
// NODE BLOCK LAYOUT (NodeSize = 4065 bytes):
// ┌─────────────────────────────────────────────────────────────────────┐
// │ Item[0]   Key (20) | Offset (8) | Child (4)                         │
// ├─────────────────────────────────────────────────────────────────────┤
// │ Item[1]                                                             │
// ├─────────────────────────────────────────────────────────────────────┤
// │ ...                                                                 │
// ├─────────────────────────────────────────────────────────────────────┤
// │ Item[TableSize-1]                                                   │
// ├─────────────────────────────────────────────────────────────────────┤
// │ Count (1)                                                           │
// └─────────────────────────────────────────────────────────────────────┘
//
// Items[0..Count-1] are sorted by key. Items[i].Child is the subtree left
// of Items[i]; Items[Count].Child is the right-most subtree.
type Node struct {
	Items [TableSize]Item
	Count int
}

// NewNode returns a zeroed node from the pool.
func NewNode() *Node {
	n := Pool.Get().(*Node)
	n.Reset()
	return n
}

// Reset zeroes the node.
func (n *Node) Reset() {
	*n = Node{}
}

// Release hands the node back to the pool.
func (n *Node) Release() {
	Pool.Put(n)
}

// IsLeaf reports whether the node has no children. All children of a node
// are either present or absent, so the first slot decides.
func (n *Node) IsLeaf() bool {
	return n.Items[0].Child == 0
}

// IsFull reports whether the node must be split before it is stored.
func (n *Node) IsFull() bool {
	return n.Count >= MaxItems
}

// Child returns the child offset at slot i.
func (n *Node) Child(i int) uint32 {
	return n.Items[i].Child
}

// InsertAt shifts items i..Count right by one and stores the key at i with
// left as its left child and right as the child following it.
func (n *Node) InsertAt(i int, key *Key, offset uint64, left, right uint32) error {
	if n.Count >= MaxItems {
		return ErrNodeOverflow
	}
	n.Count++
	copy(n.Items[i+1:n.Count+1], n.Items[i:n.Count])
	n.Items[i].Key = *key
	n.Items[i].Offset = offset
	n.Items[i].Child = left
	n.Items[i+1].Child = right
	return nil
}

// RemoveAt drops the item at i together with the child slot to its right.
// The left child of the removed item takes its place.
func (n *Node) RemoveAt(i int) {
	left := n.Items[i].Child
	copy(n.Items[i:n.Count], n.Items[i+1:n.Count+1])
	n.Items[i].Child = left
	n.Items[n.Count] = Item{}
	n.Count--
}

// Split moves the items above SplitIndex into right and returns the median
// item. The node keeps the SplitIndex items below the median and the
// median's left child as its right-most child.
func (n *Node) Split(right *Node) Item {
	median := n.Items[SplitIndex]
	median.Child = 0

	right.Reset()
	right.Count = n.Count - SplitIndex - 1
	copy(right.Items[:right.Count+1], n.Items[SplitIndex+1:n.Count+1])

	for i := SplitIndex + 1; i <= n.Count; i++ {
		n.Items[i] = Item{}
	}
	n.Items[SplitIndex].Key = Key{}
	n.Items[SplitIndex].Offset = 0
	n.Count = SplitIndex

	return median
}

// Encode serializes the node into buf.
func (n *Node) Encode(buf []byte) error {
	if len(buf) < NodeSize {
		return ErrShortBuffer
	}
	if n.Count < 0 || n.Count > MaxItems {
		return ErrNodeOverflow
	}
	for i := range n.Items {
		b := buf[i*ItemSize:]
		copy(b[:KeyMaxLength], n.Items[i].Key[:])
		binary.LittleEndian.PutUint64(b[KeyMaxLength:], n.Items[i].Offset)
		binary.LittleEndian.PutUint32(b[KeyMaxLength+8:], n.Items[i].Child)
	}
	buf[NodeSize-1] = uint8(n.Count)
	return nil
}

// Decode deserializes a node block from buf.
func (n *Node) Decode(buf []byte) error {
	if len(buf) < NodeSize {
		return ErrShortBuffer
	}
	count := int(buf[NodeSize-1])
	if count > MaxItems {
		return ErrInvalidNode
	}
	for i := range n.Items {
		b := buf[i*ItemSize:]
		copy(n.Items[i].Key[:], b[:KeyMaxLength])
		n.Items[i].Offset = binary.LittleEndian.Uint64(b[KeyMaxLength:])
		n.Items[i].Child = binary.LittleEndian.Uint32(b[KeyMaxLength+8:])
	}
	n.Count = count
	return nil
}
