// Package algo contains the search helpers used when walking node blocks.
package algo

import (
	"github.com/weixu8/btree-db/internal/base"
)

// Search binary-searches the node's items for key. It returns the index of
// the matching item and true, or the insertion index (the first item whose
// key is greater than key) and false. The insertion index also selects the
// child to descend into.
func Search(node *base.Node, key *base.Key) (int, bool) {
	left, right := 0, node.Count
	for left < right {
		i := left + (right-left)/2
		cmp := key.Compare(&node.Items[i].Key)
		if cmp == 0 {
			return i, true
		}
		if cmp < 0 {
			right = i
		} else {
			left = i + 1
		}
	}
	return left, false
}

// CanLend reports whether a sibling holding count items can give one away
// without dropping below the minimum occupancy.
func CanLend(count int) bool {
	return count > base.MinItems
}

// Underflow reports whether a non-root node holding count items needs repair.
func Underflow(count int) bool {
	return count < base.MinItems
}

// RotateRight moves the last item of left up into parent at sep and the old
// separator down to the front of right. left and right are the children on
// either side of parent.Items[sep].
func RotateRight(parent *base.Node, sep int, left, right *base.Node) {
	copy(right.Items[1:right.Count+2], right.Items[:right.Count+1])
	right.Count++
	right.Items[0].Key = parent.Items[sep].Key
	right.Items[0].Offset = parent.Items[sep].Offset
	right.Items[0].Child = left.Items[left.Count].Child

	last := left.Count - 1
	parent.Items[sep].Key = left.Items[last].Key
	parent.Items[sep].Offset = left.Items[last].Offset

	left.Items[left.Count] = base.Item{}
	left.Items[last].Key = base.Key{}
	left.Items[last].Offset = 0
	left.Count--
}

// RotateLeft moves the first item of right up into parent at sep and the old
// separator down to the end of left.
func RotateLeft(parent *base.Node, sep int, left, right *base.Node) {
	n := left.Count
	left.Items[n].Key = parent.Items[sep].Key
	left.Items[n].Offset = parent.Items[sep].Offset
	left.Items[n+1].Child = right.Items[0].Child
	left.Count++

	parent.Items[sep].Key = right.Items[0].Key
	parent.Items[sep].Offset = right.Items[0].Offset

	copy(right.Items[:right.Count], right.Items[1:right.Count+1])
	right.Items[right.Count] = base.Item{}
	right.Count--
}

// Merge appends the separator at sep and all of right to left, then drops
// the separator and right from parent. The caller frees right's block.
func Merge(parent *base.Node, sep int, left, right *base.Node) error {
	n := left.Count
	if n+1+right.Count >= base.MaxItems {
		return base.ErrNodeOverflow
	}

	left.Items[n].Key = parent.Items[sep].Key
	left.Items[n].Offset = parent.Items[sep].Offset
	copy(left.Items[n+1:n+2+right.Count], right.Items[:right.Count+1])
	left.Count = n + 1 + right.Count

	parent.RemoveAt(sep)
	return nil
}
