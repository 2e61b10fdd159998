package btreedb

import (
	"github.com/pkg/errors"

	"github.com/weixu8/btree-db/internal/algo"
	"github.com/weixu8/btree-db/internal/base"
)

// deleteTopLevel removes key from the tree and collapses the root when it is
// left without items.
func (s *Store) deleteTopLevel(key *base.Key) (bool, error) {
	found, err := s.deleteNode(s.root, key)
	if err != nil || !found {
		return found, err
	}

	root, err := s.cache.Acquire(s.root)
	if err != nil {
		return false, err
	}
	if root.Count > 0 {
		s.cache.Release(root, s.root)
		return true, nil
	}

	old := s.root
	s.root = root.Child(0)
	s.depth--
	s.cache.Discard(root, old)
	if err := s.pager.FreeNode(old); err != nil {
		return false, err
	}
	s.logger.Info("root collapsed", "old_root", old, "root", s.root, "depth", s.depth)
	return true, nil
}

// deleteNode removes key from the subtree at offset. Every child on the path
// is repaired on the way back up, so only the root may end up below the
// minimum occupancy.
func (s *Store) deleteNode(offset uint32, key *base.Key) (bool, error) {
	node, err := s.cache.Acquire(offset)
	if err != nil {
		return false, err
	}

	i, found := algo.Search(node, key)
	if found && node.IsLeaf() {
		node.RemoveAt(i)
		return true, s.cache.Flush(node, offset)
	}

	child := node.Child(i)
	if found {
		// The largest item of the left subtree takes the deleted slot.
		pred, err := s.removeMax(child)
		if err != nil {
			return false, err
		}
		node.Items[i].Key = pred.Key
		node.Items[i].Offset = pred.Offset
	} else {
		if child == 0 {
			s.cache.Release(node, offset)
			return false, nil
		}
		found, err = s.deleteNode(child, key)
		if err != nil {
			return false, err
		}
		if !found {
			s.cache.Release(node, offset)
			return false, nil
		}
	}

	changed, err := s.repair(node, i)
	if err != nil {
		return false, err
	}
	if changed || found {
		return true, s.cache.Flush(node, offset)
	}
	s.cache.Release(node, offset)
	return true, nil
}

// removeMax removes and returns the largest item of the subtree at offset.
func (s *Store) removeMax(offset uint32) (base.Item, error) {
	node, err := s.cache.Acquire(offset)
	if err != nil {
		return base.Item{}, err
	}
	if node.Count == 0 {
		return base.Item{}, errors.Wrapf(ErrCorruption, "empty node at %d", offset)
	}

	if node.IsLeaf() {
		last := node.Count - 1
		item := node.Items[last]
		item.Child = 0
		node.RemoveAt(last)
		return item, s.cache.Flush(node, offset)
	}

	last := node.Count
	item, err := s.removeMax(node.Child(last))
	if err != nil {
		return base.Item{}, err
	}
	changed, err := s.repair(node, last)
	if err != nil {
		return base.Item{}, err
	}
	if changed {
		return item, s.cache.Flush(node, offset)
	}
	s.cache.Release(node, offset)
	return item, nil
}

// repair brings the child in slot i of parent back to the minimum occupancy,
// borrowing through the parent from the left sibling, or from the right one
// when i is the first slot, and merging with that sibling when it has nothing
// to spare. It reports whether parent changed; the caller writes parent.
func (s *Store) repair(parent *base.Node, i int) (bool, error) {
	childOffset := parent.Child(i)
	child, err := s.cache.Acquire(childOffset)
	if err != nil {
		return false, err
	}
	if !algo.Underflow(child.Count) {
		s.cache.Release(child, childOffset)
		return false, nil
	}

	// sep is the parent slot between left and right.
	var (
		sep                     int
		left, right             *base.Node
		leftOffset, rightOffset uint32
	)
	if i > 0 {
		sep = i - 1
		leftOffset, rightOffset = parent.Child(i-1), childOffset
		right = child
		if left, err = s.cache.Acquire(leftOffset); err != nil {
			return false, err
		}
	} else {
		leftOffset, rightOffset = childOffset, parent.Child(1)
		left = child
		if right, err = s.cache.Acquire(rightOffset); err != nil {
			return false, err
		}
	}

	switch {
	case i > 0 && algo.CanLend(left.Count):
		algo.RotateRight(parent, sep, left, right)
	case i == 0 && algo.CanLend(right.Count):
		algo.RotateLeft(parent, sep, left, right)
	default:
		if err := algo.Merge(parent, sep, left, right); err != nil {
			return false, errors.Wrapf(err, "merge nodes at %d and %d", leftOffset, rightOffset)
		}
		if err := s.cache.Flush(left, leftOffset); err != nil {
			return false, err
		}
		s.cache.Discard(right, rightOffset)
		if err := s.pager.FreeNode(rightOffset); err != nil {
			return false, err
		}
		s.merges.Add(1)
		return true, nil
	}

	if err := s.cache.Flush(left, leftOffset); err != nil {
		return false, err
	}
	if err := s.cache.Flush(right, rightOffset); err != nil {
		return false, err
	}
	s.rotations.Add(1)
	return true, nil
}
