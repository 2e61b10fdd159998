package btreedb

import (
	"github.com/pkg/errors"

	"github.com/weixu8/btree-db/internal/algo"
	"github.com/weixu8/btree-db/internal/base"
)

// insertion carries one Put through the recursive descent.
type insertion struct {
	key   base.Key
	value []byte

	offset  uint64 // value record of key once the insert finishes
	created bool   // false when key was already present
}

// insertTopLevel inserts into the tree and grows a new root when the old one
// fills up or when the tree is empty.
func (s *Store) insertTopLevel(ins *insertion) error {
	var (
		median base.Item
		right  uint32
	)

	if s.root != 0 {
		if err := s.insertNode(s.root, ins); err != nil {
			return err
		}

		node, err := s.cache.Acquire(s.root)
		if err != nil {
			return err
		}
		if !node.IsFull() {
			s.cache.Release(node, s.root)
			return nil
		}
		median, right, err = s.split(node, s.root)
		if err != nil {
			return err
		}
	} else {
		offset, err := s.values.Append(ins.value)
		if err != nil {
			return err
		}
		ins.offset, ins.created = offset, true
		median = base.Item{Key: ins.key, Offset: offset}
	}

	root := base.NewNode()
	if err := root.InsertAt(0, &median.Key, median.Offset, s.root, right); err != nil {
		return err
	}
	offset, err := s.allocateNode()
	if err != nil {
		return err
	}
	if err := s.cache.Flush(root, offset); err != nil {
		return err
	}

	old := s.root
	s.root = offset
	s.depth++
	if old != 0 {
		s.logger.Info("root split", "old_root", old, "root", offset, "depth", s.depth)
	}
	return nil
}

// insertNode inserts into the subtree at offset. A child left full by the
// recursive call is split here and its median lands in this node; this node
// may then be full itself, which its own parent handles.
func (s *Store) insertNode(offset uint32, ins *insertion) error {
	node, err := s.cache.Acquire(offset)
	if err != nil {
		return err
	}
	if node.IsFull() {
		return errors.Wrapf(ErrCorruption, "node at %d stored full", offset)
	}

	i, found := algo.Search(node, &ins.key)
	if found {
		ins.offset = node.Items[i].Offset
		s.cache.Release(node, offset)
		return nil
	}

	var (
		item  base.Item
		left  = node.Child(i)
		right uint32
	)

	if left != 0 {
		if err := s.insertNode(left, ins); err != nil {
			return err
		}

		child, err := s.cache.Acquire(left)
		if err != nil {
			return err
		}
		if !child.IsFull() {
			s.cache.Release(child, left)
			s.cache.Release(node, offset)
			return nil
		}
		item, right, err = s.split(child, left)
		if err != nil {
			return err
		}
	} else {
		valueOffset, err := s.values.Append(ins.value)
		if err != nil {
			return err
		}
		ins.offset, ins.created = valueOffset, true
		item = base.Item{Key: ins.key, Offset: valueOffset}
	}

	if err := node.InsertAt(i, &item.Key, item.Offset, left, right); err != nil {
		return errors.Wrapf(err, "insert into node at %d", offset)
	}
	return s.cache.Flush(node, offset)
}

// split moves the upper half of the full node at offset into a new sibling
// and writes both. It returns the median item and the sibling's offset; the
// caller owns placing the median in the parent.
func (s *Store) split(node *base.Node, offset uint32) (base.Item, uint32, error) {
	sibling := base.NewNode()
	median := node.Split(sibling)

	siblingOffset, err := s.allocateNode()
	if err != nil {
		return base.Item{}, 0, err
	}
	if err := s.cache.Flush(sibling, siblingOffset); err != nil {
		return base.Item{}, 0, err
	}
	if err := s.cache.Flush(node, offset); err != nil {
		return base.Item{}, 0, err
	}

	s.splits.Add(1)
	return median, siblingOffset, nil
}

// allocateNode returns a chunk for a new node block.
func (s *Store) allocateNode() (uint32, error) {
	offset, reused, err := s.pager.AllocateNode()
	if err != nil {
		return 0, err
	}
	if reused {
		s.logger.Info("node chunk reused", "offset", offset, "free_chunks", s.pager.Stats().FreeChunks)
	}
	return offset, nil
}

// lookup descends from the root and returns the value offset stored for key.
func (s *Store) lookup(key *base.Key) (uint64, bool, error) {
	offset := s.root
	for offset != 0 {
		node, err := s.cache.Acquire(offset)
		if err != nil {
			return 0, false, err
		}

		i, found := algo.Search(node, key)
		if found {
			valueOffset := node.Items[i].Offset
			s.cache.Release(node, offset)
			return valueOffset, true, nil
		}

		next := node.Child(i)
		s.cache.Release(node, offset)
		offset = next
	}
	return 0, false, nil
}

// walk visits the subtree at offset in key order.
func (s *Store) walk(offset uint32, fn func(key, value []byte) error) error {
	if offset == 0 {
		return nil
	}

	node, err := s.cache.Acquire(offset)
	if err != nil {
		return err
	}

	for i := 0; i < node.Count; i++ {
		if err := s.walk(node.Child(i), fn); err != nil {
			return err
		}
		value, err := s.values.Read(node.Items[i].Offset)
		if err != nil {
			return err
		}
		if err := fn(node.Items[i].Key.Bytes(), value); err != nil {
			return err
		}
	}
	if err := s.walk(node.Child(node.Count), fn); err != nil {
		return err
	}

	s.cache.Release(node, offset)
	return nil
}

// checkTree verifies the structure below the root and that the measured depth
// matches the stored one.
func (s *Store) checkTree() error {
	if s.root == 0 {
		if s.depth != 0 {
			return errors.Wrapf(ErrCorruption, "empty tree with depth %d", s.depth)
		}
		return nil
	}

	c := checker{store: s, leafDepth: -1}
	if err := c.node(s.root, nil, nil, 1); err != nil {
		return err
	}
	if c.leafDepth != s.depth {
		return errors.Wrapf(ErrCorruption, "leaves at depth %d, expected %d", c.leafDepth, s.depth)
	}
	return nil
}

type checker struct {
	store     *Store
	leafDepth int
}

// node checks the subtree at offset, whose keys must lie strictly between lo
// and hi (nil means unbounded).
func (c *checker) node(offset uint32, lo, hi *base.Key, depth int) error {
	s := c.store
	if depth > maxDepth {
		return errors.Wrapf(ErrCorruption, "node at %d below depth %d", offset, maxDepth)
	}

	node, err := s.cache.Acquire(offset)
	if err != nil {
		return err
	}

	if node.Count == 0 {
		return errors.Wrapf(ErrCorruption, "empty node at %d", offset)
	}
	if node.IsFull() {
		return errors.Wrapf(ErrCorruption, "node at %d stored full", offset)
	}
	if offset != s.root && algo.Underflow(node.Count) {
		return errors.Wrapf(ErrCorruption, "node at %d holds %d items, minimum %d", offset, node.Count, base.MinItems)
	}

	prev := lo
	for i := 0; i < node.Count; i++ {
		key := &node.Items[i].Key
		if key[0] == 0 {
			return errors.Wrapf(ErrCorruption, "empty key in node at %d slot %d", offset, i)
		}
		if prev != nil && prev.Compare(key) >= 0 {
			return errors.Wrapf(ErrCorruption, "key %q out of order in node at %d", key.String(), offset)
		}
		prev = key
	}
	if hi != nil && prev.Compare(hi) >= 0 {
		return errors.Wrapf(ErrCorruption, "key %q above bound in node at %d", prev.String(), offset)
	}

	if node.IsLeaf() {
		for i := 1; i <= node.Count; i++ {
			if node.Child(i) != 0 {
				return errors.Wrapf(ErrCorruption, "leaf at %d has child in slot %d", offset, i)
			}
		}
		if c.leafDepth < 0 {
			c.leafDepth = depth
		} else if c.leafDepth != depth {
			return errors.Wrapf(ErrCorruption, "leaf at %d on depth %d, others on %d", offset, depth, c.leafDepth)
		}
	} else {
		for i := 0; i <= node.Count; i++ {
			child := node.Child(i)
			if child == 0 {
				return errors.Wrapf(ErrCorruption, "branch at %d missing child %d", offset, i)
			}
			childLo, childHi := lo, hi
			if i > 0 {
				childLo = &node.Items[i-1].Key
			}
			if i < node.Count {
				childHi = &node.Items[i].Key
			}
			if err := c.node(child, childLo, childHi, depth+1); err != nil {
				return err
			}
		}
	}

	for i := 0; i < node.Count; i++ {
		if _, err := s.values.Read(node.Items[i].Offset); err != nil {
			return errors.Wrapf(err, "value of %q", node.Items[i].Key.String())
		}
	}

	s.cache.Release(node, offset)
	return nil
}
