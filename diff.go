package cell

import (
	"fmt"
)

// ChangeType denotes type of change in Change
type ChangeType int

// These constants define the changes that can be applied to a cell tree.
const (
	Add ChangeType = iota
	Remove
	Modify
)

func (t ChangeType) String() string {
	switch t {
	case Add:
		return "add"
	case Remove:
		return "remove"
	case Modify:
		return "modify"
	}
	return fmt.Sprintf("change(%d)", int(t))
}

// Change represents a change to a cell tree. Path holds the ref indexes
// leading from the root to the changed cell.
//
// Add and Remove report whole subtrees. Modify reports a cell whose kind or
// bits changed; changes below it are reported separately.
type Change struct {
	Type   ChangeType
	Path   []int
	Before *Cell
	After  *Cell
}

func (ch Change) String() string {
	return fmt.Sprintf("%s %v", ch.Type, ch.Path)
}

// Diff returns the changes that turn prev into cur, in pre-order. Subtrees
// with equal representation hashes are skipped.
func Diff(prev, cur *Cell) []*Change {
	var changes []*Change
	emit := func(ch *Change) {
		changes = append(changes, ch)
	}
	var descend func(prev, cur *Cell, path []int)
	descend = func(prev, cur *Cell, path []int) {
		diffCell(prev, cur, path, emit, descend)
	}
	descend(prev, cur, nil)
	return changes
}

// diffCell compares a single pair of cells. Changes local to the pair go to
// emit; pairs of children that still need comparing go to descend.
func diffCell(prev, cur *Cell, path []int, emit func(*Change), descend func(prev, cur *Cell, path []int)) {
	switch {
	case prev == nil && cur == nil:
		return
	case prev == nil:
		emit(&Change{Type: Add, Path: path, After: cur})
		return
	case cur == nil:
		emit(&Change{Type: Remove, Path: path, Before: prev})
		return
	case prev.Hash() == cur.Hash():
		return
	}

	if prev.kind != cur.kind || !prev.bits.Equal(cur.bits) {
		emit(&Change{Type: Modify, Path: path, Before: prev, After: cur})
	}

	for i := 0; i < max(len(prev.refs), len(cur.refs)); i++ {
		var p, c *Cell
		if i < len(prev.refs) {
			p = prev.refs[i]
		}
		if i < len(cur.refs) {
			c = cur.refs[i]
		}
		descend(p, c, childPath(path, i))
	}
}
