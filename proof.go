package cell

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// PrunedBranchOf replaces c by a pruned branch that keeps only its hashes
// and depths. merkleDepth is the number of merkle cells above the branch and
// must be greater than the level of c.
func PrunedBranchOf(c *Cell, merkleDepth int) (*Cell, error) {
	if merkleDepth < 1 || merkleDepth > MaxLevel {
		return nil, xerrors.Errorf("merkle depth %d out of range [1, %d]", merkleDepth, MaxLevel)
	}
	if c.Level() >= merkleDepth {
		return nil, xerrors.Errorf("cannot prune a level %d cell at merkle depth %d", c.Level(), merkleDepth)
	}
	mask := c.mask | LevelMask(1<<(merkleDepth-1))

	var b BitString
	b.appendWhole([]byte{byte(KindPrunedBranch), byte(mask)})
	var levels []int
	for level := 0; level <= c.Level(); level++ {
		if c.mask.IsSignificant(level) {
			levels = append(levels, level)
		}
	}
	for _, level := range levels {
		h := c.hash(level)
		b.appendWhole(h[:])
	}
	var d [2]byte
	for _, level := range levels {
		binary.BigEndian.PutUint16(d[:], c.depth(level))
		b.appendWhole(d[:])
	}
	return New(KindPrunedBranch, b, nil)
}

// MerkleProofOf wraps body into a merkle proof cell.
func MerkleProofOf(body *Cell) (*Cell, error) {
	var b BitString
	b.appendWhole([]byte{byte(KindMerkleProof)})
	appendHashDepth(&b, body)
	return New(KindMerkleProof, b, []*Cell{body})
}

// MerkleUpdateOf builds a merkle update between two states.
func MerkleUpdateOf(from, to *Cell) (*Cell, error) {
	var b BitString
	b.appendWhole([]byte{byte(KindMerkleUpdate)})
	h0, h1 := from.hash(0), to.hash(0)
	b.appendWhole(h0[:])
	b.appendWhole(h1[:])
	var d [2]byte
	binary.BigEndian.PutUint16(d[:], from.depth(0))
	b.appendWhole(d[:])
	binary.BigEndian.PutUint16(d[:], to.depth(0))
	b.appendWhole(d[:])
	return New(KindMerkleUpdate, b, []*Cell{from, to})
}

// LibraryOf builds a library reference to c.
func LibraryOf(c *Cell) (*Cell, error) {
	var b BitString
	b.appendWhole([]byte{byte(KindLibrary)})
	h := c.Hash()
	b.appendWhole(h[:])
	return New(KindLibrary, b, nil)
}

func appendHashDepth(b *BitString, c *Cell) {
	h := c.hash(0)
	b.appendWhole(h[:])
	var d [2]byte
	binary.BigEndian.PutUint16(d[:], c.depth(0))
	b.appendWhole(d[:])
}

// CreateProof builds a merkle proof of root. Every reference for which keep
// returns false is replaced by a pruned branch; kept references are
// visited recursively. path holds the ref indexes leading to the cell.
func CreateProof(root *Cell, keep func(path []int, c *Cell) bool) (*Cell, error) {
	body, err := prune(root, nil, 1, keep)
	if err != nil {
		return nil, xerrors.Errorf("pruning proof body: %w", err)
	}
	return MerkleProofOf(body)
}

func prune(c *Cell, path []int, merkleDepth int, keep func([]int, *Cell) bool) (*Cell, error) {
	if c.kind == KindPrunedBranch || len(c.refs) == 0 {
		return c, nil
	}
	childDepth := merkleDepth
	if c.kind == KindMerkleProof || c.kind == KindMerkleUpdate {
		childDepth++
	}

	refs := make([]*Cell, len(c.refs))
	for i, r := range c.refs {
		p := childPath(path, i)
		var err error
		switch {
		case keep(p, r):
			refs[i], err = prune(r, p, childDepth, keep)
		case r.kind == KindPrunedBranch:
			refs[i] = r
		default:
			refs[i], err = PrunedBranchOf(r, childDepth)
		}
		if err != nil {
			return nil, xerrors.Errorf("ref %v: %w", p, err)
		}
	}
	return New(c.kind, c.bits, refs)
}
