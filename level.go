package cell

import "math/bits"

// MaxLevel is the highest Merkle level a cell can have.
const MaxLevel = 3

// LevelMask marks the Merkle levels a cell is significant at. Bit i set
// means the cell has a distinct hash at level i+1.
type LevelMask uint8

func (m LevelMask) Level() int {
	return bits.Len8(uint8(m))
}

// HashIndex is the position of the top hash in the per-level hash table.
func (m LevelMask) HashIndex() int {
	return bits.OnesCount8(uint8(m))
}

func (m LevelMask) HashCount() int {
	return m.HashIndex() + 1
}

// Apply restricts the mask to levels below level.
func (m LevelMask) Apply(level int) LevelMask {
	return m & LevelMask(1<<level-1)
}

func (m LevelMask) IsSignificant(level int) bool {
	return level == 0 || (m>>(level-1))&1 != 0
}
