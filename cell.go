package cell

import (
	"encoding/binary"
	"fmt"
	"strings"

	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/xerrors"
)

const (
	MaxBits  = 1023
	MaxRefs  = 4
	MaxDepth = 1024
)

// Cell is an immutable node of up to 1023 bits and up to 4 references.
// Hashes and depths for every significant level are computed when the cell
// is constructed.
type Cell struct {
	kind Kind
	bits BitString
	refs []*Cell
	mask LevelMask

	// hashes and depths are indexed by hash index. Pruned branches only
	// keep their top entry, lower ones are read from their data.
	hashes [][32]byte
	depths []uint16
}

var emptyCell = func() *Cell {
	c, err := New(KindOrdinary, BitString{}, nil)
	if err != nil {
		panic(err)
	}
	return c
}()

// Empty returns the ordinary cell without bits or refs.
func Empty() *Cell {
	return emptyCell
}

// New validates bits and refs against the layout of kind and builds the
// cell. Nil refs are rejected.
func New(kind Kind, bits BitString, refs []*Cell) (*Cell, error) {
	if !kind.valid() {
		return nil, xerrors.Errorf("kind %d: %w", uint8(kind), ErrUnknownKind)
	}
	for i, r := range refs {
		if r == nil {
			return nil, &ConstraintError{Kind: kind, Bits: bits.Len(), Refs: len(refs), Reason: fmt.Sprintf("ref %d is nil", i)}
		}
	}
	mask, reason := kindRules[kind].check(bits, refs)
	if reason != "" {
		return nil, &ConstraintError{Kind: kind, Bits: bits.Len(), Refs: len(refs), Reason: reason}
	}

	c := &Cell{
		kind: kind,
		bits: bits.Clone(),
		refs: append([]*Cell(nil), refs...),
		mask: mask,
	}
	if err := c.computeHashes(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewOrdinary builds an ordinary cell.
func NewOrdinary(bits BitString, refs ...*Cell) (*Cell, error) {
	return New(KindOrdinary, bits, refs)
}

func (c *Cell) computeHashes() error {
	count := c.mask.HashCount()
	offset := 0
	if c.kind == KindPrunedBranch {
		offset = count - 1
	}
	c.hashes = make([][32]byte, count-offset)
	c.depths = make([]uint16, count-offset)

	hi := 0
	for level := 0; level <= c.mask.Level(); level++ {
		if !c.mask.IsSignificant(level) {
			continue
		}
		if hi < offset {
			hi++
			continue
		}

		h := sha256.New()
		d1, d2 := c.descriptors(c.mask.Apply(level))
		h.Write([]byte{d1, d2})
		if hi == offset {
			h.Write(c.bits.paddedBytes())
		} else {
			// higher levels chain the hash of the level below instead of data
			h.Write(c.hashes[hi-offset-1][:])
		}

		childLevel := level
		if c.kind == KindMerkleProof || c.kind == KindMerkleUpdate {
			childLevel++
		}

		var depth uint16
		var buf [2]byte
		for _, r := range c.refs {
			d := r.depth(childLevel)
			binary.BigEndian.PutUint16(buf[:], d)
			h.Write(buf[:])
			if d > depth {
				depth = d
			}
		}
		if len(c.refs) > 0 {
			depth++
			if depth > MaxDepth {
				return xerrors.Errorf("depth %d: %w", depth, ErrDepthLimit)
			}
		}
		for _, r := range c.refs {
			rh := r.hash(childLevel)
			h.Write(rh[:])
		}

		h.Sum(c.hashes[hi-offset][:0])
		c.depths[hi-offset] = depth
		hi++
	}
	return nil
}

func (c *Cell) descriptors(mask LevelMask) (byte, byte) {
	d1 := byte(len(c.refs)) + byte(mask)<<5
	if c.kind.IsExotic() {
		d1 += 8
	}
	n := c.bits.Len()
	d2 := byte(n/8 + (n+7)/8)
	return d1, d2
}

// hash returns the hash at level, clamped to the cell's significant levels.
func (c *Cell) hash(level int) [32]byte {
	hi := c.mask.Apply(level).HashIndex()
	if c.kind == KindPrunedBranch {
		if top := c.mask.HashIndex(); hi != top {
			var out [32]byte
			copy(out[:], c.bits.data[2+hi*32:])
			return out
		}
		hi = 0
	}
	return c.hashes[hi]
}

func (c *Cell) depth(level int) uint16 {
	hi := c.mask.Apply(level).HashIndex()
	if c.kind == KindPrunedBranch {
		if top := c.mask.HashIndex(); hi != top {
			off := 2 + top*32 + hi*2
			return binary.BigEndian.Uint16(c.bits.data[off:])
		}
		hi = 0
	}
	return c.depths[hi]
}

// Hash returns the representation hash, the hash at the cell's own level.
func (c *Cell) Hash() [32]byte {
	return c.hash(MaxLevel)
}

// Depth returns the depth matching the representation hash.
func (c *Cell) Depth() uint16 {
	return c.depth(MaxLevel)
}

// HashAt returns the hash at level. It panics when level is outside
// [0, Level()].
func (c *Cell) HashAt(level int) [32]byte {
	c.checkLevel(level)
	return c.hash(level)
}

// DepthAt returns the depth at level. It panics when level is outside
// [0, Level()].
func (c *Cell) DepthAt(level int) uint16 {
	c.checkLevel(level)
	return c.depth(level)
}

func (c *Cell) checkLevel(level int) {
	if level < 0 || level > c.mask.Level() {
		panic(fmt.Sprintf("level %d out of range [0, %d]", level, c.mask.Level()))
	}
}

func (c *Cell) Kind() Kind {
	return c.kind
}

func (c *Cell) IsExotic() bool {
	return c.kind.IsExotic()
}

func (c *Cell) LevelMask() LevelMask {
	return c.mask
}

func (c *Cell) Level() int {
	return c.mask.Level()
}

// Bits returns a copy of the cell storage.
func (c *Cell) Bits() BitString {
	return c.bits.Clone()
}

func (c *Cell) BitLen() int {
	return c.bits.Len()
}

func (c *Cell) RefsNum() int {
	return len(c.refs)
}

func (c *Cell) Ref(i int) (*Cell, error) {
	if i < 0 || i >= len(c.refs) {
		return nil, xerrors.Errorf("ref %d of %d: %w", i, len(c.refs), ErrMissingChild)
	}
	return c.refs[i], nil
}

// Equal reports structural equality: same kind, bits and referenced cells.
func (c *Cell) Equal(o *Cell) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.Hash() == o.Hash()
}

func (c *Cell) String() string {
	return c.Dump()
}

// Dump renders the tree one cell per line in fift notation.
func (c *Cell) Dump() string {
	var sb strings.Builder
	c.dump(&sb, 0)
	return sb.String()
}

func (c *Cell) dump(sb *strings.Builder, indent int) {
	sb.WriteString(strings.Repeat(" ", indent))
	if c.IsExotic() {
		sb.WriteString("SPECIAL ")
	}
	sb.WriteString("x{")
	sb.WriteString(c.bits.String())
	sb.WriteString("}\n")
	for _, r := range c.refs {
		r.dump(sb, indent+1)
	}
}
