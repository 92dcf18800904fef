package cell

import (
	"encoding/binary"
	"hash/crc32"
	"math/bits"

	"golang.org/x/xerrors"
)

const (
	bocGeneric    uint32 = 0xb5ee9c72
	bocIndexed    uint32 = 0x68ff65f3
	bocIndexedCRC uint32 = 0xacc3a728
)

const (
	flagHasIndex = 0x80
	flagHasCRC   = 0x40
	flagReserved = 0x18
	flagSizeMask = 0x07

	// set in d1 when a record carries its hashes and depths
	d1WithHashes = 16
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// ToBOC serializes a single root.
func ToBOC(root *Cell, opts ...Option) ([]byte, error) {
	return Serialize([]*Cell{root}, opts...)
}

// FromBOC deserializes a bag of cells and returns its first root.
func FromBOC(data []byte, opts ...Option) (*Cell, error) {
	roots, err := Deserialize(data, opts...)
	if err != nil {
		return nil, err
	}
	return roots[0], nil
}

// Serialize writes the cells reachable from roots as a bag of cells.
// Structurally equal cells are written once. Roots come first and every
// reference points to a later cell.
func Serialize(roots []*Cell, opts ...Option) ([]byte, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	for i, r := range roots {
		if r == nil {
			return nil, xerrors.Errorf("root %d is nil: %w", i, ErrMissingChild)
		}
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	order, index := topoSort(roots)
	size := bytesFor(uint64(max(len(order), len(roots))))
	if size > 4 {
		return nil, xerrors.Errorf("%d cells do not fit a bag of cells", len(order))
	}

	var payload []byte
	ends := make([]uint64, len(order))
	for i, c := range order {
		d1, d2 := c.descriptors(c.mask)
		payload = append(payload, d1, d2)
		payload = append(payload, c.bits.paddedBytes()...)
		for _, r := range c.refs {
			payload = appendUint(payload, uint64(index[r.Hash()]), size)
		}
		ends[i] = uint64(len(payload))
	}
	offBytes := bytesFor(uint64(len(payload)))

	flags := byte(size)
	if cfg.withIndex {
		flags |= flagHasIndex
	}
	if cfg.withCRC {
		flags |= flagHasCRC
	}

	out := binary.BigEndian.AppendUint32(nil, bocGeneric)
	out = append(out, flags, byte(offBytes))
	out = appendUint(out, uint64(len(order)), size)
	out = appendUint(out, uint64(len(roots)), size)
	out = appendUint(out, 0, size)
	out = appendUint(out, uint64(len(payload)), offBytes)
	for _, r := range roots {
		out = appendUint(out, uint64(index[r.Hash()]), size)
	}
	if cfg.withIndex {
		for _, e := range ends {
			out = appendUint(out, e, offBytes)
		}
	}
	out = append(out, payload...)
	if cfg.withCRC {
		out = binary.LittleEndian.AppendUint32(out, crc32.Checksum(out, crcTable))
	}
	return out, nil
}

// topoSort orders the unique cells reachable from roots so that every cell
// precedes the cells it references. The order only depends on structure.
func topoSort(roots []*Cell) ([]*Cell, map[[32]byte]int) {
	seen := make(map[[32]byte]struct{})
	var post []*Cell
	var visit func(c *Cell)
	visit = func(c *Cell) {
		h := c.Hash()
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		for i := len(c.refs) - 1; i >= 0; i-- {
			visit(c.refs[i])
		}
		post = append(post, c)
	}
	for i := len(roots) - 1; i >= 0; i-- {
		visit(roots[i])
	}

	order := make([]*Cell, len(post))
	index := make(map[[32]byte]int, len(post))
	for i, c := range post {
		j := len(post) - 1 - i
		order[j] = c
		index[c.Hash()] = j
	}
	return order, index
}

type rawCell struct {
	exotic bool
	mask   LevelMask
	bits   BitString
	refs   []int
}

// Deserialize parses a bag of cells and returns its roots.
func Deserialize(data []byte, opts ...Option) ([]*Cell, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	r := &bocReader{data: data}
	magic, err := r.uint(4)
	if err != nil {
		return nil, err
	}

	var hasIndex, hasCRC bool
	var size int
	switch uint32(magic) {
	case bocGeneric:
		f, err := r.uint(1)
		if err != nil {
			return nil, err
		}
		if f&flagReserved != 0 {
			return nil, xerrors.Errorf("reserved flags %#x set: %w", f, ErrMalformedBOC)
		}
		hasIndex = f&flagHasIndex != 0
		hasCRC = f&flagHasCRC != 0
		size = int(f & flagSizeMask)
	case bocIndexed, bocIndexedCRC:
		f, err := r.uint(1)
		if err != nil {
			return nil, err
		}
		hasIndex = true
		hasCRC = uint32(magic) == bocIndexedCRC
		size = int(f)
	default:
		return nil, xerrors.Errorf("magic %#08x: %w", magic, ErrMalformedBOC)
	}

	if hasCRC {
		if len(data) < r.off+4 {
			return nil, xerrors.Errorf("no room for checksum: %w", ErrMalformedBOC)
		}
		body := data[:len(data)-4]
		if got, want := binary.LittleEndian.Uint32(data[len(data)-4:]), crc32.Checksum(body, crcTable); got != want {
			return nil, xerrors.Errorf("crc32c %08x, expected %08x: %w", got, want, ErrMalformedBOC)
		}
		r.data = body
	}

	if size < 1 || size > 4 {
		return nil, xerrors.Errorf("ref size %d: %w", size, ErrMalformedBOC)
	}
	ob, err := r.uint(1)
	if err != nil {
		return nil, err
	}
	offBytes := int(ob)
	if offBytes < 1 || offBytes > 8 {
		return nil, xerrors.Errorf("offset size %d: %w", offBytes, ErrMalformedBOC)
	}

	var hdr [3]uint64
	for i := range hdr {
		if hdr[i], err = r.uint(size); err != nil {
			return nil, err
		}
	}
	cells, roots, absent := hdr[0], hdr[1], hdr[2]
	if cells < 1 || cells > uint64(cfg.maxCells) {
		return nil, xerrors.Errorf("cell count %d outside [1, %d]: %w", cells, cfg.maxCells, ErrMalformedBOC)
	}
	if roots < 1 || roots > uint64(cfg.maxCells) {
		return nil, xerrors.Errorf("root count %d: %w", roots, ErrMalformedBOC)
	}
	if absent != 0 {
		return nil, xerrors.Errorf("%d absent cells: %w", absent, ErrMalformedBOC)
	}
	totSize, err := r.uint(offBytes)
	if err != nil {
		return nil, err
	}
	// every record has at least its two descriptor bytes
	if cells*2 > totSize {
		return nil, xerrors.Errorf("%d cells in %d bytes: %w", cells, totSize, ErrMalformedBOC)
	}
	if left := uint64(len(r.data) - r.off); totSize > left {
		return nil, xerrors.Errorf("cell data is %d bytes, only %d left: %w", totSize, left, ErrMalformedBOC)
	}

	// the legacy layouts have no root list: cell 0 is the only root
	if uint32(magic) != bocGeneric && roots != 1 {
		return nil, xerrors.Errorf("indexed bag with %d roots: %w", roots, ErrMalformedBOC)
	}
	if uint32(magic) == bocGeneric && roots*uint64(size) > uint64(len(r.data)-r.off) {
		return nil, xerrors.Errorf("no room for %d roots: %w", roots, ErrMalformedBOC)
	}
	rootList := make([]int, roots)
	if uint32(magic) == bocGeneric {
		for i := range rootList {
			idx, err := r.uint(size)
			if err != nil {
				return nil, err
			}
			if idx >= cells {
				return nil, xerrors.Errorf("root %d points at cell %d of %d: %w", i, idx, cells, ErrMalformedBOC)
			}
			rootList[i] = int(idx)
		}
	}

	if hasIndex {
		if _, err := r.take(int(cells) * offBytes); err != nil {
			return nil, err
		}
	}
	if totSize != uint64(len(r.data)-r.off) {
		return nil, xerrors.Errorf("cell data is %d bytes, header says %d: %w", len(r.data)-r.off, totSize, ErrMalformedBOC)
	}
	cellData, err := r.take(int(totSize))
	if err != nil {
		return nil, err
	}

	raws, err := parseCells(cellData, int(cells), size)
	if err != nil {
		return nil, err
	}

	built := make([]*Cell, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		c, err := raws[i].build(built)
		if err != nil {
			return nil, xerrors.Errorf("cell %d: %w", i, err)
		}
		built[i] = c
	}

	out := make([]*Cell, len(rootList))
	for i, idx := range rootList {
		out[i] = built[idx]
	}
	log.Debugw("deserialized bag of cells", "cells", cells, "roots", roots, "bytes", len(data))
	return out, nil
}

func parseCells(data []byte, n, size int) ([]rawCell, error) {
	r := &bocReader{data: data}
	out := make([]rawCell, n)
	for i := range out {
		d, err := r.take(2)
		if err != nil {
			return nil, err
		}
		d1, d2 := d[0], d[1]

		refs := int(d1 & 7)
		if refs > MaxRefs {
			return nil, xerrors.Errorf("cell %d declares %d refs: %w", i, refs, ErrMalformedBOC)
		}
		rc := rawCell{exotic: d1&8 != 0, mask: LevelMask(d1 >> 5)}
		if d1&d1WithHashes != 0 {
			if _, err := r.take(rc.mask.HashCount() * (32 + 2)); err != nil {
				return nil, err
			}
		}

		dataLen := (int(d2) + 1) / 2
		raw, err := r.take(dataLen)
		if err != nil {
			return nil, err
		}
		bitLen := dataLen * 8
		if d2&1 == 1 {
			last := raw[dataLen-1]
			if last == 0 {
				return nil, xerrors.Errorf("cell %d lacks a completion tag: %w", i, ErrMalformedBOC)
			}
			bitLen -= bits.TrailingZeros8(last) + 1
		}
		if rc.bits, err = NewBitString(raw, bitLen); err != nil {
			return nil, err
		}

		for j := 0; j < refs; j++ {
			idx, err := r.uint(size)
			if err != nil {
				return nil, err
			}
			if idx <= uint64(i) || idx >= uint64(n) {
				return nil, xerrors.Errorf("cell %d references cell %d of %d: %w", i, idx, n, ErrMalformedBOC)
			}
			rc.refs = append(rc.refs, int(idx))
		}
		out[i] = rc
	}
	if r.off != len(data) {
		return nil, xerrors.Errorf("%d bytes after the last cell: %w", len(data)-r.off, ErrMalformedBOC)
	}
	return out, nil
}

func (rc rawCell) build(built []*Cell) (*Cell, error) {
	kind := KindOrdinary
	if rc.exotic {
		if rc.bits.Len() < 8 {
			return nil, xerrors.Errorf("exotic cell without type byte: %w", ErrMalformedBOC)
		}
		kind = Kind(rc.bits.data[0])
		if kind == KindOrdinary || !kind.valid() {
			return nil, xerrors.Errorf("type byte %d: %w", rc.bits.data[0], ErrUnknownKind)
		}
	}
	refs := make([]*Cell, len(rc.refs))
	for j, idx := range rc.refs {
		refs[j] = built[idx]
	}
	c, err := New(kind, rc.bits, refs)
	if err != nil {
		return nil, err
	}
	if c.mask != rc.mask {
		return nil, xerrors.Errorf("level mask %#b, computed %#b: %w", uint8(rc.mask), uint8(c.mask), ErrMalformedBOC)
	}
	return c, nil
}

type bocReader struct {
	data []byte
	off  int
}

func (r *bocReader) take(n int) ([]byte, error) {
	if n < 0 || len(r.data)-r.off < n {
		return nil, xerrors.Errorf("need %d bytes at offset %d, %d left: %w", n, r.off, len(r.data)-r.off, ErrMalformedBOC)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *bocReader) uint(n int) (uint64, error) {
	b, err := r.take(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v, nil
}

func appendUint(b []byte, v uint64, n int) []byte {
	for i := n - 1; i >= 0; i-- {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

func bytesFor(v uint64) int {
	if n := (bits.Len64(v) + 7) / 8; n > 0 {
		return n
	}
	return 1
}
