package cell

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/exp/constraints"
	"golang.org/x/xerrors"
)

// BitString is a bit-granular buffer. Copies of a BitString may share a
// backing array; a copy takes its own array the first time it is appended
// to, and bits past Len are never read, so appends never show through.
type BitString struct {
	data  []byte
	n     int
	// the only BitString allowed to write into data in place
	owner *BitString
}

// NewBitString takes the first bitLen bits of data.
func NewBitString(data []byte, bitLen int) (BitString, error) {
	var b BitString
	if err := b.AppendBytes(data, bitLen); err != nil {
		return BitString{}, err
	}
	return b, nil
}

func (b BitString) Len() int {
	return b.n
}

func (b BitString) Bit(i int) bool {
	if i < 0 || i >= b.n {
		panic(fmt.Sprintf("bit index %d out of range [0, %d)", i, b.n))
	}
	return b.data[i/8]&(0x80>>(i%8)) != 0
}

func (b BitString) Clone() BitString {
	return BitString{data: b.Bytes(), n: b.n}
}

// own gives b a private backing array unless it already has one.
func (b *BitString) own() {
	if b.owner == b {
		return
	}
	b.data = b.Bytes()
	b.owner = b
}

func (b *BitString) AppendBit(v bool) {
	b.own()
	if b.n%8 == 0 {
		b.data = append(b.data, 0)
	}
	m := byte(0x80) >> (b.n % 8)
	if v {
		b.data[b.n/8] |= m
	} else {
		b.data[b.n/8] &^= m
	}
	b.n++
}

func (b *BitString) Append(o BitString) {
	b.appendFrom(o.data, 0, o.n)
}

// AppendBytes appends the first bitLen bits of data.
func (b *BitString) AppendBytes(data []byte, bitLen int) error {
	if bitLen < 0 || bitLen > len(data)*8 {
		return xerrors.Errorf("%d bits requested from %d bytes: %w", bitLen, len(data), ErrInsufficientBits)
	}
	b.appendFrom(data, 0, bitLen)
	return nil
}

// truncate drops every bit from n on.
func (b *BitString) truncate(n int) {
	if n < 0 || n >= b.n {
		return
	}
	b.data = b.data[:(n+7)/8]
	b.n = n
}

// appendWhole appends every bit of data.
func (b *BitString) appendWhole(data []byte) {
	b.appendFrom(data, 0, len(data)*8)
}

// AppendUint writes v as a width-bit big-endian integer, zero-extending it.
// Values that need more than width bits are rejected; use
// AppendUintTruncated to narrow on purpose.
func (b *BitString) AppendUint(v uint64, width int) error {
	if width < 0 || width > 64 {
		return xerrors.Errorf("integer width %d out of range [0, 64]: %w", width, ErrValueOverflow)
	}
	if width < 64 && v>>width != 0 {
		return xerrors.Errorf("%d in %d bits: %w", v, width, ErrValueOverflow)
	}
	for i := width - 1; i >= 0; i-- {
		b.AppendBit(v>>i&1 == 1)
	}
	return nil
}

// AppendUintTruncated writes the low width bits of v.
func (b *BitString) AppendUintTruncated(v uint64, width int) error {
	if width >= 0 && width < 64 {
		v &= 1<<width - 1
	}
	return b.AppendUint(v, width)
}

// Slice returns a copy of bits [from, to).
func (b BitString) Slice(from, to int) (BitString, error) {
	if from < 0 || to < from || to > b.n {
		return BitString{}, xerrors.Errorf("range [%d, %d) of %d bits: %w", from, to, b.n, ErrInsufficientBits)
	}
	var out BitString
	out.appendFrom(b.data, from, to-from)
	return out, nil
}

// PopFront removes the first n bits and returns them.
func (b *BitString) PopFront(n int) (BitString, error) {
	head, err := b.Slice(0, n)
	if err != nil {
		return BitString{}, err
	}
	tail, err := b.Slice(n, b.n)
	if err != nil {
		return BitString{}, err
	}
	*b = tail
	return head, nil
}

// ReadUint pops n bits and interprets them as a big-endian unsigned integer.
func (b *BitString) ReadUint(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, xerrors.Errorf("integer width %d out of range [0, 64]: %w", n, ErrValueOverflow)
	}
	head, err := b.PopFront(n)
	if err != nil {
		return 0, err
	}
	return head.uintAt(0, n), nil
}

// ReadFixed pops the size of T in bits and decodes it with the given byte
// order.
func ReadFixed[T constraints.Integer](b *BitString, order binary.ByteOrder) (T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	head, err := b.PopFront(size * 8)
	if err != nil {
		return zero, err
	}
	var u uint64
	switch size {
	case 1:
		u = uint64(head.data[0])
	case 2:
		u = uint64(order.Uint16(head.data))
	case 4:
		u = uint64(order.Uint32(head.data))
	default:
		u = order.Uint64(head.data)
	}
	return T(u), nil
}

// Bytes returns the bits packed MSB first, zero padded to a whole byte.
func (b BitString) Bytes() []byte {
	out := append([]byte(nil), b.data[:(b.n+7)/8]...)
	if r := b.n % 8; r != 0 {
		out[len(out)-1] &= tailMask(r)
	}
	return out
}

// tailMask keeps the first r bits of a byte.
func tailMask(r int) byte {
	return ^(byte(0xff) >> r)
}

func (b BitString) Equal(o BitString) bool {
	if b.n != o.n {
		return false
	}
	full := b.n / 8
	if !bytes.Equal(b.data[:full], o.data[:full]) {
		return false
	}
	r := b.n % 8
	return r == 0 || (b.data[full]^o.data[full])&tailMask(r) == 0
}

// String renders the bits as hex. A trailing '_' marks that a completion
// tag (a single 1 followed by zeros) was added to fill the last digit.
func (b BitString) String() string {
	if b.n%4 == 0 {
		return strings.ToUpper(hex.EncodeToString(b.Bytes()))[:b.n/4]
	}
	t := b.Clone()
	t.AppendBit(true)
	for t.n%4 != 0 {
		t.AppendBit(false)
	}
	return strings.ToUpper(hex.EncodeToString(t.data))[:t.n/4] + "_"
}

// paddedBytes returns the bits with a completion tag when they do not end
// on a byte boundary.
func (b BitString) paddedBytes() []byte {
	out := b.Bytes()
	if b.n%8 != 0 {
		out[b.n/8] |= 0x80 >> (b.n % 8)
	}
	return out
}

func (b BitString) uintAt(off, n int) uint64 {
	var v uint64
	for i := off; i < off+n; i++ {
		v = v<<1 | uint64(b.data[i/8]>>(7-i%8)&1)
	}
	return v
}

func (b *BitString) appendFrom(src []byte, off, n int) {
	if n == 0 {
		return
	}
	b.own()
	if b.n%8 == 0 && off%8 == 0 {
		start := off / 8
		full := n / 8
		b.data = append(b.data, src[start:start+full]...)
		b.n += full * 8
		if rem := n % 8; rem != 0 {
			b.data = append(b.data, src[start+full]&tailMask(rem))
			b.n += rem
		}
		return
	}
	for i := off; i < off+n; i++ {
		b.AppendBit(src[i/8]&(0x80>>(i%8)) != 0)
	}
}
