package cell

import (
	"math/big"

	"github.com/holiman/uint256"
	"golang.org/x/xerrors"

	"github.com/tonkit/go-tvm-cell/address"
)

// snakeChunk is the payload of each continuation cell of a snake string.
const snakeChunk = 127

// Builder accumulates bits and refs for a single ordinary cell. Writes that
// would overflow the cell fail with a *ConstraintError and leave the
// builder unchanged.
type Builder struct {
	bits BitString
	refs []*Cell
}

func BeginCell() *Builder {
	return &Builder{}
}

func (b *Builder) BitsUsed() int {
	return b.bits.Len()
}

func (b *Builder) RefsUsed() int {
	return len(b.refs)
}

func (b *Builder) BitsLeft() int {
	return MaxBits - b.bits.Len()
}

func (b *Builder) RefsLeft() int {
	return MaxRefs - len(b.refs)
}

func (b *Builder) fits(bits, refs int) error {
	if b.bits.Len()+bits > MaxBits || len(b.refs)+refs > MaxRefs {
		return &ConstraintError{
			Kind:   KindOrdinary,
			Bits:   b.bits.Len() + bits,
			Refs:   len(b.refs) + refs,
			Reason: "builder overflow",
		}
	}
	return nil
}

func (b *Builder) StoreBool(v bool) error {
	if err := b.fits(1, 0); err != nil {
		return err
	}
	b.bits.AppendBit(v)
	return nil
}

// StoreUInt writes v into bits bits. v must fit.
func (b *Builder) StoreUInt(v uint64, bits int) error {
	if err := b.fits(bits, 0); err != nil {
		return err
	}
	return b.bits.AppendUint(v, bits)
}

// StoreUIntTruncated writes the low bits bits of v.
func (b *Builder) StoreUIntTruncated(v uint64, bits int) error {
	if err := b.fits(bits, 0); err != nil {
		return err
	}
	return b.bits.AppendUintTruncated(v, bits)
}

// StoreInt writes v as a bits wide two's complement integer.
func (b *Builder) StoreInt(v int64, bits int) error {
	if bits < 1 || bits > 64 {
		return xerrors.Errorf("signed width %d out of range [1, 64]: %w", bits, ErrValueOverflow)
	}
	if bits < 64 {
		lim := int64(1) << (bits - 1)
		if v < -lim || v >= lim {
			return xerrors.Errorf("%d in %d signed bits: %w", v, bits, ErrValueOverflow)
		}
	}
	if err := b.fits(bits, 0); err != nil {
		return err
	}
	return b.bits.AppendUintTruncated(uint64(v), bits)
}

func (b *Builder) StoreBigUInt(v *big.Int, bits int) error {
	if v.Sign() < 0 || v.BitLen() > bits {
		return xerrors.Errorf("%s in %d bits: %w", v, bits, ErrValueOverflow)
	}
	if err := b.fits(bits, 0); err != nil {
		return err
	}
	size := (bits + 7) / 8
	buf := v.FillBytes(make([]byte, size))
	tmp, err := NewBitString(buf, size*8)
	if err != nil {
		return err
	}
	tmp, err = tmp.Slice(size*8-bits, size*8)
	if err != nil {
		return err
	}
	b.bits.Append(tmp)
	return nil
}

func (b *Builder) StoreBigInt(v *big.Int, bits int) error {
	if bits < 1 {
		return xerrors.Errorf("signed width %d: %w", bits, ErrValueOverflow)
	}
	lim := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	if v.Cmp(lim) >= 0 || v.Cmp(new(big.Int).Neg(lim)) < 0 {
		return xerrors.Errorf("%s in %d signed bits: %w", v, bits, ErrValueOverflow)
	}
	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(lim, 1))
	}
	return b.StoreBigUInt(u, bits)
}

func (b *Builder) StoreUInt256(v *uint256.Int) error {
	buf := v.Bytes32()
	return b.StoreSlice(buf[:], 256)
}

// StoreCoins writes v as VarUInteger 16: a 4 bit byte length followed by
// the value.
func (b *Builder) StoreCoins(v *big.Int) error {
	if v.Sign() < 0 {
		return xerrors.Errorf("negative coins %s: %w", v, ErrValueOverflow)
	}
	n := (v.BitLen() + 7) / 8
	if n > 15 {
		return xerrors.Errorf("coins %s need %d bytes: %w", v, n, ErrValueOverflow)
	}
	if err := b.fits(4+n*8, 0); err != nil {
		return err
	}
	if err := b.StoreUInt(uint64(n), 4); err != nil {
		return err
	}
	return b.StoreBigUInt(v, n*8)
}

// StoreSlice writes the first bits bits of data.
func (b *Builder) StoreSlice(data []byte, bits int) error {
	if err := b.fits(bits, 0); err != nil {
		return err
	}
	return b.bits.AppendBytes(data, bits)
}

func (b *Builder) StoreBits(bits BitString) error {
	if err := b.fits(bits.Len(), 0); err != nil {
		return err
	}
	b.bits.Append(bits)
	return nil
}

func (b *Builder) StoreRef(c *Cell) error {
	if c == nil {
		return xerrors.Errorf("storing nil ref: %w", ErrMissingChild)
	}
	if err := b.fits(0, 1); err != nil {
		return err
	}
	b.refs = append(b.refs, c)
	return nil
}

// StoreMaybeRef writes a presence bit and, when c is not nil, the ref.
func (b *Builder) StoreMaybeRef(c *Cell) error {
	if c == nil {
		return b.StoreBool(false)
	}
	if err := b.fits(1, 1); err != nil {
		return err
	}
	b.bits.AppendBit(true)
	b.refs = append(b.refs, c)
	return nil
}

func (b *Builder) StoreMaybeUInt(v *uint64, bits int) error {
	if v == nil {
		return b.StoreBool(false)
	}
	if bits < 0 || bits > 64 {
		return xerrors.Errorf("integer width %d out of range [0, 64]: %w", bits, ErrValueOverflow)
	}
	if err := b.fits(1+bits, 0); err != nil {
		return err
	}
	if bits < 64 && *v>>bits != 0 {
		return xerrors.Errorf("%d in %d bits: %w", *v, bits, ErrValueOverflow)
	}
	b.bits.AppendBit(true)
	return b.bits.AppendUint(*v, bits)
}

// StoreMaybe writes a presence bit followed by v inline. Pass an untyped
// nil for absent values. When v fails to marshal, nothing is written.
func (b *Builder) StoreMaybe(v Marshaler) error {
	if v == nil {
		return b.StoreBool(false)
	}
	bits, refs := b.bits.Len(), len(b.refs)
	if err := b.StoreBool(true); err != nil {
		return err
	}
	if err := v.MarshalCell(b); err != nil {
		b.rollback(bits, refs)
		return err
	}
	return nil
}

// rollback drops everything written after the builder held bits bits and
// refs refs.
func (b *Builder) rollback(bits, refs int) {
	b.bits.truncate(bits)
	clear(b.refs[refs:])
	b.refs = b.refs[:refs]
}

// StoreRefValue encodes v into its own cell and stores it as a ref.
func (b *Builder) StoreRefValue(v Marshaler) error {
	c, err := Encode(v)
	if err != nil {
		return err
	}
	return b.StoreRef(c)
}

func (b *Builder) StoreBuilder(o *Builder) error {
	if err := b.fits(o.bits.Len(), len(o.refs)); err != nil {
		return err
	}
	b.bits.Append(o.bits)
	b.refs = append(b.refs, o.refs...)
	return nil
}

// StoreAddress writes addr_std with no anycast, or addr_none for nil.
func (b *Builder) StoreAddress(a *address.Address) error {
	if a == nil {
		return b.StoreUInt(0, 2)
	}
	if err := b.fits(2+1+8+256, 0); err != nil {
		return err
	}
	if err := b.bits.AppendUint(0b10, 2); err != nil {
		return err
	}
	b.bits.AppendBit(false)
	if err := b.bits.AppendUint(uint64(uint8(a.Workchain)), 8); err != nil {
		return err
	}
	return b.bits.AppendBytes(a.Hash[:], 256)
}

// StoreStringSnake writes s into the remaining whole bytes of the builder
// and continues in a chain of refs holding up to 127 bytes each.
func (b *Builder) StoreStringSnake(s string) error {
	data := []byte(s)
	head := b.BitsLeft() / 8
	if head > len(data) {
		head = len(data)
	}

	var tail *Cell
	if rest := data[head:]; len(rest) > 0 {
		if err := b.fits(head*8, 1); err != nil {
			return err
		}
		var err error
		if tail, err = snakeTail(rest); err != nil {
			return err
		}
	}
	if err := b.StoreSlice(data[:head], head*8); err != nil {
		return err
	}
	if tail != nil {
		return b.StoreRef(tail)
	}
	return nil
}

func snakeTail(data []byte) (*Cell, error) {
	var chunks [][]byte
	for len(data) > 0 {
		n := min(snakeChunk, len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	var next *Cell
	for i := len(chunks) - 1; i >= 0; i-- {
		cb := BeginCell()
		if err := cb.StoreSlice(chunks[i], len(chunks[i])*8); err != nil {
			return nil, err
		}
		if next != nil {
			if err := cb.StoreRef(next); err != nil {
				return nil, err
			}
		}
		c, err := cb.EndCell()
		if err != nil {
			return nil, err
		}
		next = c
	}
	return next, nil
}

// EndCell seals the accumulated bits and refs into an ordinary cell.
func (b *Builder) EndCell() (*Cell, error) {
	return New(KindOrdinary, b.bits, b.refs)
}
