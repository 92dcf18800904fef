package cell

import (
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"golang.org/x/xerrors"

	"github.com/tonkit/go-tvm-cell/address"
)

// Slice reads a cell back in the order it was written, keeping a bit
// cursor over the data and an index into the refs.
type Slice struct {
	bits BitString
	pos  int
	refs []*Cell
	ref  int
}

func (c *Cell) BeginParse() *Slice {
	return &Slice{bits: c.bits, refs: c.refs}
}

func (s *Slice) BitsLeft() int {
	return s.bits.Len() - s.pos
}

func (s *Slice) RefsLeft() int {
	return len(s.refs) - s.ref
}

func (s *Slice) need(bits int) error {
	if bits < 0 || bits > s.BitsLeft() {
		return xerrors.Errorf("reading %d bits with %d left: %w", bits, s.BitsLeft(), ErrUnexpectedEndOfData)
	}
	return nil
}

func (s *Slice) PreloadUInt(bits int) (uint64, error) {
	if bits > 64 {
		return 0, xerrors.Errorf("integer width %d out of range [0, 64]: %w", bits, ErrValueOverflow)
	}
	if err := s.need(bits); err != nil {
		return 0, err
	}
	return s.bits.uintAt(s.pos, bits), nil
}

func (s *Slice) LoadUInt(bits int) (uint64, error) {
	v, err := s.PreloadUInt(bits)
	if err != nil {
		return 0, err
	}
	s.pos += bits
	return v, nil
}

func (s *Slice) LoadInt(bits int) (int64, error) {
	if bits < 1 {
		return 0, xerrors.Errorf("signed width %d: %w", bits, ErrValueOverflow)
	}
	u, err := s.LoadUInt(bits)
	if err != nil {
		return 0, err
	}
	if bits < 64 && u>>(bits-1)&1 == 1 {
		u |= ^uint64(0) << bits
	}
	return int64(u), nil
}

func (s *Slice) LoadBool() (bool, error) {
	u, err := s.LoadUInt(1)
	return u == 1, err
}

func (s *Slice) LoadBigUInt(bits int) (*big.Int, error) {
	buf, err := s.LoadSlice(bits)
	if err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(buf)
	return v.Rsh(v, uint(len(buf)*8-bits)), nil
}

func (s *Slice) LoadBigInt(bits int) (*big.Int, error) {
	v, err := s.LoadBigUInt(bits)
	if err != nil {
		return nil, err
	}
	if bits > 0 && v.Bit(bits-1) == 1 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(bits)))
	}
	return v, nil
}

func (s *Slice) LoadUInt256() (*uint256.Int, error) {
	buf, err := s.LoadSlice(256)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(buf), nil
}

func (s *Slice) LoadCoins() (*big.Int, error) {
	n, err := s.LoadUInt(4)
	if err != nil {
		return nil, err
	}
	return s.LoadBigUInt(int(n) * 8)
}

// LoadSlice reads bits bits packed MSB first into whole bytes.
func (s *Slice) LoadSlice(bits int) ([]byte, error) {
	b, err := s.LoadBits(bits)
	if err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (s *Slice) LoadBits(bits int) (BitString, error) {
	if err := s.need(bits); err != nil {
		return BitString{}, err
	}
	b, err := s.bits.Slice(s.pos, s.pos+bits)
	if err != nil {
		return BitString{}, err
	}
	s.pos += bits
	return b, nil
}

func (s *Slice) LoadRefCell() (*Cell, error) {
	if s.ref >= len(s.refs) {
		return nil, xerrors.Errorf("ref %d of %d: %w", s.ref, len(s.refs), ErrMissingChild)
	}
	c := s.refs[s.ref]
	s.ref++
	return c, nil
}

func (s *Slice) LoadRef() (*Slice, error) {
	c, err := s.LoadRefCell()
	if err != nil {
		return nil, err
	}
	return c.BeginParse(), nil
}

// LoadMaybeRef reads a presence bit and the ref it announces. A cleared
// bit yields a nil cell.
func (s *Slice) LoadMaybeRef() (*Cell, error) {
	ok, err := s.LoadBool()
	if err != nil || !ok {
		return nil, err
	}
	return s.LoadRefCell()
}

func (s *Slice) LoadMaybeUInt(bits int) (*uint64, error) {
	ok, err := s.LoadBool()
	if err != nil || !ok {
		return nil, err
	}
	v, err := s.LoadUInt(bits)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// LoadMaybe reads a presence bit and, when set, decodes v inline.
func (s *Slice) LoadMaybe(v Unmarshaler) (bool, error) {
	ok, err := s.LoadBool()
	if err != nil || !ok {
		return false, err
	}
	return true, v.UnmarshalCell(s)
}

func (s *Slice) LoadRefValue(v Unmarshaler) error {
	c, err := s.LoadRefCell()
	if err != nil {
		return err
	}
	return Decode(c, v)
}

// LoadAddress reads a MsgAddressInt. addr_none yields nil; external,
// variable length and anycast addresses are not supported.
func (s *Slice) LoadAddress() (*address.Address, error) {
	tag, err := s.LoadUInt(2)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0b00:
		return nil, nil
	case 0b10:
	default:
		return nil, xerrors.Errorf("address tag %02b: %w", tag, ErrUnknownTag)
	}
	anycast, err := s.LoadBool()
	if err != nil {
		return nil, err
	}
	if anycast {
		return nil, xerrors.Errorf("anycast address: %w", ErrUnknownTag)
	}
	wc, err := s.LoadInt(8)
	if err != nil {
		return nil, err
	}
	h, err := s.LoadSlice(256)
	if err != nil {
		return nil, err
	}
	a := &address.Address{Workchain: int8(wc)}
	copy(a.Hash[:], h)
	return a, nil
}

// LoadStringSnake reads the remaining bytes of the slice and follows the
// first ref of each cell in the chain.
func (s *Slice) LoadStringSnake() (string, error) {
	var sb strings.Builder
	cur := s
	for depth := 0; ; depth++ {
		if depth > MaxDepth {
			return "", xerrors.Errorf("snake string: %w", ErrDepthLimit)
		}
		if cur.BitsLeft()%8 != 0 {
			return "", xerrors.Errorf("snake chunk of %d bits is not byte aligned: %w", cur.BitsLeft(), ErrUnexpectedEndOfData)
		}
		b, err := cur.LoadSlice(cur.BitsLeft())
		if err != nil {
			return "", err
		}
		sb.Write(b)
		if cur.RefsLeft() == 0 {
			return sb.String(), nil
		}
		if cur, err = cur.LoadRef(); err != nil {
			return "", err
		}
	}
}

// ToCell returns the unread bits and refs as a new ordinary cell.
func (s *Slice) ToCell() (*Cell, error) {
	b, err := s.bits.Slice(s.pos, s.bits.Len())
	if err != nil {
		return nil, err
	}
	return New(KindOrdinary, b, s.refs[s.ref:])
}

// EndParse fails when bits or refs were left unread.
func (s *Slice) EndParse() error {
	if s.BitsLeft() != 0 || s.RefsLeft() != 0 {
		return xerrors.Errorf("%d bits and %d refs left: %w", s.BitsLeft(), s.RefsLeft(), ErrUnreadData)
	}
	return nil
}
