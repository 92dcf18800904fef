package cell

import (
	"math/big"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonkit/go-tvm-cell/address"
)

type transfer struct {
	QueryID  uint64
	Amount   *big.Int
	Dest     *address.Address
	Response *address.Address
	Forward  *uint64
	Comment  string
	Payload  *Cell
	Bounce   bool
	Delta    int64
}

func (tr *transfer) MarshalCell(b *Builder) error {
	if err := b.StoreUInt(0x0f8a7ea5, 32); err != nil {
		return err
	}
	if err := b.StoreUInt(tr.QueryID, 64); err != nil {
		return err
	}
	if err := b.StoreCoins(tr.Amount); err != nil {
		return err
	}
	if err := b.StoreAddress(tr.Dest); err != nil {
		return err
	}
	if err := b.StoreAddress(tr.Response); err != nil {
		return err
	}
	if err := b.StoreMaybeUInt(tr.Forward, 32); err != nil {
		return err
	}
	if err := b.StoreBool(tr.Bounce); err != nil {
		return err
	}
	if err := b.StoreInt(tr.Delta, 16); err != nil {
		return err
	}
	if err := b.StoreMaybeRef(tr.Payload); err != nil {
		return err
	}
	return b.StoreRefValue(comment(tr.Comment))
}

func (tr *transfer) UnmarshalCell(s *Slice) error {
	op, err := s.LoadUInt(32)
	if err != nil {
		return err
	}
	if op != 0x0f8a7ea5 {
		return ErrUnknownTag
	}
	if tr.QueryID, err = s.LoadUInt(64); err != nil {
		return err
	}
	if tr.Amount, err = s.LoadCoins(); err != nil {
		return err
	}
	if tr.Dest, err = s.LoadAddress(); err != nil {
		return err
	}
	if tr.Response, err = s.LoadAddress(); err != nil {
		return err
	}
	if tr.Forward, err = s.LoadMaybeUInt(32); err != nil {
		return err
	}
	if tr.Bounce, err = s.LoadBool(); err != nil {
		return err
	}
	if tr.Delta, err = s.LoadInt(16); err != nil {
		return err
	}
	if tr.Payload, err = s.LoadMaybeRef(); err != nil {
		return err
	}
	var c comment
	if err := s.LoadRefValue(&c); err != nil {
		return err
	}
	tr.Comment = string(c)
	return s.EndParse()
}

// comment is a text comment: a zero op followed by a snake string.
type comment string

func (c comment) MarshalCell(b *Builder) error {
	if err := b.StoreUInt(0, 32); err != nil {
		return err
	}
	return b.StoreStringSnake(string(c))
}

func (c *comment) UnmarshalCell(s *Slice) error {
	if _, err := s.LoadUInt(32); err != nil {
		return err
	}
	str, err := s.LoadStringSnake()
	if err != nil {
		return err
	}
	*c = comment(str)
	return nil
}

func TestCodecRoundTrip(t *testing.T) {
	dest := address.New(address.WorkchainMaster, [32]byte{1, 2, 3})
	fwd := uint64(1)

	cases := map[string]*transfer{
		"full": {
			QueryID:  42,
			Amount:   big.NewInt(1_000_000_000),
			Dest:     &dest,
			Response: &address.Address{},
			Forward:  &fwd,
			Comment:  strings.Repeat("lorem ipsum ", 40),
			Payload:  sampleTree(t),
			Bounce:   true,
			Delta:    -1200,
		},
		"sparse": {
			Amount: new(big.Int),
		},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := Encode(in)
			require.NoError(t, err)

			var out transfer
			require.NoError(t, Decode(c, &out))
			assert.Equal(t, in.QueryID, out.QueryID)
			assert.Equal(t, 0, in.Amount.Cmp(out.Amount))
			assert.Equal(t, in.Dest, out.Dest)
			assert.Equal(t, in.Response, out.Response)
			assert.Equal(t, in.Forward, out.Forward)
			assert.Equal(t, in.Comment, out.Comment)
			assert.Equal(t, in.Bounce, out.Bounce)
			assert.Equal(t, in.Delta, out.Delta)
			assert.True(t, in.Payload.Equal(out.Payload))

			// and through a bag of cells
			data, err := ToBOC(c)
			require.NoError(t, err)
			back, err := FromBOC(data)
			require.NoError(t, err)
			assert.True(t, c.Equal(back))
		})
	}
}

func TestBuilderOverflow(t *testing.T) {
	b := BeginCell()
	require.ErrorIs(t, b.StoreUInt(256, 8), ErrValueOverflow)
	require.ErrorIs(t, b.StoreInt(128, 8), ErrValueOverflow)
	require.ErrorIs(t, b.StoreInt(-129, 8), ErrValueOverflow)
	require.NoError(t, b.StoreInt(-128, 8))

	require.NoError(t, b.StoreSlice(make([]byte, 128), MaxBits-8))
	assert.Equal(t, MaxBits, b.BitsUsed())
	assert.Equal(t, 0, b.BitsLeft())

	var ce *ConstraintError
	require.ErrorAs(t, b.StoreBool(true), &ce)
	assert.Equal(t, MaxBits+1, ce.Bits)
	assert.Equal(t, MaxBits, b.BitsUsed())

	for i := 0; i < MaxRefs; i++ {
		require.NoError(t, b.StoreRef(Empty()))
	}
	require.ErrorAs(t, b.StoreRef(Empty()), &ce)
	assert.Equal(t, MaxRefs, b.RefsUsed())
	require.ErrorIs(t, BeginCell().StoreRef(nil), ErrMissingChild)

	c, err := b.EndCell()
	require.NoError(t, err)
	assert.Equal(t, MaxBits, c.BitLen())
	assert.Equal(t, MaxRefs, c.RefsNum())
}

func TestSliceUnderflow(t *testing.T) {
	c, err := BeginCell().EndCell()
	require.NoError(t, err)
	s := c.BeginParse()
	_, err = s.LoadUInt(1)
	require.ErrorIs(t, err, ErrUnexpectedEndOfData)
	_, err = s.LoadRef()
	require.ErrorIs(t, err, ErrMissingChild)
	require.NoError(t, s.EndParse())

	b := BeginCell()
	require.NoError(t, b.StoreUInt(5, 3))
	c, err = b.EndCell()
	require.NoError(t, err)
	s = c.BeginParse()
	_, err = s.LoadUInt(8)
	require.ErrorIs(t, err, ErrUnexpectedEndOfData)
	assert.Equal(t, 3, s.BitsLeft())
	require.ErrorIs(t, s.EndParse(), ErrUnreadData)

	v, err := s.PreloadUInt(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v)
	assert.Equal(t, 3, s.BitsLeft())
}

func TestSignedIntegers(t *testing.T) {
	b := BeginCell()
	require.NoError(t, b.StoreInt(-5, 7))
	require.NoError(t, b.StoreInt(-1, 64))
	min257 := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 256))
	require.NoError(t, b.StoreBigInt(min257, 257))
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	require.ErrorIs(t, b.StoreBigInt(tooBig, 257), ErrValueOverflow)
	require.NoError(t, b.StoreBigInt(big.NewInt(-3), 9))

	c, err := b.EndCell()
	require.NoError(t, err)
	s := c.BeginParse()

	v, err := s.LoadInt(7)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), v)
	v, err = s.LoadInt(64)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
	bv, err := s.LoadBigInt(257)
	require.NoError(t, err)
	assert.Equal(t, 0, min257.Cmp(bv))
	bv, err = s.LoadBigInt(9)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), bv.Int64())
	require.NoError(t, s.EndParse())
}

func TestUint256AndCoins(t *testing.T) {
	u := uint256.MustFromHex("0xdeadbeef00000000000000000000000000000000000000000000000000c0ffee")

	b := BeginCell()
	require.NoError(t, b.StoreUInt256(u))
	require.NoError(t, b.StoreCoins(new(big.Int)))
	assert.Equal(t, 256+4, b.BitsUsed())
	huge := new(big.Int).Lsh(big.NewInt(1), 120)
	require.ErrorIs(t, b.StoreCoins(huge), ErrValueOverflow)
	require.ErrorIs(t, b.StoreCoins(big.NewInt(-1)), ErrValueOverflow)
	require.NoError(t, b.StoreCoins(big.NewInt(0x1234)))
	assert.Equal(t, 256+4+4+16, b.BitsUsed())

	c, err := b.EndCell()
	require.NoError(t, err)
	s := c.BeginParse()
	got, err := s.LoadUInt256()
	require.NoError(t, err)
	assert.True(t, u.Eq(got))
	coins, err := s.LoadCoins()
	require.NoError(t, err)
	assert.Equal(t, int64(0), coins.Int64())
	coins, err = s.LoadCoins()
	require.NoError(t, err)
	assert.Equal(t, int64(0x1234), coins.Int64())
}

func TestStringSnake(t *testing.T) {
	long := strings.Repeat("0123456789", 30)

	b := BeginCell()
	require.NoError(t, b.StoreStringSnake(long))
	c, err := b.EndCell()
	require.NoError(t, err)
	assert.Equal(t, 127*8, c.BitLen())
	require.Equal(t, 1, c.RefsNum())
	next, err := c.Ref(0)
	require.NoError(t, err)
	assert.Equal(t, 127*8, next.BitLen())

	got, err := c.BeginParse().LoadStringSnake()
	require.NoError(t, err)
	assert.Equal(t, long, got)

	short := BeginCell()
	require.NoError(t, short.StoreStringSnake("hi"))
	c, err = short.EndCell()
	require.NoError(t, err)
	assert.Equal(t, 0, c.RefsNum())
	got, err = c.BeginParse().LoadStringSnake()
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestAddressTags(t *testing.T) {
	b := BeginCell()
	require.NoError(t, b.StoreUInt(0b01, 2))
	c, err := b.EndCell()
	require.NoError(t, err)
	_, err = c.BeginParse().LoadAddress()
	require.ErrorIs(t, err, ErrUnknownTag)

	b = BeginCell()
	require.NoError(t, b.StoreAddress(nil))
	assert.Equal(t, 2, b.BitsUsed())
	c, err = b.EndCell()
	require.NoError(t, err)
	a, err := c.BeginParse().LoadAddress()
	require.NoError(t, err)
	assert.Nil(t, a)

	b = BeginCell()
	require.NoError(t, b.StoreAddress(&address.Address{Workchain: -1}))
	assert.Equal(t, 267, b.BitsUsed())
}

func TestStoreBuilderAndSlices(t *testing.T) {
	inner := BeginCell()
	require.NoError(t, inner.StoreUInt(0xab, 8))
	require.NoError(t, inner.StoreRef(Empty()))

	outer := BeginCell()
	require.NoError(t, outer.StoreBool(true))
	require.NoError(t, outer.StoreBuilder(inner))
	c, err := outer.EndCell()
	require.NoError(t, err)
	assert.Equal(t, 9, c.BitLen())
	assert.Equal(t, 1, c.RefsNum())

	s := c.BeginParse()
	_, err = s.LoadBool()
	require.NoError(t, err)
	rest, err := s.ToCell()
	require.NoError(t, err)
	assert.Equal(t, "AB", rest.Bits().String())
	assert.Equal(t, 1, rest.RefsNum())

	bits, err := c.BeginParse().LoadBits(5)
	require.NoError(t, err)
	assert.Equal(t, 5, bits.Len())
	raw, err := c.BeginParse().LoadSlice(9)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xd5, 0x80}, raw)
}

type halfWritten struct{}

func (halfWritten) MarshalCell(b *Builder) error {
	if err := b.StoreUInt(0xff, 8); err != nil {
		return err
	}
	if err := b.StoreRef(Empty()); err != nil {
		return err
	}
	return ErrUnknownTag
}

func TestFailedMaybeWritesNothing(t *testing.T) {
	b := BeginCell()
	require.NoError(t, b.StoreUInt(0b101, 3))
	require.NoError(t, b.StoreRef(Empty()))

	v := uint64(1)
	require.ErrorIs(t, b.StoreMaybeUInt(&v, -1), ErrValueOverflow)
	require.ErrorIs(t, b.StoreMaybeUInt(&v, 65), ErrValueOverflow)
	require.ErrorIs(t, b.StoreMaybeUInt(&v, 0), ErrValueOverflow)
	require.ErrorIs(t, b.StoreMaybe(halfWritten{}), ErrUnknownTag)
	assert.Equal(t, 3, b.BitsUsed())
	assert.Equal(t, 1, b.RefsUsed())

	require.NoError(t, b.StoreMaybeUInt(&v, 1))
	c, err := b.EndCell()
	require.NoError(t, err)
	assert.True(t, c.Bits().Equal(bin(t, "10111")))
	assert.Equal(t, 1, c.RefsNum())
}
