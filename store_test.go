package cell

import (
	"context"
	"fmt"
	"testing"

	block "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonkit/go-tvm-cell/internal"
)

type mockBlocks struct {
	data               map[cid.Cid]block.Block
	getCount, putCount int
}

func newMockBlocks() *mockBlocks {
	return &mockBlocks{make(map[cid.Cid]block.Block), 0, 0}
}

func (mb *mockBlocks) Get(_ context.Context, c cid.Cid) (block.Block, error) {
	d, ok := mb.data[c]
	mb.getCount++
	if ok {
		return d, nil
	}
	return nil, fmt.Errorf("Not Found")
}

func (mb *mockBlocks) Put(_ context.Context, b block.Block) error {
	mb.putCount++
	mb.data[b.Cid()] = b
	return nil
}

func (mb *mockBlocks) report(b *testing.B) {
	b.ReportMetric(float64(mb.getCount)/float64(b.N), "gets/op")
	b.ReportMetric(float64(mb.putCount)/float64(b.N), "puts/op")
}

func newTestStore(t testing.TB, opts ...Option) (*Store, *mockBlocks) {
	t.Helper()
	mb := newMockBlocks()
	s, err := NewStore(mb, opts...)
	require.NoError(t, err)
	return s, mb
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mb := newTestStore(t)

	tree := sampleTree(t)
	k, err := s.Put(ctx, tree)
	require.NoError(t, err)
	assert.Equal(t, uint64(cid.DagCBOR), k.Type())
	// one block per distinct cell
	assert.Equal(t, 5, mb.putCount)
	assert.Len(t, mb.data, 5)

	back, err := s.Load(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, tree.Hash(), back.Hash())
	assert.Equal(t, tree.Dump(), back.Dump())
	assert.Equal(t, 5, mb.getCount)

	again, err := s.Put(ctx, back)
	require.NoError(t, err)
	assert.Equal(t, k, again)
}

func TestStoreCidOf(t *testing.T) {
	s, mb := newTestStore(t)
	tree := sampleTree(t)

	k, err := s.CidOf(tree)
	require.NoError(t, err)
	assert.Equal(t, 0, mb.putCount)

	put, err := s.Put(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, k, put)

	other, err := s.CidOf(Empty())
	require.NoError(t, err)
	assert.NotEqual(t, k, other)
}

func TestStoreMultihash(t *testing.T) {
	s, _ := newTestStore(t, UseMultihash(mh.BLAKE2B_MIN+31))
	k, err := s.Put(context.Background(), sampleTree(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(mh.BLAKE2B_MIN+31), k.Prefix().MhType)

	back, err := s.Load(context.Background(), k)
	require.NoError(t, err)
	assert.Equal(t, sampleTree(t).Hash(), back.Hash())

	_, err = NewStore(newMockBlocks(), UseMultihash(0x7777777))
	require.Error(t, err)
}

func TestStoreExoticCells(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	proof, err := CreateProof(sampleTree(t), func(path []int, _ *Cell) bool { return path[0] == 2 })
	require.NoError(t, err)
	k, err := s.Put(ctx, proof)
	require.NoError(t, err)

	back, err := s.Load(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, proof.Hash(), back.Hash())
	assert.Equal(t, KindMerkleProof, back.Kind())
}

func TestStoreRejectsTamperedBlock(t *testing.T) {
	ctx := context.Background()
	s, mb := newTestStore(t)

	k, err := s.Put(ctx, Empty())
	require.NoError(t, err)

	other, err := s.CidOf(mustOrdinary(t, bin(t, "1")))
	require.NoError(t, err)
	_, err = s.Put(ctx, mustOrdinary(t, bin(t, "1")))
	require.NoError(t, err)

	blk, err := block.NewBlockWithCid(mb.data[other].RawData(), k)
	require.NoError(t, err)
	mb.data[k] = blk

	_, err = s.Load(ctx, k)
	require.Error(t, err)
}

func TestStoreRejectsInvalidCells(t *testing.T) {
	ctx := context.Background()
	s, mb := newTestStore(t)
	cbs := cbor.NewCborStore(mb)
	cbs.DefaultMultihash = mh.SHA2_256

	cases := map[string]*internal.Cell{
		"bit length mismatch": {BitLen: 9, Data: []byte{0xff}},
		"too many bits":       {BitLen: 1024, Data: make([]byte, 128)},
		"unknown kind":        {Kind: 300},
		"bad pruned branch":   {Kind: uint64(KindPrunedBranch), BitLen: 8, Data: []byte{1}},
	}
	for name, nd := range cases {
		t.Run(name, func(t *testing.T) {
			k, err := cbs.Put(ctx, nd)
			require.NoError(t, err)
			_, err = s.Load(ctx, k)
			require.Error(t, err)
		})
	}

	_, err := s.Load(ctx, cid.NewCidV1(cid.DagCBOR, mustSum(t, []byte("missing"))))
	require.Error(t, err)
}

func mustSum(t testing.TB, data []byte) mh.Multihash {
	t.Helper()
	h, err := mh.Sum(data, mh.SHA2_256, -1)
	require.NoError(t, err)
	return h
}

func TestStoreBOC(t *testing.T) {
	ctx := context.Background()
	s, mb := newTestStore(t)

	roots := []*Cell{sampleTree(t), Empty()}
	k, err := s.PutBOC(ctx, roots, WithCRC32C())
	require.NoError(t, err)
	assert.Equal(t, uint64(cid.Raw), k.Type())
	assert.Equal(t, 1, mb.putCount)

	back, err := s.LoadBOC(ctx, k)
	require.NoError(t, err)
	require.Len(t, back, 2)
	for i := range roots {
		assert.Equal(t, roots[i].Hash(), back[i].Hash())
	}

	treeKey, err := s.Put(ctx, Empty())
	require.NoError(t, err)
	_, err = s.LoadBOC(ctx, treeKey)
	require.Error(t, err)
}

func TestStoreBag(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	roots := []*Cell{sampleTree(t), Empty(), sampleTree(t)}
	k, err := s.PutBag(ctx, roots)
	require.NoError(t, err)

	back, err := s.LoadBag(ctx, k)
	require.NoError(t, err)
	require.Len(t, back, 3)
	for i := range roots {
		assert.Equal(t, roots[i].Hash(), back[i].Hash())
	}
	assert.Same(t, back[0], back[2])

	_, err = s.PutBag(ctx, nil)
	require.ErrorIs(t, err, ErrNoRoots)
}

func BenchmarkStorePutLoad(b *testing.B) {
	ctx := context.Background()
	s, mb := newTestStore(b)
	tree := sampleTree(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k, err := s.Put(ctx, tree)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := s.Load(ctx, k); err != nil {
			b.Fatal(err)
		}
	}
	mb.report(b)
}
