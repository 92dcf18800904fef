package cell

import (
	"bytes"
	"context"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"golang.org/x/xerrors"

	"github.com/tonkit/go-tvm-cell/internal"
)

// Store keeps cell trees in an IPLD block store. Every cell becomes one
// DAG-CBOR block linking the blocks of its refs, so shared subtrees are
// stored once.
type Store struct {
	bs     cbor.IpldBlockstore
	cbs    *cbor.BasicIpldStore
	prefix cid.Prefix
	mhType uint64
}

// NewStore wraps bs. UseMultihash selects the hash function for CIDs; the
// other options are ignored.
func NewStore(bs cbor.IpldBlockstore, opts ...Option) (*Store, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	cbs := cbor.NewCborStore(bs)
	cbs.DefaultMultihash = cfg.mhType
	return &Store{
		bs:  bs,
		cbs: cbs,
		prefix: cid.Prefix{
			Version:  1,
			Codec:    cid.DagCBOR,
			MhType:   cfg.mhType,
			MhLength: -1,
		},
		mhType: cfg.mhType,
	}, nil
}

// Put writes the tree rooted at c and returns the CID of its root block.
func (s *Store) Put(ctx context.Context, c *Cell) (cid.Cid, error) {
	return s.link(ctx, c, make(map[[32]byte]cid.Cid), true)
}

// CidOf returns the CID Put would return for c without writing anything.
func (s *Store) CidOf(c *Cell) (cid.Cid, error) {
	return s.link(context.Background(), c, make(map[[32]byte]cid.Cid), false)
}

func (s *Store) link(ctx context.Context, c *Cell, seen map[[32]byte]cid.Cid, write bool) (cid.Cid, error) {
	h := c.Hash()
	if k, ok := seen[h]; ok {
		return k, nil
	}

	nd := internal.Cell{
		Kind:   uint64(c.kind),
		BitLen: uint64(c.bits.Len()),
		Data:   c.bits.Bytes(),
		Refs:   make([]cid.Cid, 0, len(c.refs)),
	}
	for _, r := range c.refs {
		k, err := s.link(ctx, r, seen, write)
		if err != nil {
			return cid.Undef, err
		}
		nd.Refs = append(nd.Refs, k)
	}

	raw, err := cborToBytes(&nd)
	if err != nil {
		return cid.Undef, err
	}
	k, err := s.prefix.Sum(raw)
	if err != nil {
		return cid.Undef, err
	}
	if write {
		blk, err := blocks.NewBlockWithCid(raw, k)
		if err != nil {
			return cid.Undef, err
		}
		if err := s.bs.Put(ctx, blk); err != nil {
			return cid.Undef, xerrors.Errorf("putting cell %x: %w", h, err)
		}
	}
	seen[h] = k
	return k, nil
}

// Load reads the tree rooted at k and rebuilds it. Every cell is validated
// again and every block is checked against its CID.
func (s *Store) Load(ctx context.Context, k cid.Cid) (*Cell, error) {
	memo := make(map[cid.Cid]*Cell)
	c, err := s.load(ctx, k, 0, memo)
	if err != nil {
		return nil, err
	}
	log.Debugw("loaded cell tree", "cid", k, "cells", len(memo))
	return c, nil
}

func (s *Store) load(ctx context.Context, k cid.Cid, depth int, memo map[cid.Cid]*Cell) (*Cell, error) {
	if depth > MaxDepth {
		return nil, xerrors.Errorf("loading %s: %w", k, ErrDepthLimit)
	}
	if c, ok := memo[k]; ok {
		return c, nil
	}

	raw, err := s.getVerified(ctx, k)
	if err != nil {
		return nil, err
	}
	var nd internal.Cell
	if err := nd.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
		return nil, xerrors.Errorf("decoding cell %s: %w", k, err)
	}
	if nd.Kind > 0xff {
		return nil, xerrors.Errorf("cell %s kind %d: %w", k, nd.Kind, ErrUnknownKind)
	}
	if nd.BitLen > MaxBits || uint64(len(nd.Data)) != (nd.BitLen+7)/8 {
		return nil, xerrors.Errorf("cell %s has %d data bytes for %d bits", k, len(nd.Data), nd.BitLen)
	}
	if len(nd.Refs) > MaxRefs {
		return nil, xerrors.Errorf("cell %s has %d refs", k, len(nd.Refs))
	}

	refs := make([]*Cell, len(nd.Refs))
	for i, rk := range nd.Refs {
		if refs[i], err = s.load(ctx, rk, depth+1, memo); err != nil {
			return nil, err
		}
	}
	bits, err := NewBitString(nd.Data, int(nd.BitLen))
	if err != nil {
		return nil, err
	}
	c, err := New(Kind(nd.Kind), bits, refs)
	if err != nil {
		return nil, xerrors.Errorf("rebuilding cell %s: %w", k, err)
	}
	memo[k] = c
	return c, nil
}

func (s *Store) getVerified(ctx context.Context, k cid.Cid) ([]byte, error) {
	blk, err := s.bs.Get(ctx, k)
	if err != nil {
		return nil, xerrors.Errorf("getting block %s: %w", k, err)
	}
	got, err := k.Prefix().Sum(blk.RawData())
	if err != nil {
		return nil, err
	}
	if !got.Equals(k) {
		return nil, xerrors.Errorf("block %s hashes to %s", k, got)
	}
	return blk.RawData(), nil
}

// PutBOC serializes roots and stores the bag of cells as a single raw block.
func (s *Store) PutBOC(ctx context.Context, roots []*Cell, opts ...Option) (cid.Cid, error) {
	data, err := Serialize(roots, opts...)
	if err != nil {
		return cid.Undef, err
	}
	k, err := cid.NewPrefixV1(cid.Raw, s.mhType).Sum(data)
	if err != nil {
		return cid.Undef, err
	}
	blk, err := blocks.NewBlockWithCid(data, k)
	if err != nil {
		return cid.Undef, err
	}
	if err := s.bs.Put(ctx, blk); err != nil {
		return cid.Undef, xerrors.Errorf("putting bag of cells: %w", err)
	}
	return k, nil
}

// LoadBOC reads a block written by PutBOC and deserializes it.
func (s *Store) LoadBOC(ctx context.Context, k cid.Cid, opts ...Option) ([]*Cell, error) {
	if k.Type() != cid.Raw {
		return nil, xerrors.Errorf("bag of cells block %s has codec %#x, expected raw", k, k.Type())
	}
	data, err := s.getVerified(ctx, k)
	if err != nil {
		return nil, err
	}
	return Deserialize(data, opts...)
}

// PutBag stores every root with Put and links them from one bag block.
func (s *Store) PutBag(ctx context.Context, roots []*Cell) (cid.Cid, error) {
	if len(roots) == 0 {
		return cid.Undef, ErrNoRoots
	}
	seen := make(map[[32]byte]cid.Cid)
	bag := internal.Bag{Roots: make([]cid.Cid, len(roots))}
	for i, r := range roots {
		k, err := s.link(ctx, r, seen, true)
		if err != nil {
			return cid.Undef, xerrors.Errorf("putting root %d: %w", i, err)
		}
		bag.Roots[i] = k
	}
	return s.cbs.Put(ctx, &bag)
}

// LoadBag reads a bag written by PutBag and loads its roots.
func (s *Store) LoadBag(ctx context.Context, k cid.Cid) ([]*Cell, error) {
	var bag internal.Bag
	if err := s.cbs.Get(ctx, k, &bag); err != nil {
		return nil, xerrors.Errorf("getting bag %s: %w", k, err)
	}
	if len(bag.Roots) == 0 {
		return nil, xerrors.Errorf("bag %s: %w", k, ErrNoRoots)
	}
	memo := make(map[cid.Cid]*Cell)
	out := make([]*Cell, len(bag.Roots))
	for i, rk := range bag.Roots {
		c, err := s.load(ctx, rk, 0, memo)
		if err != nil {
			return nil, xerrors.Errorf("loading root %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}
