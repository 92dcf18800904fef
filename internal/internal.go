package internal

import (
	cid "github.com/ipfs/go-cid"
)

// Cell is the block form of a cell. Data holds BitLen bits packed MSB
// first without a completion tag.
type Cell struct {
	Kind   uint64
	BitLen uint64
	Data   []byte
	Refs   []cid.Cid
}

// Bag links the roots of a cell forest.
type Bag struct {
	Roots []cid.Cid
}
