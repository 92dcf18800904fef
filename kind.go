package cell

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Kind discriminates ordinary cells from the exotic ones. Exotic kinds are
// numbered after the type byte that leads their storage.
type Kind uint8

const (
	KindOrdinary Kind = iota
	KindPrunedBranch
	KindLibrary
	KindMerkleProof
	KindMerkleUpdate
)

const (
	hashBits  = 256
	depthBits = 16

	libraryBits      = 8 + hashBits
	merkleProofBits  = 8 + hashBits + depthBits
	merkleUpdateBits = 8 + 2*(hashBits+depthBits)
)

func (k Kind) String() string {
	if int(k) < len(kindRules) {
		return kindRules[k].name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) IsExotic() bool {
	return k != KindOrdinary
}

func (k Kind) valid() bool {
	return int(k) < len(kindRules)
}

type kindRule struct {
	name string
	// check validates storage and refs for the kind and derives the level
	// mask. A non-empty reason rejects the cell.
	check func(data BitString, refs []*Cell) (mask LevelMask, reason string)
}

var kindRules = [...]kindRule{
	KindOrdinary:     {name: "ordinary", check: checkOrdinary},
	KindPrunedBranch: {name: "pruned branch", check: checkPrunedBranch},
	KindLibrary:      {name: "library", check: checkLibrary},
	KindMerkleProof:  {name: "merkle proof", check: checkMerkleProof},
	KindMerkleUpdate: {name: "merkle update", check: checkMerkleUpdate},
}

func checkOrdinary(data BitString, refs []*Cell) (LevelMask, string) {
	if data.Len() > MaxBits {
		return 0, fmt.Sprintf("at most %d bits allowed", MaxBits)
	}
	if len(refs) > MaxRefs {
		return 0, fmt.Sprintf("at most %d refs allowed", MaxRefs)
	}
	var mask LevelMask
	for _, r := range refs {
		mask |= r.mask
	}
	return mask, ""
}

func checkPrunedBranch(data BitString, refs []*Cell) (LevelMask, string) {
	if len(refs) != 0 {
		return 0, "refs are not allowed"
	}
	if data.Len() < 16 {
		return 0, "too short for type and level mask"
	}
	if reason := checkTypeByte(data, KindPrunedBranch); reason != "" {
		return 0, reason
	}
	mask := LevelMask(data.data[1])
	if mask == 0 || mask.Level() > MaxLevel {
		return 0, fmt.Sprintf("invalid level mask %#b", uint8(mask))
	}
	if want := 16 + mask.HashIndex()*(hashBits+depthBits); data.Len() != want {
		return 0, fmt.Sprintf("expected %d bits for level mask %#b", want, uint8(mask))
	}
	return mask, ""
}

func checkLibrary(data BitString, refs []*Cell) (LevelMask, string) {
	if len(refs) != 0 {
		return 0, "refs are not allowed"
	}
	if data.Len() != libraryBits {
		return 0, fmt.Sprintf("expected %d bits", libraryBits)
	}
	return 0, checkTypeByte(data, KindLibrary)
}

func checkMerkleProof(data BitString, refs []*Cell) (LevelMask, string) {
	if len(refs) != 1 {
		return 0, "exactly one ref required"
	}
	if data.Len() != merkleProofBits {
		return 0, fmt.Sprintf("expected %d bits", merkleProofBits)
	}
	if reason := checkTypeByte(data, KindMerkleProof); reason != "" {
		return 0, reason
	}
	if reason := checkEmbedded(data.data, 1, 1+32, refs[0], "proof"); reason != "" {
		return 0, reason
	}
	return refs[0].mask >> 1, ""
}

func checkMerkleUpdate(data BitString, refs []*Cell) (LevelMask, string) {
	if len(refs) != 2 {
		return 0, "exactly two refs required"
	}
	if data.Len() != merkleUpdateBits {
		return 0, fmt.Sprintf("expected %d bits", merkleUpdateBits)
	}
	if reason := checkTypeByte(data, KindMerkleUpdate); reason != "" {
		return 0, reason
	}
	if reason := checkEmbedded(data.data, 1, 1+64, refs[0], "old state"); reason != "" {
		return 0, reason
	}
	if reason := checkEmbedded(data.data, 1+32, 1+64+2, refs[1], "new state"); reason != "" {
		return 0, reason
	}
	return (refs[0].mask | refs[1].mask) >> 1, ""
}

func checkTypeByte(data BitString, k Kind) string {
	if data.Len() < 8 {
		return "missing type byte"
	}
	if got := data.data[0]; got != byte(k) {
		return fmt.Sprintf("type byte %d does not match kind", got)
	}
	return ""
}

// checkEmbedded compares a hash and depth stored in exotic cell data with
// the level 0 hash and depth of the referenced cell.
func checkEmbedded(data []byte, hashOff, depthOff int, ref *Cell, what string) string {
	h := ref.hash(0)
	if !bytes.Equal(data[hashOff:hashOff+32], h[:]) {
		return what + " hash mismatch"
	}
	if binary.BigEndian.Uint16(data[depthOff:depthOff+2]) != ref.depth(0) {
		return what + " depth mismatch"
	}
	return ""
}
