package cell

import (
	"golang.org/x/xerrors"
)

// SignatureBits is the width of the signature SignCell prepends.
const SignatureBits = 512

// Signer produces detached signatures, typically ed25519.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	PublicKey() []byte
}

// SignCell signs the representation hash of body and returns a cell that
// starts with the 512 bit signature followed by the bits and refs of body.
func SignCell(s Signer, body *Cell) (*Cell, error) {
	h := body.Hash()
	sig, err := s.Sign(h[:])
	if err != nil {
		return nil, xerrors.Errorf("signing cell %x: %w", h, err)
	}
	if len(sig) != SignatureBits/8 {
		return nil, xerrors.Errorf("signature is %d bytes, expected %d", len(sig), SignatureBits/8)
	}

	b := BeginCell()
	if err := b.StoreSlice(sig, SignatureBits); err != nil {
		return nil, err
	}
	if err := b.StoreBits(body.bits); err != nil {
		return nil, xerrors.Errorf("body does not fit next to the signature: %w", err)
	}
	for _, r := range body.refs {
		if err := b.StoreRef(r); err != nil {
			return nil, err
		}
	}
	return b.EndCell()
}
