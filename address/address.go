// Package address encodes account addresses in their raw "wc:hex" and
// checksummed base64 ("friendly") text forms.
package address

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

const (
	WorkchainBasic  int8 = 0
	WorkchainMaster int8 = -1
)

const (
	friendlyLen = 36
	textLen     = 48

	tagBounceable    byte = 0x11
	tagNonBounceable byte = 0x51
	tagTestOnly      byte = 0x80
)

var (
	ErrInvalidChecksum = errors.New("address checksum mismatch")
	ErrInvalidFormat   = errors.New("invalid address format")
	ErrUnknownTag      = errors.New("unknown address tag")
)

type Address struct {
	Workchain int8
	Hash      [32]byte
}

// Flags are the options carried by the tag byte of a friendly address.
type Flags struct {
	Bounceable bool
	TestOnly   bool
}

type Encoding int

const (
	URLSafe Encoding = iota
	Standard
)

func New(workchain int8, hash [32]byte) Address {
	return Address{Workchain: workchain, Hash: hash}
}

// ParseRaw parses the "<workchain>:<64 hex chars>" form.
func ParseRaw(s string) (Address, error) {
	wc, h, ok := strings.Cut(s, ":")
	if !ok {
		return Address{}, xerrors.Errorf("%q has no workchain separator: %w", s, ErrInvalidFormat)
	}
	w, err := strconv.ParseInt(wc, 10, 8)
	if err != nil {
		return Address{}, xerrors.Errorf("workchain %q: %w", wc, ErrInvalidFormat)
	}
	if len(h) != 64 {
		return Address{}, xerrors.Errorf("hash must be 64 hex chars, got %d: %w", len(h), ErrInvalidFormat)
	}
	var a Address
	if _, err := hex.Decode(a.Hash[:], []byte(h)); err != nil {
		return Address{}, xerrors.Errorf("hash %q: %w", h, ErrInvalidFormat)
	}
	a.Workchain = int8(w)
	return a, nil
}

// ParseFriendly decodes a 48 character base64 or base64url address. The
// checksum is verified before anything else is interpreted.
func ParseFriendly(s string) (Address, Flags, error) {
	if len(s) != textLen {
		return Address{}, Flags{}, xerrors.Errorf("friendly address must be %d chars, got %d: %w", textLen, len(s), ErrInvalidFormat)
	}
	enc := base64.URLEncoding
	if strings.ContainsAny(s, "+/") {
		enc = base64.StdEncoding
	}
	data, err := enc.DecodeString(s)
	if err != nil || len(data) != friendlyLen {
		return Address{}, Flags{}, xerrors.Errorf("decoding %q: %w", s, ErrInvalidFormat)
	}

	if got, want := binary.BigEndian.Uint16(data[34:]), crc16(data[:34]); got != want {
		return Address{}, Flags{}, xerrors.Errorf("checksum %04x, expected %04x: %w", got, want, ErrInvalidChecksum)
	}

	var f Flags
	tag := data[0]
	if tag&tagTestOnly != 0 {
		f.TestOnly = true
		tag &^= tagTestOnly
	}
	switch tag {
	case tagBounceable:
		f.Bounceable = true
	case tagNonBounceable:
	default:
		return Address{}, Flags{}, xerrors.Errorf("tag %#x: %w", data[0], ErrUnknownTag)
	}

	a := Address{Workchain: int8(data[1])}
	copy(a.Hash[:], data[2:34])
	return a, f, nil
}

// Parse accepts either the raw or the friendly form.
func Parse(s string) (Address, error) {
	if strings.Contains(s, ":") {
		return ParseRaw(s)
	}
	a, _, err := ParseFriendly(s)
	return a, err
}

func (a Address) Raw() string {
	return fmt.Sprintf("%d:%x", a.Workchain, a.Hash[:])
}

func (a Address) Friendly(f Flags, e Encoding) string {
	data := make([]byte, friendlyLen)
	data[0] = tagNonBounceable
	if f.Bounceable {
		data[0] = tagBounceable
	}
	if f.TestOnly {
		data[0] |= tagTestOnly
	}
	data[1] = byte(a.Workchain)
	copy(data[2:34], a.Hash[:])
	binary.BigEndian.PutUint16(data[34:], crc16(data[:34]))

	if e == Standard {
		return base64.StdEncoding.EncodeToString(data)
	}
	return base64.URLEncoding.EncodeToString(data)
}

// String returns the bounceable url-safe friendly form.
func (a Address) String() string {
	return a.Friendly(Flags{Bounceable: true}, URLSafe)
}
