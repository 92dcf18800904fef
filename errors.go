package cell

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientBits    = errors.New("not enough bits in buffer")
	ErrValueOverflow       = errors.New("value does not fit into bit width")
	ErrUnexpectedEndOfData = errors.New("unexpected end of cell data")
	ErrMissingChild        = errors.New("no more child cells to load")
	ErrUnknownKind         = errors.New("unknown cell kind")
	ErrUnknownTag          = errors.New("unknown tag")
	ErrMalformedBOC        = errors.New("malformed bag of cells")
	ErrDepthLimit          = errors.New("cell depth limit exceeded")
	ErrNoRoots             = errors.New("bag of cells requires at least one root")
	ErrUnreadData          = errors.New("slice has unread data")
)

// ConstraintError reports a cell whose storage or references violate the
// layout required by its kind. No cell is produced when it is returned.
type ConstraintError struct {
	Kind   Kind
	Bits   int
	Refs   int
	Reason string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s cell with %d bits and %d refs: %s", e.Kind, e.Bits, e.Refs, e.Reason)
}
