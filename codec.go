package cell

// Marshaler is implemented by values that write themselves into a cell
// builder. Field order is defined by the value.
type Marshaler interface {
	MarshalCell(b *Builder) error
}

// Unmarshaler reads fields back in the order MarshalCell wrote them.
type Unmarshaler interface {
	UnmarshalCell(s *Slice) error
}

// Encode writes v into a fresh cell.
func Encode(v Marshaler) (*Cell, error) {
	b := BeginCell()
	if err := v.MarshalCell(b); err != nil {
		return nil, err
	}
	return b.EndCell()
}

// Decode reads v from c.
func Decode(c *Cell, v Unmarshaler) error {
	return v.UnmarshalCell(c.BeginParse())
}
