package cell

import (
	"fmt"

	mh "github.com/multiformats/go-multihash"
)

var defaultMaxCells = 1 << 20

type config struct {
	withCRC   bool
	withIndex bool
	maxCells  int
	mhType    uint64
}

type Option func(*config) error

// WithCRC32C appends a CRC32-C checksum to serialized bags of cells.
func WithCRC32C() Option {
	return func(c *config) error {
		c.withCRC = true
		return nil
	}
}

// WithIndex writes the cell offset index into serialized bags of cells.
func WithIndex() Option {
	return func(c *config) error {
		c.withIndex = true
		return nil
	}
}

// MaxCells bounds the number of cells a bag of cells may declare when it
// is deserialized.
func MaxCells(n int) Option {
	return func(c *config) error {
		if n < 1 {
			return fmt.Errorf("max cells must be at least 1, is %d", n)
		}
		c.maxCells = n
		return nil
	}
}

// UseMultihash selects the multihash used for store CIDs.
func UseMultihash(code uint64) Option {
	return func(c *config) error {
		if _, ok := mh.Codes[code]; !ok {
			return fmt.Errorf("unknown multihash code %#x", code)
		}
		c.mhType = code
		return nil
	}
}

func defaultConfig() *config {
	return &config{
		maxCells: defaultMaxCells,
		mhType:   mh.SHA2_256,
	}
}

func newConfig(opts []Option) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
