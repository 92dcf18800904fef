package cell

import (
	"bytes"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	cbg "github.com/whyrusleeping/cbor-gen"
)

var log = logging.Logger("tvmcell")

var bufferPool sync.Pool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(nil)
	},
}

func cborToBytes(val cbg.CBORMarshaler) ([]byte, error) {
	// Temporary location to put values. We'll copy them to an exact-sized buffer when done.
	valueBuf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		valueBuf.Reset()
		bufferPool.Put(valueBuf)
	}()

	if err := val.MarshalCBOR(valueBuf); err != nil {
		return nil, err
	}

	// Copy to shrink the allocation.
	buf := valueBuf.Bytes()
	cpy := make([]byte, len(buf))
	copy(cpy, buf)

	return cpy, nil
}

// childPath returns path extended by i in a fresh slice.
func childPath(path []int, i int) []int {
	out := make([]int, len(path)+1)
	copy(out, path)
	out[len(path)] = i
	return out
}
