package cell

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonkit/go-tvm-cell/internal"
)

func TestChildPath(t *testing.T) {
	root := []int{1, 2}
	a := childPath(root, 0)
	b := childPath(root, 3)
	assert.Equal(t, []int{1, 2, 0}, a)
	assert.Equal(t, []int{1, 2, 3}, b)
	assert.Equal(t, []int{1, 2}, root)
	assert.Equal(t, []int{0}, childPath(nil, 0))
}

func TestCborToBytes(t *testing.T) {
	nd := &internal.Cell{Kind: 1, BitLen: 4, Data: []byte{0xa0}}
	raw, err := cborToBytes(nd)
	require.NoError(t, err)

	// pooled buffers must not leak into the result
	_, err = cborToBytes(&internal.Cell{BitLen: 8, Data: []byte{0xff}})
	require.NoError(t, err)

	var back internal.Cell
	require.NoError(t, back.UnmarshalCBOR(bytes.NewReader(raw)))
	assert.Equal(t, uint64(1), back.Kind)
	assert.Equal(t, uint64(4), back.BitLen)
	assert.Equal(t, []byte{0xa0}, back.Data)
	assert.Empty(t, back.Refs)
}
