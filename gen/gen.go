package main

import (
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/tonkit/go-tvm-cell/internal"
)

func main() {
	if err := cbg.WriteTupleEncodersToFile("internal/cbor_gen.go", "internal", internal.Cell{}, internal.Bag{}); err != nil {
		panic(err)
	}
}
