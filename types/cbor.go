package types

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error
	if cborEncMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(fmt.Sprintf("cbor encoding mode: %v", err))
	}
	if cborDecMode, err = (cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 1 << 20,
	}).DecMode(); err != nil {
		panic(fmt.Sprintf("cbor decoding mode: %v", err))
	}
}

// EncodeCBOR encodes v with the core deterministic CBOR encoding, so equal
// values always produce equal bytes.
func EncodeCBOR(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// DecodeCBOR decodes CBOR data into out, rejecting duplicated map keys.
func DecodeCBOR(data []byte, out any) error {
	return cborDecMode.Unmarshal(data, out)
}
