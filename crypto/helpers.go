package crypto

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

const SerializedFieldSize = fr.Bytes // bytes

// BigToFF function returns the finite field representation of the big.Int
// provided. It uses the curve scalar field to represent the provided number.
func BigToFF(baseField, iv *big.Int) *big.Int {
	z := big.NewInt(0)
	if c := iv.Cmp(baseField); c == 0 {
		return z
	} else if c != 1 && iv.Cmp(z) != -1 {
		return iv
	}
	return z.Mod(iv, baseField)
}

// ElementToLE encodes a field element in its canonical 32 byte little-endian
// form, which is the wire format of commitments, nullifiers and anchors.
func ElementToLE(e fr.Element) [SerializedFieldSize]byte {
	var buf [SerializedFieldSize]byte
	fr.LittleEndian.PutElement(&buf, e)
	return buf
}

// ElementFromLE decodes a canonical 32 byte little-endian field element. It
// rejects inputs of the wrong size and values not reduced modulo the field.
func ElementFromLE(b []byte) (fr.Element, error) {
	if len(b) != SerializedFieldSize {
		return fr.Element{}, fmt.Errorf("invalid field element size: %d", len(b))
	}
	var buf [SerializedFieldSize]byte
	copy(buf[:], b)
	e, err := fr.LittleEndian.Element(&buf)
	if err != nil {
		return fr.Element{}, fmt.Errorf("non canonical field element: %w", err)
	}
	return e, nil
}

// ElementsToLE encodes a list of field elements with ElementToLE.
func ElementsToLE(es []fr.Element) [][]byte {
	out := make([][]byte, len(es))
	for i := range es {
		b := ElementToLE(es[i])
		out[i] = b[:]
	}
	return out
}

// ElementsFromLE decodes a list of field elements with ElementFromLE.
func ElementsFromLE(bs [][]byte) ([]fr.Element, error) {
	out := make([]fr.Element, len(bs))
	for i, b := range bs {
		e, err := ElementFromLE(b)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = e
	}
	return out, nil
}

// ElementFromBig reduces a big integer into the scalar field.
func ElementFromBig(n *big.Int) fr.Element {
	var e fr.Element
	e.SetBigInt(BigToFF(fr.Modulus(), n))
	return e
}

// ElementToBig returns the canonical integer value of a field element.
func ElementToBig(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

// ElementFromUint64 returns the field element holding v.
func ElementFromUint64(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}
