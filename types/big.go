package types

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// BigInt is a big.Int wrapper which marshals JSON to a string representation of
// the big number. Note that a nil pointer value marshals as the empty string.
type BigInt big.Int

// MarshalText returns the decimal string representation of the big number.
// If the receiver is nil, we return "0".
func (i *BigInt) MarshalText() ([]byte, error) {
	if i == nil {
		return []byte("0"), nil
	}
	return (*big.Int)(i).MarshalText()
}

// UnmarshalText parses the text representation into the big number.
func (i *BigInt) UnmarshalText(data []byte) error {
	if i == nil {
		return fmt.Errorf("cannot unmarshal into nil BigInt")
	}
	return (*big.Int)(i).UnmarshalText(data)
}

// MarshalCBOR encodes the number as a CBOR bignum.
func (i *BigInt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(i.MathBigInt())
}

// UnmarshalCBOR decodes a CBOR bignum into the number.
func (i *BigInt) UnmarshalCBOR(data []byte) error {
	n := new(big.Int)
	if err := cbor.Unmarshal(data, n); err != nil {
		return err
	}
	i.SetBigInt(n)
	return nil
}

// String returns the decimal representation of the number.
func (i *BigInt) String() string {
	return (*big.Int)(i).String()
}

// MathBigInt converts b to a math/big *Int.
func (i *BigInt) MathBigInt() *big.Int {
	if i == nil {
		return new(big.Int)
	}
	return (*big.Int)(i)
}

// SetBigInt sets the value of the receiver to n and returns it.
func (i *BigInt) SetBigInt(n *big.Int) *BigInt {
	(*big.Int)(i).Set(n)
	return i
}

// Bytes returns the big-endian bytes of the absolute value.
func (i *BigInt) Bytes() []byte {
	return (*big.Int)(i).Bytes()
}

// SetBytes interprets data as big-endian unsigned bytes.
func (i *BigInt) SetBytes(data []byte) *BigInt {
	(*big.Int)(i).SetBytes(data)
	return i
}

// Equal helps us with go-cmp.
func (i *BigInt) Equal(j *BigInt) bool {
	return i.MathBigInt().Cmp(j.MathBigInt()) == 0
}
