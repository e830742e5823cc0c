package util

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// RandomBytes generates a random byte slice of length n.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return b
}

// Random32 generates a random 32-byte array.
func Random32() [32]byte {
	var bytes [32]byte
	copy(bytes[:], RandomBytes(32))
	return bytes
}

// RandomHex generates a random hex string of length n.
func RandomHex(n int) string {
	return fmt.Sprintf("%x", RandomBytes(n))
}

// RandomInt generates a random integer between min and max.
func RandomInt(min, max int) int {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(max-min)))
	if err != nil {
		panic(err)
	}
	return int(num.Int64()) + min
}

// RandomElement returns a uniformly random element of the BN254 scalar field
// read from the crypto/rand source. It panics if the source fails.
func RandomElement() fr.Element {
	e, err := ReadElement(rand.Reader)
	if err != nil {
		panic(err)
	}
	return e
}

// ReadElement reads a uniformly random element of the BN254 scalar field from
// the provided source of randomness.
func ReadElement(r io.Reader) (fr.Element, error) {
	n, err := rand.Int(r, fr.Modulus())
	if err != nil {
		return fr.Element{}, fmt.Errorf("read random field element: %w", err)
	}
	var e fr.Element
	e.SetBigInt(n)
	return e, nil
}

// TrimHex trims the '0x' prefix from a hex string.
func TrimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
