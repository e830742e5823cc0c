package ecc

import (
	"math/big"
)

// Point defines the common operations that can be performed on elliptic curve
// group elements. Implementations wrap the affine points of gnark-crypto and
// are selected by name with the curves package.
type Point interface {
	// New returns a new elliptic curve point set to the identity.
	New() Point

	// Order returns the order of the elliptic curve group.
	Order() *big.Int

	// Add adds two elliptic curve group elements and stores the result in the receiver.
	Add(a, b Point)

	// SafeAdd adds two elliptic curve group elements and stores the result in the receiver.
	// It is thread-safe, ensuring exclusive access to the receiver during the operation.
	SafeAdd(a, b Point)

	// ScalarMult multiplies the group element a by the scalar value.
	ScalarMult(a Point, scalar *big.Int)

	// ScalarBaseMult sets the receiver to the generator point multiplied by scalar.
	ScalarBaseMult(scalar *big.Int)

	// Marshal serializes the elliptic curve element into a byte slice.
	Marshal() []byte

	// Unmarshal deserializes a byte slice into an elliptic curve element.
	// The input buf must represent a valid serialized point, or an error will be returned.
	Unmarshal(buf []byte) error

	// Equal checks if two elliptic curve elements are equal.
	Equal(a Point) bool

	// Neg sets the receiver to the inverse of a.
	Neg(a Point)

	// SetZero sets the elliptic curve element to the identity element.
	SetZero()

	// IsZero reports whether the element is the identity.
	IsZero() bool

	// Set sets the value of the receiver to be equal to another elliptic curve element.
	Set(a Point)

	// SetGenerator sets the elliptic curve element to the generator point.
	SetGenerator()

	// String returns the hexadecimal string representation of the elliptic curve element.
	String() string

	// Point returns the X and Y coordinates of the elliptic curve element.
	Point() (*big.Int, *big.Int)

	// SetPoint returns a new element with the X and Y coordinates provided.
	SetPoint(x, y *big.Int) Point

	// Type returns the name of the curve implementation.
	Type() string
}
