// Package bn254 wraps the G1 group of the BN254 curve as an ecc.Point. Value
// commitments and binding signatures live in this group.
package bn254

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
	curve "github.com/vocdoni/vocdoni-z-shielded/crypto/ecc"
	"github.com/vocdoni/vocdoni-z-shielded/types"
)

const CurveType = "bn254"

// CompressedSize is the size in bytes of a compressed G1 point.
const CompressedSize = bn254.SizeOfG1AffineCompressed

var Generator bn254.G1Jac

func init() {
	Generator.X.SetOne()
	Generator.Y.SetUint64(2)
	Generator.Z.SetOne()
}

// G1 is the affine representation of a G1 group element.
type G1 struct {
	inner *bn254.G1Affine
	lock  sync.Mutex
}

// New returns the identity of G1 (point at infinity).
func New() *G1 {
	return &G1{inner: new(bn254.G1Affine)}
}

// MapToGroup hashes msg to a G1 point with the domain separation tag dst. The
// discrete logarithm of the result with respect to any other point obtained
// this way, or to the generator, is unknown.
func MapToGroup(msg, dst []byte) (*G1, error) {
	p, err := bn254.HashToG1(msg, dst)
	if err != nil {
		return nil, fmt.Errorf("hash to G1: %w", err)
	}
	return &G1{inner: &p}, nil
}

func (g *G1) New() curve.Point {
	return New()
}

func (g *G1) Order() *big.Int {
	return fr.Modulus()
}

func (g *G1) Add(a, b curve.Point) {
	temp := new(bn254.G1Affine)
	temp.Add(a.(*G1).inner, b.(*G1).inner)
	*g.inner = *temp
}

func (g *G1) SafeAdd(a, b curve.Point) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.Add(a, b)
}

func (g *G1) ScalarMult(a curve.Point, scalar *big.Int) {
	temp := new(bn254.G1Affine)
	temp.ScalarMultiplication(a.(*G1).inner, scalar)
	*g.inner = *temp
}

func (g *G1) ScalarBaseMult(scalar *big.Int) {
	g.inner.ScalarMultiplicationBase(scalar)
}

// Marshal returns the compressed encoding of the point.
func (g *G1) Marshal() []byte {
	b := g.inner.Bytes()
	return b[:]
}

// Unmarshal accepts both the compressed and the uncompressed encodings. The
// point is checked to be on the curve and in the prime order subgroup.
func (g *G1) Unmarshal(buf []byte) error {
	if g.inner == nil {
		g.inner = new(bn254.G1Affine)
	}
	_, err := g.inner.SetBytes(buf)
	return err
}

func (g *G1) MarshalJSON() ([]byte, error) {
	x := types.BigInt(*g.inner.X.BigInt(new(big.Int)))
	y := types.BigInt(*g.inner.Y.BigInt(new(big.Int)))
	return json.Marshal([]types.BigInt{x, y})
}

func (g *G1) UnmarshalJSON(buf []byte) error {
	if g.inner == nil {
		g.inner = new(bn254.G1Affine)
	}
	var coords []types.BigInt
	if err := json.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 {
		return fmt.Errorf("expected 2 coordinates, got %d", len(coords))
	}
	g.inner.X.SetBigInt(coords[0].MathBigInt())
	g.inner.Y.SetBigInt(coords[1].MathBigInt())
	if !g.inner.IsInSubGroup() {
		return fmt.Errorf("point is not in the G1 subgroup")
	}
	return nil
}

// MarshalCBOR encodes the point as a CBOR byte string holding its
// compressed form.
func (g *G1) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(g.Marshal())
}

func (g *G1) UnmarshalCBOR(buf []byte) error {
	var b []byte
	if err := cbor.Unmarshal(buf, &b); err != nil {
		return err
	}
	return g.Unmarshal(b)
}

func (g *G1) Equal(a curve.Point) bool {
	return g.inner.Equal(a.(*G1).inner)
}

func (g *G1) Neg(a curve.Point) {
	g.inner.Neg(a.(*G1).inner)
}

func (g *G1) SetZero() {
	g.inner.X.SetZero()
	g.inner.Y.SetZero()
}

func (g *G1) IsZero() bool {
	return g.inner.IsInfinity()
}

func (g *G1) Set(a curve.Point) {
	g.inner.X.Set(&a.(*G1).inner.X)
	g.inner.Y.Set(&a.(*G1).inner.Y)
}

func (g *G1) SetGenerator() {
	g.inner.FromJacobian(&Generator)
}

func (g *G1) String() string {
	return fmt.Sprintf("%x", g.Marshal())
}

func (g *G1) Point() (*big.Int, *big.Int) {
	return g.inner.X.BigInt(new(big.Int)), g.inner.Y.BigInt(new(big.Int))
}

func (g *G1) SetPoint(x, y *big.Int) curve.Point {
	p := New()
	p.inner.X.SetBigInt(x)
	p.inner.Y.SetBigInt(y)
	return p
}

func (g *G1) Type() string {
	return CurveType
}

// Affine returns a copy of the underlying gnark-crypto point.
func (g *G1) Affine() bn254.G1Affine {
	return *g.inner
}
