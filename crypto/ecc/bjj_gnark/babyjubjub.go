// Package bjj wraps the BabyJubJub twisted Edwards curve embedded in the BN254
// scalar field. Coordinates are native BN254 scalar field elements, which
// makes the curve the natural place to derive in-field randomness such as the
// resource psi.
package bjj

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	babyjubjub "github.com/consensys/gnark-crypto/ecc/bn254/twistededwards"
	curve "github.com/vocdoni/vocdoni-z-shielded/crypto/ecc"
	"github.com/vocdoni/vocdoni-z-shielded/types"
)

const CurveType = "bjj_gnark"

var Params babyjubjub.CurveParams

func init() {
	Params = babyjubjub.GetEdwardsCurve()
}

// BJJ is the affine representation of the BabyJubJub group element.
type BJJ struct {
	inner *babyjubjub.PointAffine
	lock  sync.Mutex
}

// New creates a new BJJ point (identity element by default).
func New() curve.Point {
	p := &BJJ{inner: new(babyjubjub.PointAffine)}
	p.SetZero()
	return p
}

// New creates a new BJJ point (identity element by default).
func (g *BJJ) New() curve.Point {
	return New()
}

// Order returns the order of the BabyJubJub curve subgroup.
func (g *BJJ) Order() *big.Int {
	return new(big.Int).Set(&Params.Order)
}

// Add performs the addition of two points and stores the result in g.
func (g *BJJ) Add(a, b curve.Point) {
	g.inner.Add(a.(*BJJ).inner, b.(*BJJ).inner)
}

// SafeAdd performs the addition of two points with a lock.
func (g *BJJ) SafeAdd(a, b curve.Point) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.Add(a, b)
}

// ScalarMult performs scalar multiplication of a point by a scalar. The
// scalar is reduced modulo the subgroup order first.
func (g *BJJ) ScalarMult(a curve.Point, scalar *big.Int) {
	g.inner.ScalarMultiplication(a.(*BJJ).inner, curve.BigToFF(&Params.Order, scalar))
}

// ScalarBaseMult performs scalar multiplication using the base point.
func (g *BJJ) ScalarBaseMult(scalar *big.Int) {
	g.SetGenerator()
	g.ScalarMult(g, scalar)
}

// Equal checks if the given point is equal to the current point.
func (g *BJJ) Equal(a curve.Point) bool {
	return g.inner.Equal(a.(*BJJ).inner)
}

// Neg negates the given point and stores the result in g.
func (g *BJJ) Neg(a curve.Point) {
	g.inner.Neg(a.(*BJJ).inner)
}

// SetZero sets the current point to the identity element (0, 1).
func (g *BJJ) SetZero() {
	g.inner.X.SetZero()
	g.inner.Y.SetOne()
}

// IsZero reports whether the point is the identity element.
func (g *BJJ) IsZero() bool {
	return g.inner.IsZero()
}

// Set sets g to the value of another point.
func (g *BJJ) Set(a curve.Point) {
	g.inner.Set(a.(*BJJ).inner)
}

// SetGenerator sets the point to the BabyJubJub base point.
func (g *BJJ) SetGenerator() {
	g.inner.Set(&Params.Base)
}

func (g *BJJ) String() string {
	x, y := g.Point()
	return fmt.Sprintf("%s,%s", x.String(), y.String())
}

// Marshal serializes the point in its compressed form.
func (g *BJJ) Marshal() []byte {
	return g.inner.Marshal()
}

// Unmarshal deserializes a compressed point.
func (g *BJJ) Unmarshal(buf []byte) error {
	if g.inner == nil {
		g.inner = new(babyjubjub.PointAffine)
	}
	return g.inner.Unmarshal(buf)
}

func (g *BJJ) MarshalJSON() ([]byte, error) {
	x, y := g.Point()
	return json.Marshal([]types.BigInt{types.BigInt(*x), types.BigInt(*y)})
}

func (g *BJJ) UnmarshalJSON(buf []byte) error {
	var coords []types.BigInt
	if err := json.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 {
		return fmt.Errorf("expected 2 coordinates, got %d", len(coords))
	}
	if g.inner == nil {
		g.inner = new(babyjubjub.PointAffine)
	}
	g.inner.X.SetBigInt(coords[0].MathBigInt())
	g.inner.Y.SetBigInt(coords[1].MathBigInt())
	if !g.inner.IsOnCurve() {
		return fmt.Errorf("point is not on the curve")
	}
	return nil
}

// Point returns the X and Y coordinates of the point.
func (g *BJJ) Point() (*big.Int, *big.Int) {
	x, y := new(big.Int), new(big.Int)
	g.inner.X.BigInt(x)
	g.inner.Y.BigInt(y)
	return x, y
}

// SetPoint returns a new point with the coordinates provided.
func (g *BJJ) SetPoint(x, y *big.Int) curve.Point {
	p := &BJJ{inner: new(babyjubjub.PointAffine)}
	p.inner.X.SetBigInt(x)
	p.inner.Y.SetBigInt(y)
	return p
}

func (g *BJJ) Type() string {
	return CurveType
}
