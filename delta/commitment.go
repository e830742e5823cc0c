// Package delta implements the homomorphic value commitments of the protocol
// and the binding signature proving that a set of them balances.
//
// A delta commitment to consumed values c_i and created values o_j is
//
//	D = sum(G_kind(c_i) * q(c_i)) - sum(G_kind(o_j) * q(o_j)) + R * blind
//
// where every asset kind (resource logic and label) has an independent
// generator G_kind and R is the blinding generator. Commitments add up, so a
// transaction whose quantities cancel per kind has a total delta equal to
// R * (sum of blinds).
package delta

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/crypto/ecc/bn254"
	"github.com/vocdoni/vocdoni-z-shielded/crypto/hash/poseidon"
)

// ErrInvalidCommitment is returned when decoding a malformed commitment.
var ErrInvalidCommitment = errors.New("invalid delta commitment")

// Value is a quantity of one asset kind.
type Value struct {
	Logic    fr.Element
	Label    fr.Element
	Quantity uint64
}

// Commitment is a delta commitment, a point of the BN254 G1 group. The zero
// value is not usable, use Zero or one of the constructors.
type Commitment struct {
	point *bn254.G1
}

// Zero returns the identity commitment.
func Zero() *Commitment {
	return &Commitment{point: bn254.New()}
}

// Commit returns the delta commitment of the consumed and created values
// under blind. Consumed values count positively, created ones negatively.
func Commit(params *config.Params, consumed, created []Value, blind fr.Element) (*Commitment, error) {
	acc := bn254.New()
	add := func(v Value, negate bool) error {
		if v.Quantity == 0 {
			return nil
		}
		g, err := params.KindGenerator(v.Logic, v.Label)
		if err != nil {
			return err
		}
		term := bn254.New()
		term.ScalarMult(g, new(big.Int).SetUint64(v.Quantity))
		if negate {
			term.Neg(term)
		}
		acc.Add(acc, term)
		return nil
	}
	for _, v := range consumed {
		if err := add(v, false); err != nil {
			return nil, fmt.Errorf("consumed value: %w", err)
		}
	}
	for _, v := range created {
		if err := add(v, true); err != nil {
			return nil, fmt.Errorf("created value: %w", err)
		}
	}
	blinding := bn254.New()
	blinding.ScalarMult(params.ValueBase(), crypto.ElementToBig(blind))
	acc.Add(acc, blinding)
	return &Commitment{point: acc}, nil
}

// CommitBlind returns R * blind, the commitment to a zero net value.
func CommitBlind(params *config.Params, blind fr.Element) *Commitment {
	p := bn254.New()
	p.ScalarMult(params.ValueBase(), crypto.ElementToBig(blind))
	return &Commitment{point: p}
}

// Aggregate returns the homomorphic sum of the commitments.
func Aggregate(commitments ...*Commitment) *Commitment {
	total := Zero()
	for _, c := range commitments {
		total.Add(total, c)
	}
	return total
}

// Add sets the receiver to a + b and returns it.
func (c *Commitment) Add(a, b *Commitment) *Commitment {
	if c.point == nil {
		c.point = bn254.New()
	}
	c.point.Add(a.point, b.point)
	return c
}

// Sub sets the receiver to a - b and returns it.
func (c *Commitment) Sub(a, b *Commitment) *Commitment {
	if c.point == nil {
		c.point = bn254.New()
	}
	neg := bn254.New()
	neg.Neg(b.point)
	c.point.Add(a.point, neg)
	return c
}

// Equal reports whether both commitments are the same point.
func (c *Commitment) Equal(o *Commitment) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.point.Equal(o.point)
}

// IsZero reports whether the commitment is the identity.
func (c *Commitment) IsZero() bool {
	return c.point.IsZero()
}

// Point returns a copy of the underlying group element.
func (c *Commitment) Point() *bn254.G1 {
	p := bn254.New()
	p.Set(c.point)
	return p
}

// Digest maps the commitment to a field element, so that it can be part of
// the public inputs of a proof.
func (c *Commitment) Digest() fr.Element {
	return poseidon.HashBytes(poseidon.DomainDelta, c.Bytes())
}

// Bytes returns the 32 byte compressed encoding of the commitment.
func (c *Commitment) Bytes() []byte {
	return c.point.Marshal()
}

// SetBytes decodes a compressed commitment, checking it is a valid group
// element.
func (c *Commitment) SetBytes(b []byte) error {
	if len(b) != bn254.CompressedSize {
		return fmt.Errorf("%w: length %d", ErrInvalidCommitment, len(b))
	}
	p := bn254.New()
	if err := p.Unmarshal(b); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommitment, err)
	}
	c.point = p
	return nil
}

// String returns the hex encoding of the commitment.
func (c *Commitment) String() string {
	return c.point.String()
}

// MarshalCBOR encodes the commitment as a byte string.
func (c *Commitment) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(c.Bytes())
}

// UnmarshalCBOR decodes a commitment encoded by MarshalCBOR.
func (c *Commitment) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	return c.SetBytes(b)
}
