package poseidon

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	qt "github.com/frankban/quicktest"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

func TestMultiPoseidonSingleChunk(t *testing.T) {
	c := qt.New(t)
	inputs := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)}
	expected, err := poseidon.Hash(inputs)
	c.Assert(err, qt.IsNil)
	got, err := MultiPoseidon(inputs...)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Cmp(expected), qt.Equals, 0)
}

func TestMultiPoseidonLimits(t *testing.T) {
	c := qt.New(t)
	_, err := MultiPoseidon()
	c.Assert(err, qt.IsNotNil)

	many := make([]*big.Int, 257)
	for i := range many {
		many[i] = big.NewInt(int64(i))
	}
	_, err = MultiPoseidon(many...)
	c.Assert(err, qt.IsNotNil)

	// 256 inputs are hashed in 16 chunks
	_, err = MultiPoseidon(many[:256]...)
	c.Assert(err, qt.IsNil)
}

func TestHashDomainSeparation(t *testing.T) {
	c := qt.New(t)
	var a, b fr.Element
	a.SetUint64(7)
	b.SetUint64(11)

	h1 := Hash(DomainNullifier, a, b)
	h2 := Hash(DomainNullifier, a, b)
	c.Assert(h1.Equal(&h2), qt.IsTrue)

	h3 := Hash(DomainResourceCommitment, a, b)
	c.Assert(h1.Equal(&h3), qt.IsFalse)

	h4 := Hash(DomainNullifier, b, a)
	c.Assert(h1.Equal(&h4), qt.IsFalse)
}

func TestHashBytes(t *testing.T) {
	c := qt.New(t)
	x := HashBytes(DomainLabel, []byte("TOKEN_A"))
	y := HashBytes(DomainLabel, []byte("TOKEN_A"))
	z := HashBytes(DomainLabel, []byte("TOKEN_B"))
	c.Assert(x.Equal(&y), qt.IsTrue)
	c.Assert(x.Equal(&z), qt.IsFalse)

	// trailing zero bytes change the absorbed length
	p := HashBytes(DomainLabel, []byte{1})
	q := HashBytes(DomainLabel, []byte{1, 0})
	c.Assert(p.Equal(&q), qt.IsFalse)

	// long inputs are folded in several rounds
	long := make([]byte, 31*300)
	long[len(long)-1] = 1
	l1 := HashBytes(DomainLogicCommitment, long)
	long[len(long)-1] = 2
	l2 := HashBytes(DomainLogicCommitment, long)
	c.Assert(l1.Equal(&l2), qt.IsFalse)
}
