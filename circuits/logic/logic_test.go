package logic

import (
	"crypto/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/native"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/snark"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/resource"
	"github.com/vocdoni/vocdoni-z-shielded/util"
)

func randomInputs(units int) *PublicInputs {
	in := &PublicInputs{
		Nullifiers:  make([]fr.Element, units),
		Commitments: make([]fr.Element, units),
	}
	for i := 0; i < units; i++ {
		in.Nullifiers[i] = util.RandomElement()
		in.Commitments[i] = util.RandomElement()
	}
	return in
}

func TestParse(t *testing.T) {
	c := qt.New(t)
	in := randomInputs(3)
	in.OwnedResourceID = in.Commitments[1]
	parsed, err := Parse(in.Elements(), 3)
	c.Assert(err, qt.IsNil)
	c.Assert(parsed, qt.DeepEquals, in)
	c.Assert(parsed.Created(), qt.IsTrue)
	c.Assert(parsed.Consumed(), qt.IsFalse)

	_, err = Parse(in.Elements(), 2)
	c.Assert(err, qt.ErrorIs, ErrPublicInputs)
	_, err = Parse(nil, 0)
	c.Assert(err, qt.ErrorIs, ErrPublicInputs)
}

func TestMembershipCircuit(t *testing.T) {
	assert := test.NewAssert(t)
	in := randomInputs(2)
	in.OwnedResourceID = in.Nullifiers[1]
	assert.SolvingSucceeded(Placeholder(2), Assignment(in), test.WithCurves(snark.Curve))

	in.OwnedResourceID = util.RandomElement()
	assert.SolvingFailed(Placeholder(2), Assignment(in), test.WithCurves(snark.Curve))
}

func TestMembershipGroth16(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping groth16 setup in short mode")
	}
	c := qt.New(t)
	pk, vk, err := SetupMembership(2)
	c.Assert(err, qt.IsNil)
	c.Assert(vk.Circuit, qt.Equals, CircuitID(2))

	ps, err := snark.New()
	c.Assert(err, qt.IsNil)
	in := randomInputs(2)
	in.OwnedResourceID = in.Commitments[0]
	var assignment frontend.Circuit = Assignment(in)

	proof, err := ps.Prove(pk, assignment, in.Elements(), rand.Reader)
	c.Assert(err, qt.IsNil)
	c.Assert(ps.Verify(vk, proof, in.Elements()), qt.IsNil)

	// proof bound to its public inputs
	other := *in
	other.Commitments = []fr.Element{util.RandomElement(), in.Commitments[0]}
	c.Assert(ps.Verify(vk, proof, other.Elements()), qt.ErrorIs, circuits.ErrProof)

	// public inputs handed to the prover must match the assignment
	_, err = ps.Prove(pk, assignment, other.Elements(), rand.Reader)
	c.Assert(err, qt.IsNotNil)
}

func TestOwnership(t *testing.T) {
	c := qt.New(t)
	ps := native.New(config.Default())
	pk, vk := OwnershipKeys()

	nk := util.RandomElement()
	consumed, err := resource.New(OwnershipLogic(), resource.LabelFromString("TOKEN_A"), 5,
		resource.OpenKey(nk).Close(), util.RandomElement(), rand.Reader)
	c.Assert(err, qt.IsNil)
	nf, err := consumed.NullifierWithKey(nk)
	c.Assert(err, qt.IsNil)
	created, err := resource.New(OwnershipLogic(), resource.LabelFromString("TOKEN_A"), 5,
		resource.OpenKey(util.RandomElement()).Close(), nf, rand.Reader)
	c.Assert(err, qt.IsNil)
	cm := created.Commitment()

	spend := &PublicInputs{OwnedResourceID: nf, Nullifiers: []fr.Element{nf}, Commitments: []fr.Element{cm}}
	proof, err := ps.Prove(pk, NewOwnership(consumed, &nk), spend.Elements(), rand.Reader)
	c.Assert(err, qt.IsNil)
	c.Assert(ps.Verify(vk, proof, spend.Elements()), qt.IsNil)

	receive := &PublicInputs{OwnedResourceID: cm, Nullifiers: []fr.Element{nf}, Commitments: []fr.Element{cm}}
	proof, err = ps.Prove(pk, NewOwnership(created, nil), receive.Elements(), rand.Reader)
	c.Assert(err, qt.IsNil)
	c.Assert(ps.Verify(vk, proof, receive.Elements()), qt.IsNil)
	// the same proof does not vouch for another owned id
	c.Assert(ps.Verify(vk, proof, spend.Elements()), qt.ErrorIs, circuits.ErrProof)

	// wrong key
	wrongNK := util.RandomElement()
	c.Assert(NewOwnership(consumed, &wrongNK).Check(nil, spend.Elements()), qt.ErrorIs, resource.ErrNullifierKeyMismatch)

	// resource of another logic
	foreign := created.Copy()
	foreign.Logic = util.RandomElement()
	c.Assert(NewOwnership(foreign, nil).Check(nil, receive.Elements()), qt.ErrorIs, ErrWrongLogic)

	// owned id not part of the partial transaction
	detached := &PublicInputs{OwnedResourceID: cm, Nullifiers: []fr.Element{nf}, Commitments: []fr.Element{util.RandomElement()}}
	c.Assert(NewOwnership(created, nil).Check(nil, detached.Elements()), qt.ErrorIs, ErrNotOwned)
}
