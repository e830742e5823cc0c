package compliance

import (
	"crypto/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/native"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/delta"
	"github.com/vocdoni/vocdoni-z-shielded/resource"
	"github.com/vocdoni/vocdoni-z-shielded/types"
	"github.com/vocdoni/vocdoni-z-shielded/util"
)

type fixture struct {
	params  *config.Params
	systems circuits.Systems
	prover  *Prover
	vk      *circuits.VerifyingKey
	logic   fr.Element
}

func newFixture() *fixture {
	params := config.Default()
	systems := circuits.NewSystems(native.New(params))
	pk, vk := Keys()
	return &fixture{
		params:  params,
		systems: systems,
		prover:  NewProver(params, systems, pk),
		vk:      vk,
		logic:   util.RandomElement(),
	}
}

// spendable returns a committed resource, its key, and its path and anchor in
// an accumulator holding a few other leaves.
func (f *fixture) spendable(c *qt.C, label string, qty uint64) (*resource.Resource, fr.Element, *accumulator.Path, fr.Element) {
	nk := util.RandomElement()
	r, err := resource.New(f.logic, resource.LabelFromString(label), qty, resource.OpenKey(nk).Close(), util.RandomElement(), rand.Reader)
	c.Assert(err, qt.IsNil)
	leaves := []fr.Element{util.RandomElement(), util.RandomElement(), r.Commitment(), util.RandomElement()}
	path, err := accumulator.ComputePath(f.params.TreeDepth, leaves, 2)
	c.Assert(err, qt.IsNil)
	root, err := accumulator.ComputeRoot(f.params.TreeDepth, leaves)
	c.Assert(err, qt.IsNil)
	return r, nk, path, root
}

func (f *fixture) output(c *qt.C, label string, qty uint64) *resource.Resource {
	r, err := resource.New(f.logic, resource.LabelFromString(label), qty, resource.OpenKey(util.RandomElement()).Close(), fr.Element{}, rand.Reader)
	c.Assert(err, qt.IsNil)
	return r
}

func TestProveAndVerify(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	consumed, nk, path, anchor := f.spendable(c, "TOKEN_A", 5)

	out, err := f.prover.Prove(&Input{
		Consumed:     consumed,
		NullifierKey: nk,
		Path:         path,
		Anchor:       anchor,
		Created:      f.output(c, "TOKEN_A", 5),
	}, rand.Reader)
	c.Assert(err, qt.IsNil)
	c.Assert(out.Unit.Verify(f.systems, f.vk), qt.IsNil)

	expectedNf := resource.DeriveNullifier(nk, consumed.Nonce)
	c.Assert(out.Unit.Nullifier, qt.Equals, expectedNf)
	c.Assert(out.Unit.Anchor, qt.Equals, anchor)
	c.Assert(out.Created.Nonce, qt.Equals, expectedNf)
	c.Assert(out.Unit.OutputCommitment, qt.Equals, out.Created.Commitment())

	// the public tuple is bound to the proof
	tampered := *out.Unit
	tampered.Nullifier = util.RandomElement()
	c.Assert(tampered.Verify(f.systems, f.vk), qt.ErrorIs, circuits.ErrProof)
	tampered = *out.Unit
	tampered.Anchor = util.RandomElement()
	c.Assert(tampered.Verify(f.systems, f.vk), qt.ErrorIs, circuits.ErrProof)
	tampered = *out.Unit
	tampered.OutputCommitment = util.RandomElement()
	c.Assert(tampered.Verify(f.systems, f.vk), qt.ErrorIs, circuits.ErrProof)
	tampered = *out.Unit
	tampered.Delta = delta.CommitBlind(f.params, util.RandomElement())
	c.Assert(tampered.Verify(f.systems, f.vk), qt.ErrorIs, circuits.ErrProof)
}

func TestConservation(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	msg := []byte("digest")
	for _, tc := range []struct {
		name    string
		out     uint64
		balance bool
	}{
		{"ten to ten", 10, true},
		{"ten to nine", 9, false},
	} {
		c.Run(tc.name, func(c *qt.C) {
			consumed, nk, path, anchor := f.spendable(c, "X", 10)
			out, err := f.prover.Prove(&Input{
				Consumed:     consumed,
				NullifierKey: nk,
				Path:         path,
				Anchor:       anchor,
				Created:      f.output(c, "X", tc.out),
			}, rand.Reader)
			c.Assert(err, qt.IsNil)
			c.Assert(out.Unit.Verify(f.systems, f.vk), qt.IsNil)

			total := delta.Aggregate(out.Unit.Delta)
			sig, err := delta.Sign(f.params, delta.SumBlinds(out.Blind), msg, rand.Reader)
			c.Assert(err, qt.IsNil)
			err = delta.Verify(f.params, total, sig, msg)
			if tc.balance {
				c.Assert(err, qt.IsNil)
			} else {
				c.Assert(err, qt.ErrorIs, delta.ErrInvalidBindingSignature)
			}
		})
	}
}

func TestCreateOnlyUsesPadding(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	out, err := f.prover.Prove(&Input{Created: f.output(c, "TOKEN_A", 0)}, rand.Reader)
	c.Assert(err, qt.IsNil)
	c.Assert(out.Consumed.Ephemeral, qt.IsTrue)
	c.Assert(out.Unit.Anchor, qt.Equals, accumulator.EmptyRoot(f.params.TreeDepth))
	c.Assert(out.Unit.Verify(f.systems, f.vk), qt.IsNil)

	// a zero quantity padding balances against nothing
	sig, err := delta.Sign(f.params, out.Blind, []byte("m"), rand.Reader)
	c.Assert(err, qt.IsNil)
	c.Assert(delta.Verify(f.params, out.Unit.Delta, sig, []byte("m")), qt.IsNil)
}

func TestProverErrors(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	consumed, nk, path, anchor := f.spendable(c, "TOKEN_A", 1)
	created := f.output(c, "TOKEN_A", 1)

	_, err := f.prover.Prove(&Input{Consumed: consumed, NullifierKey: nk, Anchor: anchor, Created: created}, rand.Reader)
	c.Assert(err, qt.ErrorIs, ErrMissingMerklePath)

	_, err = f.prover.Prove(&Input{Consumed: consumed, NullifierKey: nk, Path: path, Anchor: util.RandomElement(), Created: created}, rand.Reader)
	c.Assert(err, qt.ErrorIs, ErrInvalidMerklePath)

	_, err = f.prover.Prove(&Input{Consumed: consumed, NullifierKey: util.RandomElement(), Path: path, Anchor: anchor, Created: created}, rand.Reader)
	c.Assert(err, qt.ErrorIs, resource.ErrNullifierKeyMismatch)

	bad := created.Copy()
	bad.Logic = fr.Element{}
	_, err = f.prover.Prove(&Input{Consumed: consumed, NullifierKey: nk, Path: path, Anchor: anchor, Created: bad}, rand.Reader)
	c.Assert(err, qt.ErrorIs, resource.ErrMalformedLogic)
}

func TestWitnessRejectsBrokenChain(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	consumed, nk, path, anchor := f.spendable(c, "TOKEN_A", 3)
	out, err := f.prover.Prove(&Input{Consumed: consumed, NullifierKey: nk, Path: path, Anchor: anchor, Created: f.output(c, "TOKEN_A", 3)}, rand.Reader)
	c.Assert(err, qt.IsNil)

	created := out.Created.Copy()
	created.Nonce = util.RandomElement()
	w := &Witness{
		Consumed:     consumed,
		NullifierKey: leBytes(nk),
		Path:         path,
		Created:      created,
		Blind:        leBytes(out.Blind),
	}
	public := out.Unit.PublicInputs()
	c.Assert(w.Check(f.params, public), qt.ErrorIs, ErrNonceChain)

	w.Created = out.Created
	c.Assert(w.Check(f.params, public), qt.IsNil)
	w.Blind = leBytes(util.RandomElement())
	c.Assert(w.Check(f.params, public), qt.ErrorIs, ErrDelta)
}

func TestEphemeralConsumedCarriesNoValue(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	anchor := accumulator.EmptyRoot(f.params.TreeDepth)

	// witness consistent in every other respect
	witness := func(qty uint64) (*Witness, []fr.Element) {
		padding, nk, err := resource.NewPadding(f.logic, resource.LabelFromString("TOKEN_A"), rand.Reader)
		c.Assert(err, qt.IsNil)
		padding.Quantity = qty
		nf, err := padding.NullifierWithKey(nk)
		c.Assert(err, qt.IsNil)
		created := f.output(c, "TOKEN_A", qty)
		created.Nonce = nf
		blind := util.RandomElement()
		d, err := commitDelta(f.params, padding, created, blind)
		c.Assert(err, qt.IsNil)
		w := &Witness{
			Consumed:     padding,
			NullifierKey: leBytes(nk),
			Created:      created,
			Blind:        leBytes(blind),
		}
		return w, []fr.Element{nf, anchor, created.Commitment(), d.Digest(), padding.Logic, created.Logic}
	}
	w, public := witness(1_000_000)
	c.Assert(w.Check(f.params, public), qt.ErrorIs, ErrEphemeralValue)
	w, public = witness(0)
	c.Assert(w.Check(f.params, public), qt.IsNil)

	// the prover refuses to mint as well
	padding, nk, err := resource.NewPadding(f.logic, resource.LabelFromString("TOKEN_A"), rand.Reader)
	c.Assert(err, qt.IsNil)
	padding.Quantity = 1_000_000
	_, err = f.prover.Prove(&Input{
		Consumed:     padding,
		NullifierKey: nk,
		Anchor:       anchor,
		Created:      f.output(c, "TOKEN_A", 1_000_000),
	}, rand.Reader)
	c.Assert(err, qt.ErrorIs, ErrEphemeralValue)
}

func TestLogicDescriptorsBound(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	consumed, nk, path, anchor := f.spendable(c, "TOKEN_A", 2)
	created := f.output(c, "TOKEN_A", 2)
	created.Logic = util.RandomElement()
	out, err := f.prover.Prove(&Input{Consumed: consumed, NullifierKey: nk, Path: path, Anchor: anchor, Created: created}, rand.Reader)
	c.Assert(err, qt.IsNil)
	c.Assert(out.Unit.ConsumedLogic, qt.Equals, consumed.Logic)
	c.Assert(out.Unit.CreatedLogic, qt.Equals, created.Logic)
	c.Assert(out.Unit.Verify(f.systems, f.vk), qt.IsNil)

	tampered := *out.Unit
	tampered.ConsumedLogic = util.RandomElement()
	c.Assert(tampered.Verify(f.systems, f.vk), qt.ErrorIs, circuits.ErrProof)
	tampered = *out.Unit
	tampered.CreatedLogic = consumed.Logic
	c.Assert(tampered.Verify(f.systems, f.vk), qt.ErrorIs, circuits.ErrProof)

	w := &Witness{
		Consumed:     consumed,
		NullifierKey: leBytes(nk),
		Path:         path,
		Created:      out.Created,
		Blind:        leBytes(out.Blind),
	}
	c.Assert(w.Check(f.params, out.Unit.PublicInputs()), qt.IsNil)
	c.Assert(w.Check(f.params, tampered.PublicInputs()), qt.ErrorIs, ErrLogic)
}

func TestUnitEncoding(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	consumed, nk, path, anchor := f.spendable(c, "TOKEN_A", 7)
	out, err := f.prover.Prove(&Input{Consumed: consumed, NullifierKey: nk, Path: path, Anchor: anchor, Created: f.output(c, "TOKEN_A", 7)}, rand.Reader)
	c.Assert(err, qt.IsNil)

	data, err := types.EncodeCBOR(out.Unit)
	c.Assert(err, qt.IsNil)
	decoded := &Unit{}
	c.Assert(types.DecodeCBOR(data, decoded), qt.IsNil)
	c.Assert(decoded.Nullifier, qt.Equals, out.Unit.Nullifier)
	c.Assert(decoded.ConsumedLogic, qt.Equals, out.Unit.ConsumedLogic)
	c.Assert(decoded.CreatedLogic, qt.Equals, out.Unit.CreatedLogic)
	c.Assert(decoded.Delta.Equal(out.Unit.Delta), qt.IsTrue)
	c.Assert(decoded.Verify(f.systems, f.vk), qt.IsNil)
}

func leBytes(e fr.Element) []byte {
	b := crypto.ElementToLE(e)
	return b[:]
}
