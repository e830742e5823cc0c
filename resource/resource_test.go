package resource

import (
	"crypto/rand"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/types"
	"github.com/vocdoni/vocdoni-z-shielded/util"
)

func testResource(c *qt.C, quantity uint64) (*Resource, fr.Element) {
	nk := util.RandomElement()
	r, err := New(util.RandomElement(), LabelFromString("TOKEN_A"), quantity, OpenKey(nk), util.RandomElement(), rand.Reader)
	c.Assert(err, qt.IsNil)
	return r, nk
}

func TestDeriveNullifierDeterministic(t *testing.T) {
	c := qt.New(t)
	const samples = 200
	seen := make(map[fr.Element]struct{}, 3*samples)
	for i := 0; i < samples; i++ {
		nk, rho := util.RandomElement(), util.RandomElement()
		nf := DeriveNullifier(nk, rho)
		again := DeriveNullifier(nk, rho)
		c.Assert(nf.Equal(&again), qt.IsTrue)

		// change only rho, then only nk
		nfRho := DeriveNullifier(nk, util.RandomElement())
		nfKey := DeriveNullifier(util.RandomElement(), rho)
		c.Assert(nf.Equal(&nfRho), qt.IsFalse)
		c.Assert(nf.Equal(&nfKey), qt.IsFalse)

		for _, v := range []fr.Element{nf, nfRho, nfKey} {
			_, dup := seen[v]
			c.Assert(dup, qt.IsFalse, qt.Commentf("sample %d produced a repeated nullifier", i))
			seen[v] = struct{}{}
		}
	}
}

func TestNullifierIsNotKeyCommitment(t *testing.T) {
	c := qt.New(t)
	nk := util.RandomElement()
	var zero fr.Element
	nf := DeriveNullifier(nk, zero)
	cm := CommitKey(nk)
	c.Assert(nf.Equal(&cm), qt.IsFalse)
}

func TestNullifierKeyVariants(t *testing.T) {
	c := qt.New(t)
	nk := util.RandomElement()
	open := OpenKey(nk)
	closed := open.Close()

	c.Assert(open.Kind(), qt.Equals, KeyOpen)
	c.Assert(closed.Kind(), qt.Equals, KeyClosed)

	got, ok := open.Open()
	c.Assert(ok, qt.IsTrue)
	c.Assert(got.Equal(&nk), qt.IsTrue)
	_, ok = closed.Open()
	c.Assert(ok, qt.IsFalse)

	openCm, closedCm := open.Commitment(), closed.Commitment()
	c.Assert(openCm.Equal(&closedCm), qt.IsTrue)

	c.Assert(open.Matches(nk), qt.IsTrue)
	c.Assert(closed.Matches(nk), qt.IsTrue)
	c.Assert(closed.Matches(util.RandomElement()), qt.IsFalse)
}

func TestResourceNullifier(t *testing.T) {
	c := qt.New(t)
	r, nk := testResource(c, 5)

	nf, err := r.Nullifier()
	c.Assert(err, qt.IsNil)
	expected := DeriveNullifier(nk, r.Nonce)
	c.Assert(nf.Equal(&expected), qt.IsTrue)

	hidden := r.Copy()
	hidden.NullifierKey = hidden.NullifierKey.Close()
	_, err = hidden.Nullifier()
	c.Assert(err, qt.ErrorIs, ErrMissingNullifierKey)

	nf2, err := hidden.NullifierWithKey(nk)
	c.Assert(err, qt.IsNil)
	c.Assert(nf2.Equal(&nf), qt.IsTrue)

	_, err = hidden.NullifierWithKey(util.RandomElement())
	c.Assert(err, qt.ErrorIs, ErrNullifierKeyMismatch)
}

func TestCommitmentBindsEveryField(t *testing.T) {
	c := qt.New(t)
	r, _ := testResource(c, 10)
	base := r.Commitment()

	// open and closed forms of the same key commit equally
	closed := r.Copy()
	closed.NullifierKey = closed.NullifierKey.Close()
	cm := closed.Commitment()
	c.Assert(cm.Equal(&base), qt.IsTrue)

	mutations := map[string]func(*Resource){
		"logic":     func(r *Resource) { r.Logic = util.RandomElement() },
		"label":     func(r *Resource) { r.Label = LabelFromString("TOKEN_B") },
		"quantity":  func(r *Resource) { r.Quantity++ },
		"key":       func(r *Resource) { r.NullifierKey = OpenKey(util.RandomElement()) },
		"nonce":     func(r *Resource) { r.Nonce = util.RandomElement() },
		"rcm":       func(r *Resource) { r.Rcm = util.RandomElement() },
		"ephemeral": func(r *Resource) { r.Ephemeral = !r.Ephemeral },
	}
	for name, mutate := range mutations {
		m := r.Copy()
		mutate(m)
		got := m.Commitment()
		c.Assert(got.Equal(&base), qt.IsFalse, qt.Commentf("mutating %s kept the commitment", name))
	}
}

func TestPsiBoundToRcm(t *testing.T) {
	c := qt.New(t)
	rho, rcm := util.RandomElement(), util.RandomElement()
	psi := DerivePsi(rho, rcm)
	again := DerivePsi(rho, rcm)
	c.Assert(psi.Equal(&again), qt.IsTrue)

	other := DerivePsi(rho, util.RandomElement())
	c.Assert(psi.Equal(&other), qt.IsFalse)
	other = DerivePsi(util.RandomElement(), rcm)
	c.Assert(psi.Equal(&other), qt.IsFalse)
}

func TestValidate(t *testing.T) {
	c := qt.New(t)
	_, err := New(fr.Element{}, LabelFromString("X"), 1, OpenKey(util.RandomElement()), util.RandomElement(), rand.Reader)
	c.Assert(err, qt.ErrorIs, ErrMalformedLogic)
}

func TestPadding(t *testing.T) {
	c := qt.New(t)
	logic, label := util.RandomElement(), LabelFromString("TOKEN_A")
	pad, nk, err := NewPadding(logic, label, rand.Reader)
	c.Assert(err, qt.IsNil)
	c.Assert(pad.Ephemeral, qt.IsTrue)
	c.Assert(pad.Quantity, qt.Equals, uint64(0))
	c.Assert(pad.NullifierKey.Matches(nk), qt.IsTrue)
	c.Assert(pad.SameKind(&Resource{Logic: logic, Label: label}), qt.IsTrue)
}

func TestValueGeneratorPerKind(t *testing.T) {
	c := qt.New(t)
	params := config.Default()
	a, _ := testResource(c, 1)
	b := a.Copy()
	b.Label = LabelFromString("TOKEN_B")

	ga, err := a.ValueGenerator(params)
	c.Assert(err, qt.IsNil)
	ga2, err := a.ValueGenerator(params)
	c.Assert(err, qt.IsNil)
	gb, err := b.ValueGenerator(params)
	c.Assert(err, qt.IsNil)
	c.Assert(ga.Equal(ga2), qt.IsTrue)
	c.Assert(ga.Equal(gb), qt.IsFalse)
}

func TestEncodingRoundTrip(t *testing.T) {
	c := qt.New(t)
	r, _ := testResource(c, 42)
	r.Ephemeral = true
	data, err := types.EncodeCBOR(r)
	c.Assert(err, qt.IsNil)

	var decoded Resource
	c.Assert(types.DecodeCBOR(data, &decoded), qt.IsNil)
	c.Assert(decoded.NullifierKey.Equal(r.NullifierKey), qt.IsTrue)
	got, want := decoded.Commitment(), r.Commitment()
	c.Assert(got.Equal(&want), qt.IsTrue)

	// closed keys keep their variant
	r.NullifierKey = r.NullifierKey.Close()
	data, err = types.EncodeCBOR(r)
	c.Assert(err, qt.IsNil)
	c.Assert(types.DecodeCBOR(data, &decoded), qt.IsNil)
	c.Assert(decoded.NullifierKey.Kind(), qt.Equals, KeyClosed)
}
