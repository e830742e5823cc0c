package bjj

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestGeneratorIsOnCurve(t *testing.T) {
	c := qt.New(t)
	g := New().(*BJJ)
	g.SetGenerator()
	c.Assert(g.inner.IsOnCurve(), qt.IsTrue)
	c.Assert(g.IsZero(), qt.IsFalse)
}

func TestOrderTimesGeneratorIsIdentity(t *testing.T) {
	c := qt.New(t)
	p := New()
	p.ScalarBaseMult(p.Order())
	c.Assert(p.IsZero(), qt.IsTrue)
}

func TestScalarMultDistributes(t *testing.T) {
	c := qt.New(t)
	a, b := big.NewInt(42), big.NewInt(88)

	pa := New()
	pa.ScalarBaseMult(a)
	pb := New()
	pb.ScalarBaseMult(b)
	sum := New()
	sum.Add(pa, pb)

	direct := New()
	direct.ScalarBaseMult(new(big.Int).Add(a, b))
	c.Assert(sum.Equal(direct), qt.IsTrue)
}

func TestNegAddIsIdentity(t *testing.T) {
	c := qt.New(t)
	p := New()
	p.ScalarBaseMult(big.NewInt(123456789))
	n := New()
	n.Neg(p)
	n.Add(n, p)
	c.Assert(n.IsZero(), qt.IsTrue)
}

func TestMarshalRoundTrip(t *testing.T) {
	c := qt.New(t)
	p := New()
	p.ScalarBaseMult(big.NewInt(987654321))

	q := New()
	c.Assert(q.Unmarshal(p.Marshal()), qt.IsNil)
	c.Assert(q.Equal(p), qt.IsTrue)

	js, err := p.(*BJJ).MarshalJSON()
	c.Assert(err, qt.IsNil)
	r := &BJJ{}
	c.Assert(r.UnmarshalJSON(js), qt.IsNil)
	c.Assert(r.Equal(p), qt.IsTrue)
}
