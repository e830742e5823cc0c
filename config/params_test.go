package config

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/vocdoni-z-shielded/types"
	"github.com/vocdoni/vocdoni-z-shielded/util"
)

func TestDefaultParams(t *testing.T) {
	c := qt.New(t)
	p := Default()
	c.Assert(p, qt.Equals, Default())
	c.Assert(p.TreeDepth, qt.Equals, types.AccumulatorDepth)
	c.Assert(p.ValueBase().IsZero(), qt.IsFalse)

	// derivation is deterministic across parameter sets
	fresh, err := NewParams()
	c.Assert(err, qt.IsNil)
	c.Assert(fresh.ValueBase().Equal(p.ValueBase()), qt.IsTrue)
}

func TestValueBaseIsACopy(t *testing.T) {
	c := qt.New(t)
	p := Default()
	r := p.ValueBase()
	r.SetZero()
	c.Assert(p.ValueBase().IsZero(), qt.IsFalse)
}

func TestKindGenerators(t *testing.T) {
	c := qt.New(t)
	p, err := NewParams()
	c.Assert(err, qt.IsNil)
	logic, labelA, labelB := util.RandomElement(), util.RandomElement(), util.RandomElement()

	ga, err := p.KindGenerator(logic, labelA)
	c.Assert(err, qt.IsNil)
	cached, err := p.KindGenerator(logic, labelA)
	c.Assert(err, qt.IsNil)
	c.Assert(ga.Equal(cached), qt.IsTrue)

	gb, err := p.KindGenerator(logic, labelB)
	c.Assert(err, qt.IsNil)
	c.Assert(ga.Equal(gb), qt.IsFalse)

	// same label under another logic is another kind
	gl, err := p.KindGenerator(util.RandomElement(), labelA)
	c.Assert(err, qt.IsNil)
	c.Assert(ga.Equal(gl), qt.IsFalse)
	c.Assert(ga.Equal(p.ValueBase()), qt.IsFalse)

	// callers cannot corrupt the memoized generator
	ga.SetZero()
	again, err := p.KindGenerator(logic, labelA)
	c.Assert(err, qt.IsNil)
	c.Assert(again.IsZero(), qt.IsFalse)
}
