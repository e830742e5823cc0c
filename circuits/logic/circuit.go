package logic

import (
	"strconv"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/snark"
)

// CircuitID names the keys of the membership circuit for a given number of
// compliance units.
func CircuitID(units int) string {
	return "logic/membership/" + strconv.Itoa(units)
}

// Circuit is the trivial resource logic: it accepts any resource as long as
// the owned resource id is one of the nullifiers or commitments of the
// partial transaction. The number of compliance units is fixed by the
// placeholder used at setup.
type Circuit struct {
	OwnedResourceID frontend.Variable   `gnark:",public"`
	Nullifiers      []frontend.Variable `gnark:",public"`
	Commitments     []frontend.Variable `gnark:",public"`
}

// Define declares the circuit constraints.
func (c *Circuit) Define(api frontend.API) error {
	acc := frontend.Variable(1)
	for _, nf := range c.Nullifiers {
		acc = api.Mul(acc, api.Sub(c.OwnedResourceID, nf))
	}
	for _, cm := range c.Commitments {
		acc = api.Mul(acc, api.Sub(c.OwnedResourceID, cm))
	}
	api.AssertIsEqual(acc, 0)
	return nil
}

// Placeholder returns the circuit placeholder for the given number of
// compliance units.
func Placeholder(units int) *Circuit {
	return &Circuit{
		Nullifiers:  make([]frontend.Variable, units),
		Commitments: make([]frontend.Variable, units),
	}
}

// Assignment returns the circuit assignment of the public inputs.
func Assignment(in *PublicInputs) *Circuit {
	c := &Circuit{
		OwnedResourceID: elementVar(in.OwnedResourceID),
		Nullifiers:      make([]frontend.Variable, len(in.Nullifiers)),
		Commitments:     make([]frontend.Variable, len(in.Commitments)),
	}
	for i := range in.Nullifiers {
		c.Nullifiers[i] = elementVar(in.Nullifiers[i])
	}
	for i := range in.Commitments {
		c.Commitments[i] = elementVar(in.Commitments[i])
	}
	return c
}

// SetupMembership runs the Groth16 setup of the membership circuit.
func SetupMembership(units int) (*circuits.ProvingKey, *circuits.VerifyingKey, error) {
	return snark.Setup(CircuitID(units), Placeholder(units))
}

func elementVar(e fr.Element) frontend.Variable {
	return e.String()
}
