// Package testutil builds valid transactions for tests of the packages that
// consume them. It uses the native proof system.
package testutil

import (
	"crypto/rand"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/native"
	"github.com/vocdoni/vocdoni-z-shielded/compliance"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/resource"
	"github.com/vocdoni/vocdoni-z-shielded/transaction"
	"github.com/vocdoni/vocdoni-z-shielded/util"
)

// Env holds the parameters, keys and provers shared by a test.
type Env struct {
	Params   *config.Params
	Systems  circuits.Systems
	Verifier *transaction.Verifier
	Builder  *transaction.Builder
	// Logic is the ownership logic governing the resources of the env.
	Logic fr.Element
}

// Owned is a resource together with the key deriving its nullifier.
type Owned struct {
	Resource     *resource.Resource
	NullifierKey fr.Element
}

// NewEnv returns an env over the default parameters.
func NewEnv() *Env {
	params := config.Default()
	systems := circuits.NewSystems(native.New(params))
	pk, vk := compliance.Keys()
	ownership := transaction.NewOwnershipProver()
	return &Env{
		Params:   params,
		Systems:  systems,
		Verifier: transaction.NewVerifier(params, systems, vk),
		Builder:  transaction.NewBuilder(params, systems, pk, ownership),
		Logic:    ownership.Logic(),
	}
}

// NewOwned returns a fresh resource with a closed nullifier key. Its nonce
// is set when a transaction creates it.
func (e *Env) NewOwned(label string, quantity uint64) (*Owned, error) {
	nk := util.RandomElement()
	r, err := resource.New(e.Logic, resource.LabelFromString(label), quantity,
		resource.OpenKey(nk).Close(), fr.Element{}, rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Owned{Resource: r, NullifierKey: nk}, nil
}

// Create returns a signed transaction creating the resources, which must
// have zero quantity, from padding inputs. It returns them as committed.
func (e *Env) Create(outs ...*Owned) (*transaction.Transaction, []*Owned, error) {
	inputs := make([]*compliance.Input, len(outs))
	for i, o := range outs {
		inputs[i] = &compliance.Input{Created: o.Resource}
	}
	return e.build(inputs, outs)
}

// Spend returns a signed transaction consuming in, a leaf of the accumulator
// with root anchor, to create out. It returns out as committed.
func (e *Env) Spend(in *Owned, path *accumulator.Path, anchor fr.Element, out *Owned) (*transaction.Transaction, *Owned, error) {
	tx, created, err := e.build([]*compliance.Input{{
		Consumed:     in.Resource,
		NullifierKey: in.NullifierKey,
		Path:         path,
		Anchor:       anchor,
		Created:      out.Resource,
	}}, []*Owned{out})
	if err != nil {
		return nil, nil, err
	}
	return tx, created[0], nil
}

func (e *Env) build(inputs []*compliance.Input, outs []*Owned) (*transaction.Transaction, []*Owned, error) {
	built, err := e.Builder.Build(inputs, rand.Reader, false)
	if err != nil {
		return nil, nil, err
	}
	tx := &transaction.Transaction{
		Shielded: &transaction.ShieldedBundle{Partials: []*transaction.ShieldedPartialTransaction{built.Partial}},
	}
	if err := tx.Sign(e.Params, built.Blind, rand.Reader); err != nil {
		return nil, nil, err
	}
	created := make([]*Owned, len(outs))
	for i, out := range built.Outputs {
		created[i] = &Owned{Resource: out.Created, NullifierKey: outs[i].NullifierKey}
	}
	return tx, created, nil
}
