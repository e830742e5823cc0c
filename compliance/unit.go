// Package compliance builds and verifies compliance units, the proof carrying
// objects binding the consumption of one resource to the creation of another.
package compliance

import (
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/delta"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/resource"
	"github.com/vocdoni/vocdoni-z-shielded/util"
)

// Unit is the public part of a compliance unit and its proof.
type Unit struct {
	Nullifier        fr.Element
	Anchor           fr.Element
	OutputCommitment fr.Element
	Delta            *delta.Commitment
	// ConsumedLogic and CreatedLogic are the logic descriptors of the
	// consumed and created resources.
	ConsumedLogic fr.Element
	CreatedLogic  fr.Element
	Proof         circuits.Proof
}

// PublicInputs returns the public inputs of the unit proof.
func (u *Unit) PublicInputs() []fr.Element {
	return []fr.Element{
		u.Nullifier, u.Anchor, u.OutputCommitment, u.Delta.Digest(),
		u.ConsumedLogic, u.CreatedLogic,
	}
}

// Verify checks the unit proof with the compliance verifying key.
func (u *Unit) Verify(systems circuits.Systems, vk *circuits.VerifyingKey) error {
	if u.Delta == nil {
		return fmt.Errorf("%w: missing delta commitment", circuits.ErrProof)
	}
	return systems.Verify(vk, u.Proof, u.PublicInputs())
}

// Input is what the builder of a compliance unit knows.
type Input struct {
	// Consumed is the resource spent. When nil a zero quantity ephemeral
	// resource of the created kind is consumed instead.
	Consumed *resource.Resource
	// NullifierKey derives the nullifier of Consumed.
	NullifierKey fr.Element
	// Path is the membership path of Consumed under Anchor. Not needed for
	// ephemeral resources.
	Path *accumulator.Path
	// Anchor is the accumulator root the path leads to.
	Anchor fr.Element
	// Created is the resource to create. Its nonce is replaced by the
	// nullifier of the consumed resource.
	Created *resource.Resource
}

// Output is the built unit together with the private data the owner of the
// unit needs afterwards.
type Output struct {
	Unit *Unit
	// Created is the created resource as committed, with its final nonce.
	Created *resource.Resource
	// Consumed is the resource actually spent, a padding one if the input
	// had none.
	Consumed *resource.Resource
	// NullifierKey derives the nullifier of Consumed.
	NullifierKey fr.Element
	// Blind is the delta commitment blind, part of the binding signature key.
	Blind fr.Element
}

// Prover builds compliance units.
type Prover struct {
	params  *config.Params
	systems circuits.Systems
	pk      *circuits.ProvingKey
}

// NewProver returns a prover using the compliance proving key pk.
func NewProver(params *config.Params, systems circuits.Systems, pk *circuits.ProvingKey) *Prover {
	return &Prover{params: params, systems: systems, pk: pk}
}

// Prove builds the compliance unit of the input, drawing the blinds and the
// proof randomness from rnd.
func (p *Prover) Prove(in *Input, rnd io.Reader) (*Output, error) {
	if in.Created == nil {
		return nil, fmt.Errorf("missing created resource")
	}
	if err := in.Created.Validate(); err != nil {
		return nil, err
	}
	consumed, nk, anchor := in.Consumed, in.NullifierKey, in.Anchor
	if consumed == nil {
		var err error
		consumed, nk, err = resource.NewPadding(in.Created.Logic, in.Created.Label, rnd)
		if err != nil {
			return nil, fmt.Errorf("padding resource: %w", err)
		}
		anchor = accumulator.EmptyRoot(p.params.TreeDepth)
	}
	if err := CheckMembership(consumed, in.Path, anchor); err != nil {
		return nil, err
	}
	nf, err := consumed.NullifierWithKey(nk)
	if err != nil {
		return nil, err
	}
	created := in.Created.Copy()
	created.Nonce = nf

	blind, err := util.ReadElement(rnd)
	if err != nil {
		return nil, err
	}
	d, err := commitDelta(p.params, consumed, created, blind)
	if err != nil {
		return nil, err
	}
	unit := &Unit{
		Nullifier:        nf,
		Anchor:           anchor,
		OutputCommitment: created.Commitment(),
		Delta:            d,
		ConsumedLogic:    consumed.Logic,
		CreatedLogic:     created.Logic,
	}
	nkBytes := crypto.ElementToLE(nk)
	blindBytes := crypto.ElementToLE(blind)
	witness := &Witness{
		Consumed:     consumed,
		NullifierKey: nkBytes[:],
		Path:         in.Path,
		Created:      created,
		Blind:        blindBytes[:],
	}
	if consumed.Ephemeral {
		witness.Path = nil
	}
	unit.Proof, err = p.systems.Prove(p.pk, witness, unit.PublicInputs(), rnd)
	if err != nil {
		return nil, fmt.Errorf("compliance proof: %w", err)
	}
	log.Debugw("compliance unit built",
		"nullifier", nf.String(),
		"commitment", unit.OutputCommitment.String(),
		"ephemeral", consumed.Ephemeral)
	return &Output{
		Unit:         unit,
		Created:      created,
		Consumed:     consumed,
		NullifierKey: nk,
		Blind:        blind,
	}, nil
}
