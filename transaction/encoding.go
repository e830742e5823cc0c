package transaction

import (
	"fmt"

	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/logic"
	"github.com/vocdoni/vocdoni-z-shielded/compliance"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/delta"
	"github.com/vocdoni/vocdoni-z-shielded/resource"
	"github.com/vocdoni/vocdoni-z-shielded/types"
)

type wireLogicProof struct {
	VerifyingKey *circuits.VerifyingKey `cbor:"0,keyasint"`
	PublicInputs [][]byte               `cbor:"1,keyasint"`
	Proof        []byte                 `cbor:"2,keyasint"`
}

// wirePair is a compliance unit and the logic proofs owning its nullifier or
// its output commitment.
type wirePair struct {
	Unit        *compliance.Unit `cbor:"0,keyasint"`
	LogicProofs []*LogicProof    `cbor:"1,keyasint"`
}

type wireShieldedPartial struct {
	Pairs []wirePair `cbor:"0,keyasint"`
	// logic proofs owning no resource of the partial
	Unpaired  []*LogicProof           `cbor:"1,keyasint,omitempty"`
	Signature *delta.BindingSignature `cbor:"2,keyasint,omitempty"`
}

type wireTransparentInput struct {
	Resource     *resource.Resource    `cbor:"0,keyasint"`
	NullifierKey resource.NullifierKey `cbor:"1,keyasint"`
	Path         *accumulator.Path     `cbor:"2,keyasint,omitempty"`
	Anchor       []byte                `cbor:"3,keyasint"`
}

type wireTransparentPartial struct {
	Inputs  []*TransparentInput  `cbor:"0,keyasint"`
	Outputs []*resource.Resource `cbor:"1,keyasint"`
	Blind   []byte               `cbor:"2,keyasint"`
	Delta   *delta.Commitment    `cbor:"3,keyasint"`
}

type wireShieldedBundle struct {
	Partials []*ShieldedPartialTransaction `cbor:"0,keyasint"`
}

type wireTransparentBundle struct {
	Partials []*TransparentPartialTransaction `cbor:"0,keyasint"`
}

type wireTransaction struct {
	Shielded    *wireShieldedBundle     `cbor:"0,keyasint,omitempty"`
	Transparent *wireTransparentBundle  `cbor:"1,keyasint,omitempty"`
	Signature   *delta.BindingSignature `cbor:"2,keyasint,omitempty"`
}

// MarshalCBOR encodes the logic proof with its public inputs as 32 byte
// little-endian field elements.
func (lp *LogicProof) MarshalCBOR() ([]byte, error) {
	return types.EncodeCBOR(wireLogicProof{
		VerifyingKey: lp.VerifyingKey,
		PublicInputs: crypto.ElementsToLE(lp.PublicInputs),
		Proof:        lp.Proof,
	})
}

// UnmarshalCBOR decodes a logic proof encoded by MarshalCBOR.
func (lp *LogicProof) UnmarshalCBOR(data []byte) error {
	var w wireLogicProof
	if err := types.DecodeCBOR(data, &w); err != nil {
		return err
	}
	public, err := crypto.ElementsFromLE(w.PublicInputs)
	if err != nil {
		return fmt.Errorf("public inputs: %w", err)
	}
	lp.VerifyingKey, lp.PublicInputs, lp.Proof = w.VerifyingKey, public, circuits.Proof(w.Proof)
	return nil
}

// MarshalCBOR encodes the partial transaction as the ordered list of its
// compliance units, each paired with the logic proofs of its resources, and
// its binding signature share.
func (p *ShieldedPartialTransaction) MarshalCBOR() ([]byte, error) {
	w := wireShieldedPartial{Pairs: make([]wirePair, len(p.Units)), Signature: p.Signature}
	for i, u := range p.Units {
		w.Pairs[i].Unit = u
	}
	for _, lp := range p.LogicProofs {
		if i := p.ownerUnit(lp); i >= 0 {
			w.Pairs[i].LogicProofs = append(w.Pairs[i].LogicProofs, lp)
			continue
		}
		w.Unpaired = append(w.Unpaired, lp)
	}
	return types.EncodeCBOR(w)
}

// ownerUnit returns the index of the unit whose nullifier or output
// commitment the logic proof owns, or -1.
func (p *ShieldedPartialTransaction) ownerUnit(lp *LogicProof) int {
	if lp == nil {
		return -1
	}
	in, err := logic.Parse(lp.PublicInputs, len(p.Units))
	if err != nil {
		return -1
	}
	for i, u := range p.Units {
		if u.Nullifier.Equal(&in.OwnedResourceID) || u.OutputCommitment.Equal(&in.OwnedResourceID) {
			return i
		}
	}
	return -1
}

// UnmarshalCBOR decodes a partial transaction encoded by MarshalCBOR.
func (p *ShieldedPartialTransaction) UnmarshalCBOR(data []byte) error {
	var w wireShieldedPartial
	if err := types.DecodeCBOR(data, &w); err != nil {
		return err
	}
	p.Units, p.LogicProofs = nil, nil
	for i, pair := range w.Pairs {
		if pair.Unit == nil {
			return fmt.Errorf("missing compliance unit %d", i)
		}
		p.Units = append(p.Units, pair.Unit)
		p.LogicProofs = append(p.LogicProofs, pair.LogicProofs...)
	}
	p.LogicProofs = append(p.LogicProofs, w.Unpaired...)
	p.Signature = w.Signature
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (in *TransparentInput) MarshalCBOR() ([]byte, error) {
	anchor := crypto.ElementToLE(in.Anchor)
	return types.EncodeCBOR(wireTransparentInput{
		Resource:     in.Resource,
		NullifierKey: in.NullifierKey,
		Path:         in.Path,
		Anchor:       anchor[:],
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (in *TransparentInput) UnmarshalCBOR(data []byte) error {
	var w wireTransparentInput
	if err := types.DecodeCBOR(data, &w); err != nil {
		return err
	}
	anchor, err := crypto.ElementFromLE(w.Anchor)
	if err != nil {
		return fmt.Errorf("anchor: %w", err)
	}
	in.Resource, in.NullifierKey, in.Path, in.Anchor = w.Resource, w.NullifierKey, w.Path, anchor
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (p *TransparentPartialTransaction) MarshalCBOR() ([]byte, error) {
	blind := crypto.ElementToLE(p.Blind)
	return types.EncodeCBOR(wireTransparentPartial{
		Inputs:  p.Inputs,
		Outputs: p.Outputs,
		Blind:   blind[:],
		Delta:   p.Delta,
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (p *TransparentPartialTransaction) UnmarshalCBOR(data []byte) error {
	var w wireTransparentPartial
	if err := types.DecodeCBOR(data, &w); err != nil {
		return err
	}
	blind, err := crypto.ElementFromLE(w.Blind)
	if err != nil {
		return fmt.Errorf("blind: %w", err)
	}
	p.Inputs, p.Outputs, p.Blind, p.Delta = w.Inputs, w.Outputs, blind, w.Delta
	return nil
}

// MarshalBinary encodes the transaction. Absent bundles and signature are
// omitted from the encoding.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	w := wireTransaction{Signature: tx.Signature}
	if tx.Shielded != nil {
		w.Shielded = &wireShieldedBundle{Partials: tx.Shielded.Partials}
	}
	if tx.Transparent != nil {
		w.Transparent = &wireTransparentBundle{Partials: tx.Transparent.Partials}
	}
	return types.EncodeCBOR(w)
}

// UnmarshalBinary decodes a transaction encoded by MarshalBinary.
func (tx *Transaction) UnmarshalBinary(data []byte) error {
	var w wireTransaction
	if err := types.DecodeCBOR(data, &w); err != nil {
		return fmt.Errorf("decode transaction: %w", err)
	}
	*tx = Transaction{Signature: w.Signature}
	if w.Shielded != nil {
		tx.Shielded = &ShieldedBundle{Partials: w.Shielded.Partials}
	}
	if w.Transparent != nil {
		tx.Transparent = &TransparentBundle{Partials: w.Transparent.Partials}
	}
	return nil
}

// Decode returns the transaction encoded in data.
func Decode(data []byte) (*Transaction, error) {
	tx := &Transaction{}
	if err := tx.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return tx, nil
}
