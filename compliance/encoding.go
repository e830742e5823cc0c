package compliance

import (
	"fmt"

	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/delta"
	"github.com/vocdoni/vocdoni-z-shielded/types"
)

type wireUnit struct {
	Nullifier        []byte            `cbor:"0,keyasint"`
	Anchor           []byte            `cbor:"1,keyasint"`
	OutputCommitment []byte            `cbor:"2,keyasint"`
	Delta            *delta.Commitment `cbor:"3,keyasint"`
	Proof            []byte            `cbor:"4,keyasint"`
	ConsumedLogic    []byte            `cbor:"5,keyasint"`
	CreatedLogic     []byte            `cbor:"6,keyasint"`
}

// MarshalCBOR encodes the unit with 32 byte little-endian field elements and
// the proof as a byte string.
func (u *Unit) MarshalCBOR() ([]byte, error) {
	nf := crypto.ElementToLE(u.Nullifier)
	anchor := crypto.ElementToLE(u.Anchor)
	cm := crypto.ElementToLE(u.OutputCommitment)
	consumedLogic := crypto.ElementToLE(u.ConsumedLogic)
	createdLogic := crypto.ElementToLE(u.CreatedLogic)
	return types.EncodeCBOR(wireUnit{
		Nullifier:        nf[:],
		Anchor:           anchor[:],
		OutputCommitment: cm[:],
		Delta:            u.Delta,
		Proof:            u.Proof,
		ConsumedLogic:    consumedLogic[:],
		CreatedLogic:     createdLogic[:],
	})
}

// UnmarshalCBOR decodes a unit encoded by MarshalCBOR.
func (u *Unit) UnmarshalCBOR(data []byte) error {
	var w wireUnit
	if err := types.DecodeCBOR(data, &w); err != nil {
		return err
	}
	var err error
	if u.Nullifier, err = crypto.ElementFromLE(w.Nullifier); err != nil {
		return fmt.Errorf("nullifier: %w", err)
	}
	if u.Anchor, err = crypto.ElementFromLE(w.Anchor); err != nil {
		return fmt.Errorf("anchor: %w", err)
	}
	if u.OutputCommitment, err = crypto.ElementFromLE(w.OutputCommitment); err != nil {
		return fmt.Errorf("output commitment: %w", err)
	}
	if u.ConsumedLogic, err = crypto.ElementFromLE(w.ConsumedLogic); err != nil {
		return fmt.Errorf("consumed logic: %w", err)
	}
	if u.CreatedLogic, err = crypto.ElementFromLE(w.CreatedLogic); err != nil {
		return fmt.Errorf("created logic: %w", err)
	}
	if w.Delta == nil {
		return fmt.Errorf("missing delta commitment")
	}
	u.Delta = w.Delta
	u.Proof = circuits.Proof(w.Proof)
	return nil
}
