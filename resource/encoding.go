package resource

import (
	"fmt"

	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/types"
)

type wireKey struct {
	Kind  uint8  `cbor:"0,keyasint"`
	Value []byte `cbor:"1,keyasint"`
}

type wireResource struct {
	Logic     []byte  `cbor:"0,keyasint"`
	Label     []byte  `cbor:"1,keyasint"`
	Quantity  uint64  `cbor:"2,keyasint"`
	Key       wireKey `cbor:"3,keyasint"`
	Nonce     []byte  `cbor:"4,keyasint"`
	Rcm       []byte  `cbor:"5,keyasint"`
	Ephemeral bool    `cbor:"6,keyasint,omitempty"`
}

// MarshalCBOR encodes the key as its variant tag and 32 byte value.
func (k NullifierKey) MarshalCBOR() ([]byte, error) {
	v := crypto.ElementToLE(k.value)
	return types.EncodeCBOR(wireKey{Kind: uint8(k.kind), Value: v[:]})
}

// UnmarshalCBOR decodes a key encoded by MarshalCBOR.
func (k *NullifierKey) UnmarshalCBOR(data []byte) error {
	var w wireKey
	if err := types.DecodeCBOR(data, &w); err != nil {
		return err
	}
	return k.fromWire(w)
}

func (k *NullifierKey) fromWire(w wireKey) error {
	if KeyKind(w.Kind) != KeyOpen && KeyKind(w.Kind) != KeyClosed {
		return fmt.Errorf("invalid nullifier key kind %d", w.Kind)
	}
	v, err := crypto.ElementFromLE(w.Value)
	if err != nil {
		return fmt.Errorf("nullifier key: %w", err)
	}
	k.kind, k.value = KeyKind(w.Kind), v
	return nil
}

// MarshalCBOR encodes the resource with its field elements in the 32 byte
// little-endian wire form.
func (r Resource) MarshalCBOR() ([]byte, error) {
	logic := crypto.ElementToLE(r.Logic)
	label := crypto.ElementToLE(r.Label)
	nonce := crypto.ElementToLE(r.Nonce)
	rcm := crypto.ElementToLE(r.Rcm)
	key := crypto.ElementToLE(r.NullifierKey.value)
	return types.EncodeCBOR(wireResource{
		Logic:     logic[:],
		Label:     label[:],
		Quantity:  r.Quantity,
		Key:       wireKey{Kind: uint8(r.NullifierKey.kind), Value: key[:]},
		Nonce:     nonce[:],
		Rcm:       rcm[:],
		Ephemeral: r.Ephemeral,
	})
}

// UnmarshalCBOR decodes a resource encoded by MarshalCBOR.
func (r *Resource) UnmarshalCBOR(data []byte) error {
	var w wireResource
	if err := types.DecodeCBOR(data, &w); err != nil {
		return err
	}
	var err error
	if r.Logic, err = crypto.ElementFromLE(w.Logic); err != nil {
		return fmt.Errorf("logic: %w", err)
	}
	if r.Label, err = crypto.ElementFromLE(w.Label); err != nil {
		return fmt.Errorf("label: %w", err)
	}
	if r.Nonce, err = crypto.ElementFromLE(w.Nonce); err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	if r.Rcm, err = crypto.ElementFromLE(w.Rcm); err != nil {
		return fmt.Errorf("rcm: %w", err)
	}
	if err := r.NullifierKey.fromWire(w.Key); err != nil {
		return err
	}
	r.Quantity = w.Quantity
	r.Ephemeral = w.Ephemeral
	return nil
}
