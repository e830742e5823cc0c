// Package resource defines the private unit of asset state and the schemes
// deriving its public commitment and nullifier.
package resource

import (
	"errors"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/crypto/ecc/bn254"
	"github.com/vocdoni/vocdoni-z-shielded/crypto/ecc/curves"
	"github.com/vocdoni/vocdoni-z-shielded/crypto/hash/poseidon"
	"github.com/vocdoni/vocdoni-z-shielded/util"
)

var (
	// ErrMalformedLogic is returned when the logic descriptor of a resource
	// is not set.
	ErrMalformedLogic = errors.New("malformed resource logic descriptor")
	// ErrNullifierKeyMismatch is returned when a nullifier deriving key does
	// not match the key material of the resource.
	ErrNullifierKeyMismatch = errors.New("nullifier key does not match resource")
	// ErrMissingNullifierKey is returned when an operation requires the open
	// nullifier deriving key and only the commitment is available.
	ErrMissingNullifierKey = errors.New("missing nullifier deriving key")
)

// Resource is one unit of an asset. It is never published, only its
// commitment is. A Resource must not be modified once committed.
type Resource struct {
	// Logic is the compressed descriptor of the governing resource logic.
	Logic fr.Element
	// Label identifies the fungibility domain, together with Logic.
	Label fr.Element
	// Quantity is the amount of the asset held.
	Quantity uint64
	// NullifierKey is the open key or the commitment to it.
	NullifierKey NullifierKey
	// Nonce is rho, unique per spend. Created resources take the nullifier
	// of the resource consumed in the same compliance unit.
	Nonce fr.Element
	// Rcm is the commitment blinding scalar.
	Rcm fr.Element
	// Ephemeral resources are never inserted in the accumulator and are
	// consumed without membership proof.
	Ephemeral bool
}

// New returns a resource with a fresh commitment randomness drawn from rnd.
func New(logic, label fr.Element, quantity uint64, key NullifierKey, nonce fr.Element, rnd io.Reader) (*Resource, error) {
	rcm, err := util.ReadElement(rnd)
	if err != nil {
		return nil, err
	}
	r := &Resource{
		Logic:        logic,
		Label:        label,
		Quantity:     quantity,
		NullifierKey: key,
		Nonce:        nonce,
		Rcm:          rcm,
	}
	return r, r.Validate()
}

// NewPadding returns an ephemeral zero quantity resource of the given kind
// owned by a fresh nullifier deriving key, together with that key. It stands
// in for the consumed resource of compliance units that only create.
func NewPadding(logic, label fr.Element, rnd io.Reader) (*Resource, fr.Element, error) {
	nk, err := util.ReadElement(rnd)
	if err != nil {
		return nil, fr.Element{}, err
	}
	nonce, err := util.ReadElement(rnd)
	if err != nil {
		return nil, fr.Element{}, err
	}
	r, err := New(logic, label, 0, OpenKey(nk).Close(), nonce, rnd)
	if err != nil {
		return nil, fr.Element{}, err
	}
	r.Ephemeral = true
	return r, nk, nil
}

// LabelFromString maps a human readable label such as "TOKEN_A" to a field
// element.
func LabelFromString(s string) fr.Element {
	return poseidon.HashBytes(poseidon.DomainLabel, []byte(s))
}

// Validate checks the resource is well formed.
func (r *Resource) Validate() error {
	if r.Logic.IsZero() {
		return ErrMalformedLogic
	}
	if r.NullifierKey.Kind() != KeyOpen && r.NullifierKey.Kind() != KeyClosed {
		return fmt.Errorf("invalid nullifier key kind %s", r.NullifierKey.Kind())
	}
	return nil
}

// DerivePsi computes psi = Hash(rho, X(G * rcm)) where G is the BabyJubJub
// base point. Binding psi to rcm keeps it from being chosen freely.
func DerivePsi(rho, rcm fr.Element) fr.Element {
	p := curves.New(curves.CurveTypeBabyJubJub)
	p.ScalarBaseMult(crypto.ElementToBig(rcm))
	x, _ := p.Point()
	return poseidon.Hash(poseidon.DomainPsi, rho, crypto.ElementFromBig(x))
}

// Psi returns the resource randomness derived from its nonce and rcm.
func (r *Resource) Psi() fr.Element {
	return DerivePsi(r.Nonce, r.Rcm)
}

// Commitment returns the hiding and binding commitment over every field of
// the resource. Open and closed keys of the same nk commit equally.
func (r *Resource) Commitment() fr.Element {
	var ephemeral fr.Element
	if r.Ephemeral {
		ephemeral.SetOne()
	}
	return poseidon.Hash(poseidon.DomainResourceCommitment,
		r.Logic,
		r.Label,
		crypto.ElementFromUint64(r.Quantity),
		r.NullifierKey.Commitment(),
		r.Nonce,
		r.Psi(),
		ephemeral,
		r.Rcm,
	)
}

// Nullifier derives the nullifier of the resource using the open key held by
// the resource.
func (r *Resource) Nullifier() (fr.Element, error) {
	nk, ok := r.NullifierKey.Open()
	if !ok {
		return fr.Element{}, ErrMissingNullifierKey
	}
	return DeriveNullifier(nk, r.Nonce), nil
}

// NullifierWithKey derives the nullifier of the resource with the provided
// nullifier deriving key, which must match the resource key material.
func (r *Resource) NullifierWithKey(nk fr.Element) (fr.Element, error) {
	if !r.NullifierKey.Matches(nk) {
		return fr.Element{}, ErrNullifierKeyMismatch
	}
	return DeriveNullifier(nk, r.Nonce), nil
}

// ValueGenerator returns the value generator of the resource kind.
func (r *Resource) ValueGenerator(params *config.Params) (*bn254.G1, error) {
	return params.KindGenerator(r.Logic, r.Label)
}

// SameKind reports whether both resources belong to the same fungibility
// domain.
func (r *Resource) SameKind(o *Resource) bool {
	return r.Logic.Equal(&o.Logic) && r.Label.Equal(&o.Label)
}

// Copy returns a copy of the resource.
func (r *Resource) Copy() *Resource {
	c := *r
	return &c
}
