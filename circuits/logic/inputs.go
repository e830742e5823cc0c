// Package logic defines the public interface shared by every resource logic
// proof and two resource logics: a gnark circuit that only checks the owned
// resource belongs to the partial transaction, and a native relation that
// also proves knowledge of the owned resource.
package logic

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrPublicInputs is returned when a public input vector does not have the
// layout of a resource logic.
var ErrPublicInputs = errors.New("malformed resource logic public inputs")

// PublicInputs are the public inputs every resource logic proof exposes: the
// owned resource id (the nullifier of a consumed resource or the commitment
// of a created one) and the nullifiers and output commitments of the partial
// transaction, in compliance unit order.
type PublicInputs struct {
	OwnedResourceID fr.Element
	Nullifiers      []fr.Element
	Commitments     []fr.Element
}

// Elements returns the flat vector [owned, nf_1..nf_k, cm_1..cm_k].
func (p *PublicInputs) Elements() []fr.Element {
	out := make([]fr.Element, 0, 1+len(p.Nullifiers)+len(p.Commitments))
	out = append(out, p.OwnedResourceID)
	out = append(out, p.Nullifiers...)
	return append(out, p.Commitments...)
}

// Parse decodes a public input vector of a partial transaction with the given
// number of compliance units.
func Parse(public []fr.Element, units int) (*PublicInputs, error) {
	if units <= 0 || len(public) != 1+2*units {
		return nil, fmt.Errorf("%w: %d inputs for %d units", ErrPublicInputs, len(public), units)
	}
	return &PublicInputs{
		OwnedResourceID: public[0],
		Nullifiers:      append([]fr.Element(nil), public[1:1+units]...),
		Commitments:     append([]fr.Element(nil), public[1+units:]...),
	}, nil
}

// Consumed reports whether the owned resource is one of the nullifiers.
func (p *PublicInputs) Consumed() bool {
	return contains(p.Nullifiers, p.OwnedResourceID)
}

// Created reports whether the owned resource is one of the commitments.
func (p *PublicInputs) Created() bool {
	return contains(p.Commitments, p.OwnedResourceID)
}

func contains(set []fr.Element, e fr.Element) bool {
	for i := range set {
		if set[i].Equal(&e) {
			return true
		}
	}
	return false
}
