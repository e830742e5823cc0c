package poseidon

import (
	"math/big"
)

// Domain is a personalization constant absorbed before the inputs of a hash.
// Each protocol use of the hash has its own domain.
type Domain string

const (
	// DomainResourceCommitment personalizes resource commitments.
	DomainResourceCommitment Domain = "Shielded-ResourceCommit"
	// DomainNullifier personalizes the nullifier PRF.
	DomainNullifier Domain = "Shielded-NullifierPRF"
	// DomainKeyCommitment personalizes nullifier key commitments.
	DomainKeyCommitment Domain = "Shielded-KeyCommit"
	// DomainLogicCommitment personalizes the compression of resource logic
	// verifying keys.
	DomainLogicCommitment Domain = "Shielded-LogicCommit"
	// DomainPsi personalizes the derivation of the resource randomness psi.
	DomainPsi Domain = "Shielded-Psi"
	// DomainMerkle personalizes the accumulator node hash.
	DomainMerkle Domain = "Shielded-MerkleNode"
	// DomainLabel personalizes the mapping of label strings to field elements.
	DomainLabel Domain = "Shielded-Label"
	// DomainDelta personalizes the field digest of a delta commitment used as
	// a public input.
	DomainDelta Domain = "Shielded-Delta"
)

// element interprets the domain string as a big-endian integer. Every domain
// is shorter than 31 bytes so it is always a canonical field element.
func (d Domain) element() *big.Int {
	return new(big.Int).SetBytes([]byte(d))
}
