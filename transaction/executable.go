// Package transaction implements partial transactions, bundles and
// transactions, and the verification deciding whether a transaction is
// internally well formed and balanced.
//
// Verification never mutates state. The nullifiers, commitments and anchors
// of an executed transaction are handed to the ledger, which is responsible
// for the double spend check and the accumulator appends.
package transaction

import (
	"runtime"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/delta"
)

// Executable is implemented by everything that can be verified on its own
// and exposes the public data the enclosing transaction needs.
type Executable interface {
	// Execute verifies the executable. It is idempotent and has no side
	// effects.
	Execute(v *Verifier) error
	// Nullifiers returns the nullifiers revealed.
	Nullifiers() []fr.Element
	// OutputCommitments returns the commitments of the created resources.
	OutputCommitments() []fr.Element
	// DeltaCommitments returns the delta commitments to be balanced.
	DeltaCommitments() []*delta.Commitment
	// Anchors returns the accumulator roots referenced.
	Anchors() []fr.Element
}

// Verifier holds what verification depends on. It is safe for concurrent
// use.
type Verifier struct {
	Params  *config.Params
	Systems circuits.Systems
	// ComplianceKey verifies compliance unit proofs.
	ComplianceKey *circuits.VerifyingKey
	// Workers bounds the number of proofs verified at the same time.
	Workers int
}

// NewVerifier returns a verifier using as many workers as CPUs.
func NewVerifier(params *config.Params, systems circuits.Systems, complianceKey *circuits.VerifyingKey) *Verifier {
	return &Verifier{
		Params:        params,
		Systems:       systems,
		ComplianceKey: complianceKey,
		Workers:       runtime.NumCPU(),
	}
}

func (v *Verifier) workers() int {
	if v.Workers <= 0 {
		return 1
	}
	return v.Workers
}
