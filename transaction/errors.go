package transaction

import (
	"errors"
	"fmt"

	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/delta"
)

var (
	// ErrInconsistentNullifier is returned when the nullifiers referenced by
	// a resource logic proof differ from those of the compliance units.
	ErrInconsistentNullifier = errors.New("inconsistent nullifier")
	// ErrInconsistentOutputResourceCommitment is returned when the
	// commitments referenced by a resource logic proof differ from the
	// output commitments of the compliance units.
	ErrInconsistentOutputResourceCommitment = errors.New("inconsistent output resource commitment")
	// ErrInconsistentOwnedResourceID is returned when the resource logic
	// proofs do not own every consumed and created resource exactly once.
	ErrInconsistentOwnedResourceID = errors.New("inconsistent owned resource id")
	// ErrInconsistentLogic is returned when a resource logic proof is not
	// made with the logic of the resource it owns.
	ErrInconsistentLogic = errors.New("inconsistent resource logic")
	// ErrProof is returned when a compliance or resource logic proof does
	// not verify.
	ErrProof = circuits.ErrProof
	// ErrInvalidBindingSignature is returned when a binding signature does
	// not verify against the aggregated delta commitments.
	ErrInvalidBindingSignature = delta.ErrInvalidBindingSignature
	// ErrMissingBindingSignatures is returned when a transaction has no top
	// level binding signature and some of its partials cannot prove their
	// balance on their own.
	ErrMissingBindingSignatures = errors.New("missing binding signatures")
	// ErrDuplicateNullifier is returned when a nullifier is revealed twice in
	// the same transaction.
	ErrDuplicateNullifier = errors.New("duplicate nullifier")
	// ErrEmptyTransaction is returned for transactions without bundles or
	// partials without compliance units.
	ErrEmptyTransaction = errors.New("empty transaction")
	// ErrUnbalanced is returned when the revealed values of a transparent
	// partial transaction do not cancel out and nothing else signs for it.
	ErrUnbalanced = errors.New("transparent partial transaction not balanced")
	// ErrDeltaMismatch is returned when the delta commitment of a
	// transparent partial transaction does not commit to its values.
	ErrDeltaMismatch = errors.New("delta commitment does not match revealed values")
)

// Bundle names.
const (
	BundleShielded    = "shielded"
	BundleTransparent = "transparent"
)

// BundleError labels an error with the bundle and partial transaction where
// it happened.
type BundleError struct {
	Bundle string
	Index  int
	Err    error
}

func (e *BundleError) Error() string {
	return fmt.Sprintf("%s partial %d: %v", e.Bundle, e.Index, e.Err)
}

func (e *BundleError) Unwrap() error {
	return e.Err
}
