package transaction

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/logic"
	"github.com/vocdoni/vocdoni-z-shielded/compliance"
	"github.com/vocdoni/vocdoni-z-shielded/delta"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	"golang.org/x/sync/errgroup"
)

// LogicProof is the proof that the logic of one resource of the partial
// transaction is satisfied.
type LogicProof struct {
	VerifyingKey *circuits.VerifyingKey
	PublicInputs []fr.Element
	Proof        circuits.Proof
}

// ShieldedPartialTransaction is the smallest independently executable unit:
// compliance units, one resource logic proof per consumed and per created
// resource, and optionally its own binding signature share.
type ShieldedPartialTransaction struct {
	Units       []*compliance.Unit
	LogicProofs []*LogicProof
	Signature   *delta.BindingSignature
}

// Nullifiers implements Executable.
func (p *ShieldedPartialTransaction) Nullifiers() []fr.Element {
	out := make([]fr.Element, len(p.Units))
	for i, u := range p.Units {
		out[i] = u.Nullifier
	}
	return out
}

// OutputCommitments implements Executable.
func (p *ShieldedPartialTransaction) OutputCommitments() []fr.Element {
	out := make([]fr.Element, len(p.Units))
	for i, u := range p.Units {
		out[i] = u.OutputCommitment
	}
	return out
}

// DeltaCommitments implements Executable.
func (p *ShieldedPartialTransaction) DeltaCommitments() []*delta.Commitment {
	out := make([]*delta.Commitment, len(p.Units))
	for i, u := range p.Units {
		out[i] = u.Delta
	}
	return out
}

// Anchors implements Executable.
func (p *ShieldedPartialTransaction) Anchors() []fr.Element {
	out := make([]fr.Element, len(p.Units))
	for i, u := range p.Units {
		out[i] = u.Anchor
	}
	return out
}

// ResourceMerkleRoot returns the root of the tree of the interleaved
// nullifiers and output commitments of the partial transaction. Compliance
// units of other partials of the same transaction can use it as anchor.
func (p *ShieldedPartialTransaction) ResourceMerkleRoot() fr.Element {
	return resourceRoot(p.Nullifiers(), p.OutputCommitments())
}

// ResourcePath returns the path of a nullifier or output commitment of the
// partial transaction under ResourceMerkleRoot.
func (p *ShieldedPartialTransaction) ResourcePath(id fr.Element) (*accumulator.Path, error) {
	return resourcePath(p.Nullifiers(), p.OutputCommitments(), id)
}

// Digest returns the digest of the public data of the partial transaction,
// the message its own binding signature share signs.
func (p *ShieldedPartialTransaction) Digest() []byte {
	return digestOf(p)
}

// Execute verifies the partial transaction: the consistency between the
// compliance units and the resource logic proofs, every proof, and the
// binding signature share if there is one.
func (p *ShieldedPartialTransaction) Execute(v *Verifier) error {
	if err := p.checkConsistency(); err != nil {
		return err
	}
	if err := p.verifyProofs(v); err != nil {
		return err
	}
	if p.Signature != nil {
		total := delta.Aggregate(p.DeltaCommitments()...)
		if err := delta.Verify(v.Params, total, p.Signature, p.Digest()); err != nil {
			return err
		}
	}
	return nil
}

// checkConsistency checks every resource logic proof references the
// nullifiers and commitments of the compliance units, and that the logic
// proofs own each consumed and created resource exactly once.
func (p *ShieldedPartialTransaction) checkConsistency() error {
	if len(p.Units) == 0 {
		return ErrEmptyTransaction
	}
	nfs, cms := p.Nullifiers(), p.OutputCommitments()
	if hasDuplicates(nfs) {
		return ErrDuplicateNullifier
	}
	if len(p.LogicProofs) != len(nfs)+len(cms) {
		return fmt.Errorf("%w: %d logic proofs for %d resources",
			ErrInconsistentOwnedResourceID, len(p.LogicProofs), len(nfs)+len(cms))
	}
	logics := make(map[fr.Element]fr.Element, len(nfs)+len(cms))
	for _, u := range p.Units {
		logics[u.Nullifier] = u.ConsumedLogic
		logics[u.OutputCommitment] = u.CreatedLogic
	}
	owned := make([]fr.Element, 0, len(p.LogicProofs))
	for i, lp := range p.LogicProofs {
		if lp == nil {
			return fmt.Errorf("%w: missing logic proof %d", ErrInconsistentOwnedResourceID, i)
		}
		if lp.VerifyingKey == nil {
			return fmt.Errorf("%w: logic proof %d without verifying key", ErrInconsistentLogic, i)
		}
		in, err := logic.Parse(lp.PublicInputs, len(p.Units))
		if err != nil {
			return fmt.Errorf("%w: logic proof %d: %v", ErrInconsistentOwnedResourceID, i, err)
		}
		if !sameSet(in.Nullifiers, nfs) {
			return fmt.Errorf("%w: logic proof %d", ErrInconsistentNullifier, i)
		}
		if !sameSet(in.Commitments, cms) {
			return fmt.Errorf("%w: logic proof %d", ErrInconsistentOutputResourceCommitment, i)
		}
		expected, ok := logics[in.OwnedResourceID]
		if !ok {
			return fmt.Errorf("%w: logic proof %d owns an unknown resource", ErrInconsistentOwnedResourceID, i)
		}
		if got := lp.VerifyingKey.Compress(); !got.Equal(&expected) {
			return fmt.Errorf("%w: logic proof %d", ErrInconsistentLogic, i)
		}
		owned = append(owned, in.OwnedResourceID)
	}
	if !sameSet(owned, append(append([]fr.Element{}, nfs...), cms...)) {
		return ErrInconsistentOwnedResourceID
	}
	return nil
}

// verifyProofs verifies the compliance and logic proofs in parallel.
func (p *ShieldedPartialTransaction) verifyProofs(v *Verifier) error {
	g := errgroup.Group{}
	g.SetLimit(v.workers())
	for i, u := range p.Units {
		g.Go(func() error {
			if err := u.Verify(v.Systems, v.ComplianceKey); err != nil {
				return fmt.Errorf("compliance unit %d: %w", i, err)
			}
			return nil
		})
	}
	for i, lp := range p.LogicProofs {
		g.Go(func() error {
			if err := v.Systems.Verify(lp.VerifyingKey, lp.Proof, lp.PublicInputs); err != nil {
				return fmt.Errorf("logic proof %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Debugw("shielded partial transaction rejected", "error", err.Error())
		return err
	}
	return nil
}

// sameSet reports whether a and b hold the same elements with the same
// multiplicity, in any order.
func sameSet(a, b []fr.Element) bool {
	if len(a) != len(b) {
		return false
	}
	count := make(map[fr.Element]int, len(a))
	for _, e := range a {
		count[e]++
	}
	for _, e := range b {
		if count[e] == 0 {
			return false
		}
		count[e]--
	}
	return true
}

func hasDuplicates(elems []fr.Element) bool {
	seen := make(map[fr.Element]struct{}, len(elems))
	for _, e := range elems {
		if _, ok := seen[e]; ok {
			return true
		}
		seen[e] = struct{}{}
	}
	return false
}
