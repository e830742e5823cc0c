package transaction

import (
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/delta"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	"golang.org/x/sync/errgroup"
)

// Transaction holds an optional shielded bundle and an optional transparent
// bundle. Signature is the binding signature over the deltas of both; when
// absent every partial must prove its balance on its own.
type Transaction struct {
	Shielded    *ShieldedBundle
	Transparent *TransparentBundle
	Signature   *delta.BindingSignature
}

// BundleResult is the public data of an executed bundle.
type BundleResult struct {
	Nullifiers  []fr.Element
	Commitments []fr.Element
	Anchors     []fr.Element
	// ResourceRoots holds the resource merkle root of every partial.
	ResourceRoots []fr.Element
}

// Result is what the ledger needs from an executed transaction: the
// nullifiers to mark as spent, the commitments to append and the anchors to
// check, per bundle.
type Result struct {
	ID          []byte
	Shielded    *BundleResult
	Transparent *BundleResult
}

// Nullifiers returns the nullifiers of every bundle, shielded first.
func (r *Result) Nullifiers() []fr.Element {
	return r.collect(func(b *BundleResult) []fr.Element { return b.Nullifiers })
}

// Commitments returns the commitments of every bundle, shielded first. This
// is the order in which they are appended to the accumulator.
func (r *Result) Commitments() []fr.Element {
	return r.collect(func(b *BundleResult) []fr.Element { return b.Commitments })
}

// Anchors returns the anchors of every bundle.
func (r *Result) Anchors() []fr.Element {
	return r.collect(func(b *BundleResult) []fr.Element { return b.Anchors })
}

// ResourceRoots returns the resource merkle roots of every partial. They
// are valid anchors within the same transaction.
func (r *Result) ResourceRoots() []fr.Element {
	return r.collect(func(b *BundleResult) []fr.Element { return b.ResourceRoots })
}

func (r *Result) collect(f func(*BundleResult) []fr.Element) []fr.Element {
	var out []fr.Element
	for _, b := range []*BundleResult{r.Shielded, r.Transparent} {
		if b != nil {
			out = append(out, f(b)...)
		}
	}
	return out
}

// bundles returns the present bundles, shielded first.
func (tx *Transaction) bundles() []Executable {
	var out []Executable
	if tx.Shielded != nil {
		out = append(out, tx.Shielded)
	}
	if tx.Transparent != nil {
		out = append(out, tx.Transparent)
	}
	return out
}

// Digest returns the digest of the public data of the transaction, the
// message signed by the binding signature.
func (tx *Transaction) Digest() []byte {
	return digestOf(tx.bundles()...)
}

// ID returns the transaction identifier, its digest.
func (tx *Transaction) ID() []byte {
	return tx.Digest()
}

// DeltaCommitments returns the delta commitments of every bundle.
func (tx *Transaction) DeltaCommitments() []*delta.Commitment {
	var out []*delta.Commitment
	for _, b := range tx.bundles() {
		out = append(out, b.DeltaCommitments()...)
	}
	return out
}

// Sign sets the binding signature of the transaction. blind is the sum of
// the delta blinds of the shielded bundle; the revealed blinds of the
// transparent partials are added to it.
func (tx *Transaction) Sign(params *config.Params, blind fr.Element, rnd io.Reader) error {
	bsk := blind
	if tx.Transparent != nil {
		for _, p := range tx.Transparent.Partials {
			bsk.Add(&bsk, &p.Blind)
		}
	}
	sig, err := delta.Sign(params, bsk, tx.Digest(), rnd)
	if err != nil {
		return err
	}
	tx.Signature = sig
	return nil
}

// Execute verifies the transaction. Both bundles are executed in parallel.
// After they join, the nullifiers are checked to be unique and the balance
// of the transaction is verified, either with the top level binding
// signature or, without it, partial by partial. Execute has no side effects
// and returns the public data the ledger applies.
func (tx *Transaction) Execute(v *Verifier) (*Result, error) {
	bundles := tx.bundles()
	if len(bundles) == 0 {
		return nil, ErrEmptyTransaction
	}
	g := errgroup.Group{}
	for _, b := range bundles {
		g.Go(func() error { return b.Execute(v) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var nfs []fr.Element
	for _, b := range bundles {
		nfs = append(nfs, b.Nullifiers()...)
	}
	if hasDuplicates(nfs) {
		return nil, ErrDuplicateNullifier
	}
	if err := tx.checkBalance(v); err != nil {
		return nil, err
	}

	res := &Result{ID: tx.ID()}
	if tx.Shielded != nil {
		res.Shielded = &BundleResult{
			Nullifiers:    tx.Shielded.Nullifiers(),
			Commitments:   tx.Shielded.OutputCommitments(),
			Anchors:       tx.Shielded.Anchors(),
			ResourceRoots: tx.Shielded.ResourceMerkleRoots(),
		}
	}
	if tx.Transparent != nil {
		res.Transparent = &BundleResult{
			Nullifiers:    tx.Transparent.Nullifiers(),
			Commitments:   tx.Transparent.OutputCommitments(),
			Anchors:       tx.Transparent.Anchors(),
			ResourceRoots: tx.Transparent.ResourceMerkleRoots(),
		}
	}
	log.Debugw("transaction executed",
		"id", fmt.Sprintf("%x", res.ID),
		"nullifiers", len(res.Nullifiers()),
		"commitments", len(res.Commitments()))
	return res, nil
}

func (tx *Transaction) checkBalance(v *Verifier) error {
	if tx.Signature != nil {
		total := delta.Aggregate(tx.DeltaCommitments()...)
		return delta.Verify(v.Params, total, tx.Signature, tx.Digest())
	}
	if tx.Shielded != nil {
		for i, p := range tx.Shielded.Partials {
			if p.Signature == nil {
				return &BundleError{Bundle: BundleShielded, Index: i, Err: ErrMissingBindingSignatures}
			}
		}
	}
	if tx.Transparent != nil {
		for i, p := range tx.Transparent.Partials {
			if !p.Balanced(v.Params) {
				return &BundleError{Bundle: BundleTransparent, Index: i, Err: ErrUnbalanced}
			}
		}
	}
	return nil
}
