package transaction

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/delta"
	"golang.org/x/sync/errgroup"
)

// partial is an executable with a resource merkle root.
type partial interface {
	Executable
	ResourceMerkleRoot() fr.Element
}

// ShieldedBundle is the set of shielded partial transactions of a
// transaction.
type ShieldedBundle struct {
	Partials []*ShieldedPartialTransaction
}

// TransparentBundle is the set of transparent partial transactions of a
// transaction.
type TransparentBundle struct {
	Partials []*TransparentPartialTransaction
}

// Execute implements Executable, verifying every partial in parallel.
func (b *ShieldedBundle) Execute(v *Verifier) error {
	for i, p := range b.Partials {
		if p == nil {
			return &BundleError{Bundle: BundleShielded, Index: i, Err: ErrEmptyTransaction}
		}
	}
	return executeAll(v, BundleShielded, b.partials())
}

// Nullifiers implements Executable.
func (b *ShieldedBundle) Nullifiers() []fr.Element { return nullifiersOf(b.partials()) }

// OutputCommitments implements Executable.
func (b *ShieldedBundle) OutputCommitments() []fr.Element { return commitmentsOf(b.partials()) }

// DeltaCommitments implements Executable.
func (b *ShieldedBundle) DeltaCommitments() []*delta.Commitment { return deltasOf(b.partials()) }

// Anchors implements Executable.
func (b *ShieldedBundle) Anchors() []fr.Element { return anchorsOf(b.partials()) }

// ResourceMerkleRoots returns the resource merkle root of every partial.
func (b *ShieldedBundle) ResourceMerkleRoots() []fr.Element { return rootsOf(b.partials()) }

func (b *ShieldedBundle) partials() []partial {
	out := make([]partial, len(b.Partials))
	for i, p := range b.Partials {
		out[i] = p
	}
	return out
}

// Execute implements Executable, verifying every partial in parallel.
func (b *TransparentBundle) Execute(v *Verifier) error {
	for i, p := range b.Partials {
		if p == nil {
			return &BundleError{Bundle: BundleTransparent, Index: i, Err: ErrEmptyTransaction}
		}
	}
	return executeAll(v, BundleTransparent, b.partials())
}

// Nullifiers implements Executable.
func (b *TransparentBundle) Nullifiers() []fr.Element { return nullifiersOf(b.partials()) }

// OutputCommitments implements Executable.
func (b *TransparentBundle) OutputCommitments() []fr.Element { return commitmentsOf(b.partials()) }

// DeltaCommitments implements Executable.
func (b *TransparentBundle) DeltaCommitments() []*delta.Commitment { return deltasOf(b.partials()) }

// Anchors implements Executable.
func (b *TransparentBundle) Anchors() []fr.Element { return anchorsOf(b.partials()) }

// ResourceMerkleRoots returns the resource merkle root of every partial.
func (b *TransparentBundle) ResourceMerkleRoots() []fr.Element { return rootsOf(b.partials()) }

func (b *TransparentBundle) partials() []partial {
	out := make([]partial, len(b.Partials))
	for i, p := range b.Partials {
		out[i] = p
	}
	return out
}

func executeAll(v *Verifier, bundle string, partials []partial) error {
	if len(partials) == 0 {
		return &BundleError{Bundle: bundle, Index: -1, Err: ErrEmptyTransaction}
	}
	g := errgroup.Group{}
	for i, p := range partials {
		g.Go(func() error {
			if err := p.Execute(v); err != nil {
				return &BundleError{Bundle: bundle, Index: i, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

func nullifiersOf(ps []partial) []fr.Element {
	var out []fr.Element
	for _, p := range ps {
		out = append(out, p.Nullifiers()...)
	}
	return out
}

func commitmentsOf(ps []partial) []fr.Element {
	var out []fr.Element
	for _, p := range ps {
		out = append(out, p.OutputCommitments()...)
	}
	return out
}

func deltasOf(ps []partial) []*delta.Commitment {
	var out []*delta.Commitment
	for _, p := range ps {
		out = append(out, p.DeltaCommitments()...)
	}
	return out
}

func anchorsOf(ps []partial) []fr.Element {
	var out []fr.Element
	for _, p := range ps {
		out = append(out, p.Anchors()...)
	}
	return out
}

func rootsOf(ps []partial) []fr.Element {
	out := make([]fr.Element, len(ps))
	for i, p := range ps {
		out[i] = p.ResourceMerkleRoot()
	}
	return out
}
