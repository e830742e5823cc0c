package transaction

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/compliance"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/delta"
	"github.com/vocdoni/vocdoni-z-shielded/resource"
)

// TransparentInput is a consumed resource revealed in clear.
type TransparentInput struct {
	Resource *resource.Resource
	// NullifierKey must be the open variant.
	NullifierKey resource.NullifierKey
	// Path is the membership path of the resource commitment under Anchor,
	// nil for ephemeral resources.
	Path   *accumulator.Path
	Anchor fr.Element
}

// TransparentPartialTransaction consumes and creates resources in clear. Its
// values are revealed, so its delta commitment is recomputed instead of
// proven.
type TransparentPartialTransaction struct {
	Inputs  []*TransparentInput
	Outputs []*resource.Resource
	// Blind is the revealed delta commitment blind.
	Blind fr.Element
	// Delta is the commitment to the revealed values under Blind.
	Delta *delta.Commitment
}

// NewTransparentPartialTransaction returns the transparent partial of the
// given inputs and outputs, with its delta commitment computed under blind.
func NewTransparentPartialTransaction(params *config.Params, inputs []*TransparentInput,
	outputs []*resource.Resource, blind fr.Element,
) (*TransparentPartialTransaction, error) {
	p := &TransparentPartialTransaction{Inputs: inputs, Outputs: outputs, Blind: blind}
	d, err := p.commitDelta(params)
	if err != nil {
		return nil, err
	}
	p.Delta = d
	return p, nil
}

// Nullifiers implements Executable. Inputs whose key cannot derive a
// nullifier contribute a zero element, rejected by Execute.
func (p *TransparentPartialTransaction) Nullifiers() []fr.Element {
	out := make([]fr.Element, len(p.Inputs))
	for i, in := range p.Inputs {
		if nf, err := in.nullifier(); err == nil {
			out[i] = nf
		}
	}
	return out
}

// OutputCommitments implements Executable.
func (p *TransparentPartialTransaction) OutputCommitments() []fr.Element {
	out := make([]fr.Element, len(p.Outputs))
	for i, r := range p.Outputs {
		if r != nil {
			out[i] = r.Commitment()
		}
	}
	return out
}

// DeltaCommitments implements Executable.
func (p *TransparentPartialTransaction) DeltaCommitments() []*delta.Commitment {
	return []*delta.Commitment{p.Delta}
}

// Anchors implements Executable. Ephemeral inputs reference no anchor.
func (p *TransparentPartialTransaction) Anchors() []fr.Element {
	out := make([]fr.Element, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		if in.Resource != nil && !in.Resource.Ephemeral {
			out = append(out, in.Anchor)
		}
	}
	return out
}

// ResourceMerkleRoot returns the root of the interleaved nullifiers and
// output commitments of the partial transaction.
func (p *TransparentPartialTransaction) ResourceMerkleRoot() fr.Element {
	return resourceRoot(p.Nullifiers(), p.OutputCommitments())
}

// Balanced reports whether the revealed values cancel out, so that the delta
// commitment carries the blind only.
func (p *TransparentPartialTransaction) Balanced(params *config.Params) bool {
	return p.Delta != nil && p.Delta.Equal(delta.CommitBlind(params, p.Blind))
}

// Execute checks every input is owned, well formed and a member of its
// anchor, every output is well formed, and the delta commitment commits to
// the revealed values.
func (p *TransparentPartialTransaction) Execute(v *Verifier) error {
	if len(p.Inputs) == 0 && len(p.Outputs) == 0 {
		return ErrEmptyTransaction
	}
	for i, in := range p.Inputs {
		if err := in.check(); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}
	for i, r := range p.Outputs {
		if r == nil {
			return fmt.Errorf("output %d: missing resource", i)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
	}
	if hasDuplicates(p.Nullifiers()) {
		return ErrDuplicateNullifier
	}
	if p.Delta == nil {
		return ErrDeltaMismatch
	}
	expected, err := p.commitDelta(v.Params)
	if err != nil {
		return err
	}
	if !expected.Equal(p.Delta) {
		return ErrDeltaMismatch
	}
	return nil
}

func (p *TransparentPartialTransaction) commitDelta(params *config.Params) (*delta.Commitment, error) {
	consumed := make([]delta.Value, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		if in.Resource == nil {
			return nil, fmt.Errorf("missing input resource")
		}
		consumed = append(consumed, valueOf(in.Resource))
	}
	created := make([]delta.Value, 0, len(p.Outputs))
	for _, r := range p.Outputs {
		if r == nil {
			return nil, fmt.Errorf("missing output resource")
		}
		created = append(created, valueOf(r))
	}
	return delta.Commit(params, consumed, created, p.Blind)
}

func (in *TransparentInput) nullifier() (fr.Element, error) {
	if in.Resource == nil {
		return fr.Element{}, errors.New("missing resource")
	}
	nk, ok := in.NullifierKey.Open()
	if !ok {
		return fr.Element{}, resource.ErrMissingNullifierKey
	}
	return in.Resource.NullifierWithKey(nk)
}

func (in *TransparentInput) check() error {
	if _, err := in.nullifier(); err != nil {
		return err
	}
	if err := in.Resource.Validate(); err != nil {
		return err
	}
	return compliance.CheckMembership(in.Resource, in.Path, in.Anchor)
}

func valueOf(r *resource.Resource) delta.Value {
	return delta.Value{Logic: r.Logic, Label: r.Label, Quantity: r.Quantity}
}
