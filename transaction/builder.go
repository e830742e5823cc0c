package transaction

import (
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/logic"
	"github.com/vocdoni/vocdoni-z-shielded/compliance"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/delta"
	"github.com/vocdoni/vocdoni-z-shielded/resource"
)

// LogicProver creates the resource logic proofs of the resources governed by
// one logic.
type LogicProver interface {
	// Logic returns the logic descriptor of the governed resources.
	Logic() fr.Element
	// Prove proves the logic for the owned resource. nk is the nullifier
	// deriving key if the resource is consumed, nil if it is created.
	Prove(systems circuits.Systems, owned *resource.Resource, nk *fr.Element,
		public *logic.PublicInputs, rnd io.Reader) (*LogicProof, error)
}

// OwnershipProver proves the native ownership logic.
type OwnershipProver struct {
	pk *circuits.ProvingKey
	vk *circuits.VerifyingKey
}

// NewOwnershipProver returns the prover of the ownership logic.
func NewOwnershipProver() *OwnershipProver {
	pk, vk := logic.OwnershipKeys()
	return &OwnershipProver{pk: pk, vk: vk}
}

// Logic implements LogicProver.
func (o *OwnershipProver) Logic() fr.Element {
	return o.vk.Compress()
}

// Prove implements LogicProver.
func (o *OwnershipProver) Prove(systems circuits.Systems, owned *resource.Resource, nk *fr.Element,
	public *logic.PublicInputs, rnd io.Reader,
) (*LogicProof, error) {
	elements := public.Elements()
	proof, err := systems.Prove(o.pk, logic.NewOwnership(owned, nk), elements, rnd)
	if err != nil {
		return nil, err
	}
	return &LogicProof{VerifyingKey: o.vk, PublicInputs: elements, Proof: proof}, nil
}

// MembershipProver proves the Groth16 membership logic for partial
// transactions of a fixed number of compliance units.
type MembershipProver struct {
	units int
	pk    *circuits.ProvingKey
	vk    *circuits.VerifyingKey
}

// NewMembershipProver runs the setup of the membership circuit for the given
// number of compliance units.
func NewMembershipProver(units int) (*MembershipProver, error) {
	pk, vk, err := logic.SetupMembership(units)
	if err != nil {
		return nil, err
	}
	return &MembershipProver{units: units, pk: pk, vk: vk}, nil
}

// NewMembershipProverWithKeys returns a membership prover using keys from a
// previous setup.
func NewMembershipProverWithKeys(units int, pk *circuits.ProvingKey, vk *circuits.VerifyingKey) *MembershipProver {
	return &MembershipProver{units: units, pk: pk, vk: vk}
}

// Keys returns the keys of the prover.
func (m *MembershipProver) Keys() (*circuits.ProvingKey, *circuits.VerifyingKey) {
	return m.pk, m.vk
}

// Logic implements LogicProver.
func (m *MembershipProver) Logic() fr.Element {
	return m.vk.Compress()
}

// Prove implements LogicProver.
func (m *MembershipProver) Prove(systems circuits.Systems, _ *resource.Resource, _ *fr.Element,
	public *logic.PublicInputs, rnd io.Reader,
) (*LogicProof, error) {
	if len(public.Nullifiers) != m.units {
		return nil, fmt.Errorf("membership logic set up for %d units, got %d", m.units, len(public.Nullifiers))
	}
	elements := public.Elements()
	proof, err := systems.Prove(m.pk, logic.Assignment(public), elements, rnd)
	if err != nil {
		return nil, err
	}
	return &LogicProof{VerifyingKey: m.vk, PublicInputs: elements, Proof: proof}, nil
}

// Built is a shielded partial transaction together with the private data
// its builder keeps.
type Built struct {
	Partial *ShieldedPartialTransaction
	// Outputs holds the compliance unit outputs, with the created resources
	// as committed.
	Outputs []*compliance.Output
	// Blind is the sum of the delta blinds, the binding signing key.
	Blind fr.Element
}

// Builder builds shielded partial transactions.
type Builder struct {
	params     *config.Params
	systems    circuits.Systems
	compliance *compliance.Prover
	logics     map[fr.Element]LogicProver
}

// NewBuilder returns a builder proving compliance units with compliancePK
// and resource logics with the given provers, selected by the logic of each
// resource.
func NewBuilder(params *config.Params, systems circuits.Systems, compliancePK *circuits.ProvingKey,
	logics ...LogicProver,
) *Builder {
	b := &Builder{
		params:     params,
		systems:    systems,
		compliance: compliance.NewProver(params, systems, compliancePK),
		logics:     make(map[fr.Element]LogicProver, len(logics)),
	}
	for _, l := range logics {
		b.logics[l.Logic()] = l
	}
	return b
}

// Build proves one compliance unit per input and the resource logic of every
// consumed and created resource. With share set, the partial carries its own
// binding signature.
func (b *Builder) Build(inputs []*compliance.Input, rnd io.Reader, share bool) (*Built, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyTransaction
	}
	built := &Built{Partial: &ShieldedPartialTransaction{}}
	for i, in := range inputs {
		out, err := b.compliance.Prove(in, rnd)
		if err != nil {
			return nil, fmt.Errorf("compliance unit %d: %w", i, err)
		}
		built.Outputs = append(built.Outputs, out)
		built.Partial.Units = append(built.Partial.Units, out.Unit)
		built.Blind.Add(&built.Blind, &out.Blind)
	}
	nfs, cms := built.Partial.Nullifiers(), built.Partial.OutputCommitments()
	for i, out := range built.Outputs {
		nk := out.NullifierKey
		consumed, err := b.proveLogic(out.Consumed, &nk, nfs[i], nfs, cms, rnd)
		if err != nil {
			return nil, fmt.Errorf("consumed resource %d: %w", i, err)
		}
		created, err := b.proveLogic(out.Created, nil, cms[i], nfs, cms, rnd)
		if err != nil {
			return nil, fmt.Errorf("created resource %d: %w", i, err)
		}
		built.Partial.LogicProofs = append(built.Partial.LogicProofs, consumed, created)
	}
	if share {
		sig, err := delta.Sign(b.params, built.Blind, built.Partial.Digest(), rnd)
		if err != nil {
			return nil, err
		}
		built.Partial.Signature = sig
	}
	return built, nil
}

func (b *Builder) proveLogic(owned *resource.Resource, nk *fr.Element, id fr.Element,
	nfs, cms []fr.Element, rnd io.Reader,
) (*LogicProof, error) {
	prover, ok := b.logics[owned.Logic]
	if !ok {
		return nil, fmt.Errorf("%w: no prover for logic %s", resource.ErrMalformedLogic, owned.Logic.String())
	}
	public := &logic.PublicInputs{OwnedResourceID: id, Nullifiers: nfs, Commitments: cms}
	return prover.Prove(b.systems, owned, nk, public, rnd)
}
