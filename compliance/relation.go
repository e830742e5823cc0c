package compliance

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/circuits/native"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/delta"
	"github.com/vocdoni/vocdoni-z-shielded/resource"
)

// RelationID is the circuit name of the compliance keys.
const RelationID = "compliance/1x1"

// number of public inputs of a compliance unit
const publicInputs = 6

var (
	// ErrMissingMerklePath is returned when a consumed resource that is not
	// ephemeral comes without membership path.
	ErrMissingMerklePath = errors.New("missing merkle path for non ephemeral resource")
	// ErrInvalidMerklePath is returned when the membership path of the
	// consumed resource does not lead to the anchor.
	ErrInvalidMerklePath = errors.New("merkle path does not verify against anchor")
	// ErrNullifier is returned when the nullifier is not derived from the
	// consumed resource.
	ErrNullifier = errors.New("nullifier not derived from consumed resource")
	// ErrOutputCommitment is returned when the output commitment does not
	// open to the created resource.
	ErrOutputCommitment = errors.New("output commitment does not match created resource")
	// ErrNonceChain is returned when the created resource nonce is not the
	// nullifier of the consumed one.
	ErrNonceChain = errors.New("created resource nonce is not the consumed nullifier")
	// ErrDelta is returned when the delta commitment does not commit to the
	// values of the unit.
	ErrDelta = errors.New("delta commitment does not match unit values")
	// ErrEphemeralValue is returned when an ephemeral consumed resource
	// carries a nonzero quantity.
	ErrEphemeralValue = errors.New("ephemeral consumed resource with nonzero quantity")
	// ErrLogic is returned when a logic descriptor of the unit is not the
	// logic of the resource it belongs to.
	ErrLogic = errors.New("logic descriptor does not match resource")
)

func init() {
	native.Register(RelationID, func() native.Relation { return &Witness{} })
}

// Keys returns the proving and verifying keys of the compliance relation.
func Keys() (*circuits.ProvingKey, *circuits.VerifyingKey) {
	pk, vk, err := native.Setup(RelationID)
	if err != nil {
		panic(err) // registered in init
	}
	return pk, vk
}

// Witness is the private witness of a compliance unit.
type Witness struct {
	Consumed     *resource.Resource `cbor:"0,keyasint"`
	NullifierKey []byte             `cbor:"1,keyasint"`
	Path         *accumulator.Path  `cbor:"2,keyasint,omitempty"`
	Created      *resource.Resource `cbor:"3,keyasint"`
	Blind        []byte             `cbor:"4,keyasint"`
}

// RelationID implements native.Relation.
func (*Witness) RelationID() string {
	return RelationID
}

// Check verifies the compliance conditions for the public inputs
// [nullifier, anchor, output commitment, delta digest, consumed logic,
// created logic]:
//
//	(a) the consumed commitment is a leaf under the anchor, unless it is
//	    ephemeral with zero quantity
//	(b) the nullifier derives from the consumed resource and its key
//	(c) the output commitment opens to the created resource, whose nonce is
//	    the nullifier
//	(d) the delta commitment commits to consumed minus created values
//	(e) the logic descriptors are those of the consumed and created resources
func (w *Witness) Check(params *config.Params, public []fr.Element) error {
	if len(public) != publicInputs {
		return fmt.Errorf("expected %d public inputs, got %d", publicInputs, len(public))
	}
	if w.Consumed == nil || w.Created == nil {
		return fmt.Errorf("incomplete witness")
	}
	nullifier, anchor, cm, digest := public[0], public[1], public[2], public[3]
	consumedLogic, createdLogic := public[4], public[5]
	if err := w.Consumed.Validate(); err != nil {
		return err
	}
	if err := w.Created.Validate(); err != nil {
		return err
	}
	// (a)
	if err := CheckMembership(w.Consumed, w.Path, anchor); err != nil {
		return err
	}
	// (b)
	nk, err := crypto.ElementFromLE(w.NullifierKey)
	if err != nil {
		return fmt.Errorf("nullifier key: %w", err)
	}
	nf, err := w.Consumed.NullifierWithKey(nk)
	if err != nil {
		return err
	}
	if !nf.Equal(&nullifier) {
		return ErrNullifier
	}
	// (c)
	if !w.Created.Nonce.Equal(&nf) {
		return ErrNonceChain
	}
	if out := w.Created.Commitment(); !out.Equal(&cm) {
		return ErrOutputCommitment
	}
	// (d)
	blind, err := crypto.ElementFromLE(w.Blind)
	if err != nil {
		return fmt.Errorf("blind: %w", err)
	}
	d, err := commitDelta(params, w.Consumed, w.Created, blind)
	if err != nil {
		return err
	}
	if got := d.Digest(); !got.Equal(&digest) {
		return ErrDelta
	}
	// (e)
	if !w.Consumed.Logic.Equal(&consumedLogic) || !w.Created.Logic.Equal(&createdLogic) {
		return ErrLogic
	}
	return nil
}

// CheckMembership checks that consumed is spendable under anchor: either an
// accumulator leaf reached by path or an ephemeral resource of zero quantity.
func CheckMembership(consumed *resource.Resource, path *accumulator.Path, anchor fr.Element) error {
	if consumed.Ephemeral {
		if consumed.Quantity != 0 {
			return ErrEphemeralValue
		}
		return nil
	}
	if path == nil {
		return ErrMissingMerklePath
	}
	if !accumulator.Verify(anchor, path, consumed.Commitment()) {
		return ErrInvalidMerklePath
	}
	return nil
}

func commitDelta(params *config.Params, consumed, created *resource.Resource, blind fr.Element) (*delta.Commitment, error) {
	return delta.Commit(params,
		[]delta.Value{valueOf(consumed)},
		[]delta.Value{valueOf(created)},
		blind)
}

func valueOf(r *resource.Resource) delta.Value {
	return delta.Value{Logic: r.Logic, Label: r.Label, Quantity: r.Quantity}
}
