// Package native implements a proof system that checks relations natively.
// A proof is the encoded witness of the relation, salted with fresh
// randomness, and verification decodes it and re-checks the relation against
// the public inputs. Proofs are sound but not zero-knowledge: anyone holding a
// proof reads its witness. For compliance units that includes the nullifier
// key of the consumed resource and the delta blind, which lets the reader
// link the spend and recover the binding signature key share. The backend
// gives no privacy and is meant for development and testing.
package native

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/types"
	"github.com/vocdoni/vocdoni-z-shielded/util"
)

// ErrUnknownRelation is returned for relation ids never registered.
var ErrUnknownRelation = errors.New("unknown relation")

// Relation is a witness that can be checked against public inputs.
type Relation interface {
	// RelationID identifies the relation, it is also the circuit name of its
	// keys.
	RelationID() string
	// Check returns nil if the witness satisfies the relation for the
	// public inputs.
	Check(params *config.Params, public []fr.Element) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Relation{}
)

// Register makes a relation decodable from proofs. newFn returns an empty
// witness to decode into. Registering an id twice panics.
func Register(id string, newFn func() Relation) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[id]; ok {
		panic(fmt.Sprintf("native relation %q registered twice", id))
	}
	registry[id] = newFn
}

func lookup(id string) (func() Relation, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[id]
	return f, ok
}

// Setup returns the keys of a registered relation.
func Setup(id string) (*circuits.ProvingKey, *circuits.VerifyingKey, error) {
	if _, ok := lookup(id); !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownRelation, id)
	}
	return &circuits.ProvingKey{Backend: circuits.BackendNative, Circuit: id},
		&circuits.VerifyingKey{Backend: circuits.BackendNative, Circuit: id}, nil
}

type proof struct {
	Relation string `cbor:"0,keyasint"`
	Salt     []byte `cbor:"1,keyasint"`
	Witness  []byte `cbor:"2,keyasint"`
}

// System is the native proof system.
type System struct {
	params *config.Params
}

// New returns a native proof system checking relations under params.
func New(params *config.Params) *System {
	return &System{params: params}
}

// Backend implements circuits.ProofSystem.
func (*System) Backend() circuits.Backend {
	return circuits.BackendNative
}

// Prove checks the relation and encodes it as a proof. A witness that does
// not satisfy the relation is never turned into a proof.
func (s *System) Prove(pk *circuits.ProvingKey, assignment any, public []fr.Element, rnd io.Reader) (circuits.Proof, error) {
	if pk == nil || pk.Backend != circuits.BackendNative {
		return nil, circuits.ErrKeyMismatch
	}
	rel, ok := assignment.(Relation)
	if !ok {
		return nil, fmt.Errorf("%w: %T", circuits.ErrUnsupportedCircuit, assignment)
	}
	if rel.RelationID() != pk.Circuit {
		return nil, fmt.Errorf("%w: relation %q, key %q", circuits.ErrKeyMismatch, rel.RelationID(), pk.Circuit)
	}
	if err := rel.Check(s.params, public); err != nil {
		return nil, fmt.Errorf("unsatisfied relation %s: %w", pk.Circuit, err)
	}
	salt, err := util.ReadElement(rnd)
	if err != nil {
		return nil, err
	}
	witness, err := types.EncodeCBOR(rel)
	if err != nil {
		return nil, fmt.Errorf("encode witness: %w", err)
	}
	saltBytes := salt.Bytes()
	return types.EncodeCBOR(proof{Relation: pk.Circuit, Salt: saltBytes[:], Witness: witness})
}

// Verify decodes the witness carried by the proof and checks the relation.
func (s *System) Verify(vk *circuits.VerifyingKey, p circuits.Proof, public []fr.Element) error {
	if vk == nil || vk.Backend != circuits.BackendNative {
		return circuits.ErrKeyMismatch
	}
	var decoded proof
	if err := types.DecodeCBOR(p, &decoded); err != nil {
		return fmt.Errorf("%w: decode: %v", circuits.ErrProof, err)
	}
	if decoded.Relation != vk.Circuit {
		return fmt.Errorf("%w: proof for %q, key for %q", circuits.ErrProof, decoded.Relation, vk.Circuit)
	}
	newFn, ok := lookup(decoded.Relation)
	if !ok {
		return fmt.Errorf("%w: %v %q", circuits.ErrProof, ErrUnknownRelation, decoded.Relation)
	}
	rel := newFn()
	if err := types.DecodeCBOR(decoded.Witness, rel); err != nil {
		return fmt.Errorf("%w: decode witness: %v", circuits.ErrProof, err)
	}
	if err := rel.Check(s.params, public); err != nil {
		return fmt.Errorf("%w: %s: %v", circuits.ErrProof, decoded.Relation, err)
	}
	return nil
}
