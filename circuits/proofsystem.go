package circuits

import (
	"errors"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/crypto/hash/poseidon"
	"github.com/vocdoni/vocdoni-z-shielded/types"
)

// Backend names a proof system implementation.
type Backend string

const (
	// BackendNative re-checks relations natively. Its proofs carry the
	// witness in clear and are meant for testing and trusted environments.
	BackendNative Backend = "native"
	// BackendGroth16 proves gnark circuits with Groth16 over BN254.
	BackendGroth16 Backend = "groth16"
)

var (
	// ErrProof is returned by every backend when a proof does not verify.
	ErrProof = errors.New("proof verification failed")
	// ErrUnknownBackend is returned when no proof system is registered for
	// the backend of a key.
	ErrUnknownBackend = errors.New("unknown proof system backend")
	// ErrUnsupportedCircuit is returned when a backend is asked to prove an
	// assignment of a type it does not handle.
	ErrUnsupportedCircuit = errors.New("unsupported circuit assignment")
	// ErrKeyMismatch is returned when a key belongs to another backend.
	ErrKeyMismatch = errors.New("key does not belong to this backend")
)

// Proof is an opaque proof. Its internal structure is only known to the
// backend that produced it.
type Proof []byte

// ProvingKey identifies a circuit and holds the backend specific proving
// material.
type ProvingKey struct {
	Backend Backend `cbor:"0,keyasint"`
	Circuit string  `cbor:"1,keyasint"`
	Data    []byte  `cbor:"2,keyasint,omitempty"`
}

// VerifyingKey identifies a circuit and holds the backend specific
// verification material.
type VerifyingKey struct {
	Backend Backend `cbor:"0,keyasint"`
	Circuit string  `cbor:"1,keyasint"`
	Data    []byte  `cbor:"2,keyasint,omitempty"`
}

// Compress maps the verifying key to a single field element, the logic
// descriptor embedded in resources governed by this circuit.
func (vk *VerifyingKey) Compress() fr.Element {
	data, err := types.EncodeCBOR(vk)
	if err != nil {
		// a struct of strings and bytes always encodes
		panic(fmt.Sprintf("encode verifying key: %v", err))
	}
	return poseidon.HashBytes(poseidon.DomainLogicCommitment, data)
}

// Equal reports whether both keys are the same.
func (vk *VerifyingKey) Equal(o *VerifyingKey) bool {
	if vk == nil || o == nil {
		return vk == o
	}
	return vk.Backend == o.Backend && vk.Circuit == o.Circuit && string(vk.Data) == string(o.Data)
}

// ProofSystem is the capability to create and verify proofs for a circuit,
// given its public inputs. Implementations must be safe for concurrent use.
type ProofSystem interface {
	// Backend returns the backend implemented.
	Backend() Backend
	// Prove creates a proof that the assignment satisfies the circuit of pk
	// for the given public inputs. rnd is the source of randomness for the
	// blinding terms of the proof.
	Prove(pk *ProvingKey, assignment any, public []fr.Element, rnd io.Reader) (Proof, error)
	// Verify checks the proof against the public inputs. It returns an
	// error wrapping ErrProof if the proof is not valid.
	Verify(vk *VerifyingKey, proof Proof, public []fr.Element) error
}

// Systems dispatches verification to the proof system of each key backend.
type Systems map[Backend]ProofSystem

// NewSystems returns the set of the given proof systems.
func NewSystems(systems ...ProofSystem) Systems {
	s := make(Systems, len(systems))
	for _, ps := range systems {
		s[ps.Backend()] = ps
	}
	return s
}

// Verify verifies the proof with the proof system of vk.Backend.
func (s Systems) Verify(vk *VerifyingKey, proof Proof, public []fr.Element) error {
	if vk == nil {
		return fmt.Errorf("%w: missing verifying key", ErrProof)
	}
	ps, ok := s[vk.Backend]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBackend, vk.Backend)
	}
	return ps.Verify(vk, proof, public)
}

// Prove creates a proof with the proof system of pk.Backend.
func (s Systems) Prove(pk *ProvingKey, assignment any, public []fr.Element, rnd io.Reader) (Proof, error) {
	if pk == nil {
		return nil, fmt.Errorf("missing proving key")
	}
	ps, ok := s[pk.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, pk.Backend)
	}
	return ps.Prove(pk, assignment, public, rnd)
}
