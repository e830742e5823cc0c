// Package snark implements the Groth16 proof system over BN254 for gnark
// circuits.
package snark

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vocdoni/vocdoni-z-shielded/circuits"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/types"
)

// Curve is the curve whose scalar field the circuits are defined over.
const Curve = ecc.BN254

// keyCacheSize bounds the number of decoded keys kept in memory.
const keyCacheSize = 64

type provingData struct {
	CCS []byte `cbor:"0,keyasint"`
	Key []byte `cbor:"1,keyasint"`
}

type prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
}

// Setup compiles the circuit placeholder and runs the Groth16 setup. The
// returned keys are named after id.
func Setup(id string, placeholder frontend.Circuit) (*circuits.ProvingKey, *circuits.VerifyingKey, error) {
	ccs, err := frontend.Compile(Curve.ScalarField(), r1cs.NewBuilder, placeholder)
	if err != nil {
		return nil, nil, fmt.Errorf("compile %s: %w", id, err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("setup %s: %w", id, err)
	}
	var ccsBuf, pkBuf, vkBuf bytes.Buffer
	if _, err := ccs.WriteTo(&ccsBuf); err != nil {
		return nil, nil, fmt.Errorf("encode constraint system: %w", err)
	}
	if _, err := pk.WriteTo(&pkBuf); err != nil {
		return nil, nil, fmt.Errorf("encode proving key: %w", err)
	}
	if _, err := vk.WriteTo(&vkBuf); err != nil {
		return nil, nil, fmt.Errorf("encode verifying key: %w", err)
	}
	pkData, err := types.EncodeCBOR(provingData{CCS: ccsBuf.Bytes(), Key: pkBuf.Bytes()})
	if err != nil {
		return nil, nil, err
	}
	log.Debugw("groth16 setup done", "circuit", id, "constraints", ccs.GetNbConstraints())
	return &circuits.ProvingKey{Backend: circuits.BackendGroth16, Circuit: id, Data: pkData},
		&circuits.VerifyingKey{Backend: circuits.BackendGroth16, Circuit: id, Data: vkBuf.Bytes()}, nil
}

// System is the Groth16 proof system. Decoded keys are cached by the hash of
// their encoding.
type System struct {
	provers   *lru.Cache[[32]byte, *prover]
	verifiers *lru.Cache[[32]byte, groth16.VerifyingKey]
}

// New returns a Groth16 proof system.
func New() (*System, error) {
	provers, err := lru.New[[32]byte, *prover](keyCacheSize)
	if err != nil {
		return nil, err
	}
	verifiers, err := lru.New[[32]byte, groth16.VerifyingKey](keyCacheSize)
	if err != nil {
		return nil, err
	}
	return &System{provers: provers, verifiers: verifiers}, nil
}

// Backend implements circuits.ProofSystem.
func (*System) Backend() circuits.Backend {
	return circuits.BackendGroth16
}

// Prove proves a gnark circuit assignment. The public part of the
// assignment must be equal to public. Groth16 draws its blinding terms from
// crypto/rand, so rnd is not used.
func (s *System) Prove(pk *circuits.ProvingKey, assignment any, public []fr.Element, _ io.Reader) (circuits.Proof, error) {
	if pk == nil || pk.Backend != circuits.BackendGroth16 {
		return nil, circuits.ErrKeyMismatch
	}
	circuit, ok := assignment.(frontend.Circuit)
	if !ok {
		return nil, fmt.Errorf("%w: %T", circuits.ErrUnsupportedCircuit, assignment)
	}
	p, err := s.prover(pk)
	if err != nil {
		return nil, err
	}
	full, err := frontend.NewWitness(circuit, Curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}
	pub, err := full.Public()
	if err != nil {
		return nil, fmt.Errorf("public witness: %w", err)
	}
	vec, ok := pub.Vector().(fr.Vector)
	if !ok || len(vec) != len(public) {
		return nil, fmt.Errorf("assignment does not match the %d public inputs", len(public))
	}
	for i := range vec {
		if !vec[i].Equal(&public[i]) {
			return nil, fmt.Errorf("assignment differs on public input %d", i)
		}
	}
	proof, err := groth16.Prove(p.ccs, p.pk, full)
	if err != nil {
		return nil, fmt.Errorf("prove %s: %w", pk.Circuit, err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode proof: %w", err)
	}
	return buf.Bytes(), nil
}

// Verify checks a Groth16 proof against the public inputs.
func (s *System) Verify(vk *circuits.VerifyingKey, p circuits.Proof, public []fr.Element) error {
	if vk == nil || vk.Backend != circuits.BackendGroth16 {
		return circuits.ErrKeyMismatch
	}
	key, err := s.verifier(vk)
	if err != nil {
		return fmt.Errorf("%w: %v", circuits.ErrProof, err)
	}
	proof := groth16.NewProof(Curve)
	if _, err := proof.ReadFrom(bytes.NewReader(p)); err != nil {
		return fmt.Errorf("%w: decode proof: %v", circuits.ErrProof, err)
	}
	pub, err := PublicWitness(public)
	if err != nil {
		return fmt.Errorf("%w: %v", circuits.ErrProof, err)
	}
	if err := groth16.Verify(proof, key, pub); err != nil {
		return fmt.Errorf("%w: %s: %v", circuits.ErrProof, vk.Circuit, err)
	}
	return nil
}

// PublicWitness builds a gnark public witness from the public inputs.
func PublicWitness(public []fr.Element) (witness.Witness, error) {
	w, err := witness.New(Curve.ScalarField())
	if err != nil {
		return nil, err
	}
	values := make(chan any, len(public))
	for i := range public {
		values <- public[i]
	}
	close(values)
	if err := w.Fill(len(public), 0, values); err != nil {
		return nil, fmt.Errorf("fill public witness: %w", err)
	}
	return w, nil
}

func (s *System) prover(pk *circuits.ProvingKey) (*prover, error) {
	id := sha256.Sum256(pk.Data)
	if p, ok := s.provers.Get(id); ok {
		return p, nil
	}
	var data provingData
	if err := types.DecodeCBOR(pk.Data, &data); err != nil {
		return nil, fmt.Errorf("decode proving key: %w", err)
	}
	ccs := groth16.NewCS(Curve)
	if _, err := ccs.ReadFrom(bytes.NewReader(data.CCS)); err != nil {
		return nil, fmt.Errorf("decode constraint system: %w", err)
	}
	key := groth16.NewProvingKey(Curve)
	if _, err := key.ReadFrom(bytes.NewReader(data.Key)); err != nil {
		return nil, fmt.Errorf("decode proving key: %w", err)
	}
	p := &prover{ccs: ccs, pk: key}
	s.provers.Add(id, p)
	return p, nil
}

func (s *System) verifier(vk *circuits.VerifyingKey) (groth16.VerifyingKey, error) {
	id := sha256.Sum256(vk.Data)
	if key, ok := s.verifiers.Get(id); ok {
		return key, nil
	}
	key := groth16.NewVerifyingKey(Curve)
	if _, err := key.ReadFrom(bytes.NewReader(vk.Data)); err != nil {
		return nil, fmt.Errorf("decode verifying key: %w", err)
	}
	s.verifiers.Add(id, key)
	return key, nil
}
