package state

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/arbo"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/types"
)

// NullifierProof is an arbo proof of inclusion or non-inclusion of a
// nullifier in the spent set.
type NullifierProof struct {
	// Key+Value hashed through Siblings path, should produce Root hash
	Root      types.HexBytes `json:"root"`
	Key       types.HexBytes `json:"key"`
	Value     types.HexBytes `json:"value"`
	Siblings  types.HexBytes `json:"siblings"`
	Existence bool           `json:"existence"`
}

// NullifierProof returns the proof of the nullifier against the current
// root of the spent set. For an unspent nullifier the proof holds the leaf
// found on its path, if any, and Existence is false.
func (s *State) NullifierProof(nf fr.Element) (*NullifierProof, error) {
	key := crypto.ElementToLE(nf)
	return genNullifierProof(s.nullifiers, key[:])
}

func genNullifierProof(t *arbo.Tree, k []byte) (*NullifierProof, error) {
	root, err := t.Root()
	if err != nil {
		return nil, err
	}
	leafK, leafV, packedSiblings, existence, err := t.GenProof(k)
	if err != nil {
		return nil, err
	}
	return &NullifierProof{
		Root:      root,
		Key:       leafK,
		Value:     leafV,
		Siblings:  packedSiblings,
		Existence: existence,
	}, nil
}

// UnpackedSiblings returns the siblings of the proof, one per level.
func (p *NullifierProof) UnpackedSiblings() ([][]byte, error) {
	return arbo.UnpackSiblings(hashFunc, p.Siblings)
}

// Verify checks an inclusion proof against its root.
func (p *NullifierProof) Verify() bool {
	if !p.Existence {
		return false
	}
	valid, err := arbo.CheckProof(hashFunc, p.Key, p.Value, p.Root, p.Siblings)
	if err != nil {
		return false
	}
	return valid
}
