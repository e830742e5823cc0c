package resource

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/crypto/hash/poseidon"
)

// KeyKind tags the active variant of a NullifierKey.
type KeyKind uint8

const (
	// KeyOpen holds the nullifier deriving key itself.
	KeyOpen KeyKind = iota
	// KeyClosed holds a commitment to the nullifier deriving key.
	KeyClosed
)

func (k KeyKind) String() string {
	switch k {
	case KeyOpen:
		return "open"
	case KeyClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// NullifierKey is the nullifier key material of a resource. It is either the
// revealed nullifier deriving key (KeyOpen) or the commitment to a hidden one
// (KeyClosed). The zero value is an open key equal to zero.
type NullifierKey struct {
	kind  KeyKind
	value fr.Element
}

// OpenKey returns the revealed variant holding the nullifier deriving key nk.
func OpenKey(nk fr.Element) NullifierKey {
	return NullifierKey{kind: KeyOpen, value: nk}
}

// ClosedKey returns the hidden variant holding the key commitment cm.
func ClosedKey(cm fr.Element) NullifierKey {
	return NullifierKey{kind: KeyClosed, value: cm}
}

// Kind returns the active variant.
func (k NullifierKey) Kind() KeyKind {
	return k.kind
}

// Open returns the nullifier deriving key and true if the key is open.
func (k NullifierKey) Open() (fr.Element, bool) {
	if k.kind != KeyOpen {
		return fr.Element{}, false
	}
	return k.value, true
}

// Commitment returns the key commitment, computing it for open keys.
func (k NullifierKey) Commitment() fr.Element {
	switch k.kind {
	case KeyOpen:
		return CommitKey(k.value)
	default:
		return k.value
	}
}

// Close returns the closed variant of the key.
func (k NullifierKey) Close() NullifierKey {
	return ClosedKey(k.Commitment())
}

// Matches reports whether nk is the nullifier deriving key behind k.
func (k NullifierKey) Matches(nk fr.Element) bool {
	switch k.kind {
	case KeyOpen:
		return k.value.Equal(&nk)
	default:
		cm := CommitKey(nk)
		return k.value.Equal(&cm)
	}
}

// Equal reports whether both keys hold the same variant and value.
func (k NullifierKey) Equal(o NullifierKey) bool {
	return k.kind == o.kind && k.value.Equal(&o.value)
}

// CommitKey commits to the nullifier deriving key nk. The second input is a
// fixed zero so the commitment is a pure function of nk.
func CommitKey(nk fr.Element) fr.Element {
	var zero fr.Element
	return poseidon.Hash(poseidon.DomainKeyCommitment, nk, zero)
}

// DeriveNullifier computes the nullifier nf = PRF(nk, rho).
func DeriveNullifier(nk, rho fr.Element) fr.Element {
	return poseidon.Hash(poseidon.DomainNullifier, nk, rho)
}
