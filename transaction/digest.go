package transaction

import (
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
)

// Digest returns the canonical digest of public data signed by binding
// signatures: every nullifier, output commitment and anchor, each list
// prefixed by its length. It is the MiMC hash of the sequence.
func Digest(nullifiers, commitments, anchors []fr.Element) []byte {
	h := mimc.NewMiMC()
	writeList(h, nullifiers)
	writeList(h, commitments)
	writeList(h, anchors)
	return h.Sum(nil)
}

func writeList(h hash.Hash, elems []fr.Element) {
	var n fr.Element
	n.SetUint64(uint64(len(elems)))
	b := n.Bytes()
	h.Write(b[:])
	for i := range elems {
		b = elems[i].Bytes()
		h.Write(b[:])
	}
}

// digestOf returns the digest of the public data of the executables, in order.
func digestOf(execs ...Executable) []byte {
	var nfs, cms, anchors []fr.Element
	for _, e := range execs {
		nfs = append(nfs, e.Nullifiers()...)
		cms = append(cms, e.OutputCommitments()...)
		anchors = append(anchors, e.Anchors()...)
	}
	return Digest(nfs, cms, anchors)
}

// resourceTree returns the leaves of the resource tree of a partial
// transaction: its nullifiers and commitments interleaved, and the depth of
// the smallest tree holding them.
func resourceTree(nfs, cms []fr.Element) ([]fr.Element, int) {
	leaves := make([]fr.Element, 0, len(nfs)+len(cms))
	for i := 0; i < max(len(nfs), len(cms)); i++ {
		if i < len(nfs) {
			leaves = append(leaves, nfs[i])
		}
		if i < len(cms) {
			leaves = append(leaves, cms[i])
		}
	}
	return leaves, accumulator.DepthFor(len(leaves))
}

// resourceRoot computes the resource merkle root of a partial transaction.
func resourceRoot(nfs, cms []fr.Element) fr.Element {
	leaves, depth := resourceTree(nfs, cms)
	root, err := accumulator.ComputeRoot(depth, leaves)
	if err != nil {
		// depth always fits the leaves
		panic(err)
	}
	return root
}

// resourcePath returns the path of the leaf equal to id in the resource tree.
func resourcePath(nfs, cms []fr.Element, id fr.Element) (*accumulator.Path, error) {
	leaves, depth := resourceTree(nfs, cms)
	for i := range leaves {
		if leaves[i].Equal(&id) {
			return accumulator.ComputePath(depth, leaves, uint64(i))
		}
	}
	return nil, accumulator.ErrInvalidPosition
}
