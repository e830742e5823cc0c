package accumulator

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/crypto/hash/poseidon"
)

// MaxDepth is the maximum depth supported by the accumulator.
const MaxDepth = 32

var emptyNodes [MaxDepth + 1]fr.Element

func init() {
	// the empty leaf is the zero element, and every empty subtree hashes its
	// two empty children
	for i := 1; i <= MaxDepth; i++ {
		emptyNodes[i] = hashNode(emptyNodes[i-1], emptyNodes[i-1])
	}
}

func hashNode(left, right fr.Element) fr.Element {
	return poseidon.Hash(poseidon.DomainMerkle, left, right)
}

// EmptyRoot returns the root of an empty accumulator of the given depth. The
// empty depth-32 root is the default anchor of every ledger:
//
//	0x1571e40adf197257a40afcfd0b944992ea2995aecc2ef21f62ea884158b77bc5
func EmptyRoot(depth int) fr.Element {
	if depth < 0 || depth > MaxDepth {
		panic(fmt.Sprintf("invalid accumulator depth %d", depth))
	}
	return emptyNodes[depth]
}

// Path is the membership witness of a leaf: the sibling hashes from the leaf
// level up to the root. The left/right orientation at each level is the
// corresponding bit of Position (1 means the path node is a right child).
type Path struct {
	Position uint64
	Siblings []fr.Element
}

// Depth returns the number of levels of the path.
func (p *Path) Depth() int {
	return len(p.Siblings)
}

// IsRight returns the orientation bit of the path node at the given level.
func (p *Path) IsRight(level int) bool {
	return (p.Position>>uint(level))&1 == 1
}

// Root recomputes the root obtained by hashing leaf along the path.
func (p *Path) Root(leaf fr.Element) (fr.Element, error) {
	depth := p.Depth()
	if depth == 0 || depth > MaxDepth {
		return fr.Element{}, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	if p.Position >= uint64(1)<<uint(depth) {
		return fr.Element{}, fmt.Errorf("%w: %d", ErrInvalidPosition, p.Position)
	}
	node := leaf
	for level, sibling := range p.Siblings {
		if p.IsRight(level) {
			node = hashNode(sibling, node)
		} else {
			node = hashNode(node, sibling)
		}
	}
	return node, nil
}

// Verify reports whether leaf is a member of the accumulator with the given
// root, according to path. The comparison is exact.
func Verify(root fr.Element, path *Path, leaf fr.Element) bool {
	if path == nil {
		return false
	}
	got, err := path.Root(leaf)
	if err != nil {
		return false
	}
	return got.Equal(&root)
}

// MarshalBinary encodes the path as the 8 byte little-endian position
// followed by the 32 byte little-endian siblings.
func (p *Path) MarshalBinary() ([]byte, error) {
	out := make([]byte, 8, 8+len(p.Siblings)*crypto.SerializedFieldSize)
	binary.LittleEndian.PutUint64(out, p.Position)
	for _, s := range p.Siblings {
		b := crypto.ElementToLE(s)
		out = append(out, b[:]...)
	}
	return out, nil
}

// UnmarshalBinary decodes a path encoded by MarshalBinary.
func (p *Path) UnmarshalBinary(data []byte) error {
	if len(data) < 8 || (len(data)-8)%crypto.SerializedFieldSize != 0 {
		return fmt.Errorf("invalid path encoding length %d", len(data))
	}
	n := (len(data) - 8) / crypto.SerializedFieldSize
	if n == 0 || n > MaxDepth {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, n)
	}
	siblings := make([]fr.Element, n)
	for i := range siblings {
		start := 8 + i*crypto.SerializedFieldSize
		s, err := crypto.ElementFromLE(data[start : start+crypto.SerializedFieldSize])
		if err != nil {
			return fmt.Errorf("sibling %d: %w", i, err)
		}
		siblings[i] = s
	}
	p.Position = binary.LittleEndian.Uint64(data[:8])
	p.Siblings = siblings
	return nil
}

// MarshalCBOR encodes the path as a byte string with its binary form.
func (p *Path) MarshalCBOR() ([]byte, error) {
	data, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(data)
}

// UnmarshalCBOR decodes a path encoded by MarshalCBOR.
func (p *Path) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	return p.UnmarshalBinary(b)
}

// ComputeRoot returns the root of a tree of the given depth whose first
// leaves are the ones provided, the rest being empty.
func ComputeRoot(depth int, leaves []fr.Element) (fr.Element, error) {
	level, err := buildLevels(depth, leaves)
	if err != nil {
		return fr.Element{}, err
	}
	return level[depth][0], nil
}

// ComputePath returns the membership path of the leaf at position in a tree
// of the given depth built from leaves.
func ComputePath(depth int, leaves []fr.Element, position uint64) (*Path, error) {
	if position >= uint64(len(leaves)) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	levels, err := buildLevels(depth, leaves)
	if err != nil {
		return nil, err
	}
	path := &Path{Position: position, Siblings: make([]fr.Element, depth)}
	idx := position
	for l := 0; l < depth; l++ {
		sib := idx ^ 1
		if sib < uint64(len(levels[l])) {
			path.Siblings[l] = levels[l][sib]
		} else {
			path.Siblings[l] = emptyNodes[l]
		}
		idx >>= 1
	}
	return path, nil
}

// DepthFor returns the smallest depth, at least one, able to hold n leaves.
func DepthFor(n int) int {
	depth := 1
	for (1 << uint(depth)) < n {
		depth++
	}
	return depth
}

// buildLevels hashes the non empty part of every level of the tree.
func buildLevels(depth int, leaves []fr.Element) ([][]fr.Element, error) {
	if depth <= 0 || depth > MaxDepth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	if uint64(len(leaves)) > uint64(1)<<uint(depth) {
		return nil, ErrTreeFull
	}
	levels := make([][]fr.Element, depth+1)
	levels[0] = leaves
	for l := 0; l < depth; l++ {
		cur := levels[l]
		next := make([]fr.Element, (len(cur)+1)/2)
		for i := range next {
			right := emptyNodes[l]
			if 2*i+1 < len(cur) {
				right = cur[2*i+1]
			}
			next[i] = hashNode(cur[2*i], right)
		}
		levels[l+1] = next
	}
	if len(levels[depth]) == 0 {
		levels[depth] = []fr.Element{emptyNodes[depth]}
	}
	return levels, nil
}
