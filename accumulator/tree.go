// Package accumulator implements the append-only commitment accumulator: a
// fixed depth Merkle tree over resource commitments, persisted in a key-value
// database. The tree has a single writer; readers always observe the state of
// the last committed batch.
package accumulator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// ErrInvalidDepth is returned for depths outside [1, MaxDepth].
	ErrInvalidDepth = errors.New("invalid accumulator depth")
	// ErrInvalidPosition is returned for leaf positions not in the tree.
	ErrInvalidPosition = errors.New("invalid leaf position")
	// ErrTreeFull is returned when an append exceeds the tree capacity.
	ErrTreeFull = errors.New("accumulator is full")
	// ErrStaleBatch is returned when publishing a batch staged against an
	// older state of the tree.
	ErrStaleBatch = errors.New("stale accumulator batch")

	nodePrefix = []byte("n/")
	metaKey    = []byte("meta")
)

// Snapshot identifies a committed state of the tree. Generation increases by
// one with every appended batch.
type Snapshot struct {
	Root       fr.Element
	Size       uint64
	Generation uint64
}

type treeMeta struct {
	Depth      int    `cbor:"0,keyasint"`
	Size       uint64 `cbor:"1,keyasint"`
	Generation uint64 `cbor:"2,keyasint"`
	Root       []byte `cbor:"3,keyasint"`
}

// Tree is the persistent commitment accumulator.
type Tree struct {
	mu sync.RWMutex
	// writeMu serializes AppendBatch calls from stage to publish
	writeMu  sync.Mutex
	db       db.Database
	nodes    *prefixeddb.PrefixedDatabase
	depth    int
	snapshot Snapshot
}

// New opens the accumulator stored in database, or creates an empty one of
// the given depth. Reopening a tree with a different depth fails.
func New(database db.Database, depth int) (*Tree, error) {
	if depth <= 0 || depth > MaxDepth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	t := &Tree{
		db:    database,
		nodes: prefixeddb.NewPrefixedDatabase(database, nodePrefix),
		depth: depth,
		snapshot: Snapshot{
			Root: EmptyRoot(depth),
		},
	}
	data, err := database.Get(metaKey)
	if errors.Is(err, db.ErrKeyNotFound) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read accumulator metadata: %w", err)
	}
	var meta treeMeta
	if err := types.DecodeCBOR(data, &meta); err != nil {
		return nil, fmt.Errorf("decode accumulator metadata: %w", err)
	}
	if meta.Depth != depth {
		return nil, fmt.Errorf("%w: stored %d, requested %d", ErrInvalidDepth, meta.Depth, depth)
	}
	root, err := crypto.ElementFromLE(meta.Root)
	if err != nil {
		return nil, fmt.Errorf("decode accumulator root: %w", err)
	}
	t.snapshot = Snapshot{Root: root, Size: meta.Size, Generation: meta.Generation}
	return t, nil
}

// Depth returns the depth of the tree.
func (t *Tree) Depth() int {
	return t.depth
}

// Root returns the current anchor.
func (t *Tree) Root() fr.Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot.Root
}

// Size returns the number of leaves appended.
func (t *Tree) Size() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot.Size
}

// Snapshot returns the last committed state of the tree.
func (t *Tree) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

// Append adds a single leaf and returns its position.
func (t *Tree) Append(leaf fr.Element) (uint64, error) {
	return t.AppendBatch([]fr.Element{leaf})
}

// AppendBatch appends the leaves in order as one atomic batch and returns the
// position of the first one. The new root is visible to readers only once the
// whole batch is committed.
func (t *Tree) AppendBatch(leaves []fr.Element) (uint64, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	wTx := t.db.WriteTx()
	defer wTx.Discard()
	batch, err := t.StageBatch(wTx, leaves)
	if err != nil {
		return 0, err
	}
	if err := wTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit accumulator batch: %w", err)
	}
	if err := t.Publish(batch); err != nil {
		return 0, err
	}
	return batch.First, nil
}

// Batch is an append written into a write transaction but not yet visible
// to readers of the tree.
type Batch struct {
	// First is the position of the first appended leaf.
	First uint64
	// Snapshot is the state of the tree once the batch is published.
	Snapshot Snapshot
	count    int
	base     uint64
}

// StageBatch writes the nodes and metadata of appending leaves into wTx,
// which must write to the database of the tree. The tree is unchanged until
// wTx is committed and the batch passed to Publish. Discarding wTx drops the
// batch. Callers staging batches themselves must not append concurrently.
func (t *Tree) StageBatch(wTx db.WriteTx, leaves []fr.Element) (*Batch, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	first := t.snapshot.Size
	batch := &Batch{First: first, Snapshot: t.snapshot, base: t.snapshot.Generation}
	if len(leaves) == 0 {
		return batch, nil
	}
	if first+uint64(len(leaves)) > uint64(1)<<uint(t.depth) {
		return nil, ErrTreeFull
	}

	pending := make(map[string]fr.Element)
	get := func(level int, index uint64) (fr.Element, error) {
		key := nodeKey(level, index)
		if v, ok := pending[string(key)]; ok {
			return v, nil
		}
		return t.readNode(key, level)
	}

	var root fr.Element
	for i, leaf := range leaves {
		idx := first + uint64(i)
		node := leaf
		pending[string(nodeKey(0, idx))] = node
		for level := 0; level < t.depth; level++ {
			sibling, err := get(level, idx^1)
			if err != nil {
				return nil, err
			}
			if idx&1 == 1 {
				node = hashNode(sibling, node)
			} else {
				node = hashNode(node, sibling)
			}
			idx >>= 1
			pending[string(nodeKey(level+1, idx))] = node
		}
		root = node
	}

	next := Snapshot{
		Root:       root,
		Size:       first + uint64(len(leaves)),
		Generation: t.snapshot.Generation + 1,
	}
	rootLE := crypto.ElementToLE(root)
	meta, err := types.EncodeCBOR(treeMeta{
		Depth:      t.depth,
		Size:       next.Size,
		Generation: next.Generation,
		Root:       rootLE[:],
	})
	if err != nil {
		return nil, fmt.Errorf("encode accumulator metadata: %w", err)
	}

	nTx := prefixeddb.NewPrefixedWriteTx(wTx, nodePrefix)
	for k, v := range pending {
		b := crypto.ElementToLE(v)
		if err := nTx.Set([]byte(k), b[:]); err != nil {
			return nil, fmt.Errorf("store accumulator node: %w", err)
		}
	}
	if err := wTx.Set(metaKey, meta); err != nil {
		return nil, fmt.Errorf("store accumulator metadata: %w", err)
	}
	batch.Snapshot = next
	batch.count = len(leaves)
	return batch, nil
}

// Publish makes a batch whose write transaction was committed visible to
// readers. It fails if another batch was published since b was staged.
func (t *Tree) Publish(b *Batch) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	if t.snapshot.Generation != b.base {
		return fmt.Errorf("%w: batch staged at generation %d, tree at %d",
			ErrStaleBatch, b.base, t.snapshot.Generation)
	}
	t.snapshot = b.Snapshot
	rootLE := crypto.ElementToLE(b.Snapshot.Root)
	log.Debugw("accumulator batch appended",
		"first", b.First,
		"count", b.count,
		"generation", b.Snapshot.Generation,
		"root", log.FormatHex(rootLE[:]))
	return nil
}

// Leaf returns the leaf stored at position.
func (t *Tree) Leaf(position uint64) (fr.Element, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if position >= t.snapshot.Size {
		return fr.Element{}, fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	return t.readNode(nodeKey(0, position), 0)
}

// Path returns the membership path of the leaf at position together with the
// snapshot it was computed against. The path verifies against Snapshot.Root.
func (t *Tree) Path(position uint64) (*Path, Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if position >= t.snapshot.Size {
		return nil, Snapshot{}, fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	path := &Path{Position: position, Siblings: make([]fr.Element, t.depth)}
	idx := position
	for level := 0; level < t.depth; level++ {
		sibling, err := t.readNode(nodeKey(level, idx^1), level)
		if err != nil {
			return nil, Snapshot{}, err
		}
		path.Siblings[level] = sibling
		idx >>= 1
	}
	return path, t.snapshot, nil
}

// readNode returns the stored node or the empty subtree root of its level.
func (t *Tree) readNode(key []byte, level int) (fr.Element, error) {
	data, err := t.nodes.Get(key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return emptyNodes[level], nil
	}
	if err != nil {
		return fr.Element{}, fmt.Errorf("read accumulator node: %w", err)
	}
	return crypto.ElementFromLE(data)
}

func nodeKey(level int, index uint64) []byte {
	key := make([]byte, 9)
	key[0] = byte(level)
	binary.BigEndian.PutUint64(key[1:], index)
	return key
}
