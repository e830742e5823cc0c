// Package state is the reference ledger of the shielded pool. It holds the
// spent nullifier set, the commitment accumulator and the history of its
// anchors, and applies executed transactions to them one at a time.
package state

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vocdoni/arbo"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/config"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/transaction"
	"github.com/vocdoni/vocdoni-z-shielded/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

const (
	// NullifierLevels is the number of levels of the spent nullifier tree,
	// enough for 32 byte keys.
	NullifierLevels = 256
	// MaxKeyLen is ceil(NullifierLevels/8)
	MaxKeyLen = (NullifierLevels + 7) / 8

	recentAnchors = 256
)

var (
	// ErrNullifierSpent is returned when a transaction consumes a resource
	// whose nullifier is already in the spent set.
	ErrNullifierSpent = errors.New("nullifier already spent")
	// ErrUnknownAnchor is returned when a transaction proves membership
	// against a root the accumulator never had.
	ErrUnknownAnchor = errors.New("unknown anchor")

	nullifierPrefix   = []byte("nf/")
	accumulatorPrefix = []byte("acc/")
	anchorPrefix      = []byte("an/")
)

// hashFunc is the hash function used in the nullifier tree.
var hashFunc = arbo.HashFunctionPoseidon

type anchorRecord struct {
	Generation uint64 `cbor:"0,keyasint"`
	Size       uint64 `cbor:"1,keyasint"`
}

// State is the ledger. Apply calls are serialized; readers may query it
// concurrently.
type State struct {
	mu         sync.Mutex
	db         db.Database
	nullifiers *arbo.Tree
	tree       *accumulator.Tree
	anchors    *prefixeddb.PrefixedDatabase
	recent     *lru.Cache[fr.Element, uint64]
	emptyRoot  fr.Element
}

// New creates or opens the ledger stored in database.
func New(database db.Database, params *config.Params) (*State, error) {
	nullifiers, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(database, nullifierPrefix),
		MaxLevels:    NullifierLevels,
		HashFunction: hashFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("nullifier tree: %w", err)
	}
	tree, err := accumulator.New(prefixeddb.NewPrefixedDatabase(database, accumulatorPrefix), params.TreeDepth)
	if err != nil {
		return nil, err
	}
	recent, err := lru.New[fr.Element, uint64](recentAnchors)
	if err != nil {
		return nil, err
	}
	s := &State{
		db:         database,
		nullifiers: nullifiers,
		tree:       tree,
		anchors:    prefixeddb.NewPrefixedDatabase(database, anchorPrefix),
		recent:     recent,
		emptyRoot:  accumulator.EmptyRoot(params.TreeDepth),
	}
	if err := s.recordAnchor(tree.Snapshot()); err != nil {
		return nil, err
	}
	return s, nil
}

// Close the database, no more operations can be done after this.
func (s *State) Close() error {
	return s.db.Close()
}

// Accumulator returns the commitment accumulator. Callers must not append
// to it directly.
func (s *State) Accumulator() *accumulator.Tree {
	return s.tree
}

// Snapshot returns the last committed state of the accumulator.
func (s *State) Snapshot() accumulator.Snapshot {
	return s.tree.Snapshot()
}

// Path returns the membership path of the commitment at position, with the
// snapshot it belongs to.
func (s *State) Path(position uint64) (*accumulator.Path, accumulator.Snapshot, error) {
	return s.tree.Path(position)
}

// IsAnchor reports whether root is the empty root or a root the accumulator
// had after some applied batch.
func (s *State) IsAnchor(root fr.Element) (bool, error) {
	if root.Equal(&s.emptyRoot) {
		return true, nil
	}
	if s.recent.Contains(root) {
		return true, nil
	}
	key := crypto.ElementToLE(root)
	data, err := s.anchors.Get(key[:])
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var rec anchorRecord
	if err := types.DecodeCBOR(data, &rec); err != nil {
		return false, fmt.Errorf("decode anchor: %w", err)
	}
	s.recent.Add(root, rec.Generation)
	return true, nil
}

// IsSpent reports whether the nullifier is in the spent set.
func (s *State) IsSpent(nf fr.Element) (bool, error) {
	key := crypto.ElementToLE(nf)
	_, _, err := s.nullifiers.Get(key[:])
	if errors.Is(err, arbo.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// NullifierRoot returns the root of the spent nullifier tree.
func (s *State) NullifierRoot() ([]byte, error) {
	return s.nullifiers.Root()
}

// SpentCount returns the number of spent nullifiers.
func (s *State) SpentCount() (int, error) {
	return s.nullifiers.GetNLeafs()
}

// Check validates the executed transaction against the ledger without
// modifying it: every nullifier is unspent and every anchor is known or is
// the resource merkle root of a partial of the same transaction.
func (s *State) Check(res *transaction.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(res)
}

func (s *State) check(res *transaction.Result) error {
	seen := make(map[fr.Element]struct{})
	for _, nf := range res.Nullifiers() {
		if _, ok := seen[nf]; ok {
			return fmt.Errorf("%w: %s repeated", ErrNullifierSpent, nf.String())
		}
		seen[nf] = struct{}{}
		spent, err := s.IsSpent(nf)
		if err != nil {
			return err
		}
		if spent {
			return fmt.Errorf("%w: %s", ErrNullifierSpent, nf.String())
		}
	}
	local := make(map[fr.Element]struct{})
	for _, root := range res.ResourceRoots() {
		local[root] = struct{}{}
	}
	for _, anchor := range res.Anchors() {
		if _, ok := local[anchor]; ok {
			continue
		}
		known, err := s.IsAnchor(anchor)
		if err != nil {
			return err
		}
		if !known {
			return fmt.Errorf("%w: %s", ErrUnknownAnchor, anchor.String())
		}
	}
	return nil
}

// Apply checks the executed transaction and applies it: its nullifiers are
// added to the spent set and its commitments appended to the accumulator in
// a single database transaction, so a failure leaves the ledger untouched.
// It returns the accumulator snapshot after the append.
func (s *State) Apply(res *transaction.Result) (accumulator.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(res); err != nil {
		return accumulator.Snapshot{}, err
	}
	cms := res.Commitments()
	before := s.tree.Snapshot()
	if before.Size+uint64(len(cms)) > uint64(1)<<uint(s.tree.Depth()) {
		return accumulator.Snapshot{}, accumulator.ErrTreeFull
	}

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if nfs := res.Nullifiers(); len(nfs) > 0 {
		// the value of a spent nullifier is the generation that spent it
		value := arbo.BigIntToBytes(MaxKeyLen, new(big.Int).SetUint64(before.Generation+1))
		keys := make([][]byte, len(nfs))
		values := make([][]byte, len(nfs))
		for i, nf := range nfs {
			key := crypto.ElementToLE(nf)
			keys[i], values[i] = key[:], value
		}
		invalid, err := s.nullifiers.AddBatchWithTx(prefixeddb.NewPrefixedWriteTx(wTx, nullifierPrefix), keys, values)
		if err != nil {
			return accumulator.Snapshot{}, fmt.Errorf("add nullifiers: %w", err)
		}
		if len(invalid) > 0 {
			return accumulator.Snapshot{}, fmt.Errorf("%w: %d nullifiers rejected by the spent set",
				ErrNullifierSpent, len(invalid))
		}
	}
	batch, err := s.tree.StageBatch(prefixeddb.NewPrefixedWriteTx(wTx, accumulatorPrefix), cms)
	if err != nil {
		return accumulator.Snapshot{}, fmt.Errorf("append commitments: %w", err)
	}
	snap := batch.Snapshot
	if err := writeAnchor(prefixeddb.NewPrefixedWriteTx(wTx, anchorPrefix), snap); err != nil {
		return accumulator.Snapshot{}, err
	}
	if err := wTx.Commit(); err != nil {
		return accumulator.Snapshot{}, fmt.Errorf("commit transaction %x: %w", res.ID, err)
	}
	if err := s.tree.Publish(batch); err != nil {
		return accumulator.Snapshot{}, err
	}
	s.recent.Add(snap.Root, snap.Generation)
	log.Debugw("transaction applied",
		"id", fmt.Sprintf("%x", res.ID),
		"generation", snap.Generation,
		"size", snap.Size,
		"root", snap.Root.String())
	return snap, nil
}

func (s *State) recordAnchor(snap accumulator.Snapshot) error {
	wTx := s.anchors.WriteTx()
	defer wTx.Discard()
	if err := writeAnchor(wTx, snap); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return fmt.Errorf("record anchor: %w", err)
	}
	s.recent.Add(snap.Root, snap.Generation)
	return nil
}

func writeAnchor(wTx db.WriteTx, snap accumulator.Snapshot) error {
	data, err := types.EncodeCBOR(anchorRecord{Generation: snap.Generation, Size: snap.Size})
	if err != nil {
		return err
	}
	key := crypto.ElementToLE(snap.Root)
	if err := wTx.Set(key[:], data); err != nil {
		return fmt.Errorf("record anchor: %w", err)
	}
	return nil
}
