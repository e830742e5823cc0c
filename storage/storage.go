// storage package contains the artifacts of the node that are stored in the
// database, and a queue of pending transactions processed by the node
// services. The following prefixes are used:
//   - 'tx/' for pending transactions (queued)
//   - 'txr/' for reservations of pending transactions
//   - 'txs/' for transaction status records
//   - 'm/' for storage metadata
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/vocdoni/vocdoni-z-shielded/log"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// Prefixes for the keys in the database.
	metadataPrefix    = []byte("m/")
	pendingTxPrefix   = []byte("tx/")
	pendingTxReserved = []byte("txr/")
	txStatusPrefix    = []byte("txs/")

	sequenceKey = []byte("seq")

	// ErrNotFound is returned when the requested artifact does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoMoreElements is returned when a queue has no unreserved elements.
	ErrNoMoreElements = errors.New("no more elements")
	// ErrAlreadyExists is returned when a transaction is pushed twice.
	ErrAlreadyExists = errors.New("already exists")
)

const (
	// maxKeySize is the maximum size of the key in bytes. It is used to
	// generate the key of the artifacts stored in the database by truncating
	// the hash of the artifact itself.
	maxKeySize = 12
	// sequenceSize is the size of the queue position prefix of the keys of
	// pending transactions.
	sequenceSize = 8
)

// Storage wraps the node database.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
	sequence   uint64
}

// New creates a new Storage instance. Reservations left by a previous run
// are released so their transactions are processed again.
func New(database db.Database) (*Storage, error) {
	s := &Storage{db: database}
	data, err := prefixeddb.NewPrefixedReader(database, metadataPrefix).Get(sequenceKey)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
	case err != nil:
		return nil, fmt.Errorf("read queue sequence: %w", err)
	case len(data) != sequenceSize:
		return nil, fmt.Errorf("invalid queue sequence length %d", len(data))
	default:
		s.sequence = binary.BigEndian.Uint64(data)
	}
	released, err := s.releaseAll(pendingTxReserved)
	if err != nil {
		return nil, err
	}
	if released > 0 {
		log.Infow("released stale reservations", "count", released)
	}
	return s, nil
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "error", err.Error())
	}
}

// nextSequence returns the next queue position and persists the counter in
// the write transaction. Callers hold globalLock.
func (s *Storage) nextSequence(wTx db.WriteTx) ([]byte, error) {
	next := make([]byte, sequenceSize)
	binary.BigEndian.PutUint64(next, s.sequence+1)
	mTx := prefixeddb.NewPrefixedWriteTx(wTx, metadataPrefix)
	if err := mTx.Set(sequenceKey, next); err != nil {
		return nil, err
	}
	return next, nil
}
