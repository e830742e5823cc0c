package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/types"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Transaction status values.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// PendingTx is an encoded transaction waiting to be verified and applied.
type PendingTx struct {
	ID       types.HexBytes `cbor:"0,keyasint"`
	Data     []byte         `cbor:"1,keyasint"`
	Received int64          `cbor:"2,keyasint"`
}

// TxStatus is the processing outcome of a transaction.
type TxStatus struct {
	ID      types.HexBytes `json:"id" cbor:"0,keyasint"`
	Status  string         `json:"status" cbor:"1,keyasint"`
	Error   string         `json:"error,omitempty" cbor:"2,keyasint,omitempty"`
	BatchID string         `json:"batchId,omitempty" cbor:"3,keyasint,omitempty"`
	// Generation and Root identify the accumulator snapshot produced by an
	// accepted transaction.
	Generation uint64         `json:"generation,omitempty" cbor:"4,keyasint,omitempty"`
	Root       types.HexBytes `json:"root,omitempty" cbor:"5,keyasint,omitempty"`
	Updated    int64          `json:"updated" cbor:"6,keyasint"`
}

// PushTransaction appends an encoded transaction to the pending queue and
// returns its queue key. A transaction ID is accepted again only after it was
// rejected; while pending or once accepted a push returns ErrAlreadyExists.
func (s *Storage) PushTransaction(id, data []byte) ([]byte, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	previous := &TxStatus{}
	if err := s.getArtifact(txStatusPrefix, id, previous); err == nil {
		if previous.Status != StatusRejected {
			return nil, ErrAlreadyExists
		}
		log.Debugw("resubmitting rejected transaction", "id", hex.EncodeToString(id), "error", previous.Error)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("read status: %w", err)
	}

	now := time.Now().Unix()
	val, err := encodeArtifact(&PendingTx{ID: id, Data: data, Received: now})
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	status, err := encodeArtifact(&TxStatus{ID: id, Status: StatusPending, Updated: now})
	if err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}

	wTx := s.db.WriteTx()
	seq, err := s.nextSequence(wTx)
	if err != nil {
		wTx.Discard()
		return nil, err
	}
	// keys sort by arrival
	key := append(seq, hashKey(val)...)
	if err := prefixeddb.NewPrefixedWriteTx(wTx, pendingTxPrefix).Set(key, val); err != nil {
		wTx.Discard()
		return nil, err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, txStatusPrefix).Set(id, status); err != nil {
		wTx.Discard()
		return nil, err
	}
	if err := wTx.Commit(); err != nil {
		return nil, err
	}
	s.sequence++
	return key, nil
}

// NextTransactions returns up to maxCount non-reserved pending transactions
// in arrival order, together with their keys, and reserves them. If no
// transactions are available, returns ErrNoMoreElements.
func (s *Storage) NextTransactions(maxCount int) ([]*PendingTx, [][]byte, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if maxCount <= 0 {
		return nil, nil, ErrNoMoreElements
	}
	rd := prefixeddb.NewPrefixedReader(s.db, pendingTxPrefix)
	var res []*PendingTx
	var keys [][]byte
	if err := rd.Iterate(nil, func(k, v []byte) bool {
		if len(res) >= maxCount {
			return false
		}
		if s.isReserved(pendingTxReserved, k) {
			return true
		}
		var tx PendingTx
		if err := decodeArtifact(v, &tx); err != nil {
			log.Warnw("failed to decode pending transaction", "key", hex.EncodeToString(k), "error", err.Error())
			return true
		}
		// Make a copy of the key, the iterator reuses it
		key := append([]byte(nil), k...)
		if err := s.setReservation(pendingTxReserved, key); err != nil {
			log.Warnw("failed to reserve pending transaction", "key", hex.EncodeToString(key), "error", err.Error())
			return true
		}
		res = append(res, &tx)
		keys = append(keys, key)
		return true
	}); err != nil {
		return nil, nil, fmt.Errorf("iterate pending transactions: %w", err)
	}
	if len(res) == 0 {
		return nil, nil, ErrNoMoreElements
	}
	return res, keys, nil
}

// MarkTransactionDone removes the reserved transaction from the queue and
// stores its final status.
func (s *Storage) MarkTransactionDone(k []byte, status *TxStatus) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if err := s.deleteArtifact(pendingTxReserved, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if err := s.deleteArtifact(pendingTxPrefix, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete pending transaction: %w", err)
	}
	status.Updated = time.Now().Unix()
	if err := s.setArtifact(txStatusPrefix, status.ID, status); err != nil {
		return fmt.Errorf("store status: %w", err)
	}
	return nil
}

// ReleaseTransaction removes the reservation of a pending transaction so it
// is returned again by NextTransactions.
func (s *Storage) ReleaseTransaction(k []byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.deleteArtifact(pendingTxReserved, k)
}

// TransactionStatus returns the status of the transaction. Returns
// ErrNotFound if the transaction was never pushed.
func (s *Storage) TransactionStatus(id []byte) (*TxStatus, error) {
	status := &TxStatus{}
	if err := s.getArtifact(txStatusPrefix, id, status); err != nil {
		return nil, err
	}
	return status, nil
}

// CountPendingTransactions returns the number of transactions in the queue,
// reserved or not.
func (s *Storage) CountPendingTransactions() int {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	count := 0
	if err := prefixeddb.NewPrefixedReader(s.db, pendingTxPrefix).Iterate(nil, func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		log.Warnw("failed to count pending transactions", "error", err.Error())
	}
	return count
}
