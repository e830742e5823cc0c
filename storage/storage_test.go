package storage

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/vocdoni-z-shielded/util"
	"go.vocdoni.io/dvote/db/metadb"
)

func TestTransactionQueue(t *testing.T) {
	c := qt.New(t)
	stg, err := New(metadb.NewTest(t))
	c.Assert(err, qt.IsNil)

	_, _, err = stg.NextTransactions(10)
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	var ids [][]byte
	for i := 0; i < 5; i++ {
		id := util.RandomBytes(32)
		ids = append(ids, id)
		_, err := stg.PushTransaction(id, []byte(fmt.Sprintf("tx %d", i)))
		c.Assert(err, qt.IsNil)
	}
	c.Assert(stg.CountPendingTransactions(), qt.Equals, 5)

	_, err = stg.PushTransaction(ids[0], []byte("again"))
	c.Assert(err, qt.ErrorIs, ErrAlreadyExists)

	status, err := stg.TransactionStatus(ids[2])
	c.Assert(err, qt.IsNil)
	c.Assert(status.Status, qt.Equals, StatusPending)

	_, err = stg.TransactionStatus(util.RandomBytes(32))
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	// arrival order, reserved ones are skipped
	txs, keys, err := stg.NextTransactions(3)
	c.Assert(err, qt.IsNil)
	c.Assert(txs, qt.HasLen, 3)
	c.Assert(keys, qt.HasLen, 3)
	for i, tx := range txs {
		c.Assert([]byte(tx.ID), qt.DeepEquals, ids[i])
		c.Assert(tx.Data, qt.DeepEquals, []byte(fmt.Sprintf("tx %d", i)))
	}
	rest, restKeys, err := stg.NextTransactions(10)
	c.Assert(err, qt.IsNil)
	c.Assert(rest, qt.HasLen, 2)
	c.Assert([]byte(rest[0].ID), qt.DeepEquals, ids[3])
	_, _, err = stg.NextTransactions(10)
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	// done transactions leave the queue
	c.Assert(stg.MarkTransactionDone(keys[0], &TxStatus{ID: ids[0], Status: StatusAccepted, Generation: 1}), qt.IsNil)
	c.Assert(stg.MarkTransactionDone(keys[1], &TxStatus{ID: ids[1], Status: StatusRejected, Error: "bad"}), qt.IsNil)
	c.Assert(stg.CountPendingTransactions(), qt.Equals, 3)
	status, err = stg.TransactionStatus(ids[0])
	c.Assert(err, qt.IsNil)
	c.Assert(status.Status, qt.Equals, StatusAccepted)
	c.Assert(status.Generation, qt.Equals, uint64(1))
	status, err = stg.TransactionStatus(ids[1])
	c.Assert(err, qt.IsNil)
	c.Assert(status.Status, qt.Equals, StatusRejected)
	c.Assert(status.Error, qt.Equals, "bad")

	// released transactions come back
	c.Assert(stg.ReleaseTransaction(restKeys[1]), qt.IsNil)
	txs, _, err = stg.NextTransactions(10)
	c.Assert(err, qt.IsNil)
	c.Assert(txs, qt.HasLen, 1)
	c.Assert([]byte(txs[0].ID), qt.DeepEquals, ids[4])
	c.Assert(stg.ReleaseTransaction(util.RandomBytes(20)), qt.ErrorIs, ErrNotFound)
}

func TestResubmitRejectedTransaction(t *testing.T) {
	c := qt.New(t)
	stg, err := New(metadb.NewTest(t))
	c.Assert(err, qt.IsNil)

	id := util.RandomBytes(32)
	_, err = stg.PushTransaction(id, []byte("first"))
	c.Assert(err, qt.IsNil)
	_, keys, err := stg.NextTransactions(1)
	c.Assert(err, qt.IsNil)
	c.Assert(stg.MarkTransactionDone(keys[0], &TxStatus{ID: id, Status: StatusRejected, Error: "unknown anchor"}), qt.IsNil)

	// a rejected transaction can be pushed again
	_, err = stg.PushTransaction(id, []byte("second"))
	c.Assert(err, qt.IsNil)
	status, err := stg.TransactionStatus(id)
	c.Assert(err, qt.IsNil)
	c.Assert(status.Status, qt.Equals, StatusPending)
	c.Assert(status.Error, qt.Equals, "")
	txs, keys, err := stg.NextTransactions(1)
	c.Assert(err, qt.IsNil)
	c.Assert(txs[0].Data, qt.DeepEquals, []byte("second"))

	// but not while pending or once accepted
	_, err = stg.PushTransaction(id, []byte("third"))
	c.Assert(err, qt.ErrorIs, ErrAlreadyExists)
	c.Assert(stg.MarkTransactionDone(keys[0], &TxStatus{ID: id, Status: StatusAccepted, Generation: 1}), qt.IsNil)
	_, err = stg.PushTransaction(id, []byte("third"))
	c.Assert(err, qt.ErrorIs, ErrAlreadyExists)
}

func TestReopenReleasesReservations(t *testing.T) {
	c := qt.New(t)
	database := metadb.NewTest(t)
	stg, err := New(database)
	c.Assert(err, qt.IsNil)

	first := util.RandomBytes(32)
	_, err = stg.PushTransaction(first, []byte("first"))
	c.Assert(err, qt.IsNil)
	_, _, err = stg.NextTransactions(1)
	c.Assert(err, qt.IsNil)

	reopened, err := New(database)
	c.Assert(err, qt.IsNil)
	second := util.RandomBytes(32)
	_, err = reopened.PushTransaction(second, []byte("second"))
	c.Assert(err, qt.IsNil)

	// the sequence survives so the order is kept
	txs, _, err := reopened.NextTransactions(10)
	c.Assert(err, qt.IsNil)
	c.Assert(txs, qt.HasLen, 2)
	c.Assert([]byte(txs[0].ID), qt.DeepEquals, first)
	c.Assert([]byte(txs[1].ID), qt.DeepEquals, second)
}
