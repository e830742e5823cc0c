package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/vocdoni-z-shielded/accumulator"
	"github.com/vocdoni/vocdoni-z-shielded/crypto"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/state"
	"github.com/vocdoni/vocdoni-z-shielded/storage"
	"github.com/vocdoni/vocdoni-z-shielded/transaction"
	"golang.org/x/sync/errgroup"
)

// ErrIDMismatch is returned when a queued transaction does not hash to the
// ID it was submitted with.
var ErrIDMismatch = errors.New("transaction id mismatch")

// BatchReport summarizes a processed batch.
type BatchReport struct {
	ID       string
	Accepted int
	Rejected int
	Snapshot accumulator.Snapshot
}

// ProcessBatch takes the next pending transactions, executes them in
// parallel and, once all of them are verified, applies the valid ones to the
// state in queue order. Returns storage.ErrNoMoreElements if the queue is
// empty.
func (p *Processor) ProcessBatch(ctx context.Context) (*BatchReport, error) {
	pending, keys, err := p.stg.NextTransactions(p.batchSize)
	if err != nil {
		return nil, err
	}
	batchID := uuid.New().String()
	startTime := time.Now()
	log.Debugw("processing batch", "batch", batchID, "transactions", len(pending))

	results := make([]*transaction.Result, len(pending))
	errs := make([]error, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, ptx := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = p.execute(ptx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.release(keys)
		return nil, err
	}

	report := &BatchReport{ID: batchID}
	for i, ptx := range pending {
		status := &storage.TxStatus{ID: ptx.ID, BatchID: batchID}
		if errs[i] == nil {
			snap, err := p.state.Apply(results[i])
			if err != nil && !isRejection(err) {
				p.release(keys[i:])
				return nil, fmt.Errorf("apply transaction %x: %w", ptx.ID, err)
			}
			errs[i] = err
			if err == nil {
				root := crypto.ElementToLE(snap.Root)
				status.Status, status.Generation, status.Root = storage.StatusAccepted, snap.Generation, root[:]
				report.Accepted++
			}
		}
		if errs[i] != nil {
			status.Status, status.Error = storage.StatusRejected, errs[i].Error()
			report.Rejected++
			log.Debugw("transaction rejected", "id", ptx.ID.String(), "error", errs[i].Error())
		}
		if err := p.stg.MarkTransactionDone(keys[i], status); err != nil {
			log.Warnw("failed to mark transaction as processed", "id", ptx.ID.String(), "error", err.Error())
		}
	}
	report.Snapshot = p.state.Snapshot()
	log.Infow("batch processed",
		"batch", batchID,
		"accepted", report.Accepted,
		"rejected", report.Rejected,
		"generation", report.Snapshot.Generation,
		"took", time.Since(startTime).String())
	return report, nil
}

// execute decodes and verifies a queued transaction.
func (p *Processor) execute(ptx *storage.PendingTx) (*transaction.Result, error) {
	tx, err := transaction.Decode(ptx.Data)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(tx.ID(), ptx.ID) {
		return nil, ErrIDMismatch
	}
	return tx.Execute(p.verifier)
}

func (p *Processor) release(keys [][]byte) {
	for _, k := range keys {
		if err := p.stg.ReleaseTransaction(k); err != nil {
			log.Warnw("failed to release transaction", "key", fmt.Sprintf("%x", k), "error", err.Error())
		}
	}
}

// isRejection reports whether the ledger refused the transaction itself, as
// opposed to failing to apply it.
func isRejection(err error) bool {
	return errors.Is(err, state.ErrNullifierSpent) ||
		errors.Is(err, state.ErrUnknownAnchor) ||
		errors.Is(err, accumulator.ErrTreeFull)
}
