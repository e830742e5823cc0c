// Package processor verifies pending transactions in batches and applies the
// accepted ones to the ledger in queue order.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/state"
	"github.com/vocdoni/vocdoni-z-shielded/storage"
	"github.com/vocdoni/vocdoni-z-shielded/transaction"
)

// DefaultBatchSize is the maximum number of transactions verified together.
const DefaultBatchSize = 64

// Processor is a worker that takes pending transactions from the storage
// queue, executes them in parallel and applies them to the state.
type Processor struct {
	stg      *storage.Storage
	state    *state.State
	verifier *transaction.Verifier
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	batchSize int
	// maxTimeWindow is the maximum time a pending transaction waits for the
	// next batch.
	maxTimeWindow time.Duration
}

// New creates a transaction processor.
func New(stg *storage.Storage, st *state.State, verifier *transaction.Verifier,
	batchSize int, batchTimeWindow time.Duration,
) (*Processor, error) {
	if stg == nil || st == nil || verifier == nil {
		return nil, fmt.Errorf("storage, state and verifier are required")
	}
	if batchTimeWindow <= 0 {
		return nil, fmt.Errorf("batch time window must be positive")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Processor{
		stg:           stg,
		state:         st,
		verifier:      verifier,
		batchSize:     batchSize,
		maxTimeWindow: batchTimeWindow,
	}, nil
}

// Start launches the processing loop in the background. It runs until the
// context is canceled or Stop is called.
func (p *Processor) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	ticker := time.NewTicker(p.maxTimeWindow)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		log.Infow("transaction processor started",
			"batchSize", p.batchSize,
			"batchTimeWindow", p.maxTimeWindow)

		for {
			if _, err := p.ProcessBatch(p.ctx); err != nil {
				if !errors.Is(err, storage.ErrNoMoreElements) {
					log.Errorw(err, "failed to process batch")
				}
				// wait for the next tick or context cancellation
				select {
				case <-ticker.C:
				case <-p.ctx.Done():
					log.Infow("transaction processor stopped")
					return
				}
				continue
			}
			select {
			case <-p.ctx.Done():
				log.Infow("transaction processor stopped")
				return
			default:
			}
		}
	}()
	return nil
}

// Stop cancels the processing loop and waits for the current batch to
// finish. It's safe to call Stop multiple times.
func (p *Processor) Stop() error {
	if p.cancel != nil {
		p.cancel()
		p.wg.Wait()
	}
	return nil
}
