package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/processor"
	"github.com/vocdoni/vocdoni-z-shielded/state"
	"github.com/vocdoni/vocdoni-z-shielded/storage"
	"github.com/vocdoni/vocdoni-z-shielded/transaction"
)

// ProcessorService represents a service that verifies and applies pending
// transactions in the background.
type ProcessorService struct {
	processor *processor.Processor
	mu        sync.Mutex
	running   bool
}

// NewProcessor creates a new processor service. The batchTimeWindow defines
// how long a pending transaction can wait until its batch is processed.
func NewProcessor(stg *storage.Storage, st *state.State, verifier *transaction.Verifier,
	batchSize int, batchTimeWindow time.Duration,
) (*ProcessorService, error) {
	p, err := processor.New(stg, st, verifier, batchSize, batchTimeWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to create processor: %w", err)
	}
	return &ProcessorService{processor: p}, nil
}

// Start begins the transaction processing service. It returns an error if
// the service is already running.
func (ps *ProcessorService) Start(ctx context.Context) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.running {
		return fmt.Errorf("service already running")
	}
	if err := ps.processor.Start(ctx); err != nil {
		return err
	}
	ps.running = true
	return nil
}

// Stop halts the transaction processing service.
func (ps *ProcessorService) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if err := ps.processor.Stop(); err != nil {
		log.Warnw("processor service stopped", "error", err.Error())
	}
	ps.running = false
}
