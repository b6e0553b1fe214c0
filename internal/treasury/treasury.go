// Package treasury moves funds out of the registry. Transfers run as the
// last step of an atomic registry operation, so a transfer error aborts the
// whole operation.
package treasury

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rs/xid"
)

// Payer settles an outgoing payment and returns a transfer ID.
type Payer interface {
	Transfer(ctx context.Context, destination string, amount uint64) (string, error)
}

// Ledger is an in-process Payer keeping per-destination credited totals.
type Ledger struct {
	mu      sync.Mutex
	credits map[string]uint64
	logger  *slog.Logger
}

func NewLedger(logger *slog.Logger) *Ledger {
	return &Ledger{
		credits: make(map[string]uint64),
		logger:  logger,
	}
}

func (l *Ledger) Transfer(ctx context.Context, destination string, amount uint64) (string, error) {
	txID := xid.New().String()

	l.mu.Lock()
	l.credits[destination] += amount
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "transfer settled",
		slog.String("tx_id", txID),
		slog.String("destination", destination),
		slog.Uint64("amount", amount),
	)
	return txID, nil
}

// Credited reports the total amount transferred to a destination.
func (l *Ledger) Credited(destination string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credits[destination]
}
