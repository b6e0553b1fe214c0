package treasury_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/sensornet/registry/internal/treasury"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestTransfer_CreditsDestination(t *testing.T) {
	ledger := treasury.NewLedger(testLogger)

	txID, err := ledger.Transfer(context.Background(), "acct-1", 250)
	require.NoError(t, err)
	assert.NotEmpty(t, txID)
	assert.Equal(t, uint64(250), ledger.Credited("acct-1"))
}

func TestTransfer_Accumulates(t *testing.T) {
	ledger := treasury.NewLedger(testLogger)

	_, err := ledger.Transfer(context.Background(), "acct-1", 100)
	require.NoError(t, err)
	_, err = ledger.Transfer(context.Background(), "acct-1", 40)
	require.NoError(t, err)

	assert.Equal(t, uint64(140), ledger.Credited("acct-1"))
	assert.Zero(t, ledger.Credited("acct-2"))
}

func TestTransfer_ZeroAmountAllowed(t *testing.T) {
	ledger := treasury.NewLedger(testLogger)

	txID, err := ledger.Transfer(context.Background(), "acct-1", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, txID)
	assert.Zero(t, ledger.Credited("acct-1"))
}

func TestTransfer_UniqueTransferIDs(t *testing.T) {
	ledger := treasury.NewLedger(testLogger)

	a, err := ledger.Transfer(context.Background(), "acct-1", 1)
	require.NoError(t, err)
	b, err := ledger.Transfer(context.Background(), "acct-1", 1)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
