package service_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/sensornet/registry/internal/models"
	"github.com/sensornet/registry/internal/repository/memory"
	"github.com/sensornet/registry/internal/service"
	"github.com/sensornet/registry/internal/treasury"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	defaultCreationFee     = 1000
	defaultTransmissionFee = 10
)

type fixture struct {
	svc    *service.Service
	ledger *treasury.Ledger
}

func newFixture(t *testing.T, auth service.Authorizer) *fixture {
	t.Helper()
	store := memory.New(defaultCreationFee, defaultTransmissionFee)
	ledger := treasury.NewLedger(testLogger)
	return &fixture{
		svc:    service.New(store, ledger, auth, testLogger),
		ledger: ledger,
	}
}

func open(t *testing.T) *fixture { return newFixture(t, service.OpenAccess{}) }

// failingPayer rejects every transfer, for rollback tests.
type failingPayer struct{ err error }

func (p failingPayer) Transfer(context.Context, string, uint64) (string, error) {
	return "", p.err
}

// =================================================================
// Create / Get / UpdateReading
// =================================================================

func TestCreate_ThenGet(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Create(ctx, "s1", "room1", "temp"))

	sensor, err := f.svc.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sensor.ID)
	assert.Equal(t, "room1", sensor.Location)
	assert.Equal(t, "temp", sensor.Category)
	assert.Empty(t, sensor.Reading)
	assert.False(t, sensor.CreatedAt.IsZero())
}

func TestCreate_DuplicateIdentifier(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Create(ctx, "s1", "room1", "temp"))
	err := f.svc.Create(ctx, "s1", "elsewhere", "humidity")
	assert.ErrorIs(t, err, service.ErrAlreadyExists)
}

func TestCreate_EmptyIdentifier(t *testing.T) {
	f := open(t)
	err := f.svc.Create(context.Background(), "", "room1", "temp")
	assert.ErrorIs(t, err, service.ErrEmptyID)
}

func TestGet_NotFound(t *testing.T) {
	f := open(t)
	_, err := f.svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestUpdateReading_Overwrites(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Create(ctx, "s1", "room1", "temp"))
	require.NoError(t, f.svc.UpdateReading(ctx, "s1", "22.5"))

	sensor, err := f.svc.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "22.5", sensor.Reading)

	require.NoError(t, f.svc.UpdateReading(ctx, "s1", "23.1"))
	sensor, err = f.svc.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "23.1", sensor.Reading)
}

func TestUpdateReading_NotFound(t *testing.T) {
	f := open(t)
	err := f.svc.UpdateReading(context.Background(), "ghost", "1")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

// =================================================================
// CreateMetered
// =================================================================

func TestCreateMetered_FirstThreeFree(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		err := f.svc.CreateMetered(ctx, "alice", id, "loc", "temp", 0)
		require.NoError(t, err, "free creation %d", i+1)
	}

	err := f.svc.CreateMetered(ctx, "alice", "d", "loc", "temp", 0)
	assert.ErrorIs(t, err, service.ErrInsufficientPayment)

	err = f.svc.CreateMetered(ctx, "alice", "d", "loc", "temp", defaultCreationFee)
	require.NoError(t, err)
}

func TestCreateMetered_QuotaIsPerCaller(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, f.svc.CreateMetered(ctx, "alice", id, "loc", "temp", 0))
	}
	// bob has his own quota
	require.NoError(t, f.svc.CreateMetered(ctx, "bob", "d", "loc", "temp", 0))
}

func TestCreateMetered_PaymentPooled(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	// Payments pool even within the free quota; overpayment is kept.
	require.NoError(t, f.svc.CreateMetered(ctx, "alice", "a", "loc", "temp", 50))
	require.NoError(t, f.svc.CreateMetered(ctx, "alice", "b", "loc", "temp", 0))
	require.NoError(t, f.svc.CreateMetered(ctx, "alice", "c", "loc", "temp", 0))
	require.NoError(t, f.svc.CreateMetered(ctx, "alice", "d", "loc", "temp", defaultCreationFee+500))

	require.NoError(t, f.svc.WithdrawPooledBalance(ctx, "anyone", "vault"))
	assert.Equal(t, uint64(50+defaultCreationFee+500), f.ledger.Credited("vault"))
}

func TestCreateMetered_DuplicateIdentifier(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Create(ctx, "s1", "room1", "temp"))
	err := f.svc.CreateMetered(ctx, "alice", "s1", "loc", "temp", 0)
	assert.ErrorIs(t, err, service.ErrAlreadyExists)
}

func TestCreateMetered_EmptyCaller(t *testing.T) {
	f := open(t)
	err := f.svc.CreateMetered(context.Background(), "", "s1", "loc", "temp", 0)
	assert.ErrorIs(t, err, service.ErrEmptyCaller)
}

func TestCreateMetered_FailedCreationDoesNotBurnQuota(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Create(ctx, "taken", "loc", "temp"))

	// Rejected creations must not advance the counter or pool the payment.
	for i := 0; i < 5; i++ {
		err := f.svc.CreateMetered(ctx, "alice", "taken", "loc", "temp", 70)
		require.ErrorIs(t, err, service.ErrAlreadyExists)
	}

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, f.svc.CreateMetered(ctx, "alice", id, "loc", "temp", 0))
	}

	require.NoError(t, f.svc.WithdrawPooledBalance(ctx, "anyone", "vault"))
	assert.Zero(t, f.ledger.Credited("vault"))
}

// =================================================================
// Fees and authorization
// =================================================================

func TestSetFees_OpenAccess(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SetCreationFee(ctx, "anyone", 2000))
	require.NoError(t, f.svc.SetTransmissionFee(ctx, "anyone", 25))

	fees, err := f.svc.Fees(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Fees{Creation: 2000, Transmission: 25}, fees)
}

func TestSetFees_AdminKey(t *testing.T) {
	f := newFixture(t, service.AdminKey("secret"))
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.SetCreationFee(ctx, "wrong", 2000), service.ErrUnauthorized)
	assert.ErrorIs(t, f.svc.SetTransmissionFee(ctx, "", 25), service.ErrUnauthorized)
	assert.ErrorIs(t, f.svc.WithdrawPooledBalance(ctx, "wrong", "vault"), service.ErrUnauthorized)

	require.NoError(t, f.svc.SetCreationFee(ctx, "secret", 2000))
	require.NoError(t, f.svc.SetTransmissionFee(ctx, "secret", 25))
	require.NoError(t, f.svc.WithdrawPooledBalance(ctx, "secret", "vault"))
}

func TestSetCreationFee_AppliesToNextCreation(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, f.svc.CreateMetered(ctx, "alice", id, "loc", "temp", 0))
	}
	require.NoError(t, f.svc.SetCreationFee(ctx, "anyone", 5))

	err := f.svc.CreateMetered(ctx, "alice", "d", "loc", "temp", 4)
	assert.ErrorIs(t, err, service.ErrInsufficientPayment)
	require.NoError(t, f.svc.CreateMetered(ctx, "alice", "d", "loc", "temp", 5))
}

// =================================================================
// WithdrawPooledBalance
// =================================================================

func TestWithdrawPooledBalance_SweepsEverything(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	require.NoError(t, f.svc.CreateMetered(ctx, "alice", "a", "loc", "temp", 300))
	require.NoError(t, f.svc.CreateMetered(ctx, "bob", "b", "loc", "temp", 200))

	require.NoError(t, f.svc.WithdrawPooledBalance(ctx, "anyone", "vault"))
	assert.Equal(t, uint64(500), f.ledger.Credited("vault"))

	// Second sweep transfers zero.
	require.NoError(t, f.svc.WithdrawPooledBalance(ctx, "anyone", "vault"))
	assert.Equal(t, uint64(500), f.ledger.Credited("vault"))
}

func TestWithdrawPooledBalance_ZeroPoolIsNoOp(t *testing.T) {
	f := open(t)
	require.NoError(t, f.svc.WithdrawPooledBalance(context.Background(), "anyone", "vault"))
	assert.Zero(t, f.ledger.Credited("vault"))
}

func TestWithdrawPooledBalance_EmptyDestination(t *testing.T) {
	f := open(t)
	err := f.svc.WithdrawPooledBalance(context.Background(), "anyone", "")
	assert.ErrorIs(t, err, service.ErrEmptyDestination)
}

func TestWithdrawPooledBalance_TransferFailureKeepsPool(t *testing.T) {
	store := memory.New(defaultCreationFee, defaultTransmissionFee)
	ledger := treasury.NewLedger(testLogger)
	svc := service.New(store, ledger, service.OpenAccess{}, testLogger)
	ctx := context.Background()

	require.NoError(t, svc.CreateMetered(ctx, "alice", "a", "loc", "temp", 300))

	boom := errors.New("settlement unavailable")
	broken := service.New(store, failingPayer{err: boom}, service.OpenAccess{}, testLogger)
	assert.ErrorIs(t, broken.WithdrawPooledBalance(ctx, "anyone", "vault"), boom)

	// Pool survives the failed transfer and remains sweepable.
	require.NoError(t, svc.WithdrawPooledBalance(ctx, "anyone", "vault"))
	assert.Equal(t, uint64(300), ledger.Credited("vault"))
}

// =================================================================
// RecordTransmission
// =================================================================

func TestRecordTransmission_AccruesBalance(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Create(ctx, "s1", "room1", "temp"))
	require.NoError(t, f.svc.RecordTransmission(ctx, "s1", defaultTransmissionFee))
	require.NoError(t, f.svc.RecordTransmission(ctx, "s1", defaultTransmissionFee+5))

	require.NoError(t, f.svc.WithdrawRecordFees(ctx, "s1", "owner"))
	assert.Equal(t, uint64(2*defaultTransmissionFee+5), f.ledger.Credited("owner"))
}

func TestRecordTransmission_NotFound(t *testing.T) {
	f := open(t)
	err := f.svc.RecordTransmission(context.Background(), "ghost", defaultTransmissionFee)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestRecordTransmission_InsufficientPayment(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Create(ctx, "s1", "room1", "temp"))
	err := f.svc.RecordTransmission(ctx, "s1", defaultTransmissionFee-1)
	assert.ErrorIs(t, err, service.ErrInsufficientPayment)

	// A rejected submission accrues nothing.
	err = f.svc.WithdrawRecordFees(ctx, "s1", "owner")
	assert.ErrorIs(t, err, service.ErrNoFunds)
}

func TestRecordTransmission_CounterWrapsAtTen(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Create(ctx, "s1", "room1", "temp"))
	for i := 0; i < 10; i++ {
		require.NoError(t, f.svc.RecordTransmission(ctx, "s1", defaultTransmissionFee))
	}

	// The counter wrapped to zero after the 10th submission; the balance
	// still holds all ten payments.
	require.NoError(t, f.svc.WithdrawRecordFees(ctx, "s1", "owner"))
	assert.Equal(t, uint64(10*defaultTransmissionFee), f.ledger.Credited("owner"))

	// The 11th submission behaves like a fresh first one.
	require.NoError(t, f.svc.RecordTransmission(ctx, "s1", defaultTransmissionFee))
}

// =================================================================
// WithdrawRecordFees
// =================================================================

func TestWithdrawRecordFees_ZeroesBalance(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Create(ctx, "s1", "room1", "temp"))
	require.NoError(t, f.svc.RecordTransmission(ctx, "s1", 40))

	require.NoError(t, f.svc.WithdrawRecordFees(ctx, "s1", "owner"))
	assert.Equal(t, uint64(40), f.ledger.Credited("owner"))

	err := f.svc.WithdrawRecordFees(ctx, "s1", "owner")
	assert.ErrorIs(t, err, service.ErrNoFunds)
}

func TestWithdrawRecordFees_NotFound(t *testing.T) {
	f := open(t)
	err := f.svc.WithdrawRecordFees(context.Background(), "ghost", "owner")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestWithdrawRecordFees_TransferFailureKeepsBalance(t *testing.T) {
	store := memory.New(defaultCreationFee, defaultTransmissionFee)
	ledger := treasury.NewLedger(testLogger)
	svc := service.New(store, ledger, service.OpenAccess{}, testLogger)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, "s1", "room1", "temp"))
	require.NoError(t, svc.RecordTransmission(ctx, "s1", 40))

	boom := errors.New("settlement unavailable")
	broken := service.New(store, failingPayer{err: boom}, service.OpenAccess{}, testLogger)
	assert.ErrorIs(t, broken.WithdrawRecordFees(ctx, "s1", "owner"), boom)

	require.NoError(t, svc.WithdrawRecordFees(ctx, "s1", "owner"))
	assert.Equal(t, uint64(40), ledger.Credited("owner"))
}

// =================================================================
// End-to-end scenario
// =================================================================

func TestScenario_RegisterReadUpdateMeterWithdraw(t *testing.T) {
	f := open(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Create(ctx, "s1", "room1", "temp"))

	sensor, err := f.svc.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.Sensor{
		ID: "s1", Location: "room1", Category: "temp",
		Reading: "", CreatedAt: sensor.CreatedAt,
	}, sensor)

	require.NoError(t, f.svc.UpdateReading(ctx, "s1", "22.5"))
	sensor, err = f.svc.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "22.5", sensor.Reading)

	fees, err := f.svc.Fees(ctx)
	require.NoError(t, err)
	require.NoError(t, f.svc.RecordTransmission(ctx, "s1", fees.Transmission))

	require.NoError(t, f.svc.WithdrawRecordFees(ctx, "s1", "addr"))
	assert.Equal(t, fees.Transmission, f.ledger.Credited("addr"))

	err = f.svc.WithdrawRecordFees(ctx, "s1", "addr")
	assert.ErrorIs(t, err, service.ErrNoFunds)
}
