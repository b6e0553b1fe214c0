package repository

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("sensor not found")

type Sensor struct {
	ID        string
	Location  string
	Category  string
	Reading   string
	CreatedAt time.Time
}

// Tx is the transactional view handed to an Atomic callback. Reads observe
// writes made earlier in the same callback.
type Tx interface {
	GetSensor(ctx context.Context, id string) (Sensor, error)
	InsertSensor(ctx context.Context, s Sensor) error
	SetReading(ctx context.Context, id, reading string) error

	CreationCount(ctx context.Context, caller string) (uint64, error)
	SetCreationCount(ctx context.Context, caller string, n uint64) error

	TransmissionCount(ctx context.Context, id string) (uint64, error)
	SetTransmissionCount(ctx context.Context, id string, n uint64) error

	FeeBalance(ctx context.Context, id string) (uint64, error)
	SetFeeBalance(ctx context.Context, id string, amount uint64) error

	CreationFee(ctx context.Context) (uint64, error)
	SetCreationFee(ctx context.Context, fee uint64) error
	TransmissionFee(ctx context.Context) (uint64, error)
	SetTransmissionFee(ctx context.Context, fee uint64) error

	PooledBalance(ctx context.Context) (uint64, error)
	SetPooledBalance(ctx context.Context, amount uint64) error
}

// Store serializes registry operations. fn either commits in full or leaves
// no trace; two callbacks never interleave.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}
