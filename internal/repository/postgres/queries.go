package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/sensornet/registry/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS sensors (
    id          text PRIMARY KEY,
    location    text NOT NULL,
    category    text NOT NULL,
    reading     text NOT NULL DEFAULT '',
    created_at  timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS creation_counts (
    caller  text PRIMARY KEY,
    n       bigint NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS transmission_counts (
    sensor_id  text PRIMARY KEY,
    n          bigint NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fee_balances (
    sensor_id  text PRIMARY KEY,
    amount     bigint NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS registry_config (
    onerow            bool PRIMARY KEY DEFAULT true,
    creation_fee      bigint NOT NULL,
    transmission_fee  bigint NOT NULL,
    pooled_balance    bigint NOT NULL DEFAULT 0,
    CONSTRAINT onerow_only CHECK (onerow)
);
`

const seedConfig = `-- name: SeedConfig :exec
INSERT INTO registry_config (onerow, creation_fee, transmission_fee, pooled_balance)
VALUES (true, $1, $2, 0)
ON CONFLICT (onerow) DO NOTHING
`

type pgTx struct {
	tx pgx.Tx
}

const getSensor = `-- name: GetSensor :one
SELECT id, location, category, reading, created_at FROM sensors WHERE id = $1
`

func (t *pgTx) GetSensor(ctx context.Context, id string) (repository.Sensor, error) {
	var s repository.Sensor
	err := t.tx.QueryRow(ctx, getSensor, id).Scan(&s.ID, &s.Location, &s.Category, &s.Reading, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.Sensor{}, repository.ErrNotFound
	}
	return s, err
}

const insertSensor = `-- name: InsertSensor :exec
INSERT INTO sensors (id, location, category, reading, created_at)
VALUES ($1, $2, $3, $4, $5)
`

func (t *pgTx) InsertSensor(ctx context.Context, s repository.Sensor) error {
	_, err := t.tx.Exec(ctx, insertSensor, s.ID, s.Location, s.Category, s.Reading, s.CreatedAt)
	return err
}

const setReading = `-- name: SetReading :exec
UPDATE sensors SET reading = $2 WHERE id = $1
`

func (t *pgTx) SetReading(ctx context.Context, id, reading string) error {
	tag, err := t.tx.Exec(ctx, setReading, id, reading)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

const creationCount = `-- name: CreationCount :one
SELECT n FROM creation_counts WHERE caller = $1
`

func (t *pgTx) CreationCount(ctx context.Context, caller string) (uint64, error) {
	return t.scanCount(ctx, creationCount, caller)
}

const setCreationCount = `-- name: SetCreationCount :exec
INSERT INTO creation_counts (caller, n) VALUES ($1, $2)
ON CONFLICT (caller) DO UPDATE SET n = EXCLUDED.n
`

func (t *pgTx) SetCreationCount(ctx context.Context, caller string, n uint64) error {
	_, err := t.tx.Exec(ctx, setCreationCount, caller, int64(n))
	return err
}

const transmissionCount = `-- name: TransmissionCount :one
SELECT n FROM transmission_counts WHERE sensor_id = $1
`

func (t *pgTx) TransmissionCount(ctx context.Context, id string) (uint64, error) {
	return t.scanCount(ctx, transmissionCount, id)
}

const setTransmissionCount = `-- name: SetTransmissionCount :exec
INSERT INTO transmission_counts (sensor_id, n) VALUES ($1, $2)
ON CONFLICT (sensor_id) DO UPDATE SET n = EXCLUDED.n
`

func (t *pgTx) SetTransmissionCount(ctx context.Context, id string, n uint64) error {
	_, err := t.tx.Exec(ctx, setTransmissionCount, id, int64(n))
	return err
}

const feeBalance = `-- name: FeeBalance :one
SELECT amount FROM fee_balances WHERE sensor_id = $1
`

func (t *pgTx) FeeBalance(ctx context.Context, id string) (uint64, error) {
	return t.scanCount(ctx, feeBalance, id)
}

const setFeeBalance = `-- name: SetFeeBalance :exec
INSERT INTO fee_balances (sensor_id, amount) VALUES ($1, $2)
ON CONFLICT (sensor_id) DO UPDATE SET amount = EXCLUDED.amount
`

func (t *pgTx) SetFeeBalance(ctx context.Context, id string, amount uint64) error {
	_, err := t.tx.Exec(ctx, setFeeBalance, id, int64(amount))
	return err
}

const creationFee = `-- name: CreationFee :one
SELECT creation_fee FROM registry_config WHERE onerow
`

func (t *pgTx) CreationFee(ctx context.Context) (uint64, error) {
	return t.scanConfig(ctx, creationFee)
}

const setCreationFee = `-- name: SetCreationFee :exec
UPDATE registry_config SET creation_fee = $1 WHERE onerow
`

func (t *pgTx) SetCreationFee(ctx context.Context, fee uint64) error {
	_, err := t.tx.Exec(ctx, setCreationFee, int64(fee))
	return err
}

const transmissionFee = `-- name: TransmissionFee :one
SELECT transmission_fee FROM registry_config WHERE onerow
`

func (t *pgTx) TransmissionFee(ctx context.Context) (uint64, error) {
	return t.scanConfig(ctx, transmissionFee)
}

const setTransmissionFee = `-- name: SetTransmissionFee :exec
UPDATE registry_config SET transmission_fee = $1 WHERE onerow
`

func (t *pgTx) SetTransmissionFee(ctx context.Context, fee uint64) error {
	_, err := t.tx.Exec(ctx, setTransmissionFee, int64(fee))
	return err
}

const pooledBalance = `-- name: PooledBalance :one
SELECT pooled_balance FROM registry_config WHERE onerow
`

func (t *pgTx) PooledBalance(ctx context.Context) (uint64, error) {
	return t.scanConfig(ctx, pooledBalance)
}

const setPooledBalance = `-- name: SetPooledBalance :exec
UPDATE registry_config SET pooled_balance = $1 WHERE onerow
`

func (t *pgTx) SetPooledBalance(ctx context.Context, amount uint64) error {
	_, err := t.tx.Exec(ctx, setPooledBalance, int64(amount))
	return err
}

// scanCount reads a single bigint counter, defaulting to zero when the key
// has no row yet.
func (t *pgTx) scanCount(ctx context.Context, query, key string) (uint64, error) {
	var n int64
	err := t.tx.QueryRow(ctx, query, key).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func (t *pgTx) scanConfig(ctx context.Context, query string) (uint64, error) {
	var n int64
	err := t.tx.QueryRow(ctx, query).Scan(&n)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}
