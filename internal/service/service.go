package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sensornet/registry/internal/models"
	"github.com/sensornet/registry/internal/repository"
	"github.com/sensornet/registry/internal/treasury"
)

// freeCreations is the per-caller quota of metered creations that require
// no payment. The creation fee applies from the fourth creation onward.
const freeCreations = 3

// transmissionWindow is the ring size of the per-sensor transmission
// counter: reaching it wraps the counter back to zero.
const transmissionWindow = 10

type Service struct {
	store  repository.Store
	payer  treasury.Payer
	auth   Authorizer
	logger *slog.Logger
	now    func() time.Time
}

func New(store repository.Store, payer treasury.Payer, auth Authorizer, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		payer:  payer,
		auth:   auth,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a sensor with an empty reading. No payment required.
func (s *Service) Create(ctx context.Context, id, location, category string) error {
	if id == "" {
		return ErrEmptyID
	}
	err := s.store.Atomic(ctx, func(tx repository.Tx) error {
		if err := ensureAbsent(ctx, tx, id); err != nil {
			return err
		}
		return tx.InsertSensor(ctx, repository.Sensor{
			ID:        id,
			Location:  location,
			Category:  category,
			CreatedAt: s.now(),
		})
	})
	return s.logged(ctx, "create", err)
}

// Get returns the stored sensor, including its latest reading.
func (s *Service) Get(ctx context.Context, id string) (models.Sensor, error) {
	if id == "" {
		return models.Sensor{}, ErrEmptyID
	}
	var sensor models.Sensor
	err := s.store.Atomic(ctx, func(tx repository.Tx) error {
		row, err := tx.GetSensor(ctx, id)
		if err != nil {
			return err
		}
		sensor = models.Sensor{
			ID:        row.ID,
			Location:  row.Location,
			Category:  row.Category,
			Reading:   row.Reading,
			CreatedAt: row.CreatedAt,
		}
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return models.Sensor{}, ErrNotFound
	}
	return sensor, s.logged(ctx, "get", err)
}

// UpdateReading overwrites the sensor's reading. Only the latest value is
// kept.
func (s *Service) UpdateReading(ctx context.Context, id, reading string) error {
	if id == "" {
		return ErrEmptyID
	}
	err := s.store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.SetReading(ctx, id, reading)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return s.logged(ctx, "update reading", err)
}

// CreateMetered registers a sensor against the caller's creation quota. The
// first three creations per caller are free; afterwards payment must cover
// the creation fee. The full payment is retained in the pooled balance and
// the caller's counter always advances on success.
func (s *Service) CreateMetered(ctx context.Context, caller, id, location, category string, payment uint64) error {
	if caller == "" {
		return ErrEmptyCaller
	}
	if id == "" {
		return ErrEmptyID
	}
	err := s.store.Atomic(ctx, func(tx repository.Tx) error {
		if err := ensureAbsent(ctx, tx, id); err != nil {
			return err
		}

		count, err := tx.CreationCount(ctx, caller)
		if err != nil {
			return err
		}
		if count >= freeCreations {
			fee, err := tx.CreationFee(ctx)
			if err != nil {
				return err
			}
			if payment < fee {
				return ErrInsufficientPayment
			}
		}

		if err := tx.InsertSensor(ctx, repository.Sensor{
			ID:        id,
			Location:  location,
			Category:  category,
			CreatedAt: s.now(),
		}); err != nil {
			return err
		}
		if err := tx.SetCreationCount(ctx, caller, count+1); err != nil {
			return err
		}

		// The whole payment is pooled, free creations and overpayment
		// included. There is no refund path.
		pool, err := tx.PooledBalance(ctx)
		if err != nil {
			return err
		}
		return tx.SetPooledBalance(ctx, pool+payment)
	})
	return s.logged(ctx, "create metered", err)
}

// Fees returns the current global fee parameters.
func (s *Service) Fees(ctx context.Context) (models.Fees, error) {
	var fees models.Fees
	err := s.store.Atomic(ctx, func(tx repository.Tx) error {
		var err error
		if fees.Creation, err = tx.CreationFee(ctx); err != nil {
			return err
		}
		fees.Transmission, err = tx.TransmissionFee(ctx)
		return err
	})
	return fees, s.logged(ctx, "read fees", err)
}

// SetCreationFee overwrites the global creation fee.
func (s *Service) SetCreationFee(ctx context.Context, caller string, fee uint64) error {
	if !s.auth.Authorize(caller) {
		return ErrUnauthorized
	}
	err := s.store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.SetCreationFee(ctx, fee)
	})
	return s.logged(ctx, "set creation fee", err)
}

// SetTransmissionFee overwrites the global transmission fee.
func (s *Service) SetTransmissionFee(ctx context.Context, caller string, fee uint64) error {
	if !s.auth.Authorize(caller) {
		return ErrUnauthorized
	}
	err := s.store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.SetTransmissionFee(ctx, fee)
	})
	return s.logged(ctx, "set transmission fee", err)
}

// WithdrawPooledBalance sweeps the entire pooled balance to destination.
// A zero pool still succeeds; the transfer of zero is allowed.
func (s *Service) WithdrawPooledBalance(ctx context.Context, caller, destination string) error {
	if !s.auth.Authorize(caller) {
		return ErrUnauthorized
	}
	if destination == "" {
		return ErrEmptyDestination
	}
	err := s.store.Atomic(ctx, func(tx repository.Tx) error {
		pool, err := tx.PooledBalance(ctx)
		if err != nil {
			return err
		}
		if err := tx.SetPooledBalance(ctx, 0); err != nil {
			return err
		}
		txID, err := s.payer.Transfer(ctx, destination, pool)
		if err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "pooled balance withdrawn",
			slog.String("tx_id", txID),
			slog.Uint64("amount", pool),
		)
		return nil
	})
	return s.logged(ctx, "withdraw pooled balance", err)
}

// RecordTransmission meters one data submission for the sensor. The full
// payment accrues to the sensor's fee balance; the transmission counter
// wraps back to zero when it reaches the window size.
func (s *Service) RecordTransmission(ctx context.Context, id string, payment uint64) error {
	if id == "" {
		return ErrEmptyID
	}
	err := s.store.Atomic(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetSensor(ctx, id); err != nil {
			return err
		}

		fee, err := tx.TransmissionFee(ctx)
		if err != nil {
			return err
		}
		if payment < fee {
			return ErrInsufficientPayment
		}

		count, err := tx.TransmissionCount(ctx, id)
		if err != nil {
			return err
		}
		count++
		if count == transmissionWindow {
			count = 0
		}
		if err := tx.SetTransmissionCount(ctx, id, count); err != nil {
			return err
		}

		balance, err := tx.FeeBalance(ctx, id)
		if err != nil {
			return err
		}
		return tx.SetFeeBalance(ctx, id, balance+payment)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return s.logged(ctx, "record transmission", err)
}

// WithdrawRecordFees transfers the sensor's accumulated fee balance to
// destination and zeroes it. Withdrawing an empty balance is an error.
func (s *Service) WithdrawRecordFees(ctx context.Context, id, destination string) error {
	if id == "" {
		return ErrEmptyID
	}
	if destination == "" {
		return ErrEmptyDestination
	}
	err := s.store.Atomic(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetSensor(ctx, id); err != nil {
			return err
		}

		balance, err := tx.FeeBalance(ctx, id)
		if err != nil {
			return err
		}
		if balance == 0 {
			return ErrNoFunds
		}
		if err := tx.SetFeeBalance(ctx, id, 0); err != nil {
			return err
		}
		txID, err := s.payer.Transfer(ctx, destination, balance)
		if err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "record fees withdrawn",
			slog.String("tx_id", txID),
			slog.String("sensor_id", id),
			slog.Uint64("amount", balance),
		)
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return s.logged(ctx, "withdraw record fees", err)
}

// ensureAbsent converts a successful lookup into ErrAlreadyExists and lets
// ErrNotFound through as the non-error case.
func ensureAbsent(ctx context.Context, tx repository.Tx, id string) error {
	_, err := tx.GetSensor(ctx, id)
	if err == nil {
		return ErrAlreadyExists
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// logged reports unexpected store failures; domain errors pass through
// untouched.
func (s *Service) logged(ctx context.Context, op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	s.logger.ErrorContext(ctx, op+" failed", slog.String("error", err.Error()))
	return err
}

func isDomainError(err error) bool {
	for _, domain := range []error{
		ErrAlreadyExists, ErrNotFound, ErrInsufficientPayment,
		ErrNoFunds, ErrUnauthorized, ErrEmptyID, ErrEmptyCaller, ErrEmptyDestination,
	} {
		if errors.Is(err, domain) {
			return true
		}
	}
	return false
}
