// Package memory implements the registry store on in-process maps. A single
// mutex serializes atomic units; the callback runs against a copy of the
// state, which replaces the live state only when the callback succeeds.
package memory

import (
	"context"
	"sync"

	"github.com/sensornet/registry/internal/repository"
)

type state struct {
	sensors            map[string]repository.Sensor
	creationCounts     map[string]uint64
	transmissionCounts map[string]uint64
	feeBalances        map[string]uint64
	creationFee        uint64
	transmissionFee    uint64
	pooledBalance      uint64
}

func (s state) clone() state {
	c := s
	c.sensors = make(map[string]repository.Sensor, len(s.sensors))
	for k, v := range s.sensors {
		c.sensors[k] = v
	}
	c.creationCounts = cloneCounts(s.creationCounts)
	c.transmissionCounts = cloneCounts(s.transmissionCounts)
	c.feeBalances = cloneCounts(s.feeBalances)
	return c
}

func cloneCounts(m map[string]uint64) map[string]uint64 {
	c := make(map[string]uint64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st state
}

func New(creationFee, transmissionFee uint64) *Store {
	return &Store{
		st: state{
			sensors:            make(map[string]repository.Sensor),
			creationCounts:     make(map[string]uint64),
			transmissionCounts: make(map[string]uint64),
			feeBalances:        make(map[string]uint64),
			creationFee:        creationFee,
			transmissionFee:    transmissionFee,
		},
	}
}

func (s *Store) Atomic(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&memTx{st: &work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

type memTx struct {
	st *state
}

func (t *memTx) GetSensor(_ context.Context, id string) (repository.Sensor, error) {
	sensor, ok := t.st.sensors[id]
	if !ok {
		return repository.Sensor{}, repository.ErrNotFound
	}
	return sensor, nil
}

func (t *memTx) InsertSensor(_ context.Context, sensor repository.Sensor) error {
	t.st.sensors[sensor.ID] = sensor
	return nil
}

func (t *memTx) SetReading(_ context.Context, id, reading string) error {
	sensor, ok := t.st.sensors[id]
	if !ok {
		return repository.ErrNotFound
	}
	sensor.Reading = reading
	t.st.sensors[id] = sensor
	return nil
}

func (t *memTx) CreationCount(_ context.Context, caller string) (uint64, error) {
	return t.st.creationCounts[caller], nil
}

func (t *memTx) SetCreationCount(_ context.Context, caller string, n uint64) error {
	t.st.creationCounts[caller] = n
	return nil
}

func (t *memTx) TransmissionCount(_ context.Context, id string) (uint64, error) {
	return t.st.transmissionCounts[id], nil
}

func (t *memTx) SetTransmissionCount(_ context.Context, id string, n uint64) error {
	t.st.transmissionCounts[id] = n
	return nil
}

func (t *memTx) FeeBalance(_ context.Context, id string) (uint64, error) {
	return t.st.feeBalances[id], nil
}

func (t *memTx) SetFeeBalance(_ context.Context, id string, amount uint64) error {
	t.st.feeBalances[id] = amount
	return nil
}

func (t *memTx) CreationFee(_ context.Context) (uint64, error) {
	return t.st.creationFee, nil
}

func (t *memTx) SetCreationFee(_ context.Context, fee uint64) error {
	t.st.creationFee = fee
	return nil
}

func (t *memTx) TransmissionFee(_ context.Context) (uint64, error) {
	return t.st.transmissionFee, nil
}

func (t *memTx) SetTransmissionFee(_ context.Context, fee uint64) error {
	t.st.transmissionFee = fee
	return nil
}

func (t *memTx) PooledBalance(_ context.Context) (uint64, error) {
	return t.st.pooledBalance, nil
}

func (t *memTx) SetPooledBalance(_ context.Context, amount uint64) error {
	t.st.pooledBalance = amount
	return nil
}
