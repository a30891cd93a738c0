package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

const circuitStoreDir = "circuits"

type circuitRepository struct {
	store *badgerhold.Store
}

func NewCircuitRepository(config ...interface{}) (domain.CircuitRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, circuitStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open circuit store: %s", err)
	}

	return &circuitRepository{store}, nil
}

func (r *circuitRepository) SetCircuit(ctx context.Context, circuit domain.Circuit) error {
	if err := r.store.Upsert(string(circuit.ID), &circuit); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			attempts := 1
			for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
				time.Sleep(100 * time.Millisecond)
				err = r.store.Upsert(string(circuit.ID), &circuit)
				attempts++
			}
		}
		return err
	}
	return nil
}

func (r *circuitRepository) GetCircuit(
	ctx context.Context, id domain.CircuitID,
) (*domain.Circuit, error) {
	var circuit domain.Circuit
	err := r.store.Get(string(id), &circuit)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &circuit, nil
}

func (r *circuitRepository) GetAllCircuits(ctx context.Context) ([]domain.Circuit, error) {
	var circuits []domain.Circuit
	if err := r.store.Find(&circuits, &badgerhold.Query{}); err != nil {
		return nil, err
	}
	return circuits, nil
}

func (r *circuitRepository) IncrementCounters(
	ctx context.Context, id domain.CircuitID, valid bool,
) error {
	var err error
	for range maxRetries {
		err = func() error {
			var circuit domain.Circuit
			if err := r.store.Get(string(id), &circuit); err != nil {
				if errors.Is(err, badgerhold.ErrNotFound) {
					return fmt.Errorf("circuit %s not found", id)
				}
				return err
			}
			circuit.TotalVerified++
			if valid {
				circuit.TotalValid++
			}
			return r.store.Update(string(id), &circuit)
		}()
		if err == nil {
			return nil
		}
		if errors.Is(err, badger.ErrConflict) {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		return err
	}
	return err
}

func (r *circuitRepository) Close() {
	// nolint:all
	r.store.Close()
}
