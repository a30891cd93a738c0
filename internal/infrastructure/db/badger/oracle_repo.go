package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

const oracleStoreDir = "oracles"

type oracleRepository struct {
	store *badgerhold.Store
}

func NewOracleRepository(config ...interface{}) (domain.OracleRepository, error) {
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
		dir = filepath.Join(baseDir, oracleStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open oracle store: %s", err)
	}

	return &oracleRepository{store}, nil
}

func (r *oracleRepository) AddOracle(ctx context.Context, oracle domain.Oracle) error {
	if err := r.store.Insert(oracle.ID, &oracle); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("oracle %s already exists", oracle.ID)
		}
		return err
	}
	return nil
}

func (r *oracleRepository) RemoveOracle(ctx context.Context, id string) error {
	var oracle domain.Oracle
	if err := r.store.Delete(id, &oracle); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (r *oracleRepository) GetOracle(ctx context.Context, id string) (*domain.Oracle, error) {
	var oracle domain.Oracle
	err := r.store.Get(id, &oracle)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &oracle, nil
}

func (r *oracleRepository) GetAllOracles(ctx context.Context) ([]domain.Oracle, error) {
	return r.findOracles(&badgerhold.Query{})
}

func (r *oracleRepository) GetActiveOracles(ctx context.Context) ([]domain.Oracle, error) {
	return r.findOracles(badgerhold.Where("Active").Eq(true))
}

func (r *oracleRepository) UpdateOracle(ctx context.Context, oracle domain.Oracle) error {
	var err error
	for range maxRetries {
		err = r.store.Update(oracle.ID, &oracle)
		if err == nil {
			return nil
		}
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("oracle %s not found", oracle.ID)
		}
		if errors.Is(err, badger.ErrConflict) {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		return err
	}
	return err
}

func (r *oracleRepository) Close() {
	// nolint:all
	r.store.Close()
}

func (r *oracleRepository) findOracles(query *badgerhold.Query) ([]domain.Oracle, error) {
	var oracles []domain.Oracle
	if err := r.store.Find(&oracles, query); err != nil {
		return nil, err
	}
	sort.SliceStable(oracles, func(i, j int) bool {
		return oracles[i].RegisteredAt < oracles[j].RegisteredAt
	})
	return oracles, nil
}
