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

const utxoStoreDir = "utxos"

var utxoCounterKey = []byte("utxo_counter")

type utxoRepository struct {
	store    *badgerhold.Store
	sequence *badger.Sequence
}

type utxoDTO struct {
	domain.UTXO
	UpdatedAt int64
}

func NewUtxoRepository(config ...interface{}) (domain.UtxoRepository, error) {
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
		dir = filepath.Join(baseDir, utxoStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open utxo store: %s", err)
	}
	sequence, err := store.Badger().GetSequence(utxoCounterKey, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to open utxo counter: %s", err)
	}

	return &utxoRepository{store, sequence}, nil
}

func (r *utxoRepository) NextCounter(ctx context.Context) (uint64, error) {
	return r.sequence.Next()
}

func (r *utxoRepository) AddUtxo(ctx context.Context, utxo domain.UTXO) error {
	dto := utxoDTO{UTXO: utxo, UpdatedAt: time.Now().UnixMilli()}
	if err := r.store.Insert(utxo.ID, dto); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("utxo %s already exists", utxo.ID)
		}
		return err
	}
	return nil
}

func (r *utxoRepository) GetUtxo(ctx context.Context, id string) (*domain.UTXO, error) {
	var dto utxoDTO
	err := r.store.Get(id, &dto)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dto.UTXO, nil
}

func (r *utxoRepository) GetUtxos(ctx context.Context, ids []string) ([]domain.UTXO, error) {
	utxos := make([]domain.UTXO, 0, len(ids))
	for _, id := range ids {
		utxo, err := r.GetUtxo(ctx, id)
		if err != nil {
			return nil, err
		}
		if utxo == nil {
			continue
		}
		utxos = append(utxos, *utxo)
	}
	return utxos, nil
}

func (r *utxoRepository) GetUtxosByOwner(ctx context.Context, owner string) ([]domain.UTXO, error) {
	return r.findUtxos(badgerhold.Where("Owner").Eq(owner))
}

func (r *utxoRepository) GetUnspentUtxosByToken(
	ctx context.Context, tokenID string,
) ([]domain.UTXO, error) {
	return r.findUtxos(badgerhold.Where("TokenID").Eq(tokenID).And("Spent").Eq(false))
}

func (r *utxoRepository) SpendUtxo(ctx context.Context, id, txHash string) error {
	return r.updateUtxo(id, func(utxo *domain.UTXO) {
		utxo.Spent = true
		utxo.SpentBy = txHash
	})
}

func (r *utxoRepository) UpdateComplianceHash(
	ctx context.Context, id, newHash string, validatedAt int64,
) error {
	return r.updateUtxo(id, func(utxo *domain.UTXO) {
		utxo.ComplianceHash = newHash
		utxo.LastValidatedAt = validatedAt
	})
}

func (r *utxoRepository) SetLastValidation(
	ctx context.Context, id string, validation domain.ComplianceValidation,
) error {
	return r.updateUtxo(id, func(utxo *domain.UTXO) {
		utxo.LastValidation = &validation
	})
}

func (r *utxoRepository) Close() {
	// nolint:all
	r.sequence.Release()
	// nolint:all
	r.store.Close()
}

func (r *utxoRepository) findUtxos(query *badgerhold.Query) ([]domain.UTXO, error) {
	var dtos []utxoDTO
	if err := r.store.Find(&dtos, query); err != nil {
		return nil, err
	}
	utxos := make([]domain.UTXO, 0, len(dtos))
	for _, dto := range dtos {
		utxos = append(utxos, dto.UTXO)
	}
	return utxos, nil
}

func (r *utxoRepository) updateUtxo(id string, apply func(*domain.UTXO)) error {
	var err error
	for range maxRetries {
		err = func() error {
			var dto utxoDTO
			if err := r.store.Get(id, &dto); err != nil {
				if errors.Is(err, badgerhold.ErrNotFound) {
					return fmt.Errorf("utxo %s not found", id)
				}
				return err
			}
			apply(&dto.UTXO)
			dto.UpdatedAt = time.Now().UnixMilli()
			return r.store.Update(id, dto)
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
