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

const transferStoreDir = "transfers"

type transferRepository struct {
	store *badgerhold.Store
}

func NewTransferRepository(config ...interface{}) (domain.TransferRepository, error) {
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
		dir = filepath.Join(baseDir, transferStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open transfer store: %s", err)
	}

	return &transferRepository{store}, nil
}

func (r *transferRepository) GetTransferRecord(
	ctx context.Context, tokenID, holder string,
) (*domain.TransferRecord, error) {
	var record domain.TransferRecord
	err := r.store.Get(transferKey(tokenID, holder), &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *transferRepository) RecordTransfer(
	ctx context.Context, tokenID, holder string, at int64,
) error {
	var err error
	for range maxRetries {
		err = func() error {
			key := transferKey(tokenID, holder)
			var record domain.TransferRecord
			if err := r.store.Get(key, &record); err != nil {
				if !errors.Is(err, badgerhold.ErrNotFound) {
					return err
				}
				record = domain.TransferRecord{TokenID: tokenID, Holder: holder}
			}
			record.LastTransferAt = at
			record.TransferCount++
			return r.store.Upsert(key, &record)
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

func (r *transferRepository) Close() {
	// nolint:all
	r.store.Close()
}

func transferKey(tokenID, holder string) string {
	return fmt.Sprintf("%s:%s", tokenID, holder)
}
