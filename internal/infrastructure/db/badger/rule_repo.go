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

const (
	ruleStoreDir       = "rules"
	trustedContractKey = "trusted:"
)

type ruleRepository struct {
	store *badgerhold.Store
}

type trustedContractDTO struct {
	Contract string
	AddedAt  int64
}

func NewRuleRepository(config ...interface{}) (domain.RuleRepository, error) {
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
		dir = filepath.Join(baseDir, ruleStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule store: %s", err)
	}

	return &ruleRepository{store}, nil
}

func (r *ruleRepository) SetTokenRules(ctx context.Context, rules domain.TokenRules) error {
	if err := r.store.Upsert(rules.TokenID, &rules); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			attempts := 1
			for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
				time.Sleep(100 * time.Millisecond)
				err = r.store.Upsert(rules.TokenID, &rules)
				attempts++
			}
		}
		return err
	}
	return nil
}

func (r *ruleRepository) GetTokenRules(
	ctx context.Context, tokenID string,
) (*domain.TokenRules, error) {
	var rules domain.TokenRules
	err := r.store.Get(tokenID, &rules)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rules, nil
}

func (r *ruleRepository) AddTrustedContract(ctx context.Context, contract string) error {
	dto := trustedContractDTO{Contract: contract, AddedAt: time.Now().Unix()}
	err := r.store.Upsert(trustedContractKey+contract, &dto)
	if err != nil {
		return fmt.Errorf("failed to add trusted contract: %w", err)
	}
	return nil
}

func (r *ruleRepository) RemoveTrustedContract(ctx context.Context, contract string) error {
	var dto trustedContractDTO
	if err := r.store.Delete(trustedContractKey+contract, &dto); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (r *ruleRepository) IsTrustedContract(ctx context.Context, contract string) (bool, error) {
	var dto trustedContractDTO
	err := r.store.Get(trustedContractKey+contract, &dto)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ruleRepository) GetTrustedContracts(ctx context.Context) ([]string, error) {
	var dtos []trustedContractDTO
	if err := r.store.Find(&dtos, &badgerhold.Query{}); err != nil {
		return nil, err
	}
	contracts := make([]string, 0, len(dtos))
	for _, dto := range dtos {
		contracts = append(contracts, dto.Contract)
	}
	return contracts, nil
}

func (r *ruleRepository) Close() {
	// nolint:all
	r.store.Close()
}
