package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

const consensusStoreDir = "consensus"

type consensusRepository struct {
	store *badgerhold.Store
}

func NewConsensusRepository(config ...interface{}) (domain.ConsensusRepository, error) {
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
		dir = filepath.Join(baseDir, consensusStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open consensus store: %s", err)
	}

	return &consensusRepository{store}, nil
}

func (r *consensusRepository) AddQuery(ctx context.Context, query domain.ConsensusQuery) error {
	if err := r.store.Upsert(query.ID, &query); err != nil {
		return fmt.Errorf("failed to store consensus query: %w", err)
	}
	return nil
}

func (r *consensusRepository) GetQuery(
	ctx context.Context, id string,
) (*domain.ConsensusQuery, error) {
	var query domain.ConsensusQuery
	err := r.store.Get(id, &query)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &query, nil
}

func (r *consensusRepository) GetLatestResolved(
	ctx context.Context, subject string, queryType domain.QueryType,
) (*domain.ConsensusQuery, error) {
	queries, err := r.findQueries(
		badgerhold.Where("Subject").Eq(subject).
			And("Type").Eq(queryType).
			And("Status").Eq(domain.QueryStatusResolved),
	)
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, nil
	}
	latest := queries[0]
	for _, query := range queries[1:] {
		if query.ResolvedAt > latest.ResolvedAt {
			latest = query
		}
	}
	return &latest, nil
}

func (r *consensusRepository) GetResolvedQueries(
	ctx context.Context, after, before int64,
) ([]domain.ConsensusQuery, error) {
	if after < 0 || before < 0 {
		return nil, fmt.Errorf("after and before must be greater than or equal to 0")
	}
	if before > 0 && after > 0 && before <= after {
		return nil, fmt.Errorf("before must be greater than after")
	}
	query := badgerhold.Where("Status").Eq(domain.QueryStatusResolved).
		And("ResolvedAt").Ge(after)
	if before > 0 {
		query = query.And("ResolvedAt").Le(before)
	}
	queries, err := r.findQueries(query)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(queries, func(i, j int) bool {
		return queries[i].ResolvedAt < queries[j].ResolvedAt
	})
	return queries, nil
}

func (r *consensusRepository) Close() {
	// nolint:all
	r.store.Close()
}

func (r *consensusRepository) findQueries(
	query *badgerhold.Query,
) ([]domain.ConsensusQuery, error) {
	var queries []domain.ConsensusQuery
	if err := r.store.Find(&queries, query); err != nil {
		return nil, err
	}
	return queries, nil
}
