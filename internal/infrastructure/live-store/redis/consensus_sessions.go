package redislivestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
)

const (
	consensusKeyPrefix = "consensus:query:"
	consensusIdsKey    = "consensus:ids"
)

type consensusSessionsStore struct {
	rdb          *redis.Client
	numOfRetries int
	retryDelay   time.Duration
}

func NewConsensusSessionsStore(rdb *redis.Client, numOfRetries int) ports.ConsensusSessionsStore {
	return &consensusSessionsStore{
		rdb:          rdb,
		numOfRetries: numOfRetries,
		retryDelay:   10 * time.Millisecond,
	}
}

func (s *consensusSessionsStore) Open(ctx context.Context, query domain.ConsensusQuery) error {
	exists, err := s.rdb.SIsMember(ctx, consensusIdsKey, query.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to check existence of consensus query: %v", err)
	}
	if exists {
		return fmt.Errorf("duplicated consensus query %s", query.ID)
	}

	buf, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to serialize consensus query: %v", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, consensusKeyPrefix+query.ID, buf, 0)
		pipe.SAdd(ctx, consensusIdsKey, query.ID)
		return nil
	})
	return err
}

func (s *consensusSessionsStore) Get(
	ctx context.Context, queryID string,
) (*domain.ConsensusQuery, error) {
	buf, err := s.rdb.Get(ctx, consensusKeyPrefix+queryID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get consensus query: %v", err)
	}

	var query domain.ConsensusQuery
	if err := json.Unmarshal(buf, &query); err != nil {
		return nil, fmt.Errorf("failed to deserialize consensus query: %v", err)
	}
	return &query, nil
}

func (s *consensusSessionsStore) GetOpen(
	ctx context.Context, subject string, queryType domain.QueryType,
) (*domain.ConsensusQuery, error) {
	queries, err := s.GetAllOpen(ctx)
	if err != nil {
		return nil, err
	}
	for i := range queries {
		if queries[i].Subject == subject && queries[i].Type == queryType {
			return &queries[i], nil
		}
	}
	return nil, nil
}

func (s *consensusSessionsStore) GetAllOpen(ctx context.Context) ([]domain.ConsensusQuery, error) {
	ids, err := s.rdb.SMembers(ctx, consensusIdsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get consensus query ids: %v", err)
	}

	queries := make([]domain.ConsensusQuery, 0, len(ids))
	for _, id := range ids {
		query, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if query == nil {
			continue
		}
		queries = append(queries, *query)
	}
	return queries, nil
}

func (s *consensusSessionsStore) RecordAttestation(
	ctx context.Context, queryID string, attestation domain.Attestation,
) error {
	key := consensusKeyPrefix + queryID
	var err error
	for range s.numOfRetries {
		err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			buf, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("consensus query %s not found", queryID)
			}
			if err != nil {
				return fmt.Errorf("failed to get consensus query: %v", err)
			}

			var query domain.ConsensusQuery
			if err := json.Unmarshal(buf, &query); err != nil {
				return fmt.Errorf("failed to deserialize consensus query: %v", err)
			}
			query.Record(attestation)

			updated, err := json.Marshal(query)
			if err != nil {
				return fmt.Errorf("failed to serialize consensus query: %v", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			return err
		}, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		time.Sleep(s.retryDelay)
	}
	return err
}

func (s *consensusSessionsStore) Delete(ctx context.Context, queryID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, consensusKeyPrefix+queryID)
		pipe.SRem(ctx, consensusIdsKey, queryID)
		return nil
	})
	return err
}

type liveStore struct {
	consensusSessions ports.ConsensusSessionsStore
}

func NewLiveStore(rdb *redis.Client, numOfRetries int) ports.LiveStore {
	return &liveStore{
		consensusSessions: NewConsensusSessionsStore(rdb, numOfRetries),
	}
}

func (s *liveStore) ConsensusSessions() ports.ConsensusSessionsStore {
	return s.consensusSessions
}
