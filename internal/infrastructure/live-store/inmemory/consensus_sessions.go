package inmemorylivestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
)

type consensusSessionsStore struct {
	lock    sync.RWMutex
	queries map[string]*domain.ConsensusQuery
}

func NewConsensusSessionsStore() ports.ConsensusSessionsStore {
	return &consensusSessionsStore{
		queries: make(map[string]*domain.ConsensusQuery),
	}
}

func (s *consensusSessionsStore) Open(_ context.Context, query domain.ConsensusQuery) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.queries[query.ID]; ok {
		return fmt.Errorf("duplicated consensus query %s", query.ID)
	}
	s.queries[query.ID] = &query
	return nil
}

func (s *consensusSessionsStore) Get(
	_ context.Context, queryID string,
) (*domain.ConsensusQuery, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	query, ok := s.queries[queryID]
	if !ok {
		return nil, nil
	}
	copied := *query
	return &copied, nil
}

func (s *consensusSessionsStore) GetOpen(
	_ context.Context, subject string, queryType domain.QueryType,
) (*domain.ConsensusQuery, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	for _, query := range s.queries {
		if query.Subject == subject && query.Type == queryType {
			copied := *query
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *consensusSessionsStore) GetAllOpen(_ context.Context) ([]domain.ConsensusQuery, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	queries := make([]domain.ConsensusQuery, 0, len(s.queries))
	for _, query := range s.queries {
		queries = append(queries, *query)
	}
	return queries, nil
}

func (s *consensusSessionsStore) RecordAttestation(
	_ context.Context, queryID string, attestation domain.Attestation,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	query, ok := s.queries[queryID]
	if !ok {
		return fmt.Errorf("consensus query %s not found", queryID)
	}
	query.Record(attestation)
	return nil
}

func (s *consensusSessionsStore) Delete(_ context.Context, queryID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.queries, queryID)
	return nil
}

type liveStore struct {
	consensusSessions ports.ConsensusSessionsStore
}

func NewLiveStore() ports.LiveStore {
	return &liveStore{
		consensusSessions: NewConsensusSessionsStore(),
	}
}

func (s *liveStore) ConsensusSessions() ports.ConsensusSessionsStore {
	return s.consensusSessions
}
