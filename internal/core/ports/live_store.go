package ports

import (
	"context"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

type LiveStore interface {
	ConsensusSessions() ConsensusSessionsStore
}

// ConsensusSessionsStore holds the open consensus queries while they are
// still collecting attestations. Resolved queries move to the consensus
// repository and are removed from the live store.
type ConsensusSessionsStore interface {
	Open(ctx context.Context, query domain.ConsensusQuery) error
	Get(ctx context.Context, queryID string) (*domain.ConsensusQuery, error)
	// GetOpen returns the open query for the (subject, type) pair, or nil
	// when none is collecting.
	GetOpen(ctx context.Context, subject string, queryType domain.QueryType) (*domain.ConsensusQuery, error)
	GetAllOpen(ctx context.Context) ([]domain.ConsensusQuery, error)
	// RecordAttestation stores or replaces the oracle's attestation for
	// the query.
	RecordAttestation(ctx context.Context, queryID string, attestation domain.Attestation) error
	Delete(ctx context.Context, queryID string) error
}
