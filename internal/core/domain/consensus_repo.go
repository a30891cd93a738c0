package domain

import "context"

type ConsensusRepository interface {
	AddQuery(ctx context.Context, query ConsensusQuery) error
	GetQuery(ctx context.Context, id string) (*ConsensusQuery, error)
	// GetLatestResolved returns the most recently resolved query for the
	// given subject and type, or nil when none exists.
	GetLatestResolved(ctx context.Context, subject string, queryType QueryType) (*ConsensusQuery, error)
	GetResolvedQueries(ctx context.Context, after, before int64) ([]ConsensusQuery, error)
	Close()
}
