package domain

import "context"

type OracleRepository interface {
	AddOracle(ctx context.Context, oracle Oracle) error
	RemoveOracle(ctx context.Context, id string) error
	GetOracle(ctx context.Context, id string) (*Oracle, error)
	GetAllOracles(ctx context.Context) ([]Oracle, error)
	GetActiveOracles(ctx context.Context) ([]Oracle, error)
	UpdateOracle(ctx context.Context, oracle Oracle) error
	Close()
}
