package domain

import "context"

type RuleRepository interface {
	SetTokenRules(ctx context.Context, rules TokenRules) error
	GetTokenRules(ctx context.Context, tokenID string) (*TokenRules, error)
	AddTrustedContract(ctx context.Context, contract string) error
	RemoveTrustedContract(ctx context.Context, contract string) error
	IsTrustedContract(ctx context.Context, contract string) (bool, error)
	GetTrustedContracts(ctx context.Context) ([]string, error)
	Close()
}
