package domain

import "context"

type UtxoRepository interface {
	// NextCounter returns a fresh monotonic value used to derive UTXO ids.
	NextCounter(ctx context.Context) (uint64, error)
	AddUtxo(ctx context.Context, utxo UTXO) error
	GetUtxo(ctx context.Context, id string) (*UTXO, error)
	GetUtxos(ctx context.Context, ids []string) ([]UTXO, error)
	GetUtxosByOwner(ctx context.Context, owner string) ([]UTXO, error)
	GetUnspentUtxosByToken(ctx context.Context, tokenID string) ([]UTXO, error)
	SpendUtxo(ctx context.Context, id, txHash string) error
	UpdateComplianceHash(ctx context.Context, id, newHash string, validatedAt int64) error
	SetLastValidation(ctx context.Context, id string, validation ComplianceValidation) error
	Close()
}
