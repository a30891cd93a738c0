package domain

import "context"

// TransferRecord tracks the last completed transfer per (token, holder)
// pair. It is the only state backing the cooldown check and is updated
// exactly once per completed transfer, after validation succeeds.
type TransferRecord struct {
	TokenID        string
	Holder         string
	LastTransferAt int64
	TransferCount  uint64
}

type TransferRepository interface {
	GetTransferRecord(ctx context.Context, tokenID, holder string) (*TransferRecord, error)
	RecordTransfer(ctx context.Context, tokenID, holder string, at int64) error
	Close()
}
