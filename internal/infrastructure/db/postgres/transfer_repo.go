package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

type transferRepository struct {
	db *sql.DB
}

func NewTransferRepository(config ...interface{}) (domain.TransferRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open transfer repository: invalid config")
	}
	return &transferRepository{db}, nil
}

func (r *transferRepository) GetTransferRecord(
	ctx context.Context, tokenID, holder string,
) (*domain.TransferRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token_id, holder, last_transfer_at, transfer_count
		FROM transfer_record WHERE token_id = $1 AND holder = $2`,
		tokenID, holder,
	)

	var record domain.TransferRecord
	var count int64
	err := row.Scan(&record.TokenID, &record.Holder, &record.LastTransferAt, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record.TransferCount = uint64(count)
	return &record, nil
}

func (r *transferRepository) RecordTransfer(
	ctx context.Context, tokenID, holder string, at int64,
) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transfer_record (token_id, holder, last_transfer_at, transfer_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (token_id, holder) DO UPDATE SET
			last_transfer_at = EXCLUDED.last_transfer_at,
			transfer_count = transfer_record.transfer_count + 1`,
		tokenID, holder, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	return nil
}

func (r *transferRepository) Close() {
	// nolint:all
	r.db.Close()
}
