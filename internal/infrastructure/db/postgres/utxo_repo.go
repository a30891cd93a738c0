package pgdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

const utxoColumns = `id, owner, value, commitment, token_id, identity, registries,
compliance_hash, whitelist_tier, jurisdiction_mask, expiry_height, required_claim_mask,
country_code, investor_type, whitelisted, blacklisted, blacklist_severity,
spent, spent_by, created_at, acquired_at, last_validated_at, last_validation`

type utxoRepository struct {
	db *sql.DB
}

func NewUtxoRepository(config ...interface{}) (domain.UtxoRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open utxo repository: invalid config")
	}
	return &utxoRepository{db}, nil
}

func (r *utxoRepository) NextCounter(ctx context.Context) (uint64, error) {
	var counter int64
	row := r.db.QueryRowContext(ctx, `SELECT nextval('utxo_counter_seq')`)
	if err := row.Scan(&counter); err != nil {
		return 0, fmt.Errorf("failed to advance utxo counter: %w", err)
	}
	return uint64(counter), nil
}

func (r *utxoRepository) AddUtxo(ctx context.Context, utxo domain.UTXO) error {
	registries, err := json.Marshal(utxo.Registries)
	if err != nil {
		return fmt.Errorf("failed to serialize registry refs: %w", err)
	}
	var lastValidation []byte
	if utxo.LastValidation != nil {
		lastValidation, err = json.Marshal(utxo.LastValidation)
		if err != nil {
			return fmt.Errorf("failed to serialize last validation: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO utxo (`+utxoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		utxo.ID, utxo.Owner, int64(utxo.Value), utxo.Commitment, utxo.TokenID,
		utxo.Identity, registries, utxo.ComplianceHash, utxo.WhitelistTier,
		int64(utxo.JurisdictionMask), int64(utxo.ExpiryHeight),
		int64(utxo.RequiredClaimMask), utxo.CountryCode, utxo.InvestorType,
		utxo.Whitelisted, utxo.Blacklisted, utxo.BlacklistSeverity,
		utxo.Spent, utxo.SpentBy, utxo.CreatedAt, utxo.AcquiredAt,
		utxo.LastValidatedAt, nullableBytes(lastValidation),
	)
	if err != nil {
		var pqErr *pq.Error
		// 23505: unique_violation
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("utxo %s already exists", utxo.ID)
		}
		return fmt.Errorf("failed to insert utxo: %w", err)
	}
	return nil
}

func (r *utxoRepository) GetUtxo(ctx context.Context, id string) (*domain.UTXO, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+utxoColumns+` FROM utxo WHERE id = $1`, id,
	)
	utxo, err := scanUtxo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return utxo, nil
}

func (r *utxoRepository) GetUtxos(ctx context.Context, ids []string) ([]domain.UTXO, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+utxoColumns+` FROM utxo WHERE id = ANY($1)`, pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	return collectUtxos(rows)
}

func (r *utxoRepository) GetUtxosByOwner(
	ctx context.Context, owner string,
) ([]domain.UTXO, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+utxoColumns+` FROM utxo WHERE owner = $1`, owner,
	)
	if err != nil {
		return nil, err
	}
	return collectUtxos(rows)
}

func (r *utxoRepository) GetUnspentUtxosByToken(
	ctx context.Context, tokenID string,
) ([]domain.UTXO, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+utxoColumns+` FROM utxo WHERE token_id = $1 AND spent = FALSE`, tokenID,
	)
	if err != nil {
		return nil, err
	}
	return collectUtxos(rows)
}

func (r *utxoRepository) SpendUtxo(ctx context.Context, id, txHash string) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE utxo SET spent = TRUE, spent_by = $2 WHERE id = $1`, id, txHash,
		)
		if err != nil {
			return err
		}
		return requireRow(res, id)
	})
}

func (r *utxoRepository) UpdateComplianceHash(
	ctx context.Context, id, newHash string, validatedAt int64,
) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE utxo SET compliance_hash = $2, last_validated_at = $3 WHERE id = $1`,
			id, newHash, validatedAt,
		)
		if err != nil {
			return err
		}
		return requireRow(res, id)
	})
}

func (r *utxoRepository) SetLastValidation(
	ctx context.Context, id string, validation domain.ComplianceValidation,
) error {
	buf, err := json.Marshal(validation)
	if err != nil {
		return fmt.Errorf("failed to serialize validation: %w", err)
	}
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE utxo SET last_validation = $2 WHERE id = $1`, id, buf,
		)
		if err != nil {
			return err
		}
		return requireRow(res, id)
	})
}

func (r *utxoRepository) Close() {
	// nolint:all
	r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUtxo(row rowScanner) (*domain.UTXO, error) {
	var utxo domain.UTXO
	var value, jurisdictionMask, expiryHeight, requiredClaimMask int64
	var registries, lastValidation []byte

	if err := row.Scan(
		&utxo.ID, &utxo.Owner, &value, &utxo.Commitment, &utxo.TokenID,
		&utxo.Identity, &registries, &utxo.ComplianceHash, &utxo.WhitelistTier,
		&jurisdictionMask, &expiryHeight, &requiredClaimMask,
		&utxo.CountryCode, &utxo.InvestorType, &utxo.Whitelisted,
		&utxo.Blacklisted, &utxo.BlacklistSeverity, &utxo.Spent, &utxo.SpentBy,
		&utxo.CreatedAt, &utxo.AcquiredAt, &utxo.LastValidatedAt, &lastValidation,
	); err != nil {
		return nil, err
	}

	utxo.Value = uint64(value)
	utxo.JurisdictionMask = uint64(jurisdictionMask)
	utxo.ExpiryHeight = uint64(expiryHeight)
	utxo.RequiredClaimMask = uint64(requiredClaimMask)
	if len(registries) > 0 {
		if err := json.Unmarshal(registries, &utxo.Registries); err != nil {
			return nil, fmt.Errorf("failed to deserialize registry refs: %w", err)
		}
	}
	if len(lastValidation) > 0 {
		var validation domain.ComplianceValidation
		if err := json.Unmarshal(lastValidation, &validation); err != nil {
			return nil, fmt.Errorf("failed to deserialize last validation: %w", err)
		}
		utxo.LastValidation = &validation
	}
	return &utxo, nil
}

func collectUtxos(rows *sql.Rows) ([]domain.UTXO, error) {
	// nolint
	defer rows.Close()
	utxos := make([]domain.UTXO, 0)
	for rows.Next() {
		utxo, err := scanUtxo(rows)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, *utxo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return utxos, nil
}

func requireRow(res sql.Result, id string) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("utxo %s not found", id)
	}
	return nil
}

func nullableBytes(buf []byte) any {
	if len(buf) == 0 {
		return nil
	}
	return buf
}
