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

const consensusColumns = `id, subject, type, data, status, attestations,
result, signers, created_at, resolved_at`

type consensusRepository struct {
	db *sql.DB
}

func NewConsensusRepository(config ...interface{}) (domain.ConsensusRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open consensus repository: invalid config")
	}
	return &consensusRepository{db}, nil
}

func (r *consensusRepository) AddQuery(ctx context.Context, query domain.ConsensusQuery) error {
	attestations, err := json.Marshal(query.Attestations)
	if err != nil {
		return fmt.Errorf("failed to serialize attestations: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO consensus_query (`+consensusColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			attestations = EXCLUDED.attestations,
			result = EXCLUDED.result,
			signers = EXCLUDED.signers,
			resolved_at = EXCLUDED.resolved_at`,
		query.ID, query.Subject, query.Type, query.Data, query.Status,
		attestations, query.Result, pq.Array(query.Signers),
		query.CreatedAt, query.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store consensus query: %w", err)
	}
	return nil
}

func (r *consensusRepository) GetQuery(
	ctx context.Context, id string,
) (*domain.ConsensusQuery, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+consensusColumns+` FROM consensus_query WHERE id = $1`, id,
	)
	query, err := scanQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return query, nil
}

func (r *consensusRepository) GetLatestResolved(
	ctx context.Context, subject string, queryType domain.QueryType,
) (*domain.ConsensusQuery, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+consensusColumns+` FROM consensus_query
		WHERE subject = $1 AND type = $2 AND status = $3
		ORDER BY resolved_at DESC LIMIT 1`,
		subject, queryType, domain.QueryStatusResolved,
	)
	query, err := scanQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return query, nil
}

func (r *consensusRepository) GetResolvedQueries(
	ctx context.Context, after, before int64,
) ([]domain.ConsensusQuery, error) {
	if after < 0 || before < 0 {
		return nil, fmt.Errorf("after and before must be greater than or equal to 0")
	}
	if before > 0 && after > 0 && before <= after {
		return nil, fmt.Errorf("before must be greater than after")
	}

	sqlQuery := `SELECT ` + consensusColumns + ` FROM consensus_query
		WHERE status = $1 AND resolved_at >= $2`
	args := []any{domain.QueryStatusResolved, after}
	if before > 0 {
		sqlQuery += ` AND resolved_at <= $3`
		args = append(args, before)
	}
	sqlQuery += ` ORDER BY resolved_at ASC`

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	// nolint
	defer rows.Close()

	queries := make([]domain.ConsensusQuery, 0)
	for rows.Next() {
		query, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, *query)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return queries, nil
}

func (r *consensusRepository) Close() {
	// nolint:all
	r.db.Close()
}

func scanQuery(row rowScanner) (*domain.ConsensusQuery, error) {
	var query domain.ConsensusQuery
	var attestations []byte
	var signers pq.StringArray
	if err := row.Scan(
		&query.ID, &query.Subject, &query.Type, &query.Data, &query.Status,
		&attestations, &query.Result, &signers, &query.CreatedAt, &query.ResolvedAt,
	); err != nil {
		return nil, err
	}
	query.Signers = signers
	if len(attestations) > 0 {
		if err := json.Unmarshal(attestations, &query.Attestations); err != nil {
			return nil, fmt.Errorf("failed to deserialize attestations: %w", err)
		}
	}
	return &query, nil
}
