package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

const oracleColumns = `id, name, active, emergency, reputation,
attestations_submitted, attestations_agreed, registered_at`

type oracleRepository struct {
	db *sql.DB
}

func NewOracleRepository(config ...interface{}) (domain.OracleRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open oracle repository: invalid config")
	}
	return &oracleRepository{db}, nil
}

func (r *oracleRepository) AddOracle(ctx context.Context, oracle domain.Oracle) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oracle (`+oracleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		oracle.ID, oracle.Name, oracle.Active, oracle.Emergency,
		oracle.Reputation, int64(oracle.AttestationsSubmitted),
		int64(oracle.AttestationsAgreed), oracle.RegisteredAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("oracle %s already exists", oracle.ID)
		}
		return fmt.Errorf("failed to insert oracle: %w", err)
	}
	return nil
}

func (r *oracleRepository) RemoveOracle(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oracle WHERE id = $1`, id)
	return err
}

func (r *oracleRepository) GetOracle(ctx context.Context, id string) (*domain.Oracle, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+oracleColumns+` FROM oracle WHERE id = $1`, id,
	)
	oracle, err := scanOracle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return oracle, nil
}

func (r *oracleRepository) GetAllOracles(ctx context.Context) ([]domain.Oracle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+oracleColumns+` FROM oracle ORDER BY registered_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	return collectOracles(rows)
}

func (r *oracleRepository) GetActiveOracles(ctx context.Context) ([]domain.Oracle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+oracleColumns+` FROM oracle WHERE active = TRUE ORDER BY registered_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	return collectOracles(rows)
}

func (r *oracleRepository) UpdateOracle(ctx context.Context, oracle domain.Oracle) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE oracle SET name = $2, active = $3, emergency = $4, reputation = $5,
			attestations_submitted = $6, attestations_agreed = $7
		WHERE id = $1`,
		oracle.ID, oracle.Name, oracle.Active, oracle.Emergency,
		oracle.Reputation, int64(oracle.AttestationsSubmitted),
		int64(oracle.AttestationsAgreed),
	)
	if err != nil {
		return fmt.Errorf("failed to update oracle: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("oracle %s not found", oracle.ID)
	}
	return nil
}

func (r *oracleRepository) Close() {
	// nolint:all
	r.db.Close()
}

func scanOracle(row rowScanner) (*domain.Oracle, error) {
	var oracle domain.Oracle
	var submitted, agreed int64
	if err := row.Scan(
		&oracle.ID, &oracle.Name, &oracle.Active, &oracle.Emergency,
		&oracle.Reputation, &submitted, &agreed, &oracle.RegisteredAt,
	); err != nil {
		return nil, err
	}
	oracle.AttestationsSubmitted = uint64(submitted)
	oracle.AttestationsAgreed = uint64(agreed)
	return &oracle, nil
}

func collectOracles(rows *sql.Rows) ([]domain.Oracle, error) {
	// nolint
	defer rows.Close()
	oracles := make([]domain.Oracle, 0)
	for rows.Next() {
		oracle, err := scanOracle(rows)
		if err != nil {
			return nil, err
		}
		oracles = append(oracles, *oracle)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return oracles, nil
}
