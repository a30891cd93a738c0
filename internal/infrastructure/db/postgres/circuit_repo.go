package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

type circuitRepository struct {
	db *sql.DB
}

func NewCircuitRepository(config ...interface{}) (domain.CircuitRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open circuit repository: invalid config")
	}
	return &circuitRepository{db}, nil
}

func (r *circuitRepository) SetCircuit(ctx context.Context, circuit domain.Circuit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO circuit (id, verifying_key, total_verified, total_valid, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			verifying_key = EXCLUDED.verifying_key,
			total_verified = EXCLUDED.total_verified,
			total_valid = EXCLUDED.total_valid,
			updated_at = EXCLUDED.updated_at`,
		string(circuit.ID), circuit.VerifyingKey, int64(circuit.TotalVerified),
		int64(circuit.TotalValid), circuit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert circuit: %w", err)
	}
	return nil
}

func (r *circuitRepository) GetCircuit(
	ctx context.Context, id domain.CircuitID,
) (*domain.Circuit, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, verifying_key, total_verified, total_valid, updated_at
		FROM circuit WHERE id = $1`, string(id),
	)

	var circuit domain.Circuit
	var verified, valid int64
	err := row.Scan(
		&circuit.ID, &circuit.VerifyingKey, &verified, &valid, &circuit.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	circuit.TotalVerified = uint64(verified)
	circuit.TotalValid = uint64(valid)
	return &circuit, nil
}

func (r *circuitRepository) GetAllCircuits(ctx context.Context) ([]domain.Circuit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, verifying_key, total_verified, total_valid, updated_at
		FROM circuit ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	// nolint
	defer rows.Close()

	circuits := make([]domain.Circuit, 0)
	for rows.Next() {
		var circuit domain.Circuit
		var verified, valid int64
		if err := rows.Scan(
			&circuit.ID, &circuit.VerifyingKey, &verified, &valid, &circuit.UpdatedAt,
		); err != nil {
			return nil, err
		}
		circuit.TotalVerified = uint64(verified)
		circuit.TotalValid = uint64(valid)
		circuits = append(circuits, circuit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return circuits, nil
}

func (r *circuitRepository) IncrementCounters(
	ctx context.Context, id domain.CircuitID, valid bool,
) error {
	validIncrement := 0
	if valid {
		validIncrement = 1
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE circuit SET total_verified = total_verified + 1,
			total_valid = total_valid + $2
		WHERE id = $1`,
		string(id), validIncrement,
	)
	if err != nil {
		return fmt.Errorf("failed to increment circuit counters: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("circuit %s not found", id)
	}
	return nil
}

func (r *circuitRepository) Close() {
	// nolint:all
	r.db.Close()
}
