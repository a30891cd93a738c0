package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(config ...interface{}) (domain.SettingsRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open settings repository: invalid config")
	}
	return &settingsRepository{db}, nil
}

func (r *settingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT consensus_threshold, freshness_window, validation_ttl,
			emergency_halt, updated_at
		FROM settings WHERE id = 1`,
	)

	var settings domain.Settings
	err := row.Scan(
		&settings.ConsensusThreshold, &settings.FreshnessWindow,
		&settings.ValidationTTL, &settings.EmergencyHalt, &settings.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

func (r *settingsRepository) Update(ctx context.Context, settings domain.Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (id, consensus_threshold, freshness_window,
			validation_ttl, emergency_halt, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			consensus_threshold = EXCLUDED.consensus_threshold,
			freshness_window = EXCLUDED.freshness_window,
			validation_ttl = EXCLUDED.validation_ttl,
			emergency_halt = EXCLUDED.emergency_halt,
			updated_at = EXCLUDED.updated_at`,
		settings.ConsensusThreshold, settings.FreshnessWindow,
		settings.ValidationTTL, settings.EmergencyHalt, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

func (r *settingsRepository) Close() {
	// nolint:all
	r.db.Close()
}
