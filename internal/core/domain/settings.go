package domain

import (
	"context"
	"time"
)

// Settings holds the governance-adjustable parameters of the engine.
type Settings struct {
	// ConsensusThreshold is M in the M-of-N oracle consensus. It is
	// bounded by the current active-oracle count.
	ConsensusThreshold int
	// FreshnessWindow bounds, in seconds, how old an oracle validation
	// snapshot may be before consumers must re-resolve.
	FreshnessWindow int64
	// ValidationTTL is the validity duration, in seconds, of a computed
	// compliance validation.
	ValidationTTL int64
	// EmergencyHalt stops all transfer validation when set.
	EmergencyHalt bool

	UpdatedAt time.Time
}

type SettingsRepository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, settings Settings) error
	Close()
}
