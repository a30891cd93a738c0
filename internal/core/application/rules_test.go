package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

func TestValidateJurisdiction(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	t.Run("unconfigured_token_is_unrestricted", func(t *testing.T) {
		result, err := svc.rules.ValidateJurisdiction(ctx, "token", 840)
		require.NoError(t, err)
		require.True(t, result.Valid)
	})

	require.NoError(t, svc.repo.Rules().SetTokenRules(ctx, domain.TokenRules{
		TokenID: "token",
		Jurisdiction: domain.JurisdictionRule{
			Allowed: []uint16{840, 756},
			Blocked: []uint16{408},
		},
	}))

	t.Run("allowed_country", func(t *testing.T) {
		result, err := svc.rules.ValidateJurisdiction(ctx, "token", 756)
		require.NoError(t, err)
		require.True(t, result.Valid)
	})

	t.Run("restricted_country", func(t *testing.T) {
		result, err := svc.rules.ValidateJurisdiction(ctx, "token", 276)
		require.NoError(t, err)
		require.False(t, result.Valid)
		require.Equal(t, ReasonJurisdiction, result.Code)
	})
}

func TestValidateInvestorType(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	require.NoError(t, svc.repo.Rules().SetTokenRules(ctx, domain.TokenRules{
		TokenID: "token",
		InvestorType: domain.InvestorTypeRule{
			Allowed:          []uint8{1, 2},
			MinAccreditation: 2,
		},
	}))

	t.Run("permitted", func(t *testing.T) {
		result, err := svc.rules.ValidateInvestorType(ctx, "token", 1, 2)
		require.NoError(t, err)
		require.True(t, result.Valid)
	})

	t.Run("restricted_type", func(t *testing.T) {
		result, err := svc.rules.ValidateInvestorType(ctx, "token", 3, 2)
		require.NoError(t, err)
		require.False(t, result.Valid)
		require.Equal(t, ReasonInvestorType, result.Code)
	})

	t.Run("insufficient_accreditation", func(t *testing.T) {
		result, err := svc.rules.ValidateInvestorType(ctx, "token", 1, 1)
		require.NoError(t, err)
		require.False(t, result.Valid)
		require.Equal(t, ReasonInsufficientLevel, result.Code)
	})
}

func TestValidateHoldingPeriod(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	const (
		minHolding = int64(86400)
		cooldown   = int64(3600)
		acquiredAt = int64(1000000)
	)
	require.NoError(t, svc.repo.Rules().SetTokenRules(ctx, domain.TokenRules{
		TokenID: "token",
		HoldingPeriod: domain.HoldingPeriodRule{
			MinHoldingPeriod: minHolding,
			TransferCooldown: cooldown,
		},
	}))

	t.Run("one_second_short", func(t *testing.T) {
		result, err := svc.rules.ValidateHoldingPeriod(
			ctx, "token", "holder", acquiredAt, acquiredAt+minHolding-1,
		)
		require.NoError(t, err)
		require.False(t, result.Valid)
		require.Equal(t, ReasonHoldingPeriod, result.Code)
	})

	t.Run("exactly_met", func(t *testing.T) {
		result, err := svc.rules.ValidateHoldingPeriod(
			ctx, "token", "holder", acquiredAt, acquiredAt+minHolding,
		)
		require.NoError(t, err)
		require.True(t, result.Valid)
	})

	t.Run("cooldown", func(t *testing.T) {
		lastTransfer := acquiredAt + minHolding
		require.NoError(t, svc.rules.RecordTransfer(ctx, "token", "holder", lastTransfer))

		result, err := svc.rules.ValidateHoldingPeriod(
			ctx, "token", "holder", acquiredAt, lastTransfer+cooldown-1,
		)
		require.NoError(t, err)
		require.False(t, result.Valid)
		require.Equal(t, ReasonHoldingPeriod, result.Code)

		result, err = svc.rules.ValidateHoldingPeriod(
			ctx, "token", "holder", acquiredAt, lastTransfer+cooldown,
		)
		require.NoError(t, err)
		require.True(t, result.Valid)
	})

	t.Run("unconfigured_token_has_no_holding_period", func(t *testing.T) {
		result, err := svc.rules.ValidateHoldingPeriod(ctx, "other", "holder", 100, 100)
		require.NoError(t, err)
		require.True(t, result.Valid)
	})
}

func TestAggregateComplianceLevels(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	t.Run("unconfigured_token_uses_plain_minimum", func(t *testing.T) {
		level, ok, err := svc.rules.AggregateComplianceLevels(ctx, "token", []domain.ComplianceLevel{
			domain.ComplianceLevelPremium, domain.ComplianceLevelBasic,
		})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, domain.ComplianceLevelBasic, level)
	})

	require.NoError(t, svc.repo.Rules().SetTokenRules(ctx, domain.TokenRules{
		TokenID: "token",
		Level: domain.ComplianceLevelRule{
			MinLevel: domain.ComplianceLevelEnhanced,
			MaxLevel: domain.ComplianceLevelInstitutional,
		},
	}))

	t.Run("within_bounds", func(t *testing.T) {
		level, ok, err := svc.rules.AggregateComplianceLevels(ctx, "token", []domain.ComplianceLevel{
			domain.ComplianceLevelPremium, domain.ComplianceLevelEnhanced,
		})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, domain.ComplianceLevelEnhanced, level)
	})

	t.Run("below_minimum", func(t *testing.T) {
		_, ok, err := svc.rules.AggregateComplianceLevels(ctx, "token", []domain.ComplianceLevel{
			domain.ComplianceLevelBasic,
		})
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestValidateMetadata(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	require.NoError(t, svc.repo.Rules().SetTokenRules(ctx, domain.TokenRules{
		TokenID:      "token",
		Jurisdiction: domain.JurisdictionRule{Blocked: []uint16{408}},
	}))

	t.Run("blacklisted_metadata_rejected", func(t *testing.T) {
		result, err := svc.rules.ValidateMetadata(ctx, domain.UTXO{
			TokenID: "token", Blacklisted: true,
		})
		require.NoError(t, err)
		require.False(t, result.Valid)
		require.Equal(t, ReasonBlacklisted, result.Code)
	})

	t.Run("blocked_country_rejected", func(t *testing.T) {
		result, err := svc.rules.ValidateMetadata(ctx, domain.UTXO{
			TokenID: "token", CountryCode: 408, Whitelisted: true,
		})
		require.NoError(t, err)
		require.False(t, result.Valid)
		require.Equal(t, ReasonJurisdiction, result.Code)
	})

	t.Run("clean_metadata_accepted", func(t *testing.T) {
		result, err := svc.rules.ValidateMetadata(ctx, domain.UTXO{
			TokenID: "token", CountryCode: 840, Whitelisted: true,
		})
		require.NoError(t, err)
		require.True(t, result.Valid)
	})
}
