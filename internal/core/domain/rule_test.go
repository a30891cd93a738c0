package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJurisdictionRulePermits(t *testing.T) {
	testCases := []struct {
		name    string
		rule    JurisdictionRule
		country uint16
		want    bool
	}{
		{
			name:    "unrestricted",
			rule:    JurisdictionRule{},
			country: 840,
			want:    true,
		},
		{
			name:    "allowed_country",
			rule:    JurisdictionRule{Allowed: []uint16{840, 756}},
			country: 756,
			want:    true,
		},
		{
			name:    "country_not_in_allowlist",
			rule:    JurisdictionRule{Allowed: []uint16{840}},
			country: 408,
			want:    false,
		},
		{
			name:    "blocked_country",
			rule:    JurisdictionRule{Blocked: []uint16{408}},
			country: 408,
			want:    false,
		},
		{
			name:    "blocked_takes_precedence_over_allowed",
			rule:    JurisdictionRule{Allowed: []uint16{840}, Blocked: []uint16{840}},
			country: 840,
			want:    false,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.rule.Permits(tc.country))
		})
	}
}

func TestInvestorTypeRulePermitsType(t *testing.T) {
	testCases := []struct {
		name         string
		rule         InvestorTypeRule
		investorType uint8
		want         bool
	}{
		{
			name:         "unrestricted",
			rule:         InvestorTypeRule{},
			investorType: 1,
			want:         true,
		},
		{
			name:         "allowed_type",
			rule:         InvestorTypeRule{Allowed: []uint8{2, 3}},
			investorType: 3,
			want:         true,
		},
		{
			name:         "type_not_in_allowlist",
			rule:         InvestorTypeRule{Allowed: []uint8{2}},
			investorType: 1,
			want:         false,
		},
		{
			name:         "blocked_takes_precedence",
			rule:         InvestorTypeRule{Allowed: []uint8{1}, Blocked: []uint8{1}},
			investorType: 1,
			want:         false,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.rule.PermitsType(tc.investorType))
		})
	}
}

func TestComplianceLevelRuleAggregate(t *testing.T) {
	t.Run("empty_input", func(t *testing.T) {
		rule := ComplianceLevelRule{MinLevel: ComplianceLevelNone, MaxLevel: ComplianceLevelInstitutional}
		level, ok := rule.Aggregate(nil)
		require.Equal(t, ComplianceLevelNone, level)
		require.False(t, ok)
	})

	t.Run("minimum_of_inputs", func(t *testing.T) {
		rule := ComplianceLevelRule{MinLevel: ComplianceLevelBasic, MaxLevel: ComplianceLevelInstitutional}
		level, ok := rule.Aggregate([]ComplianceLevel{
			ComplianceLevelPremium, ComplianceLevelEnhanced, ComplianceLevelInstitutional,
		})
		require.Equal(t, ComplianceLevelEnhanced, level)
		require.True(t, ok)
	})

	t.Run("below_min_level", func(t *testing.T) {
		rule := ComplianceLevelRule{MinLevel: ComplianceLevelEnhanced, MaxLevel: ComplianceLevelInstitutional}
		level, ok := rule.Aggregate([]ComplianceLevel{ComplianceLevelBasic, ComplianceLevelPremium})
		require.Equal(t, ComplianceLevelBasic, level)
		require.False(t, ok)
	})

	t.Run("above_max_level", func(t *testing.T) {
		rule := ComplianceLevelRule{MinLevel: ComplianceLevelBasic, MaxLevel: ComplianceLevelEnhanced}
		_, ok := rule.Aggregate([]ComplianceLevel{ComplianceLevelInstitutional})
		require.False(t, ok)
	})

	t.Run("inheritance_mapping_applied_before_aggregation", func(t *testing.T) {
		rule := ComplianceLevelRule{
			MinLevel: ComplianceLevelEnhanced,
			MaxLevel: ComplianceLevelInstitutional,
			Inheritance: map[ComplianceLevel]ComplianceLevel{
				ComplianceLevelBasic: ComplianceLevelEnhanced,
			},
		}
		level, ok := rule.Aggregate([]ComplianceLevel{ComplianceLevelBasic, ComplianceLevelPremium})
		require.Equal(t, ComplianceLevelEnhanced, level)
		require.True(t, ok)
	})

	t.Run("unmapped_levels_pass_through", func(t *testing.T) {
		rule := ComplianceLevelRule{
			MinLevel: ComplianceLevelNone,
			MaxLevel: ComplianceLevelInstitutional,
			Inheritance: map[ComplianceLevel]ComplianceLevel{
				ComplianceLevelPremium: ComplianceLevelBasic,
			},
		}
		level, ok := rule.Aggregate([]ComplianceLevel{ComplianceLevelPremium, ComplianceLevelEnhanced})
		require.Equal(t, ComplianceLevelBasic, level)
		require.True(t, ok)
	})
}

func TestComplianceLevelString(t *testing.T) {
	require.Equal(t, "None", ComplianceLevelNone.String())
	require.Equal(t, "Institutional", ComplianceLevelInstitutional.String())
	require.Equal(t, "Unknown(9)", ComplianceLevel(9).String())
}
