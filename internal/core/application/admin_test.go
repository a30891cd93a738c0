package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/pkg/errors"
)

func TestRegisterOracle(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)
	oracle := newTestOracle(t)

	require.NoError(t, svc.admin.RegisterOracle(ctx, oracle.id, "acme attestor"))

	stored, err := svc.admin.GetOracleInfo(ctx, oracle.id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.True(t, stored.Active)
	require.Equal(t, "acme attestor", stored.Name)
	require.NotZero(t, stored.RegisteredAt)

	t.Run("duplicate_registration_rejected", func(t *testing.T) {
		err := svc.admin.RegisterOracle(ctx, oracle.id, "again")
		require.Error(t, err)
		require.Equal(t, errors.ORACLE_ALREADY_REGISTERED.Code, err.Code())
	})

	t.Run("invalid_pubkey_rejected", func(t *testing.T) {
		err := svc.admin.RegisterOracle(ctx, "zz-not-hex", "bogus")
		require.Error(t, err)
		require.Equal(t, errors.BAD_SIGNATURE.Code, err.Code())

		err = svc.admin.RegisterOracle(ctx, "00ff", "short key")
		require.Error(t, err)
		require.Equal(t, errors.BAD_SIGNATURE.Code, err.Code())
	})
}

func TestRemoveOracle(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)
	oracles := registerOracles(t, svc.repo, 3)

	require.NoError(t, svc.admin.RemoveOracle(ctx, oracles[0].id))

	stored, err := svc.admin.GetOracleInfo(ctx, oracles[0].id)
	require.NoError(t, err)
	require.Nil(t, stored)

	err2 := svc.admin.RemoveOracle(ctx, oracles[0].id)
	require.Error(t, err2)
	require.Equal(t, errors.ORACLE_NOT_FOUND.Code, err2.Code())
}

func TestOracleFlags(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)
	oracles := registerOracles(t, svc.repo, 1)
	id := oracles[0].id

	require.NoError(t, svc.admin.SetOracleEmergency(ctx, id, true))
	stored, err := svc.admin.GetOracleInfo(ctx, id)
	require.NoError(t, err)
	require.True(t, stored.Emergency)
	require.False(t, stored.CountsForConsensus())

	require.NoError(t, svc.admin.SetOracleEmergency(ctx, id, false))
	require.NoError(t, svc.admin.SetOracleActive(ctx, id, false))
	stored, err = svc.admin.GetOracleInfo(ctx, id)
	require.NoError(t, err)
	require.False(t, stored.CountsForConsensus())
}

func TestAdjustReputation(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)
	oracles := registerOracles(t, svc.repo, 1)
	id := oracles[0].id

	require.NoError(t, svc.admin.AdjustReputation(ctx, id, 5))
	stored, err := svc.admin.GetOracleInfo(ctx, id)
	require.NoError(t, err)
	require.EqualValues(t, 5, stored.Reputation)

	// reputation is floored at zero
	require.NoError(t, svc.admin.AdjustReputation(ctx, id, -100))
	stored, err = svc.admin.GetOracleInfo(ctx, id)
	require.NoError(t, err)
	require.Zero(t, stored.Reputation)
}

func TestUpdateConsensusThreshold(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)
	registerOracles(t, svc.repo, 3)

	t.Run("non_positive_rejected", func(t *testing.T) {
		err := svc.admin.UpdateConsensusThreshold(ctx, 0)
		require.Error(t, err)
		require.Equal(t, errors.INVALID_THRESHOLD.Code, err.Code())
	})

	t.Run("above_counting_oracles_rejected", func(t *testing.T) {
		err := svc.admin.UpdateConsensusThreshold(ctx, 4)
		require.Error(t, err)
		require.Equal(t, errors.INVALID_THRESHOLD.Code, err.Code())
	})

	t.Run("bounded_by_active_set", func(t *testing.T) {
		require.NoError(t, svc.admin.UpdateConsensusThreshold(ctx, 3))

		settings, err := svc.admin.GetSettings(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, settings.ConsensusThreshold)
		require.False(t, settings.UpdatedAt.IsZero())
	})
}

func TestSetVerifyingKey(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	t.Run("unknown_circuit_rejected", func(t *testing.T) {
		err := svc.admin.SetVerifyingKey(ctx, "nope", []byte("vk"))
		require.Error(t, err)
		require.Equal(t, errors.UNKNOWN_CIRCUIT.Code, err.Code())
	})

	t.Run("empty_key_rejected", func(t *testing.T) {
		err := svc.admin.SetVerifyingKey(ctx, domain.CircuitJurisdictionProof, nil)
		require.Error(t, err)
		require.Equal(t, errors.INVALID_PROOF.Code, err.Code())
	})

	t.Run("key_stored", func(t *testing.T) {
		require.NoError(t, svc.admin.SetVerifyingKey(
			ctx, domain.CircuitJurisdictionProof, []byte("vk"),
		))
		circuit, err := svc.repo.Circuits().GetCircuit(ctx, domain.CircuitJurisdictionProof)
		require.NoError(t, err)
		require.Equal(t, []byte("vk"), circuit.VerifyingKey)
	})
}

func TestSetTokenRules(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	t.Run("missing_token_id_rejected", func(t *testing.T) {
		err := svc.admin.SetTokenRules(ctx, domain.TokenRules{})
		require.Error(t, err)
		require.Equal(t, errors.RULES_NOT_FOUND.Code, err.Code())
	})

	t.Run("inverted_level_bounds_rejected", func(t *testing.T) {
		err := svc.admin.SetTokenRules(ctx, domain.TokenRules{
			TokenID: "token",
			Level: domain.ComplianceLevelRule{
				MinLevel: domain.ComplianceLevelPremium,
				MaxLevel: domain.ComplianceLevelBasic,
			},
		})
		require.Error(t, err)
		require.Equal(t, errors.RULES_NOT_FOUND.Code, err.Code())
	})

	t.Run("rules_stored", func(t *testing.T) {
		require.NoError(t, svc.admin.SetTokenRules(ctx, domain.TokenRules{
			TokenID: "token",
			Level:   domain.ComplianceLevelRule{MaxLevel: domain.ComplianceLevelInstitutional},
		}))
		rules, err := svc.admin.GetTokenRules(ctx, "token")
		require.NoError(t, err)
		require.NotNil(t, rules)
		require.NotZero(t, rules.UpdatedAt)
	})
}

func TestTrustedContracts(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	require.NoError(t, svc.admin.AddTrustedContract(ctx, "0xvault"))
	require.NoError(t, svc.admin.AddTrustedContract(ctx, "0xescrow"))

	contracts, err := svc.admin.GetTrustedContracts(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"0xvault", "0xescrow"}, contracts)

	require.NoError(t, svc.admin.RemoveTrustedContract(ctx, "0xvault"))
	contracts, err = svc.admin.GetTrustedContracts(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"0xescrow"}, contracts)
}

func TestUpdateSettings(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	err := svc.admin.UpdateSettings(ctx, domain.Settings{ConsensusThreshold: 0})
	require.Error(t, err)
	require.Equal(t, errors.INVALID_THRESHOLD.Code, err.Code())

	require.NoError(t, svc.admin.UpdateSettings(ctx, domain.Settings{
		ConsensusThreshold: 2,
		FreshnessWindow:    600,
		ValidationTTL:      3600,
	}))
	settings, gerr := svc.admin.GetSettings(ctx)
	require.NoError(t, gerr)
	require.Equal(t, 2, settings.ConsensusThreshold)
	require.EqualValues(t, 600, settings.FreshnessWindow)
}
