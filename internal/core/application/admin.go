package application

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	log "github.com/sirupsen/logrus"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
	"github.com/veridex-io/veridexd/pkg/errors"
)

type adminService struct {
	repoManager ports.RepoManager
}

func NewAdminService(repoManager ports.RepoManager) AdminService {
	return &adminService{repoManager: repoManager}
}

func (s *adminService) RegisterOracle(ctx context.Context, id, name string) errors.Error {
	buf, err := hex.DecodeString(id)
	if err != nil {
		return errors.BAD_SIGNATURE.New(
			"invalid oracle pubkey encoding: %w", err,
		).WithMetadata(errors.SignatureMetadata{Signer: id})
	}
	if _, err := schnorr.ParsePubKey(buf); err != nil {
		return errors.BAD_SIGNATURE.New(
			"invalid oracle pubkey: %w", err,
		).WithMetadata(errors.SignatureMetadata{Signer: id})
	}

	existing, err := s.repoManager.Oracles().GetOracle(ctx, id)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if existing != nil {
		return errors.ORACLE_ALREADY_REGISTERED.New(
			"oracle %s already registered", id,
		).WithMetadata(errors.OracleMetadata{OracleId: id})
	}

	oracle := domain.Oracle{
		ID:           id,
		Name:         name,
		Active:       true,
		RegisteredAt: time.Now().Unix(),
	}
	if err := s.repoManager.Oracles().AddOracle(ctx, oracle); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}

	event := domain.OracleRegistered{
		Id: id, Type: domain.EventTypeOracleRegistered, Name: name,
	}
	if err := s.repoManager.Events().Save(
		ctx, domain.OracleTopic, id, []domain.Event{event},
	); err != nil {
		log.WithError(err).Warn("failed to save oracle registration event")
	}

	log.WithFields(log.Fields{"oracle": id, "name": name}).Info("registered oracle")
	return nil
}

func (s *adminService) RemoveOracle(ctx context.Context, id string) errors.Error {
	oracle, err := s.repoManager.Oracles().GetOracle(ctx, id)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if oracle == nil {
		return errors.ORACLE_NOT_FOUND.New(
			"oracle %s not found", id,
		).WithMetadata(errors.OracleMetadata{OracleId: id})
	}

	// Removing an oracle may leave open queries short of quorum: the
	// threshold must still be reachable by the remaining active set.
	active, err := s.repoManager.Oracles().GetActiveOracles(ctx)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	remaining := 0
	for _, o := range active {
		if o.ID != id && o.CountsForConsensus() {
			remaining++
		}
	}
	threshold, _, err := s.consensusSettings(ctx)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if remaining > 0 && remaining < threshold {
		log.WithFields(log.Fields{
			"oracle":    id,
			"remaining": remaining,
			"threshold": threshold,
		}).Warn("removing oracle leaves consensus threshold unreachable")
	}

	if err := s.repoManager.Oracles().RemoveOracle(ctx, id); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}

	event := domain.OracleRemoved{Id: id, Type: domain.EventTypeOracleRemoved}
	if err := s.repoManager.Events().Save(
		ctx, domain.OracleTopic, id, []domain.Event{event},
	); err != nil {
		log.WithError(err).Warn("failed to save oracle removal event")
	}

	log.WithField("oracle", id).Info("removed oracle")
	return nil
}

func (s *adminService) SetOracleActive(ctx context.Context, id string, active bool) errors.Error {
	return s.updateOracle(ctx, id, func(o *domain.Oracle) { o.Active = active })
}

func (s *adminService) SetOracleEmergency(ctx context.Context, id string, emergency bool) errors.Error {
	return s.updateOracle(ctx, id, func(o *domain.Oracle) { o.Emergency = emergency })
}

func (s *adminService) AdjustReputation(ctx context.Context, id string, delta int64) errors.Error {
	return s.updateOracle(ctx, id, func(o *domain.Oracle) {
		o.Reputation += delta
		if o.Reputation < 0 {
			o.Reputation = 0
		}
	})
}

func (s *adminService) updateOracle(
	ctx context.Context, id string, apply func(*domain.Oracle),
) errors.Error {
	oracle, err := s.repoManager.Oracles().GetOracle(ctx, id)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if oracle == nil {
		return errors.ORACLE_NOT_FOUND.New(
			"oracle %s not found", id,
		).WithMetadata(errors.OracleMetadata{OracleId: id})
	}
	apply(oracle)
	if err := s.repoManager.Oracles().UpdateOracle(ctx, *oracle); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	return nil
}

func (s *adminService) GetOracleInfo(ctx context.Context, id string) (*domain.Oracle, error) {
	return s.repoManager.Oracles().GetOracle(ctx, id)
}

func (s *adminService) ListOracles(ctx context.Context) ([]domain.Oracle, error) {
	return s.repoManager.Oracles().GetAllOracles(ctx)
}

func (s *adminService) UpdateConsensusThreshold(ctx context.Context, threshold int) errors.Error {
	if threshold < 1 {
		return errors.INVALID_THRESHOLD.New(
			"threshold must be positive, got %d", threshold,
		).WithMetadata(errors.ThresholdMetadata{Threshold: threshold})
	}
	active, err := s.repoManager.Oracles().GetActiveOracles(ctx)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	counting := 0
	for _, o := range active {
		if o.CountsForConsensus() {
			counting++
		}
	}
	if threshold > counting {
		return errors.INVALID_THRESHOLD.New(
			"threshold %d exceeds %d counting oracles", threshold, counting,
		).WithMetadata(errors.ThresholdMetadata{
			Threshold: threshold, ActiveOracles: counting,
		})
	}

	settings, err := s.repoManager.Settings().Get(ctx)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if settings == nil {
		settings = &domain.Settings{
			FreshnessWindow: defaultFreshnessWindow,
			ValidationTTL:   defaultValidationTTL,
		}
	}
	settings.ConsensusThreshold = threshold
	settings.UpdatedAt = time.Now()
	if err := s.repoManager.Settings().Update(ctx, *settings); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}

	log.WithField("threshold", threshold).Info("updated consensus threshold")
	return nil
}

func (s *adminService) SetVerifyingKey(
	ctx context.Context, circuitID domain.CircuitID, verifyingKey []byte,
) errors.Error {
	if _, ok := domain.PublicInputLen(circuitID); !ok {
		return errors.UNKNOWN_CIRCUIT.New(
			"unknown circuit %s", circuitID,
		).WithMetadata(errors.CircuitMetadata{CircuitId: string(circuitID)})
	}
	if len(verifyingKey) == 0 {
		return errors.INVALID_PROOF.New(
			"empty verifying key for circuit %s", circuitID,
		).WithMetadata(errors.ProofMetadata{CircuitId: string(circuitID)})
	}

	circuit := domain.Circuit{
		ID:           circuitID,
		VerifyingKey: verifyingKey,
		UpdatedAt:    time.Now().Unix(),
	}
	if existing, err := s.repoManager.Circuits().GetCircuit(ctx, circuitID); err == nil && existing != nil {
		circuit.TotalVerified = existing.TotalVerified
		circuit.TotalValid = existing.TotalValid
	}
	if err := s.repoManager.Circuits().SetCircuit(ctx, circuit); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}

	log.WithField("circuit", circuitID).Info("updated verifying key")
	return nil
}

func (s *adminService) SetTokenRules(ctx context.Context, rules domain.TokenRules) errors.Error {
	if rules.TokenID == "" {
		return errors.RULES_NOT_FOUND.New(
			"token rules require a token id",
		)
	}
	if rules.Level.MaxLevel < rules.Level.MinLevel {
		return errors.RULES_NOT_FOUND.New(
			"max level %d below min level %d",
			rules.Level.MaxLevel, rules.Level.MinLevel,
		).WithMetadata(errors.RulesMetadata{TokenId: rules.TokenID})
	}
	rules.UpdatedAt = time.Now().Unix()
	if err := s.repoManager.Rules().SetTokenRules(ctx, rules); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	log.WithField("token", rules.TokenID).Info("updated token rules")
	return nil
}

func (s *adminService) GetTokenRules(ctx context.Context, tokenID string) (*domain.TokenRules, error) {
	return s.repoManager.Rules().GetTokenRules(ctx, tokenID)
}

func (s *adminService) AddTrustedContract(ctx context.Context, contract string) errors.Error {
	if err := s.repoManager.Rules().AddTrustedContract(ctx, contract); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	log.WithField("contract", contract).Info("added trusted contract")
	return nil
}

func (s *adminService) RemoveTrustedContract(ctx context.Context, contract string) errors.Error {
	if err := s.repoManager.Rules().RemoveTrustedContract(ctx, contract); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	log.WithField("contract", contract).Info("removed trusted contract")
	return nil
}

func (s *adminService) GetTrustedContracts(ctx context.Context) ([]string, error) {
	return s.repoManager.Rules().GetTrustedContracts(ctx)
}

func (s *adminService) GetSettings(ctx context.Context) (*domain.Settings, error) {
	return s.repoManager.Settings().Get(ctx)
}

func (s *adminService) UpdateSettings(ctx context.Context, settings domain.Settings) errors.Error {
	if settings.ConsensusThreshold < 1 {
		return errors.INVALID_THRESHOLD.New(
			"threshold must be positive, got %d", settings.ConsensusThreshold,
		).WithMetadata(errors.ThresholdMetadata{Threshold: settings.ConsensusThreshold})
	}
	settings.UpdatedAt = time.Now()
	if err := s.repoManager.Settings().Update(ctx, settings); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	return nil
}

func (s *adminService) consensusSettings(ctx context.Context) (int, int64, error) {
	settings, err := s.repoManager.Settings().Get(ctx)
	if err != nil {
		return 0, 0, err
	}
	threshold, window := defaultConsensusThreshold, int64(defaultFreshnessWindow)
	if settings != nil {
		if settings.ConsensusThreshold > 0 {
			threshold = settings.ConsensusThreshold
		}
		if settings.FreshnessWindow > 0 {
			window = settings.FreshnessWindow
		}
	}
	return threshold, window, nil
}
