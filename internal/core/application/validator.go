package application

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
)

type validatorService struct {
	repoManager  ports.RepoManager
	rulesEngine  RulesEngine
	consensusSvc ConsensusService
	registrySvc  RegistryService
	identity     ports.IdentityProvider
}

func NewValidatorService(
	repoManager ports.RepoManager,
	rulesEngine RulesEngine,
	consensusSvc ConsensusService,
	registrySvc RegistryService,
	identity ports.IdentityProvider,
) ValidatorService {
	return &validatorService{
		repoManager:  repoManager,
		rulesEngine:  rulesEngine,
		consensusSvc: consensusSvc,
		registrySvc:  registrySvc,
		identity:     identity,
	}
}

// ValidateTransaction runs the full pipeline in order, short-circuiting on
// the first failure: identity, claims, oracle consensus, jurisdiction and
// investor-type rules, then UTXO-level checks. An audit event is emitted
// win or lose.
func (s *validatorService) ValidateTransaction(
	ctx context.Context, tx TransactionContext,
) (ValidationResult, error) {
	result, err := s.runPipeline(ctx, tx)
	if err != nil {
		return ValidationResult{}, err
	}

	event := domain.TransactionValidated{
		Id:       tx.TxHash,
		Type:     domain.EventTypeTransactionValidated,
		Sender:   tx.Sender,
		Receiver: tx.Receiver,
		Valid:    result.Valid,
		Reason:   result.Code,
	}
	if err := s.repoManager.Events().Save(
		ctx, domain.ValidationTopic, tx.TxHash, []domain.Event{event},
	); err != nil {
		log.WithError(err).Warn("failed to save transaction validation event")
	}

	log.WithFields(log.Fields{
		"tx":       tx.TxHash,
		"sender":   tx.Sender,
		"receiver": tx.Receiver,
		"valid":    result.Valid,
		"code":     result.Code,
	}).Info("validated transaction")
	return result, nil
}

func (s *validatorService) runPipeline(
	ctx context.Context, tx TransactionContext,
) (ValidationResult, error) {
	settings, err := s.repoManager.Settings().Get(ctx)
	if err != nil {
		return ValidationResult{}, err
	}
	if settings != nil && settings.EmergencyHalt {
		return invalid(ReasonEmergencyHalt, "transfers are halted"), nil
	}

	rules, err := s.repoManager.Rules().GetTokenRules(ctx, tx.TokenID)
	if err != nil {
		return ValidationResult{}, err
	}
	var requiredClaims uint64
	if rules != nil {
		requiredClaims = rules.RequiredClaims
	}

	// (1) identity and (2) claims, for both counterparties. Trusted
	// contracts bypass these checks, never the oracle checks below.
	parties := []struct {
		role   string
		holder string
	}{
		{"sender", tx.Sender},
		{"receiver", tx.Receiver},
	}
	identities := make(map[string]domain.IdentityValidation, len(parties))
	now := time.Now().Unix()
	for _, party := range parties {
		trusted, err := s.rulesEngine.IsTrustedContract(ctx, party.holder)
		if err != nil {
			return ValidationResult{}, err
		}
		if trusted {
			continue
		}
		identity, err := resolveIdentity(ctx, s.identity, party.holder, requiredClaims)
		if err != nil {
			return ValidationResult{}, err
		}
		if !identity.HasValidIdentity {
			return invalid(ReasonInvalidIdentity,
				fmt.Sprintf("%s has no linked identity", party.role)), nil
		}
		if requiredClaims != 0 {
			if identity.ClaimMask()&requiredClaims != requiredClaims {
				return invalid(ReasonInvalidClaims,
					fmt.Sprintf("%s is missing required claims", party.role)), nil
			}
			if identity.ClaimsExpireAt > 0 && identity.ClaimsExpireAt <= now {
				return invalid(ReasonExpiredClaims,
					fmt.Sprintf("%s holds expired claims", party.role)), nil
			}
		}
		identities[party.holder] = identity
	}

	// (3) oracle consensus for both counterparties
	for _, party := range parties {
		identity := identities[party.holder]
		subject := identity.Identity
		if subject == "" {
			subject = party.holder
		}
		snapshot, consErr := s.consensusSvc.GetOracleValidation(ctx, subject)
		if consErr != nil {
			return invalid(ReasonOracleConsensusFailed, consErr.Error()), nil
		}
		if snapshot == nil {
			continue
		}
		if snapshot.Blacklisted {
			return invalid(ReasonBlacklisted,
				fmt.Sprintf("%s is blacklisted by oracle consensus", party.role)), nil
		}
		if !snapshot.Whitelisted {
			return invalid(ReasonNotWhitelisted,
				fmt.Sprintf("%s is not whitelisted by oracle consensus", party.role)), nil
		}
	}

	// (4) jurisdiction, investor-type and holding-period rules for the
	// receiving side of the transfer
	if identity, ok := identities[tx.Receiver]; ok {
		result, err := s.rulesEngine.ValidateJurisdiction(ctx, tx.TokenID, identity.CountryCode)
		if err != nil {
			return ValidationResult{}, err
		}
		if !result.Valid {
			return result, nil
		}
		result, err = s.rulesEngine.ValidateInvestorType(
			ctx, tx.TokenID, identity.InvestorType, identity.Accreditation,
		)
		if err != nil {
			return ValidationResult{}, err
		}
		if !result.Valid {
			return result, nil
		}
	}
	if result, err := s.holdingPeriodResult(ctx, tx, now); err != nil {
		return ValidationResult{}, err
	} else if !result.Valid {
		return result, nil
	}

	// (5) UTXO-level validation
	return s.registrySvc.ValidateTransaction(ctx, tx.InputIDs, tx.Outputs)
}

func (s *validatorService) holdingPeriodResult(
	ctx context.Context, tx TransactionContext, now int64,
) (ValidationResult, error) {
	for _, id := range tx.InputIDs {
		utxo, err := s.repoManager.Utxos().GetUtxo(ctx, id)
		if err != nil {
			return ValidationResult{}, err
		}
		if utxo == nil {
			continue
		}
		result, err := s.rulesEngine.ValidateHoldingPeriod(
			ctx, tx.TokenID, tx.Sender, utxo.AcquiredAt, now,
		)
		if err != nil {
			return ValidationResult{}, err
		}
		if !result.Valid {
			return result, nil
		}
	}
	return valid(), nil
}

func (s *validatorService) ValidateTransferRestrictions(
	ctx context.Context, tx TransactionContext,
) (bool, string, error) {
	result, err := s.ValidateTransaction(ctx, tx)
	if err != nil {
		return false, "", err
	}
	return result.Valid, result.Reason, nil
}
