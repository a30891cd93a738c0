package application

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
	"github.com/veridex-io/veridexd/pkg/errors"
)

type rulesEngine struct {
	repoManager ports.RepoManager
}

func NewRulesEngine(repoManager ports.RepoManager) RulesEngine {
	return &rulesEngine{repoManager: repoManager}
}

func (e *rulesEngine) ValidateJurisdiction(
	ctx context.Context, tokenID string, country uint16,
) (ValidationResult, error) {
	rules, err := e.repoManager.Rules().GetTokenRules(ctx, tokenID)
	if err != nil {
		return ValidationResult{}, err
	}
	// a token without configured rules is unrestricted
	if rules == nil {
		return valid(), nil
	}
	if !rules.Jurisdiction.Permits(country) {
		return invalid(
			ReasonJurisdiction,
			fmt.Sprintf("country %d is restricted for token %s", country, tokenID),
		), nil
	}
	return valid(), nil
}

func (e *rulesEngine) ValidateInvestorType(
	ctx context.Context, tokenID string, investorType, accreditation uint8,
) (ValidationResult, error) {
	rules, err := e.repoManager.Rules().GetTokenRules(ctx, tokenID)
	if err != nil {
		return ValidationResult{}, err
	}
	if rules == nil {
		return valid(), nil
	}
	if !rules.InvestorType.PermitsType(investorType) {
		return invalid(
			ReasonInvestorType,
			fmt.Sprintf("investor type %d is restricted for token %s", investorType, tokenID),
		), nil
	}
	if accreditation < rules.InvestorType.MinAccreditation {
		return invalid(
			ReasonInsufficientLevel,
			fmt.Sprintf(
				"accreditation level %d below required minimum %d",
				accreditation, rules.InvestorType.MinAccreditation,
			),
		), nil
	}
	return valid(), nil
}

func (e *rulesEngine) ValidateHoldingPeriod(
	ctx context.Context, tokenID, holder string, acquiredAt, now int64,
) (ValidationResult, error) {
	rules, err := e.repoManager.Rules().GetTokenRules(ctx, tokenID)
	if err != nil {
		return ValidationResult{}, err
	}
	if rules == nil {
		return valid(), nil
	}

	if elapsed := now - acquiredAt; elapsed < rules.HoldingPeriod.MinHoldingPeriod {
		return invalid(
			ReasonHoldingPeriod,
			fmt.Sprintf(
				"holding period not met: %ds elapsed, %ds required",
				elapsed, rules.HoldingPeriod.MinHoldingPeriod,
			),
		), nil
	}

	if rules.HoldingPeriod.TransferCooldown > 0 {
		record, err := e.repoManager.Transfers().GetTransferRecord(ctx, tokenID, holder)
		if err != nil {
			return ValidationResult{}, err
		}
		if record != nil {
			cooldownUntil := record.LastTransferAt + rules.HoldingPeriod.TransferCooldown
			if now < cooldownUntil {
				return invalid(
					ReasonHoldingPeriod,
					fmt.Sprintf("transfer cooldown active until %d", cooldownUntil),
				), nil
			}
		}
	}
	return valid(), nil
}

func (e *rulesEngine) RecordTransfer(
	ctx context.Context, tokenID, holder string, at int64,
) errors.Error {
	if err := e.repoManager.Transfers().RecordTransfer(ctx, tokenID, holder, at); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	log.WithFields(log.Fields{
		"token":  tokenID,
		"holder": holder,
	}).Debug("recorded transfer timestamp")
	return nil
}

func (e *rulesEngine) AggregateComplianceLevels(
	ctx context.Context, tokenID string, levels []domain.ComplianceLevel,
) (domain.ComplianceLevel, bool, error) {
	rules, err := e.repoManager.Rules().GetTokenRules(ctx, tokenID)
	if err != nil {
		return domain.ComplianceLevelNone, false, err
	}
	if rules == nil {
		// no bounds configured: aggregate is the plain minimum
		unbounded := domain.ComplianceLevelRule{
			MinLevel: domain.ComplianceLevelNone,
			MaxLevel: domain.ComplianceLevelInstitutional,
		}
		level, ok := unbounded.Aggregate(levels)
		return level, ok, nil
	}
	level, ok := rules.Level.Aggregate(levels)
	return level, ok, nil
}

func (e *rulesEngine) ValidateMetadata(
	ctx context.Context, utxo domain.UTXO,
) (ValidationResult, error) {
	if utxo.Blacklisted {
		return invalid(ReasonBlacklisted, "metadata is blacklisted"), nil
	}
	if result, err := e.ValidateJurisdiction(ctx, utxo.TokenID, utxo.CountryCode); err != nil {
		return ValidationResult{}, err
	} else if !result.Valid {
		return result, nil
	}
	// the whitelist tier doubles as the accreditation level carried by
	// the unit's metadata
	result, err := e.ValidateInvestorType(ctx, utxo.TokenID, utxo.InvestorType, utxo.WhitelistTier)
	if err != nil {
		return ValidationResult{}, err
	}
	if !result.Valid {
		return result, nil
	}
	return valid(), nil
}

func (e *rulesEngine) IsTrustedContract(ctx context.Context, contract string) (bool, error) {
	return e.repoManager.Rules().IsTrustedContract(ctx, contract)
}
