package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
	"github.com/veridex-io/veridexd/pkg/errors"
)

const defaultValidationTTL = int64(86400)

type registryService struct {
	repoManager  ports.RepoManager
	rulesEngine  RulesEngine
	consensusSvc ConsensusService
	proofSvc     ProofService
	identity     ports.IdentityProvider
}

func NewRegistryService(
	repoManager ports.RepoManager,
	rulesEngine RulesEngine,
	consensusSvc ConsensusService,
	proofSvc ProofService,
	identity ports.IdentityProvider,
) RegistryService {
	return &registryService{
		repoManager:  repoManager,
		rulesEngine:  rulesEngine,
		consensusSvc: consensusSvc,
		proofSvc:     proofSvc,
		identity:     identity,
	}
}

func (s *registryService) CreateUTXO(
	ctx context.Context, utxo domain.UTXO,
) (*domain.UTXO, errors.Error) {
	result, err := s.rulesEngine.ValidateMetadata(ctx, utxo)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	if !result.Valid {
		return nil, errors.METADATA_VALIDATION_FAILED.New(
			"metadata rejected: %s", result.Reason,
		).WithMetadata(map[string]any{"code": result.Code})
	}

	counter, err := s.repoManager.Utxos().NextCounter(ctx)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	utxo.ID = domain.UtxoID(utxo.Owner, utxo.Commitment, counter)

	existing, err := s.repoManager.Utxos().GetUtxo(ctx, utxo.ID)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	if existing != nil {
		return nil, errors.DUPLICATE_UTXO.New("utxo %s already exists", utxo.ID).
			WithMetadata(errors.UtxoMetadata{UtxoId: utxo.ID})
	}

	now := time.Now().Unix()
	if utxo.CreatedAt == 0 {
		utxo.CreatedAt = now
	}
	if utxo.AcquiredAt == 0 {
		utxo.AcquiredAt = now
	}

	if err := s.repoManager.Utxos().AddUtxo(ctx, utxo); err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}

	event := domain.UtxoCreated{
		Id:      utxo.ID,
		Type:    domain.EventTypeUtxoCreated,
		Owner:   utxo.Owner,
		TokenID: utxo.TokenID,
		Value:   utxo.Value,
	}
	if err := s.repoManager.Events().Save(
		ctx, domain.UtxoTopic, utxo.ID, []domain.Event{event},
	); err != nil {
		log.WithError(err).Warn("failed to save utxo creation event")
	}

	log.WithFields(log.Fields{
		"utxo":  utxo.ID,
		"owner": utxo.Owner,
		"token": utxo.TokenID,
		"value": utxo.Value,
	}).Debug("created utxo")
	return &utxo, nil
}

func (s *registryService) SpendUTXO(
	ctx context.Context, id string, txHash []byte, signature string,
) errors.Error {
	utxo, err := s.repoManager.Utxos().GetUtxo(ctx, id)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if utxo == nil {
		return errors.UTXO_NOT_FOUND.New("no utxo with id %s", id).
			WithMetadata(errors.UtxoMetadata{UtxoId: id})
	}
	if utxo.Spent {
		return errors.UTXO_ALREADY_SPENT.New("utxo %s was spent by %s", id, utxo.SpentBy).
			WithMetadata(errors.UtxoMetadata{UtxoId: id})
	}

	validation, err := s.computeValidation(ctx, *utxo)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	now := time.Now().Unix()
	if !validation.Valid || validation.IsExpired(now) {
		return errors.COMPLIANCE_INVALID.New(
			"utxo %s failed compliance validation: %s", id, validation.Reason,
		).WithMetadata(errors.UtxoMetadata{UtxoId: id})
	}

	if len(txHash) != 32 {
		return errors.BAD_SIGNATURE.New("transaction hash must be 32 bytes, got %d", len(txHash))
	}
	var msg [32]byte
	copy(msg[:], txHash)
	if err := verifySchnorrSignature(utxo.Owner, signature, msg); err != nil {
		return errors.BAD_SIGNATURE.Wrap(err).WithMetadata(errors.SignatureMetadata{
			Signer: utxo.Owner, Message: hex.EncodeToString(txHash),
		})
	}

	txHashHex := hex.EncodeToString(txHash)
	if err := s.repoManager.Utxos().SpendUtxo(ctx, id, txHashHex); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}

	event := domain.UtxoSpent{
		Id:     id,
		Type:   domain.EventTypeUtxoSpent,
		TxHash: txHashHex,
	}
	if err := s.repoManager.Events().Save(
		ctx, domain.UtxoTopic, id, []domain.Event{event},
	); err != nil {
		log.WithError(err).Warn("failed to save utxo spend event")
	}
	return nil
}

func (s *registryService) ValidateUTXO(
	ctx context.Context, id string,
) (*domain.ComplianceValidation, error) {
	utxo, err := s.repoManager.Utxos().GetUtxo(ctx, id)
	if err != nil {
		return nil, err
	}
	if utxo == nil {
		return nil, errors.UTXO_NOT_FOUND.New("no utxo with id %s", id).
			WithMetadata(errors.UtxoMetadata{UtxoId: id})
	}
	validation, err := s.computeValidation(ctx, *utxo)
	if err != nil {
		return nil, err
	}
	return &validation, nil
}

// computeValidation recomputes the compliance validation for a UTXO from
// current stored state. It mutates nothing and is deterministic: the
// expiry is anchored to the last validated (or creation) timestamp rather
// than the wall clock.
func (s *registryService) computeValidation(
	ctx context.Context, utxo domain.UTXO,
) (domain.ComplianceValidation, error) {
	anchor := utxo.LastValidatedAt
	if anchor == 0 {
		anchor = utxo.CreatedAt
	}
	ttl := s.validationTTL(ctx)

	finish := func(valid bool, code, reason string, signers []string) domain.ComplianceValidation {
		sorted := make([]string, len(signers))
		copy(sorted, signers)
		sort.Strings(sorted)
		return domain.ComplianceValidation{
			Valid:     valid,
			Reason:    reason,
			ExpiresAt: anchor + ttl,
			Hash:      validationHash(utxo.ID, utxo.ComplianceHash, code, sorted),
			Signers:   sorted,
		}
	}

	// the blacklist flag dominates everything else
	if utxo.Blacklisted {
		return finish(false, ReasonBlacklisted,
			fmt.Sprintf("utxo is blacklisted with severity %d", utxo.BlacklistSeverity), nil,
		), nil
	}

	subject := utxo.Identity
	if subject == "" {
		subject = utxo.Owner
	}
	snapshot, consErr := s.consensusSvc.GetOracleValidation(ctx, subject)
	if consErr != nil {
		if consErr.Code() == errors.ORACLE_CONSENSUS_FAILED.Code {
			return finish(false, ReasonOracleConsensusFailed, consErr.Error(), nil), nil
		}
		return domain.ComplianceValidation{}, consErr
	}

	var signers []string
	if snapshot != nil {
		signers = snapshot.Signers
		if snapshot.Blacklisted {
			return finish(false, ReasonBlacklisted, "oracle consensus reports subject blacklisted", signers), nil
		}
		if !snapshot.Whitelisted {
			return finish(false, ReasonNotWhitelisted, "oracle consensus reports subject not whitelisted", signers), nil
		}
	} else if !utxo.Whitelisted {
		return finish(false, ReasonNotWhitelisted, "utxo is not whitelisted", nil), nil
	}

	trusted, err := s.rulesEngine.IsTrustedContract(ctx, utxo.Owner)
	if err != nil {
		return domain.ComplianceValidation{}, err
	}
	// trusted contracts bypass identity and claim checks only, never the
	// blacklist checks above
	if !trusted {
		identity, err := resolveIdentity(ctx, s.identity, utxo.Owner, utxo.RequiredClaimMask)
		if err != nil {
			return domain.ComplianceValidation{}, err
		}
		if !identity.HasValidIdentity {
			return finish(false, ReasonInvalidIdentity, "owner has no linked identity", signers), nil
		}
		if !utxo.SatisfiesClaims(identity.ClaimMask()) {
			return finish(false, ReasonInvalidClaims, "required claim topics are not satisfied", signers), nil
		}
	}

	result, err := s.rulesEngine.ValidateMetadata(ctx, utxo)
	if err != nil {
		return domain.ComplianceValidation{}, err
	}
	if !result.Valid {
		return finish(false, result.Code, result.Reason, signers), nil
	}

	return finish(true, ReasonValid, "all checks passed", signers), nil
}

func (s *registryService) UpdateCompliance(
	ctx context.Context, id, newHash string, proof UpdateProof,
) errors.Error {
	utxo, err := s.repoManager.Utxos().GetUtxo(ctx, id)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if utxo == nil {
		return errors.UTXO_NOT_FOUND.New("no utxo with id %s", id).
			WithMetadata(errors.UtxoMetadata{UtxoId: id})
	}
	if utxo.Spent {
		// spent units are immutable
		return errors.UTXO_ALREADY_SPENT.New("utxo %s was spent by %s", id, utxo.SpentBy).
			WithMetadata(errors.UtxoMetadata{UtxoId: id})
	}

	policy := domain.UpdatePolicyOracleSignatures
	rules, err := s.repoManager.Rules().GetTokenRules(ctx, utxo.TokenID)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if rules != nil {
		policy = rules.UpdatePolicy
	}

	msgHash := complianceUpdateHash(id, utxo.ComplianceHash, newHash)
	switch policy {
	case domain.UpdatePolicyOracleSignatures:
		if len(proof.OracleSigners) == 0 {
			return errors.INVALID_PROOF.New("token %s requires oracle signatures", utxo.TokenID)
		}
		if err := s.consensusSvc.ValidateOracleConsensus(
			ctx, proof.OracleSigners, proof.OracleSignatures, msgHash,
		); err != nil {
			return errors.INVALID_PROOF.Wrap(err)
		}
	case domain.UpdatePolicyZkProof:
		if proof.Proof == nil {
			return errors.INVALID_PROOF.New("token %s requires a zero-knowledge proof", utxo.TokenID)
		}
		valid, verr := s.proofSvc.VerifyCircuitProof(
			ctx, proof.Circuit, *proof.Proof, proof.PublicInputs,
		)
		if verr != nil {
			return errors.INVALID_PROOF.Wrap(verr)
		}
		if !valid {
			return errors.INVALID_PROOF.New("proof does not authorize the hash transition").
				WithMetadata(errors.ProofMetadata{
					CircuitId: string(proof.Circuit), PublicInputs: len(proof.PublicInputs),
				})
		}
	}

	now := time.Now().Unix()
	if err := s.repoManager.Utxos().UpdateComplianceHash(ctx, id, newHash, now); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}

	event := domain.ComplianceUpdated{
		Id:      id,
		Type:    domain.EventTypeComplianceUpdated,
		OldHash: utxo.ComplianceHash,
		NewHash: newHash,
	}
	if err := s.repoManager.Events().Save(
		ctx, domain.UtxoTopic, id, []domain.Event{event},
	); err != nil {
		log.WithError(err).Warn("failed to save compliance update event")
	}
	return nil
}

func (s *registryService) AggregateCompliance(utxos []domain.UTXO) domain.AggregatedCompliance {
	return domain.AggregateCompliance(utxos)
}

func (s *registryService) ValidateTransaction(
	ctx context.Context, inputIDs []string, outputs []domain.UTXO,
) (ValidationResult, error) {
	if len(inputIDs) == 0 {
		return invalid(ReasonUtxoNotFound, "transaction has no inputs"), nil
	}

	inputs := make([]domain.UTXO, 0, len(inputIDs))
	for _, id := range inputIDs {
		utxo, err := s.repoManager.Utxos().GetUtxo(ctx, id)
		if err != nil {
			return ValidationResult{}, err
		}
		if utxo == nil {
			return invalid(ReasonUtxoNotFound, fmt.Sprintf("input %s not found", id)), nil
		}
		if utxo.Spent {
			return invalid(ReasonAlreadySpent, fmt.Sprintf("input %s is already spent", id)), nil
		}
		validation, err := s.computeValidation(ctx, *utxo)
		if err != nil {
			return ValidationResult{}, err
		}
		if !validation.Valid {
			return invalid(ReasonComplianceInvalid,
				fmt.Sprintf("input %s is not compliant: %s", id, validation.Reason)), nil
		}
		inputs = append(inputs, *utxo)
	}

	agg := domain.AggregateCompliance(inputs)
	if agg.Blacklisted {
		return invalid(ReasonBlacklisted, "an input is blacklisted"), nil
	}
	if !agg.Whitelisted {
		return invalid(ReasonNotWhitelisted, "not all inputs are whitelisted"), nil
	}

	levels := make([]domain.ComplianceLevel, 0, len(inputs))
	for _, input := range inputs {
		levels = append(levels, domain.ComplianceLevel(input.WhitelistTier))
	}
	if _, ok, err := s.rulesEngine.AggregateComplianceLevels(
		ctx, inputs[0].TokenID, levels,
	); err != nil {
		return ValidationResult{}, err
	} else if !ok {
		return invalid(ReasonInsufficientLevel,
			"aggregated compliance level is outside the configured bounds"), nil
	}

	for i, output := range outputs {
		result, err := s.rulesEngine.ValidateMetadata(ctx, output)
		if err != nil {
			return ValidationResult{}, err
		}
		if !result.Valid {
			return invalid(result.Code,
				fmt.Sprintf("output %d rejected: %s", i, result.Reason)), nil
		}
		if !output.SatisfiesClaims(agg.SatisfiedClaims) {
			return invalid(ReasonInvalidClaims,
				fmt.Sprintf("output %d requires claims the inputs do not carry", i)), nil
		}
	}

	return valid(), nil
}

func (s *registryService) validationTTL(ctx context.Context) int64 {
	settings, err := s.repoManager.Settings().Get(ctx)
	if err != nil || settings == nil || settings.ValidationTTL <= 0 {
		return defaultValidationTTL
	}
	return settings.ValidationTTL
}
