package application

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
	"github.com/veridex-io/veridexd/pkg/errors"
)

const (
	defaultConsensusThreshold = 3
	defaultFreshnessWindow    = int64(3600)

	// reputation deltas applied on resolution
	reputationReward  = 1
	reputationPenalty = 2
)

type consensusService struct {
	repoManager ports.RepoManager
	liveStore   ports.LiveStore
}

func NewConsensusService(
	repoManager ports.RepoManager, liveStore ports.LiveStore,
) ConsensusService {
	return &consensusService{
		repoManager: repoManager,
		liveStore:   liveStore,
	}
}

func (s *consensusService) SubmitQuery(
	ctx context.Context, subject string, queryType domain.QueryType, data []byte,
) (string, errors.Error) {
	open, err := s.liveStore.ConsensusSessions().GetOpen(ctx, subject, queryType)
	if err != nil {
		return "", errors.INTERNAL_ERROR.Wrap(err)
	}
	// re-submitting while a query is collecting is idempotent
	if open != nil {
		return open.ID, nil
	}

	query := domain.NewConsensusQuery(subject, queryType, data)
	if err := s.liveStore.ConsensusSessions().Open(ctx, *query); err != nil {
		return "", errors.INTERNAL_ERROR.Wrap(err)
	}

	log.WithFields(log.Fields{
		"query":   query.ID,
		"subject": subject,
		"type":    queryType.String(),
	}).Debug("opened consensus query")
	return query.ID, nil
}

func (s *consensusService) SubmitAttestation(
	ctx context.Context, queryID, oracleID string, result bool, signature string, timestamp int64,
) errors.Error {
	query, err := s.liveStore.ConsensusSessions().Get(ctx, queryID)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if query == nil {
		resolved, err := s.repoManager.Consensus().GetQuery(ctx, queryID)
		if err != nil {
			return errors.INTERNAL_ERROR.Wrap(err)
		}
		if resolved != nil {
			return errors.QUERY_ALREADY_RESOLVED.New(
				"query %s is already resolved", queryID,
			).WithMetadata(errors.ConsensusMetadata{
				QueryId: queryID, Subject: resolved.Subject,
			})
		}
		return errors.QUERY_NOT_FOUND.New("no open query with id %s", queryID).
			WithMetadata(errors.ConsensusMetadata{QueryId: queryID})
	}

	oracle, err := s.repoManager.Oracles().GetOracle(ctx, oracleID)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if oracle == nil {
		return errors.ORACLE_NOT_FOUND.New("oracle %s is not registered", oracleID).
			WithMetadata(errors.OracleMetadata{OracleId: oracleID})
	}
	if !oracle.Active {
		return errors.ORACLE_NOT_ACTIVE.New("oracle %s is not active", oracleID).
			WithMetadata(errors.OracleMetadata{OracleId: oracleID})
	}

	msgHash := query.AttestationHash(result)
	if err := verifySchnorrSignature(oracleID, signature, msgHash); err != nil {
		return errors.BAD_SIGNATURE.Wrap(err).WithMetadata(errors.SignatureMetadata{
			Signer: oracleID, Message: fmt.Sprintf("%x", msgHash),
		})
	}

	attestation := domain.Attestation{
		OracleID:  oracleID,
		Result:    result,
		Signature: signature,
		Timestamp: timestamp,
	}
	if err := s.liveStore.ConsensusSessions().RecordAttestation(ctx, queryID, attestation); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}

	oracle.AttestationsSubmitted++
	if err := s.repoManager.Oracles().UpdateOracle(ctx, *oracle); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}

	return s.tryResolve(ctx, queryID)
}

func (s *consensusService) tryResolve(ctx context.Context, queryID string) errors.Error {
	query, err := s.liveStore.ConsensusSessions().Get(ctx, queryID)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if query == nil {
		return nil
	}

	counting, threshold, err := s.countingOracles(ctx)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}

	counts := func(oracleID string) bool {
		_, ok := counting[oracleID]
		return ok
	}
	if !query.TryResolve(threshold, counts) {
		return nil
	}

	if err := s.repoManager.Consensus().AddQuery(ctx, *query); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if err := s.liveStore.ConsensusSessions().Delete(ctx, queryID); err != nil {
		log.WithError(err).Warn("failed to drop resolved query from live store")
	}

	s.adjustReputations(ctx, query)

	event := domain.QueryResolved{
		Id:      query.ID,
		Type:    domain.EventTypeQueryResolved,
		Subject: query.Subject,
		Query:   query.Type,
		Result:  *query.Result,
		Signers: query.Signers,
	}
	if err := s.repoManager.Events().Save(
		ctx, domain.ConsensusTopic, query.ID, []domain.Event{event},
	); err != nil {
		log.WithError(err).Warn("failed to save query resolution event")
	}

	log.WithFields(log.Fields{
		"query":   query.ID,
		"subject": query.Subject,
		"result":  *query.Result,
		"signers": len(query.Signers),
	}).Info("consensus reached")
	return nil
}

// adjustReputations rewards oracles that agreed with the fixed result and
// penalizes those that disagreed.
func (s *consensusService) adjustReputations(ctx context.Context, query *domain.ConsensusQuery) {
	for oracleID, attestation := range query.Attestations {
		oracle, err := s.repoManager.Oracles().GetOracle(ctx, oracleID)
		if err != nil || oracle == nil {
			continue
		}
		if attestation.Result == *query.Result {
			oracle.Reputation += reputationReward
			oracle.AttestationsAgreed++
		} else {
			oracle.Reputation -= reputationPenalty
		}
		if err := s.repoManager.Oracles().UpdateOracle(ctx, *oracle); err != nil {
			log.WithError(err).Warnf("failed to update reputation for oracle %s", oracleID)
		}
	}
}

func (s *consensusService) CheckConsensus(
	ctx context.Context, queryID string,
) (*domain.ConsensusQuery, error) {
	query, err := s.liveStore.ConsensusSessions().Get(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if query != nil {
		return query, nil
	}
	return s.repoManager.Consensus().GetQuery(ctx, queryID)
}

func (s *consensusService) ValidateOracleConsensus(
	ctx context.Context, oracleIDs, signatures []string, messageHash [32]byte,
) errors.Error {
	if len(oracleIDs) != len(signatures) {
		return errors.BAD_SIGNATURE.New(
			"got %d signatures for %d oracles", len(signatures), len(oracleIDs),
		)
	}
	for i, oracleID := range oracleIDs {
		oracle, err := s.repoManager.Oracles().GetOracle(ctx, oracleID)
		if err != nil {
			return errors.INTERNAL_ERROR.Wrap(err)
		}
		if oracle == nil {
			return errors.ORACLE_NOT_FOUND.New("oracle %s is not registered", oracleID).
				WithMetadata(errors.OracleMetadata{OracleId: oracleID})
		}
		if err := verifySchnorrSignature(oracleID, signatures[i], messageHash); err != nil {
			// a single bad signer rejects the whole call
			return errors.BAD_SIGNATURE.Wrap(err).WithMetadata(errors.SignatureMetadata{
				Signer: oracleID, Message: fmt.Sprintf("%x", messageHash),
			})
		}
	}
	return nil
}

func (s *consensusService) GetOracleValidation(
	ctx context.Context, subject string,
) (*domain.OracleValidation, errors.Error) {
	_, threshold, window, err := s.consensusSettings(ctx)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}

	whitelist, err := s.repoManager.Consensus().GetLatestResolved(
		ctx, subject, domain.QueryTypeWhitelist,
	)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	blacklist, err := s.repoManager.Consensus().GetLatestResolved(
		ctx, subject, domain.QueryTypeBlacklist,
	)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	// no consensus has ever been resolved for this subject: callers fall
	// back to the metadata flags
	if whitelist == nil && blacklist == nil {
		return nil, nil
	}

	now := time.Now().Unix()
	validation := &domain.OracleValidation{ComputedAt: now}
	for _, query := range []*domain.ConsensusQuery{whitelist, blacklist} {
		if query == nil {
			continue
		}
		if window > 0 && now-query.ResolvedAt > window {
			return nil, errors.ORACLE_CONSENSUS_FAILED.New(
				"consensus snapshot for subject %s is stale, re-resolution required", subject,
			).WithMetadata(errors.ConsensusMetadata{
				QueryId: query.ID, Subject: subject, Threshold: threshold,
			})
		}
		if query.ResolvedAt < validation.ComputedAt {
			validation.ComputedAt = query.ResolvedAt
		}
		if len(query.Signers) > validation.ConsensusCount {
			validation.ConsensusCount = len(query.Signers)
			validation.Signers = query.Signers
		}
	}

	if whitelist != nil {
		validation.Whitelisted = *whitelist.Result
	}
	if blacklist != nil {
		validation.Blacklisted = *blacklist.Result
	}
	// blacklisted dominates
	if validation.Blacklisted {
		validation.Whitelisted = false
	}
	return validation, nil
}

func (s *consensusService) IsUnresolvable(ctx context.Context, queryID string) (bool, error) {
	query, err := s.liveStore.ConsensusSessions().Get(ctx, queryID)
	if err != nil {
		return false, err
	}
	if query == nil {
		return false, nil
	}
	counting, threshold, err := s.countingOracles(ctx)
	if err != nil {
		return false, err
	}
	return query.Unresolvable(len(counting), threshold), nil
}

// countingOracles returns the set of oracles whose attestations count
// towards consensus, together with the configured threshold.
func (s *consensusService) countingOracles(
	ctx context.Context,
) (map[string]struct{}, int, error) {
	oracles, err := s.repoManager.Oracles().GetActiveOracles(ctx)
	if err != nil {
		return nil, 0, err
	}
	counting := make(map[string]struct{})
	for _, oracle := range oracles {
		if oracle.CountsForConsensus() {
			counting[oracle.ID] = struct{}{}
		}
	}
	_, threshold, _, err := s.consensusSettings(ctx)
	if err != nil {
		return nil, 0, err
	}
	return counting, threshold, nil
}

func (s *consensusService) consensusSettings(
	ctx context.Context,
) (*domain.Settings, int, int64, error) {
	settings, err := s.repoManager.Settings().Get(ctx)
	if err != nil {
		return nil, 0, 0, err
	}
	threshold := defaultConsensusThreshold
	window := defaultFreshnessWindow
	if settings != nil {
		if settings.ConsensusThreshold > 0 {
			threshold = settings.ConsensusThreshold
		}
		if settings.FreshnessWindow > 0 {
			window = settings.FreshnessWindow
		}
	}
	return settings, threshold, window, nil
}
