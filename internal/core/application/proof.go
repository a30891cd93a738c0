package application

import (
	"context"
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
	"github.com/veridex-io/veridexd/pkg/errors"
)

const defaultProofCacheSize = 1024

type proofService struct {
	repoManager ports.RepoManager
	verifier    ports.PairingVerifier
	cache       *lru.Cache
}

func NewProofService(
	repoManager ports.RepoManager, verifier ports.PairingVerifier, cacheSize int,
) (ProofService, error) {
	if cacheSize <= 0 {
		cacheSize = defaultProofCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &proofService{
		repoManager: repoManager,
		verifier:    verifier,
		cache:       cache,
	}, nil
}

// VerifyProof is the stateless variant: failure returns false, never an
// error.
func (s *proofService) VerifyProof(
	verifyingKey []byte, proof domain.Proof, publicInputs [][]byte,
) bool {
	ok, err := s.verifier.Verify(verifyingKey, proof, publicInputs)
	if err != nil {
		log.WithError(err).Debug("proof verification rejected malformed input")
		return false
	}
	return ok
}

func (s *proofService) VerifyCircuitProof(
	ctx context.Context, circuitID domain.CircuitID, proof domain.Proof, publicInputs [][]byte,
) (bool, errors.Error) {
	circuit, err := s.repoManager.Circuits().GetCircuit(ctx, circuitID)
	if err != nil {
		return false, errors.INTERNAL_ERROR.Wrap(err)
	}
	if circuit == nil {
		return false, errors.UNKNOWN_CIRCUIT.New("no verifying key registered for %s", circuitID).
			WithMetadata(errors.CircuitMetadata{CircuitId: string(circuitID)})
	}

	if expected, err := circuitID.PublicInputLen(); err != nil {
		return false, errors.UNKNOWN_CIRCUIT.Wrap(err).
			WithMetadata(errors.CircuitMetadata{CircuitId: string(circuitID)})
	} else if len(publicInputs) != expected {
		return false, errors.INVALID_PROOF.New(
			"circuit %s expects %d public inputs, got %d",
			circuitID, expected, len(publicInputs),
		).WithMetadata(errors.ProofMetadata{
			CircuitId: string(circuitID), PublicInputs: len(publicInputs),
		})
	}

	// results are cached per (key, proof, inputs); replacing the
	// verifying key changes the cache key, so past verifications stay
	// untouched while new ones use the latest key
	cacheKey := proofCacheKey(circuit.VerifyingKey, proof, publicInputs)
	var valid bool
	if cached, ok := s.cache.Get(cacheKey); ok {
		valid = cached.(bool)
	} else {
		valid = s.VerifyProof(circuit.VerifyingKey, proof, publicInputs)
		s.cache.Add(cacheKey, valid)
	}

	if err := s.repoManager.Circuits().IncrementCounters(ctx, circuitID, valid); err != nil {
		return false, errors.INTERNAL_ERROR.Wrap(err)
	}

	event := domain.ProofVerified{
		Id:      cacheKey,
		Type:    domain.EventTypeProofVerified,
		Circuit: circuitID,
		Valid:   valid,
	}
	if err := s.repoManager.Events().Save(
		ctx, domain.ProofTopic, cacheKey, []domain.Event{event},
	); err != nil {
		log.WithError(err).Warn("failed to save proof verification event")
	}

	return valid, nil
}

func (s *proofService) GetCircuit(
	ctx context.Context, id domain.CircuitID,
) (*domain.Circuit, error) {
	return s.repoManager.Circuits().GetCircuit(ctx, id)
}

func proofCacheKey(verifyingKey []byte, proof domain.Proof, publicInputs [][]byte) string {
	h := sha256.New()
	h.Write(verifyingKey)
	h.Write(proof.A)
	h.Write(proof.B)
	h.Write(proof.C)
	for _, input := range publicInputs {
		h.Write(input)
	}
	return string(h.Sum(nil))
}
