package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/pkg/errors"
)

func TestVerifyCircuitProof(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t)

	proof := domain.Proof{A: []byte{1}, B: []byte{2}, C: []byte{3}}
	input := [][]byte{{42}}

	t.Run("unknown_circuit", func(t *testing.T) {
		_, err := svc.proofs.VerifyCircuitProof(ctx, "no-such-circuit", proof, input)
		require.Error(t, err)
		require.Equal(t, errors.UNKNOWN_CIRCUIT.Code, err.Code())
	})

	t.Run("no_verifying_key_registered", func(t *testing.T) {
		_, err := svc.proofs.VerifyCircuitProof(ctx, domain.CircuitWhitelistMembership, proof, input)
		require.Error(t, err)
		require.Equal(t, errors.UNKNOWN_CIRCUIT.Code, err.Code())
	})

	require.NoError(t, svc.admin.SetVerifyingKey(
		ctx, domain.CircuitWhitelistMembership, []byte("vk-1"),
	))

	t.Run("wrong_public_input_arity", func(t *testing.T) {
		_, err := svc.proofs.VerifyCircuitProof(
			ctx, domain.CircuitWhitelistMembership, proof, [][]byte{{1}, {2}},
		)
		require.Error(t, err)
		require.Equal(t, errors.INVALID_PROOF.Code, err.Code())
	})

	t.Run("valid_proof_counted", func(t *testing.T) {
		valid, err := svc.proofs.VerifyCircuitProof(
			ctx, domain.CircuitWhitelistMembership, proof, input,
		)
		require.NoError(t, err)
		require.True(t, valid)
		require.Equal(t, 1, svc.verifier.callCount())

		circuit, gerr := svc.proofs.GetCircuit(ctx, domain.CircuitWhitelistMembership)
		require.NoError(t, gerr)
		require.EqualValues(t, 1, circuit.TotalVerified)
		require.EqualValues(t, 1, circuit.TotalValid)
	})

	t.Run("repeat_verification_served_from_cache", func(t *testing.T) {
		valid, err := svc.proofs.VerifyCircuitProof(
			ctx, domain.CircuitWhitelistMembership, proof, input,
		)
		require.NoError(t, err)
		require.True(t, valid)
		// the pairing check did not run again
		require.Equal(t, 1, svc.verifier.callCount())

		// audit counters still advance on cached results
		circuit, gerr := svc.proofs.GetCircuit(ctx, domain.CircuitWhitelistMembership)
		require.NoError(t, gerr)
		require.EqualValues(t, 2, circuit.TotalVerified)
	})

	t.Run("key_replacement_invalidates_cache", func(t *testing.T) {
		require.NoError(t, svc.admin.SetVerifyingKey(
			ctx, domain.CircuitWhitelistMembership, []byte("vk-2"),
		))

		valid, err := svc.proofs.VerifyCircuitProof(
			ctx, domain.CircuitWhitelistMembership, proof, input,
		)
		require.NoError(t, err)
		require.True(t, valid)
		require.Equal(t, 2, svc.verifier.callCount())

		// audit totals survive the key rotation
		circuit, gerr := svc.proofs.GetCircuit(ctx, domain.CircuitWhitelistMembership)
		require.NoError(t, gerr)
		require.EqualValues(t, 3, circuit.TotalVerified)
	})
}

func TestVerifyProofStateless(t *testing.T) {
	svc := newTestServices(t)
	proof := domain.Proof{A: []byte{1}, B: []byte{2}, C: []byte{3}}

	require.True(t, svc.proofs.VerifyProof([]byte("vk"), proof, [][]byte{{1}}))

	// malformed input surfaces as false, never as an error
	svc.verifier.ok = false
	svc.verifier.err = errors.INVALID_PROOF.New("malformed point")
	require.False(t, svc.proofs.VerifyProof([]byte("vk"), proof, [][]byte{{1}}))
}
