package livestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veridex-io/veridexd/internal/core/domain"
	"github.com/veridex-io/veridexd/internal/core/ports"
	inmemorylivestore "github.com/veridex-io/veridexd/internal/infrastructure/live-store/inmemory"
)

func TestLiveStore(t *testing.T) {
	stores := []struct {
		name  string
		store ports.LiveStore
	}{
		{name: "inmemory", store: inmemorylivestore.NewLiveStore()},
	}

	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			testConsensusSessionsStore(t, tt.store.ConsensusSessions())
		})
	}
}

func testConsensusSessionsStore(t *testing.T, store ports.ConsensusSessionsStore) {
	ctx := context.Background()

	query := domain.NewConsensusQuery("subject-1", domain.QueryTypeWhitelist, []byte("data"))
	require.NoError(t, store.Open(ctx, *query))

	t.Run("duplicate_open_rejected", func(t *testing.T) {
		require.Error(t, store.Open(ctx, *query))
	})

	t.Run("get", func(t *testing.T) {
		got, err := store.Get(ctx, query.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, query.Subject, got.Subject)
		require.Equal(t, query.Data, got.Data)

		missing, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		require.Nil(t, missing)
	})

	t.Run("get_open_by_subject_and_type", func(t *testing.T) {
		got, err := store.GetOpen(ctx, "subject-1", domain.QueryTypeWhitelist)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, query.ID, got.ID)

		none, err := store.GetOpen(ctx, "subject-1", domain.QueryTypeBlacklist)
		require.NoError(t, err)
		require.Nil(t, none)

		none, err = store.GetOpen(ctx, "subject-2", domain.QueryTypeWhitelist)
		require.NoError(t, err)
		require.Nil(t, none)
	})

	t.Run("record_attestation", func(t *testing.T) {
		attestation := domain.Attestation{
			OracleID:  "oracle-1",
			Result:    true,
			Signature: "sig",
			Timestamp: time.Now().Unix(),
		}
		require.NoError(t, store.RecordAttestation(ctx, query.ID, attestation))

		// a resubmission replaces the previous answer
		attestation.Result = false
		require.NoError(t, store.RecordAttestation(ctx, query.ID, attestation))

		got, err := store.Get(ctx, query.ID)
		require.NoError(t, err)
		require.Len(t, got.Attestations, 1)
		require.False(t, got.Attestations["oracle-1"].Result)

		require.Error(t, store.RecordAttestation(ctx, "missing", attestation))
	})

	t.Run("get_all_open", func(t *testing.T) {
		other := domain.NewConsensusQuery("subject-2", domain.QueryTypeBlacklist, nil)
		require.NoError(t, store.Open(ctx, *other))

		open, err := store.GetAllOpen(ctx)
		require.NoError(t, err)
		require.Len(t, open, 2)

		require.NoError(t, store.Delete(ctx, other.ID))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, query.ID))

		got, err := store.Get(ctx, query.ID)
		require.NoError(t, err)
		require.Nil(t, got)

		// deleting an absent query is a no-op
		require.NoError(t, store.Delete(ctx, query.ID))
	})
}
