package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

func TestSweeper(t *testing.T) {
	ctx := context.Background()

	t.Run("drops_unreachable_queries", func(t *testing.T) {
		svc := newTestServices(t)
		// default threshold is 3 and only one counting oracle exists
		registerOracles(t, svc.repo, 1)

		queryID, err := svc.consensus.SubmitQuery(ctx, "subject", domain.QueryTypeWhitelist, nil)
		require.NoError(t, err)

		scheduler := &fakeScheduler{}
		sweeper := NewSweeper(svc.repo, svc.liveStore, scheduler, svc.consensus, time.Minute, 0)
		require.NoError(t, sweeper.Start())
		require.True(t, scheduler.started)

		scheduler.runAll()

		query, getErr := svc.liveStore.ConsensusSessions().Get(ctx, queryID)
		require.NoError(t, getErr)
		require.Nil(t, query)

		sweeper.Stop()
		require.True(t, scheduler.stopped)
	})

	t.Run("drops_expired_queries", func(t *testing.T) {
		svc := newTestServices(t)
		registerOracles(t, svc.repo, 3)

		query := domain.NewConsensusQuery("subject", domain.QueryTypeWhitelist, nil)
		query.CreatedAt = time.Now().Unix() - 7200
		require.NoError(t, svc.liveStore.ConsensusSessions().Open(ctx, *query))

		scheduler := &fakeScheduler{}
		sweeper := NewSweeper(svc.repo, svc.liveStore, scheduler, svc.consensus, time.Minute, time.Hour)
		require.NoError(t, sweeper.Start())
		scheduler.runAll()

		swept, err := svc.liveStore.ConsensusSessions().Get(ctx, query.ID)
		require.NoError(t, err)
		require.Nil(t, swept)
	})

	t.Run("keeps_reachable_recent_queries", func(t *testing.T) {
		svc := newTestServices(t)
		registerOracles(t, svc.repo, 3)

		queryID, err := svc.consensus.SubmitQuery(ctx, "subject", domain.QueryTypeWhitelist, nil)
		require.NoError(t, err)

		scheduler := &fakeScheduler{}
		sweeper := NewSweeper(svc.repo, svc.liveStore, scheduler, svc.consensus, time.Minute, time.Hour)
		require.NoError(t, sweeper.Start())
		scheduler.runAll()

		query, getErr := svc.liveStore.ConsensusSessions().Get(ctx, queryID)
		require.NoError(t, getErr)
		require.NotNil(t, query)
	})
}
