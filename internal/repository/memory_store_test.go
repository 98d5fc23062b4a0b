package repository

import (
	"context"
	"testing"

	"Wonderland/internal/domain/models"
	domrepo "Wonderland/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJournalReadModels(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	_, err := j.LatestInsight(ctx)
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	for i, content := range []string{"first", "second"} {
		require.NoError(t, j.SaveInsight(ctx, &models.Insight{ID: string(rune('a' + i)), Content: content}))
		require.NoError(t, j.SaveAction(ctx, &models.PortfolioAction{ID: content}))
	}
	in, err := j.LatestInsight(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", in.Content)

	actions, err := j.RecentActions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "second", actions[0].ID)
}

func TestMemoryStoreInstructsAndTasks(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.AddInstruct(ctx, &models.Instruct{ID: "1", Kind: models.InstructMarket, Instruct: "bullish"}))
	require.NoError(t, s.AddInstruct(ctx, &models.Instruct{ID: "2", Kind: models.InstructTrading, Instruct: "keep 20% stable"}))

	in, err := s.LatestInstruct(ctx, models.InstructMarket)
	require.NoError(t, err)
	assert.Equal(t, "bullish", in.Instruct)

	require.NoError(t, s.SaveTask(ctx, models.TaskRecord{ID: "t1", Status: models.TaskRunning}))
	require.NoError(t, s.SaveTask(ctx, models.TaskRecord{ID: "t1", Status: models.TaskCompleted}))
	recs, err := s.RecentTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.TaskCompleted, recs[0].Status)
}
