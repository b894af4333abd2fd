package tutor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorMergesCategories(t *testing.T) {
	store := &fakeStore{lessons: 12, quizzes: 4, logs: 25}
	agg := NewAggregator(store, nil, Limits{}, nil)

	h, err := agg.Fetch(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Len(t, h.Homework, 1, "rows without ids are dropped")
	assert.Len(t, h.Lessons, 10)
	assert.Len(t, h.Quizzes, 4)
	assert.Len(t, h.RecentConversations, 20)
	require.Len(t, h.Tracks, 1)
	assert.Equal(t, "Algebra", h.Tracks[0].Name)
}

func TestAggregatorToleratesCategoryFailure(t *testing.T) {
	store := &fakeStore{lessons: 2, quizzes: 2, logs: 2, fail: map[string]error{
		"quizzes": errors.New("timeout"),
		"tracks":  errors.New("permission denied"),
	}}
	agg := NewAggregator(store, nil, Limits{}, nil)

	h, err := agg.Fetch(context.Background(), "student-1")
	require.NoError(t, err)
	assert.NotNil(t, h.Quizzes)
	assert.Empty(t, h.Quizzes)
	assert.Empty(t, h.Tracks)
	assert.Len(t, h.Lessons, 2)
	assert.Len(t, h.RecentConversations, 2)
}

func TestAggregatorRequiresUser(t *testing.T) {
	inbox := NewInbox(4)
	agg := NewAggregator(&fakeStore{}, inbox, Limits{}, nil)

	h, err := agg.Fetch(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingUser)
	assert.Nil(t, h)
	assert.Len(t, inbox.Drain(""), 1)
}

func TestAggregatorHonoursLimits(t *testing.T) {
	store := &fakeStore{lessons: 10, quizzes: 10, logs: 10}
	agg := NewAggregator(store, nil, Limits{Lessons: 2, Quizzes: 3, ChatLogs: 4}, nil)
	h, err := agg.Fetch(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Len(t, h.Lessons, 2)
	assert.Len(t, h.Quizzes, 3)
	assert.Len(t, h.RecentConversations, 4)
}
