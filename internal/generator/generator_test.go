package generator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tutorgo/internal/config"
	"tutorgo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (f *scriptedLLM) Complete(_ context.Context, _, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, user)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return f.replies[len(f.replies)-1], nil
}

type memStore struct {
	decks    int
	quizzes  int
	homework []models.HomeworkTask
	fail     bool
}

func (m *memStore) SaveFlashcardSet(context.Context, string, string, string, []models.Flashcard) (string, error) {
	if m.fail {
		return "", errors.New("db down")
	}
	m.decks++
	return "deck-1", nil
}

func (m *memStore) SaveQuiz(context.Context, string, string, string, []models.QuizQuestion) (string, error) {
	if m.fail {
		return "", errors.New("db down")
	}
	m.quizzes++
	return "quiz-1", nil
}

func (m *memStore) SaveHomework(_ context.Context, _, _ string, tasks []models.HomeworkTask, _ *time.Time) ([]string, error) {
	if m.fail {
		return nil, errors.New("db down")
	}
	m.homework = append(m.homework, tasks...)
	return []string{"hw-1"}, nil
}

type countingInvalidator struct{ users []string }

func (c *countingInvalidator) InvalidateHistory(_ context.Context, userID string) {
	c.users = append(c.users, userID)
}

func newTestService(llm Completer, store Store, inv Invalidator) *Service {
	s := New(llm, store, inv, config.RetryConfig{MaxAttempts: 3, InitialBackoffMs: 1, MaxBackoffMs: 2}, nil)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func TestFlashcardsParsesFencedJSON(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Here you go:\n```json\n" +
		`{"success": true, "flashcards": [{"id": "f1", "front": "H2O", "back": "water"}, {"front": "NaCl", "back": "salt"}, {"front": "", "back": "skip"}]}` +
		"\n```"}}
	svc := newTestService(llm, nil, nil)

	res, err := svc.Flashcards(context.Background(), Request{Topic: "chemistry", Count: 5})
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "f1", res.Items[0].ID)
	assert.NotEmpty(t, res.Items[1].ID, "missing ids are synthesized")
	assert.Contains(t, llm.prompts[0], "Create 5 flashcards")
}

func TestMalformedJSONYieldsSingleFallback(t *testing.T) {
	llm := &scriptedLLM{replies: []string{`{"success": true, "questions": [ {"question": "oops"`}}
	svc := newTestService(llm, nil, nil)

	res, err := svc.Quiz(context.Background(), Request{Topic: "fractions"})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	require.Len(t, res.Items, 1)
	assert.Contains(t, res.Items[0].Explanation, "could not be parsed")
	assert.NotEmpty(t, res.Items[0].ID)
	assert.Equal(t, 1, llm.calls, "parse failures are not retried")
}

func TestSuccessFalseYieldsFallback(t *testing.T) {
	llm := &scriptedLLM{replies: []string{`{"success": false, "tasks": []}`}}
	svc := newTestService(llm, &memStore{}, nil)

	res, err := svc.Homework(context.Background(), Request{Topic: "essays", Persist: true, UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "medium", res.Items[0].Difficulty)
	assert.Empty(t, res.SavedIDs, "fallback items are never persisted")
}

func TestModelErrorsAreRetriedThenReturned(t *testing.T) {
	boom := errors.New("503 from provider")
	llm := &scriptedLLM{
		errs:    []error{boom, boom},
		replies: []string{"", "", `{"success": true, "flashcards": [{"front": "a", "back": "b"}]}`},
	}
	svc := newTestService(llm, nil, nil)
	res, err := svc.Flashcards(context.Background(), Request{Topic: "x"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Equal(t, 3, llm.calls)

	failing := &scriptedLLM{errs: []error{boom, boom, boom}, replies: []string{""}}
	svc = newTestService(failing, nil, nil)
	_, err = svc.Flashcards(context.Background(), Request{Topic: "x"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, failing.calls)
}

func TestPersistInvalidatesHistory(t *testing.T) {
	llm := &scriptedLLM{replies: []string{`{"success": true, "tasks": [{"title": "Read chapter 3", "description": "and summarise"}]}`}}
	store := &memStore{}
	inv := &countingInvalidator{}
	svc := newTestService(llm, store, inv)

	res, err := svc.Homework(context.Background(), Request{Topic: "history", Difficulty: "HARD", Persist: true, UserID: "u1", TrackID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"hw-1"}, res.SavedIDs)
	require.Len(t, store.homework, 1)
	assert.Equal(t, "hard", store.homework[0].Difficulty)
	assert.Equal(t, []string{"u1"}, inv.users)
}

func TestPersistFailureIsNotFatal(t *testing.T) {
	llm := &scriptedLLM{replies: []string{`{"success": true, "questions": [{"question": "2+2?", "options": ["3", "4"], "correct_answer": "4"}]}`}}
	inv := &countingInvalidator{}
	svc := newTestService(llm, &memStore{fail: true}, inv)

	res, err := svc.Quiz(context.Background(), Request{Topic: "arithmetic", Persist: true, UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Len(t, res.Items, 1)
	assert.Empty(t, res.SavedIDs)
	assert.Empty(t, inv.users)
}

func TestRequestNormalization(t *testing.T) {
	_, err := Request{}.normalized()
	require.ErrorIs(t, err, ErrNoInput)

	req, err := Request{SourceText: "notes", Count: 99, Difficulty: "impossible"}.normalized()
	require.NoError(t, err)
	assert.Equal(t, config.MaxGenerateCount, req.Count)
	assert.Equal(t, "medium", req.Difficulty)
	assert.Equal(t, "uploaded notes", req.Topic)
}

func TestExtractJSON(t *testing.T) {
	got, err := extractJSON("sure! {\"a\": {\"b\": 1}} hope that helps")
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	_, err = extractJSON("no braces here")
	assert.Error(t, err)
}
