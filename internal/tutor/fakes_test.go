package tutor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tutorgo/internal/models"
)

type fakeStore struct {
	calls   atomic.Int32
	fail    map[string]error
	lessons int
	quizzes int
	logs    int
}

func (f *fakeStore) err(category string) error {
	if f.fail == nil {
		return nil
	}
	return f.fail[category]
}

func (f *fakeStore) RecentHomework(_ context.Context, userID string, limit int) ([]models.Homework, error) {
	f.calls.Add(1)
	if err := f.err("homework"); err != nil {
		return nil, err
	}
	return []models.Homework{{ID: "h1", StudentID: userID, Title: "essay"}, {ID: "", Title: "broken"}}, nil
}

func (f *fakeStore) RecentQuizzes(_ context.Context, userID string, limit int) ([]models.Quiz, error) {
	if err := f.err("quizzes"); err != nil {
		return nil, err
	}
	return build(min(f.quizzes, limit), func(i int) models.Quiz {
		return models.Quiz{ID: fmt.Sprintf("q%d", i), StudentID: userID, Topic: "topic"}
	}), nil
}

func (f *fakeStore) RecentLessons(_ context.Context, userID string, limit int) ([]models.Lesson, error) {
	if err := f.err("lessons"); err != nil {
		return nil, err
	}
	return build(min(f.lessons, limit), func(i int) models.Lesson {
		return models.Lesson{ID: fmt.Sprintf("l%d", i), StudentID: userID, Title: "lesson"}
	}), nil
}

func (f *fakeStore) RecentChatLogs(_ context.Context, userID string, limit int) ([]models.ChatLog, error) {
	if err := f.err("chat_logs"); err != nil {
		return nil, err
	}
	return build(min(f.logs, limit), func(i int) models.ChatLog {
		return models.ChatLog{ID: fmt.Sprintf("c%d", i), StudentID: userID}
	}), nil
}

func (f *fakeStore) ActiveTracks(_ context.Context, userID string) ([]models.TrackMembership, error) {
	if err := f.err("tracks"); err != nil {
		return nil, err
	}
	return []models.TrackMembership{{TrackID: "algebra", StudentID: userID, Name: "Algebra", Active: true}}, nil
}

func build[T any](n int, fn func(int) T) []T {
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fn(i))
	}
	return out
}

type fakeEndpoint struct {
	mu       sync.Mutex
	calls    int
	requests []Request
	respond  func(ctx context.Context, req Request) (Response, error)
}

func (f *fakeEndpoint) Respond(ctx context.Context, req Request) (Response, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	fn := f.respond
	f.mu.Unlock()
	if fn == nil {
		return Response{Text: "answer to " + req.Message}, nil
	}
	return fn(ctx, req)
}

func (f *fakeEndpoint) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeEndpoint) Last() Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeLogs struct {
	mu     sync.Mutex
	rows   []models.ChatLog
	skills []models.Skill
	fail   bool
}

func (f *fakeLogs) InsertChatLog(_ context.Context, log models.ChatLog) error {
	if f.fail {
		return errors.New("insert failed")
	}
	f.mu.Lock()
	f.rows = append(f.rows, log)
	f.mu.Unlock()
	return nil
}

func (f *fakeLogs) TrackSkills(_ context.Context, trackID string) ([]models.Skill, error) {
	return f.skills, nil
}

func (f *fakeLogs) Rows() []models.ChatLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ChatLog(nil), f.rows...)
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

var (
	student = &models.Profile{ID: "student-1", Username: "sam", Role: models.CapabilityStudent}
	tutorP  = &models.Profile{ID: "tutor-1", Username: "tess", Role: models.CapabilityTutor}
)
