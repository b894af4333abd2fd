// Package tutor runs the tutoring chat: learning-history aggregation, the
// per-user chat session, and the registry that owns those sessions.
package tutor

import (
	"context"
	"errors"

	"tutorgo/internal/models"
)

var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrMissingUser   = errors.New("user id is required")
	ErrEmptyResponse = errors.New("tutor returned an empty response")
	ErrSessionClosed = errors.New("chat session closed")
)

// LearningContext is the slice of learning history sent with each tutor call.
type LearningContext struct {
	Lessons       []models.Lesson          `json:"recentLessons"`
	Quizzes       []models.Quiz            `json:"recentQuizzes"`
	Conversations []models.ChatLog         `json:"recentConversations"`
	Tracks        []models.TrackMembership `json:"tracks,omitempty"`
}

// Request is what the tutor endpoint receives for one student message.
type Request struct {
	Message         string           `json:"message"`
	UserProfile     *models.Profile  `json:"userProfile"`
	TrackID         string           `json:"trackId"`
	StudentID       string           `json:"studentId"`
	LearningHistory LearningContext  `json:"learningHistory"`
	MessageHistory  []models.Message `json:"messageHistory"`
}

type Response struct {
	Text string `json:"response"`
}

// Endpoint answers a student message.
type Endpoint interface {
	Respond(ctx context.Context, req Request) (Response, error)
}

// HistoryStore reads the per-category learning records of a student.
type HistoryStore interface {
	RecentHomework(ctx context.Context, userID string, limit int) ([]models.Homework, error)
	RecentQuizzes(ctx context.Context, userID string, limit int) ([]models.Quiz, error)
	RecentLessons(ctx context.Context, userID string, limit int) ([]models.Lesson, error)
	RecentChatLogs(ctx context.Context, userID string, limit int) ([]models.ChatLog, error)
	ActiveTracks(ctx context.Context, userID string) ([]models.TrackMembership, error)
}

// ChatLogWriter persists student exchanges.
type ChatLogWriter interface {
	InsertChatLog(ctx context.Context, log models.ChatLog) error
	TrackSkills(ctx context.Context, trackID string) ([]models.Skill, error)
}

type Source string

const (
	SourceGreeting Source = "greeting"
	SourceCache    Source = "cache"
	SourceTutor    Source = "ai"
)

// Reply is the outcome of a successful SendMessage.
type Reply struct {
	UserMessage models.Message `json:"user_message"`
	Message     models.Message `json:"ai_message"`
	Source      Source         `json:"source"`
}
