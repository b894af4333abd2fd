package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Homework is a row of the homework table.
type Homework struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"student_id"`
	TrackID     string          `json:"track_id,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Difficulty  string          `json:"difficulty"`
	Status      string          `json:"status"`
	Grade       decimal.Decimal `json:"grade"`
	DueAt       *time.Time      `json:"due_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Quiz is a row of the quizzes table.
type Quiz struct {
	ID             string          `json:"id"`
	StudentID      string          `json:"student_id"`
	TrackID        string          `json:"track_id,omitempty"`
	Topic          string          `json:"topic"`
	Score          decimal.Decimal `json:"score"`
	TotalQuestions int             `json:"total_questions"`
	Questions      []QuizQuestion  `json:"questions,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Lesson is a row of the lessons table.
type Lesson struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	TrackID   string    `json:"track_id,omitempty"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// TrackMembership is an active student_tracks row joined with its track.
type TrackMembership struct {
	TrackID   string    `json:"track_id"`
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Active    bool      `json:"active"`
	JoinedAt  time.Time `json:"joined_at"`
}

// ChatLog is one persisted tutor exchange. Append-only.
type ChatLog struct {
	ID              string    `json:"id"`
	StudentID       string    `json:"student_id"`
	TrackID         string    `json:"track_id,omitempty"`
	Message         string    `json:"message"`
	Response        string    `json:"response"`
	SkillsAddressed []string  `json:"skills_addressed"`
	CreatedAt       time.Time `json:"created_at"`
}

type Skill struct {
	ID      string `json:"id"`
	TrackID string `json:"track_id"`
	Name    string `json:"name"`
}

// LearningHistory is the bounded, recency-ordered view of a student's activity.
// It is replaced wholesale on refetch.
type LearningHistory struct {
	Homework            []Homework        `json:"homework"`
	Quizzes             []Quiz            `json:"quizzes"`
	Lessons             []Lesson          `json:"lessons"`
	Tracks              []TrackMembership `json:"tracks"`
	RecentConversations []ChatLog         `json:"recentConversations"`
}
