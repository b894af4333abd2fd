package learning

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"tutorgo/internal/models"
)

// RecentHomework returns the student's newest homework rows.
func (s *Service) RecentHomework(ctx context.Context, userID string, limit int) ([]models.Homework, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, student_id, track_id, title, description, difficulty, status, grade, due_at, created_at
		FROM homework WHERE student_id = ? ORDER BY created_at DESC LIMIT ?`),
		userID, clampLimit(limit, 10))
	if err != nil {
		return nil, fmt.Errorf("query homework: %w", err)
	}
	defer rows.Close()

	var out []models.Homework
	for rows.Next() {
		var h models.Homework
		var due sql.NullTime
		if err := rows.Scan(&h.ID, &h.StudentID, &h.TrackID, &h.Title, &h.Description, &h.Difficulty, &h.Status, &h.Grade, &due, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan homework: %w", err)
		}
		if due.Valid {
			t := due.Time
			h.DueAt = &t
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// RecentQuizzes returns the student's newest quiz rows.
func (s *Service) RecentQuizzes(ctx context.Context, userID string, limit int) ([]models.Quiz, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, student_id, track_id, topic, score, total_questions, questions, created_at
		FROM quizzes WHERE student_id = ? ORDER BY created_at DESC LIMIT ?`),
		userID, clampLimit(limit, 10))
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}
	defer rows.Close()

	var out []models.Quiz
	for rows.Next() {
		var qz models.Quiz
		var questions string
		if err := rows.Scan(&qz.ID, &qz.StudentID, &qz.TrackID, &qz.Topic, &qz.Score, &qz.TotalQuestions, &questions, &qz.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		if qz.Questions, err = decodeJSON[models.QuizQuestion](questions); err != nil {
			slog.Warn("quiz questions unreadable", "quiz_id", qz.ID, "error", err)
		}
		out = append(out, qz)
	}
	return out, rows.Err()
}

// RecentLessons returns the student's newest lessons.
func (s *Service) RecentLessons(ctx context.Context, userID string, limit int) ([]models.Lesson, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, student_id, track_id, title, summary, created_at
		FROM lessons WHERE student_id = ? ORDER BY created_at DESC LIMIT ?`),
		userID, clampLimit(limit, 10))
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	var out []models.Lesson
	for rows.Next() {
		var l models.Lesson
		if err := rows.Scan(&l.ID, &l.StudentID, &l.TrackID, &l.Title, &l.Summary, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// RecentChatLogs returns the student's newest persisted tutor exchanges.
func (s *Service) RecentChatLogs(ctx context.Context, userID string, limit int) ([]models.ChatLog, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, student_id, track_id, message, response, skills_addressed, created_at
		FROM chat_logs WHERE student_id = ? ORDER BY created_at DESC LIMIT ?`),
		userID, clampLimit(limit, 20))
	if err != nil {
		return nil, fmt.Errorf("query chat logs: %w", err)
	}
	defer rows.Close()

	var out []models.ChatLog
	for rows.Next() {
		var c models.ChatLog
		var skills string
		if err := rows.Scan(&c.ID, &c.StudentID, &c.TrackID, &c.Message, &c.Response, &skills, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat log: %w", err)
		}
		if c.SkillsAddressed, err = decodeJSON[string](skills); err != nil {
			slog.Warn("chat log skills unreadable", "chat_log_id", c.ID, "error", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ActiveTracks returns the student's active track memberships, newest first.
func (s *Service) ActiveTracks(ctx context.Context, userID string) ([]models.TrackMembership, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT st.track_id, st.student_id, t.name, t.subject, st.active, st.joined_at
		FROM student_tracks st JOIN tracks t ON t.id = st.track_id
		WHERE st.student_id = ? AND st.active = ?
		ORDER BY st.joined_at DESC`),
		userID, true)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var out []models.TrackMembership
	for rows.Next() {
		var m models.TrackMembership
		if err := rows.Scan(&m.TrackID, &m.StudentID, &m.Name, &m.Subject, &m.Active, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TrackSkills lists the skills defined for a track.
func (s *Service) TrackSkills(ctx context.Context, trackID string) ([]models.Skill, error) {
	if trackID == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, track_id, name FROM skills WHERE track_id = ? ORDER BY name`), trackID)
	if err != nil {
		return nil, fmt.Errorf("query skills: %w", err)
	}
	defer rows.Close()

	var out []models.Skill
	for rows.Next() {
		var sk models.Skill
		if err := rows.Scan(&sk.ID, &sk.TrackID, &sk.Name); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

// UpcomingAppointments lists appointments scheduled at or after now.
func (s *Service) UpcomingAppointments(ctx context.Context, userID string, now time.Time, limit int) ([]models.Appointment, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, student_id, tutor_id, subject, scheduled_at, status
		FROM appointments WHERE student_id = ? AND scheduled_at >= ?
		ORDER BY scheduled_at ASC LIMIT ?`),
		userID, now.UTC(), clampLimit(limit, 10))
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		var a models.Appointment
		if err := rows.Scan(&a.ID, &a.StudentID, &a.TutorID, &a.Subject, &a.ScheduledAt, &a.Status); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
