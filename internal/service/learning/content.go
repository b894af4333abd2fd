package learning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tutorgo/internal/models"
	"tutorgo/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InsertChatLog appends a tutor exchange and bumps practice counts for the
// track skills it addressed, in one transaction.
func (s *Service) InsertChatLog(ctx context.Context, log models.ChatLog) error {
	if log.StudentID == "" {
		return errors.New("student_id is required")
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if log.SkillsAddressed == nil {
		log.SkillsAddressed = []string{}
	}
	skills, err := encodeJSON(log.SkillsAddressed)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		s.q(`INSERT INTO chat_logs (id, student_id, track_id, message, response, skills_addressed, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		log.ID, log.StudentID, log.TrackID, log.Message, log.Response, skills, log.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert chat log: %w", err)
	}

	if log.TrackID != "" {
		for _, name := range log.SkillsAddressed {
			var skillID string
			err := tx.QueryRowContext(ctx, s.q(`SELECT id FROM skills WHERE track_id = ? AND name = ?`), log.TrackID, name).Scan(&skillID)
			if err != nil {
				continue
			}
			if _, err := tx.ExecContext(ctx, s.q(s.practiceUpsert()), log.StudentID, skillID, log.CreatedAt); err != nil {
				return fmt.Errorf("record skill practice: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat log: %w", err)
	}
	return nil
}

func (s *Service) practiceUpsert() string {
	if s.dialect == storage.MySQL {
		return `INSERT INTO student_skills (student_id, skill_id, practice_count, updated_at) VALUES (?, ?, 1, ?)
			ON DUPLICATE KEY UPDATE practice_count = practice_count + 1, updated_at = VALUES(updated_at)`
	}
	return `INSERT INTO student_skills (student_id, skill_id, practice_count, updated_at) VALUES (?, ?, 1, ?)
		ON CONFLICT (student_id, skill_id) DO UPDATE SET practice_count = student_skills.practice_count + 1, updated_at = excluded.updated_at`
}

// SaveFlashcardSet stores a generated deck and returns its id.
func (s *Service) SaveFlashcardSet(ctx context.Context, studentID, trackID, topic string, cards []models.Flashcard) (string, error) {
	if studentID == "" {
		return "", errors.New("student_id is required")
	}
	raw, err := encodeJSON(cards)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO flashcard_sets (id, student_id, track_id, topic, cards, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		id, studentID, trackID, topic, raw, time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("insert flashcard set: %w", err)
	}
	return id, nil
}

// SaveQuiz stores generated questions as an ungraded quiz.
func (s *Service) SaveQuiz(ctx context.Context, studentID, trackID, topic string, questions []models.QuizQuestion) (string, error) {
	if studentID == "" {
		return "", errors.New("student_id is required")
	}
	raw, err := encodeJSON(questions)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO quizzes (id, student_id, track_id, topic, score, total_questions, questions, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		id, studentID, trackID, topic, decimal.Zero, len(questions), raw, time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("insert quiz: %w", err)
	}
	return id, nil
}

// SaveHomework stores each task as an assigned homework row.
func (s *Service) SaveHomework(ctx context.Context, studentID, trackID string, tasks []models.HomeworkTask, dueAt *time.Time) ([]string, error) {
	if studentID == "" {
		return nil, errors.New("student_id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	ids := make([]string, 0, len(tasks))
	for i, task := range tasks {
		id := uuid.NewString()
		// distinct timestamps keep recency ordering stable within a batch
		createdAt := now.Add(time.Duration(i) * time.Microsecond)
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO homework (id, student_id, track_id, title, description, difficulty, status, grade, due_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			id, studentID, trackID, task.Title, task.Description, task.Difficulty, "assigned", decimal.Zero, dueAt, createdAt,
		); err != nil {
			return nil, fmt.Errorf("insert homework: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit homework: %w", err)
	}
	return ids, nil
}

// GradeQuiz records a score on one of the student's quizzes. Unknown or
// foreign quizzes return sql.ErrNoRows.
func (s *Service) GradeQuiz(ctx context.Context, studentID, quizID string, score decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE quizzes SET score = ? WHERE id = ? AND student_id = ?`), score, quizID, studentID)
	if err != nil {
		return fmt.Errorf("grade quiz: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SaveLesson records a completed lesson.
func (s *Service) SaveLesson(ctx context.Context, lesson models.Lesson) (string, error) {
	if lesson.StudentID == "" || strings.TrimSpace(lesson.Title) == "" {
		return "", errors.New("student_id and title are required")
	}
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO lessons (id, student_id, track_id, title, summary, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		lesson.ID, lesson.StudentID, lesson.TrackID, lesson.Title, lesson.Summary, lesson.CreatedAt,
	); err != nil {
		return "", fmt.Errorf("insert lesson: %w", err)
	}
	return lesson.ID, nil
}

// CreateTrack adds a learning track.
func (s *Service) CreateTrack(ctx context.Context, name, subject string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("track name is required")
	}
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO tracks (id, name, subject, created_at) VALUES (?, ?, ?, ?)`),
		id, name, strings.TrimSpace(subject), time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("create track: %w", err)
	}
	return id, nil
}

// AddSkill defines a skill on a track.
func (s *Service) AddSkill(ctx context.Context, trackID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if trackID == "" || name == "" {
		return "", errors.New("track_id and name are required")
	}
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, s.q(`INSERT INTO skills (id, track_id, name) VALUES (?, ?, ?)`), id, trackID, name); err != nil {
		return "", fmt.Errorf("add skill: %w", err)
	}
	return id, nil
}

// JoinTrack enrolls the student in a track, reactivating a lapsed membership.
func (s *Service) JoinTrack(ctx context.Context, studentID, trackID string) error {
	if studentID == "" || trackID == "" {
		return errors.New("student_id and track_id are required")
	}
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE student_tracks SET active = ? WHERE student_id = ? AND track_id = ?`), true, studentID, trackID)
	if err != nil {
		return fmt.Errorf("reactivate track: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO student_tracks (student_id, track_id, active, joined_at) VALUES (?, ?, ?, ?)`),
		studentID, trackID, true, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("join track: %w", err)
	}
	return nil
}

// LeaveTrack marks the membership inactive.
func (s *Service) LeaveTrack(ctx context.Context, studentID, trackID string) error {
	if _, err := s.db.ExecContext(ctx,
		s.q(`UPDATE student_tracks SET active = ? WHERE student_id = ? AND track_id = ?`), false, studentID, trackID,
	); err != nil {
		return fmt.Errorf("leave track: %w", err)
	}
	return nil
}

// ScheduleAppointment books a session between a student and a tutor.
func (s *Service) ScheduleAppointment(ctx context.Context, appt models.Appointment) (*models.Appointment, error) {
	if appt.StudentID == "" || strings.TrimSpace(appt.Subject) == "" || appt.ScheduledAt.IsZero() {
		return nil, errors.New("student_id, subject and scheduled_at are required")
	}
	appt.ID = uuid.NewString()
	appt.ScheduledAt = appt.ScheduledAt.UTC()
	if appt.Status == "" {
		appt.Status = "scheduled"
	}
	if _, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO appointments (id, student_id, tutor_id, subject, scheduled_at, status) VALUES (?, ?, ?, ?, ?, ?)`),
		appt.ID, appt.StudentID, appt.TutorID, appt.Subject, appt.ScheduledAt, appt.Status,
	); err != nil {
		return nil, fmt.Errorf("schedule appointment: %w", err)
	}
	return &appt, nil
}
