package generator

import (
	"context"
	"fmt"
	"strings"

	"tutorgo/internal/models"

	"github.com/google/uuid"
)

const systemPrompt = "You are an experienced tutor who writes concise, accurate study material for students. " +
	"Always answer with a single JSON object and nothing else."

func subject(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\nDifficulty: %s\n", req.Topic, req.Difficulty)
	if req.SourceText != "" {
		b.WriteString("Base the material only on these notes:\n<<<\n")
		b.WriteString(req.SourceText)
		b.WriteString("\n>>>\n")
	}
	return b.String()
}

var flashcardDomain = domain[models.Flashcard]{
	name: "flashcards",
	prompt: func(req Request) string {
		return fmt.Sprintf("%sCreate %d flashcards. Respond as "+
			`{"success": true, "flashcards": [{"id": "", "front": "question or term", "back": "answer", "hint": "optional"}]}`,
			subject(req), req.Count)
	},
	normalize: func(cards []models.Flashcard, _ Request) []models.Flashcard {
		out := make([]models.Flashcard, 0, len(cards))
		for _, c := range cards {
			c.Front = strings.TrimSpace(c.Front)
			c.Back = strings.TrimSpace(c.Back)
			if c.Front == "" || c.Back == "" {
				continue
			}
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			out = append(out, c)
		}
		return out
	},
	fallback: func(reason string, req Request) models.Flashcard {
		return models.Flashcard{
			ID:    uuid.NewString(),
			Front: "Flashcards for " + req.Topic + " could not be generated",
			Back:  "The tutor's reply could not be parsed (" + reason + "). Please try again.",
		}
	},
	persist: func(ctx context.Context, s *Service, req Request, cards []models.Flashcard) ([]string, error) {
		id, err := s.store.SaveFlashcardSet(ctx, req.UserID, req.TrackID, req.Topic, cards)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	},
}

var quizDomain = domain[models.QuizQuestion]{
	name: "questions",
	prompt: func(req Request) string {
		return fmt.Sprintf("%sWrite %d multiple-choice questions with four options each. Respond as "+
			`{"success": true, "questions": [{"id": "", "question": "...", "options": ["a", "b", "c", "d"], "correct_answer": "one of the options", "explanation": "why"}]}`,
			subject(req), req.Count)
	},
	normalize: func(qs []models.QuizQuestion, _ Request) []models.QuizQuestion {
		out := make([]models.QuizQuestion, 0, len(qs))
		for _, q := range qs {
			q.Question = strings.TrimSpace(q.Question)
			if q.Question == "" || len(q.Options) < 2 {
				continue
			}
			if q.CorrectAnswer == "" {
				q.CorrectAnswer = q.Options[0]
			}
			if q.ID == "" {
				q.ID = uuid.NewString()
			}
			out = append(out, q)
		}
		return out
	},
	fallback: func(reason string, req Request) models.QuizQuestion {
		return models.QuizQuestion{
			ID:            uuid.NewString(),
			Question:      "The quiz on " + req.Topic + " could not be generated. What should you do?",
			Options:       []string{"Try again", "Pick a narrower topic"},
			CorrectAnswer: "Try again",
			Explanation:   "The tutor's reply could not be parsed (" + reason + ").",
		}
	},
	persist: func(ctx context.Context, s *Service, req Request, qs []models.QuizQuestion) ([]string, error) {
		id, err := s.store.SaveQuiz(ctx, req.UserID, req.TrackID, req.Topic, qs)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	},
	changesHistory: true,
}

var homeworkDomain = domain[models.HomeworkTask]{
	name: "tasks",
	prompt: func(req Request) string {
		return fmt.Sprintf("%sDesign %d homework tasks that practise this topic. Respond as "+
			`{"success": true, "tasks": [{"id": "", "title": "...", "description": "what to do", "difficulty": "easy|medium|hard"}]}`,
			subject(req), req.Count)
	},
	normalize: func(tasks []models.HomeworkTask, req Request) []models.HomeworkTask {
		out := make([]models.HomeworkTask, 0, len(tasks))
		for _, t := range tasks {
			t.Title = strings.TrimSpace(t.Title)
			if t.Title == "" {
				continue
			}
			if t.Difficulty == "" {
				t.Difficulty = req.Difficulty
			}
			if t.ID == "" {
				t.ID = uuid.NewString()
			}
			out = append(out, t)
		}
		return out
	},
	fallback: func(reason string, req Request) models.HomeworkTask {
		return models.HomeworkTask{
			ID:          uuid.NewString(),
			Title:       "Homework for " + req.Topic + " could not be generated",
			Description: "The tutor's reply could not be parsed (" + reason + "). Please try again.",
			Difficulty:  req.Difficulty,
		}
	},
	persist: func(ctx context.Context, s *Service, req Request, tasks []models.HomeworkTask) ([]string, error) {
		return s.store.SaveHomework(ctx, req.UserID, req.TrackID, tasks, req.DueAt)
	},
	changesHistory: true,
}

// Flashcards generates a flashcard deck.
func (s *Service) Flashcards(ctx context.Context, req Request) (*Result[models.Flashcard], error) {
	return run(ctx, s, flashcardDomain, req)
}

// Quiz generates multiple-choice questions.
func (s *Service) Quiz(ctx context.Context, req Request) (*Result[models.QuizQuestion], error) {
	return run(ctx, s, quizDomain, req)
}

// Homework generates homework tasks.
func (s *Service) Homework(ctx context.Context, req Request) (*Result[models.HomeworkTask], error) {
	return run(ctx, s, homeworkDomain, req)
}
