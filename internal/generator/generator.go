// Package generator turns a topic or source text into study material
// (flashcards, quiz questions, homework tasks) with one model call.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tutorgo/internal/config"
	"tutorgo/internal/models"
)

// Completer runs a single prompt against the language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Store persists generated sets.
type Store interface {
	SaveFlashcardSet(ctx context.Context, studentID, trackID, topic string, cards []models.Flashcard) (string, error)
	SaveQuiz(ctx context.Context, studentID, trackID, topic string, questions []models.QuizQuestion) (string, error)
	SaveHomework(ctx context.Context, studentID, trackID string, tasks []models.HomeworkTask, dueAt *time.Time) ([]string, error)
}

// Invalidator is told when persisted content changes a student's history.
type Invalidator interface {
	InvalidateHistory(ctx context.Context, userID string)
}

var ErrNoInput = errors.New("topic or source text is required")

type Request struct {
	UserID     string     `json:"-"`
	TrackID    string     `json:"track_id"`
	Topic      string     `json:"topic"`
	SourceText string     `json:"source_text"`
	Count      int        `json:"count"`
	Difficulty string     `json:"difficulty"`
	Persist    bool       `json:"persist"`
	DueAt      *time.Time `json:"due_at,omitempty"`
}

func (r Request) normalized() (Request, error) {
	r.Topic = strings.TrimSpace(r.Topic)
	r.SourceText = strings.TrimSpace(r.SourceText)
	if r.Topic == "" && r.SourceText == "" {
		return r, ErrNoInput
	}
	if r.Topic == "" {
		r.Topic = "uploaded notes"
	}
	if runes := []rune(r.SourceText); len(runes) > config.MaxNotesRunes {
		r.SourceText = string(runes[:config.MaxNotesRunes])
	}
	switch {
	case r.Count <= 0:
		r.Count = config.DefaultGenerateCount
	case r.Count > config.MaxGenerateCount:
		r.Count = config.MaxGenerateCount
	}
	r.Difficulty = strings.ToLower(strings.TrimSpace(r.Difficulty))
	switch r.Difficulty {
	case "easy", "medium", "hard":
	default:
		r.Difficulty = "medium"
	}
	return r, nil
}

// Result is a generated set. Fallback is set when the model output could not
// be parsed and Items holds the single placeholder describing why.
type Result[T any] struct {
	Items    []T      `json:"items"`
	Fallback bool     `json:"fallback"`
	SavedIDs []string `json:"saved_ids,omitempty"`
}

type Service struct {
	llm         Completer
	store       Store
	invalidator Invalidator
	retry       config.RetryConfig
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// New builds the generator service. store and invalidator may be nil.
func New(llm Completer, store Store, invalidator Invalidator, retry config.RetryConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = config.DefaultRetryAttempts
	}
	if retry.InitialBackoffMs <= 0 {
		retry.InitialBackoffMs = int(config.DefaultRetryBackoff / time.Millisecond)
	}
	if retry.MaxBackoffMs <= 0 {
		retry.MaxBackoffMs = int(config.DefaultRetryMaxBackoff / time.Millisecond)
	}
	return &Service{
		llm:         llm,
		store:       store,
		invalidator: invalidator,
		retry:       retry,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// domain describes one kind of generated item.
type domain[T any] struct {
	name      string // json key of the item array
	prompt    func(Request) string
	normalize func([]T, Request) []T
	fallback  func(reason string, req Request) T
	persist   func(ctx context.Context, s *Service, req Request, items []T) ([]string, error)
	// changesHistory reports whether saved items show up in learning history.
	changesHistory bool
}

func run[T any](ctx context.Context, s *Service, d domain[T], req Request) (*Result[T], error) {
	req, err := req.normalized()
	if err != nil {
		return nil, err
	}

	text, err := s.complete(ctx, d.prompt(req))
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", d.name, err)
	}

	items, perr := parseItems[T](text, d.name)
	if perr == nil {
		items = d.normalize(items, req)
		if len(items) == 0 {
			perr = fmt.Errorf("response contained no usable %s", d.name)
		}
	}
	if perr != nil {
		s.logger.Warn("generated content unparseable", "kind", d.name, "user_id", req.UserID, "error", perr)
		return &Result[T]{Items: []T{d.fallback(perr.Error(), req)}, Fallback: true}, nil
	}
	if len(items) > req.Count {
		items = items[:req.Count]
	}

	res := &Result[T]{Items: items}
	if req.Persist && req.UserID != "" && s.store != nil {
		ids, err := d.persist(ctx, s, req, items)
		if err != nil {
			s.logger.Error("persist generated content", "kind", d.name, "user_id", req.UserID, "error", err)
		} else {
			res.SavedIDs = ids
			if d.changesHistory && s.invalidator != nil {
				s.invalidator.InvalidateHistory(ctx, req.UserID)
			}
		}
	}
	return res, nil
}

// complete calls the model, retrying transport failures with capped exponential backoff.
func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	backoff := s.retry.InitialBackoff()
	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		text, err := s.llm.Complete(ctx, systemPrompt, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == s.retry.MaxAttempts {
			break
		}
		s.logger.Warn("model call failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if err := s.sleep(ctx, backoff); err != nil {
			return "", err
		}
		backoff *= 2
		if limit := s.retry.MaxBackoff(); backoff > limit {
			backoff = limit
		}
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
