package tutor

import (
	"context"
	"log/slog"

	"tutorgo/internal/config"
	"tutorgo/internal/models"

	"golang.org/x/sync/errgroup"
)

// Limits bounds how many rows of each category the aggregator loads.
type Limits struct {
	Homework int
	Quizzes  int
	Lessons  int
	ChatLogs int
}

// LimitsFromConfig reads the history window from tutor config.
func LimitsFromConfig(cfg config.TutorConfig) Limits {
	return Limits{
		Homework: cfg.HomeworkLimit,
		Quizzes:  cfg.QuizLimit,
		Lessons:  cfg.LessonLimit,
		ChatLogs: cfg.ChatLogLimit,
	}
}

func (l Limits) withDefaults() Limits {
	if l.Homework <= 0 {
		l.Homework = config.HistoryHomeworkLimit
	}
	if l.Quizzes <= 0 {
		l.Quizzes = config.HistoryQuizLimit
	}
	if l.Lessons <= 0 {
		l.Lessons = config.HistoryLessonLimit
	}
	if l.ChatLogs <= 0 {
		l.ChatLogs = config.HistoryChatLogLimit
	}
	return l
}

// Aggregator merges a student's recent learning records into one view.
type Aggregator struct {
	store    HistoryStore
	notifier Notifier
	limits   Limits
	logger   *slog.Logger
}

func NewAggregator(store HistoryStore, notifier Notifier, limits Limits, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Aggregator{store: store, notifier: notifier, limits: limits.withDefaults(), logger: logger}
}

// Fetch loads every category concurrently. A failing category is logged and
// left empty; only a missing user id fails the whole call.
func (a *Aggregator) Fetch(ctx context.Context, userID string) (*models.LearningHistory, error) {
	if userID == "" {
		a.notifier.Notify(userID, Notification{Level: LevelError, Message: "Sign in to load your learning history."})
		return nil, ErrMissingUser
	}

	var h models.LearningHistory
	// the goroutines never return an error, so one failing query cannot cancel the rest
	var g errgroup.Group
	g.Go(func() error {
		rows, err := a.store.RecentHomework(ctx, userID, a.limits.Homework)
		h.Homework = keepValid(a.category("homework", userID, err), rows, func(r models.Homework) string { return r.ID })
		return nil
	})
	g.Go(func() error {
		rows, err := a.store.RecentQuizzes(ctx, userID, a.limits.Quizzes)
		h.Quizzes = keepValid(a.category("quizzes", userID, err), rows, func(r models.Quiz) string { return r.ID })
		return nil
	})
	g.Go(func() error {
		rows, err := a.store.RecentLessons(ctx, userID, a.limits.Lessons)
		h.Lessons = keepValid(a.category("lessons", userID, err), rows, func(r models.Lesson) string { return r.ID })
		return nil
	})
	g.Go(func() error {
		rows, err := a.store.RecentChatLogs(ctx, userID, a.limits.ChatLogs)
		h.RecentConversations = keepValid(a.category("chat_logs", userID, err), rows, func(r models.ChatLog) string { return r.ID })
		return nil
	})
	g.Go(func() error {
		rows, err := a.store.ActiveTracks(ctx, userID)
		h.Tracks = keepValid(a.category("tracks", userID, err), rows, func(r models.TrackMembership) string { return r.TrackID })
		return nil
	})
	_ = g.Wait()
	return &h, nil
}

// category logs a fetch failure and reports whether the rows are usable.
func (a *Aggregator) category(name, userID string, err error) bool {
	if err != nil {
		a.logger.Error("fetch learning history", "category", name, "user_id", userID, "error", err)
		return false
	}
	return true
}

func keepValid[T any](ok bool, rows []T, id func(T) string) []T {
	out := make([]T, 0, len(rows))
	if !ok {
		return out
	}
	for _, r := range rows {
		if id(r) == "" {
			slog.Warn("dropping learning record without id")
			continue
		}
		out = append(out, r)
	}
	return out
}

// contextFrom trims a full history to what a single tutor call carries.
func contextFrom(h *models.LearningHistory) LearningContext {
	if h == nil {
		return LearningContext{}
	}
	return LearningContext{
		Lessons:       head(h.Lessons, config.ContextLessonCount),
		Quizzes:       head(h.Quizzes, config.ContextQuizCount),
		Conversations: head(h.RecentConversations, config.ContextChatLogCount),
		Tracks:        h.Tracks,
	}
}

func head[T any](rows []T, n int) []T {
	if len(rows) > n {
		rows = rows[:n]
	}
	out := make([]T, len(rows))
	copy(out, rows)
	return out
}
