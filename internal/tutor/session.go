package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tutorgo/internal/cache"
	"tutorgo/internal/config"
	"tutorgo/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const persistTimeout = 10 * time.Second

// SessionDeps are the collaborators a chat session talks to.
type SessionDeps struct {
	Endpoint  Endpoint
	History   *Aggregator
	Logs      ChatLogWriter
	Notifier  Notifier
	Cache     *cache.Response
	Logger    *slog.Logger
	Clock     func() time.Time
	HistoryOn int // prior messages forwarded to the endpoint
}

// Session is one user's tutoring conversation. The mutex only guards
// in-memory state and is released before any I/O, so overlapping sends are
// allowed and their replies may land in either order.
type Session struct {
	profile  *models.Profile
	endpoint Endpoint
	history  *Aggregator
	logs     ChatLogWriter
	notifier Notifier
	cache    *cache.Response
	logger   *slog.Logger
	now      func() time.Time
	window   int

	ctx    context.Context
	cancel context.CancelFunc
	loads  singleflight.Group

	mu         sync.Mutex
	trackID    string
	transcript []models.Message
	learning   *models.LearningHistory
	generation uint64
}

// NewSession starts a session for profile. parent bounds its lifetime.
func NewSession(parent context.Context, profile *models.Profile, deps SessionDeps) *Session {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		profile:  profile,
		endpoint: deps.Endpoint,
		history:  deps.History,
		logs:     deps.Logs,
		notifier: deps.Notifier,
		cache:    deps.Cache,
		logger:   deps.Logger,
		now:      deps.Clock,
		window:   deps.HistoryOn,
		ctx:      ctx,
		cancel:   cancel,
	}
	if s.notifier == nil {
		s.notifier = NopNotifier{}
	}
	if s.cache == nil {
		s.cache = cache.NewResponse(cache.DefaultTTL, cache.DefaultMaxEntries)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.window <= 0 {
		s.window = config.MessageHistoryLimit
	}
	return s
}

func (s *Session) userID() string {
	if s.profile == nil {
		return ""
	}
	return s.profile.ID
}

// SendMessage runs one exchange: greeting, then cache, then the tutor endpoint.
func (s *Session) SendMessage(ctx context.Context, text string) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}
	ctx, stop := s.bind(ctx)
	defer stop()

	userMsg := s.message(models.RoleUser, text)
	s.mu.Lock()
	prior := tail(s.transcript, s.window)
	s.transcript = append(s.transcript, userMsg)
	trackID := s.trackID
	s.mu.Unlock()

	if IsGreeting(text) {
		return &Reply{UserMessage: userMsg, Message: s.appendAssistant(GreetingText), Source: SourceGreeting}, nil
	}

	key := cache.Key(s.userID(), trackID, text)
	if cached, ok := s.cache.Get(key); ok {
		return &Reply{UserMessage: userMsg, Message: s.appendAssistant(cached), Source: SourceCache}, nil
	}

	learning := s.ensureHistory(ctx)
	resp, err := s.endpoint.Respond(ctx, Request{
		Message:         text,
		UserProfile:     s.profile,
		TrackID:         trackID,
		StudentID:       s.userID(),
		LearningHistory: contextFrom(learning),
		MessageHistory:  prior,
	})
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		s.logger.Error("tutor request failed", "user_id", s.userID(), "error", err)
		s.notifier.Notify(s.userID(), Notification{Level: LevelError, Message: "The tutor could not answer right now. Please try again."})
		return nil, fmt.Errorf("tutor request: %w", err)
	}

	reply := &Reply{UserMessage: userMsg, Message: s.appendAssistant(resp.Text), Source: SourceTutor}
	s.cache.Set(key, resp.Text)
	if s.profile.IsStudent() && s.logs != nil {
		s.persist(context.WithoutCancel(ctx), trackID, text, resp.Text)
	}
	return reply, nil
}

// bind ties a request context to the session lifetime.
func (s *Session) bind(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) message(role models.Role, content string) models.Message {
	return models.Message{ID: uuid.NewString(), Role: role, Content: content, Timestamp: s.now().UTC()}
}

func (s *Session) appendAssistant(content string) models.Message {
	msg := s.message(models.RoleAssistant, content)
	s.mu.Lock()
	s.transcript = append(s.transcript, msg)
	s.mu.Unlock()
	return msg
}

// ensureHistory loads learning history once per session. Concurrent callers
// share one fetch. A failed fetch is remembered as empty history.
func (s *Session) ensureHistory(ctx context.Context) *models.LearningHistory {
	s.mu.Lock()
	if s.learning != nil {
		h := s.learning
		s.mu.Unlock()
		return h
	}
	gen := s.generation
	s.mu.Unlock()

	v, _, _ := s.loads.Do(fmt.Sprintf("history:%d", gen), func() (any, error) {
		h, err := s.history.Fetch(ctx, s.userID())
		if err != nil {
			if ctx.Err() != nil {
				return (*models.LearningHistory)(nil), err
			}
			h = &models.LearningHistory{}
		}
		s.mu.Lock()
		if s.generation == gen {
			s.learning = h
		}
		s.mu.Unlock()
		return h, nil
	})
	return v.(*models.LearningHistory)
}

func (s *Session) persist(ctx context.Context, trackID, message, response string) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	skills := []string{}
	if trackID != "" {
		trackSkills, err := s.logs.TrackSkills(ctx, trackID)
		if err != nil {
			s.logger.Warn("lookup track skills", "track_id", trackID, "error", err)
		} else {
			skills = skillsAddressed(trackSkills, message, response)
		}
	}
	err := s.logs.InsertChatLog(ctx, models.ChatLog{
		ID:              uuid.NewString(),
		StudentID:       s.userID(),
		TrackID:         trackID,
		Message:         message,
		Response:        response,
		SkillsAddressed: skills,
		CreatedAt:       s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("persist chat log", "user_id", s.userID(), "error", err)
	}
}

// ClearConversation empties the transcript. A send already in flight still
// appends its reply afterwards.
func (s *Session) ClearConversation() {
	s.mu.Lock()
	s.transcript = nil
	s.mu.Unlock()
}

// SetTrack scopes future context and cache keys to trackID.
func (s *Session) SetTrack(trackID string) {
	s.mu.Lock()
	s.trackID = strings.TrimSpace(trackID)
	s.mu.Unlock()
}

func (s *Session) TrackID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackID
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// MarkHistoryStale drops the loaded history so the next tutor call refetches it.
func (s *Session) MarkHistoryStale() {
	s.mu.Lock()
	s.learning = nil
	s.generation++
	s.mu.Unlock()
}

// RefreshHistory refetches learning history now and returns it.
func (s *Session) RefreshHistory(ctx context.Context) (*models.LearningHistory, error) {
	ctx, stop := s.bind(ctx)
	defer stop()
	h, err := s.history.Fetch(ctx, s.userID())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.learning = h
	s.generation++
	s.mu.Unlock()
	return h, nil
}

// LearningHistory returns the loaded history, fetching it if needed.
func (s *Session) LearningHistory(ctx context.Context) (*models.LearningHistory, error) {
	if s.userID() == "" {
		return nil, ErrMissingUser
	}
	ctx, stop := s.bind(ctx)
	defer stop()
	h := s.ensureHistory(ctx)
	if h == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("learning history unavailable")
	}
	return h, nil
}

// Close cancels any in-flight calls. Further sends fail with ErrSessionClosed.
func (s *Session) Close() {
	s.cancel()
}

func tail(msgs []models.Message, n int) []models.Message {
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}
