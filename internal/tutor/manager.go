package tutor

import (
	"context"
	"log/slog"
	"sync"

	"tutorgo/internal/cache"
	"tutorgo/internal/config"
	"tutorgo/internal/models"
)

// ManagerConfig carries everything the manager needs to build sessions.
type ManagerConfig struct {
	Endpoint Endpoint
	Store    HistoryStore
	Logs     ChatLogWriter
	Notifier Notifier
	Tutor    config.TutorConfig
	Logger   *slog.Logger
	// Broadcaster fans invalidations out to other instances. Optional.
	Broadcaster Broadcaster
}

// Manager owns one chat session per user.
type Manager struct {
	cfg    ManagerConfig
	agg    *Aggregator
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		agg:      NewAggregator(cfg.Store, cfg.Notifier, LimitsFromConfig(cfg.Tutor), cfg.Logger),
		logger:   cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Session returns the user's chat session, creating it on first use.
func (m *Manager) Session(profile *models.Profile) *Session {
	m.mu.RLock()
	s, ok := m.sessions[profile.ID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[profile.ID]; ok {
		return s
	}
	s = NewSession(m.ctx, profile, SessionDeps{
		Endpoint: m.cfg.Endpoint,
		History:  m.agg,
		Logs:     m.cfg.Logs,
		Notifier: m.cfg.Notifier,
		Cache:    cache.NewResponse(m.cfg.Tutor.CacheTTL(), m.cfg.Tutor.CacheMaxEntries),
		Logger:   m.logger.With("user_id", profile.ID),
	})
	m.sessions[profile.ID] = s
	return s
}

func (m *Manager) lookup(userID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[userID]
}

// ResetUser closes and forgets the user's session.
func (m *Manager) ResetUser(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// EndSession resets the user here and on every other instance.
func (m *Manager) EndSession(ctx context.Context, userID string) {
	m.ResetUser(userID)
	m.broadcast(ctx, Invalidation{UserID: userID, Scope: ScopeSession})
}

// InvalidateHistory marks the user's history stale here and on every other
// instance listening for invalidations.
func (m *Manager) InvalidateHistory(ctx context.Context, userID string) {
	m.invalidateLocal(userID)
	m.broadcast(ctx, Invalidation{UserID: userID, Scope: ScopeHistory})
}

func (m *Manager) broadcast(ctx context.Context, inv Invalidation) {
	if m.cfg.Broadcaster == nil {
		return
	}
	if err := m.cfg.Broadcaster.Publish(ctx, inv); err != nil {
		m.logger.Warn("publish invalidation", "user_id", inv.UserID, "scope", inv.Scope, "error", err)
	}
}

func (m *Manager) invalidateLocal(userID string) {
	if s := m.lookup(userID); s != nil {
		s.MarkHistoryStale()
	}
}

// apply handles an invalidation received from another instance.
func (m *Manager) apply(inv Invalidation) {
	switch inv.Scope {
	case ScopeHistory:
		m.invalidateLocal(inv.UserID)
	case ScopeSession:
		m.ResetUser(inv.UserID)
	default:
		m.logger.Warn("unknown invalidation scope", "scope", inv.Scope)
	}
}

// Listen applies remote invalidations until ctx is done. It blocks.
func (m *Manager) Listen(ctx context.Context) error {
	if m.cfg.Broadcaster == nil {
		return nil
	}
	return m.cfg.Broadcaster.Listen(ctx, m.apply)
}

// Close shuts down every session.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
}
