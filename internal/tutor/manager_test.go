package tutor

import (
	"context"
	"sync"
	"testing"

	"tutorgo/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu        sync.Mutex
	published []Invalidation
	deliver   chan Invalidation
}

func (b *recordingBroadcaster) Publish(_ context.Context, inv Invalidation) error {
	b.mu.Lock()
	b.published = append(b.published, inv)
	b.mu.Unlock()
	return nil
}

func (b *recordingBroadcaster) Listen(ctx context.Context, fn func(Invalidation)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case inv := <-b.deliver:
			fn(inv)
		}
	}
}

func newTestManager(store *fakeStore, b Broadcaster) *Manager {
	return NewManager(ManagerConfig{
		Endpoint:    &fakeEndpoint{},
		Store:       store,
		Logs:        &fakeLogs{},
		Notifier:    NewInbox(4),
		Tutor:       config.TutorConfig{CacheTTLSeconds: 300, CacheMaxEntries: 50},
		Broadcaster: b,
	})
}

func TestManagerReusesSessionPerUser(t *testing.T) {
	m := newTestManager(&fakeStore{}, nil)
	defer m.Close()

	a := m.Session(student)
	assert.Same(t, a, m.Session(student))
	assert.NotSame(t, a, m.Session(tutorP))

	m.ResetUser(student.ID)
	b := m.Session(student)
	assert.NotSame(t, a, b)
	_, err := a.SendMessage(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestManagerInvalidateHistoryPublishes(t *testing.T) {
	store := &fakeStore{}
	b := &recordingBroadcaster{}
	m := newTestManager(store, b)
	defer m.Close()

	s := m.Session(student)
	_, err := s.SendMessage(context.Background(), "first question")
	require.NoError(t, err)
	require.EqualValues(t, 1, store.calls.Load())

	m.InvalidateHistory(context.Background(), student.ID)
	_, err = s.SendMessage(context.Background(), "second question")
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.calls.Load())

	require.Len(t, b.published, 1)
	assert.Equal(t, Invalidation{UserID: student.ID, Scope: ScopeHistory}, b.published[0])
}

func TestManagerAppliesRemoteInvalidations(t *testing.T) {
	store := &fakeStore{}
	b := &recordingBroadcaster{deliver: make(chan Invalidation)}
	m := newTestManager(store, b)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Listen(ctx)
		close(done)
	}()

	s := m.Session(student)
	_, err := s.SendMessage(context.Background(), "first question")
	require.NoError(t, err)

	b.deliver <- Invalidation{UserID: student.ID, Scope: ScopeHistory}
	b.deliver <- Invalidation{UserID: tutorP.ID, Scope: ScopeSession} // sync point: the first one has been applied
	_, err = s.SendMessage(context.Background(), "second question")
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.calls.Load())

	b.deliver <- Invalidation{UserID: student.ID, Scope: ScopeSession}
	cancel()
	<-done
	assert.NotSame(t, s, m.Session(student))
}

func TestEndSessionBroadcasts(t *testing.T) {
	b := &recordingBroadcaster{}
	m := newTestManager(&fakeStore{}, b)
	defer m.Close()
	m.Session(student)
	m.EndSession(context.Background(), student.ID)
	require.Len(t, b.published, 1)
	assert.Equal(t, ScopeSession, b.published[0].Scope)
}
