package ai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tutorgo/internal/config"
	"tutorgo/internal/models"
	"tutorgo/internal/tutor"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeChatModel struct {
	reply string
	err   error
	got   []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.got = in
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(f.reply, nil)}), nil
}

func (f *fakeChatModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func TestTutorServiceBuildsPrompt(t *testing.T) {
	m := &fakeChatModel{reply: "  A derivative measures change.  "}
	svc, err := NewTutorService(context.Background(), m, nil, nil)
	if err != nil {
		t.Fatalf("new tutor service: %v", err)
	}
	resp, err := svc.Respond(context.Background(), tutor.Request{
		Message:     "Explain derivatives",
		UserProfile: &models.Profile{ID: "s1", Username: "sam", FullName: "Sam Lee", Role: models.CapabilityStudent},
		TrackID:     "calc",
		StudentID:   "s1",
		LearningHistory: tutor.LearningContext{
			Lessons: []models.Lesson{{ID: "l1", Title: "Limits"}},
		},
		MessageHistory: []models.Message{
			{Role: models.RoleUser, Content: "hi"},
			{Role: models.RoleAssistant, Content: "hello"},
		},
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if resp.Text != "A derivative measures change." {
		t.Fatalf("unexpected response %q", resp.Text)
	}
	if len(m.got) != 4 {
		t.Fatalf("expected system + 2 history + user, got %d", len(m.got))
	}
	sys := m.got[0]
	if sys.Role != schema.System || !strings.Contains(sys.Content, "Sam Lee") || !strings.Contains(sys.Content, "calc") || !strings.Contains(sys.Content, "Limits") {
		t.Fatalf("system prompt missing context: %s", sys.Content)
	}
	if m.got[2].Role != schema.Assistant || m.got[3].Content != "Explain derivatives" {
		t.Fatalf("history not forwarded in order: %+v", m.got)
	}
}

func TestTutorServicePropagatesErrors(t *testing.T) {
	boom := errors.New("rate limited")
	svc, err := NewTutorService(context.Background(), &fakeChatModel{err: boom}, nil, nil)
	if err != nil {
		t.Fatalf("new tutor service: %v", err)
	}
	if _, err := svc.Respond(context.Background(), tutor.Request{Message: "x"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestCompleter(t *testing.T) {
	m := &fakeChatModel{reply: `{"success": true}`}
	out, err := NewCompleter(m).Complete(context.Background(), "sys", "user")
	if err != nil || out != `{"success": true}` {
		t.Fatalf("complete: %q %v", out, err)
	}
	if len(m.got) != 2 || m.got[0].Role != schema.System || m.got[1].Role != schema.User {
		t.Fatalf("unexpected messages %+v", m.got)
	}
	if _, err := NewCompleter(&fakeChatModel{reply: " "}).Complete(context.Background(), "s", "u"); err == nil {
		t.Fatalf("expected error for empty completion")
	}
}

func TestNewChatModelRejectsBadConfig(t *testing.T) {
	if _, err := NewChatModel(context.Background(), "openai", config.ProviderConfig{Model: "gpt"}); err == nil {
		t.Fatalf("expected missing api key error")
	}
	if _, err := NewChatModel(context.Background(), "mistral", config.ProviderConfig{APIKey: "k"}); err == nil {
		t.Fatalf("expected invalid provider error")
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newRateLimiter(3, time.Minute)
	l.now = func() time.Time { return now }
	for i := 0; i < 3; i++ {
		if !l.Allow("u1") {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if l.Allow("u1") {
		t.Fatalf("fourth call within window should be rejected")
	}
	if !l.Allow("u2") {
		t.Fatalf("limits are per user")
	}
	now = now.Add(time.Minute + time.Second)
	if !l.Allow("u1") {
		t.Fatalf("window should have slid")
	}
}

func TestHTMLToText(t *testing.T) {
	page := `<html><head><title>Photosynthesis</title><style>p{}</style></head>
<body><nav>Home | About</nav><h1>How plants eat</h1><p>Plants turn   light
into sugar.</p><script>track()</script><ul><li>Chlorophyll</li></ul></body></html>`
	got, err := htmlToText(strings.NewReader(page))
	if err != nil {
		t.Fatalf("htmlToText: %v", err)
	}
	want := "Photosynthesis\nHow plants eat\nPlants turn light into sugar.\nChlorophyll"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNotesLoader(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("Mitosis has four phases.\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	html := filepath.Join(dir, "notes.html")
	if err := os.WriteFile(html, []byte("<html><body><p>Cells divide.</p></body></html>"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("   "), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	loader, err := NewNotesLoader(context.Background())
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	if got, err := loader.Load(context.Background(), txt); err != nil || got != "Mitosis has four phases." {
		t.Fatalf("load txt: %q %v", got, err)
	}
	if got, err := loader.Load(context.Background(), html); err != nil || got != "Cells divide." {
		t.Fatalf("load html: %q %v", got, err)
	}
	if _, err := loader.Load(context.Background(), empty); err == nil {
		t.Fatalf("expected error for empty notes")
	}
}
