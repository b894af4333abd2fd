package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

const (
	WebSearchRateLimit   = 3
	WebSearchRateWindow  = time.Minute
	WebSearchHTTPTimeout = 10 * time.Second
	maxFetchedBodyBytes  = 512 * 1024
	maxFetchedTextRunes  = 6000
)

type toolUserContextKey struct{}

// WithToolUser tags ctx with the user a tool call is made for.
func WithToolUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, toolUserContextKey{}, userID)
}

func toolUserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(toolUserContextKey{}).(string)
	return userID, ok && userID != ""
}

// rateLimiter is a sliding-window limiter keyed by user.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time
	mu     sync.Mutex
	hits   map[string][]time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{limit: limit, window: window, now: time.Now, hits: make(map[string][]time.Time)}
}

func (l *rateLimiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	queue := l.hits[key]
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(queue) && !queue[idx].After(cutoff) {
		idx++
	}
	queue = queue[idx:]
	if len(queue) >= l.limit {
		l.hits[key] = queue
		return false
	}
	l.hits[key] = append(queue, now)
	return true
}

// Tools returns the tools the tutor may call. Empty when web search is off.
func Tools(ctx context.Context, webSearch bool) []tool.BaseTool {
	if !webSearch {
		return nil
	}
	ws := NewWebSearch(ctx)
	if ws == nil {
		return nil
	}
	return []tool.BaseTool{ws}
}

type searchBackend interface {
	InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error)
}

type webSearchTool struct {
	google     searchBackend
	duck       searchBackend
	httpClient *http.Client
	limiter    *rateLimiter
}

type webSearchParams struct {
	Query string `json:"query"`
}

// NewWebSearch builds the web_search tool: Google when credentials are set,
// DuckDuckGo otherwise or on failure.
func NewWebSearch(ctx context.Context) tool.InvokableTool {
	ws := &webSearchTool{
		google:     newGoogleSearch(ctx),
		duck:       newDDGSearch(ctx),
		httpClient: &http.Client{Timeout: WebSearchHTTPTimeout},
		limiter:    newRateLimiter(WebSearchRateLimit, WebSearchRateWindow),
	}
	if ws.google == nil && ws.duck == nil {
		slog.Warn("web search tool disabled: no search providers available")
		return nil
	}
	info := &schema.ToolInfo{
		Name: "web_search",
		Desc: "Search the web for up-to-date reference material to support an explanation. " +
			"Accepts a natural language query or a URL to read.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "Natural language query or URL",
				Type:     schema.String,
				Required: true,
			},
		}),
	}
	return utils.NewTool(info, ws.run)
}

func (w *webSearchTool) run(ctx context.Context, params *webSearchParams) (string, error) {
	if params == nil {
		return "", errors.New("missing search parameters")
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return "", errors.New("query must not be empty")
	}
	key := "anonymous"
	if userID, ok := toolUserFromContext(ctx); ok {
		key = userID
	}
	if !w.limiter.Allow(key) {
		return "", errors.New("web search rate limit exceeded, please retry in a minute")
	}

	if looksLikeURL(query) {
		content, err := w.fetchURL(ctx, query)
		if err == nil {
			return content, nil
		}
		slog.Warn("web url fetch failed", "url", query, "error", err)
	}

	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", fmt.Errorf("marshal search params: %w", err)
	}
	if w.google != nil {
		result, err := w.google.InvokableRun(ctx, string(payload))
		if err == nil {
			return result, nil
		}
		slog.Warn("google search failed", "error", err)
	}
	if w.duck != nil {
		result, err := w.duck.InvokableRun(ctx, string(payload))
		if err == nil {
			return result, nil
		}
		slog.Warn("duckduckgo search failed", "error", err)
	}
	return "", errors.New("no search provider succeeded")
}

func (w *webSearchTool) fetchURL(ctx context.Context, target string) (string, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("unsupported url scheme")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "TutorGo-WebSearch/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch url: %s", resp.Status)
	}

	text, err := htmlToText(io.LimitReader(resp.Body, maxFetchedBodyBytes))
	if err != nil {
		return "", err
	}
	return clipRunes(text, maxFetchedTextRunes), nil
}

func looksLikeURL(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func newDDGSearch(ctx context.Context) searchBackend {
	t, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   "web_search_ddg",
		ToolDesc:   "DuckDuckGo Search Tool",
		MaxResults: 3,
		Region:     duckduckgo.RegionWT,
		Timeout:    WebSearchHTTPTimeout,
	})
	if err != nil {
		slog.Warn("duckduckgo search disabled", "error", err)
		return nil
	}
	return t
}

func newGoogleSearch(ctx context.Context) searchBackend {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	engineID := os.Getenv("GOOGLE_SEARCH_ENGINE_ID")
	if apiKey == "" || engineID == "" {
		return nil
	}
	t, err := googlesearch.NewTool(ctx, &googlesearch.Config{
		ToolName:       "web_search_google",
		ToolDesc:       "Google Search Tool",
		APIKey:         apiKey,
		SearchEngineID: engineID,
		Lang:           "en",
		Num:            5,
	})
	if err != nil {
		slog.Warn("google search disabled", "error", err)
		return nil
	}
	return t
}
