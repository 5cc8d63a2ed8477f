package ai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/dayplan/internal/calendar"
	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/store"
)

type stubGenerator struct {
	name  string
	text  string
	err   error
	calls int
}

func (g *stubGenerator) Name() string { return g.name }

func (g *stubGenerator) GenerateText(context.Context, string) (string, error) {
	g.calls++
	return g.text, g.err
}

func TestGenerateTextFirstSuccess(t *testing.T) {
	first := &stubGenerator{name: ProviderOpenAI, text: "schedule"}
	second := &stubGenerator{name: ProviderGrok, text: "unused"}
	m := NewManager(nil, slog.Default(), first, second)

	text, err := m.GenerateText(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "schedule", text)
	assert.Equal(t, 0, second.calls, "fallback untouched when preferred provider works")
}

func TestGenerateTextFallsBack(t *testing.T) {
	first := &stubGenerator{name: ProviderOpenAI, err: errors.New("quota exceeded")}
	second := &stubGenerator{name: ProviderGrok, text: "from grok"}
	m := NewManager(nil, slog.Default(), first, second)

	text, err := m.GenerateText(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "from grok", text)
}

func TestGenerateTextAllFail(t *testing.T) {
	first := &stubGenerator{name: ProviderOpenAI, err: errors.New("boom")}
	second := &stubGenerator{name: ProviderGrok, err: errors.New("also boom")}
	m := NewManager(nil, slog.Default(), first, second)

	_, err := m.GenerateText(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ProviderOpenAI)
	assert.Contains(t, err.Error(), ProviderGrok)
}

func TestGenerateTextNoProviders(t *testing.T) {
	m := NewManager(nil, slog.Default())
	_, err := m.GenerateText(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestChatClientParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "  hello  "}}]}`))
	}))
	t.Cleanup(server.Close)

	client := &chatClient{
		name:       ProviderOpenAI,
		baseURL:    server.URL,
		apiKey:     "key",
		model:      "gpt-4o-mini",
		httpClient: server.Client(),
	}
	text, err := client.GenerateText(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestChatClientClassifiesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	client := &chatClient{
		name:       ProviderGrok,
		baseURL:    server.URL,
		apiKey:     "key",
		model:      "grok-beta",
		httpClient: server.Client(),
	}
	_, err := client.GenerateText(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, provider.IsTransient(err))
}

func TestChatClientRequiresKey(t *testing.T) {
	client := &chatClient{name: ProviderOpenAI, baseURL: "http://unused", model: "m",
		httpClient: http.DefaultClient}
	_, err := client.GenerateText(context.Background(), "prompt")
	assert.True(t, provider.IsFatalAuth(err))
}

func TestBuildSchedulePrompt(t *testing.T) {
	due := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	tasks := []store.Task{
		{ID: "task-1", Title: "Write report", Priority: 4, DueDate: &due, ProjectName: "Work"},
	}
	meetings := []calendar.Meeting{
		{
			Title: "Standup",
			Start: time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC),
			End:   time.Date(2026, 9, 1, 9, 45, 0, 0, time.UTC),
		},
		{
			Title:        "Busy",
			IsSyncedBusy: true,
			Start:        time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
			End:          time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC),
		},
	}

	prompt := BuildSchedulePrompt(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), tasks, meetings,
		PromptOptions{CustomInstructions: "no meetings after 4pm", SlotMinutes: 30})

	assert.Contains(t, prompt, "Tuesday, September 1, 2026")
	assert.Contains(t, prompt, "Write report")
	assert.Contains(t, prompt, "2026-09-02")
	assert.Contains(t, prompt, "Standup")
	assert.Contains(t, prompt, "Busy (synced)")
	assert.Contains(t, prompt, "no meetings after 4pm")
	assert.Contains(t, prompt, "30 minutes")
	assert.True(t, strings.Contains(prompt, `"task_id"`), "response format spelled out")
}
