package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/teemow/dayplan/internal/ai"
	"github.com/teemow/dayplan/internal/calendar"
	"github.com/teemow/dayplan/internal/provider"
	"github.com/teemow/dayplan/internal/provider/local"
	"github.com/teemow/dayplan/internal/reconcile"
	"github.com/teemow/dayplan/internal/store"
)

type fixedGenerator struct{ text string }

func (g *fixedGenerator) Name() string { return ai.ProviderOpenAI }

func (g *fixedGenerator) GenerateText(context.Context, string) (string, error) {
	return g.text, nil
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s, err := store.New(db, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	engine := reconcile.NewEngine(s.Tasks, slog.Default())
	orchestrator := reconcile.NewOrchestrator(s.Accounts, engine, nil, slog.Default())
	orchestrator.Register(local.New(s.Tasks, slog.Default()))

	srv := New(Config{
		Store:        s,
		Orchestrator: orchestrator,
		Aggregator:   calendar.NewAggregator(s.Accounts, slog.Default()),
		AIManager:    ai.NewManager(nil, slog.Default(), &fixedGenerator{text: "your schedule"}),
	})
	return srv, s
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	recorder := httptest.NewRecorder()
	srv.Handler().ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, resp.Code)

	srv.health.SetReady(false)
	resp = doRequest(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestCreateAndListTasks(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/users/u1/tasks",
		`{"title": "Write tests", "priority": 2}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created provider.TaskSnapshot
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	resp = doRequest(t, srv, http.MethodGet, "/api/users/u1/tasks?list=unprioritized", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var listed struct {
		Tasks []store.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &listed))
	require.Len(t, listed.Tasks, 1)
	assert.Equal(t, "Write tests", listed.Tasks[0].Title)
	assert.Equal(t, 0, listed.Tasks[0].Position)
}

func TestCreateTaskValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/users/u1/tasks", `{"title": ""}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doRequest(t, srv, http.MethodPost, "/api/users/u1/tasks", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doRequest(t, srv, http.MethodGet, "/api/users/u1/tasks?list=bogus", "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMoveTask(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	task := store.Task{
		UserID: "u1", Provider: provider.Local, ProviderTaskID: "t1",
		Title: "move me", Status: provider.StatusActive,
	}
	require.NoError(t, s.Tasks.Create(ctx, &task))

	resp := doRequest(t, srv, http.MethodPost, "/api/tasks/"+task.ID+"/move",
		`{"list_type": "prioritized"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var moved store.Task
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &moved))
	assert.Equal(t, store.ListPrioritized, moved.ListType)
	assert.Equal(t, 0, moved.Position)

	// Unknown task id
	resp = doRequest(t, srv, http.MethodPost, "/api/tasks/nope/move",
		`{"list_type": "prioritized"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestReorderTasks(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"first", "second", "third"} {
		task := store.Task{
			UserID: "u1", Provider: provider.Local, ProviderTaskID: title,
			Title: title, Status: provider.StatusActive,
		}
		require.NoError(t, s.Tasks.Create(ctx, &task))
		ids = append(ids, task.ID)
	}

	body, err := json.Marshal(map[string]any{
		"list_type": store.ListUnprioritized,
		"task_ids":  []string{ids[2], ids[0], ids[1]},
	})
	require.NoError(t, err)

	resp := doRequest(t, srv, http.MethodPost, "/api/users/u1/tasks/reorder", string(body))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var listed struct {
		Tasks []store.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &listed))
	require.Len(t, listed.Tasks, 3)
	assert.Equal(t, "third", listed.Tasks[0].Title)
	assert.Equal(t, "first", listed.Tasks[1].Title)
	assert.Equal(t, "second", listed.Tasks[2].Title)

	// Reordering an unknown id in the partition is rejected
	resp = doRequest(t, srv, http.MethodPost, "/api/users/u1/tasks/reorder",
		`{"list_type": "unprioritized", "task_ids": ["a", "b", "c"]}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSyncReportsOutcomes(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	_, err := s.Accounts.Upsert(ctx,
		provider.Identity{UserID: "u1", Provider: provider.Local, Email: "local"},
		store.AccountFields{})
	require.NoError(t, err)

	resp := doRequest(t, srv, http.MethodPost, "/api/users/u1/sync", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Accounts []reconcile.AccountOutcome `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Accounts, 1)
	assert.Equal(t, reconcile.OutcomeOK, body.Accounts[0].Status)
}

func TestGenerateSchedule(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/users/u1/schedule",
		`{"date": "2026-09-01", "slot_minutes": 30}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "your schedule", body["schedule"])

	// Empty body falls back to defaults
	resp = doRequest(t, srv, http.MethodPost, "/api/users/u1/schedule", "")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, srv, http.MethodPost, "/api/users/u1/schedule", `{"date": "bogus"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMetricsServerRequiresProvider(t *testing.T) {
	_, err := NewMetricsServer(MetricsServerConfig{})
	assert.Error(t, err)
}
