//go:build !integration

package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/config"
	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/model"
	apphttp "jobsee-orchestrator/internal/infra/http"
	"jobsee-orchestrator/internal/infra/worker"
	"jobsee-orchestrator/internal/usecase"
)

type mockRunner struct {
	RunNowFunc   func(ctx context.Context) (usecase.RunResult, error)
	DispatchFunc func() error
	dispatched   int
}

func (m *mockRunner) RunNow(ctx context.Context) (usecase.RunResult, error) { return m.RunNowFunc(ctx) }
func (m *mockRunner) Dispatch() error {
	m.dispatched++
	if m.DispatchFunc != nil {
		return m.DispatchFunc()
	}
	return nil
}

type mockEnqueuer struct {
	EnqueueFunc func(ctx context.Context, userID string) (*usecase.EnqueueResult, error)
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, userID string) (*usecase.EnqueueResult, error) {
	return m.EnqueueFunc(ctx, userID)
}

type mockHistory struct {
	ApplicationsFunc func(ctx context.Context, userID string, limit int) (*usecase.ApplicationHistory, error)
	StatsFunc        func(ctx context.Context, userID string) (*model.ApplicationStats, error)
	TaskFunc         func(ctx context.Context, id string) (*model.Task, error)
}

func (m *mockHistory) Applications(ctx context.Context, userID string, limit int) (*usecase.ApplicationHistory, error) {
	return m.ApplicationsFunc(ctx, userID, limit)
}
func (m *mockHistory) Stats(ctx context.Context, userID string) (*model.ApplicationStats, error) {
	return m.StatsFunc(ctx, userID)
}
func (m *mockHistory) Task(ctx context.Context, id string) (*model.Task, error) {
	return m.TaskFunc(ctx, id)
}

func newTestServer(secret string, runner *mockRunner, runs *mockEnqueuer, history *mockHistory) http.Handler {
	l := zerolog.Nop()
	srv := apphttp.NewServer(config.HTTPConfig{WebhookSecret: secret}, runner, runs, history, &l)
	return srv.Routes()
}

func do(h http.Handler, method, path string, body []byte, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer("", &mockRunner{}, nil, nil)

	rec := do(h, http.MethodGet, "/health", nil, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestProcessQueue(t *testing.T) {
	t.Run("should return the run result", func(t *testing.T) {
		runner := &mockRunner{RunNowFunc: func(ctx context.Context) (usecase.RunResult, error) {
			return usecase.RunResult{Processed: true, TaskID: "t1", ApplicationsCreated: 3, Status: model.TaskStatusCompleted}, nil
		}}
		h := newTestServer("", runner, nil, nil)

		rec := do(h, http.MethodPost, "/process-queue", nil, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d body=%s", rec.Code, rec.Body.String())
		}
		var body map[string]any
		_ = json.NewDecoder(rec.Body).Decode(&body)
		if body["processed"] != true || body["taskId"] != "t1" || body["applicationsCreated"] != float64(3) {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("should report no work without task fields", func(t *testing.T) {
		runner := &mockRunner{RunNowFunc: func(ctx context.Context) (usecase.RunResult, error) { return usecase.RunResult{}, nil }}
		h := newTestServer("", runner, nil, nil)

		rec := do(h, http.MethodPost, "/process-queue", nil, nil)

		if rec.Code != http.StatusOK || rec.Body.String() != "{\"processed\":false}\n" {
			t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("should hide internal errors", func(t *testing.T) {
		runner := &mockRunner{RunNowFunc: func(ctx context.Context) (usecase.RunResult, error) {
			return usecase.RunResult{}, errors.New("pq: connection refused")
		}}
		h := newTestServer("", runner, nil, nil)

		rec := do(h, http.MethodPost, "/process-queue", nil, nil)

		if rec.Code != http.StatusInternalServerError || bytes.Contains(rec.Body.Bytes(), []byte("pq:")) {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
	})
}

func TestWebhook(t *testing.T) {
	const secret = "test-secret-0123456789"
	task, _ := model.NewTask("u1")
	runs := &mockEnqueuer{EnqueueFunc: func(ctx context.Context, userID string) (*usecase.EnqueueResult, error) {
		if userID != "u1" {
			return nil, domain.ErrUserNotFound
		}
		return &usecase.EnqueueResult{Task: task, TargetApplications: 3}, nil
	}}
	token, err := apphttp.NewWebhookAuth(secret).Mint("scheduler", time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	auth := map[string]string{"Authorization": "Bearer " + token}

	t.Run("should reject missing and forged tokens", func(t *testing.T) {
		h := newTestServer(secret, &mockRunner{}, runs, nil)
		forged, _ := apphttp.NewWebhookAuth("another-secret").Mint("x", time.Minute)

		if rec := do(h, http.MethodPost, "/webhook", nil, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("want 401 without token, got %d", rec.Code)
		}
		if rec := do(h, http.MethodPost, "/webhook", nil, map[string]string{"Authorization": "Bearer " + forged}); rec.Code != http.StatusUnauthorized {
			t.Errorf("want 401 for forged token, got %d", rec.Code)
		}
		if rec := do(h, http.MethodPost, "/process-queue", nil, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("want 401 on process-queue, got %d", rec.Code)
		}
	})

	t.Run("should queue a run and dispatch a worker", func(t *testing.T) {
		runner := &mockRunner{}
		h := newTestServer(secret, runner, runs, nil)

		rec := do(h, http.MethodPost, "/webhook", []byte(`{"userId":"u1"}`), auth)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("want 202, got %d body=%s", rec.Code, rec.Body.String())
		}
		var body map[string]any
		_ = json.NewDecoder(rec.Body).Decode(&body)
		if body["taskId"] != task.ID || body["queued"] != true || body["processed"] != false {
			t.Errorf("unexpected body %v", body)
		}
		if runner.dispatched != 1 {
			t.Errorf("expected one dispatch, got %d", runner.dispatched)
		}
	})

	t.Run("should dispatch without a body", func(t *testing.T) {
		runner := &mockRunner{}
		h := newTestServer(secret, runner, runs, nil)

		if rec := do(h, http.MethodPost, "/webhook", nil, auth); rec.Code != http.StatusAccepted || runner.dispatched != 1 {
			t.Errorf("expected 202 and dispatch, got %d / %d", rec.Code, runner.dispatched)
		}
	})

	t.Run("should map enqueue errors", func(t *testing.T) {
		h := newTestServer(secret, &mockRunner{}, runs, nil)

		if rec := do(h, http.MethodPost, "/webhook", []byte(`{"userId":"ghost"}`), auth); rec.Code != http.StatusNotFound {
			t.Errorf("want 404, got %d", rec.Code)
		}
		if rec := do(h, http.MethodPost, "/webhook", []byte(`{bad`), auth); rec.Code != http.StatusBadRequest {
			t.Errorf("want 400, got %d", rec.Code)
		}
	})

	t.Run("should report a saturated pool when nothing was queued", func(t *testing.T) {
		runner := &mockRunner{DispatchFunc: func() error { return worker.ErrQueueFull }}
		h := newTestServer(secret, runner, runs, nil)

		if rec := do(h, http.MethodPost, "/webhook", nil, auth); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("want 503, got %d", rec.Code)
		}
		if rec := do(h, http.MethodPost, "/webhook", []byte(`{"userId":"u1"}`), auth); rec.Code != http.StatusAccepted {
			t.Errorf("want 202 for a queued task, got %d", rec.Code)
		}
	})
}

func TestHistoryRoutes(t *testing.T) {
	applied := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	history := &mockHistory{
		ApplicationsFunc: func(ctx context.Context, userID string, limit int) (*usecase.ApplicationHistory, error) {
			if userID != "u1" {
				return nil, domain.ErrUserNotFound
			}
			return &usecase.ApplicationHistory{UserID: "u1", ApplicationsRemaining: 7, Applications: []*model.JobApplicationRecord{{
				ID: "r1", JobTitle: "Go Engineer", Company: "Acme", Platform: model.PlatformLinkedIn,
				JobURL: "https://www.linkedin.com/jobs/view/1", Location: "Remote", Status: "applied", AppliedAt: applied,
			}}}, nil
		},
		StatsFunc: func(ctx context.Context, userID string) (*model.ApplicationStats, error) {
			return &model.ApplicationStats{UserID: userID, Total: 3, Successful: 3, ApplicationLimit: 10, ApplicationsRemaining: 7,
				ByPlatform: map[string]int{model.PlatformLinkedIn: 2, model.PlatformIndeed: 1}}, nil
		},
		TaskFunc: func(ctx context.Context, id string) (*model.Task, error) {
			if id == "missing" {
				return nil, domain.ErrNotFound
			}
			return &model.Task{ID: id, UserID: "u1", Status: model.TaskStatusProcessing, WorkerID: "w1"}, nil
		},
	}
	h := newTestServer("", &mockRunner{}, nil, history)

	t.Run("should list applications", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/v1/users/u1/applications?limit=5", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("want 200, got %d", rec.Code)
		}
		var body struct {
			Applications []struct {
				JobTitle string `json:"jobTitle"`
				JobURL   string `json:"jobUrl"`
				Location string `json:"location"`
			} `json:"applications"`
			ApplicationsRemaining int `json:"applicationsRemaining"`
		}
		_ = json.NewDecoder(rec.Body).Decode(&body)
		if len(body.Applications) != 1 || body.Applications[0].JobURL != "https://www.linkedin.com/jobs/view/1" || body.ApplicationsRemaining != 7 {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("should validate limit and map unknown users", func(t *testing.T) {
		if rec := do(h, http.MethodGet, "/api/v1/users/u1/applications?limit=x", nil, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("want 400, got %d", rec.Code)
		}
		if rec := do(h, http.MethodGet, "/api/v1/users/ghost/applications", nil, nil); rec.Code != http.StatusNotFound {
			t.Errorf("want 404, got %d", rec.Code)
		}
	})

	t.Run("should return stats and task snapshots", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/v1/users/u1/stats", nil, nil)
		var st map[string]any
		_ = json.NewDecoder(rec.Body).Decode(&st)
		if rec.Code != http.StatusOK || st["totalApplications"] != float64(3) || st["applicationsRemaining"] != float64(7) {
			t.Errorf("unexpected stats %d %v", rec.Code, st)
		}

		rec = do(h, http.MethodGet, "/api/v1/tasks/t9", nil, nil)
		var tk map[string]any
		_ = json.NewDecoder(rec.Body).Decode(&tk)
		if rec.Code != http.StatusOK || tk["status"] != "processing" || tk["workerId"] != "w1" {
			t.Errorf("unexpected task %d %v", rec.Code, tk)
		}
		if rec := do(h, http.MethodGet, "/api/v1/tasks/missing", nil, nil); rec.Code != http.StatusNotFound {
			t.Errorf("want 404, got %d", rec.Code)
		}
	})
}
