package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/infra/logging"
	"jobsee-orchestrator/internal/infra/worker"
)

const maxBodyBytes = 1 << 16

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRunAlreadyQueued):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAccountInactive),
		errors.Is(err, domain.ErrQuotaExhausted),
		errors.Is(err, domain.ErrMissingCredentials),
		errors.Is(err, domain.ErrNoTargetTitles):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrPoolClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	writeJSON(w, code, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcessQueue runs one task synchronously and reports its result.
func (s *Server) handleProcessQueue(w http.ResponseWriter, r *http.Request) {
	res, err := s.runner.RunNow(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(res))
}

// handleWebhook optionally queues a run for userId, then wakes a worker
// without waiting for it.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, domain.ErrInvalidArgument)
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
	}

	resp := runResponse{Queued: true}
	if req.UserID != "" {
		res, err := s.runs.Enqueue(r.Context(), req.UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		target := res.TargetApplications
		resp.TaskID = res.Task.ID
		resp.Status = string(res.Task.Status)
		resp.TargetApplications = &target
	}

	if err := s.runner.Dispatch(); err != nil {
		// A queued task is picked up by the next scheduler tick.
		if resp.TaskID == "" {
			s.writeError(w, r, err)
			return
		}
		logging.With(r.Context(), s.log).Warn().Err(err).Str("task_id", resp.TaskID).Msg("dispatch deferred to scheduler")
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	h, err := s.history.Applications(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryResponse(h))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.history.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(st))
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.history.Task(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(t))
}
