package http

import (
	"time"

	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/usecase"
)

type errorResponse struct {
	Error string `json:"error"`
}

type runResponse struct {
	Processed           bool   `json:"processed"`
	Queued              bool   `json:"queued,omitempty"`
	TaskID              string `json:"taskId,omitempty"`
	Status              string `json:"status,omitempty"`
	ApplicationsCreated *int   `json:"applicationsCreated,omitempty"`
	TargetApplications  *int   `json:"targetApplications,omitempty"`
}

func toRunResponse(res usecase.RunResult) runResponse {
	out := runResponse{Processed: res.Processed}
	if res.Processed {
		n := res.ApplicationsCreated
		out.TaskID = res.TaskID
		out.Status = string(res.Status)
		out.ApplicationsCreated = &n
	}
	return out
}

type webhookRequest struct {
	UserID string `json:"userId"`
}

type applicationDTO struct {
	ID                string     `json:"id"`
	TaskID            string     `json:"taskId,omitempty"`
	JobTitle          string     `json:"jobTitle"`
	Company           string     `json:"company"`
	Platform          string     `json:"platform"`
	JobURL            string     `json:"jobUrl"`
	Location          string     `json:"location"`
	ApplicationMethod string     `json:"applicationMethod"`
	Status            string     `json:"status"`
	AppliedAt         time.Time  `json:"appliedAt"`
	ResponseReceived  bool       `json:"responseReceived"`
	ResponseAt        *time.Time `json:"responseAt,omitempty"`
}

type historyResponse struct {
	UserID                string           `json:"userId"`
	Applications          []applicationDTO `json:"applications"`
	ApplicationsRemaining int              `json:"applicationsRemaining"`
}

func toHistoryResponse(h *usecase.ApplicationHistory) historyResponse {
	out := historyResponse{UserID: h.UserID, ApplicationsRemaining: h.ApplicationsRemaining, Applications: []applicationDTO{}}
	for _, r := range h.Applications {
		out.Applications = append(out.Applications, applicationDTO{
			ID:                r.ID,
			TaskID:            r.TaskID,
			JobTitle:          r.JobTitle,
			Company:           r.Company,
			Platform:          r.Platform,
			JobURL:            r.JobURL,
			Location:          r.Location,
			ApplicationMethod: r.ApplicationMethod,
			Status:            r.Status,
			AppliedAt:         r.AppliedAt,
			ResponseReceived:  r.ResponseReceived,
			ResponseAt:        r.ResponseAt,
		})
	}
	return out
}

type statsResponse struct {
	UserID                 string         `json:"userId"`
	PlanID                 string         `json:"planId,omitempty"`
	TotalApplications      int            `json:"totalApplications"`
	SuccessfulApplications int            `json:"successfulApplications"`
	ApplicationLimit       int            `json:"applicationLimit"`
	ApplicationsRemaining  int            `json:"applicationsRemaining"`
	ByPlatform             map[string]int `json:"byPlatform"`
	LastRunAt              *time.Time     `json:"lastRunAt,omitempty"`
}

func toStatsResponse(s *model.ApplicationStats) statsResponse {
	return statsResponse{
		UserID:                 s.UserID,
		PlanID:                 s.PlanID,
		TotalApplications:      s.Total,
		SuccessfulApplications: s.Successful,
		ApplicationLimit:       s.ApplicationLimit,
		ApplicationsRemaining:  s.ApplicationsRemaining,
		ByPlatform:             s.ByPlatform,
		LastRunAt:              s.LastRunAt,
	}
}

type taskResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Status      string     `json:"status"`
	WorkerID    string     `json:"workerId,omitempty"`
	Outcome     string     `json:"outcome,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Status:      string(t.Status),
		WorkerID:    t.WorkerID,
		Outcome:     t.Outcome,
		Error:       t.LastError,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}
