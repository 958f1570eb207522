package model

import (
	"time"

	"jobsee-orchestrator/internal/domain"

	"github.com/google/uuid"
)

const (
	PlatformLinkedIn = "LinkedIn"
	PlatformIndeed   = "Indeed"

	MethodEasyApply   = "easy_apply"
	MethodDirectApply = "direct_apply"

	ApplicationStatusApplied = "applied"
)

// JobApplicationRecord is one successfully submitted application. Records
// are immutable once written; response tracking belongs to other systems.
type JobApplicationRecord struct {
	ID                string
	UserID            string
	TaskID            string
	JobTitle          string
	Company           string
	Platform          string
	JobURL            string
	Location          string
	ApplicationMethod string
	Status            string
	AppliedAt         time.Time
	ResponseReceived  bool
	ResponseAt        *time.Time
}

func NewJobApplicationRecord(userID, taskID, platform string, l CandidateListing, location, method string, at time.Time) (*JobApplicationRecord, error) {
	if userID == "" || platform == "" || l.URL == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &JobApplicationRecord{
		ID:                uuid.NewString(),
		UserID:            userID,
		TaskID:            taskID,
		JobTitle:          l.Title,
		Company:           l.Company,
		Platform:          platform,
		JobURL:            l.URL,
		Location:          location,
		ApplicationMethod: method,
		Status:            ApplicationStatusApplied,
		AppliedAt:         at.UTC(),
	}, nil
}

// ApplicationStats summarizes a user's history.
type ApplicationStats struct {
	UserID                string
	PlanID                string
	Total                 int
	Successful            int
	ApplicationLimit      int
	ApplicationsRemaining int
	ByPlatform            map[string]int
	LastRunAt             *time.Time
}
