package adapter

import (
	"context"

	"jobsee-orchestrator/internal/domain/model"
)

// Credentials are opened platform credentials. Never log Password.
type Credentials struct {
	Username string
	Password string
}

// Session is an authenticated platform session owned by one run.
type Session interface {
	Platform() string
	Close() error
}

// CandidateCursor is a lazy, finite, non-restartable listing sequence.
// Next returns ok=false once exhausted.
type CandidateCursor interface {
	Next(ctx context.Context) (model.CandidateListing, bool, error)
}

type SearchQuery struct {
	Title      string
	Location   string
	MaxResults int
}

// PlatformDriver automates one external job platform. Implementations are
// stateless between calls; all per-run state lives in the Session.
type PlatformDriver interface {
	Name() string
	Authenticate(ctx context.Context, creds Credentials) (Session, error)
	SearchCandidates(ctx context.Context, s Session, q SearchQuery) (CandidateCursor, error)
	// ApplyToCandidate returns a proposed record with listing, platform and
	// method fields set. The caller owns ids and persistence.
	ApplyToCandidate(ctx context.Context, s Session, l model.CandidateListing) (*model.JobApplicationRecord, error)
}

// Pacer spaces out platform actions.
type Pacer interface {
	Wait(ctx context.Context, kind DelayKind) error
	ShouldStop(appliedSoFar, ceiling int) bool
}

type DelayKind int

const (
	DelayCandidate DelayKind = iota
	DelayStep
	DelaySearch
)

func (k DelayKind) String() string {
	switch k {
	case DelayCandidate:
		return "candidate"
	case DelayStep:
		return "step"
	case DelaySearch:
		return "search"
	}
	return "unknown"
}
