package model

// CandidateListing is one job found by a platform search.
type CandidateListing struct {
	ID      string
	URL     string
	Title   string
	Company string
}

// ApplyState is a node of the bounded apply workflow.
type ApplyState string

const (
	ApplyOpened            ApplyState = "opened"
	ApplyFormStep          ApplyState = "form_step"
	ApplyReviewing         ApplyState = "reviewing"
	ApplySubmitted         ApplyState = "submitted"
	ApplyAborted           ApplyState = "aborted"
	ApplyStepLimitExceeded ApplyState = "step_limit_exceeded"
)

func (s ApplyState) IsTerminal() bool {
	switch s {
	case ApplySubmitted, ApplyAborted, ApplyStepLimitExceeded:
		return true
	}
	return false
}

// Affordance is a progress control visible on an apply form.
type Affordance string

const (
	AffordanceNone   Affordance = ""
	AffordanceNext   Affordance = "next"
	AffordanceReview Affordance = "review"
	AffordanceSubmit Affordance = "submit"
)

// PlatformOutcome summarizes one platform's part in a run.
type PlatformOutcome struct {
	Platform  string
	Allocated int
	Started   bool
	Attempted int
	Skipped   int
	Records   []*JobApplicationRecord
	Err       error
}
