//go:build !integration

package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"jobsee-orchestrator/internal/domain"
)

// --- User Model Tests ---

func TestNewUser(t *testing.T) {
	t.Run("should create a new user successfully", func(t *testing.T) {
		user, err := NewUser("", " Jane@Example.com ", "Jane Doe", "basic")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if user.ID == "" {
			t.Error("expected user ID to be non-empty")
		}
		if user.Email != "jane@example.com" {
			t.Errorf("expected normalized email, but got %s", user.Email)
		}
		if !user.Active {
			t.Error("expected new user to be active")
		}
	})

	t.Run("should fail with invalid email", func(t *testing.T) {
		_, err := NewUser("", "nope", "x", "basic")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, but got %v", err)
		}
	})
}

func TestUser_SearchTargets(t *testing.T) {
	u := &User{
		ID:           "u1",
		TargetTitles: []string{"Go Engineer", "", "SRE", "Go Engineer", "Backend", "Platform"},
	}

	t.Run("should cap and dedupe titles", func(t *testing.T) {
		got := u.SearchTitles(3)
		want := "Go Engineer,SRE,Backend"
		if strings.Join(got, ",") != want {
			t.Errorf("expected %s, but got %v", want, got)
		}
	})

	t.Run("should default locations to Remote", func(t *testing.T) {
		got := u.SearchLocations(2)
		if len(got) != 1 || got[0] != DefaultLocation {
			t.Errorf("expected [Remote], but got %v", got)
		}
	})
}

func TestUser_CredentialFor(t *testing.T) {
	u := &User{ID: "u1", Credentials: map[string]Credential{
		PlatformLinkedIn: {Username: "a", Secret: "sealed"},
		PlatformIndeed:   {Username: "b"},
	}}

	if _, ok := u.CredentialFor(PlatformLinkedIn); !ok {
		t.Error("expected LinkedIn credential to be present")
	}
	if _, ok := u.CredentialFor(PlatformIndeed); ok {
		t.Error("expected credential without secret to be treated as missing")
	}
	if !u.HasAnyCredential() {
		t.Error("expected HasAnyCredential to be true")
	}
}

// --- Quota Model Tests ---

func TestUserQuota_Grant(t *testing.T) {
	q := &UserQuota{UserID: "u1", ApplicationLimit: 10, AppliedCount: 7}

	cases := []struct {
		name      string
		requested int
		want      int
	}{
		{"should grant full request under headroom", 2, 2},
		{"should clamp to headroom", 50, 3},
		{"should grant zero for negative request", -1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := q.Grant(tc.requested); got != tc.want {
				t.Errorf("expected %d, but got %d", tc.want, got)
			}
		})
	}
}

func TestUserQuota_Apply(t *testing.T) {
	t.Run("should clamp and flag overrun", func(t *testing.T) {
		q := &UserQuota{UserID: "u1", ApplicationLimit: 10, AppliedCount: 9}
		added, overrun := q.Apply(3, time.Now())
		if added != 1 || !overrun {
			t.Errorf("expected added=1 overrun=true, but got %d %v", added, overrun)
		}
		if q.AppliedCount != 10 {
			t.Errorf("expected applied count 10, but got %d", q.AppliedCount)
		}
		if q.LastRunAt == nil {
			t.Error("expected LastRunAt to be stamped")
		}
	})
}

// --- Task Model Tests ---

func TestTask_Lifecycle(t *testing.T) {
	task, err := NewTask("u1")
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if task.Status != TaskStatusPending {
		t.Fatalf("expected pending, but got %s", task.Status)
	}

	t.Run("should finish only once", func(t *testing.T) {
		if err := task.Claim("w1", time.Now()); err != nil {
			t.Fatalf("claim: %v", err)
		}
		changed, err := task.Finish(TaskStatusCompleted, "3 applications", time.Now())
		if err != nil || !changed {
			t.Fatalf("expected first finish to change state, got %v %v", changed, err)
		}
		changed, err = task.Finish(TaskStatusFailed, "late", time.Now())
		if err != nil || changed {
			t.Errorf("expected second finish to be a no-op, got %v %v", changed, err)
		}
		if task.Status != TaskStatusCompleted || task.LastError != "" {
			t.Errorf("expected completed task to stay unchanged, got %+v", task)
		}
	})

	t.Run("should refuse to claim a non-pending task", func(t *testing.T) {
		if err := task.Claim("w2", time.Now()); !errors.Is(err, domain.ErrQueueClaimConflict) {
			t.Errorf("expected ErrQueueClaimConflict, but got %v", err)
		}
	})
}

func TestPlanByID(t *testing.T) {
	p, err := PlanByID("premium")
	if err != nil || p.ApplicationLimit != 500 || p.PriceCents != 4999 {
		t.Errorf("unexpected premium plan: %+v %v", p, err)
	}
	if _, err := PlanByID("gold"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, but got %v", err)
	}
	if all := Plans(); len(all) != 3 || all[0].ID != "basic" {
		t.Errorf("expected catalog ordered by limit, got %+v", all)
	}
}
