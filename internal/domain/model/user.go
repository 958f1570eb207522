package model

import (
	"strings"
	"time"

	"jobsee-orchestrator/internal/domain"

	"github.com/google/uuid"
)

// DefaultLocation is used when a user has not configured any target location.
const DefaultLocation = "Remote"

// Credential is a platform login. Secret is a sealed reference and is only
// opened by the credential vault right before authentication.
type Credential struct {
	Username string
	Secret   string
}

func (c Credential) IsZero() bool { return c.Username == "" || c.Secret == "" }

// User is the account an application run is performed for.
type User struct {
	ID              string
	Email           string
	FullName        string
	PlanID          string
	Active          bool
	Credentials     map[string]Credential
	TargetTitles    []string
	TargetLocations []string
	CreatedAt       time.Time
}

func NewUser(id, email, fullName, planID string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:          id,
		Email:       email,
		FullName:    strings.TrimSpace(fullName),
		PlanID:      planID,
		Active:      true,
		Credentials: map[string]Credential{},
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// CredentialFor returns the stored credential for platform, if any.
func (u *User) CredentialFor(platform string) (Credential, bool) {
	if u == nil || u.Credentials == nil {
		return Credential{}, false
	}
	c, ok := u.Credentials[platform]
	if !ok || c.IsZero() {
		return Credential{}, false
	}
	return c, true
}

// HasAnyCredential reports whether at least one platform login is stored.
func (u *User) HasAnyCredential() bool {
	for _, c := range u.Credentials {
		if !c.IsZero() {
			return true
		}
	}
	return false
}

// SearchTitles returns at most max non-empty titles, in order.
func (u *User) SearchTitles(max int) []string {
	return firstN(u.TargetTitles, max)
}

// SearchLocations returns at most max locations, falling back to Remote.
func (u *User) SearchLocations(max int) []string {
	locs := firstN(u.TargetLocations, max)
	if len(locs) == 0 {
		return []string{DefaultLocation}
	}
	return locs
}

func firstN(in []string, max int) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
