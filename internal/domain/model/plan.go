package model

import (
	"sort"

	"jobsee-orchestrator/internal/domain"
)

// Plan is a purchasable application package. Price is in cents.
type Plan struct {
	ID               string
	Name             string
	ApplicationLimit int
	PriceCents       int64
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

var plans = map[string]Plan{
	"basic":      {ID: "basic", Name: "Basic", ApplicationLimit: 100, PriceCents: 2999},
	"premium":    {ID: "premium", Name: "Premium", ApplicationLimit: 500, PriceCents: 4999},
	"enterprise": {ID: "enterprise", Name: "Enterprise", ApplicationLimit: 1000, PriceCents: 7999},
}

// PlanByID looks up a plan in the static catalog.
func PlanByID(id string) (Plan, error) {
	p, ok := plans[id]
	if !ok {
		return Plan{}, domain.ErrNotFound
	}
	return p, nil
}

// Plans returns the catalog ordered by application limit.
func Plans() []Plan {
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ApplicationLimit < out[j].ApplicationLimit })
	return out
}
