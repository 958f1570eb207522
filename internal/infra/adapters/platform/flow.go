package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/adapter"
)

// Affordances lists the selectors of each progress control on an apply form.
type Affordances struct {
	Submit []string
	Review []string
	Next   []string
}

// ApplyFlow drives an opened application form to submission. At every state
// it prefers submit, then review, then next; each click uses one step of the
// budget and the flow never clicks past StepLimit.
type ApplyFlow struct {
	Affordances Affordances
	StepLimit   int
	WaitTimeout time.Duration
	Pacer       adapter.Pacer
}

type FlowResult struct {
	State model.ApplyState
	Steps int
	Trace []model.Affordance
}

// Run returns a result in a terminal state. The error is nil only when the
// application was submitted.
func (f *ApplyFlow) Run(ctx context.Context, b adapter.Browser) (FlowResult, error) {
	res := FlowResult{State: model.ApplyOpened}
	limit := f.StepLimit
	if limit <= 0 {
		limit = 5
	}

	for !res.State.IsTerminal() {
		if res.Steps >= limit {
			res.State = model.ApplyStepLimitExceeded
			return res, fmt.Errorf("%w: %d steps", domain.ErrStepLimitExceeded, res.Steps)
		}

		aff, el, err := f.detect(ctx, b)
		if err != nil {
			res.State = model.ApplyAborted
			return res, err
		}
		if aff == model.AffordanceNone {
			res.State = model.ApplyAborted
			return res, fmt.Errorf("%w: in state %s", domain.ErrNoAffordance, res.State)
		}

		if err := b.Click(ctx, el); err != nil {
			res.State = model.ApplyAborted
			return res, fmt.Errorf("%w: click %s: %v", domain.ErrApply, aff, err)
		}
		res.Steps++
		res.Trace = append(res.Trace, aff)
		res.State = next(aff)

		if !res.State.IsTerminal() && f.Pacer != nil {
			if err := f.Pacer.Wait(ctx, adapter.DelayStep); err != nil {
				res.State = model.ApplyAborted
				return res, err
			}
		}
	}
	return res, nil
}

func next(a model.Affordance) model.ApplyState {
	switch a {
	case model.AffordanceSubmit:
		return model.ApplySubmitted
	case model.AffordanceReview:
		return model.ApplyReviewing
	default:
		return model.ApplyFormStep
	}
}

// detect waits until any affordance is visible and returns the one with the
// highest priority. It reports AffordanceNone if nothing shows up in time.
func (f *ApplyFlow) detect(ctx context.Context, b adapter.Browser) (model.Affordance, adapter.Element, error) {
	var (
		found model.Affordance
		el    adapter.Element
	)
	ordered := []struct {
		kind model.Affordance
		sels []string
	}{
		{model.AffordanceSubmit, f.Affordances.Submit},
		{model.AffordanceReview, f.Affordances.Review},
		{model.AffordanceNext, f.Affordances.Next},
	}

	pred := func(ctx context.Context) (bool, error) {
		for _, o := range ordered {
			for _, sel := range o.sels {
				els, err := b.FindElements(ctx, sel)
				if err != nil {
					return false, err
				}
				if len(els) > 0 {
					found, el = o.kind, els[0]
					return true, nil
				}
			}
		}
		return false, nil
	}

	err := b.WaitUntil(ctx, pred, f.WaitTimeout)
	switch {
	case err == nil:
		return found, el, nil
	case errors.Is(err, domain.ErrTimeout):
		return model.AffordanceNone, nil, nil
	case ctx.Err() != nil:
		return model.AffordanceNone, nil, ctx.Err()
	default:
		return model.AffordanceNone, nil, fmt.Errorf("%w: %v", domain.ErrApply, err)
	}
}
