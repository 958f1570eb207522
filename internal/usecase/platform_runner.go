package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/adapter"
	"jobsee-orchestrator/internal/infra/metrics"
)

const (
	defaultMaxTitles    = 3
	defaultMaxLocations = 2
	defaultPerSearchCap = 10
)

// PlatformPlan is one platform taking part in runs, with its share weight
// and limits.
type PlatformPlan struct {
	Driver       adapter.PlatformDriver
	Pacer        adapter.Pacer
	Weight       float64
	HardCap      int
	DailyCap     int
	MaxTitles    int
	MaxLocations int
	PerSearchCap int
}

func (p PlatformPlan) Name() string { return p.Driver.Name() }

// platformRunner drives one authenticated platform session through the
// user's searches until the sub-allocation is used up.
type platformRunner struct {
	log *zerolog.Logger
	now func() time.Time
}

type runTarget struct {
	user   *model.User
	taskID string
	limit  int
}

// run never returns an error: failures are reported in the outcome. Records
// collected before a fatal error are kept.
func (r *platformRunner) run(ctx context.Context, plan PlatformPlan, sess adapter.Session, t runTarget) model.PlatformOutcome {
	name := plan.Name()
	out := model.PlatformOutcome{Platform: name, Allocated: t.limit, Started: true}
	log := r.log.With().Str("platform", name).Logger()

	maxTitles := plan.MaxTitles
	if maxTitles <= 0 {
		maxTitles = defaultMaxTitles
	}
	maxLocs := plan.MaxLocations
	if maxLocs <= 0 {
		maxLocs = defaultMaxLocations
	}
	perSearch := plan.PerSearchCap
	if perSearch <= 0 {
		perSearch = defaultPerSearchCap
	}

	seen := make(map[string]struct{})
	searches := 0
	for _, title := range t.user.SearchTitles(maxTitles) {
		for _, loc := range t.user.SearchLocations(maxLocs) {
			if plan.Pacer.ShouldStop(len(out.Records), t.limit) {
				return out
			}
			if searches > 0 {
				if err := plan.Pacer.Wait(ctx, adapter.DelaySearch); err != nil {
					out.Err = err
					return out
				}
			}
			searches++

			q := adapter.SearchQuery{Title: title, Location: loc, MaxResults: perSearch}
			cur, err := plan.Driver.SearchCandidates(ctx, sess, q)
			if err != nil {
				if domain.IsRecoverable(err) && ctx.Err() == nil {
					log.Warn().Err(err).Str("title", title).Str("location", loc).Msg("search failed, moving on")
					continue
				}
				out.Err = err
				return out
			}
			if err := r.drain(ctx, plan, sess, cur, loc, t, seen, &out, &log); err != nil {
				out.Err = err
				return out
			}
		}
	}
	return out
}

// drain applies to candidates from one search. A non-nil error ends the
// platform run.
func (r *platformRunner) drain(ctx context.Context, plan PlatformPlan, sess adapter.Session, cur adapter.CandidateCursor,
	location string, t runTarget, seen map[string]struct{}, out *model.PlatformOutcome, log *zerolog.Logger) error {
	name := plan.Name()
	for {
		if plan.Pacer.ShouldStop(len(out.Records), t.limit) {
			return nil
		}
		l, ok, err := cur.Next(ctx)
		if err != nil {
			if domain.IsRecoverable(err) && ctx.Err() == nil {
				log.Warn().Err(err).Msg("listing cursor failed, next search")
				return nil
			}
			return err
		}
		if !ok {
			return nil
		}
		key := l.URL
		if key == "" {
			key = l.ID
		}
		if _, dup := seen[key]; dup {
			out.Skipped++
			continue
		}
		seen[key] = struct{}{}

		if out.Attempted > 0 {
			if err := plan.Pacer.Wait(ctx, adapter.DelayCandidate); err != nil {
				return err
			}
		}
		out.Attempted++

		rec, err := plan.Driver.ApplyToCandidate(ctx, sess, l)
		if err != nil {
			if domain.IsRecoverable(err) && ctx.Err() == nil {
				metrics.IncApplyAttempt(name, "skipped")
				out.Skipped++
				log.Debug().Err(err).Str("job_url", l.URL).Msg("candidate skipped")
				continue
			}
			metrics.IncApplyAttempt(name, "error")
			return err
		}
		metrics.IncApplyAttempt(name, "submitted")
		out.Records = append(out.Records, r.complete(rec, l, name, location, t))
		log.Info().Str("job_url", l.URL).Str("company", l.Company).Int("applied", len(out.Records)).Msg("application submitted")
	}
}

// complete fills the fields the driver leaves to the caller.
func (r *platformRunner) complete(rec *model.JobApplicationRecord, l model.CandidateListing, platform, location string, t runTarget) *model.JobApplicationRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.UserID = t.user.ID
	rec.TaskID = t.taskID
	if rec.Platform == "" {
		rec.Platform = platform
	}
	if rec.JobURL == "" {
		rec.JobURL = l.URL
	}
	if rec.JobTitle == "" {
		rec.JobTitle = l.Title
	}
	if rec.Company == "" {
		rec.Company = l.Company
	}
	if rec.Location == "" {
		rec.Location = location
	}
	if rec.Status == "" {
		rec.Status = model.ApplicationStatusApplied
	}
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = r.now().UTC()
	}
	return rec
}
