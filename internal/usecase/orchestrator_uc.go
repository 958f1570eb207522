package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/adapter"
	"jobsee-orchestrator/internal/domain/ports/repository"
	"jobsee-orchestrator/internal/infra/logging"
	"jobsee-orchestrator/internal/infra/metrics"
	"jobsee-orchestrator/internal/infra/pacing"
)

const finalizeTimeout = 30 * time.Second

type OrchestratorConfig struct {
	WorkerID        string
	RunTimeout      time.Duration
	ClaimRetries    int
	FinalizeRetries int
	RetryBackoff    time.Duration
}

// RunResult describes one "process one task" invocation. Processed is false
// when the queue had no claimable work.
type RunResult struct {
	Processed           bool
	TaskID              string
	ApplicationsCreated int
	Status              model.TaskStatus
}

// Orchestrator runs claimed tasks end to end: allocate headroom, drive each
// platform in turn and finalize records, quota and task state in one
// transaction.
type Orchestrator struct {
	tasks   repository.TaskRepository
	users   repository.UserRepository
	apps    repository.ApplicationRepository
	quota   *QuotaUseCase
	tm      repository.TransactionManager
	plans   []PlatformPlan
	secrets adapter.SecretOpener
	budget  adapter.DailyBudget // optional
	alerter adapter.Alerter     // optional
	cfg     OrchestratorConfig

	runner platformRunner
	tracer trace.Tracer
	log    *zerolog.Logger
	now    func() time.Time
	sleep  pacing.Sleeper
}

func NewOrchestrator(
	tasks repository.TaskRepository,
	users repository.UserRepository,
	apps repository.ApplicationRepository,
	quota *QuotaUseCase,
	tm repository.TransactionManager,
	plans []PlatformPlan,
	secrets adapter.SecretOpener,
	budget adapter.DailyBudget,
	alerter adapter.Alerter,
	cfg OrchestratorConfig,
	logger *zerolog.Logger,
) *Orchestrator {
	if cfg.WorkerID == "" {
		cfg.WorkerID = model.NewWorkerID("")
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	l := logger.With().Str("component", "orchestrator").Logger()
	o := &Orchestrator{
		tasks:   tasks,
		users:   users,
		apps:    apps,
		quota:   quota,
		tm:      tm,
		plans:   plans,
		secrets: secrets,
		budget:  budget,
		alerter: alerter,
		cfg:     cfg,
		tracer:  otel.Tracer("usecase/Orchestrator"),
		log:     &l,
		now:     time.Now,
		sleep:   pacing.ContextSleep,
	}
	o.runner = platformRunner{log: o.log, now: func() time.Time { return o.now() }}
	return o
}

// WorkerID identifies this orchestrator in claimed tasks.
func (o *Orchestrator) WorkerID() string { return o.cfg.WorkerID }

type runReport struct {
	status   model.TaskStatus
	detail   string
	reserved bool
	granted  int
	outcomes []model.PlatformOutcome
	records  []*model.JobApplicationRecord
}

// ProcessOne claims and runs the oldest pending task. An empty queue is not
// an error. The returned error is non-nil only when claiming or
// finalization failed; platform failures are part of the task outcome.
func (o *Orchestrator) ProcessOne(ctx context.Context) (RunResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.process_one",
		trace.WithAttributes(attribute.String("worker.id", o.cfg.WorkerID)),
	)
	defer span.End()

	task, err := o.claim(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return RunResult{}, nil
	case errors.Is(err, domain.ErrQueueClaimConflict):
		o.log.Debug().Err(err).Msg("claim kept losing races, leaving work to other workers")
		return RunResult{}, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
		return RunResult{}, fmt.Errorf("claim task: %w", err)
	}

	span.SetAttributes(attribute.String("task.id", task.ID), attribute.String("user.id", task.UserID))
	ctx = logging.WithTaskID(ctx, task.ID)
	ctx = logging.WithUserID(ctx, task.UserID)
	log := logging.With(ctx, o.log)
	log.Info().Str("worker_id", o.cfg.WorkerID).Msg("task claimed")
	start := o.now()

	runCtx := ctx
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}
	rep := o.execute(runCtx, task, log)

	// Finalization outlives the run deadline and caller cancellation.
	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	res, err := o.finalize(finCtx, task, rep, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize failed")
		log.Error().Err(err).Int("records", len(rep.records)).Msg("task finalization failed, task left in processing")
		o.alert(finCtx, "finalize failed", fmt.Sprintf("task %s user %s: %v", task.ID, task.UserID, err), log)
		return res, err
	}

	span.SetAttributes(attribute.String("task.status", string(rep.status)), attribute.Int("applications", res.ApplicationsCreated))
	log.Info().
		Str("status", string(rep.status)).
		Int("granted", rep.granted).
		Int("applications", res.ApplicationsCreated).
		Dur("duration", o.now().Sub(start)).
		Msg("task finished")
	return res, nil
}

func (o *Orchestrator) claim(ctx context.Context) (*model.Task, error) {
	for i := 0; ; i++ {
		t, err := o.tasks.ClaimNextPending(ctx, o.cfg.WorkerID)
		switch {
		case err == nil:
			metrics.IncClaim("claimed")
			return t, nil
		case errors.Is(err, domain.ErrNotFound):
			metrics.IncClaim("empty")
			return nil, err
		case errors.Is(err, domain.ErrQueueClaimConflict):
			metrics.IncClaim("conflict")
			if i >= o.cfg.ClaimRetries {
				return nil, err
			}
			if serr := o.sleep(ctx, o.backoff(i)); serr != nil {
				return nil, serr
			}
		default:
			metrics.IncClaim("error")
			return nil, err
		}
	}
}

func (o *Orchestrator) backoff(attempt int) time.Duration {
	return o.cfg.RetryBackoff << attempt
}

// execute performs the run and reports how the task should be finalized.
func (o *Orchestrator) execute(ctx context.Context, task *model.Task, log *zerolog.Logger) runReport {
	fail := func(err error) runReport {
		log.Warn().Err(err).Msg("task cannot run")
		return runReport{status: model.TaskStatusFailed, detail: err.Error()}
	}

	user, err := o.users.FindByID(ctx, repository.NoTX, task.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = domain.ErrUserNotFound
		}
		return fail(err)
	}
	if !user.Active {
		return fail(domain.ErrAccountInactive)
	}
	if len(user.SearchTitles(0)) == 0 {
		return fail(domain.ErrNoTargetTitles)
	}

	eligible := make([]PlatformPlan, 0, len(o.plans))
	for _, p := range o.plans {
		if _, ok := user.CredentialFor(p.Name()); ok {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return fail(fmt.Errorf("%w: no enabled platform has a stored login", domain.ErrMissingCredentials))
	}

	granted, err := o.quota.Reserve(ctx, user.ID, targetApplications(eligible))
	if err != nil {
		return fail(err)
	}
	metrics.ObserveGranted(granted)
	rep := runReport{reserved: true, granted: granted}
	if granted == 0 {
		log.Info().Msg("quota exhausted, nothing to do")
		rep.status = model.TaskStatusCompleted
		rep.detail = domain.ErrQuotaExhausted.Error()
		return rep
	}

	alloc := Allocate(granted, eligible)
	log.Info().Int("granted", granted).Interface("allocation", alloc.PerPlatform).Msg("headroom allocated")

	attempted, started := 0, 0
	for _, p := range eligible {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Str("platform", p.Name()).Msg("run deadline reached, platform not started")
			rep.outcomes = append(rep.outcomes, model.PlatformOutcome{Platform: p.Name(), Err: ctx.Err()})
			continue
		}
		n := o.dailyLimit(ctx, user.ID, p, alloc.For(p.Name()), log)
		if n == 0 {
			rep.outcomes = append(rep.outcomes, model.PlatformOutcome{Platform: p.Name()})
			continue
		}
		attempted++
		out := o.runPlatform(ctx, p, user, task.ID, n, log)
		if out.Started {
			started++
		}
		rep.outcomes = append(rep.outcomes, out)
		rep.records = append(rep.records, out.Records...)
	}

	if attempted > 0 && started == 0 {
		var errs []error
		for _, out := range rep.outcomes {
			if out.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", out.Platform, out.Err))
			}
		}
		rep.status = model.TaskStatusFailed
		rep.detail = "no platform could start: " + errors.Join(errs...).Error()
		return rep
	}
	rep.status = model.TaskStatusCompleted
	rep.detail = summarize(rep.outcomes)
	return rep
}

// dailyLimit caps n by the remaining daily budget of the platform. The
// budget store failing open keeps runs going when redis is unavailable.
func (o *Orchestrator) dailyLimit(ctx context.Context, userID string, p PlatformPlan, n int, log *zerolog.Logger) int {
	if o.budget == nil || p.DailyCap <= 0 || n == 0 {
		return n
	}
	rem, err := o.budget.Remaining(ctx, userID, p.Name(), p.DailyCap)
	if err != nil {
		log.Warn().Err(err).Str("platform", p.Name()).Msg("daily budget unavailable, using allocation")
		return n
	}
	if rem < n {
		log.Info().Str("platform", p.Name()).Int("allocated", n).Int("daily_remaining", rem).Msg("allocation capped by daily budget")
		return rem
	}
	return n
}

func (o *Orchestrator) runPlatform(ctx context.Context, p PlatformPlan, user *model.User, taskID string, n int, log *zerolog.Logger) model.PlatformOutcome {
	name := p.Name()
	ctx = logging.WithPlatform(ctx, name)
	ctx, span := o.tracer.Start(ctx, "orchestrator.platform",
		trace.WithAttributes(attribute.String("platform", name), attribute.Int("allocated", n)),
	)
	defer span.End()
	plog := logging.With(ctx, o.log)
	start := o.now()
	defer func() { metrics.ObservePlatformRun(name, o.now().Sub(start)) }()

	out := model.PlatformOutcome{Platform: name, Allocated: n}
	cred, _ := user.CredentialFor(name)
	secret, err := o.secrets.Open(cred.Secret)
	if err != nil {
		metrics.IncPlatformAuth(name, "error")
		out.Err = fmt.Errorf("%w: open stored secret: %v", domain.ErrAuth, err)
		plog.Error().Err(err).Msg("cannot open stored credential")
		span.RecordError(out.Err)
		return out
	}

	sess, err := p.Driver.Authenticate(ctx, adapter.Credentials{Username: cred.Username, Password: secret})
	if err != nil {
		metrics.IncPlatformAuth(name, "failed")
		out.Err = err
		plog.Warn().Err(err).Str("username", logging.Redact(cred.Username, false)).Msg("platform authentication failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "authentication failed")
		return out
	}
	metrics.IncPlatformAuth(name, "ok")
	defer func() {
		if err := sess.Close(); err != nil {
			plog.Debug().Err(err).Msg("session close failed")
		}
	}()

	out = o.runner.run(ctx, p, sess, runTarget{user: user, taskID: taskID, limit: n})
	if out.Err != nil {
		plog.Warn().Err(out.Err).Int("submitted", len(out.Records)).Msg("platform run ended early")
		span.RecordError(out.Err)
	}
	span.SetAttributes(attribute.Int("submitted", len(out.Records)), attribute.Int("skipped", out.Skipped))

	plog.Info().
		Int("allocated", n).
		Int("attempted", out.Attempted).
		Int("submitted", len(out.Records)).
		Int("skipped", out.Skipped).
		Msg("platform run finished")
	return out
}

// finalize writes records, commits the quota and moves the task to its
// terminal status in one transaction, retrying the whole unit on failure.
// Retries are safe: duplicate records are ignored and the quota is only
// charged for rows that were new.
func (o *Orchestrator) finalize(ctx context.Context, task *model.Task, rep runReport, log *zerolog.Logger) (RunResult, error) {
	res := RunResult{Processed: true, TaskID: task.ID, Status: rep.status}
	var (
		inserted int
		stored   int
		commit   CommitResult
		changed  bool
	)
	err := o.retry(ctx, log, func() error {
		return o.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			var err error
			inserted = 0
			if len(rep.records) > 0 {
				if inserted, err = o.apps.InsertBatch(ctx, tx, rep.records); err != nil {
					return fmt.Errorf("insert records: %w", err)
				}
			}
			if stored, err = o.apps.CountByTask(ctx, tx, task.ID); err != nil {
				return fmt.Errorf("count records: %w", err)
			}
			if rep.reserved {
				if commit, err = o.quota.CommitTx(ctx, tx, task.UserID, inserted); err != nil {
					return err
				}
			}
			if rep.status == model.TaskStatusCompleted {
				changed, err = o.tasks.MarkCompleted(ctx, tx, task.ID, rep.detail)
			} else {
				changed, err = o.tasks.MarkFailed(ctx, tx, task.ID, rep.detail)
			}
			if err != nil {
				return fmt.Errorf("mark task %s: %w", rep.status, err)
			}
			return nil
		})
	})
	if err != nil {
		metrics.IncTask("error")
		return res, err
	}
	if !changed {
		log.Warn().Msg("task was already terminal, status left unchanged")
	}

	// An earlier attempt may have committed before its acknowledgement was
	// lost; stored counts every row the task owns, inserted only this attempt's.
	if stored != inserted {
		log.Warn().Int("inserted", inserted).Int("stored", stored).Int("submitted", len(rep.records)).Msg("stored records differ from this attempt")
	}
	res.ApplicationsCreated = stored
	metrics.IncTask(string(rep.status))
	perPlatform := map[string]int{}
	for _, r := range rep.records {
		perPlatform[r.Platform]++
	}
	for name, n := range perPlatform {
		metrics.AddSubmitted(name, n)
	}
	o.consumeBudget(ctx, task.UserID, perPlatform, log)

	if commit.Overrun {
		o.alert(ctx, "quota overrun",
			fmt.Sprintf("user %s task %s: %d applications submitted, %d counted", task.UserID, task.ID, commit.Requested, commit.Added), log)
	}
	if rep.status == model.TaskStatusFailed {
		o.alert(ctx, "task failed", fmt.Sprintf("task %s user %s: %s", task.ID, task.UserID, rep.detail), log)
	}
	return res, nil
}

// consumeBudget charges daily budgets after finalize has stored the records.
func (o *Orchestrator) consumeBudget(ctx context.Context, userID string, perPlatform map[string]int, log *zerolog.Logger) {
	if o.budget == nil {
		return
	}
	for _, p := range o.plans {
		n := perPlatform[p.Name()]
		if p.DailyCap <= 0 || n == 0 {
			continue
		}
		if err := o.budget.Consume(ctx, userID, p.Name(), n); err != nil {
			log.Warn().Err(err).Str("platform", p.Name()).Msg("daily budget not updated")
		}
	}
}

func (o *Orchestrator) retry(ctx context.Context, log *zerolog.Logger, fn func() error) error {
	var err error
	for i := 0; i <= o.cfg.FinalizeRetries; i++ {
		if i > 0 {
			if serr := o.sleep(ctx, o.backoff(i-1)); serr != nil {
				return errors.Join(err, serr)
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("finalize attempt failed")
	}
	return err
}

func (o *Orchestrator) alert(ctx context.Context, subject, text string, log *zerolog.Logger) {
	if o.alerter == nil {
		return
	}
	if err := o.alerter.Alert(ctx, subject, text); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("alert not delivered")
	}
}

// summarize renders per-platform results, e.g. "LinkedIn 2/2; Indeed 0/1 (auth failed)".
func summarize(outs []model.PlatformOutcome) string {
	if len(outs) == 0 {
		return "no platforms"
	}
	parts := make([]string, 0, len(outs))
	for _, out := range outs {
		s := fmt.Sprintf("%s %d/%d", out.Platform, len(out.Records), out.Allocated)
		if out.Err != nil {
			s += " (" + out.Err.Error() + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "; ")
}
