//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/adapter"
	"jobsee-orchestrator/internal/domain/ports/repository"
	"jobsee-orchestrator/internal/infra/pacing"
	"jobsee-orchestrator/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// =============================
// Transactions
// =============================

type MockTxManager struct {
	mu         sync.Mutex
	serialize  bool
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// NewSerialTxManager runs callbacks one at a time, like row locks held for
// the length of a transaction.
func NewSerialTxManager() *MockTxManager { return &MockTxManager{serialize: true} }

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	if m.serialize {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Repositories
// =============================

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*model.Task

	ClaimFunc         func(ctx context.Context, workerID string) (*model.Task, error)
	MarkCompletedFunc func(ctx context.Context, tx repository.Tx, id, outcome string) (bool, error)
}

func newMemTaskRepo() *memTaskRepo { return &memTaskRepo{tasks: map[string]*model.Task{}} }

var _ repository.TaskRepository = (*memTaskRepo)(nil)

func (m *memTaskRepo) Create(ctx context.Context, tx repository.Tx, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.tasks {
		if o.UserID == t.UserID && o.Status == t.Status && !o.Status.IsTerminal() {
			return domain.ErrAlreadyExists
		}
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTaskRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTaskRepo) ClaimNextPending(ctx context.Context, workerID string) (*model.Task, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, workerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	busy := map[string]bool{}
	var pending []*model.Task
	for _, t := range m.tasks {
		switch t.Status {
		case model.TaskStatusProcessing:
			busy[t.UserID] = true
		case model.TaskStatusPending:
			pending = append(pending, t)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	for _, t := range pending {
		if busy[t.UserID] {
			continue
		}
		if err := t.Claim(workerID, time.Now().UTC()); err != nil {
			return nil, err
		}
		cp := *t
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memTaskRepo) finish(id string, status model.TaskStatus, detail string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	return t.Finish(status, detail, time.Now().UTC())
}

func (m *memTaskRepo) MarkCompleted(ctx context.Context, tx repository.Tx, id, outcome string) (bool, error) {
	if m.MarkCompletedFunc != nil {
		return m.MarkCompletedFunc(ctx, tx, id, outcome)
	}
	return m.finish(id, model.TaskStatusCompleted, outcome)
}

func (m *memTaskRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, reason string) (bool, error) {
	return m.finish(id, model.TaskStatusFailed, reason)
}

func (m *memTaskRepo) HasOpenTask(ctx context.Context, tx repository.Tx, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.UserID == userID && !t.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTaskRepo) ListProcessingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Task
	for _, t := range m.tasks {
		if t.Status == model.TaskStatusProcessing && t.StartedAt != nil && t.StartedAt.Before(cutoff) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTaskRepo) get(id string) model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.tasks[id]
}

// enqueue stores a pending task created at the given offset from now.
func (m *memTaskRepo) enqueue(userID string, age time.Duration) *model.Task {
	t, _ := model.NewTask(userID)
	t.CreatedAt = time.Now().UTC().Add(-age)
	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()
	return t
}

type memQuotaRepo struct {
	mu     sync.Mutex
	quotas map[string]*model.UserQuota

	SaveFunc func(ctx context.Context, tx repository.Tx, q *model.UserQuota) error
}

func newMemQuotaRepo() *memQuotaRepo { return &memQuotaRepo{quotas: map[string]*model.UserQuota{}} }

var _ repository.QuotaRepository = (*memQuotaRepo)(nil)

func (m *memQuotaRepo) put(userID string, limit, applied int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotas[userID] = &model.UserQuota{UserID: userID, ApplicationLimit: limit, AppliedCount: applied}
}

func (m *memQuotaRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.UserQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotas[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *memQuotaRepo) LockByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.UserQuota, error) {
	return m.FindByUserID(ctx, tx, userID)
}

func (m *memQuotaRepo) Save(ctx context.Context, tx repository.Tx, q *model.UserQuota) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, q); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *q
	m.quotas[q.UserID] = &cp
	return nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo { return &memUserRepo{users: map[string]*model.User{}} }

var _ repository.UserRepository = (*memUserRepo)(nil)

func (m *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) SaveCredential(ctx context.Context, tx repository.Tx, userID, platform string, c model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.Credentials == nil {
		u.Credentials = map[string]model.Credential{}
	}
	u.Credentials[platform] = c
	return nil
}

type memAppRepo struct {
	mu   sync.Mutex
	recs []*model.JobApplicationRecord

	InsertBatchFunc func(ctx context.Context, tx repository.Tx, recs []*model.JobApplicationRecord) (int, error)
}

func newMemAppRepo() *memAppRepo { return &memAppRepo{} }

var _ repository.ApplicationRepository = (*memAppRepo)(nil)

func (m *memAppRepo) InsertBatch(ctx context.Context, tx repository.Tx, recs []*model.JobApplicationRecord) (int, error) {
	if m.InsertBatchFunc != nil {
		return m.InsertBatchFunc(ctx, tx, recs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
next:
	for _, r := range recs {
		for _, o := range m.recs {
			if o.TaskID == r.TaskID && o.Platform == r.Platform && o.JobURL == r.JobURL {
				continue next
			}
		}
		cp := *r
		m.recs = append(m.recs, &cp)
		n++
	}
	return n, nil
}

func (m *memAppRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.JobApplicationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.JobApplicationRecord
	for _, r := range m.recs {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AppliedAt.After(out[j].AppliedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memAppRepo) CountByTask(ctx context.Context, tx repository.Tx, taskID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.recs {
		if r.TaskID == taskID {
			n++
		}
	}
	return n, nil
}

func (m *memAppRepo) Summary(ctx context.Context, tx repository.Tx, userID string) (*model.ApplicationStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &model.ApplicationStats{UserID: userID, ByPlatform: map[string]int{}}
	for _, r := range m.recs {
		if r.UserID != userID {
			continue
		}
		s.Total++
		s.ByPlatform[r.Platform]++
		if r.Status == model.ApplicationStatusApplied {
			s.Successful++
		}
	}
	return s, nil
}

func (m *memAppRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

// =============================
// Adapters
// =============================

type fakeSession struct{ platform string }

func (s *fakeSession) Platform() string { return s.platform }
func (s *fakeSession) Close() error     { return nil }

type sliceCursor struct {
	items []model.CandidateListing
	err   error
}

func (c *sliceCursor) Next(ctx context.Context) (model.CandidateListing, bool, error) {
	if len(c.items) == 0 {
		return model.CandidateListing{}, false, c.err
	}
	l := c.items[0]
	c.items = c.items[1:]
	return l, true, nil
}

// fakeDriver serves the same listings for every search and fails the
// candidates listed in applyErr.
type fakeDriver struct {
	mu       sync.Mutex
	name     string
	listings int
	authErr  error
	applyErr map[string]error

	onApply func()

	searches []adapter.SearchQuery
	applied  []string
	creds    []adapter.Credentials
}

var _ adapter.PlatformDriver = (*fakeDriver)(nil)

func newFakeDriver(name string, listings int) *fakeDriver {
	return &fakeDriver{name: name, listings: listings, applyErr: map[string]error{}}
}

func (d *fakeDriver) Name() string { return d.name }

func (d *fakeDriver) Authenticate(ctx context.Context, creds adapter.Credentials) (adapter.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.creds = append(d.creds, creds)
	if d.authErr != nil {
		return nil, d.authErr
	}
	return &fakeSession{platform: d.name}, nil
}

func (d *fakeDriver) SearchCandidates(ctx context.Context, s adapter.Session, q adapter.SearchQuery) (adapter.CandidateCursor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.searches = append(d.searches, q)
	var items []model.CandidateListing
	for i := 0; i < d.listings && (q.MaxResults <= 0 || i < q.MaxResults); i++ {
		slug := strings.ToLower(strings.ReplaceAll(q.Title+"-"+q.Location, " ", "-"))
		id := fmt.Sprintf("%s-%d", slug, i)
		items = append(items, model.CandidateListing{
			ID:      id,
			URL:     fmt.Sprintf("https://%s.test/jobs/%s", strings.ToLower(d.name), id),
			Title:   q.Title,
			Company: fmt.Sprintf("Company %d", i),
		})
	}
	return &sliceCursor{items: items}, nil
}

func (d *fakeDriver) ApplyToCandidate(ctx context.Context, s adapter.Session, l model.CandidateListing) (*model.JobApplicationRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.applied = append(d.applied, l.URL)
	if d.onApply != nil {
		d.onApply()
	}
	if err := d.applyErr[l.URL]; err != nil {
		return nil, err
	}
	return &model.JobApplicationRecord{
		JobTitle:          l.Title,
		Company:           l.Company,
		Platform:          d.name,
		JobURL:            l.URL,
		ApplicationMethod: model.MethodEasyApply,
		Status:            model.ApplicationStatusApplied,
	}, nil
}

// fakePacer never sleeps and counts waits by kind.
type fakePacer struct {
	mu    sync.Mutex
	waits map[adapter.DelayKind]int
}

func newFakePacer() *fakePacer { return &fakePacer{waits: map[adapter.DelayKind]int{}} }

func (p *fakePacer) Wait(ctx context.Context, kind adapter.DelayKind) error {
	p.mu.Lock()
	p.waits[kind]++
	p.mu.Unlock()
	return ctx.Err()
}

func (p *fakePacer) ShouldStop(applied, ceiling int) bool { return pacing.ShouldStop(applied, ceiling) }

type plainOpener struct{ err error }

func (o plainOpener) Open(sealed string) (string, error) {
	if o.err != nil {
		return "", o.err
	}
	return strings.TrimPrefix(sealed, "sealed:"), nil
}

type mockAlerter struct {
	mu       sync.Mutex
	subjects []string
}

func (a *mockAlerter) Alert(ctx context.Context, subject, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subjects = append(a.subjects, subject)
	return nil
}

type mockBudget struct {
	remaining map[string]int
	consumed  map[string]int
	err       error
}

func (b *mockBudget) Remaining(ctx context.Context, userID, platform string, dailyCap int) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if r, ok := b.remaining[platform]; ok {
		return r, nil
	}
	return dailyCap, nil
}

func (b *mockBudget) Consume(ctx context.Context, userID, platform string, n int) error {
	if b.consumed == nil {
		b.consumed = map[string]int{}
	}
	b.consumed[platform] += n
	return nil
}

// =============================
// Fixtures
// =============================

func newUserWithLogins(id string, platforms ...string) *model.User {
	u, _ := model.NewUser(id, id+"@example.com", "Test User", "basic")
	u.TargetTitles = []string{"Go Engineer", "Backend Engineer"}
	u.TargetLocations = []string{"Remote"}
	for _, p := range platforms {
		u.Credentials[p] = model.Credential{Username: id + "@example.com", Secret: "sealed:pw-" + p}
	}
	return u
}

func plan(d *fakeDriver, weight float64, hardCap int, p adapter.Pacer) usecase.PlatformPlan {
	return usecase.PlatformPlan{Driver: d, Pacer: p, Weight: weight, HardCap: hardCap, MaxTitles: 3, MaxLocations: 2, PerSearchCap: 10}
}
