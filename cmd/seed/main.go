// Command seed creates a demo user with a plan quota, sealed platform
// logins and one queued run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"

	"jobsee-orchestrator/internal/config"
	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/repository"
	"jobsee-orchestrator/internal/infra/adapters/browser"
	"jobsee-orchestrator/internal/infra/adapters/platform"
	pg "jobsee-orchestrator/internal/infra/db/postgres"
	"jobsee-orchestrator/internal/infra/logging"
	"jobsee-orchestrator/internal/infra/pacing"
	"jobsee-orchestrator/internal/infra/security"
	"jobsee-orchestrator/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	email := flag.String("email", "demo@jobsee.local", "user email")
	planID := flag.String("plan", "basic", "plan id: basic|premium|enterprise")
	titles := flag.String("titles", "Go Engineer,Backend Engineer", "comma separated target titles")
	locations := flag.String("locations", "Remote", "comma separated target locations")
	enqueue := flag.Bool("enqueue", true, "queue a run for the user")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	plan, err := model.PlanByID(*planID)
	if err != nil {
		log.Fatalf("plan %q: %v", *planID, err)
	}

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	vault, err := security.NewVault(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatalf("vault: %v", err)
	}

	tm := pg.NewTxManager(pool)
	userRepo := pg.NewPostgresUserRepo(pool)
	quotaRepo := pg.NewQuotaRepo(pool)
	taskRepo := pg.NewTaskRepo(pool)

	user, err := userRepo.FindByEmail(ctx, nil, *email)
	switch {
	case errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUserNotFound):
		user, err = model.NewUser("", *email, "Demo User", plan.ID)
		if err != nil {
			log.Fatalf("new user: %v", err)
		}
	case err != nil:
		log.Fatalf("find user: %v", err)
	}
	user.PlanID = plan.ID
	user.TargetTitles = splitList(*titles)
	user.TargetLocations = splitList(*locations)

	// Logins come from SEED_<PLATFORM>_USERNAME / SEED_<PLATFORM>_PASSWORD.
	creds := map[string]model.Credential{}
	for _, p := range []string{model.PlatformLinkedIn, model.PlatformIndeed} {
		key := strings.ToUpper(p)
		username, password := os.Getenv("SEED_"+key+"_USERNAME"), os.Getenv("SEED_"+key+"_PASSWORD")
		if username == "" || password == "" {
			continue
		}
		sealed, err := vault.Seal(password)
		if err != nil {
			log.Fatalf("seal %s password: %v", p, err)
		}
		creds[p] = model.Credential{Username: username, Secret: sealed}
	}

	err = tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := userRepo.Save(ctx, tx, user); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		for p, c := range creds {
			if err := userRepo.SaveCredential(ctx, tx, user.ID, p, c); err != nil {
				return fmt.Errorf("save %s credential: %w", p, err)
			}
		}
		q, err := quotaRepo.FindByUserID(ctx, tx, user.ID)
		if errors.Is(err, domain.ErrNotFound) {
			q, err = model.NewUserQuota(user.ID, plan.ApplicationLimit)
		}
		if err != nil {
			return fmt.Errorf("quota: %w", err)
		}
		if q.ApplicationLimit < plan.ApplicationLimit {
			q.ApplicationLimit = plan.ApplicationLimit
		}
		return quotaRepo.Save(ctx, tx, q)
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Printf("user %s (%s) on plan %s, limit %d, %d platform logins\n", user.ID, user.Email, plan.Name, plan.ApplicationLimit, len(creds))

	if !*enqueue {
		return
	}
	plans, err := platform.Build(cfg, browser.NewFactory(cfg.Browser, logger), pacing.New(cfg.Pacing), logger)
	if err != nil {
		log.Fatalf("platforms: %v", err)
	}
	res, err := usecase.NewRunUseCase(userRepo, quotaRepo, taskRepo, plans, logger).Enqueue(ctx, user.ID)
	if err != nil {
		log.Fatalf("enqueue: %v", err)
	}
	fmt.Printf("queued task %s, target %d applications\n", res.Task.ID, res.TargetApplications)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
