package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, email, full_name, plan_id, active, target_titles, target_locations, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  email=$2, full_name=$3, plan_id=$4, active=$5, target_titles=$6, target_locations=$7;`
	titles, locs := u.TargetTitles, u.TargetLocations
	if titles == nil {
		titles = []string{}
	}
	if locs == nil {
		locs = []string{}
	}
	if _, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.FullName, u.PlanID, u.Active, titles, locs, u.CreatedAt); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	for platform, c := range u.Credentials {
		if err := r.SaveCredential(ctx, tx, u.ID, platform, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresUserRepo) SaveCredential(ctx context.Context, tx repository.Tx, userID, platform string, c model.Credential) error {
	const q = `
INSERT INTO platform_credentials (user_id, platform, username, secret, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (user_id, platform) DO UPDATE SET
  username = EXCLUDED.username, secret = EXCLUDED.secret, updated_at = now();`
	if _, err := execSQL(ctx, r.pool, tx, q, userID, platform, c.Username, c.Secret); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

const userSelect = `
SELECT id, email, full_name, plan_id, active, target_titles, target_locations, created_at
  FROM users`

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return r.findOne(ctx, tx, userSelect+` WHERE id=$1;`, id)
}

func (r *PostgresUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	return r.findOne(ctx, tx, userSelect+` WHERE email=$1;`, email)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg string) (*model.User, error) {
	u, err := scanUser(pickRow(ctx, r.pool, tx, q, arg))
	if err != nil {
		return nil, err
	}
	if err := r.loadCredentials(ctx, tx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PlanID, &u.Active, &u.TargetTitles, &u.TargetLocations, &u.CreatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &u, nil
}

func (r *PostgresUserRepo) loadCredentials(ctx context.Context, tx repository.Tx, u *model.User) error {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT platform, username, secret FROM platform_credentials WHERE user_id=$1;`, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	u.Credentials = map[string]model.Credential{}
	for rows.Next() {
		var platform string
		var c model.Credential
		if err := rows.Scan(&platform, &c.Username, &c.Secret); err != nil {
			return scanErr(err)
		}
		u.Credentials[platform] = c
	}
	return rows.Err()
}
