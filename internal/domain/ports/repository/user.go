package repository

import (
	"context"

	"jobsee-orchestrator/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
	SaveCredential(ctx context.Context, tx Tx, userID, platform string, c model.Credential) error
}
