package users

import (
	"context"

	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
)

// Repository persists accounts. Lookups return common.ErrorNotFound when no
// row matches. Characters are not loaded here.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Count(ctx context.Context) (int, error)
}
