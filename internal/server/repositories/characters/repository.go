package characters

import (
	"context"

	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
	"github.com/google/uuid"
)

// Repository persists characters. Names are unique case-insensitively.
type Repository interface {
	Create(ctx context.Context, c *models.Character) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*models.Character, error)
	GetByName(ctx context.Context, name string) (*models.Character, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Character, error)
	CountByOwner(ctx context.Context, ownerID int64) (int, error)
	// SetTexture stores hash in slot; an empty hash clears the slot.
	SetTexture(ctx context.Context, id uuid.UUID, slot models.TextureSlot, hash string) error
	SetModel(ctx context.Context, id uuid.UUID, model models.ModelType) error
}
