package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/dbx"
	"github.com/dmitrijs2005/yggkeeper/internal/logging"
	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
	"github.com/dmitrijs2005/yggkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/yggkeeper/internal/server/textures"
	"github.com/dmitrijs2005/yggkeeper/internal/server/tokens"
)

// TextureService uploads and clears character textures on behalf of a
// bearer token.
type TextureService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *tokens.Store
	cache       *textures.Cache
	logger      logging.Logger
}

// NewTextureService creates a TextureService.
//
// Parameters:
//   - db: connection the repositories run on
//   - m: repository factory
//   - store: token store used to authorize the bearer
//   - cache: content-addressed texture store
//   - logger: destination for upload diagnostics
func NewTextureService(db *sql.DB, m repomanager.RepositoryManager, store *tokens.Store, cache *textures.Cache, logger logging.Logger) *TextureService {
	return &TextureService{db: db, repomanager: m, tokens: store, cache: cache, logger: logger}
}

// Upload stores the image read from r and assigns it to the character's
// slot. For skins, model "slim" selects the slim arm model and anything
// else the default one.
func (s *TextureService) Upload(ctx context.Context, accessToken, characterID, slotName string, r io.Reader, model string) (*models.Texture, error) {
	c, slot, err := s.authorize(ctx, accessToken, characterID, slotName)
	if err != nil {
		return nil, err
	}

	tex, err := s.cache.Decode(r)
	if err != nil {
		return nil, err
	}

	if err := s.cache.StoreIfAbsent(ctx, tex.Hash, tex.Data); err != nil {
		s.logger.Error(ctx, "texture store failed", "hash", tex.Hash, "error", err)
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Characters(tx)
		if slot == models.SlotSkin {
			if err := repo.SetModel(ctx, c.UUID, models.ParseModelType(model)); err != nil {
				return fmt.Errorf("error setting model: %w", err)
			}
		}
		if err := repo.SetTexture(ctx, c.UUID, slot, tex.Hash); err != nil {
			return fmt.Errorf("error setting texture: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, internal(err)
	}

	return tex, nil
}

// Delete clears the character's slot. The blob stays, other characters may
// share it.
func (s *TextureService) Delete(ctx context.Context, accessToken, characterID, slotName string) error {
	c, slot, err := s.authorize(ctx, accessToken, characterID, slotName)
	if err != nil {
		return err
	}
	if err := s.repomanager.Characters(s.db).SetTexture(ctx, c.UUID, slot, ""); err != nil {
		return internal(err)
	}
	return nil
}

// Load returns the stored image for hash.
func (s *TextureService) Load(ctx context.Context, hash string) ([]byte, bool, error) {
	if !textures.ValidHash(hash) {
		return nil, false, nil
	}
	data, ok, err := s.cache.Load(ctx, hash)
	if err != nil {
		return nil, false, internal(err)
	}
	return data, ok, nil
}

// authorize resolves the bearer token and checks that its user owns the
// character and may change the slot.
func (s *TextureService) authorize(ctx context.Context, accessToken, characterID, slotName string) (*models.Character, models.TextureSlot, error) {
	tok, ok := s.tokens.Authenticate(accessToken, "", tokens.Complete)
	if !ok {
		return nil, 0, common.ErrorUnauthorized
	}

	slot, err := models.ParseTextureSlot(slotName)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
	}

	id, err := common.ParseUUID(characterID)
	if err != nil {
		return nil, 0, common.ErrProfileNotFound
	}

	c, err := s.repomanager.Characters(s.db).GetByUUID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, 0, common.ErrProfileNotFound
	}
	if err != nil {
		return nil, 0, internal(err)
	}

	if c.OwnerID != tok.User.ID || !c.CanUpload(slot) {
		return nil, 0, common.ErrAccessDenied
	}
	return c, slot, nil
}
