// Package services contains server-side business logic: the authentication
// protocol operations, session joins, texture management and the small
// account administration used by the seed tool.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/dbx"
	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
	"github.com/dmitrijs2005/yggkeeper/internal/server/repositories/repomanager"
)

// Recorder receives protocol-level counters. *metrics.Metrics implements it.
type Recorder interface {
	AuthResult(op string, ok bool)
	RateLimited(keyspace string)
}

type nopRecorder struct{}

func (nopRecorder) AuthResult(string, bool) {}
func (nopRecorder) RateLimited(string)      {}

// withCharacters fills in user's characters.
func withCharacters(ctx context.Context, db dbx.DBTX, rm repomanager.RepositoryManager, user *models.User) (*models.User, error) {
	chars, err := rm.Characters(db).ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing characters: %w", err)
	}
	user.Characters = chars
	return user, nil
}

// loadUser returns the user with id and its characters.
func loadUser(ctx context.Context, db dbx.DBTX, rm repomanager.RepositoryManager, id int64) (*models.User, error) {
	user, err := rm.Users(db).GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error loading user %d: %w", id, err)
	}
	return withCharacters(ctx, db, rm, user)
}

// internal hides collaborator failures behind common.ErrorInternal while
// keeping the cause for logs.
func internal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrorInternal) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrorInternal, err)
}
