package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/server/profiles"
	"github.com/dmitrijs2005/yggkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/yggkeeper/internal/server/sessions"
	"github.com/dmitrijs2005/yggkeeper/internal/server/tokens"
)

// Status is the payload of the status endpoint.
type Status struct {
	UserCount           int `json:"user.count"`
	TokenCount          int `json:"token.count"`
	PendingJoinCount int `json:"pendingAuthentication.count"`
}

// ProfileService answers profile lookups and the metadata status.
type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *tokens.Store
	joins       sessions.Store
	profiles    *profiles.Builder
}

// NewProfileService creates a ProfileService.
func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, store *tokens.Store, joins sessions.Store, builder *profiles.Builder) *ProfileService {
	return &ProfileService{db: db, repomanager: m, tokens: store, joins: joins, profiles: builder}
}

// Lookup returns the complete profile of the character with the given
// unsigned uuid, or common.ErrorNotFound.
func (s *ProfileService) Lookup(ctx context.Context, id string, signed bool) (*profiles.Profile, error) {
	uid, err := common.ParseUUID(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}

	c, err := s.repomanager.Characters(s.db).GetByUUID(ctx, uid)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, internal(err)
	}

	p, err := s.profiles.Complete(c, signed)
	if err != nil {
		return nil, internal(err)
	}
	return p, nil
}

// Query resolves character names to simple profiles. Duplicate and unknown
// names are skipped.
func (s *ProfileService) Query(ctx context.Context, names []string) ([]*profiles.Profile, error) {
	repo := s.repomanager.Characters(s.db)
	seen := make(map[string]struct{}, len(names))
	result := make([]*profiles.Profile, 0, len(names))

	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		c, err := repo.GetByName(ctx, name)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, internal(err)
		}
		result = append(result, profiles.Simple(c))
	}
	return result, nil
}

func (s *ProfileService) Status(ctx context.Context) (*Status, error) {
	users, err := s.repomanager.Users(s.db).Count(ctx)
	if err != nil {
		return nil, internal(err)
	}
	pending, err := s.joins.Count(ctx)
	if err != nil {
		return nil, internal(err)
	}
	return &Status{
		UserCount:           users,
		TokenCount:          s.tokens.Count(),
		PendingJoinCount: pending,
	}, nil
}
