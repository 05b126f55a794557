package services

import (
	"context"
	"database/sql"
	"errors"
	"net/url"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/logging"
	"github.com/dmitrijs2005/yggkeeper/internal/server/profiles"
	"github.com/dmitrijs2005/yggkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/yggkeeper/internal/server/sessions"
	"github.com/dmitrijs2005/yggkeeper/internal/server/tokens"
	"github.com/dmitrijs2005/yggkeeper/internal/server/upstream"
)

// Upstream answers has-joined queries for players unknown to this server.
type Upstream interface {
	Enabled() bool
	HasJoined(ctx context.Context, query url.Values) (*upstream.Response, error)
}

// SessionService records joins and verifies them for game servers.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *tokens.Store
	joins       sessions.Store
	upstream    Upstream
	profiles    *profiles.Builder
	logger      logging.Logger
}

// NewSessionService creates a SessionService. up may be nil when
// forwarding is not configured.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, store *tokens.Store, joins sessions.Store,
	up Upstream, builder *profiles.Builder, logger logging.Logger) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: m,
		tokens:      store,
		joins:       joins,
		upstream:    up,
		profiles:    builder,
		logger:      logger,
	}
}

// Join records that the token's character is joining serverID. The token
// must be fully valid and bound to the character named by selectedProfile
// (unsigned uuid).
func (s *SessionService) Join(ctx context.Context, accessToken, selectedProfile, serverID, ip string) error {
	tok, ok := s.tokens.Authenticate(accessToken, "", tokens.Complete)
	if !ok {
		return common.ErrInvalidToken
	}

	c := tok.BoundCharacter
	if c == nil || common.Unsign(c.UUID) != selectedProfile {
		return common.ErrInvalidProfile
	}

	err := s.joins.Put(ctx, serverID, &sessions.Join{
		AccessToken:   tok.AccessToken,
		CharacterUUID: c.UUID,
		CharacterName: c.Name,
		UserID:        tok.User.ID,
		IP:            ip,
	})
	if err != nil {
		return internal(err)
	}

	s.logger.Debug(ctx, "join recorded", "server_id", serverID, "character", c.Name)
	return nil
}

// HasJoined consumes the join for serverID and returns the signed profile
// of the joined character. It returns common.ErrorNotFound when there is no
// matching join or when the token that joined is no longer fully valid; the
// record is consumed either way.
func (s *SessionService) HasJoined(ctx context.Context, username, serverID, ip string) (*profiles.Profile, error) {
	j, err := s.joins.Take(ctx, serverID)
	if errors.Is(err, sessions.ErrNotFound) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, internal(err)
	}

	if j.CharacterName != username || (ip != "" && j.IP != ip) {
		return nil, common.ErrorNotFound
	}

	// the token may have been revoked since the join
	if _, ok := s.tokens.Authenticate(j.AccessToken, "", tokens.Complete); !ok {
		s.logger.Debug(ctx, "join token no longer valid", "server_id", serverID)
		return nil, common.ErrorNotFound
	}

	c, err := s.repomanager.Characters(s.db).GetByUUID(ctx, j.CharacterUUID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, internal(err)
	}

	p, err := s.profiles.Complete(c, true)
	if err != nil {
		return nil, internal(err)
	}
	return p, nil
}

// Forward relays a has-joined query to the upstream authority.
func (s *SessionService) Forward(ctx context.Context, query url.Values) (*upstream.Response, error) {
	if s.upstream == nil || !s.upstream.Enabled() {
		return nil, upstream.ErrDisabled
	}
	resp, err := s.upstream.HasJoined(ctx, query)
	if err != nil {
		s.logger.Warn(ctx, "upstream hasJoined failed", "error", err)
		return nil, err
	}
	return resp, nil
}

// Pending is the number of joins not yet verified.
func (s *SessionService) Pending(ctx context.Context) (int, error) {
	return s.joins.Count(ctx)
}
