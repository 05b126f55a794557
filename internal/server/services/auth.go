package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/cryptox"
	"github.com/dmitrijs2005/yggkeeper/internal/logging"
	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
	"github.com/dmitrijs2005/yggkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/yggkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/yggkeeper/internal/server/tokens"
	"github.com/google/uuid"
)

// ProfileRef names a character by id and name, as sent in refresh requests.
type ProfileRef struct {
	ID   string
	Name string
}

// AuthService implements the authserver operations.
type AuthService struct {
	db                     *sql.DB
	repomanager            repomanager.RepositoryManager
	tokens                 *tokens.Store
	limiter                *ratelimit.Limiter
	loginWithCharacterName bool
	recorder               Recorder
	logger                 logging.Logger
}

// AuthOption customizes an AuthService created by NewAuthService.
type AuthOption func(*AuthService)

// WithLoginWithCharacterName lets a character name stand in for the email
// on authenticate and signout.
func WithLoginWithCharacterName(enabled bool) AuthOption {
	return func(s *AuthService) { s.loginWithCharacterName = enabled }
}

// WithRecorder reports auth results and rate limiting, typically to metrics.
func WithRecorder(r Recorder) AuthOption {
	return func(s *AuthService) { s.recorder = r }
}

// WithAuthLogger sets the service logger.
func WithAuthLogger(l logging.Logger) AuthOption {
	return func(s *AuthService) { s.logger = l }
}

// NewAuthService builds the service. limiter gates password checks per user.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, store *tokens.Store, limiter *ratelimit.Limiter, opts ...AuthOption) *AuthService {
	s := &AuthService{
		db:          db,
		repomanager: m,
		tokens:      store,
		limiter:     limiter,
		recorder:    nopRecorder{},
		logger:      logging.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Authenticate checks username and password and issues a token. username is
// an email address or, when enabled, a character name; in the latter case
// that character is bound to the token.
func (s *AuthService) Authenticate(ctx context.Context, username, password, clientToken string) (*tokens.Token, error) {
	var selected *models.Character
	email := username

	if s.loginWithCharacterName {
		c, err := s.repomanager.Characters(s.db).GetByName(ctx, username)
		switch {
		case err == nil:
			owner, err := s.repomanager.Users(s.db).GetByID(ctx, c.OwnerID)
			if err != nil {
				return nil, s.fail("authenticate", internal(err))
			}
			email = owner.Email
			selected = c
		case !errors.Is(err, common.ErrorNotFound):
			return nil, s.fail("authenticate", internal(err))
		}
	}

	user, err := s.passwordAuthenticated(ctx, email, password)
	if err != nil {
		return nil, s.fail("authenticate", err)
	}

	tok, err := s.tokens.Acquire(user, clientToken, selected)
	if err != nil {
		return nil, s.fail("authenticate", err)
	}
	s.recorder.AuthResult("authenticate", true)
	return tok, nil
}

// Refresh consumes the token and issues a successor with the same client
// token. A selected profile may only be given for a token without one.
func (s *AuthService) Refresh(ctx context.Context, accessToken, clientToken string, selected *ProfileRef) (*tokens.Token, error) {
	var toSelect *models.Character
	if selected != nil {
		id, err := uuid.Parse(selected.ID)
		if err != nil {
			return nil, s.fail("refresh", common.ErrProfileNotFound)
		}
		c, err := s.repomanager.Characters(s.db).GetByUUID(ctx, id)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.fail("refresh", common.ErrProfileNotFound)
		}
		if err != nil {
			return nil, s.fail("refresh", internal(err))
		}
		if c.Name != selected.Name {
			return nil, s.fail("refresh", common.ErrProfileNotFound)
		}
		toSelect = c
	}

	old, ok, err := s.tokens.AuthenticateAndConsume(accessToken, clientToken, tokens.Partial, func(t *tokens.Token) (bool, error) {
		if toSelect == nil {
			return true, nil
		}
		if t.BoundCharacter != nil {
			return false, common.ErrTokenAlreadyAssigned
		}
		if toSelect.OwnerID != t.User.ID {
			return false, common.ErrAccessDenied
		}
		return true, nil
	})
	if err != nil {
		return nil, s.fail("refresh", err)
	}
	if !ok {
		return nil, s.fail("refresh", common.ErrInvalidToken)
	}

	user, err := loadUser(ctx, s.db, s.repomanager, old.User.ID)
	if err != nil {
		return nil, s.fail("refresh", internal(err))
	}

	bind := toSelect
	if bind == nil {
		bind = old.BoundCharacter
	}

	tok, err := s.tokens.Acquire(user, old.ClientToken, bind)
	if err != nil {
		return nil, s.fail("refresh", err)
	}
	s.recorder.AuthResult("refresh", true)
	return tok, nil
}

// Validate succeeds only for a token valid at the complete level.
func (s *AuthService) Validate(_ context.Context, accessToken, clientToken string) error {
	if _, ok := s.tokens.Authenticate(accessToken, clientToken, tokens.Complete); !ok {
		return s.fail("validate", common.ErrInvalidToken)
	}
	s.recorder.AuthResult("validate", true)
	return nil
}

// Invalidate removes the token if it is still loosely valid. It never fails.
func (s *AuthService) Invalidate(_ context.Context, accessToken string) {
	_, ok, _ := s.tokens.AuthenticateAndConsume(accessToken, "", tokens.Partial, func(*tokens.Token) (bool, error) {
		return true, nil
	})
	s.recorder.AuthResult("invalidate", ok)
}

// Signout revokes every token of the user after a password check.
func (s *AuthService) Signout(ctx context.Context, username, password string) error {
	user, err := s.passwordAuthenticated(ctx, username, password)
	if err != nil {
		return s.fail("signout", err)
	}
	s.tokens.RevokeAll(user)
	s.recorder.AuthResult("signout", true)
	return nil
}

// CheckPassword verifies email and password without issuing a token.
// Rejections, rate limiting included, are common.ErrInvalidCredentials.
func (s *AuthService) CheckPassword(ctx context.Context, email, password string) error {
	if _, err := s.passwordAuthenticated(ctx, email, password); err != nil {
		return s.fail("password_check", err)
	}
	s.recorder.AuthResult("password_check", true)
	return nil
}

// passwordAuthenticated loads the user by email, applies the per-user
// cool-down and verifies the password. Every rejection is reported as
// invalid credentials.
func (s *AuthService) passwordAuthenticated(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrInvalidCredentials
	}
	if err != nil {
		return nil, internal(err)
	}

	if !s.limiter.TryAccess(strconv.FormatInt(user.ID, 10)) {
		s.recorder.RateLimited("login")
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidCredentials, common.ErrRateLimited)
	}

	ok, err := cryptox.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "stored password hash is unreadable", "user_id", user.ID, "error", err)
		return nil, common.ErrInvalidCredentials
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	user, err = withCharacters(ctx, s.db, s.repomanager, user)
	if err != nil {
		return nil, internal(err)
	}
	return user, nil
}

func (s *AuthService) fail(op string, err error) error {
	s.recorder.AuthResult(op, false)
	return err
}
