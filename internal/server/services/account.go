package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/cryptox"
	"github.com/dmitrijs2005/yggkeeper/internal/dbx"
	"github.com/dmitrijs2005/yggkeeper/internal/server/models"
	"github.com/dmitrijs2005/yggkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// AccountService creates users and characters. It backs the seed tool;
// the protocol has no registration endpoint.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewAccountService creates an AccountService.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager) *AccountService {
	return &AccountService{db: db, repomanager: m}
}

func (s *AccountService) CreateUser(ctx context.Context, email, password string) (*models.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{UUID: uuid.New(), Email: email, PasswordHash: hash}
	user, err = s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// CreateCharacter adds a character to the user. Names are unique across
// all users, ignoring case, and a user has at most
// models.MaxCharactersPerUser characters.
func (s *AccountService) CreateCharacter(ctx context.Context, ownerID int64, name string, model models.ModelType) (*models.Character, error) {
	c := &models.Character{
		UUID:    uuid.New(),
		Name:    name,
		OwnerID: ownerID,
		Model:   model,
	}

	err := dbx.WithTx(ctx, s.db, dbx.Serializable, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Characters(tx)

		n, err := repo.CountByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if n >= models.MaxCharactersPerUser {
			return common.ErrTooManyCharacters
		}

		_, err = repo.GetByName(ctx, name)
		if err == nil {
			return common.ErrNameAlreadyTaken
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		return repo.Create(ctx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating character %q: %w", name, err)
	}
	return c, nil
}

// FindUser returns the user with email and its characters.
func (s *AccountService) FindUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return withCharacters(ctx, s.db, s.repomanager, user)
}
