package services

import (
	"context"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/logging"
	"github.com/dmitrijs2005/yggkeeper/internal/server/captcha"
)

// Captcha issues and checks rotated-image challenges. *captcha.Service
// implements it.
type Captcha interface {
	Issue(ctx context.Context) (*captcha.Challenge, error)
	Check(ctx context.Context, clientID string, degree int) (bool, error)
}

// PasswordChecker verifies account credentials. *AuthService implements it.
type PasswordChecker interface {
	CheckPassword(ctx context.Context, email, password string) error
}

// StarlightService backs the launcher web login: a captcha followed by a
// password check.
type StarlightService struct {
	captcha   Captcha
	passwords PasswordChecker
	logger    logging.Logger
}

// NewStarlightService creates a StarlightService.
func NewStarlightService(c Captcha, passwords PasswordChecker, logger logging.Logger) *StarlightService {
	return &StarlightService{captcha: c, passwords: passwords, logger: logger}
}

// VerifyImage issues a new challenge.
func (s *StarlightService) VerifyImage(ctx context.Context) (*captcha.Challenge, error) {
	ch, err := s.captcha.Issue(ctx)
	if err != nil {
		s.logger.Error(ctx, "verify image not issued", "error", err)
		return nil, internal(err)
	}
	return ch, nil
}

// Login checks the captcha answer first and the password only when the
// answer is right. It returns common.ErrWrongVerifyCode or
// common.ErrInvalidCredentials on rejection.
func (s *StarlightService) Login(ctx context.Context, email, password, clientID string, degree int) error {
	ok, err := s.captcha.Check(ctx, clientID, degree)
	if err != nil {
		return internal(err)
	}
	if !ok {
		return common.ErrWrongVerifyCode
	}

	if err := s.passwords.CheckPassword(ctx, email, password); err != nil {
		return err
	}
	s.logger.Info(ctx, "starlight login", "email", email)
	return nil
}
