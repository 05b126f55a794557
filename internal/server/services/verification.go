package services

import (
	"context"

	"github.com/dmitrijs2005/yggkeeper/internal/common"
	"github.com/dmitrijs2005/yggkeeper/internal/logging"
	"github.com/dmitrijs2005/yggkeeper/internal/server/ratelimit"
)

// CodeSender issues and delivers a verification code. *mail.Verifier
// implements it.
type CodeSender interface {
	SendCode(ctx context.Context, email string) error
}

// VerificationService sends rate-limited email verification codes.
type VerificationService struct {
	limiter  *ratelimit.Limiter
	sender   CodeSender
	recorder Recorder
	logger   logging.Logger
}

// NewVerificationService creates the service. A nil recorder disables metrics.
func NewVerificationService(limiter *ratelimit.Limiter, sender CodeSender, recorder Recorder, logger logging.Logger) *VerificationService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &VerificationService{limiter: limiter, sender: sender, recorder: recorder, logger: logger}
}

// SendCode mails a fresh code to email, at most once per cool-down.
func (s *VerificationService) SendCode(ctx context.Context, email string) error {
	if !s.limiter.TryAccess(email) {
		s.recorder.RateLimited("email")
		return common.ErrRateLimited
	}
	if err := s.sender.SendCode(ctx, email); err != nil {
		s.logger.Error(ctx, "verification mail failed", "error", err)
		return internal(err)
	}
	return nil
}
