package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nmelker/bastion/internal/lockout"
	"github.com/nmelker/bastion/internal/models"
	pkgauth "github.com/nmelker/bastion/pkg/auth"
	pkglogger "github.com/nmelker/bastion/pkg/logger"
)

// AccountRepository defines the directory lookups used during login
type AccountRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

// AttemptTracker decides whether an authentication attempt may proceed
type AttemptTracker interface {
	IsLocked(ctx context.Context, key string) (bool, time.Duration)
	Evaluate(ctx context.Context, key string, outcome lockout.Outcome) lockout.Decision
}

// TokenIssuer mints the token pair returned on a confirmed successful login
type TokenIssuer interface {
	GenerateAccessToken(accountID, email string) (string, error)
	GenerateRefreshToken(accountID, email string) (string, error)
}

// TimingEqualizer pads failure paths to a uniform duration
type TimingEqualizer interface {
	WaitFrom(startTime time.Time, success bool)
}

// LockoutNotifier tells an account holder their account was locked
type LockoutNotifier interface {
	SendLockoutNotice(ctx context.Context, email string, duration time.Duration) error
}

// LoginService runs the protected login flow: lock pre-check, account
// resolution, credential verification, and the lockout decision. Every
// failure surfaces as one of two sentinels so callers cannot tell an unknown
// account from a wrong password.
type LoginService struct {
	accounts    AccountRepository
	tracker     AttemptTracker
	tokens      TokenIssuer
	timing      TimingEqualizer
	notifier    LockoutNotifier
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewLoginService creates a new LoginService
func NewLoginService(
	accounts AccountRepository,
	tracker AttemptTracker,
	tokens TokenIssuer,
	timing TimingEqualizer,
	notifier LockoutNotifier,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *LoginService {
	return &LoginService{
		accounts:    accounts,
		tracker:     tracker,
		tokens:      tokens,
		timing:      timing,
		notifier:    notifier,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// AccountResponse represents an account in the HTTP response
type AccountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResponse represents the response from a successful login
type LoginResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	Account      *AccountResponse `json:"account"`
}

// Login authenticates the submitted identifier and password. The identifier
// is tried as a username first, then as an email address. Lockout state is
// keyed on the stable account ID once resolution succeeds, so username and
// email submissions for the same account share one counter; an unrecognized
// identifier never creates tracking state.
func (s *LoginService) Login(ctx context.Context, identifier, password, ipAddress, userAgent string) (*LoginResponse, error) {
	start := time.Now()

	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredential
	}

	acct, err := s.resolveAccount(ctx, identifier)
	if err != nil {
		s.logger.Error("account resolution failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	key := identifier
	if acct != nil {
		key = acct.ID
	}

	// Pre-check the lock before any credential work so locked accounts
	// cost nothing to reject and leave no fresh timing signal.
	if locked, _ := s.tracker.IsLocked(ctx, key); locked {
		s.auditAttempt(acct, ipAddress, userAgent, "account_locked")
		s.timing.WaitFrom(start, false)
		_ = s.tracker.Evaluate(ctx, key, lockout.OutcomeLockedOut)
		return nil, models.ErrTooManyAttempts
	}

	if acct == nil {
		// Unknown identifier: same generic rejection, and no record is
		// ever created for it.
		s.logger.Info("login failed: invalid credentials")
		s.auditAttempt(nil, ipAddress, userAgent, "invalid_credentials")
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredential
	}

	outcome := lockout.OutcomeSuccess
	if acct.Status != "active" || pkgauth.ComparePassword(acct.PasswordHash, password) != nil {
		outcome = lockout.OutcomeFailure
	}

	decision := s.tracker.Evaluate(ctx, key, outcome)
	if !decision.Allowed {
		s.logger.Info("login failed: invalid credentials")
		if decision.LockImposed {
			s.handleLockImposed(ctx, acct, ipAddress, decision.RetryAfter)
		} else {
			s.auditAttempt(acct, ipAddress, userAgent, "invalid_credentials")
		}
		s.timing.WaitFrom(start, false)
		if decision.Reason == lockout.ReasonTooManyAttempts {
			return nil, models.ErrTooManyAttempts
		}
		return nil, models.ErrInvalidCredential
	}

	accessToken, err := s.tokens.GenerateAccessToken(acct.ID, acct.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("account_id", acct.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tokens.GenerateRefreshToken(acct.ID, acct.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("account_id", acct.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("login succeeded", slog.String("account_id", acct.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		AccountID: acct.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account: &AccountResponse{
			ID:       acct.ID,
			Username: acct.Username,
			Email:    acct.Email,
		},
	}, nil
}

// resolveAccount tries the identifier as a username, then as an email.
// A nil account with a nil error means the identifier is unknown.
func (s *LoginService) resolveAccount(ctx context.Context, identifier string) (*models.Account, error) {
	acct, err := s.accounts.GetByUsername(ctx, identifier)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	acct, err = s.accounts.GetByEmail(ctx, identifier)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	return nil, nil
}

func (s *LoginService) handleLockImposed(ctx context.Context, acct *models.Account, ipAddress string, duration time.Duration) {
	s.auditLogger.LogLockout(acct.ID, ipAddress, duration)

	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendLockoutNotice(ctx, acct.Email, duration); err != nil {
		s.logger.Error("failed to send lockout notice",
			slog.String("email", pkglogger.SanitizedEmail(acct.Email)),
			slog.Any("error", err))
	}
}

func (s *LoginService) auditAttempt(acct *models.Account, ipAddress, userAgent, reason string) {
	event := pkglogger.AuditEvent{
		EventType:     "login_failed",
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		FailureReason: reason,
		Success:       false,
	}
	if acct != nil {
		event.AccountID = acct.ID
	}
	s.auditLogger.LogAuthAttempt(event)
}
