package services

import (
	"context"
	"time"

	"github.com/nmelker/bastion/internal/lockout"
	"github.com/nmelker/bastion/internal/models"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByUsernameFunc func(ctx context.Context, username string) (*models.Account, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*models.Account, error)
}

func (m *MockAccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

// MockAttemptTracker implements AttemptTracker for testing
type MockAttemptTracker struct {
	IsLockedFunc func(ctx context.Context, key string) (bool, time.Duration)
	EvaluateFunc func(ctx context.Context, key string, outcome lockout.Outcome) lockout.Decision
}

func (m *MockAttemptTracker) IsLocked(ctx context.Context, key string) (bool, time.Duration) {
	if m.IsLockedFunc != nil {
		return m.IsLockedFunc(ctx, key)
	}
	return false, 0
}

func (m *MockAttemptTracker) Evaluate(ctx context.Context, key string, outcome lockout.Outcome) lockout.Decision {
	if m.EvaluateFunc != nil {
		return m.EvaluateFunc(ctx, key, outcome)
	}
	return lockout.Decision{Allowed: outcome == lockout.OutcomeSuccess}
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	GenerateAccessTokenFunc  func(accountID, email string) (string, error)
	GenerateRefreshTokenFunc func(accountID, email string) (string, error)
}

func (m *MockTokenIssuer) GenerateAccessToken(accountID, email string) (string, error) {
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(accountID, email)
	}
	return "access_token_123", nil
}

func (m *MockTokenIssuer) GenerateRefreshToken(accountID, email string) (string, error) {
	if m.GenerateRefreshTokenFunc != nil {
		return m.GenerateRefreshTokenFunc(accountID, email)
	}
	return "refresh_token_123", nil
}

// MockTimingEqualizer implements TimingEqualizer for testing without sleeping
type MockTimingEqualizer struct {
	WaitFromFunc func(startTime time.Time, success bool)
}

func (m *MockTimingEqualizer) WaitFrom(startTime time.Time, success bool) {
	if m.WaitFromFunc != nil {
		m.WaitFromFunc(startTime, success)
	}
}

// MockLockoutNotifier implements LockoutNotifier for testing
type MockLockoutNotifier struct {
	SendLockoutNoticeFunc func(ctx context.Context, email string, duration time.Duration) error
}

func (m *MockLockoutNotifier) SendLockoutNotice(ctx context.Context, email string, duration time.Duration) error {
	if m.SendLockoutNoticeFunc != nil {
		return m.SendLockoutNoticeFunc(ctx, email, duration)
	}
	return nil
}
