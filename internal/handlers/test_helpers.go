package handlers

import (
	"context"

	"github.com/nmelker/bastion/internal/models"
	"github.com/nmelker/bastion/internal/services"
)

// MockLoginService implements LoginServiceInterface for testing
type MockLoginService struct {
	LoginFunc func(ctx context.Context, identifier, password, ipAddress, userAgent string) (*services.LoginResponse, error)
}

func (m *MockLoginService) Login(ctx context.Context, identifier, password, ipAddress, userAgent string) (*services.LoginResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, identifier, password, ipAddress, userAgent)
	}
	return nil, models.ErrInvalidCredential
}
