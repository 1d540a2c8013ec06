package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aashu-1911/sutra-backend/internal/models"
	appErrors "github.com/Aashu-1911/sutra-backend/pkg/errors"
)

func TestTokenServiceIssueAndValidate(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Expiry: time.Hour})

	token, expiresAt, err := svc.Issue("coordinator-1", models.RoleCoordinator)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "coordinator-1", claims.UserID)
	assert.Equal(t, models.RoleCoordinator, claims.Role)
}

func TestTokenServiceRejectsForeignAndExpiredTokens(t *testing.T) {
	issuer := NewTokenService(TokenConfig{Secret: "other", Expiry: time.Hour})
	token, _, err := issuer.Issue("admin-1", models.RoleAdmin)
	require.NoError(t, err)

	svc := NewTokenService(TokenConfig{Secret: "secret", Expiry: time.Hour})
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)

	past := NewTokenService(TokenConfig{Secret: "secret", Expiry: time.Minute})
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, err := past.Issue("admin-1", models.RoleAdmin)
	require.NoError(t, err)
	_, err = svc.ValidateToken(stale)
	assert.Error(t, err)
}

func TestTokenServiceIssueValidatesInput(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret"})
	_, _, err := svc.Issue("", models.RoleAdmin)
	assert.Error(t, err)
	_, _, err = svc.Issue("u1", models.UserRole("STUDENT"))
	assert.Error(t, err)
}
