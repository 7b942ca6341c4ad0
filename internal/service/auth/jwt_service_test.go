package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour, zap.NewNop())

	token, err := svc.GenerateServiceToken("scout")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "scout", claims.Subject)
	require.NotEmpty(t, claims.JTI)
}

func TestJWTService_RejectsWrongSecret(t *testing.T) {
	svc := NewJWTService("right-secret", time.Hour, zap.NewNop())
	token, err := svc.GenerateServiceToken("dynamic-scheduler")
	require.NoError(t, err)

	other := NewJWTService("wrong-secret", time.Hour, zap.NewNop())
	_, err = other.ValidateToken(context.Background(), token)
	require.Error(t, err)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret", -time.Minute, zap.NewNop())
	token, err := svc.GenerateServiceToken("scout")
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	require.Error(t, err)
}
