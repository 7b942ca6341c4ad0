package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
)

// Claims is the service-identity JWT used on Worker's internal HTTP
// surface: there is no end-user login in this system, so unlike a typical
// access/refresh pair this carries only a subject identifying the caller
// (Scout, the Dynamic Scheduler, or the midnight-wake cron) and a type tag.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
}

const (
	ClaimTypeService = "service"
)

// JWTService issues and validates service-identity tokens signed with a
// shared HMAC secret, generalized from the teacher's user-token service to
// have no login/registration surface.
type JWTService struct {
	secret   string
	duration time.Duration
	log      *zap.Logger
}

func NewJWTService(secret string, duration time.Duration, log *zap.Logger) *JWTService {
	log.Info("service identity JWT issuer initialized", zap.Duration("duration", duration))
	return &JWTService{secret: secret, duration: duration, log: log}
}

// GenerateServiceToken signs a token identifying subject (e.g. "scout",
// "dynamic-scheduler") for use against Worker's authenticated endpoints.
func (s *JWTService) GenerateServiceToken(subject string) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		Type: ClaimTypeService,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		s.log.Error("failed to sign service token", zap.String("subject", subject), zap.Error(err))
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}
	return signed, nil
}

// ValidateToken implements ports.IdentityValidator for Worker's auth
// middleware.
func (s *JWTService) ValidateToken(ctx context.Context, tokenString string) (*ports.ServiceClaims, error) {
	claims, err := s.parseClaims(tokenString)
	if err != nil {
		return nil, err
	}
	return &ports.ServiceClaims{Subject: claims.Subject, JTI: claims.ID}, nil
}

// parseClaims parses and validates a service-identity token string.
func (s *JWTService) parseClaims(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
