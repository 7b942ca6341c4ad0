package ports

import "context"

// ServiceClaims identifies the caller of an internal Worker endpoint: Scout,
// the Dynamic Scheduler, or the midnight-wake cron, never an end user.
type ServiceClaims struct {
	Subject string
	JTI     string
}

// IdentityValidator authenticates the bearer token on Worker's internal HTTP
// surface (§6: "all mutating endpoints require authentication via an
// identity token issued by the hosting platform").
type IdentityValidator interface {
	ValidateToken(ctx context.Context, token string) (*ServiceClaims, error)
}
