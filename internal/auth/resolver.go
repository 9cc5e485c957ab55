package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/janmitra/backend/internal/models"
)

var ErrUnavailable = errors.New("identity lookup unavailable")

type ProfileSource interface {
	EnsureProfile(ctx context.Context, id, email string) (models.Profile, error)
}

type Resolver struct {
	Verifier Verifier
	Profiles ProfileSource
	Timeout  time.Duration
	Retries  int
	Logger   zerolog.Logger
}

// Resolve returns the caller's identity. Any error means the request is
// unauthenticated; callers should not distinguish between causes.
func (r *Resolver) Resolve(ctx context.Context, token string) (*models.Identity, error) {
	claims, err := r.Verifier.Verify(token)
	if err != nil {
		return nil, err
	}

	attempts := r.Retries
	if attempts <= 0 {
		attempts = 1
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * 100 * time.Millisecond):
			}
		}
		actx, cancel := context.WithTimeout(ctx, timeout)
		p, err := r.Profiles.EnsureProfile(actx, claims.Subject, claims.Email)
		cancel()
		if err == nil {
			return &models.Identity{
				UserID:       p.ID,
				Email:        p.Email,
				Role:         p.Role,
				DepartmentID: p.DepartmentID,
				Active:       p.IsActive,
			}, nil
		}
		lastErr = err
		r.Logger.Warn().Err(err).Str("user_id", claims.Subject).Int("attempt", i+1).Msg("identity lookup failed")
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
