package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janmitra/backend/internal/auth"
	"github.com/janmitra/backend/internal/models"
)

const identityKey = "identity"

type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*models.Identity, error)
}

// Authenticate attaches the caller's identity when a valid bearer token is
// present. Requests without one continue anonymously; handlers decide.
func Authenticate(r IdentityResolver, l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			// browsers cannot set headers on websocket upgrades
			token = c.Query("access_token")
		}
		if token == "" {
			c.Next()
			return
		}
		id, err := r.Resolve(c.Request.Context(), token)
		if err != nil {
			l.Debug().Err(err).Str("request_id", c.GetString(RequestIDHeader)).Msg("identity not resolved")
			c.Next()
			return
		}
		SetIdentity(c, id)
		c.Next()
	}
}

func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentIdentity(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Authentication required",
				},
			})
			return
		}
		c.Next()
	}
}

func SetIdentity(c *gin.Context, id *models.Identity) {
	c.Set(identityKey, id)
}

func CurrentIdentity(c *gin.Context) *models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*models.Identity)
	return id
}
