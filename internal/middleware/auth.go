package middleware

import (
	"errors"
	"strings"

	"github.com/damoang/angple-cms/internal/common"
	"github.com/damoang/angple-cms/internal/domain"
	"github.com/damoang/angple-cms/pkg/jwt"
	"github.com/damoang/angple-cms/pkg/logger"
	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// TokenVerifier verifies a bearer token (*jwt.Manager)
type TokenVerifier interface {
	VerifyToken(tokenString string) (*jwt.ActorClaims, error)
}

// ActorAuth resolves the request actor from the Authorization header.
// Requests without a header proceed as domain.Anonymous; a malformed or
// invalid token is rejected with 401. Role checks belong to the services.
func ActorAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			setActor(c, domain.Anonymous)
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			common.ErrorResponse(c, 401, "Invalid authorization header format", common.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := verifier.VerifyToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.ErrorResponse(c, 401, "Token expired", common.ErrExpiredToken)
			} else {
				common.ErrorResponse(c, 401, "Invalid token", common.ErrInvalidToken)
			}
			c.Abort()
			return
		}

		role, err := domain.ParseRole(claims.Role)
		if err != nil {
			common.ErrorResponse(c, 401, "Invalid token", common.ErrInvalidToken)
			c.Abort()
			return
		}

		setActor(c, domain.Actor{ID: claims.GetActorID(), Role: role})
		c.Next()
	}
}

// setActor stores actor on the gin context and tags the request logger with it
func setActor(c *gin.Context, actor domain.Actor) {
	c.Set(actorKey, actor)
	ctx := c.Request.Context()
	l := logger.WithActor(*logger.FromContext(ctx), actor.ID, actor.Role.String())
	c.Request = c.Request.WithContext(logger.NewContext(ctx, l))
}

// GetActor extracts the actor set by ActorAuth (anonymous when absent)
func GetActor(c *gin.Context) domain.Actor {
	if v, exists := c.Get(actorKey); exists {
		if actor, ok := v.(domain.Actor); ok {
			return actor
		}
	}
	return domain.Anonymous
}
