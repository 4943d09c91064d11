package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yashrajoria/shopnow-backend/services/common/auth"
	apperrors "github.com/yashrajoria/shopnow-backend/services/common/errors"
	"github.com/yashrajoria/shopnow-backend/services/shop-service/models"
)

// TokenCookie carries the session token for browser clients.
const TokenCookie = "shopnow"

const userContextKey = "auth.user"

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Principal, *models.User, error)
}

// Protect requires a valid session token from the Authorization header or the cookie.
func Protect(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			apperrors.Abort(c, apperrors.Unauthorized("You are not logged in! Please log in to get access"))
			return
		}

		principal, user, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			apperrors.Abort(c, err)
			return
		}

		auth.SetPrincipal(c, principal)
		c.Set(userContextKey, user)
		c.Next()
	}
}

// RestrictTo lets only the given roles through. It must run after Protect.
func RestrictTo(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := auth.GetPrincipal(c)
		if !ok {
			apperrors.Abort(c, apperrors.Unauthorized("You are not logged in! Please log in to get access"))
			return
		}
		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}
		apperrors.Abort(c, apperrors.Forbidden("You do not have permission to perform this action"))
	}
}

// CurrentUser returns the user loaded by Protect.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "loggedout" {
		return cookie
	}
	return ""
}
