package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitehive/sitehive-backend/internal/users"
)

const userKey = "auth_user"

// UserSource is the slice of the users repo the middleware needs.
type UserSource interface {
	ByID(ctx context.Context, id string) (*users.User, error)
	Touch(ctx context.Context, id string) error
}

// RequireUser validates the bearer token and loads the account. The fresh DB
// read means bans and deletions take effect immediately, not at token expiry.
func RequireUser(src UserSource, secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Access denied. No token provided."})
			return
		}

		claims, err := ParseToken(token, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Invalid token"})
			return
		}

		u, err := src.ByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Invalid token"})
			return
		}
		if u.Status == users.StatusBanned {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Account is banned"})
			return
		}

		// Activity stamp feeds the admin "currently active" stat; not worth
		// failing the request over.
		go func(id string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = src.Touch(ctx, id)
		}(u.ID)

		c.Set(userKey, u)
		c.Next()
	}
}

// RequireAdmin must run after RequireUser.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil || u.Role != users.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated account, or nil outside RequireUser.
func CurrentUser(c *gin.Context) *users.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*users.User); ok {
			return u
		}
	}
	return nil
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return ""
}
