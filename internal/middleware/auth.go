package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/dentist-booking-api/internal/models"
	"github.com/harentsoaR/dentist-booking-api/internal/utils"
)

const requesterKey = "requester"

// AuthMiddleware validates the bearer token and stores the Requester on the
// gin context for handlers to pass on explicitly.
func AuthMiddleware(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, "Not authorized to access this route")
			return
		}

		claims, err := tokens.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			abort(c, "Invalid token")
			return
		}
		id, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			abort(c, "Invalid user ID in token")
			return
		}

		c.Set(requesterKey, models.Requester{ID: id, Role: claims.Role})
		c.Next()
	}
}

// RequireRole rejects requesters whose role is not in roles. It must run
// after AuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := RequesterFrom(c)
		if !ok {
			abort(c, "Not authorized to access this route")
			return
		}
		for _, role := range roles {
			if r.Role == role {
				c.Next()
				return
			}
		}
		abort(c, "User role "+string(r.Role)+" is not authorized to access this route")
	}
}

// RequesterFrom returns the Requester set by AuthMiddleware.
func RequesterFrom(c *gin.Context) (models.Requester, bool) {
	v, ok := c.Get(requesterKey)
	if !ok {
		return models.Requester{}, false
	}
	r, ok := v.(models.Requester)
	return r, ok
}

func abort(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": message})
}
