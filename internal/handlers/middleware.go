package handlers

import (
	"crypto/subtle"
	"net/http"
	"shop_concierge/internal/models"
	"shop_concierge/internal/services"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const contextUserKey = "currentUser"

// Identify resolves the X-User-ID header (set by the identity provider
// in front of this service) to a local principal.
func Identify(userService services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("X-User-ID")
		if header != "" {
			if id, err := strconv.ParseUint(header, 10, 32); err == nil {
				if user, err := userService.GetUserByID(uint(id)); err == nil && user.IsActive {
					c.Set(contextUserKey, user)
				}
			}
		}
		c.Next()
	}
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// RequireSharedSecret guards the reconciliation trigger with the bearer
// token the external scheduler holds.
func RequireSharedSecret(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		provided := strings.TrimPrefix(auth, "Bearer ")
		if provided == auth || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	value, exists := c.Get(contextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
