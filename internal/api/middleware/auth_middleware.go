package middleware

import (
	"net/http"
	"strings"

	"parking_market/internal/domain"
	"parking_market/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	AuthorizationHeaderKey  = "Authorization"
	AuthorizationTypeBearer = "Bearer"
	UserKey                 = "user"
)

type AuthMiddleware struct {
	authService *service.AuthService
	logger      *logrus.Logger
}

func NewAuthMiddleware(authService *service.AuthService, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{authService: authService, logger: logger}
}

// Authenticate validates the bearer token and stores the user in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeaderKey)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization header"})
			return
		}

		fields := strings.Fields(authHeader)
		if len(fields) < 2 || !strings.EqualFold(fields[0], AuthorizationTypeBearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		user, err := m.authService.ValidateToken(fields[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is invalid or expired", "details": err.Error()})
			return
		}

		c.Set(UserKey, *user)
		c.Next()
	}
}

// AuthorizeRole requires Authenticate to have run first.
func (m *AuthMiddleware) AuthorizeRole(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied (no user role)"})
			return
		}

		for _, role := range requiredRoles {
			if user.Role == role {
				c.Next()
				return
			}
		}

		m.logger.WithFields(logrus.Fields{
			"user_id":  user.ID,
			"role":     user.Role,
			"required": requiredRoles,
		}).Warn("AuthorizeRole: access denied")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied (role not permitted)"})
	}
}

// CurrentUser returns the user stored by Authenticate.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	v, exists := c.Get(UserKey)
	if !exists {
		return domain.User{}, false
	}
	user, ok := v.(domain.User)
	return user, ok
}
