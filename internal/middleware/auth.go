package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"groupcart/pkg/utils"
)

const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	// TokenQueryParam carries the token on websocket upgrades, where browsers
	// cannot set headers
	TokenQueryParam = "token"

	UserEmailKey = "user_email"
	UserNameKey  = "user_name"
)

// UserInfo identity carried by a verified token
type UserInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TokenValidator verifies a bearer token
type TokenValidator func(ctx context.Context, token string) (*UserInfo, error)

// AuthConfig authentication configuration
type AuthConfig struct {
	Validator TokenValidator
	// SkipPaths paths served without a token
	SkipPaths []string
	// AllowQueryToken accepts ?token= when no header is present
	AllowQueryToken bool
}

// Auth rejects requests without a valid bearer token
func Auth(validator TokenValidator) gin.HandlerFunc {
	return AuthWithConfig(AuthConfig{Validator: validator})
}

// AuthWithConfig authentication middleware with configuration
func AuthWithConfig(config AuthConfig) gin.HandlerFunc {
	skipPaths := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		token, msg := extractToken(c, config.AllowQueryToken)
		if msg != "" {
			utils.Error(c, utils.CodeUnauthorized, msg)
			c.Abort()
			return
		}

		user, err := config.Validator(c.Request.Context(), token)
		if err != nil {
			utils.Error(c, utils.CodeUnauthorized, "Invalid token")
			c.Abort()
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and never
// rejects
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := extractToken(c, true)
		if msg == "" {
			if user, err := validator(c.Request.Context(), token); err == nil {
				setUser(c, user)
			}
		}
		c.Next()
	}
}

func extractToken(c *gin.Context, allowQuery bool) (string, string) {
	authHeader := c.GetHeader(AuthorizationHeader)
	if authHeader == "" {
		if allowQuery {
			if token := c.Query(TokenQueryParam); token != "" {
				return token, ""
			}
		}
		return "", "Missing authorization header"
	}

	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return "", "Invalid authorization header format"
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	if token == "" {
		return "", "Missing token"
	}
	return token, ""
}

func setUser(c *gin.Context, user *UserInfo) {
	c.Set(UserEmailKey, user.Email)
	c.Set(UserNameKey, user.Name)
}

// GetUserEmail returns the authenticated user's email
func GetUserEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(UserEmailKey)
	if !exists {
		return "", false
	}
	s, ok := email.(string)
	return s, ok && s != ""
}

// GetUserName returns the authenticated user's display name
func GetUserName(c *gin.Context) (string, bool) {
	name, exists := c.Get(UserNameKey)
	if !exists {
		return "", false
	}
	s, ok := name.(string)
	return s, ok
}
