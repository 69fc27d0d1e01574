package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Marga-Ghale/ora-project-integrity/internal/logger"
	"github.com/Marga-Ghale/ora-project-integrity/internal/service"
	"github.com/Marga-Ghale/ora-project-integrity/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenValidator checks HS256 bearer tokens signed with the shared secret.
type TokenValidator struct {
	secret []byte
}

func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

func (v *TokenValidator) ValidateToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Actor returns the user id and role carried by the token. Both are required.
func (v *TokenValidator) Actor(token *jwt.Token) (string, string, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidToken
	}
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", "", ErrInvalidToken
	}
	role, ok := claims["role"].(string)
	if !ok || !types.IsValidRole(role) {
		return "", "", ErrInvalidToken
	}
	return userID, role, nil
}

// IssueToken signs an access token for the given actor.
func (v *TokenValidator) IssueToken(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	})
	return token.SignedString(v.secret)
}

// AuthMiddleware validates JWT tokens and sets the actor in the context
func AuthMiddleware(validator *TokenValidator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Debug("missing authorization header", zap.String("path", path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Debug("invalid authorization header format", zap.String("path", path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		token, err := validator.ValidateToken(parts[1])
		if err != nil || !token.Valid {
			log.Debug("invalid token", zap.String("path", path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		userID, role, err := validator.Actor(token)
		if err != nil {
			log.Debug("invalid token claims", zap.String("path", path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxUserRole, role)
		c.Request = c.Request.WithContext(logger.WithActor(c.Request.Context(), userID))
		c.Next()
	}
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// RequireActor returns the permission context of the authenticated caller.
func RequireActor(c *gin.Context) (service.PermissionContext, bool) {
	userID := GetUserID(c)
	role := c.GetString(ctxUserRole)
	if userID == "" || role == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return service.PermissionContext{}, false
	}
	return service.PermissionContext{UserID: userID, UserRole: role}, true
}
