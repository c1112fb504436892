package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"budgetoffice/internal/config"
	apperrors "budgetoffice/internal/errors"
	"budgetoffice/internal/models"
)

const (
	refreshTokenExpiry = 7 * 24 * time.Hour
	tokenIssuer        = "budgetoffice-api"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// getJWTKey returns the JWT key from configuration
func getJWTKey() []byte {
	return []byte(config.Get().JWTSecret)
}

// JWTClaims represents the claims in the JWT
type JWTClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateAccessToken generates a short-lived JWT access token for a user.
// Its lifetime is JWT_EXPIRES_IN.
func GenerateAccessToken(user *models.User) (string, error) {
	return signToken(user, tokenTypeAccess, config.Get().JWTExpirationDur)
}

// GenerateRefreshToken generates a long-lived JWT refresh token for a user.
func GenerateRefreshToken(user *models.User) (string, error) {
	return signToken(user, tokenTypeRefresh, refreshTokenExpiry)
}

func signToken(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTKey())
}

func parseToken(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return getJWTKey(), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ValidateRefreshToken parses and validates a refresh token JWT.
// Returns the claims if valid, or an error if the token is invalid,
// expired, or not a refresh token.
func ValidateRefreshToken(tokenString string) (*JWTClaims, error) {
	claims, err := parseToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token")
	}
	if claims.TokenType != tokenTypeRefresh {
		return nil, fmt.Errorf("token is not a refresh token")
	}
	return claims, nil
}

// HashToken returns the SHA-256 hex digest of a token string.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// AuthMiddleware verifies the bearer access token and sets userID and email
// in the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Authorization header is required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format"))
			return
		}

		claims, err := parseToken(parts[1])
		// Refresh tokens are not accepted as access tokens.
		if err != nil || claims.TokenType != tokenTypeAccess {
			abortWithError(c, apperrors.ErrInvalidToken)
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}
