package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"finamily/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// userIDKey gin context key of the authenticated account id
const userIDKey = "userID"

var jwtSecret []byte

// Claims bearer token claims. Subject is the family account id.
type Claims struct {
	jwt.RegisteredClaims
}

// InitJWT loads the signing secret.
func InitJWT(cfg *config.Config) {
	jwtSecret = []byte(cfg.JWT.Secret)
}

// GenerateToken signs a token for userID. Tokens are normally issued by the
// auth service; this is used by tests and the token command.
func GenerateToken(userID string, ttl time.Duration) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// ParseToken validates signature, expiry and subject.
func ParseToken(tokenString string) (*Claims, error) {
	if len(jwtSecret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token without subject")
	}
	return claims, nil
}

// JWTAuth requires "Authorization: Bearer <token>" and stores the account id
// in the context.
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Não autenticado"})
			return
		}

		claims, err := ParseToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Token inválido ou expirado"})
			return
		}

		c.Set(userIDKey, claims.Subject)
		c.Next()
	}
}

// GetCurrentUserID the authenticated account id, or "" outside JWTAuth.
func GetCurrentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// SetCurrentUserID stores userID the way JWTAuth does.
func SetCurrentUserID(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
}
