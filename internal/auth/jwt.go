// Package auth - jwt.go handles JWT session token creation and verification using a
// shared secret. Tokens identify an account and nothing else: roles are never carried
// in claims, and privileged operations re-read the account to decide what it may do.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultIssuer is used when no issuer is configured.
const DefaultIssuer = "castline"

var (
	// jwtSecret holds the validated JWT secret
	jwtSecret     string
	jwtSecretOnce sync.Once
	jwtSecretErr  error
)

// Claims represents the JWT claims structure. The account id is the subject.
type Claims struct {
	jwt.RegisteredClaims
}

// AccountID returns the authenticated account id.
func (c *Claims) AccountID() string {
	return c.Subject
}

// isDevMode checks if we're in development mode
func isDevMode() bool {
	devMode := os.Getenv("CASTLINE_DEV_MODE")
	ginMode := os.Getenv("GIN_MODE")

	return devMode == "true" || devMode == "1" || ginMode == "debug"
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// ValidateJWTSecret checks that the JWT secret is properly configured.
// In production, this will fail if CASTLINE_JWT_SECRET is not set.
// In dev mode, it will generate a random secret and log a warning.
// Call this at application startup.
func ValidateJWTSecret() error {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("CASTLINE_JWT_SECRET")

		if secret == "" {
			if isDevMode() {
				jwtSecret = generateRandomSecret()
				slog.Warn("CASTLINE_JWT_SECRET not set; using an auto-generated secret for development. Sessions will not survive restarts.")
			} else {
				jwtSecretErr = errors.New("SECURITY ERROR: CASTLINE_JWT_SECRET environment variable is required in production. " +
					"Generate a secure secret with: openssl rand -hex 32")
			}
			return
		}

		if len(secret) < 32 {
			slog.Warn("CASTLINE_JWT_SECRET is shorter than the recommended 32 characters")
		}

		jwtSecret = secret
	})

	return jwtSecretErr
}

// GetJWTSecret retrieves the validated JWT secret.
// Panics if ValidateJWTSecret() hasn't been called or failed.
func GetJWTSecret() string {
	if jwtSecret == "" {
		if err := ValidateJWTSecret(); err != nil {
			panic(err)
		}
	}
	return jwtSecret
}

// GenerateJWT creates a session token for accountID.
func GenerateJWT(accountID, issuer string, expiresIn time.Duration) (string, error) {
	if accountID == "" {
		return "", errors.New("account id is required")
	}
	if expiresIn == 0 {
		expiresIn = 1 * time.Hour
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   accountID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(GetJWTSecret()))
}

// ValidateJWT parses and validates a session token issued by issuer.
func ValidateJWT(tokenString, issuer string) (*Claims, error) {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	secret := GetJWTSecret()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return claims, nil
}
