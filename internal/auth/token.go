package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const refreshSecretBytes = 48

// TokenCodec mints and verifies access tokens. It holds the signing key
// injected at construction and performs no I/O.
type TokenCodec struct {
	secret    []byte
	accessTTL time.Duration
}

func NewTokenCodec(secret string, accessTTL time.Duration) *TokenCodec {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}

	return &TokenCodec{
		secret:    []byte(secret),
		accessTTL: accessTTL,
	}
}

func (c *TokenCodec) AccessTTL() time.Duration {
	return c.accessTTL
}

func (c *TokenCodec) MintAccess(subject string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(c.accessTTL).Unix(),
		"typ": "access",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return encoded, nil
}

// VerifyAccess returns the subject user id of a valid access token and
// ErrInvalidToken for anything malformed, tampered with, or expired.
func (c *TokenCodec) VerifyAccess(tokenStr string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if tokenType, _ := claims["typ"].(string); tokenType != "access" {
		return "", ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidToken
	}

	return subject, nil
}

// MintRefreshSecret produces the random secret half of a refresh pair. The
// raw value is handed to the client once; only HashSecret of it is persisted.
func MintRefreshSecret() (string, error) {
	b := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh secret: %w", err)
	}

	return hex.EncodeToString(b), nil
}

func HashSecret(rawSecret string) string {
	sum := sha256.Sum256([]byte(rawSecret))
	return hex.EncodeToString(sum[:])
}

func SecretMatches(rawSecret, secretHash string) bool {
	computed := HashSecret(rawSecret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(secretHash)) == 1
}
