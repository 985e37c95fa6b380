package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"highfive-server/internal/user"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	minPasswordLength = 8
)

// CredentialStore is the slice of the user repository the session flows need.
type CredentialStore interface {
	Create(ctx context.Context, fullName, email, passwordHash string) (user.User, error)
	FindByEmail(ctx context.Context, email string) (user.User, error)
}

// RefreshLedger persists outstanding refresh tokens.
type RefreshLedger interface {
	Create(ctx context.Context, userID, rawSecret, userAgent string, lifetime time.Duration) (string, error)
	FindByID(ctx context.Context, id string) (RefreshTokenEntry, error)
	Revoke(ctx context.Context, id string) (bool, error)
}

// Service orchestrates registration, login, renewal, and logout over the
// credential store, the token codec, and the refresh ledger.
type Service struct {
	users      CredentialStore
	ledger     RefreshLedger
	codec      *TokenCodec
	refreshTTL time.Duration
}

func NewService(users CredentialStore, ledger RefreshLedger, codec *TokenCodec) *Service {
	return &Service{
		users:      users,
		ledger:     ledger,
		codec:      codec,
		refreshTTL: defaultRefreshTTL,
	}
}

func (s *Service) WithRefreshTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.refreshTTL = ttl
	}
	return s
}

func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *Service) AccessTTL() time.Duration {
	return s.codec.AccessTTL()
}

func (s *Service) Register(ctx context.Context, fullName, email, password string) (user.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = NormalizeEmail(email)

	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return user.User{}, ErrEmailTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return user.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.users.Create(ctx, fullName, email, string(hash))
}

// Login verifies the credential pair and mints a fresh access token plus a
// refresh entry in the ledger. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password, userAgent string) (Session, error) {
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)

	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	access, err := s.codec.MintAccess(u.ID)
	if err != nil {
		return Session{}, err
	}

	rawSecret, err := MintRefreshSecret()
	if err != nil {
		return Session{}, err
	}

	jti, err := s.ledger.Create(ctx, u.ID, rawSecret, userAgent, s.refreshTTL)
	if err != nil {
		return Session{}, err
	}

	return Session{
		AccessToken:      access,
		RefreshID:        jti,
		RefreshSecret:    rawSecret,
		RefreshExpiresAt: time.Now().UTC().Add(s.refreshTTL),
		User:             u,
	}, nil
}

// Renew exchanges a live refresh pair for a new access token. The ledger
// entry itself is left untouched; it lives until logout or expiry.
func (s *Service) Renew(ctx context.Context, jti, rawSecret string) (string, error) {
	jti = strings.TrimSpace(jti)
	rawSecret = strings.TrimSpace(rawSecret)
	if jti == "" || rawSecret == "" {
		return "", ErrInvalidRefreshToken
	}

	entry, err := s.ledger.FindByID(ctx, jti)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidRefreshToken
		}
		return "", err
	}

	// Expiry is checked here as well as in the store, so an expired entry
	// the sweep has not purged yet still reads as absent.
	if time.Now().UTC().After(entry.ExpiresAt) {
		return "", ErrInvalidRefreshToken
	}

	if !SecretMatches(rawSecret, entry.SecretHash) {
		return "", ErrInvalidRefreshToken
	}

	return s.codec.MintAccess(entry.UserID)
}

// Logout revokes the ledger entry. An identifier that is already gone
// reports ErrRefreshTokenNotFound rather than success.
func (s *Service) Logout(ctx context.Context, jti string) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return ErrInvalidRefreshToken
	}

	present, err := s.ledger.Revoke(ctx, jti)
	if err != nil {
		return err
	}
	if !present {
		return ErrRefreshTokenNotFound
	}

	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
