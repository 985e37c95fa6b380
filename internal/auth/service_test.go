package auth

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"highfive-server/internal/user"
)

// -------- test fakes --------

type fakeUsers struct {
	byEmail map[string]user.User
	nextID  int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: make(map[string]user.User)}
}

func (f *fakeUsers) Create(_ context.Context, fullName, email, passwordHash string) (user.User, error) {
	f.nextID++
	u := user.User{
		ID:           fmt.Sprintf("user-%d", f.nextID),
		FullName:     fullName,
		Email:        email,
		PasswordHash: passwordHash,
		Followers:    []string{},
		Following:    []string{},
	}
	f.byEmail[email] = u
	return u, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (user.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

type fakeLedger struct {
	entries     map[string]RefreshTokenEntry
	nextID      int
	createCalls int
	revokeCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]RefreshTokenEntry)}
}

func (f *fakeLedger) Create(_ context.Context, userID, rawSecret, userAgent string, lifetime time.Duration) (string, error) {
	f.createCalls++
	f.nextID++
	id := fmt.Sprintf("jti-%d", f.nextID)
	f.entries[id] = RefreshTokenEntry{
		ID:         id,
		UserID:     userID,
		SecretHash: HashSecret(rawSecret),
		UserAgent:  userAgent,
		ExpiresAt:  time.Now().UTC().Add(lifetime),
		CreatedAt:  time.Now().UTC(),
	}
	return id, nil
}

func (f *fakeLedger) FindByID(_ context.Context, id string) (RefreshTokenEntry, error) {
	entry, ok := f.entries[id]
	if !ok || time.Now().UTC().After(entry.ExpiresAt) {
		return RefreshTokenEntry{}, sql.ErrNoRows
	}
	return entry, nil
}

func (f *fakeLedger) Revoke(_ context.Context, id string) (bool, error) {
	f.revokeCalls++
	_, ok := f.entries[id]
	delete(f.entries, id)
	return ok, nil
}

func newTestService(t *testing.T) (*Service, *fakeUsers, *fakeLedger, *TokenCodec) {
	t.Helper()
	users := newFakeUsers()
	ledger := newFakeLedger()
	codec := NewTokenCodec("test-signing-key", time.Hour)
	return NewService(users, ledger, codec), users, ledger, codec
}

func seedUser(t *testing.T, users *fakeUsers, email, password string) user.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := users.Create(context.Background(), "Test User", email, string(hash))
	require.NoError(t, err)
	return u
}

// -------- tests --------

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	svc, users, _, codec := newTestService(t)
	seeded := seedUser(t, users, "alice@example.com", "correct horse battery")

	session, err := svc.Login(context.Background(), "alice@example.com", "correct horse battery", "test-agent")
	require.NoError(t, err)

	subject, err := codec.VerifyAccess(session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, seeded.ID, subject)

	require.NotEmpty(t, session.RefreshID)
	require.NotEmpty(t, session.RefreshSecret)
	require.Equal(t, seeded.ID, session.User.ID)
}

func TestLogin_NormalizesEmail(t *testing.T) {
	t.Parallel()

	svc, users, _, _ := newTestService(t)
	seedUser(t, users, "bob@example.com", "a long password")

	_, err := svc.Login(context.Background(), "  Bob@Example.COM ", "a long password", "")
	require.NoError(t, err)
}

func TestLogin_UniqueRefreshIdentifiers(t *testing.T) {
	t.Parallel()

	svc, users, _, _ := newTestService(t)
	seedUser(t, users, "carol@example.com", "a long password")

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		session, err := svc.Login(context.Background(), "carol@example.com", "a long password", "")
		require.NoError(t, err)
		require.False(t, seen[session.RefreshID], "refresh id %s issued twice", session.RefreshID)
		seen[session.RefreshID] = true
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()

	svc, users, _, _ := newTestService(t)
	seedUser(t, users, "dave@example.com", "the real password")

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", "the real password"},
		{"wrong password", "dave@example.com", "not the password"},
		{"empty email", "", "the real password"},
		{"empty password", "dave@example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tc.email, tc.password, "")
			require.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestService(t)

	created, err := svc.Register(context.Background(), "Eve Example", "Eve@Example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, "eve@example.com", created.Email)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("password123")))

	_, err = svc.Register(context.Background(), "Eve Again", "eve@example.com", "password456")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRenew_Success_DoesNotRotate(t *testing.T) {
	t.Parallel()

	svc, users, ledger, codec := newTestService(t)
	seeded := seedUser(t, users, "frank@example.com", "a long password")

	session, err := svc.Login(context.Background(), "frank@example.com", "a long password", "")
	require.NoError(t, err)

	access, err := svc.Renew(context.Background(), session.RefreshID, session.RefreshSecret)
	require.NoError(t, err)

	subject, err := codec.VerifyAccess(access)
	require.NoError(t, err)
	require.Equal(t, seeded.ID, subject)

	// The ledger entry survives renewal untouched.
	require.Contains(t, ledger.entries, session.RefreshID)
	require.Equal(t, 1, ledger.createCalls)
	require.Equal(t, 0, ledger.revokeCalls)
}

func TestRenew_Invalid(t *testing.T) {
	t.Parallel()

	svc, users, ledger, _ := newTestService(t)
	seedUser(t, users, "grace@example.com", "a long password")

	session, err := svc.Login(context.Background(), "grace@example.com", "a long password", "")
	require.NoError(t, err)

	_, err = svc.Renew(context.Background(), session.RefreshID, "tampered-secret")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = svc.Renew(context.Background(), "jti-never-issued", session.RefreshSecret)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = svc.Renew(context.Background(), "", "")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	// An expired entry the sweep has not purged yet reads as absent.
	expired := ledger.entries[session.RefreshID]
	expired.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	ledger.entries[session.RefreshID] = expired
	_, err = svc.Renew(context.Background(), session.RefreshID, session.RefreshSecret)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogout_Idempotence(t *testing.T) {
	t.Parallel()

	svc, users, _, _ := newTestService(t)
	seedUser(t, users, "heidi@example.com", "a long password")

	session, err := svc.Login(context.Background(), "heidi@example.com", "a long password", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), session.RefreshID))
	require.ErrorIs(t, svc.Logout(context.Background(), session.RefreshID), ErrRefreshTokenNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	svc, _, ledger, _ := newTestService(t)

	_, err := svc.Register(context.Background(), "Ivan Example", "ivan@example.com", "password123")
	require.NoError(t, err)

	session, err := svc.Login(context.Background(), "ivan@example.com", "password123", "cli-test")
	require.NoError(t, err)

	_, err = svc.Renew(context.Background(), session.RefreshID, session.RefreshSecret)
	require.NoError(t, err)
	require.Contains(t, ledger.entries, session.RefreshID)

	require.NoError(t, svc.Logout(context.Background(), session.RefreshID))

	_, err = svc.Renew(context.Background(), session.RefreshID, session.RefreshSecret)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}
