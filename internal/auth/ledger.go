package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger persists outstanding refresh tokens. Only the sha256 hash of a
// secret is ever stored; expired entries are invisible to lookups even
// before the maintenance sweep physically deletes them.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

type RefreshTokenEntry struct {
	ID         string
	UserID     string
	SecretHash string
	UserAgent  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

func (l *Ledger) Create(ctx context.Context, userID, rawSecret, userAgent string, lifetime time.Duration) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate refresh token id: %w", err)
	}

	now := time.Now().UTC()
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO auth_refresh_tokens (id, user_id, secret_hash, user_agent, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id.String(), userID, HashSecret(rawSecret), userAgent, now.Add(lifetime), now)
	if err != nil {
		return "", fmt.Errorf("insert refresh token: %w", err)
	}

	return id.String(), nil
}

// FindByID returns sql.ErrNoRows for unknown identifiers and for entries
// whose expiry has passed, whether or not the sweep has purged them yet.
func (l *Ledger) FindByID(ctx context.Context, id string) (RefreshTokenEntry, error) {
	var entry RefreshTokenEntry
	err := l.db.QueryRowContext(ctx, `
		SELECT id, user_id, secret_hash, user_agent, expires_at, created_at
		FROM auth_refresh_tokens
		WHERE id = $1 AND expires_at > NOW()
	`, id).Scan(&entry.ID, &entry.UserID, &entry.SecretHash, &entry.UserAgent, &entry.ExpiresAt, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RefreshTokenEntry{}, err
		}
		return RefreshTokenEntry{}, fmt.Errorf("query refresh token: %w", err)
	}

	return entry, nil
}

// Revoke deletes the entry and reports whether it was present. Revoking an
// absent identifier is not an error.
func (l *Ledger) Revoke(ctx context.Context, id string) (bool, error) {
	res, err := l.db.ExecContext(ctx, `
		DELETE FROM auth_refresh_tokens
		WHERE id = $1
	`, id)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke rows affected: %w", err)
	}

	return affected > 0, nil
}

// PurgeExpired deletes a batch of entries past their expiry timestamp.
func (l *Ledger) PurgeExpired(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := l.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM auth_refresh_tokens
			WHERE expires_at <= NOW()
			ORDER BY created_at ASC
			LIMIT $1
		)
		DELETE FROM auth_refresh_tokens t
		USING stale
		WHERE t.id = stale.id
	`, batchSize)
	if err != nil {
		return 0, fmt.Errorf("purge expired refresh tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}

	return affected, nil
}
