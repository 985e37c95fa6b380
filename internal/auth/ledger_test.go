package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestLedgerCreate_StoresHashNotSecret(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rawSecret := "raw-refresh-secret"
	mock.ExpectExec("INSERT INTO auth_refresh_tokens").
		WithArgs(sqlmock.AnyArg(), "user-1", HashSecret(rawSecret), "test-agent", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := NewLedger(db).Create(context.Background(), "user-1", rawSecret, "test-agent", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerFindByID(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expiresAt := time.Now().UTC().Add(time.Hour)
	createdAt := time.Now().UTC()
	mock.ExpectQuery("SELECT id, user_id, secret_hash, user_agent, expires_at, created_at").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "secret_hash", "user_agent", "expires_at", "created_at"}).
			AddRow("jti-1", "user-1", "hash", "agent", expiresAt, createdAt))

	entry, err := NewLedger(db).FindByID(context.Background(), "jti-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", entry.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerFindByID_AbsentOrExpired(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The query excludes expired rows, so both cases surface as no rows.
	mock.ExpectQuery("SELECT id, user_id, secret_hash, user_agent, expires_at, created_at").
		WithArgs("jti-gone").
		WillReturnError(sql.ErrNoRows)

	_, err = NewLedger(db).FindByID(context.Background(), "jti-gone")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRevoke(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM auth_refresh_tokens").
		WithArgs("jti-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM auth_refresh_tokens").
		WithArgs("jti-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ledger := NewLedger(db)

	present, err := ledger.Revoke(context.Background(), "jti-1")
	require.NoError(t, err)
	require.True(t, present)

	present, err = ledger.Revoke(context.Background(), "jti-1")
	require.NoError(t, err)
	require.False(t, present)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerPurgeExpired(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM auth_refresh_tokens t").
		WithArgs(500).
		WillReturnResult(sqlmock.NewResult(0, 3))

	purged, err := NewLedger(db).PurgeExpired(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, int64(3), purged)
	require.NoError(t, mock.ExpectationsWereMet())
}
