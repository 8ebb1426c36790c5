package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/krisefikser/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestTokenRepo_Rotate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db, NewTxManager(db))
	next := model.RefreshToken{ID: uuid.New(), UserID: uuid.New(), TokenHash: "new", ExpiresAt: time.Now().Add(time.Hour)}

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("old").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO refresh_tokens")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "new", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Rotate(context.Background(), "old", next))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_Rotate_AlreadyConsumed(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db, NewTxManager(db))

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("old").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old", model.RefreshToken{TokenHash: "new"})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_Rotate_InsertFailureRollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db, NewTxManager(db))

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM refresh_tokens")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO refresh_tokens")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old", model.RefreshToken{ID: uuid.New(), TokenHash: "new"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_FindByHash(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db, NewTxManager(db))
	id, userID := uuid.New(), uuid.New()
	exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(q("FROM refresh_tokens WHERE token_hash=?")).WithArgs("h").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "created_at"}).
			AddRow(id.String(), userID.String(), "h", exp, exp.Add(-time.Hour)))
	mock.ExpectQuery(q("FROM refresh_tokens WHERE token_hash=?")).WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.FindByHash(context.Background(), "h")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, userID, got.UserID)
	assert.True(t, got.ExpiresAt.Equal(exp))

	_, err = repo.FindByHash(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepo_DeleteExpiredAndAll(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db, NewTxManager(db))
	userID := uuid.New()

	mock.ExpectExec(q("DELETE FROM refresh_tokens WHERE expires_at <= ?")).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(q("DELETE FROM refresh_tokens WHERE user_id=?")).WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = repo.DeleteAllForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_NestedJoinsOuter(t *testing.T) {
	db, mock := newMock(t)
	tm := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		return tm.RunInTx(ctx, func(context.Context) error { return nil })
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
