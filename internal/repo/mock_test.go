package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (*Set, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return New(sqlx.NewDb(conn, "sqlite3")), mock
}

func TestHabitRepo_DeleteRunsInTransaction(t *testing.T) {
	s, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM habit_entries WHERE habit_id = \?`).
		WithArgs("h-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM habits WHERE id = \?`).
		WithArgs("h-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Habits.Delete(context.Background(), "h-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHabitRepo_DeleteRollsBackOnFailure(t *testing.T) {
	s, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM habit_entries`).
		WithArgs("h-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM habits`).
		WithArgs("h-1").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := s.Habits.Delete(context.Background(), "h-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSet_WithTxJoinsExistingTransaction(t *testing.T) {
	s, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM interactions WHERE contact_id = \?`).
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM contacts WHERE id = \?`).
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM tasks WHERE id = \?`).
		WithArgs("t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// The contact cascade must not open a nested transaction.
	err := s.WithTx(context.Background(), func(tx *Set) error {
		if err := tx.Contacts.Delete(context.Background(), "c-1"); err != nil {
			return err
		}
		return tx.Tasks.Delete(context.Background(), "t-1")
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepo_GetAllSurfacesQueryError(t *testing.T) {
	s, mock := setupMock(t)

	mock.ExpectQuery(`SELECT .* FROM tasks ORDER BY day, period, sort_order, created_at`).
		WillReturnError(errors.New("no such table: tasks"))

	_, err := s.Tasks.GetAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list tasks")
	require.NoError(t, mock.ExpectationsWereMet())
}
